// Package state implements the SystemStateModel: the single-writer
// custodian of the station's central state record. Every other
// subsystem — devices, the video/tracker pipeline, the controllers —
// reads from a Model snapshot or shared reference and mutates state
// only through the narrow operations this package exposes.
package state

import (
	"time"

	"github.com/google/uuid"
)

// OpMode is the station's top-level operating mode.
type OpMode int

const (
	OpIdle OpMode = iota
	OpSurveillance
	OpTracking
	OpEngagement
	OpEmergencyStop
)

func (m OpMode) String() string {
	switch m {
	case OpIdle:
		return "Idle"
	case OpSurveillance:
		return "Surveillance"
	case OpTracking:
		return "Tracking"
	case OpEngagement:
		return "Engagement"
	case OpEmergencyStop:
		return "EmergencyStop"
	default:
		return "Unknown"
	}
}

// MotionMode selects how the gimbal controller drives the axes.
type MotionMode int

const (
	MotionIdle MotionMode = iota
	MotionManual
	MotionAutoSectorScan
	MotionTRPScan
	MotionRadarSlew
	MotionAutoTrack
)

func (m MotionMode) String() string {
	switch m {
	case MotionIdle:
		return "Idle"
	case MotionManual:
		return "Manual"
	case MotionAutoSectorScan:
		return "AutoSectorScan"
	case MotionTRPScan:
		return "TRPScan"
	case MotionRadarSlew:
		return "RadarSlew"
	case MotionAutoTrack:
		return "AutoTrack"
	default:
		return "Unknown"
	}
}

// TrackingPhase is the tracking sub-state machine driven by operator
// input and by tracking results from the active camera.
type TrackingPhase int

const (
	TrackingOff TrackingPhase = iota
	TrackingAcquisition
	TrackingLockPending
	TrackingActiveLock
	TrackingCoast
	TrackingFiring
)

func (p TrackingPhase) String() string {
	switch p {
	case TrackingOff:
		return "Off"
	case TrackingAcquisition:
		return "Acquisition"
	case TrackingLockPending:
		return "LockPending"
	case TrackingActiveLock:
		return "ActiveLock"
	case TrackingCoast:
		return "Coast"
	case TrackingFiring:
		return "Firing"
	default:
		return "Unknown"
	}
}

// TrackerRawState is the correlation tracker's own per-frame verdict.
type TrackerRawState int

const (
	TrackerNew TrackerRawState = iota
	TrackerTracked
	TrackerLost
)

func (s TrackerRawState) String() string {
	switch s {
	case TrackerNew:
		return "New"
	case TrackerTracked:
		return "Tracked"
	case TrackerLost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// LeadAngleStatus is the ballistics lead-angle compensation status.
type LeadAngleStatus int

const (
	LeadOff LeadAngleStatus = iota
	LeadOn
	LeadLag
	LeadZoomOut
)

func (s LeadAngleStatus) String() string {
	switch s {
	case LeadOff:
		return ""
	case LeadOn:
		return "LEAD ANGLE ON"
	case LeadLag:
		return "LEAD ANGLE LAG"
	case LeadZoomOut:
		return "ZOOM OUT"
	default:
		return ""
	}
}

// FireMode selects the weapon solenoid firing pattern.
type FireMode int

const (
	FireModeUnknown FireMode = iota
	FireModeSingleShot
	FireModeShortBurst
	FireModeLongBurst
)

// SolenoidCode returns the wire code written to PLC42.
func (m FireMode) SolenoidCode() int {
	switch m {
	case FireModeSingleShot:
		return 1
	case FireModeShortBurst:
		return 2
	case FireModeLongBurst:
		return 3
	default:
		return 0
	}
}

// PointPx is an image-space pixel coordinate.
type PointPx struct {
	X, Y float64
}

// SizePx is an image-space extent in pixels.
type SizePx struct {
	W, H float64
}

// RectPx is an image-space axis-aligned box in pixels.
type RectPx struct {
	X, Y, W, H float64
}

// Vector2 is a generic 2D vector, used for pixel-rate velocities.
type Vector2 struct {
	X, Y float64
}

// GimbalState holds the two-axis servo position and fault/thermal telemetry.
type GimbalState struct {
	AzDeg          float64
	ElDeg          float64
	AzFault        bool
	ElFault        bool
	AzMotorTempC   float64
	ElMotorTempC   float64
	AzDriverTempC  float64
	ElDriverTempC  float64
	JoystickAxisX  float64
	JoystickAxisY  float64
	JoystickHat    int

	UpperLimit bool
	LowerLimit bool
}

// CameraState holds one camera's connection and optics telemetry.
type CameraState struct {
	Connected bool
	HFOVDeg   float64
	Zoom      float64
	Focus     float64

	// Night-camera-only extras; zero value for the day camera.
	FFCInProgress bool
	LUTIndex      int
	FPATempC      float64
}

// TrackingState holds the tracking phase machine's live data.
type TrackingState struct {
	Phase                TrackingPhase
	SessionID            uuid.UUID
	HasValidTarget       bool
	AcquisitionBox       RectPx
	TargetCenterPx       PointPx
	TargetSizePx         SizePx
	TargetVelocityPxPerS Vector2
	RawState             TrackerRawState

	lastCenterPx  PointPx
	lastUpdateSet bool
	lastUpdateAt  time.Time
}

// BallisticsState holds zeroing, windage, and lead-angle overlay data.
type BallisticsState struct {
	ZeroingModeActive bool
	ZeroingApplied    bool
	ZeroingAzOffset   float64
	ZeroingElOffset   float64

	WindageModeActive bool
	WindageApplied    bool
	WindageSpeedKnots float64

	LeadAngleActive     bool
	LeadAngleStatus     LeadAngleStatus
	LeadAngleOffsetAz   float64
	LeadAngleOffsetEl   float64
}

// AimpointState holds the derived reticle geometry and status text.
type AimpointState struct {
	ReticleXPx       float64
	ReticleYPx       float64
	LeadStatusText   string
	ZeroingStatusText string
	CurrentScanName  string
}

// SafetyState holds the fire-permission predicate's inputs and zone flags.
// MayFire mirrors the gate enforced in hardware by the PLC interlock chain.
type SafetyState struct {
	StationEnabled           bool
	GunArmed                 bool
	AmmoLoaded               bool
	DeadmanSwitchActive      bool
	EmergencyStopActive      bool
	IsReticleInNoFireZone    bool
	IsReticleInNoTraverseZone bool

	AmmoLevelOK    bool
	SolenoidActive bool
}

// MayFire reports whether every fire-permission condition currently holds.
func (s SafetyState) MayFire() bool {
	return s.StationEnabled && s.GunArmed && s.DeadmanSwitchActive &&
		!s.EmergencyStopActive && !s.IsReticleInNoFireZone
}

// PanelState mirrors PLC21's raw discrete-input panel switches. It
// holds levels, not edges — callers that need edge-triggered behaviour
// (menu navigation, switch-camera) diff successive snapshots themselves.
type PanelState struct {
	HomeRequested bool
	Stabilise     bool
	Authorise     bool
	SwitchCamera  bool
	MenuUp        bool
	MenuDown      bool
	MenuVal       bool
	SpeedPct      float64
	PanelTempC    float64
}

// IMUState holds orientation, rates, and the stationary-detection accumulator.
type IMUState struct {
	RollDeg, PitchDeg, YawDeg float64
	AccelX, AccelY, AccelZ    float64
	GyroX, GyroY, GyroZ       float64

	previousAccelMagnitude float64
	hasPreviousAccel       bool
	stationaryStartTime    time.Time
	stationarySince        bool
	IsVehicleStationary    bool
}

// RadarPlot is one tracked contact reported by the radar feed.
type RadarPlot struct {
	TrackID   int
	RangeM    float64
	BearingDeg float64
	SpeedMps  float64
	LastSeen  time.Time
}

// ImageSize is the working frame size the active camera publishes into
// SystemState, used to derive pixels-per-degree for the aimpoint.
type ImageSize struct {
	WidthPx  int
	HeightPx int
}

// SystemState is the single authoritative state record. It is created
// with defaults at process start and is never partially mutated: every
// exported Model method either applies all of its field changes or none
// of them.
type SystemState struct {
	OpMode         OpMode
	PreviousOpMode OpMode
	MotionMode     MotionMode
	PreviousMotionMode MotionMode

	Tracking TrackingState

	Gimbal GimbalState

	ActiveCameraIsDay bool
	DayCamera         CameraState
	NightCamera       CameraState
	ImageSize         ImageSize

	Ballistics BallisticsState
	Aimpoint   AimpointState

	AreaZones       []AreaZone
	SectorScanZones []SectorScanZone
	TRPs            []TargetReferencePoint
	nextAreaZoneID  int
	nextSectorID    int
	nextTRPID       int
	SelectedSectorScanZoneID int
	SelectedTRPPage          int

	RadarPlots          []RadarPlot
	SelectedRadarTrackID int

	Safety SafetyState
	Panel  PanelState

	IMU IMUState

	ColorStyle    string
	OSDColorStyle string
	ReticleType   string
	FireMode      FireMode
}

// NewSystemState returns the process-start default state.
func NewSystemState() SystemState {
	return SystemState{
		OpMode:            OpIdle,
		MotionMode:        MotionManual,
		ActiveCameraIsDay: true,
		ImageSize:         ImageSize{WidthPx: 1024, HeightPx: 768},
		nextAreaZoneID:    1,
		nextSectorID:      1,
		nextTRPID:         1,
		SelectedTRPPage:   1,
		ColorStyle:        "default",
		OSDColorStyle:     "default",
		ReticleType:       "standard",
		FireMode:          FireModeSingleShot,
		Tracking: TrackingState{
			Phase: TrackingOff,
		},
	}
}
