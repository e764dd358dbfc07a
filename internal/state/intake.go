package state

import (
	"math"
	"time"
)

// Scale factors converting servo raw position counts to degrees, as
// documented on the wire (signs differ per axis because the az and el
// encoders are mounted with opposite sense).
const (
	servoAzCountsToDeg = 0.0016179775280
	servoElCountsToDeg = -0.0018
)

// PLC21Data is one poll cycle's worth of PLC21 discrete-input and
// holding-register data: panel switches and station-level IO.
type PLC21Data struct {
	StationEnabled bool
	GunArmed       bool
	AmmoLoaded     bool
	HomeRequested  bool
	Stabilise      bool
	Authorise      bool
	SwitchCamera   bool
	MenuUp         bool
	MenuDown       bool
	MenuVal        bool
	FireMode       FireMode
	SpeedPct       float64
	PanelTempC     float64
}

// PLC42Data is one poll cycle's worth of PLC42 discrete-input and
// holding-register data: the weapon and gimbal-speed interlock IO.
type PLC42Data struct {
	UpperLimit     bool
	LowerLimit     bool
	EmergencyStop  bool
	AmmoLevelOK    bool
	SolenoidActive bool
	SolenoidMode   int
	GimbalOpMode   int
	AzSpeedRaw     int32
	ElSpeedRaw     int32
	AzDirection    int
	ElDirection    int
	ResetAlarm     bool
}

// ServoAxisData is one poll cycle's worth of a single servo driver's
// position, temperature, and fault telemetry, in raw wire units.
type ServoAxisData struct {
	PositionCounts int32
	DriverTempC    float64
	MotorTempC     float64
	Fault          bool
}

// CameraData is one poll/event cycle's worth of camera telemetry. Night
// extras (FFC, LUT, FPA temp) are zero for the day camera.
type CameraData struct {
	Connected     bool
	HFOVDeg       float64
	Zoom          float64
	Focus         float64
	FFCInProgress bool
	LUTIndex      int
	FPATempC      float64
}

// IMUData is one poll cycle's worth of orientation and rate telemetry.
type IMUData struct {
	RollDeg, PitchDeg, YawDeg float64
	AccelX, AccelY, AccelZ    float64
	GyroX, GyroY, GyroZ       float64
}

// LRFData is one ranging cycle's worth of laser range finder data.
type LRFData struct {
	DistanceM   float64
	LaserCount  int
	HardwareOK  bool
}

// OnServoAzData implements on_servo_az_data: converts the raw position
// counts to degrees via the documented scale factor, wraps azimuth into
// [0,360), and merges fault/temperature telemetry.
func (m *Model) OnServoAzData(d ServoAxisData) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Gimbal.AzDeg = normalizeDeg(float64(d.PositionCounts) * servoAzCountsToDeg)
		s.Gimbal.AzFault = d.Fault
		s.Gimbal.AzDriverTempC = d.DriverTempC
		s.Gimbal.AzMotorTempC = d.MotorTempC
	})
}

// OnServoElData implements on_servo_el_data: converts raw counts to
// degrees and clamps the result to [elMinDeg, elMaxDeg], the mechanical
// elevation limits carried in the gimbal configuration.
func (m *Model) OnServoElData(d ServoAxisData, elMinDeg, elMaxDeg float64) SystemState {
	return m.commit(nil, func(s *SystemState) {
		el := float64(d.PositionCounts) * servoElCountsToDeg
		if el < elMinDeg {
			el = elMinDeg
		} else if el > elMaxDeg {
			el = elMaxDeg
		}
		s.Gimbal.ElDeg = el
		s.Gimbal.ElFault = d.Fault
		s.Gimbal.ElDriverTempC = d.DriverTempC
		s.Gimbal.ElMotorTempC = d.MotorTempC
	})
}

// OnPLC21Data implements on_plc21_data: merges panel-switch and
// station-IO fields into Safety and the active fire mode.
func (m *Model) OnPLC21Data(d PLC21Data) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Safety.StationEnabled = d.StationEnabled
		s.Safety.GunArmed = d.GunArmed
		s.Safety.AmmoLoaded = d.AmmoLoaded
		if d.FireMode != FireModeUnknown {
			s.FireMode = d.FireMode
		}
		s.Panel.HomeRequested = d.HomeRequested
		s.Panel.Stabilise = d.Stabilise
		s.Panel.Authorise = d.Authorise
		s.Panel.SwitchCamera = d.SwitchCamera
		s.Panel.MenuUp = d.MenuUp
		s.Panel.MenuDown = d.MenuDown
		s.Panel.MenuVal = d.MenuVal
		s.Panel.SpeedPct = d.SpeedPct
		s.Panel.PanelTempC = d.PanelTempC
	})
}

// OnPLC42Data implements on_plc42_data. It merges every PLC42 input that
// has a home in SystemState: E-stop, the gimbal travel limit switches,
// ammo-level interlock, and solenoid-active feedback. SolenoidMode and
// the az/el speed and direction registers are written by the weapon and
// gimbal controllers (see WeaponController.Tick, GimbalController.Tick);
// GimbalOpMode and ResetAlarm have no writer in this program. None of
// these holding-register values is merged.
func (m *Model) OnPLC42Data(d PLC42Data) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Safety.EmergencyStopActive = d.EmergencyStop
		s.Safety.AmmoLevelOK = d.AmmoLevelOK
		s.Safety.SolenoidActive = d.SolenoidActive
		s.Gimbal.UpperLimit = d.UpperLimit
		s.Gimbal.LowerLimit = d.LowerLimit
	})
}

// OnDayCameraData implements on_day_camera_data.
func (m *Model) OnDayCameraData(d CameraData) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.DayCamera.Connected = d.Connected
		s.DayCamera.HFOVDeg = d.HFOVDeg
		s.DayCamera.Zoom = d.Zoom
		s.DayCamera.Focus = d.Focus
	})
}

// OnNightCameraData implements on_night_camera_data, including the
// night-only extras (FFC progress, LUT index clamped to [0,12], FPA
// temperature).
func (m *Model) OnNightCameraData(d CameraData) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.NightCamera.Connected = d.Connected
		s.NightCamera.HFOVDeg = d.HFOVDeg
		s.NightCamera.Zoom = d.Zoom
		s.NightCamera.Focus = d.Focus
		s.NightCamera.FFCInProgress = d.FFCInProgress
		lut := d.LUTIndex
		if lut < 0 {
			lut = 0
		} else if lut > 12 {
			lut = 12
		}
		s.NightCamera.LUTIndex = lut
		s.NightCamera.FPATempC = d.FPATempC
	})
}

// OnLRFData implements on_lrf_data. Unlike the other on_*_data intake
// methods it never mutates SystemState and never raises DataChanged: the
// LRF has no dedicated field group in SystemState, and the range reading
// needed for ballistics is read directly off the device's own cache via
// LRF.LastRangeM instead of round-tripping through a commit. This method
// exists only to keep the intake surface complete for callers that
// expect a uniform on_*_data dispatch table.
func (m *Model) OnLRFData(d LRFData) SystemState {
	return m.Snapshot()
}

// OnJoystickAxis implements on_joystick_axis: axis is 0 for X, 1 for Y;
// value is already normalised to [-1.0, 1.0] by the device layer.
func (m *Model) OnJoystickAxis(axis int, value float64) SystemState {
	return m.commit(nil, func(s *SystemState) {
		switch axis {
		case 0:
			s.Gimbal.JoystickAxisX = value
		case 1:
			s.Gimbal.JoystickAxisY = value
		}
	})
}

// OnJoystickButton implements on_joystick_button. Button semantics (menu
// navigation, lock-on, fire) are owned by the application and weapon
// controllers; the model only records nothing here — buttons drive
// model operations directly via the named transition methods, not a
// generic field, so this exists to keep the intake surface complete for
// callers that want a uniform dispatch table.
func (m *Model) OnJoystickButton(button int, pressed bool) SystemState {
	return m.Snapshot()
}

// OnJoystickHat implements on_joystick_hat. Hat values follow the SDL2
// convention: centered=0, up=1, right=2, down=4, left=8 (bitwise-or of
// diagonals).
func (m *Model) OnJoystickHat(hat int) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Gimbal.JoystickHat = hat
	})
}

// OnRadarPlots implements on_radar_plots: replaces the full plot list
// each cycle (the radar feed already deduplicates by track id upstream).
// If the currently selected track id is no longer present, the selection
// is cleared to 0.
func (m *Model) OnRadarPlots(plots []RadarPlot) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.RadarPlots = plots
		if s.SelectedRadarTrackID != 0 {
			found := false
			for _, p := range plots {
				if p.TrackID == s.SelectedRadarTrackID {
					found = true
					break
				}
			}
			if !found {
				s.SelectedRadarTrackID = 0
			}
		}
	})
}

// OnIMUData implements on_imu_data: merges orientation and rate
// telemetry and runs the stationary-detection accumulator.
func (m *Model) OnIMUData(d IMUData) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.IMU.RollDeg, s.IMU.PitchDeg, s.IMU.YawDeg = d.RollDeg, d.PitchDeg, d.YawDeg
		s.IMU.AccelX, s.IMU.AccelY, s.IMU.AccelZ = d.AccelX, d.AccelY, d.AccelZ
		s.IMU.GyroX, s.IMU.GyroY, s.IMU.GyroZ = d.GyroX, d.GyroY, d.GyroZ
		updateStationaryDetection(&s.IMU, time.Now())
	})
}

// updateStationaryDetection implements the stationary-detection
// algorithm: if gyro magnitude stays below 0.5 deg/s and the change in
// accel magnitude stays below 0.01 g continuously for >= 2s, the vehicle
// is marked stationary; any breach resets the accumulator.
func updateStationaryDetection(s *IMUState, now time.Time) {
	const (
		gyroThresholdDps = 0.5
		accelDeltaThresholdG = 0.01
		holdDuration         = 2 * time.Second
	)

	g := gyroMagnitudeDps(s)
	a := accelMagnitudeG(s)

	var deltaA float64
	if s.hasPreviousAccel {
		deltaA = math.Abs(a - s.previousAccelMagnitude)
	} else {
		deltaA = math.Inf(1)
	}
	s.previousAccelMagnitude = a
	s.hasPreviousAccel = true

	within := g < gyroThresholdDps && deltaA < accelDeltaThresholdG
	if !within {
		s.stationarySince = false
		s.IsVehicleStationary = false
		return
	}

	if !s.stationarySince {
		s.stationarySince = true
		s.stationaryStartTime = now
		s.IsVehicleStationary = false
		return
	}

	if now.Sub(s.stationaryStartTime) >= holdDuration {
		s.IsVehicleStationary = true
	}
}

// gyroMagnitudeDps and accelMagnitudeG are the two scalar signals the
// stationary-detection algorithm thresholds against.
func gyroMagnitudeDps(s *IMUState) float64 {
	return math.Sqrt(s.GyroX*s.GyroX + s.GyroY*s.GyroY + s.GyroZ*s.GyroZ)
}

func accelMagnitudeG(s *IMUState) float64 {
	return math.Sqrt(s.AccelX*s.AccelX + s.AccelY*s.AccelY + s.AccelZ*s.AccelZ)
}
