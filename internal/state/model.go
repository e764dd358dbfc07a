package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironfathom/stationctl/internal/ballistics"
	"github.com/ironfathom/stationctl/internal/logger"
)

// Model is the SystemStateModel: the single-writer custodian described
// in the package doc. All mutations run under mu; every exported method
// either applies its whole effect or leaves state untouched and reports
// failure.
type Model struct {
	mu    sync.RWMutex
	state SystemState
	bus   *Bus
	log   logger.Logger
}

// NewModel constructs a Model with process-start defaults. bus may be
// shared with other subsystems; log should already carry a prefix such
// as "state".
func NewModel(bus *Bus, log logger.Logger) *Model {
	return &Model{
		state: NewSystemState(),
		bus:   bus,
		log:   log,
	}
}

// Snapshot returns a read-only copy of the current state. Slice fields
// are never mutated in place by any Model method, so sharing their
// backing arrays with the snapshot is safe.
func (m *Model) Snapshot() SystemState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers fn for events of kind kind. See Bus.Subscribe.
func (m *Model) Subscribe(kind EventKind, fn Subscriber) {
	m.bus.Subscribe(kind, fn)
}

// publish emits ev on the bus if the model has one; nil bus is a valid
// configuration for tests that only check state, not notifications.
func (m *Model) publish(kind EventKind, snapshot SystemState) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(Event{Kind: kind, Snapshot: snapshot})
}

// mutate runs fn against a working copy of the state under the write
// lock, applies the automatic transitions and aimpoint recomputation
// that must follow every change, commits the result, and returns the
// committed snapshot together with the az/el and zone deltas the caller
// needs to decide which events to publish.
func (m *Model) mutate(fn func(s *SystemState)) (snapshot SystemState, azElChanged bool, zonesChanged bool) {
	m.mu.Lock()

	prevAz, prevEl := m.state.Gimbal.AzDeg, m.state.Gimbal.ElDeg
	prevAreaLen, prevSectorLen, prevTRPLen := len(m.state.AreaZones), len(m.state.SectorScanZones), len(m.state.TRPs)

	fn(&m.state)
	applyAutomaticTransitions(&m.state)
	recalculateAimpoint(&m.state)

	azElChanged = m.state.Gimbal.AzDeg != prevAz || m.state.Gimbal.ElDeg != prevEl
	zonesChanged = len(m.state.AreaZones) != prevAreaLen ||
		len(m.state.SectorScanZones) != prevSectorLen ||
		len(m.state.TRPs) != prevTRPLen

	snapshot = m.state
	m.mu.Unlock()
	return snapshot, azElChanged, zonesChanged
}

// commit is the common tail of every public mutator: run the mutation,
// publish DataChanged plus any event kinds the caller names, always
// folding in GimbalPositionChanged / ZonesChanged when the mutate pass
// detected a change even if the caller didn't ask for them.
func (m *Model) commit(extra []EventKind, fn func(s *SystemState)) SystemState {
	snapshot, azElChanged, zonesChanged := m.mutate(fn)

	fired := make(map[EventKind]bool, len(extra)+3)
	for _, k := range extra {
		if !fired[k] {
			fired[k] = true
			m.publish(k, snapshot)
		}
	}
	if azElChanged && !fired[GimbalPositionChanged] {
		m.publish(GimbalPositionChanged, snapshot)
	}
	if zonesChanged && !fired[ZonesChanged] {
		m.publish(ZonesChanged, snapshot)
	}
	m.publish(DataChanged, snapshot)
	return snapshot
}

// Update replaces the whole state record via the update(new_state)
// contract: emits DataChanged, plus GimbalPositionChanged if az/el
// differ, plus ZonesChanged if any zone list's length changed, plus
// ColorStyleChanged if the colour or OSD colour style differs.
func (m *Model) Update(newState SystemState) SystemState {
	var extra []EventKind
	if cur := m.Snapshot(); cur.ColorStyle != newState.ColorStyle || cur.OSDColorStyle != newState.OSDColorStyle {
		extra = append(extra, ColorStyleChanged)
	}
	return m.commit(extra, func(s *SystemState) {
		*s = newState
	})
}

// applyAutomaticTransitions implements the four automatic transitions
// that run on every update. Each is phrased as "not yet reacted" rather
// than an edge flag, so repeated calls with the same inputs are no-ops —
// the E-stop and station-enable guards on rules 3 and 4 keep the four
// rules from fighting each other within one pass.
func applyAutomaticTransitions(s *SystemState) {
	if s.Safety.EmergencyStopActive && s.OpMode != OpEmergencyStop {
		s.PreviousOpMode = s.OpMode
		s.PreviousMotionMode = s.MotionMode
		s.OpMode = OpEmergencyStop
		s.MotionMode = MotionIdle
		s.Tracking.Phase = TrackingOff
		s.Tracking.HasValidTarget = false
		s.Ballistics.LeadAngleActive = false
		s.Ballistics.LeadAngleStatus = LeadOff
	}

	if !s.Safety.EmergencyStopActive && s.OpMode == OpEmergencyStop {
		s.OpMode = OpIdle
		s.MotionMode = MotionIdle
	}

	if !s.Safety.EmergencyStopActive && !s.Safety.StationEnabled && s.OpMode != OpIdle {
		s.OpMode = OpIdle
		s.MotionMode = MotionIdle
		s.Tracking.Phase = TrackingOff
		s.Tracking.HasValidTarget = false
	}

	if !s.Safety.EmergencyStopActive && s.Safety.StationEnabled && s.OpMode == OpIdle {
		s.OpMode = OpSurveillance
		s.MotionMode = MotionManual
	}
}

// recalculateAimpoint recomputes the reticle aimpoint from the active
// camera's optics and the current zeroing/lead state. It is idempotent:
// calling it twice with unchanged inputs yields the same pixel
// coordinates and status text both times.
func recalculateAimpoint(s *SystemState) {
	hfov := s.DayCamera.HFOVDeg
	if !s.ActiveCameraIsDay {
		hfov = s.NightCamera.HFOVDeg
	}
	if hfov <= 0 || s.ImageSize.WidthPx <= 0 || s.ImageSize.HeightPx <= 0 {
		s.Aimpoint = AimpointState{
			ReticleXPx: float64(s.ImageSize.WidthPx) / 2,
			ReticleYPx: float64(s.ImageSize.HeightPx) / 2,
		}
		return
	}

	point := ballistics.ComputeAimpoint(ballistics.ReticleInputs{
		ImageWidthPx:   float64(s.ImageSize.WidthPx),
		ImageHeightPx:  float64(s.ImageSize.HeightPx),
		HFOVDeg:        hfov,
		ZeroingApplied: s.Ballistics.ZeroingApplied,
		ZeroingAzDeg:   s.Ballistics.ZeroingAzOffset,
		ZeroingElDeg:   s.Ballistics.ZeroingElOffset,
		LeadActive:     s.Ballistics.LeadAngleActive,
		LeadApplies:    s.Ballistics.LeadAngleStatus == LeadOn || s.Ballistics.LeadAngleStatus == LeadLag || s.Ballistics.LeadAngleStatus == LeadZoomOut,
		LeadAzDeg:      s.Ballistics.LeadAngleOffsetAz,
		LeadElDeg:      s.Ballistics.LeadAngleOffsetEl,
	})

	s.Aimpoint.ReticleXPx = point.XPx
	s.Aimpoint.ReticleYPx = point.YPx
	s.Aimpoint.ZeroingStatusText = ballistics.ZeroingStatusText(s.Ballistics.ZeroingApplied, s.Ballistics.ZeroingModeActive)
	s.Aimpoint.LeadStatusText = s.Ballistics.LeadAngleStatus.String()
}

// --- Mode / tracking ---------------------------------------------------

// SetOpMode sets the top-level operating mode directly, recording the
// prior mode in PreviousOpMode.
func (m *Model) SetOpMode(mode OpMode) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.PreviousOpMode = s.OpMode
		s.OpMode = mode
	})
}

// SetMotionMode sets the gimbal motion mode directly.
func (m *Model) SetMotionMode(mode MotionMode) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.PreviousMotionMode = s.MotionMode
		s.MotionMode = mode
	})
}

// CommandEngagement implements command_engagement(start): on start it
// caches the previous modes and enters Engagement iff the gun is armed;
// on stop it restores the cached modes. ok is false if start was
// requested while the gun is not armed — state is left unchanged.
func (m *Model) CommandEngagement(start bool) (snapshot SystemState, ok bool) {
	ok = true
	snapshot = m.commit(nil, func(s *SystemState) {
		if start {
			if !s.Safety.GunArmed {
				ok = false
				return
			}
			s.PreviousOpMode = s.OpMode
			s.PreviousMotionMode = s.MotionMode
			s.OpMode = OpEngagement
			return
		}
		s.OpMode = s.PreviousOpMode
		s.MotionMode = s.PreviousMotionMode
	})
	return snapshot, ok
}

// StartTrackingAcquisition implements the Off -> Acquisition transition:
// initialises a 100x100 acquisition box centred on the current reticle,
// clamped to the image bounds.
func (m *Model) StartTrackingAcquisition() (snapshot SystemState, ok bool) {
	ok = true
	snapshot = m.commit(nil, func(s *SystemState) {
		if s.Tracking.Phase != TrackingOff {
			ok = false
			return
		}
		s.Tracking.SessionID = uuid.New()
		const defaultBox = 100.0
		box := RectPx{
			X: s.Aimpoint.ReticleXPx - defaultBox/2,
			Y: s.Aimpoint.ReticleYPx - defaultBox/2,
			W: defaultBox,
			H: defaultBox,
		}
		clampAcquisitionBox(&box, s.ImageSize)
		// clampAcquisitionBox recentres on the image; put the box back on
		// the reticle, kept inside the image.
		box.X = s.Aimpoint.ReticleXPx - box.W/2
		box.Y = s.Aimpoint.ReticleYPx - box.H/2
		if maxX := float64(s.ImageSize.WidthPx) - box.W; box.X > maxX {
			box.X = maxX
		}
		if maxY := float64(s.ImageSize.HeightPx) - box.H; box.Y > maxY {
			box.Y = maxY
		}
		box.X = max(box.X, 0)
		box.Y = max(box.Y, 0)
		s.Tracking.Phase = TrackingAcquisition
		s.Tracking.AcquisitionBox = box
		s.Tracking.HasValidTarget = false
	})
	return snapshot, ok
}

// AdjustAcquisitionBoxSize implements adjust_acquisition_box_size(dw,dh):
// clamps the resulting width/height to [20px, 0.8 * image dimension] and
// recentres the box on the image middle. Only valid during Acquisition.
func (m *Model) AdjustAcquisitionBoxSize(dw, dh float64) (snapshot SystemState, ok bool) {
	ok = true
	snapshot = m.commit(nil, func(s *SystemState) {
		if s.Tracking.Phase != TrackingAcquisition {
			ok = false
			return
		}
		box := s.Tracking.AcquisitionBox
		box.W += dw
		box.H += dh
		clampAcquisitionBox(&box, s.ImageSize)
		s.Tracking.AcquisitionBox = box
	})
	return snapshot, ok
}

func clampAcquisitionBox(box *RectPx, image ImageSize) {
	const minDim = 20.0
	maxW := 0.8 * float64(image.WidthPx)
	maxH := 0.8 * float64(image.HeightPx)

	if box.W < minDim {
		box.W = minDim
	} else if box.W > maxW {
		box.W = maxW
	}
	if box.H < minDim {
		box.H = minDim
	} else if box.H > maxH {
		box.H = maxH
	}

	box.X = float64(image.WidthPx)/2 - box.W/2
	box.Y = float64(image.HeightPx)/2 - box.H/2
}

// RequestTrackerLockOn implements the Acquisition -> LockPending
// transition. Motion mode is left at Manual until a valid lock arrives
// from the pipeline.
func (m *Model) RequestTrackerLockOn() (snapshot SystemState, ok bool) {
	ok = true
	snapshot = m.commit(nil, func(s *SystemState) {
		if s.Tracking.Phase != TrackingAcquisition {
			ok = false
			return
		}
		s.Tracking.Phase = TrackingLockPending
	})
	return snapshot, ok
}

// StopTracking implements stop_tracking: from any tracking phase,
// transitions to Off with op_mode Surveillance and motion Manual.
func (m *Model) StopTracking() SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Tracking.Phase = TrackingOff
		s.Tracking.SessionID = uuid.Nil
		s.Tracking.HasValidTarget = false
		s.Tracking.lastUpdateSet = false
		s.OpMode = OpSurveillance
		s.MotionMode = MotionManual
	})
}

// UpdateTrackingResult implements update_tracking_result. cameraIsDay
// must match the model's currently active camera or the call is a
// no-op (tracker update isolation): nothing in the state changes, not
// even a DataChanged event.
func (m *Model) UpdateTrackingResult(
	cameraIsDay bool,
	hasLock bool,
	center PointPx,
	size SizePx,
	velocity Vector2,
	raw TrackerRawState,
) SystemState {
	m.mu.RLock()
	active := m.state.ActiveCameraIsDay
	m.mu.RUnlock()
	if cameraIsDay != active {
		return m.Snapshot()
	}

	return m.commit(nil, func(s *SystemState) {
		s.Tracking.RawState = raw
		now := time.Now()

		switch s.Tracking.Phase {
		case TrackingLockPending:
			switch raw {
			case TrackerTracked:
				s.Tracking.Phase = TrackingActiveLock
				s.OpMode = OpTracking
				s.MotionMode = MotionAutoTrack
				s.Tracking.HasValidTarget = hasLock
				applyTrackedUpdate(s, center, size, velocity, now)
			case TrackerLost:
				s.Tracking.Phase = TrackingOff
				s.OpMode = OpIdle
				s.MotionMode = MotionManual
				s.Tracking.HasValidTarget = false
			case TrackerNew:
				// keep waiting
			}

		case TrackingActiveLock:
			switch raw {
			case TrackerLost:
				s.Tracking.Phase = TrackingCoast
				s.MotionMode = MotionManual
				s.Tracking.HasValidTarget = false
			case TrackerTracked:
				s.Tracking.HasValidTarget = hasLock
				applyTrackedUpdate(s, center, size, velocity, now)
			case TrackerNew:
			}

		case TrackingCoast:
			switch raw {
			case TrackerTracked:
				s.Tracking.Phase = TrackingActiveLock
				s.MotionMode = MotionAutoTrack
				s.Tracking.HasValidTarget = hasLock
				applyTrackedUpdate(s, center, size, velocity, now)
			case TrackerLost, TrackerNew:
				// keep coasting
			}

		case TrackingFiring:
			if raw == TrackerTracked {
				applyTrackedUpdate(s, center, size, velocity, now)
			}
		}
	})
}

// applyTrackedUpdate writes the reported position/size directly and
// derives pixel-rate velocity from the elapsed time since the last
// Tracked update, per the target-velocity derivation algorithm. The
// caller-supplied velocity is used when the model has no prior centre to
// derive from yet.
func applyTrackedUpdate(s *SystemState, center PointPx, size SizePx, reported Vector2, now time.Time) {
	t := &s.Tracking
	if t.lastUpdateSet {
		dt := now.Sub(t.lastUpdateAt).Seconds()
		if dt > 0 {
			t.TargetVelocityPxPerS = Vector2{
				X: (center.X - t.lastCenterPx.X) / dt,
				Y: (center.Y - t.lastCenterPx.Y) / dt,
			}
		} else {
			t.TargetVelocityPxPerS = reported
		}
	} else {
		t.TargetVelocityPxPerS = reported
	}

	t.TargetCenterPx = center
	t.TargetSizePx = size
	t.lastCenterPx = center
	t.lastUpdateAt = now
	t.lastUpdateSet = true
}

// --- Ballistics ----------------------------------------------------------

// StartZeroing enters zeroing-edit mode. zeroing_applied is cleared,
// matching the invariant that applied implies not-active.
func (m *Model) StartZeroing() SystemState {
	return m.commit([]EventKind{ZeroingStateChanged}, func(s *SystemState) {
		s.Ballistics.ZeroingModeActive = true
		s.Ballistics.ZeroingApplied = false
	})
}

// ApplyZeroingAdjustment accumulates an in-progress zeroing edit. Only
// valid while zeroing mode is active.
func (m *Model) ApplyZeroingAdjustment(dAz, dEl float64) (snapshot SystemState, ok bool) {
	ok = true
	snapshot = m.commit(nil, func(s *SystemState) {
		if !s.Ballistics.ZeroingModeActive {
			ok = false
			return
		}
		s.Ballistics.ZeroingAzOffset += dAz
		s.Ballistics.ZeroingElOffset += dEl
	})
	return snapshot, ok
}

// FinalizeZeroing commits the in-progress edit: applied becomes true,
// mode becomes inactive, offsets are retained.
func (m *Model) FinalizeZeroing() SystemState {
	return m.commit([]EventKind{ZeroingStateChanged}, func(s *SystemState) {
		s.Ballistics.ZeroingModeActive = false
		s.Ballistics.ZeroingApplied = true
	})
}

// ClearZeroing discards any applied or in-progress zeroing offset.
func (m *Model) ClearZeroing() SystemState {
	return m.commit([]EventKind{ZeroingStateChanged}, func(s *SystemState) {
		s.Ballistics.ZeroingModeActive = false
		s.Ballistics.ZeroingApplied = false
		s.Ballistics.ZeroingAzOffset = 0
		s.Ballistics.ZeroingElOffset = 0
	})
}

// StartWindage enters windage-edit mode, clearing any previously applied
// value's "applied" flag the same way StartZeroing does.
func (m *Model) StartWindage() SystemState {
	return m.commit([]EventKind{WindageStateChanged}, func(s *SystemState) {
		s.Ballistics.WindageModeActive = true
		s.Ballistics.WindageApplied = false
	})
}

// SetWindageSpeed sets the in-progress windage speed in knots.
func (m *Model) SetWindageSpeed(knots float64) (snapshot SystemState, ok bool) {
	ok = true
	snapshot = m.commit([]EventKind{WindageStateChanged}, func(s *SystemState) {
		if !s.Ballistics.WindageModeActive {
			ok = false
			return
		}
		s.Ballistics.WindageSpeedKnots = knots
	})
	return snapshot, ok
}

// FinalizeWindage commits the in-progress windage edit.
func (m *Model) FinalizeWindage() SystemState {
	return m.commit([]EventKind{WindageStateChanged}, func(s *SystemState) {
		s.Ballistics.WindageModeActive = false
		s.Ballistics.WindageApplied = true
	})
}

// ClearWindage discards any applied or in-progress windage value.
func (m *Model) ClearWindage() SystemState {
	return m.commit([]EventKind{WindageStateChanged}, func(s *SystemState) {
		s.Ballistics.WindageModeActive = false
		s.Ballistics.WindageApplied = false
		s.Ballistics.WindageSpeedKnots = 0
	})
}

// SetLeadAngleCompensationActive enables or disables LAC outright. A
// disable also zeroes the offsets, preserving the invariant that LAC
// offsets are zero whenever lead_angle_active is false.
func (m *Model) SetLeadAngleCompensationActive(active bool) SystemState {
	return m.commit([]EventKind{LeadAngleStateChanged}, func(s *SystemState) {
		s.Ballistics.LeadAngleActive = active
		if !active {
			s.Ballistics.LeadAngleStatus = LeadOff
			s.Ballistics.LeadAngleOffsetAz = 0
			s.Ballistics.LeadAngleOffsetEl = 0
		}
	})
}

// UpdateCalculatedLeadOffsets implements update_calculated_lead_offsets:
// the weapon controller calls this with the ballistics.Processor's
// output every engagement cycle while LAC is active.
func (m *Model) UpdateCalculatedLeadOffsets(azDeg, elDeg float64, status LeadAngleStatus) SystemState {
	return m.commit([]EventKind{LeadAngleStateChanged}, func(s *SystemState) {
		s.Ballistics.LeadAngleOffsetAz = azDeg
		s.Ballistics.LeadAngleOffsetEl = elDeg
		s.Ballistics.LeadAngleStatus = status
	})
}

// SetDeadmanSwitch implements set_deadman_switch: the joystick
// controller reports the physical trigger/deadman button's live state
// each time it changes; the fire-permission predicate reads it directly.
func (m *Model) SetDeadmanSwitch(active bool) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Safety.DeadmanSwitchActive = active
	})
}

// UpdateCameraOpticsAndActivity implements
// update_camera_optics_and_activity(w, h, day_hfov, night_hfov, active_is_day).
func (m *Model) UpdateCameraOpticsAndActivity(widthPx, heightPx int, dayHFOVDeg, nightHFOVDeg float64, activeIsDay bool) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.ImageSize = ImageSize{WidthPx: widthPx, HeightPx: heightPx}
		s.DayCamera.HFOVDeg = dayHFOVDeg
		s.NightCamera.HFOVDeg = nightHFOVDeg
		s.ActiveCameraIsDay = activeIsDay
	})
}

// --- Queries -------------------------------------------------------------

// IsPointInNoFireZone implements is_point_in_no_fire_zone(az, el, range).
func (m *Model) IsPointInNoFireZone(azDeg, elDeg, rangeM float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pointInZoneOfType(m.state.AreaZones, ZoneNoFire, azDeg, elDeg, rangeM, true)
}

// IsPointInNoTraverseZone implements is_point_in_no_traverse_zone(az, el).
// No-traverse membership is independent of range.
func (m *Model) IsPointInNoTraverseZone(azDeg, elDeg float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pointInZoneOfType(m.state.AreaZones, ZoneNoTraverse, azDeg, elDeg, 0, false)
}

// SetReticleZoneFlags records whether the current aimpoint falls inside
// a no-fire or no-traverse zone, as last evaluated by a controller's
// control-cycle query against IsPointInNoFireZone/IsPointInNoTraverseZone.
func (m *Model) SetReticleZoneFlags(inNoFire, inNoTraverse bool) SystemState {
	return m.commit(nil, func(s *SystemState) {
		s.Safety.IsReticleInNoFireZone = inNoFire
		s.Safety.IsReticleInNoTraverseZone = inNoTraverse
	})
}

func pointInZoneOfType(zones []AreaZone, want AreaZoneType, azDeg, elDeg, rangeM float64, checkRange bool) bool {
	for _, z := range zones {
		if z.Type != want || !z.IsEnabled {
			continue
		}
		if !inAzimuthRange(azDeg, z.StartAzDeg, z.EndAzDeg) {
			continue
		}
		if elDeg < z.MinElDeg || elDeg > z.MaxElDeg {
			continue
		}
		if checkRange && z.HasRange {
			if rangeM < z.MinRangeM || rangeM > z.MaxRangeM {
				continue
			}
		}
		return true
	}
	return false
}
