// Package models holds the thin projections built from a device or
// state-model snapshot for a downstream consumer: FrameData is built
// once per camera frame from the current SystemState snapshot plus
// that frame's tracker/detector output, and handed to the OSD renderer.
package models

import (
	"github.com/ironfathom/stationctl/internal/state"
)

// Detection is one object-detector result for a single frame.
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	Box        state.RectPx
}

// FrameData is the per-frame snapshot handed to the OSD renderer and
// UI: every overlay input needed to draw over that frame (the image
// itself is not carried), assembled without retaining a reference back
// into the state model.
type FrameData struct {
	CameraIsDay bool

	BBoxValid bool
	BBox      state.RectPx
	TrackerRaw state.TrackerRawState

	OpMode     state.OpMode
	MotionMode state.MotionMode

	GimbalAzDeg float64
	GimbalElDeg float64
	CameraHFOVDeg float64
	LRFDistanceM float64

	StationEnabled bool
	GunArmed       bool
	MayFire        bool

	FireMode     state.FireMode
	ReticleType  string
	ColorStyle   string

	Detections []Detection

	ZeroingActive   bool
	WindageActive   bool
	LeadAngleActive bool
	LeadAngleStatus state.LeadAngleStatus

	ReticleXPx float64
	ReticleYPx float64

	ZeroingStatusText string
	LeadStatusText    string

	TrackingPhase  state.TrackingPhase
	AcquisitionBox state.RectPx

	IsReticleInNoTraverseZone bool
}

// BuildFrameData projects the given SystemState snapshot and this
// frame's tracker/detector output into a FrameData record. lrfDistanceM
// is supplied by the caller since range is not itself part of the
// invariant-bearing state record.
func BuildFrameData(snap state.SystemState, cameraIsDay bool, bboxValid bool, bbox state.RectPx, raw state.TrackerRawState, detections []Detection, lrfDistanceM float64) FrameData {
	fd := FrameData{
		CameraIsDay:     cameraIsDay,
		BBoxValid:       bboxValid,
		BBox:            bbox,
		TrackerRaw:      raw,
		OpMode:          snap.OpMode,
		MotionMode:      snap.MotionMode,
		GimbalAzDeg:     snap.Gimbal.AzDeg,
		GimbalElDeg:     snap.Gimbal.ElDeg,
		LRFDistanceM:    lrfDistanceM,
		StationEnabled:  snap.Safety.StationEnabled,
		GunArmed:        snap.Safety.GunArmed,
		MayFire:         snap.Safety.MayFire(),
		FireMode:        snap.FireMode,
		ReticleType:     snap.ReticleType,
		ColorStyle:      snap.ColorStyle,
		Detections:      detections,
		ZeroingActive:   snap.Ballistics.ZeroingModeActive,
		WindageActive:   snap.Ballistics.WindageModeActive,
		LeadAngleActive: snap.Ballistics.LeadAngleActive,
		LeadAngleStatus: snap.Ballistics.LeadAngleStatus,
		ReticleXPx:      snap.Aimpoint.ReticleXPx,
		ReticleYPx:      snap.Aimpoint.ReticleYPx,
		ZeroingStatusText: snap.Aimpoint.ZeroingStatusText,
		LeadStatusText:    snap.Aimpoint.LeadStatusText,
		TrackingPhase:   snap.Tracking.Phase,
		AcquisitionBox:  snap.Tracking.AcquisitionBox,
		IsReticleInNoTraverseZone: snap.Safety.IsReticleInNoTraverseZone,
	}

	if cameraIsDay {
		fd.CameraHFOVDeg = snap.DayCamera.HFOVDeg
	} else {
		fd.CameraHFOVDeg = snap.NightCamera.HFOVDeg
	}

	return fd
}
