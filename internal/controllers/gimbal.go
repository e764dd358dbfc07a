// Package controllers holds the UI-thread logic that interprets
// operator input and tracking/ballistics results into state-model
// mutations and device commands: the gimbal, weapon, camera, joystick,
// and application/procedure controllers.
package controllers

import (
	"math"
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/device"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
)

// servoRawCountsPerDegPerS converts a commanded degrees-per-second rate
// into the raw speed units written to PLC42's speed holding registers.
const servoRawCountsPerDegPerS = 100.0

// GimbalController translates the active motion mode plus joystick or
// procedure input into axis velocity commands, enforcing the
// no-traverse zone and mechanical rate limits before they reach PLC42.
type GimbalController struct {
	model *state.Model
	plc42 *device.PLC42
	lrf   *device.LRF
	cfg   config.GimbalConfig
	log   logger.Logger

	autoTrackAzIntegral float64
	autoTrackElIntegral float64

	sectorDirection int // +1 sweeping toward az2, -1 toward az1

	trpIndex      int
	trpDwellUntil time.Time
	trpArrived    bool

	radarSlewActive   bool
	radarSlewReturnTo state.MotionMode
}

func NewGimbalController(model *state.Model, plc42 *device.PLC42, lrf *device.LRF, cfg config.GimbalConfig, log logger.Logger) *GimbalController {
	return &GimbalController{model: model, plc42: plc42, lrf: lrf, cfg: cfg, log: log.WithPrefix("controllers.gimbal"), sectorDirection: 1}
}

// Tick runs one control cycle; the caller drives this at a fixed period
// (the same cadence PLC42's poll timer refreshes gimbal telemetry).
func (c *GimbalController) Tick(dt time.Duration) {
	snap := c.model.Snapshot()

	var azRateDps, elRateDps float64
	switch snap.MotionMode {
	case state.MotionManual:
		azRateDps, elRateDps = c.manualRates(snap)
	case state.MotionAutoTrack:
		azRateDps, elRateDps = c.autoTrackRates(snap, dt)
	case state.MotionAutoSectorScan:
		azRateDps, elRateDps = c.sectorScanRates(snap)
	case state.MotionTRPScan:
		azRateDps, elRateDps = c.trpScanRates(snap)
	case state.MotionRadarSlew:
		if c.Arrived(snap) {
			c.model.SetMotionMode(snap.PreviousMotionMode)
		} else {
			azRateDps, elRateDps = c.radarSlewRates(snap)
		}
	default:
		azRateDps, elRateDps = 0, 0
	}

	azRateDps = clamp(azRateDps, -c.cfg.MaxAzRateDps, c.cfg.MaxAzRateDps)
	elRateDps = clamp(elRateDps, -c.cfg.MaxElRateDps, c.cfg.MaxElRateDps)

	targetAz := snap.Gimbal.AzDeg + azRateDps*dt.Seconds()
	inNoTraverse := c.model.IsPointInNoTraverseZone(targetAz, snap.Gimbal.ElDeg)
	if inNoTraverse {
		azRateDps = 0
	}
	inNoFire := c.model.IsPointInNoFireZone(snap.Gimbal.AzDeg, snap.Gimbal.ElDeg, c.lrf.LastRangeM())
	c.model.SetReticleZoneFlags(inNoFire, inNoTraverse)

	c.commandVelocity(azRateDps, elRateDps)
}

func (c *GimbalController) manualRates(snap state.SystemState) (float64, float64) {
	speedScale := c.cfg.DefaultSpeedPct
	return snap.Gimbal.JoystickAxisX * c.cfg.MaxAzRateDps * speedScale,
		snap.Gimbal.JoystickAxisY * c.cfg.MaxElRateDps * speedScale
}

// autoTrackRates drives the gimbal with a bounded PI controller per
// axis so the tracker's reported centre converges on the reticle
// aimpoint, using the pixel offset between the reticle and the tracked
// target centre as the error once a valid lock exists.
func (c *GimbalController) autoTrackRates(snap state.SystemState, dt time.Duration) (float64, float64) {
	if !snap.Tracking.HasValidTarget {
		c.autoTrackAzIntegral, c.autoTrackElIntegral = 0, 0
		return 0, 0
	}

	pixelsPerDeg := pixelsPerDegree(snap)
	if pixelsPerDeg <= 0 {
		return 0, 0
	}

	errAzPx := snap.Aimpoint.ReticleXPx - snap.Tracking.TargetCenterPx.X
	errElPx := snap.Aimpoint.ReticleYPx - snap.Tracking.TargetCenterPx.Y

	errAzDeg := errAzPx / pixelsPerDeg
	errElDeg := errElPx / pixelsPerDeg

	c.autoTrackAzIntegral += errAzDeg * dt.Seconds()
	c.autoTrackElIntegral += errElDeg * dt.Seconds()

	azRate := c.cfg.AutoTrackKp*errAzDeg + c.cfg.AutoTrackKi*c.autoTrackAzIntegral
	elRate := c.cfg.AutoTrackKp*errElDeg + c.cfg.AutoTrackKi*c.autoTrackElIntegral
	return azRate, elRate
}

func pixelsPerDegree(snap state.SystemState) float64 {
	hfov := snap.DayCamera.HFOVDeg
	if !snap.ActiveCameraIsDay {
		hfov = snap.NightCamera.HFOVDeg
	}
	if hfov <= 0 || snap.ImageSize.WidthPx <= 0 {
		return 0
	}
	return float64(snap.ImageSize.WidthPx) / hfov
}

// sectorScanRates sweeps azimuth between the selected sector scan
// zone's two corners at its configured speed, holding a constant
// elevation, reversing direction (ping-pong) at either endpoint.
func (c *GimbalController) sectorScanRates(snap state.SystemState) (float64, float64) {
	zone, ok := selectedSectorScanZone(snap)
	if !ok {
		return 0, 0
	}

	az := snap.Gimbal.AzDeg
	elTarget := zone.El1Deg
	elRate := clamp((elTarget-snap.Gimbal.ElDeg)*2, -c.cfg.MaxElRateDps, c.cfg.MaxElRateDps)

	if c.sectorDirection > 0 && withinDeg(az, zone.Az2Deg, 0.5) {
		c.sectorDirection = -1
	} else if c.sectorDirection < 0 && withinDeg(az, zone.Az1Deg, 0.5) {
		c.sectorDirection = 1
	}

	return float64(c.sectorDirection) * zone.ScanSpeedDps, elRate
}

func selectedSectorScanZone(snap state.SystemState) (state.SectorScanZone, bool) {
	for _, z := range snap.SectorScanZones {
		if z.ID == snap.SelectedSectorScanZoneID {
			return z, true
		}
	}
	return state.SectorScanZone{}, false
}

// trpScanRates slews to each TRP on the active page in turn, dwelling
// halt_time seconds once arrived before advancing to the next point.
func (c *GimbalController) trpScanRates(snap state.SystemState) (float64, float64) {
	trps := trpsOnPage(snap)
	if len(trps) == 0 {
		return 0, 0
	}
	if c.trpIndex >= len(trps) {
		c.trpIndex = 0
	}
	target := trps[c.trpIndex]

	arrived := withinDeg(snap.Gimbal.AzDeg, target.AzDeg, 0.5) && math.Abs(snap.Gimbal.ElDeg-target.ElDeg) < 0.5
	if arrived {
		if !c.trpArrived {
			c.trpArrived = true
			c.trpDwellUntil = time.Now().Add(time.Duration(target.HaltTimeS * float64(time.Second)))
		} else if time.Now().After(c.trpDwellUntil) {
			c.trpIndex = (c.trpIndex + 1) % len(trps)
			c.trpArrived = false
		}
		return 0, 0
	}
	c.trpArrived = false

	azRate := clamp(shortestAzDelta(snap.Gimbal.AzDeg, target.AzDeg)*2, -c.cfg.MaxAzRateDps, c.cfg.MaxAzRateDps)
	elRate := clamp((target.ElDeg-snap.Gimbal.ElDeg)*2, -c.cfg.MaxElRateDps, c.cfg.MaxElRateDps)
	return azRate, elRate
}

func trpsOnPage(snap state.SystemState) []state.TargetReferencePoint {
	var out []state.TargetReferencePoint
	for _, t := range snap.TRPs {
		if t.LocationPage == snap.SelectedTRPPage {
			out = append(out, t)
		}
	}
	return out
}

// radarSlewRates commands a one-shot slew to the selected radar
// track's bearing; Tick reverts to the previous motion mode once
// Arrived reports convergence.
func (c *GimbalController) radarSlewRates(snap state.SystemState) (float64, float64) {
	track, ok := selectedRadarTrack(snap)
	if !ok {
		return 0, 0
	}
	azRate := clamp(shortestAzDelta(snap.Gimbal.AzDeg, track.BearingDeg)*2, -c.cfg.MaxAzRateDps, c.cfg.MaxAzRateDps)
	return azRate, 0
}

// Arrived reports whether a RadarSlew has converged on its target
// bearing closely enough for Tick to revert to the prior motion mode
// (also true when no selected track is present).
func (c *GimbalController) Arrived(snap state.SystemState) bool {
	if snap.MotionMode != state.MotionRadarSlew {
		return false
	}
	track, ok := selectedRadarTrack(snap)
	if !ok {
		return true
	}
	return withinDeg(snap.Gimbal.AzDeg, track.BearingDeg, 0.5)
}

func selectedRadarTrack(snap state.SystemState) (state.RadarPlot, bool) {
	for _, p := range snap.RadarPlots {
		if p.TrackID == snap.SelectedRadarTrackID {
			return p, true
		}
	}
	return state.RadarPlot{}, false
}

func shortestAzDelta(from, to float64) float64 {
	d := math.Mod(to-from+540, 360) - 180
	return d
}

func withinDeg(a, b, tol float64) bool {
	return math.Abs(shortestAzDelta(a, b)) <= tol
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// commandVelocity converts the computed az/el rates into PLC42's raw
// speed-magnitude-plus-direction holding register pair and writes them.
func (c *GimbalController) commandVelocity(azRateDps, elRateDps float64) {
	azRaw := uint16(math.Abs(azRateDps) * servoRawCountsPerDegPerS)
	elRaw := uint16(math.Abs(elRateDps) * servoRawCountsPerDegPerS)
	_ = c.plc42.WriteGimbalVelocity(azRaw, elRaw, azRateDps >= 0, elRateDps >= 0)
}
