package controllers

import (
	"github.com/ironfathom/stationctl/internal/ballistics"
	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/device"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
)

// WeaponController drives the ammunition load/clear sequences, maps
// the selected fire mode to PLC42's solenoid-mode code, and — while
// lead-angle compensation is active — periodically calls the
// ballistics processor and writes the result back into the state model.
type WeaponController struct {
	model     *state.Model
	actuator  *device.Actuator
	plc42     *device.PLC42
	lrf       *device.LRF
	processor         *ballistics.Processor
	muzzleVelocityMps float64
	log               logger.Logger

	lastFireMode state.FireMode
	lastTofS     float64
	loadBusy     bool
	clearBusy    bool
}

func NewWeaponController(model *state.Model, actuator *device.Actuator, plc42 *device.PLC42, lrf *device.LRF, cfg config.BallisticsConfig, log logger.Logger) *WeaponController {
	return &WeaponController{
		model:             model,
		actuator:          actuator,
		plc42:             plc42,
		lrf:               lrf,
		processor:         ballistics.NewProcessor(cfg.LagTofThresholdS, cfg.ZoomOutFovFraction),
		muzzleVelocityMps: cfg.MuzzleVelocityMps,
		log:               log.WithPrefix("controllers.weapon"),
	}
}

// LoadAmmo starts the load sequence unless a sequence is already running.
func (c *WeaponController) LoadAmmo() {
	if c.loadBusy || c.clearBusy {
		return
	}
	c.loadBusy = true
	c.actuator.StartLoadSequence(func() { c.loadBusy = false })
}

// ClearAmmo starts the clear sequence unless a sequence is already running.
func (c *WeaponController) ClearAmmo() {
	if c.loadBusy || c.clearBusy {
		return
	}
	c.clearBusy = true
	c.actuator.StartClearSequence(func() { c.clearBusy = false })
}

// Tick runs one control cycle: it pushes the current fire mode's
// solenoid code to PLC42 on change, and, while LAC is active, recomputes
// the lead-angle offsets from the current engagement geometry.
func (c *WeaponController) Tick() {
	snap := c.model.Snapshot()

	if snap.FireMode != c.lastFireMode {
		if err := c.plc42.WriteSolenoidMode(snap.FireMode.SolenoidCode()); err != nil {
			c.log.Warnf("solenoid mode write failed: %v", err)
		} else {
			c.lastFireMode = snap.FireMode
		}
	}

	if !snap.Ballistics.LeadAngleActive {
		c.lastTofS = 0
		return
	}

	rangeM := c.lrf.LastRangeM()
	hfov := snap.DayCamera.HFOVDeg
	if !snap.ActiveCameraIsDay {
		hfov = snap.NightCamera.HFOVDeg
	}
	azRateDps := snap.Tracking.TargetVelocityPxPerS.X / pixelsPerDegreeOrOne(snap)
	elRateDps := snap.Tracking.TargetVelocityPxPerS.Y / pixelsPerDegreeOrOne(snap)

	leadAz, leadEl, status := c.processor.Compute(rangeM, azRateDps, elRateDps, c.muzzleVelocityMps, c.lastTofS, hfov)
	c.lastTofS = rangeM / c.muzzleVelocityMps

	c.model.UpdateCalculatedLeadOffsets(leadAz, leadEl, leadStatusFromBallistics(status))
}

// MayFireNow is the weapon controller's own gate check before issuing a
// fire command, delegating to the state model's fire-permission predicate.
func (c *WeaponController) MayFireNow() bool {
	return c.model.Snapshot().Safety.MayFire()
}

// Fire pulses the solenoid if the fire-permission predicate currently
// holds; it is a no-op otherwise so the caller (the joystick trigger
// handler) never needs to duplicate the permission check.
func (c *WeaponController) Fire() {
	if !c.MayFireNow() {
		return
	}
	if err := c.plc42.WriteSolenoidState(true); err != nil {
		c.log.Warnf("solenoid fire pulse failed: %v", err)
	}
}

// CeaseFire releases the solenoid trigger; called on the fire button's
// release edge.
func (c *WeaponController) CeaseFire() {
	if err := c.plc42.WriteSolenoidState(false); err != nil {
		c.log.Warnf("solenoid cease-fire write failed: %v", err)
	}
}

func pixelsPerDegreeOrOne(snap state.SystemState) float64 {
	if v := pixelsPerDegree(snap); v > 0 {
		return v
	}
	return 1
}

func leadStatusFromBallistics(s ballistics.Status) state.LeadAngleStatus {
	switch s {
	case ballistics.StatusOn:
		return state.LeadOn
	case ballistics.StatusLag:
		return state.LeadLag
	case ballistics.StatusZoomOut:
		return state.LeadZoomOut
	default:
		return state.LeadOff
	}
}
