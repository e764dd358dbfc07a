package controllers

import "github.com/ironfathom/stationctl/internal/state"

// Joystick button/hat assignments. These are the panel's own physical
// mapping (documented on the station's wiring diagram), not a
// configurable layer — the original hardware bonds them in firmware.
const (
	ButtonDeadman    = 0
	ButtonLockOn     = 1
	ButtonFire       = 2
	ButtonEngagement = 3
)

// JoystickController translates raw joystick button/hat events into
// state-model transitions. Axis values are merged directly into
// SystemState by the device layer (OnJoystickAxis) and read by
// GimbalController.manualRates, so this controller only owns the
// discrete, edge-triggered inputs.
type JoystickController struct {
	model *state.Model
	app   *ApplicationController
	fire  func(pressed bool)
}

func NewJoystickController(model *state.Model, app *ApplicationController, fire func(pressed bool)) *JoystickController {
	return &JoystickController{model: model, app: app, fire: fire}
}

// OnButton handles one button edge. Hat events drive menu navigation
// via the application controller instead, matching the panel's actual
// input surface (the hat is the menu d-pad, not a 5th/6th axis).
func (c *JoystickController) OnButton(button int, pressed bool) {
	switch button {
	case ButtonDeadman:
		c.model.SetDeadmanSwitch(pressed)
	case ButtonLockOn:
		if pressed {
			c.onLockOn()
		}
	case ButtonFire:
		if c.fire != nil {
			c.fire(pressed)
		}
	case ButtonEngagement:
		c.model.CommandEngagement(pressed)
	}
}

func (c *JoystickController) onLockOn() {
	snap := c.model.Snapshot()
	switch snap.Tracking.Phase {
	case state.TrackingOff:
		c.model.StartTrackingAcquisition()
	case state.TrackingAcquisition:
		c.model.RequestTrackerLockOn()
	default:
		c.model.StopTracking()
	}
}

// OnHat routes the panel d-pad to the active menu/procedure
// sub-controller via the application controller.
func (c *JoystickController) OnHat(hat int) {
	switch hat {
	case 1:
		c.app.OnPanelButton(PanelUp)
	case 4:
		c.app.OnPanelButton(PanelDown)
	}
}
