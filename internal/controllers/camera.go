package controllers

import (
	"github.com/ironfathom/stationctl/internal/device"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
)

// CameraController owns day/night camera switching and zoom/focus
// command dispatch. It does not itself decide when to switch — it
// reacts to the panel's switch_camera discrete input edge and the
// joystick's zoom/focus axis, keeping the state model's active-camera
// flag and published image geometry in sync with whichever sensor is live.
type CameraController struct {
	model      *state.Model
	dayCamera  *device.DayCamera
	nightCamera *device.NightCamera
	log        logger.Logger

	lastSwitchCamera bool
	zoomActive       bool
	focusActive      bool
}

func NewCameraController(model *state.Model, day *device.DayCamera, night *device.NightCamera, log logger.Logger) *CameraController {
	return &CameraController{model: model, dayCamera: day, nightCamera: night, log: log.WithPrefix("controllers.camera")}
}

// Tick toggles the active camera on switch_camera's rising edge and
// republishes the new active camera's HFOV/image geometry.
func (c *CameraController) Tick(switchCameraInput bool) {
	if switchCameraInput && !c.lastSwitchCamera {
		c.toggleActiveCamera()
	}
	c.lastSwitchCamera = switchCameraInput
}

func (c *CameraController) toggleActiveCamera() {
	snap := c.model.Snapshot()
	c.model.UpdateCameraOpticsAndActivity(
		snap.ImageSize.WidthPx, snap.ImageSize.HeightPx,
		snap.DayCamera.HFOVDeg, snap.NightCamera.HFOVDeg,
		!snap.ActiveCameraIsDay,
	)
}

// OnZoomAxis drives the active camera's zoom motor; only the day
// camera has a motorised zoom lens, the thermal camera's FOV is fixed.
func (c *CameraController) OnZoomAxis(value float64) {
	const deadzone = 0.1
	switch {
	case value > deadzone:
		c.dayCamera.Zoom(true)
		c.zoomActive = true
	case value < -deadzone:
		c.dayCamera.Zoom(false)
		c.zoomActive = true
	case c.zoomActive:
		c.dayCamera.StopZoom()
		c.zoomActive = false
	}
}

// OnFocusAxis drives the day camera's focus motor.
func (c *CameraController) OnFocusAxis(value float64) {
	const deadzone = 0.1
	switch {
	case value > deadzone:
		c.dayCamera.Focus(true)
		c.focusActive = true
	case value < -deadzone:
		c.dayCamera.Focus(false)
		c.focusActive = true
	case c.focusActive:
		c.dayCamera.StopFocus()
		c.focusActive = false
	}
}

// RunThermalFFC triggers the night camera's flat-field correction cycle.
func (c *CameraController) RunThermalFFC() {
	c.nightCamera.RunFFC()
}

// CycleThermalLUT advances the night camera's colour LUT by one,
// wrapping back to 0 past the last index.
func (c *CameraController) CycleThermalLUT() {
	snap := c.model.Snapshot()
	c.nightCamera.SetLUTIndex(wrapIndex(snap.NightCamera.LUTIndex+1, thermalLUTCount))
}

const thermalLUTCount = 13
