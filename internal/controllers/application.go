package controllers

import (
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
)

// PanelButton is one of the five physical panel inputs the application
// controller interprets.
type PanelButton int

const (
	PanelMenuVal PanelButton = iota
	PanelUp
	PanelDown
	PanelSelect
	PanelBack
)

// Screen names one top-level menu or procedure sub-controller. Each
// owns its own finite set of states and mutates SystemState only
// through the model's narrow named operations.
type Screen int

const (
	ScreenMainMenu Screen = iota
	ScreenReticleMenu
	ScreenColourMenu
	ScreenZeroing
	ScreenWindage
	ScreenZoneDefinition
	ScreenSystemStatus
	ScreenAbout
)

var mainMenuItems = []Screen{
	ScreenReticleMenu, ScreenColourMenu, ScreenZeroing, ScreenWindage,
	ScreenZoneDefinition, ScreenSystemStatus, ScreenAbout,
}

var reticleTypes = []string{"standard", "mil-dot", "crosshair"}
var colorStyles = []string{"default", "high-contrast", "night"}

// ApplicationController owns the current screen and each sub-menu's
// cursor position; it is the only thing that reads panel button events
// outside of the gimbal/weapon/tracking hot paths.
type ApplicationController struct {
	model  *state.Model
	log    logger.Logger
	screen Screen

	mainMenuCursor    int
	reticleCursor     int
	colorCursor       int
	zoneDefController *ZoneDefinitionController
}

func NewApplicationController(model *state.Model, zoneDef *ZoneDefinitionController, log logger.Logger) *ApplicationController {
	return &ApplicationController{model: model, log: log.WithPrefix("controllers.application"), zoneDefController: zoneDef}
}

// OnPanelButton dispatches one button press to the active screen.
func (c *ApplicationController) OnPanelButton(button PanelButton) {
	switch c.screen {
	case ScreenMainMenu:
		c.onMainMenu(button)
	case ScreenReticleMenu:
		c.onReticleMenu(button)
	case ScreenColourMenu:
		c.onColourMenu(button)
	case ScreenZeroing:
		c.onZeroing(button)
	case ScreenWindage:
		c.onWindage(button)
	case ScreenZoneDefinition:
		c.zoneDefController.OnPanelButton(button)
		if button == PanelBack && c.zoneDefController.Done() {
			c.screen = ScreenMainMenu
		}
	default: // SystemStatus, About
		if button == PanelBack || button == PanelMenuVal {
			c.screen = ScreenMainMenu
		}
	}
}

func (c *ApplicationController) onMainMenu(button PanelButton) {
	switch button {
	case PanelUp:
		c.mainMenuCursor = wrapIndex(c.mainMenuCursor-1, len(mainMenuItems))
	case PanelDown:
		c.mainMenuCursor = wrapIndex(c.mainMenuCursor+1, len(mainMenuItems))
	case PanelSelect, PanelMenuVal:
		c.enterScreen(mainMenuItems[c.mainMenuCursor])
	}
}

func (c *ApplicationController) enterScreen(screen Screen) {
	c.screen = screen
	switch screen {
	case ScreenZeroing:
		c.model.StartZeroing()
	case ScreenWindage:
		c.model.StartWindage()
	case ScreenZoneDefinition:
		c.zoneDefController.Reset()
	}
}

func (c *ApplicationController) onReticleMenu(button PanelButton) {
	switch button {
	case PanelUp:
		c.reticleCursor = wrapIndex(c.reticleCursor-1, len(reticleTypes))
	case PanelDown:
		c.reticleCursor = wrapIndex(c.reticleCursor+1, len(reticleTypes))
	case PanelSelect, PanelMenuVal:
		c.model.Update(withReticleType(c.model.Snapshot(), reticleTypes[c.reticleCursor]))
	case PanelBack:
		c.screen = ScreenMainMenu
	}
}

func (c *ApplicationController) onColourMenu(button PanelButton) {
	switch button {
	case PanelUp:
		c.colorCursor = wrapIndex(c.colorCursor-1, len(colorStyles))
	case PanelDown:
		c.colorCursor = wrapIndex(c.colorCursor+1, len(colorStyles))
	case PanelSelect, PanelMenuVal:
		c.model.Update(withColorStyle(c.model.Snapshot(), colorStyles[c.colorCursor]))
	case PanelBack:
		c.screen = ScreenMainMenu
	}
}

// onZeroing implements the zeroing procedure: up/down nudge elevation
// offset, menu-val commits, back discards.
func (c *ApplicationController) onZeroing(button PanelButton) {
	const stepDeg = 0.05
	switch button {
	case PanelUp:
		c.model.ApplyZeroingAdjustment(0, stepDeg)
	case PanelDown:
		c.model.ApplyZeroingAdjustment(0, -stepDeg)
	case PanelMenuVal:
		c.model.FinalizeZeroing()
		c.screen = ScreenMainMenu
	case PanelBack:
		c.model.ClearZeroing()
		c.screen = ScreenMainMenu
	}
}

// onWindage implements the windage procedure: up/down adjust the
// estimated crosswind speed in one-knot steps.
func (c *ApplicationController) onWindage(button PanelButton) {
	snap := c.model.Snapshot()
	switch button {
	case PanelUp:
		c.model.SetWindageSpeed(snap.Ballistics.WindageSpeedKnots + 1)
	case PanelDown:
		c.model.SetWindageSpeed(snap.Ballistics.WindageSpeedKnots - 1)
	case PanelMenuVal:
		c.model.FinalizeWindage()
		c.screen = ScreenMainMenu
	case PanelBack:
		c.model.ClearWindage()
		c.screen = ScreenMainMenu
	}
}

func wrapIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func withReticleType(s state.SystemState, reticle string) state.SystemState {
	s.ReticleType = reticle
	return s
}

func withColorStyle(s state.SystemState, style string) state.SystemState {
	s.ColorStyle = style
	s.OSDColorStyle = style
	return s
}
