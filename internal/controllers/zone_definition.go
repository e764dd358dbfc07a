package controllers

import "github.com/ironfathom/stationctl/internal/state"

// zoneDefStep is one step of the panel-driven zone-definition
// procedure: pick a zone kind, then walk its corner points using the
// gimbal's live azimuth/elevation as each point's value.
type zoneDefStep int

const (
	zoneDefPickKind zoneDefStep = iota
	zoneDefCorner1
	zoneDefCorner2
	zoneDefConfirm
	zoneDefDone
)

type zoneKind int

const (
	zoneKindAreaNoFire zoneKind = iota
	zoneKindAreaNoTraverse
	zoneKindSectorScan
)

var zoneDefKinds = []zoneKind{zoneKindAreaNoFire, zoneKindAreaNoTraverse, zoneKindSectorScan}

// ZoneDefinitionController drives the panel's zone-definition procedure:
// pick a zone type, capture the gimbal's current position as each
// corner, then commit via the model's add operations. Controllers
// operate on copies and commit through add/modify/delete, never by
// mutating the zone lists directly.
type ZoneDefinitionController struct {
	model *state.Model

	step      zoneDefStep
	kindIdx   int
	corner1Az float64
	corner1El float64
}

func NewZoneDefinitionController(model *state.Model) *ZoneDefinitionController {
	return &ZoneDefinitionController{model: model}
}

// Reset restarts the procedure from the kind-selection step.
func (c *ZoneDefinitionController) Reset() {
	c.step = zoneDefPickKind
	c.kindIdx = 0
}

// Done reports whether the procedure has committed or been cancelled.
func (c *ZoneDefinitionController) Done() bool { return c.step == zoneDefDone }

func (c *ZoneDefinitionController) OnPanelButton(button PanelButton) {
	switch c.step {
	case zoneDefPickKind:
		c.onPickKind(button)
	case zoneDefCorner1:
		c.onCorner1(button)
	case zoneDefCorner2:
		c.onCorner2(button)
	case zoneDefConfirm:
		c.onConfirm(button)
	}
}

func (c *ZoneDefinitionController) onPickKind(button PanelButton) {
	switch button {
	case PanelUp:
		c.kindIdx = wrapIndex(c.kindIdx-1, len(zoneDefKinds))
	case PanelDown:
		c.kindIdx = wrapIndex(c.kindIdx+1, len(zoneDefKinds))
	case PanelSelect, PanelMenuVal:
		c.step = zoneDefCorner1
	case PanelBack:
		c.step = zoneDefDone
	}
}

func (c *ZoneDefinitionController) onCorner1(button PanelButton) {
	switch button {
	case PanelMenuVal:
		snap := c.model.Snapshot()
		c.corner1Az, c.corner1El = snap.Gimbal.AzDeg, snap.Gimbal.ElDeg
		c.step = zoneDefCorner2
	case PanelBack:
		c.step = zoneDefDone
	}
}

func (c *ZoneDefinitionController) onCorner2(button PanelButton) {
	switch button {
	case PanelMenuVal:
		c.step = zoneDefConfirm
	case PanelBack:
		c.step = zoneDefDone
	}
}

func (c *ZoneDefinitionController) onConfirm(button PanelButton) {
	switch button {
	case PanelSelect, PanelMenuVal:
		c.commit()
		c.step = zoneDefDone
	case PanelBack:
		c.step = zoneDefDone
	}
}

func (c *ZoneDefinitionController) commit() {
	snap := c.model.Snapshot()
	az2, el2 := snap.Gimbal.AzDeg, snap.Gimbal.ElDeg

	switch zoneDefKinds[c.kindIdx] {
	case zoneKindAreaNoFire:
		c.model.AddAreaZone(state.AreaZone{
			Type: state.ZoneNoFire, IsEnabled: true, IsOverridable: true,
			StartAzDeg: c.corner1Az, EndAzDeg: az2,
			MinElDeg: minOf(c.corner1El, el2), MaxElDeg: maxOf(c.corner1El, el2),
			Name: "operator-defined no-fire zone",
		})
	case zoneKindAreaNoTraverse:
		c.model.AddAreaZone(state.AreaZone{
			Type: state.ZoneNoTraverse, IsEnabled: true, IsOverridable: true,
			StartAzDeg: c.corner1Az, EndAzDeg: az2,
			MinElDeg: minOf(c.corner1El, el2), MaxElDeg: maxOf(c.corner1El, el2),
			Name: "operator-defined no-traverse zone",
		})
	case zoneKindSectorScan:
		c.model.AddSectorScanZone(state.SectorScanZone{
			IsEnabled: true,
			Az1Deg:    c.corner1Az, El1Deg: c.corner1El,
			Az2Deg: az2, El2Deg: el2,
			ScanSpeedDps: 10,
			Name:         "operator-defined sector scan",
		})
	}
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
