// Package ballistics holds the two pure, deterministic functions that
// translate gun-offset and engagement geometry into reticle pixels and
// lead-angle degrees. Neither function holds state or depends on the
// station's state model; both are kept in separate files here the same
// way the original keeps them in separate translation units.
package ballistics

import "math"

// ReticleInputs is everything the aimpoint calculation reads. LeadApplies
// mirrors "status in {On, Lag, ZoomOut}" — callers translate their own
// lead-angle status enum into this single boolean so this package has no
// dependency on the state model's types.
type ReticleInputs struct {
	ImageWidthPx  float64
	ImageHeightPx float64
	HFOVDeg       float64

	ZeroingApplied bool
	ZeroingAzDeg   float64
	ZeroingElDeg   float64

	LeadActive  bool
	LeadApplies bool
	LeadAzDeg   float64
	LeadElDeg   float64
}

// ReticlePoint is the derived reticle aimpoint in image pixels.
type ReticlePoint struct {
	XPx float64
	YPx float64
}

// ComputeAimpoint derives pixels-per-degree on each axis from image size
// and HFOV, accumulates the zeroing and lead-angle pixel shifts, and
// returns the final reticle position. A right-ward gun offset moves the
// reticle leftward on screen; an upward gun offset moves it down in
// screen coordinates — hence the negated azimuth term and the positive
// elevation term below. Calling this twice with identical inputs always
// yields identical output: it reads nothing but its arguments.
func ComputeAimpoint(in ReticleInputs) ReticlePoint {
	ppdAz := in.ImageWidthPx / in.HFOVDeg

	hfovRad := in.HFOVDeg * math.Pi / 180
	aspect := in.ImageWidthPx / in.ImageHeightPx
	vfovRad := 2 * math.Atan(math.Tan(hfovRad/2)/aspect)
	vfovDeg := vfovRad * 180 / math.Pi
	ppdEl := in.ImageHeightPx / vfovDeg

	var shiftX, shiftY float64
	if in.ZeroingApplied {
		shiftX += -in.ZeroingAzDeg * ppdAz
		shiftY += in.ZeroingElDeg * ppdEl
	}
	if in.LeadActive && in.LeadApplies {
		shiftX += -in.LeadAzDeg * ppdAz
		shiftY += in.LeadElDeg * ppdEl
	}

	return ReticlePoint{
		XPx: in.ImageWidthPx/2 + shiftX,
		YPx: in.ImageHeightPx/2 + shiftY,
	}
}

// ZeroingStatusText returns the overlay text for the zeroing line.
func ZeroingStatusText(applied, modeActive bool) string {
	switch {
	case applied:
		return "Z"
	case modeActive:
		return "ZEROING"
	default:
		return ""
	}
}
