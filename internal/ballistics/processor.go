package ballistics

import "math"

// Status is the lead-angle compensation status returned alongside the
// computed offsets.
type Status int

const (
	StatusOff Status = iota
	StatusOn
	StatusLag
	StatusZoomOut
)

func (s Status) String() string {
	switch s {
	case StatusOn:
		return "On"
	case StatusLag:
		return "Lag"
	case StatusZoomOut:
		return "ZoomOut"
	default:
		return "Off"
	}
}

// Processor is the lead-angle compensation function object: a pure,
// deterministic mapping from engagement geometry to a pixel-free angular
// lead. It holds no target identity and no mutable state of its own,
// only the tuning constants that parameterise the curve.
type Processor struct {
	lagTimeOfFlightThresholdS float64
	zoomOutFOVFraction        float64
}

// NewProcessor builds a Processor from the configured tuning constants.
func NewProcessor(lagTofThresholdS, zoomOutFovFraction float64) *Processor {
	return &Processor{
		lagTimeOfFlightThresholdS: lagTofThresholdS,
		zoomOutFOVFraction:        zoomOutFovFraction,
	}
}

// Compute returns the lead-angle offsets and status for one engagement
// geometry sample. Inputs that cannot produce a sane solution (zero or
// negative range, zero or negative muzzle velocity) yield StatusOff with
// zero offsets. Time of flight is approximated as range / muzzleVelocity,
// a flat-trajectory seed consistent with tofSeedS being the caller's own
// previous-cycle estimate when one is available (0 selects the flat
// estimate).
func (p *Processor) Compute(
	targetRangeM float64,
	targetAngRateAzDps float64,
	targetAngRateElDps float64,
	muzzleVelocityMps float64,
	tofSeedS float64,
	cameraHFOVDeg float64,
) (leadAzDeg, leadElDeg float64, status Status) {
	if targetRangeM <= 0 || muzzleVelocityMps <= 0 {
		return 0, 0, StatusOff
	}

	tof := targetRangeM / muzzleVelocityMps
	if tofSeedS > 0 {
		tof = (tof + tofSeedS) / 2
	}

	leadAzDeg = targetAngRateAzDps * tof
	leadElDeg = targetAngRateElDps * tof

	status = StatusOn
	if tof >= p.lagTimeOfFlightThresholdS {
		status = StatusLag
	}

	if cameraHFOVDeg > 0 {
		maxSensibleLead := cameraHFOVDeg * p.zoomOutFOVFraction
		if math.Abs(leadAzDeg) >= maxSensibleLead || math.Abs(leadElDeg) >= maxSensibleLead {
			status = StatusZoomOut
		}
	}

	return leadAzDeg, leadElDeg, status
}
