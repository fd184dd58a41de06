package trim

import (
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/props"
)

// WingsLevelInput is a steady flight condition with the wings level.
type WingsLevelInput struct {
	AltitudeFt float64
	Mach       float64
	PhiRad     float64
	PsiRad     float64
	GammaRad   float64
}

// OperatingPoint returns the initial condition for in, in the order the
// engine expects it.
func (in WingsLevelInput) OperatingPoint() *fdm.OperatingPoint {
	return fdm.NewOperatingPoint(
		fdm.Entry{Name: props.ICHSlFt.Name(), Value: in.AltitudeFt},
		fdm.Entry{Name: props.ICMach.Name(), Value: in.Mach},
		fdm.Entry{Name: props.ICPhiRad.Name(), Value: in.PhiRad},
		fdm.Entry{Name: props.ICPsiTrueRad.Name(), Value: in.PsiRad},
		fdm.Entry{Name: props.ICGammaRad.Name(), Value: in.GammaRad},
	)
}

// WingsLevelDesign is the control vector trimmed for wings-level flight.
func WingsLevelDesign() DesignVector {
	return DesignVector{
		{Name: props.FCSAileron.Name(), Lo: -1, Hi: 1},
		{Name: props.FCSElevator.Name(), Lo: -1, Hi: 1},
		{Name: props.FCSRudder.Name(), Lo: -1, Hi: 1},
		{Name: props.FCSFlap.Name(), Lo: -1, Hi: 1},
		{Name: props.FCSMixture.Name(), Lo: 0, Hi: 1},
		{Name: props.FCSThrottle0.Name(), Lo: 0, Hi: 1},
	}
}

// WingsLevelRequired lists every engine property a wings-level trim writes
// or reads.
func WingsLevelRequired() []string {
	names := WingsLevelInput{}.OperatingPoint().Keys()
	names = append(names, WingsLevelDesign().Names()...)
	return append(names, props.Names(props.Accelerations...)...)
}

// WingsLevelStart is the starting guess paired with WingsLevelDesign.
func WingsLevelStart() []float64 {
	return []float64{0, 0, 0, 0, 0.1, 0.5}
}

// WingsLevel trims the six controls so every body acceleration vanishes.
// Constraints in opts are replaced by the acceleration constraints.
func WingsLevel(h *fdm.Handle, in WingsLevelInput, opts Options) (*Result, error) {
	opts.Constraints = AccelerationConstraints()
	return Trim(h, in.OperatingPoint(), WingsLevelDesign(), WingsLevelStart(), opts)
}
