package trim

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// Method selects the inner unconstrained minimizer.
type Method int

const (
	BFGS Method = iota
	NelderMead
)

func (m Method) String() string {
	switch m {
	case BFGS:
		return "bfgs"
	case NelderMead:
		return "nelder-mead"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "bfgs":
		return BFGS, nil
	case "nelder-mead", "neldermead":
		return NelderMead, nil
	}
	return 0, fmt.Errorf("unknown trim method: %s", s)
}

func (m Method) optimizer() optimize.Method {
	if m == NelderMead {
		return &optimize.NelderMead{}
	}
	return &optimize.BFGS{}
}

// settings bounds one inner solve. A simplex step often leaves the best
// vertex unchanged, so Nelder-Mead needs a much longer stall window than BFGS
// before it is declared converged.
func (m Method) settings() (major int, conv *optimize.FunctionConverge) {
	if m == NelderMead {
		return 20 * innerIterations, &optimize.FunctionConverge{Absolute: 1e-15, Iterations: 100}
	}
	return innerIterations, &optimize.FunctionConverge{Absolute: 1e-14, Iterations: 5}
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.MethodConverge, optimize.FunctionThreshold,
		optimize.FunctionConvergence, optimize.GradientThreshold, optimize.StepConvergence:
		return true
	}
	return false
}
