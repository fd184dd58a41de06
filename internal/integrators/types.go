package integrators

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is a first-order ODE dx/dt = f(x, t). Inputs are held constant by
// the caller for the duration of a step.
type System interface {
	Derive(x State, t float64) State
}

type Integrator interface {
	Step(dyn System, x State, t, dt float64) State
}

// New returns the named integrator.
func New(name string) (Integrator, error) {
	switch name {
	case "", "rk4":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	case "rk45":
		return NewRK45(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
}
