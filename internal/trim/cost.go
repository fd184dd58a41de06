package trim

import (
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/props"
)

// CostFunc reads a scalar from a settled engine.
type CostFunc func(h *fdm.Handle) (float64, error)

// Constraint is an equality constraint Fn(h) == 0.
type Constraint struct {
	Name string
	Fn   CostFunc
}

// NegativePitchPenalty is added to DefaultCost while the pitch attitude is
// below zero.
const NegativePitchPenalty = 1e-3

// DefaultCost is the sum of the squared body-axis accelerations, plus a
// small penalty for nose-down attitudes.
func DefaultCost(h *fdm.Handle) (float64, error) {
	acc, err := h.GetAll(props.Names(props.Accelerations...))
	if err != nil {
		return 0, err
	}
	var cost float64
	for _, a := range acc {
		cost += a * a
	}

	theta, err := h.Get(props.AttTheta.Name())
	if err != nil {
		return 0, err
	}
	if theta < 0 {
		cost += NegativePitchPenalty
	}
	return cost, nil
}

// Property returns a functional that reads one property.
func Property(name string) CostFunc {
	return func(h *fdm.Handle) (float64, error) {
		return h.Get(name)
	}
}

// AccelerationConstraints requires each of the six body accelerations to vanish.
func AccelerationConstraints() []Constraint {
	out := make([]Constraint, len(props.Accelerations))
	for i, id := range props.Accelerations {
		out[i] = Constraint{Name: id.Name(), Fn: Property(id.Name())}
	}
	return out
}
