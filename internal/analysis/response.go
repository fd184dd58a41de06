package analysis

import (
	"fmt"

	"github.com/san-kum/aerotrim/internal/integrators"
	"github.com/san-kum/aerotrim/internal/linearize"
	"gonum.org/v1/gonum/mat"
)

// Response is a time history of a linear model, one series per state.
type Response struct {
	States []string
	Times  []float64
	Series [][]float64
}

// Column returns the series recorded for a state.
func (r *Response) Column(state string) ([]float64, bool) {
	for i, s := range r.States {
		if s == state {
			return r.Series[i], true
		}
	}
	return nil, false
}

type linearSystem struct {
	a  mat.Matrix
	bu *mat.VecDense
}

func (s linearSystem) Derive(x integrators.State, t float64) integrators.State {
	n := len(x)
	var dx mat.VecDense
	dx.MulVec(s.a, mat.NewVecDense(n, x))
	dx.AddVec(&dx, s.bu)
	return integrators.State(dx.RawVector().Data)
}

// StepResponse integrates m from the zero state with input held at amplitude
// for duration seconds. Perturbation states are relative to the operating
// point the model was taken at.
func StepResponse(m *linearize.Model, input string, amplitude, dt, duration float64, integ integrators.Integrator) (*Response, error) {
	col := -1
	for j, in := range m.Inputs {
		if in == input {
			col = j
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("analysis: model has no input %q", input)
	}
	if dt <= 0 || duration <= 0 {
		return nil, fmt.Errorf("analysis: dt and duration must be positive")
	}
	if integ == nil {
		integ = integrators.NewRK4()
	}

	n := len(m.States)
	bu := mat.NewVecDense(n, nil)
	bu.ScaleVec(amplitude, m.B.ColView(col))
	sys := linearSystem{a: m.A, bu: bu}

	steps := int(duration/dt + 0.5)
	r := &Response{
		States: append([]string(nil), m.States...),
		Times:  make([]float64, 0, steps+1),
		Series: make([][]float64, n),
	}
	x := make(integrators.State, n)
	record := func(t float64) {
		r.Times = append(r.Times, t)
		for i := range x {
			r.Series[i] = append(r.Series[i], x[i])
		}
	}

	record(0)
	for k := 0; k < steps; k++ {
		t := float64(k) * dt
		x = integ.Step(sys, x, t, dt)
		record(t + dt)
	}
	return r, nil
}
