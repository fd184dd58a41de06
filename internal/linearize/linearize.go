// Package linearize estimates state-space Jacobians of an engine around an
// operating point by one-sided finite differences.
package linearize

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/log"
	"github.com/san-kum/aerotrim/internal/props"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultDx        = 1e-4
	DefaultPrecision = 3
	// MaxPrecision is the most decimals a float64 entry can meaningfully keep.
	MaxPrecision = 15
)

type Options struct {
	// Dx is the perturbation applied to each state and input. Zero means DefaultDx.
	Dx float64
	// Precision is the number of decimals kept in A and B. Nil means
	// DefaultPrecision.
	Precision *int
	// Baseline is applied before the first settle to put the engine in a
	// known state. Nil zeroes every named state and input instead.
	Baseline *fdm.OperatingPoint
	Logger   *log.Logger
	// Owner names the holder of an acquired handle.
	Owner string
}

// WithPrecision returns a copy of o keeping p decimals.
func (o Options) WithPrecision(p int) Options {
	o.Precision = &p
	return o
}

func (o Options) dx() float64 {
	if o.Dx == 0 {
		return DefaultDx
	}
	return o.Dx
}

func (o Options) precision() int {
	if o.Precision == nil {
		return DefaultPrecision
	}
	return *o.Precision
}

// Model is a linear state-space approximation xdot = A x + B u.
type Model struct {
	A      *mat.Dense
	B      *mat.Dense
	States []string
	Derivs []string
	Inputs []string
}

// Row returns the A and B rows belonging to a state.
func (m *Model) Row(state string) (a, b []float64, ok bool) {
	for i, s := range m.States {
		if s == state {
			return mat.Row(nil, i, m.A), mat.Row(nil, i, m.B), true
		}
	}
	return nil, nil, false
}

func (m *Model) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "states: %s\n", strings.Join(m.States, ", "))
	fmt.Fprintf(&sb, "inputs: %s\n", strings.Join(m.Inputs, ", "))
	fmt.Fprintf(&sb, "A = %v\n", mat.Formatted(m.A, mat.Prefix("    "), mat.Squeeze()))
	fmt.Fprintf(&sb, "B = %v\n", mat.Formatted(m.B, mat.Prefix("    "), mat.Squeeze()))
	return sb.String()
}

// Linearize perturbs each state and then each input by dx around op and
// records the change in every derivative. Column i of A is the response to
// states[i]; column i of B is the response to inputs[i]. The engine is left
// in an unspecified state.
//
// Like Trim, Linearize does not acquire h; a held handle is only accepted
// from opts.Owner.
func Linearize(h *fdm.Handle, states, derivs, inputs []string, op *fdm.OperatingPoint, opts Options) (*Model, error) {
	if err := validate(states, derivs, inputs, opts); err != nil {
		return nil, err
	}
	if err := h.CheckOwner("linearize", opts.Owner); err != nil {
		return nil, err
	}

	if err := reset(h, states, inputs, opts.Baseline); err != nil {
		return nil, err
	}

	dx := opts.dx()
	n, p := len(states), len(inputs)
	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, p, nil)

	for i, s := range states {
		col, err := column(h, s, derivs, op, dx)
		if err != nil {
			return nil, fmt.Errorf("linearize state %s: %w", s, err)
		}
		a.SetCol(i, col)
	}
	for i, in := range inputs {
		col, err := column(h, in, derivs, op, dx)
		if err != nil {
			return nil, fmt.Errorf("linearize input %s: %w", in, err)
		}
		b.SetCol(i, col)
	}

	prec := opts.precision()
	round(a, prec)
	round(b, prec)

	m := &Model{
		A:      a,
		B:      b,
		States: append([]string(nil), states...),
		Derivs: append([]string(nil), derivs...),
		Inputs: append([]string(nil), inputs...),
	}
	opts.Logger.Debug("linearized",
		"states", len(states), "inputs", len(inputs), "dx", dx, "precision", prec)
	return m, nil
}

func validate(states, derivs, inputs []string, opts Options) error {
	switch {
	case len(states) == 0:
		return fdm.InvalidConfiguration("linearize", "no states")
	case len(inputs) == 0:
		return fdm.InvalidConfiguration("linearize", "no inputs")
	case len(states) != len(derivs):
		return fdm.InvalidConfiguration("linearize", "%d states but %d derivatives", len(states), len(derivs))
	case math.IsNaN(opts.Dx) || math.IsInf(opts.Dx, 0) || opts.Dx < 0:
		return fdm.InvalidConfiguration("linearize", "dx must be positive, got %g", opts.Dx)
	case opts.precision() < 0 || opts.precision() > MaxPrecision:
		return fdm.InvalidConfiguration("linearize", "precision must be in [0, %d], got %d", MaxPrecision, opts.precision())
	}
	return nil
}

// reset puts the engine into the same starting condition on every call so
// results do not depend on what ran before.
func reset(h *fdm.Handle, states, inputs []string, baseline *fdm.OperatingPoint) error {
	if _, err := h.ResetIC(); err != nil {
		return err
	}
	if baseline != nil {
		if err := baseline.Apply(h); err != nil {
			return err
		}
	} else {
		for _, name := range append(append([]string(nil), states...), inputs...) {
			if err := h.Set(name, 0); err != nil {
				return err
			}
		}
	}
	return h.Settle()
}

// column settles at op, perturbs name by dx, settles again and returns the
// change in every derivative divided by dx. name is restored afterwards.
func column(h *fdm.Handle, name string, derivs []string, op *fdm.OperatingPoint, dx float64) ([]float64, error) {
	if err := op.Apply(h); err != nil {
		return nil, err
	}
	if err := h.InitRunning(0); err != nil {
		return nil, err
	}
	if err := h.Settle(); err != nil {
		return nil, err
	}

	start, err := h.Snapshot()
	if err != nil {
		return nil, err
	}
	before, err := observe(h, derivs, start)
	if err != nil {
		return nil, err
	}
	base, ok := start[name]
	if !ok {
		return nil, fdm.UnknownProperty("linearize", name)
	}

	if err := h.Set(name, base+dx); err != nil {
		return nil, err
	}
	if err := h.Settle(); err != nil {
		return nil, err
	}
	after, err := observe(h, derivs, nil)
	if err != nil {
		return nil, err
	}
	if err := h.Set(name, base); err != nil {
		return nil, err
	}

	col := make([]float64, len(derivs))
	for j := range derivs {
		col[j] = (after[j] - before[j]) / dx
		if math.IsNaN(col[j]) || math.IsInf(col[j], 0) {
			return nil, fdm.InvalidValue("linearize", derivs[j], col[j], nil)
		}
	}
	return col, nil
}

// observe reads each derivative, computing derived names locally. snap, when
// non-nil, is used for names it already holds.
func observe(h *fdm.Handle, derivs []string, snap map[string]float64) ([]float64, error) {
	out := make([]float64, len(derivs))
	for j, d := range derivs {
		if d == props.CustomMachDot.Name() {
			md, err := MachDot(h)
			if err != nil {
				return nil, err
			}
			if h.Has(d) {
				if err := h.Set(d, md); err != nil {
					return nil, err
				}
			}
			out[j] = md
			continue
		}
		if v, ok := snap[d]; ok {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fdm.InvalidValue("get", d, v, nil)
			}
			out[j] = v
			continue
		}
		v, err := h.Get(d)
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}

func round(m *mat.Dense, decimals int) {
	scale := math.Pow(10, float64(decimals))
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if scaled := v * scale; !math.IsInf(scaled, 0) {
				v = math.Round(scaled) / scale
			}
			if v == 0 {
				v = 0 // drop negative zero
			}
			m.Set(i, j, v)
		}
	}
}
