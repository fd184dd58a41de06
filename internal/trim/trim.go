// Package trim searches for design-variable settings that put the engine in
// steady equilibrium.
//
// Equality constraints are handled by an augmented Lagrangian outer loop;
// each subproblem is an unconstrained minimization in a sine-mapped space, so
// every candidate the engine sees lies inside its bounds.
package trim

import (
	"math"

	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/log"
	"github.com/san-kum/aerotrim/internal/props"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	DefaultMaxIterations       = 100
	DefaultConstraintTolerance = 1e-5

	innerIterations = 200
	initialPenalty  = 10.0
	maxPenalty      = 1e8
)

// Variable is one design variable with inclusive bounds.
type Variable struct {
	Name string
	Lo   float64
	Hi   float64
}

type DesignVector []Variable

func (dv DesignVector) Names() []string {
	names := make([]string, len(dv))
	for i, v := range dv {
		names[i] = v.Name
	}
	return names
}

type Options struct {
	// Cost defaults to DefaultCost.
	Cost        CostFunc
	Constraints []Constraint
	// Tolerance, when positive, is the largest cost still reported as
	// converged.
	Tolerance float64
	// ConstraintTolerance bounds |c| for every equality constraint.
	ConstraintTolerance float64
	Method              Method
	MaxIterations       int
	Logger              *log.Logger
	// Debug 1 logs the trimmed surfaces; 2 also logs every constraint.
	Debug int
	// Owner names the holder of the handle when it was acquired; Trim
	// refuses a handle held by anyone else.
	Owner string
}

func (o Options) withDefaults() Options {
	if o.Cost == nil {
		o.Cost = DefaultCost
	}
	if o.ConstraintTolerance == 0 {
		o.ConstraintTolerance = DefaultConstraintTolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

type Result struct {
	// Point is the initial condition extended with the design variables and
	// the body-state initial conditions the engine settled to.
	Point            *fdm.OperatingPoint
	X                []float64
	Cost             float64
	ConstraintValues []float64
	ConstraintNames  []string
	Converged        bool
	Iterations       int
	Evaluations      int
	Status           string
	// Err carries the non-convergence diagnosis; nil when Converged.
	Err error
}

// MaxViolation is the largest |c| over the equality constraints.
func (r *Result) MaxViolation() float64 {
	return maxAbs(r.ConstraintValues)
}

// Trim minimizes opts.Cost over dv starting from x0, subject to
// opts.Constraints, with ic applied before every evaluation. The caller's ic
// is not modified. Failure to converge is not an error: the best point found
// is returned with Converged false and Err set.
//
// Trim does not acquire h. A caller sharing h holds it with Acquire for the
// whole call and passes its name as opts.Owner.
func Trim(h *fdm.Handle, ic *fdm.OperatingPoint, dv DesignVector, x0 []float64, opts Options) (*Result, error) {
	if err := validate(dv, x0, opts); err != nil {
		return nil, err
	}
	if err := h.CheckOwner("trim", opts.Owner); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	p := &problem{h: h, ic: ic.Clone(), dv: dv, opts: opts}
	ctol := opts.ConstraintTolerance

	f0, c0, err := p.evaluate(x0)
	if err != nil {
		return nil, err
	}
	shortcut := ctol
	if opts.Tolerance > 0 {
		shortcut = opts.Tolerance
	}
	if maxAbs(c0) <= ctol && math.Abs(f0) <= shortcut {
		r, err := p.result(x0, f0, c0, true, 0, "initial guess satisfies tolerances")
		if err != nil {
			return nil, err
		}
		p.report(r)
		return r, nil
	}

	best := candidate{x: append([]float64(nil), x0...), f: f0, c: c0}
	z := p.toZ(x0)
	lambda := make([]float64, len(opts.Constraints))
	mu := initialPenalty
	prevViolation := math.Inf(1)

	var (
		iterations int
		status     optimize.Status
		innerOK    bool
	)
	for outer := 0; outer < opts.MaxIterations; outer++ {
		lagrangian := func(z []float64) float64 {
			if p.err != nil {
				return math.Inf(1)
			}
			f, c, err := p.evaluate(p.toX(z))
			if err != nil {
				p.err = err
				return math.Inf(1)
			}
			l := f
			for i, ci := range c {
				l += lambda[i]*ci + 0.5*mu*ci*ci
			}
			return l
		}
		problem := optimize.Problem{
			Func: lagrangian,
			Grad: func(grad, z []float64) {
				centralDiff(lagrangian, grad, z)
				if p.err != nil {
					// A zero gradient ends the solve without stepping.
					floats.Scale(0, grad)
				}
			},
		}
		major, inner := opts.Method.settings()
		settings := &optimize.Settings{
			MajorIterations:   major,
			GradientThreshold: 1e-9,
			Converger:         &abortConverger{p: p, inner: inner},
		}

		res, ierr := optimize.Minimize(problem, z, settings, opts.Method.optimizer())
		if p.err != nil {
			return nil, p.err
		}
		innerOK = false
		if res != nil {
			z = res.X
			iterations += res.MajorIterations
			status = res.Status
			innerOK = ierr == nil && converged(res.Status)
		}

		x := p.toX(z)
		f, c, err := p.evaluate(x)
		if err != nil {
			return nil, err
		}
		best.consider(x, f, c)

		violation := maxAbs(c)
		opts.Logger.Debug("trim iteration",
			"outer", outer, "cost", f, "max_constraint", violation,
			"penalty", mu, "status", status.String())
		if len(c) == 0 || violation <= ctol {
			break
		}
		for i, ci := range c {
			lambda[i] += mu * ci
		}
		if violation > 0.25*prevViolation {
			mu = math.Min(mu*10, maxPenalty)
		}
		prevViolation = violation
	}

	// Leave the engine at the returned point.
	f, c, err := p.evaluate(best.x)
	if err != nil {
		return nil, err
	}

	ok := maxAbs(c) <= ctol
	if len(c) == 0 {
		ok = innerOK
	}
	if opts.Tolerance > 0 && math.Abs(f) > opts.Tolerance {
		ok = false
	}

	r, err := p.result(best.x, f, c, ok, iterations, status.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		r.Err = fdm.NonConvergence("trim", "status %s, cost %g, max constraint %g after %d evaluations",
			r.Status, r.Cost, r.MaxViolation(), r.Evaluations)
		opts.Logger.Warn("trim did not converge",
			"status", r.Status,
			"cost", r.Cost,
			"max_constraint", r.MaxViolation(),
			"constraints", r.ConstraintValues,
			"x", r.X,
			"iterations", r.Iterations,
			"evaluations", r.Evaluations)
	} else {
		opts.Logger.Info("trim converged",
			"cost", r.Cost, "iterations", r.Iterations, "evaluations", r.Evaluations)
	}
	p.report(r)
	return r, nil
}

func validate(dv DesignVector, x0 []float64, opts Options) error {
	if len(dv) == 0 {
		return fdm.InvalidConfiguration("trim", "empty design vector")
	}
	if len(x0) != len(dv) {
		return fdm.InvalidConfiguration("trim", "%d initial values for %d design variables", len(x0), len(dv))
	}
	for i, v := range dv {
		if math.IsNaN(v.Lo) || math.IsNaN(v.Hi) || v.Lo > v.Hi {
			return fdm.InvalidConfiguration("trim", "%s: bad bounds [%g, %g]", v.Name, v.Lo, v.Hi)
		}
		if math.IsNaN(x0[i]) || x0[i] < v.Lo || x0[i] > v.Hi {
			return fdm.InvalidConfiguration("trim", "%s: initial value %g outside [%g, %g]", v.Name, x0[i], v.Lo, v.Hi)
		}
	}
	if opts.Tolerance < 0 || opts.ConstraintTolerance < 0 || opts.MaxIterations < 0 {
		return fdm.InvalidConfiguration("trim", "tolerances and iteration limits must be non-negative")
	}
	return nil
}

type candidate struct {
	x []float64
	f float64
	c []float64
}

func (b *candidate) merit() float64 {
	m := math.Abs(b.f)
	for _, ci := range b.c {
		m += math.Abs(ci)
	}
	return m
}

func (b *candidate) consider(x []float64, f float64, c []float64) {
	next := candidate{x: append([]float64(nil), x...), f: f, c: c}
	if next.merit() < b.merit() {
		*b = next
	}
}

type problem struct {
	h    *fdm.Handle
	ic   *fdm.OperatingPoint
	dv   DesignVector
	opts Options

	evals int
	err   error

	lastX []float64
	lastF float64
	lastC []float64
}

// evaluate applies the initial condition and x, settles the engine and reads
// the cost and every constraint.
func (p *problem) evaluate(x []float64) (float64, []float64, error) {
	if p.lastX != nil && floats.Equal(x, p.lastX) {
		return p.lastF, p.lastC, nil
	}
	p.lastX = nil

	if err := p.ic.Apply(p.h); err != nil {
		return 0, nil, err
	}
	for i, v := range p.dv {
		if err := p.h.Set(v.Name, x[i]); err != nil {
			return 0, nil, err
		}
	}
	if err := p.h.InitRunning(0); err != nil {
		return 0, nil, err
	}
	if err := p.h.Settle(); err != nil {
		return 0, nil, err
	}
	p.evals++

	f, err := p.opts.Cost(p.h)
	if err != nil {
		return 0, nil, err
	}
	c := make([]float64, len(p.opts.Constraints))
	for i, con := range p.opts.Constraints {
		if c[i], err = con.Fn(p.h); err != nil {
			return 0, nil, err
		}
	}

	p.lastX = append([]float64(nil), x...)
	p.lastF, p.lastC = f, c
	return f, c, nil
}

// toX maps the unbounded search space onto the box: x = lo + (hi-lo)(sin z + 1)/2.
func (p *problem) toX(z []float64) []float64 {
	x := make([]float64, len(z))
	for i, v := range p.dv {
		x[i] = v.Lo + (v.Hi-v.Lo)*(math.Sin(z[i])+1)/2
		x[i] = math.Max(v.Lo, math.Min(v.Hi, x[i]))
	}
	return x
}

// toZ inverts toX. Points on a bound are nudged inside so the mapping has a
// non-zero slope there.
func (p *problem) toZ(x []float64) []float64 {
	const edge = math.Pi/2 - 1e-3
	z := make([]float64, len(x))
	for i, v := range p.dv {
		if v.Hi == v.Lo {
			continue
		}
		s := 2*(x[i]-v.Lo)/(v.Hi-v.Lo) - 1
		z[i] = math.Max(-edge, math.Min(edge, math.Asin(math.Max(-1, math.Min(1, s)))))
	}
	return z
}

// settled lists the body-state initial conditions the engine resolves during
// a settle. They are appended to the trimmed point so that applying it
// reproduces the equilibrium even after the states were zeroed.
var settled = []props.ID{
	props.ICUFps, props.ICVFps, props.ICWFps,
	props.ICPRadSec, props.ICQRadSec, props.ICRRadSec,
	props.ICAlphaRad, props.ICBetaRad, props.ICThetaRad,
}

// result must be called with the engine settled at x.
func (p *problem) result(x []float64, f float64, c []float64, ok bool, iterations int, status string) (*Result, error) {
	point := p.ic.Clone()
	for i, v := range p.dv {
		point.Set(v.Name, x[i])
	}
	for _, id := range settled {
		name := id.Name()
		if _, set := point.Get(name); set || !p.h.Has(name) {
			continue
		}
		v, err := p.h.Get(name)
		if err != nil {
			return nil, err
		}
		point.Set(name, v)
	}
	names := make([]string, len(p.opts.Constraints))
	for i, c := range p.opts.Constraints {
		names[i] = c.Name
	}
	return &Result{
		ConstraintNames:  names,
		Point:            point,
		X:                append([]float64(nil), x...),
		Cost:             f,
		ConstraintValues: append([]float64(nil), c...),
		Converged:        ok,
		Iterations:       iterations,
		Evaluations:      p.evals,
		Status:           status,
	}, nil
}

var reported = []props.ID{
	props.ICAlphaDeg, props.ICBetaDeg,
	props.FCSAileron, props.FCSElevator, props.FCSRudder,
	props.FCSFlap, props.FCSMixture, props.FCSThrottle,
}

func (p *problem) report(r *Result) {
	if p.opts.Debug < 1 {
		return
	}
	var attrs []any
	for _, id := range reported {
		if !p.h.Has(id.Name()) {
			continue
		}
		if v, err := p.h.Get(id.Name()); err == nil {
			attrs = append(attrs, id.Name(), v)
		}
	}
	p.opts.Logger.Info("trim solution", attrs...)

	if p.opts.Debug < 2 {
		return
	}
	for i, con := range p.opts.Constraints {
		p.opts.Logger.Info("trim constraint", "name", con.Name, "value", r.ConstraintValues[i])
	}
}

// abortConverger stops the inner solve as soon as an evaluation fails.
type abortConverger struct {
	p     *problem
	inner optimize.Converger
}

func (a *abortConverger) Init(dim int) { a.inner.Init(dim) }

func (a *abortConverger) Converged(loc *optimize.Location) optimize.Status {
	if a.p.err != nil {
		return optimize.Failure
	}
	return a.inner.Converged(loc)
}

func centralDiff(f func([]float64) float64, grad, z []float64) {
	zz := append([]float64(nil), z...)
	for i := range z {
		step := 1e-6 * (1 + math.Abs(z[i]))
		zz[i] = z[i] + step
		fp := f(zz)
		zz[i] = z[i] - step
		fm := f(zz)
		zz[i] = z[i]
		grad[i] = (fp - fm) / (2 * step)
	}
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
