package models

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/integrators"
)

var errReadOnly = errors.New("read-only property")

type term struct {
	idx  int
	gain float64
}

type product struct {
	a, b int
	gain float64
}

type relation struct {
	target   int
	bias     float64
	terms    []term
	products []product
	norm     []int
	inputs   []int
}

func (r *relation) eval(v []float64) float64 {
	s := r.bias
	for _, t := range r.terms {
		s += t.gain * v[t.idx]
	}
	for _, p := range r.products {
		s += p.gain * v[p.a] * v[p.b]
	}
	if len(r.norm) > 0 {
		var sq float64
		for _, i := range r.norm {
			sq += v[i] * v[i]
		}
		s += math.Sqrt(sq)
	}
	return s
}

type state struct {
	idx, deriv, ic int
}

// Affine is an in-process engine whose outputs are affine (plus optional
// bilinear and norm terms) in its properties and states. It speaks the same
// property protocol as an external engine, so it can stand in for one.
//
// Initial relations mimic last-write-wins initial-condition resolution: a
// relation fires during a settle only when one of its triggers (by default
// every input) changed since the previous settle and its target was not
// itself written.
type Affine struct {
	name  string
	dt    float64
	integ integrators.Integrator

	names    []string
	index    map[string]int
	aliases  []string
	writable []bool
	values   []float64
	defaults []float64
	dirty    []bool
	written  []bool

	initial []relation
	outputs []relation
	states  []state
	running []int
	hold    int

	t float64
}

// NewAffine compiles spec into a ready engine. Every name a relation or
// state refers to must resolve.
func NewAffine(spec AffineSpec) (*Affine, error) {
	dt := spec.Dt
	if dt == 0 {
		dt = DefaultDt
	}
	if dt < 0 || math.IsNaN(dt) {
		return nil, fdm.InvalidConfiguration("load", "model %q: dt must be positive, got %g", spec.Name, dt)
	}
	integ, err := integrators.New(spec.Integrator)
	if err != nil {
		return nil, fdm.InvalidConfiguration("load", "model %q: %v", spec.Name, err)
	}

	a := &Affine{
		name:  spec.Name,
		dt:    dt,
		integ: integ,
		index: make(map[string]int),
		hold:  -1,
	}

	for _, e := range spec.Properties.Entries() {
		a.register(e.Name, e.Value, true)
	}
	for _, s := range spec.States {
		if _, ok := a.index[s.Name]; !ok {
			a.register(s.Name, 0, true)
		}
	}
	for i := 0; i < spec.Engines; i++ {
		a.running = append(a.running, a.register(fmt.Sprintf("propulsion/engine[%d]/set-running", i), 0, true))
	}
	for _, o := range spec.Outputs {
		if _, ok := a.index[o.Name]; ok {
			return nil, fdm.InvalidConfiguration("load", "model %q: output %q shadows a property", spec.Name, o.Name)
		}
		a.register(o.Name, 0, false)
	}

	aliases := make([]string, 0, len(spec.Aliases))
	for alias := range spec.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if _, ok := a.index[alias]; ok {
			return nil, fdm.InvalidConfiguration("load", "model %q: alias %q shadows a property", spec.Name, alias)
		}
		idx, err := a.resolve(spec.Aliases[alias])
		if err != nil {
			return nil, err
		}
		a.index[alias] = idx
		a.aliases = append(a.aliases, alias)
	}

	for _, r := range spec.Initial {
		rel, err := a.compile(r)
		if err != nil {
			return nil, err
		}
		if !a.writable[rel.target] {
			return nil, fdm.InvalidConfiguration("load", "model %q: initial relation targets read-only %q", spec.Name, r.Name)
		}
		a.initial = append(a.initial, rel)
	}
	for _, r := range spec.Outputs {
		rel, err := a.compile(r)
		if err != nil {
			return nil, err
		}
		a.outputs = append(a.outputs, rel)
	}
	for _, s := range spec.States {
		st := state{ic: -1}
		if st.idx, err = a.resolve(s.Name); err != nil {
			return nil, err
		}
		if st.deriv, err = a.resolve(s.Derivative); err != nil {
			return nil, err
		}
		if s.IC != "" {
			if st.ic, err = a.resolve(s.IC); err != nil {
				return nil, err
			}
		}
		a.states = append(a.states, st)
	}
	if spec.Hold != "" {
		if a.hold, err = a.resolve(spec.Hold); err != nil {
			return nil, err
		}
	}

	a.defaults = append([]float64(nil), a.values...)
	a.dirty = make([]bool, len(a.values))
	a.written = make([]bool, len(a.values))
	for i := range a.dirty {
		a.dirty[i] = true
	}
	return a, nil
}

func (a *Affine) register(name string, v float64, writable bool) int {
	idx := len(a.names)
	a.names = append(a.names, name)
	a.values = append(a.values, v)
	a.writable = append(a.writable, writable)
	a.index[name] = idx
	return idx
}

func (a *Affine) resolve(name string) (int, error) {
	idx, ok := a.index[name]
	if !ok {
		e := fdm.UnknownProperty("load", name)
		e.Message = "model " + a.name
		return 0, e
	}
	return idx, nil
}

func (a *Affine) compile(r Relation) (relation, error) {
	target, err := a.resolve(r.Name)
	if err != nil {
		return relation{}, err
	}
	rel := relation{target: target, bias: r.Bias}

	keys := make([]string, 0, len(r.Terms))
	for k := range r.Terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		idx, err := a.resolve(k)
		if err != nil {
			return relation{}, err
		}
		rel.terms = append(rel.terms, term{idx: idx, gain: r.Terms[k]})
		rel.inputs = append(rel.inputs, idx)
	}
	for _, p := range r.Products {
		ia, err := a.resolve(p.A)
		if err != nil {
			return relation{}, err
		}
		ib, err := a.resolve(p.B)
		if err != nil {
			return relation{}, err
		}
		rel.products = append(rel.products, product{a: ia, b: ib, gain: p.Gain})
		rel.inputs = append(rel.inputs, ia, ib)
	}
	for _, n := range r.Norm {
		idx, err := a.resolve(n)
		if err != nil {
			return relation{}, err
		}
		rel.norm = append(rel.norm, idx)
		rel.inputs = append(rel.inputs, idx)
	}
	if len(r.Triggers) > 0 {
		rel.inputs = rel.inputs[:0]
		for _, n := range r.Triggers {
			idx, err := a.resolve(n)
			if err != nil {
				return relation{}, err
			}
			rel.inputs = append(rel.inputs, idx)
		}
	}
	return rel, nil
}

func (a *Affine) Name() string { return a.name }

func (a *Affine) Dt() float64 { return a.dt }

func (a *Affine) SetProperty(name string, v float64) error {
	idx, ok := a.index[name]
	if !ok {
		return fdm.UnknownProperty("set", name)
	}
	if !a.writable[idx] {
		return fdm.InvalidValue("set", name, v, errReadOnly)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fdm.InvalidValue("set", name, v, nil)
	}
	a.values[idx] = v
	a.dirty[idx] = true
	a.written[idx] = true
	return nil
}

func (a *Affine) GetProperty(name string) (float64, error) {
	idx, ok := a.index[name]
	if !ok {
		return 0, fdm.UnknownProperty("get", name)
	}
	return a.values[idx], nil
}

// RunIC resolves initial relations, copies ic values into the states and
// evaluates every output. Simulation time restarts at zero.
func (a *Affine) RunIC() error {
	for _, r := range a.initial {
		if a.written[r.target] || !a.anyDirty(r.inputs) {
			continue
		}
		a.values[r.target] = r.eval(a.values)
		a.dirty[r.target] = true
	}
	for i := range a.dirty {
		a.dirty[i] = false
		a.written[i] = false
	}

	for _, s := range a.states {
		if s.ic >= 0 {
			a.values[s.idx] = a.values[s.ic]
		}
	}
	a.t = 0
	a.evaluate(a.values)

	if i := a.firstInvalid(); i >= 0 {
		return fdm.InitialConditionFailure("run_ic", fmt.Errorf("%s = %g", a.names[i], a.values[i]))
	}
	return nil
}

// Run integrates the states over one dt.
func (a *Affine) Run() error {
	if !a.held() {
		x := make(integrators.State, len(a.states))
		for i, s := range a.states {
			x[i] = a.values[s.idx]
		}
		next := a.integ.Step(dynamics{a}, x, a.t, a.dt)
		for i, s := range a.states {
			a.values[s.idx] = next[i]
		}
	}
	a.t += a.dt
	a.evaluate(a.values)

	if i := a.firstInvalid(); i >= 0 {
		return fdm.InvalidValue("run", a.names[i], a.values[i], nil)
	}
	return nil
}

func (a *Affine) SimTime() float64 { return a.t }

// PropertyCatalog lists writable names as "(RW)" and outputs as "(R)".
func (a *Affine) PropertyCatalog() []string {
	out := make([]string, 0, len(a.names)+len(a.aliases))
	for i, n := range a.names {
		out = append(out, n+access(a.writable[i]))
	}
	for _, alias := range a.aliases {
		out = append(out, alias+access(a.writable[a.index[alias]]))
	}
	return out
}

func access(writable bool) string {
	if writable {
		return " (RW)"
	}
	return " (R)"
}

func (a *Affine) InitRunning(engine int) error {
	if len(a.running) == 0 {
		return nil
	}
	if engine < 0 || engine >= len(a.running) {
		return fdm.InvalidValue("init_running", "", float64(engine),
			fmt.Errorf("engine %d out of range [0,%d)", engine, len(a.running)))
	}
	a.values[a.running[engine]] = 1
	return nil
}

// ResetIC restores every property to its declared default and settles.
func (a *Affine) ResetIC() error {
	copy(a.values, a.defaults)
	for i := range a.dirty {
		a.dirty[i] = true
		a.written[i] = false
	}
	return a.RunIC()
}

func (a *Affine) held() bool {
	return a.hold >= 0 && a.values[a.hold] != 0
}

func (a *Affine) anyDirty(idx []int) bool {
	for _, i := range idx {
		if a.dirty[i] {
			return true
		}
	}
	return false
}

func (a *Affine) evaluate(v []float64) {
	for i := range a.outputs {
		r := &a.outputs[i]
		v[r.target] = r.eval(v)
	}
}

func (a *Affine) firstInvalid() int {
	for i, v := range a.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// dynamics evaluates state derivatives on a scratch copy so intermediate
// integrator stages never leak into the visible properties.
type dynamics struct{ a *Affine }

func (d dynamics) Derive(x integrators.State, t float64) integrators.State {
	v := make([]float64, len(d.a.values))
	copy(v, d.a.values)
	for i, s := range d.a.states {
		v[s.idx] = x[i]
	}
	d.a.evaluate(v)

	dx := make(integrators.State, len(d.a.states))
	for i, s := range d.a.states {
		dx[i] = v[s.deriv]
	}
	return dx
}
