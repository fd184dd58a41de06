package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/log"
	"github.com/san-kum/aerotrim/internal/metrics"
	"github.com/san-kum/aerotrim/internal/props"
	"github.com/san-kum/aerotrim/internal/trim"
)

// Observer is called after every logged step.
type Observer interface {
	OnStep(t float64, stage string, sample map[string]float64)
}

type ObserverFunc func(t float64, stage string, sample map[string]float64)

func (f ObserverFunc) OnStep(t float64, stage string, sample map[string]float64) { f(t, stage, sample) }

type Runner struct {
	Logger   *log.Logger
	Recorder metrics.Recorder
	// Pacer is used for realtime scenarios; nil means a RealtimePacer.
	Pacer     Pacer
	Observers []Observer
	// Metrics summarize the run; nil means metrics.Defaults().
	Metrics   []metrics.Metric
	Trim      trim.Options
	Linearize linearize.Options
}

func (r *Runner) AddObserver(o Observer) { r.Observers = append(r.Observers, o) }

type StageReport struct {
	Name    string
	Entered float64
	Exited  float64
	Trim    *trim.Result
	// Models are keyed by linearization preset name.
	Models map[string]*linearize.Model
	Err    error
}

type Report struct {
	RunID    string
	Scenario string
	Stages   []*StageReport
	Log      *Log
	Metrics  map[string]float64
	Elapsed  float64
	// Completed is false when the run stopped before its duration.
	Completed bool
}

// Stage returns the report of the named stage, if it was entered.
func (r *Report) Stage(name string) (*StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Errors collects the failures recorded by stages.
func (r *Report) Errors() error {
	var errs []error
	for _, s := range r.Stages {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}

type run struct {
	*Runner
	owner   string
	ctx     context.Context
	h       *fdm.Handle
	sc      *Scenario
	report  *Report
	metrics []metrics.Metric
	elapsed float64
	stage   int
}

// Run steps h through sc. Trim and linearization failures are recorded on
// the stage and the run goes on; engine failures and cancellation end it and
// are returned together with the partial report.
func (r *Runner) Run(ctx context.Context, h *fdm.Handle, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	owner := "scenario " + sc.Name
	release, err := h.Acquire(owner)
	if err != nil {
		return nil, err
	}
	defer release()

	x := &run{
		Runner:  r,
		owner:   owner,
		ctx:     ctx,
		h:       h,
		sc:      sc,
		metrics: r.Metrics,
		report: &Report{
			Scenario: sc.Name,
			Log:      NewLog(sc.Columns()),
			Metrics:  make(map[string]float64),
		},
	}
	x.report.RunID = x.report.Log.RunID
	if x.metrics == nil {
		x.metrics = metrics.Defaults()
	}

	start := time.Now()
	err = x.execute()
	r.observe(ctx, "scenario", err == nil, time.Since(start))

	for _, m := range x.metrics {
		x.report.Metrics[m.Name()] = m.Value()
	}
	x.report.Elapsed = x.elapsed
	if n := len(x.report.Stages); n > 0 {
		x.report.Stages[n-1].Exited = x.elapsed
	}

	if err != nil {
		r.Logger.Error("scenario stopped", "scenario", sc.Name, "run_id", x.report.RunID,
			"t", x.elapsed, "error", err)
		return x.report, err
	}
	x.report.Completed = true
	r.Logger.Info("scenario finished", "scenario", sc.Name, "run_id", x.report.RunID,
		"t", x.elapsed, "records", x.report.Log.Len())
	return x.report, nil
}

func (x *run) execute() error {
	if err := x.prepare(); err != nil {
		return err
	}
	pacer := x.Pacer
	if x.sc.Realtime && pacer == nil {
		pacer = NewRealtimePacer()
	}

	x.enter(0)
	for x.elapsed < x.sc.Duration-1e-9 {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		st := &x.sc.Stages[x.stage]
		if err := st.Set.Apply(x.h); err != nil {
			return err
		}

		sample, err := x.h.Snapshot()
		if err != nil {
			return err
		}
		x.record(st.Name, sample)

		if x.stage < len(x.sc.Stages)-1 && x.done(st, sample) {
			x.enter(x.stage + 1)
			if err := x.sc.Stages[x.stage].Set.Apply(x.h); err != nil {
				return err
			}
		}

		if x.sc.Realtime {
			if err := pacer.Wait(x.ctx, x.elapsed); err != nil {
				return err
			}
		}

		before := x.h.SimTime()
		if err := x.h.Step(); err != nil {
			return err
		}
		dt := x.h.SimTime() - before
		if !(dt > 0) {
			return fdm.InvalidConfiguration("scenario", "engine time did not advance at t=%g", x.elapsed)
		}
		x.elapsed += dt
	}
	return nil
}

// prepare resets the engine to the scenario's initial condition and checks
// every name the scenario refers to against the catalog.
func (x *run) prepare() error {
	if _, err := x.h.ResetIC(); err != nil {
		return err
	}
	if err := x.sc.Initial.Apply(x.h); err != nil {
		return err
	}
	if err := x.h.Settle(); err != nil {
		return err
	}

	var missing []string
	check := func(name string) {
		if !x.h.Has(name) {
			missing = append(missing, name)
		}
	}
	for _, c := range x.sc.Columns() {
		check(c)
	}
	for _, st := range x.sc.Stages {
		for _, k := range st.Set.Keys() {
			check(k)
		}
		if st.Until != nil {
			check(st.Until.Property)
		}
	}
	if len(missing) > 0 {
		e := fdm.UnknownProperty("scenario", missing[0])
		if len(missing) > 1 {
			e.Message = fmt.Sprintf("and %d more", len(missing)-1)
		}
		return e
	}

	for _, m := range x.metrics {
		m.Reset()
	}
	return nil
}

func (x *run) record(stage string, sample map[string]float64) {
	x.report.Log.append(x.elapsed, stage, sample)
	for _, m := range x.metrics {
		m.Observe(sample, x.elapsed)
	}
	for _, o := range x.Observers {
		o.OnStep(x.elapsed, stage, sample)
	}
}

func (x *run) done(st *Stage, sample map[string]float64) bool {
	if st.HoldFor > 0 && x.elapsed-x.report.Stages[x.stage].Entered >= st.HoldFor-1e-9 {
		return true
	}
	return st.Until != nil && st.Until.holds(sample)
}

func (x *run) enter(i int) {
	if n := len(x.report.Stages); n > 0 {
		x.report.Stages[n-1].Exited = x.elapsed
	}
	x.stage = i
	st := &x.sc.Stages[i]
	rep := &StageReport{Name: st.Name, Entered: x.elapsed}
	x.report.Stages = append(x.report.Stages, rep)
	x.Logger.Info("entering stage", "scenario", x.sc.Name, "stage", st.Name, "t", x.elapsed)

	var errs []error
	var point *fdm.OperatingPoint
	if st.Trim != nil {
		res, err := x.trim(st.Trim)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("trim: %w", err))
		default:
			rep.Trim = res
			point = res.Point
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("trim: %w", res.Err))
			}
		}
	}

	if len(st.Linearize) > 0 {
		if point == nil {
			var err error
			if point, err = currentPoint(x.h); err != nil {
				errs = append(errs, fmt.Errorf("linearize: %w", err))
			}
		}
		if point != nil {
			rep.Models = make(map[string]*linearize.Model)
			for _, name := range st.Linearize {
				m, err := x.linearize(name, point)
				if err != nil {
					errs = append(errs, fmt.Errorf("linearize %s: %w", name, err))
					continue
				}
				rep.Models[name] = m
			}
			if err := restore(x.h, point); err != nil {
				errs = append(errs, fmt.Errorf("restore: %w", err))
			}
		}
	}

	if len(errs) > 0 {
		rep.Err = errors.Join(errs...)
		x.Logger.Warn("stage failed", "scenario", x.sc.Name, "stage", st.Name, "t", x.elapsed, "error", rep.Err)
	}
}

func (x *run) trim(c *TrimCondition) (*trim.Result, error) {
	opts := x.Trim
	opts.Owner = x.owner
	if opts.Logger == nil {
		opts.Logger = x.Logger
	}
	start := time.Now()
	res, err := trim.WingsLevel(x.h, c.Input(), opts)
	x.observe(x.ctx, "trim", err == nil && res.Converged, time.Since(start))
	if err == nil {
		if tr, ok := x.Recorder.(interface{ ObserveTrim(float64, int) }); ok {
			tr.ObserveTrim(res.Cost, res.Evaluations)
		}
	}
	return res, err
}

func (x *run) linearize(preset string, op *fdm.OperatingPoint) (*linearize.Model, error) {
	p, err := linearize.GetPreset(preset)
	if err != nil {
		return nil, err
	}
	opts := x.Linearize
	opts.Owner = x.owner
	if opts.Logger == nil {
		opts.Logger = x.Logger
	}
	start := time.Now()
	m, err := p.Run(x.h, op, opts)
	x.observe(x.ctx, "linearize", err == nil, time.Since(start))
	return m, err
}

func (r *Runner) observe(ctx context.Context, op string, ok bool, d time.Duration) {
	if r.Recorder != nil {
		r.Recorder.Observe(ctx, op, ok, d)
	}
}

// stateIC maps each integrated quantity to the initial condition that seeds it.
var stateIC = []struct{ state, ic props.ID }{
	{props.VelU, props.ICUFps},
	{props.VelV, props.ICVFps},
	{props.VelW, props.ICWFps},
	{props.VelP, props.ICPRadSec},
	{props.VelQ, props.ICQRadSec},
	{props.VelR, props.ICRRadSec},
	{props.AttPhi, props.ICPhiRad},
	{props.AttTheta, props.ICThetaRad},
	{props.AttPsi, props.ICPsiTrueRad},
	{props.PosHSlFt, props.ICHSlFt},
	{props.PosHAglFt, props.ICHAglFt},
}

var controls = []props.ID{
	props.FCSAileron, props.FCSElevator, props.FCSRudder,
	props.FCSFlap, props.FCSMixture, props.FCSThrottle0,
}

// currentPoint captures the engine's present state as an initial condition
// plus control settings.
func currentPoint(h *fdm.Handle) (*fdm.OperatingPoint, error) {
	snap, err := h.Snapshot()
	if err != nil {
		return nil, err
	}
	op := fdm.NewOperatingPoint()
	for _, m := range stateIC {
		v, ok := snap[m.state.Name()]
		if ok && h.Has(m.ic.Name()) {
			op.Set(m.ic.Name(), v)
		}
	}
	for _, id := range controls {
		if v, ok := snap[id.Name()]; ok {
			op.Set(id.Name(), v)
		}
	}
	return op, nil
}

func restore(h *fdm.Handle, op *fdm.OperatingPoint) error {
	if err := op.Apply(h); err != nil {
		return err
	}
	if err := h.InitRunning(0); err != nil {
		return err
	}
	return h.Settle()
}
