package fdm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Instrumentation receives counters from a Handle. metrics.Collector
// implements it; nil disables reporting.
type Instrumentation interface {
	ObserveSettle(d time.Duration, err error)
	ObserveStep()
	ObserveError(k Kind)
}

// Handle is the explicitly owned reference to one engine instance. Trim,
// linearization and scenario runs all take a *Handle; none of them keep it
// beyond the call.
type Handle struct {
	fdm   FDM
	inst  Instrumentation
	mu    sync.Mutex
	owner atomic.Value

	catalog map[string]bool
}

func NewHandle(f FDM) *Handle {
	return &Handle{fdm: f}
}

func (h *Handle) Instrument(inst Instrumentation) { h.inst = inst }

// FDM returns the wrapped engine.
func (h *Handle) FDM() FDM { return h.fdm }

// Acquire takes exclusive ownership. The returned release func is idempotent.
func (h *Handle) Acquire(owner string) (func(), error) {
	if !h.mu.TryLock() {
		cur, _ := h.owner.Load().(string)
		return nil, fmt.Errorf("%w: held by %q, requested by %q", ErrHandleBusy, cur, owner)
	}
	h.owner.Store(owner)
	var once sync.Once
	return func() {
		once.Do(func() {
			h.owner.Store("")
			h.mu.Unlock()
		})
	}, nil
}

// Owner reports the current owner, or "" when the handle is free.
func (h *Handle) Owner() string {
	s, _ := h.owner.Load().(string)
	return s
}

// CheckOwner fails with ErrHandleBusy when the handle is held by anyone
// other than owner. A free handle passes for every caller.
func (h *Handle) CheckOwner(op, owner string) error {
	if cur := h.Owner(); cur != "" && cur != owner {
		return fmt.Errorf("%s: %w: held by %q, used by %q", op, ErrHandleBusy, cur, owner)
	}
	return nil
}

func (h *Handle) Set(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return h.fail(InvalidValue("set", name, v, nil))
	}
	if err := h.fdm.SetProperty(name, v); err != nil {
		return h.fail(classify("set", name, v, err))
	}
	return nil
}

func (h *Handle) Get(name string) (float64, error) {
	v, err := h.fdm.GetProperty(name)
	if err != nil {
		return 0, h.fail(classify("get", name, math.NaN(), err))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, h.fail(InvalidValue("get", name, v, nil))
	}
	return v, nil
}

// GetAll reads names in order.
func (h *Handle) GetAll(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := h.Get(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Settle re-runs the engine's initial-condition solver.
func (h *Handle) Settle() error {
	start := time.Now()
	err := h.fdm.RunIC()
	if err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			err = InitialConditionFailure("run_ic", err)
		}
	}
	if h.inst != nil {
		h.inst.ObserveSettle(time.Since(start), err)
	}
	if err != nil {
		return h.fail(err)
	}
	return nil
}

func (h *Handle) Step() error {
	if err := h.fdm.Run(); err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			err = InvalidValue("run", "", math.NaN(), err)
		}
		return h.fail(err)
	}
	if h.inst != nil {
		h.inst.ObserveStep()
	}
	return nil
}

func (h *Handle) SimTime() float64 { return h.fdm.SimTime() }

// InitRunning forces an engine to the running state. Engines without a
// propulsion hook are left alone.
func (h *Handle) InitRunning(engine int) error {
	p, ok := h.fdm.(Propulsion)
	if !ok {
		return nil
	}
	if err := p.InitRunning(engine); err != nil {
		return h.fail(classify("init_running", "", math.NaN(), err))
	}
	return nil
}

// ResetIC returns the engine to its own canonical initial condition when it
// supports that. It reports whether a reset happened.
func (h *Handle) ResetIC() (bool, error) {
	r, ok := h.fdm.(Resetter)
	if !ok {
		return false, nil
	}
	if err := r.ResetIC(); err != nil {
		return true, h.fail(InitialConditionFailure("reset_ic", err))
	}
	return true, nil
}

// Has reports whether name appears in the engine catalog.
func (h *Handle) Has(name string) bool {
	if h.catalog == nil {
		h.RefreshCatalog()
	}
	return h.catalog[name]
}

// RefreshCatalog re-reads the catalog; engines may register properties lazily.
func (h *Handle) RefreshCatalog() []string {
	names := CatalogNames(h.fdm)
	h.catalog = make(map[string]bool, len(names))
	for _, n := range names {
		h.catalog[n] = true
	}
	return names
}

// Snapshot reads every catalog property.
func (h *Handle) Snapshot() (map[string]float64, error) {
	names := h.RefreshCatalog()
	snap := make(map[string]float64, len(names))
	for _, n := range names {
		v, err := h.fdm.GetProperty(n)
		if err != nil {
			return nil, h.fail(classify("snapshot", n, math.NaN(), err))
		}
		snap[n] = v
	}
	return snap, nil
}

func (h *Handle) fail(err error) error {
	if h.inst != nil {
		h.inst.ObserveError(KindOf(err))
	}
	return err
}

// classify maps an engine error onto the taxonomy, keeping the original as cause.
func classify(op, name string, v float64, err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, ErrUnknownProperty) {
		e := UnknownProperty(op, name)
		if err != ErrUnknownProperty {
			e.Err = err
		}
		return e
	}
	return InvalidValue(op, name, v, err)
}
