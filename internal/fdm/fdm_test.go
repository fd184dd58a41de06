package fdm

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type mapFDM struct {
	props   map[string]float64
	settles int
	failIC  bool
	running []int
}

func newMapFDM(names ...string) *mapFDM {
	m := &mapFDM{props: make(map[string]float64)}
	for _, n := range names {
		m.props[n] = 0
	}
	return m
}

func (m *mapFDM) SetProperty(name string, v float64) error {
	if _, ok := m.props[name]; !ok {
		return ErrUnknownProperty
	}
	if name == "fcs/locked" {
		return errors.New("read-only")
	}
	m.props[name] = v
	return nil
}

func (m *mapFDM) GetProperty(name string) (float64, error) {
	v, ok := m.props[name]
	if !ok {
		return 0, ErrUnknownProperty
	}
	return v, nil
}

func (m *mapFDM) RunIC() error {
	m.settles++
	if m.failIC {
		return errors.New("trim solver diverged")
	}
	return nil
}

func (m *mapFDM) Run() error       { return nil }
func (m *mapFDM) SimTime() float64 { return 0 }

func (m *mapFDM) PropertyCatalog() []string {
	out := make([]string, 0, len(m.props))
	for n := range m.props {
		out = append(out, n+" (RW)")
	}
	return out
}

func (m *mapFDM) InitRunning(engine int) error {
	m.running = append(m.running, engine)
	return nil
}

func TestCatalogName(t *testing.T) {
	tests := []struct {
		entry string
		want  string
	}{
		{"ic/alpha-rad (RW)", "ic/alpha-rad"},
		{"velocities/vt-fps (R)", "velocities/vt-fps"},
		{"fcs/throttle-cmd-norm[0]", "fcs/throttle-cmd-norm[0]"},
		{"  aero/alpha-rad (RW)", "aero/alpha-rad"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			if got := CatalogName(tt.entry); got != tt.want {
				t.Errorf("CatalogName(%q) = %q, want %q", tt.entry, got, tt.want)
			}
		})
	}
}

func TestHandleErrorTaxonomy(t *testing.T) {
	h := NewHandle(newMapFDM("ic/alpha-rad", "fcs/locked"))

	tests := []struct {
		name string
		err  error
		want error
		kind Kind
	}{
		{"unknown set", h.Set("ic/nope", 1), ErrUnknownProperty, KindUnknownProperty},
		{"nan set", h.Set("ic/alpha-rad", math.NaN()), ErrInvalidValue, KindInvalidValue},
		{"inf set", h.Set("ic/alpha-rad", math.Inf(1)), ErrInvalidValue, KindInvalidValue},
		{"rejected set", h.Set("fcs/locked", 1), ErrInvalidValue, KindInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, tt.err)
			}
			if k := KindOf(tt.err); k != tt.kind {
				t.Errorf("KindOf = %v, want %v", k, tt.kind)
			}
		})
	}

	if _, err := h.Get("ic/nope"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("expected unknown property on get, got %v", err)
	}
}

func TestHandleGetRejectsNaN(t *testing.T) {
	m := newMapFDM("aero/alphadot-rad_sec")
	m.props["aero/alphadot-rad_sec"] = math.NaN()
	h := NewHandle(m)

	_, err := h.Get("aero/alphadot-rad_sec")
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid value, got %v", err)
	}
}

func TestHandleSettleFailure(t *testing.T) {
	m := newMapFDM()
	m.failIC = true
	h := NewHandle(m)

	err := h.Settle()
	if !errors.Is(err, ErrInitialCondition) {
		t.Fatalf("expected initial condition failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "diverged") {
		t.Errorf("cause lost: %v", err)
	}
}

func TestHandleAcquire(t *testing.T) {
	h := NewHandle(newMapFDM())

	release, err := h.Acquire("scenario")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if h.Owner() != "scenario" {
		t.Errorf("owner = %q", h.Owner())
	}

	if _, err := h.Acquire("trim"); !errors.Is(err, ErrHandleBusy) {
		t.Errorf("expected busy handle, got %v", err)
	}

	release()
	release()

	release2, err := h.Acquire("trim")
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	release2()
}

func TestHandleCheckOwner(t *testing.T) {
	h := NewHandle(newMapFDM())
	if err := h.CheckOwner("trim", ""); err != nil {
		t.Errorf("free handle refused: %v", err)
	}

	release, err := h.Acquire("scenario")
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	if err := h.CheckOwner("trim", "scenario"); err != nil {
		t.Errorf("owner refused: %v", err)
	}
	for _, owner := range []string{"", "sweep"} {
		if err := h.CheckOwner("trim", owner); !errors.Is(err, ErrHandleBusy) {
			t.Errorf("CheckOwner(%q) = %v, want busy", owner, err)
		}
	}
}

func TestHandleSnapshotAndHas(t *testing.T) {
	m := newMapFDM("ic/alpha-rad", "velocities/vt-fps")
	m.props["velocities/vt-fps"] = 180
	h := NewHandle(m)

	snap, err := h.Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap["velocities/vt-fps"] != 180 {
		t.Errorf("snapshot vt = %f", snap["velocities/vt-fps"])
	}
	if !h.Has("ic/alpha-rad") || h.Has("ic/beta-rad") {
		t.Error("Has disagrees with catalog")
	}
}

func TestHandleInitRunning(t *testing.T) {
	m := newMapFDM()
	h := NewHandle(m)
	if err := h.InitRunning(0); err != nil {
		t.Fatal(err)
	}
	if len(m.running) != 1 || m.running[0] != 0 {
		t.Errorf("running = %v", m.running)
	}
}

func TestOperatingPointOrder(t *testing.T) {
	op := NewOperatingPoint(
		Entry{"ic/h-sl-ft", 500},
		Entry{"ic/mach", 0.2},
	)
	op.Set("ic/gamma-rad", 0.05)
	op.Set("ic/mach", 0.25)

	keys := op.Keys()
	want := []string{"ic/h-sl-ft", "ic/mach", "ic/gamma-rad"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
	if v, _ := op.Get("ic/mach"); v != 0.25 {
		t.Errorf("mach = %f", v)
	}

	c := op.Clone()
	c.Set("ic/mach", 0.3)
	if v, _ := op.Get("ic/mach"); v != 0.25 {
		t.Error("Clone shares storage")
	}
}

func TestOperatingPointYAML(t *testing.T) {
	op := NewOperatingPoint(Entry{"ic/psi-true-rad", 1.5}, Entry{"ic/alpha-rad", 0.04})

	data, err := yaml.Marshal(op)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back OperatingPoint
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Keys()[0] != "ic/psi-true-rad" {
		t.Errorf("order lost: %v", back.Keys())
	}
	if v, _ := back.Get("ic/alpha-rad"); v != 0.04 {
		t.Errorf("alpha = %f", v)
	}
}

func TestOperatingPointApply(t *testing.T) {
	m := newMapFDM("ic/alpha-rad", "ic/q-rad_sec")
	h := NewHandle(m)

	op := NewOperatingPoint(Entry{"ic/alpha-rad", 0.1}, Entry{"ic/q-rad_sec", -0.2})
	if err := op.Apply(h); err != nil {
		t.Fatal(err)
	}
	if m.props["ic/q-rad_sec"] != -0.2 {
		t.Errorf("q = %f", m.props["ic/q-rad_sec"])
	}

	op.Set("ic/unknown", 1)
	if err := op.Apply(h); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("expected unknown property, got %v", err)
	}
}
