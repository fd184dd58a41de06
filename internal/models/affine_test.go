package models

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/aerotrim/internal/fdm"
)

func mustBuiltin(t *testing.T, name string) *Affine {
	t.Helper()
	spec, err := Builtin(name)
	if err != nil {
		t.Fatalf("builtin %s: %v", name, err)
	}
	a, err := NewAffine(spec)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return a
}

func get(t *testing.T, a *Affine, name string) float64 {
	t.Helper()
	v, err := a.GetProperty(name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return v
}

func TestShortPeriodSettle(t *testing.T) {
	a := mustBuiltin(t, "short-period")
	if err := a.SetProperty("ic/alpha-rad", 0.1); err != nil {
		t.Fatal(err)
	}
	if err := a.RunIC(); err != nil {
		t.Fatal(err)
	}

	if v := get(t, a, "aero/alphadot-rad_sec"); math.Abs(v+0.2) > 1e-12 {
		t.Errorf("alphadot = %f, want -0.2", v)
	}
	if v := get(t, a, "accelerations/qdot-rad_sec2"); math.Abs(v+0.1) > 1e-12 {
		t.Errorf("qdot = %f, want -0.1", v)
	}
	if a.SimTime() != 0 {
		t.Errorf("settle should reset time, got %f", a.SimTime())
	}
}

func TestShortPeriodDecays(t *testing.T) {
	a := mustBuiltin(t, "short-period")
	a.SetProperty("ic/alpha-rad", 0.1)
	if err := a.RunIC(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 1000; i++ {
		if err := a.Run(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if math.Abs(a.SimTime()-10) > 1e-9 {
		t.Errorf("sim time = %f, want 10", a.SimTime())
	}
	if v := get(t, a, "aero/alpha-rad"); math.Abs(v) > 1e-4 {
		t.Errorf("alpha should decay, got %f", v)
	}
}

func TestPropertyErrors(t *testing.T) {
	a := mustBuiltin(t, "short-period")

	if err := a.SetProperty("ic/nope", 1); !errors.Is(err, fdm.ErrUnknownProperty) {
		t.Errorf("expected unknown property, got %v", err)
	}
	if _, err := a.GetProperty("ic/nope"); !errors.Is(err, fdm.ErrUnknownProperty) {
		t.Errorf("expected unknown property, got %v", err)
	}
	if err := a.SetProperty("aero/alphadot-rad_sec", 1); !errors.Is(err, fdm.ErrInvalidValue) {
		t.Errorf("outputs should be read-only, got %v", err)
	}
	if err := a.SetProperty("ic/alpha-rad", math.NaN()); !errors.Is(err, fdm.ErrInvalidValue) {
		t.Errorf("expected invalid value, got %v", err)
	}
}

func TestCatalogFlags(t *testing.T) {
	a := mustBuiltin(t, "c172-linear")
	catalog := strings.Join(a.PropertyCatalog(), "\n")

	for _, want := range []string{
		"ic/alpha-rad (RW)",
		"accelerations/udot-ft_sec2 (R)",
		"fcs/throttle-cmd-norm (RW)",
		"propulsion/engine[0]/set-running (RW)",
	} {
		if !strings.Contains(catalog, want) {
			t.Errorf("catalog missing %q", want)
		}
	}
}

func TestC172TrimmedAtDefaults(t *testing.T) {
	a := mustBuiltin(t, "c172-linear")
	if err := a.ResetIC(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"accelerations/udot-ft_sec2", "accelerations/vdot-ft_sec2", "accelerations/wdot-ft_sec2",
		"accelerations/pdot-rad_sec2", "accelerations/qdot-rad_sec2", "accelerations/rdot-rad_sec2",
	} {
		if v := get(t, a, name); math.Abs(v) > 1e-3 {
			t.Errorf("%s = %g, want ~0", name, v)
		}
	}
}

func TestInitialRelations(t *testing.T) {
	a := mustBuiltin(t, "c172-linear")
	a.SetProperty("ic/mach", 0.2)
	if err := a.RunIC(); err != nil {
		t.Fatal(err)
	}
	u := get(t, a, "velocities/u-fps")
	if math.Abs(u-223.29) > 1e-9 {
		t.Fatalf("u = %f, want 223.29", u)
	}
	w := get(t, a, "velocities/w-fps")
	if math.Abs(w-u*0.02) > 1e-9 {
		t.Errorf("w = %f, want %f", w, u*0.02)
	}

	// Writing u directly wins over the mach relation and leaves w alone.
	a.SetProperty("ic/u-fps", 100)
	if err := a.RunIC(); err != nil {
		t.Fatal(err)
	}
	if v := get(t, a, "velocities/u-fps"); v != 100 {
		t.Errorf("u = %f, want 100", v)
	}
	if v := get(t, a, "velocities/w-fps"); math.Abs(v-w) > 1e-9 {
		t.Errorf("w changed to %f", v)
	}
}

func TestAlias(t *testing.T) {
	a := mustBuiltin(t, "c172-linear")
	if err := a.SetProperty("fcs/throttle-cmd-norm", 0.9); err != nil {
		t.Fatal(err)
	}
	if v := get(t, a, "fcs/throttle-cmd-norm[0]"); v != 0.9 {
		t.Errorf("throttle[0] = %f, want 0.9", v)
	}
}

func TestHoldDown(t *testing.T) {
	a := mustBuiltin(t, "c172-linear")
	a.SetProperty("ic/u-fps", 0)
	a.SetProperty("fcs/throttle-cmd-norm", 1)
	a.SetProperty("forces/hold-down", 1)
	if err := a.RunIC(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 120; i++ {
		if err := a.Run(); err != nil {
			t.Fatal(err)
		}
	}
	if v := get(t, a, "velocities/u-fps"); v != 0 {
		t.Errorf("held aircraft moved: u = %f", v)
	}

	a.SetProperty("forces/hold-down", 0)
	for i := 0; i < 120; i++ {
		a.Run()
	}
	if v := get(t, a, "velocities/u-fps"); v <= 0 {
		t.Errorf("released aircraft should accelerate, u = %f", v)
	}
}

func TestInitRunning(t *testing.T) {
	a := mustBuiltin(t, "c172-linear")
	if err := a.InitRunning(0); err != nil {
		t.Fatal(err)
	}
	if v := get(t, a, "propulsion/engine[0]/set-running"); v != 1 {
		t.Errorf("set-running = %f", v)
	}
	if err := a.InitRunning(3); !errors.Is(err, fdm.ErrInvalidValue) {
		t.Errorf("expected out of range error, got %v", err)
	}

	sp := mustBuiltin(t, "short-period")
	if err := sp.InitRunning(0); err != nil {
		t.Errorf("engine-less model should ignore InitRunning: %v", err)
	}
}

func TestResetIC(t *testing.T) {
	a := mustBuiltin(t, "short-period")
	a.SetProperty("ic/alpha-rad", 0.3)
	a.SetProperty("fcs/elevator-cmd-norm", 0.5)
	a.RunIC()

	if err := a.ResetIC(); err != nil {
		t.Fatal(err)
	}
	if v := get(t, a, "aero/alpha-rad"); v != 0 {
		t.Errorf("alpha = %f after reset", v)
	}
	if v := get(t, a, "fcs/elevator-cmd-norm"); v != 0 {
		t.Errorf("elevator = %f after reset", v)
	}
}

func TestNewAffineErrors(t *testing.T) {
	tests := []struct {
		name string
		spec AffineSpec
		want error
	}{
		{
			"unknown term",
			AffineSpec{
				Name:    "bad",
				States:  []StateSpec{{Name: "x", Derivative: "xdot"}},
				Outputs: []Relation{{Name: "xdot", Terms: map[string]float64{"y": 1}}},
			},
			fdm.ErrUnknownProperty,
		},
		{
			"bad integrator",
			AffineSpec{Name: "bad", Integrator: "verlet"},
			fdm.ErrInvalidConfiguration,
		},
		{
			"negative dt",
			AffineSpec{Name: "bad", Dt: -1},
			fdm.ErrInvalidConfiguration,
		},
		{
			"shadowed output",
			AffineSpec{
				Name:       "bad",
				Properties: fdm.NewOperatingPoint(fdm.Entry{Name: "x", Value: 0}),
				Outputs:    []Relation{{Name: "x"}},
			},
			fdm.ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAffine(tt.spec); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSettleRejectsNaN(t *testing.T) {
	spec := AffineSpec{
		Name:       "blowup",
		Properties: fdm.NewOperatingPoint(fdm.Entry{Name: "ic/x", Value: 1e200}),
		States:     []StateSpec{{Name: "x", Derivative: "xdot", IC: "ic/x"}},
		Outputs: []Relation{{
			Name:     "xdot",
			Products: []Product{{A: "x", B: "x", Gain: 1e200}},
		}},
	}
	a, err := NewAffine(spec)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.RunIC(); !errors.Is(err, fdm.ErrInitialCondition) {
		t.Errorf("expected initial condition failure, got %v", err)
	}
}

func TestIntegratorsAgree(t *testing.T) {
	run := func(integrator string) float64 {
		spec, err := Builtin("short-period")
		if err != nil {
			t.Fatal(err)
		}
		spec.Integrator = integrator
		a, err := NewAffine(spec)
		if err != nil {
			t.Fatal(err)
		}
		a.SetProperty("ic/alpha-rad", 0.1)
		if err := a.RunIC(); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 100; i++ {
			if err := a.Run(); err != nil {
				t.Fatal(err)
			}
		}
		return get(t, a, "aero/alpha-rad")
	}

	rk4, rk45 := run("rk4"), run("rk45")
	if math.Abs(rk4-rk45) > 1e-7 {
		t.Errorf("alpha(1s): rk4 %g, rk45 %g", rk4, rk45)
	}
	if euler := run("euler"); math.Abs(euler-rk4) > 1e-3 || euler == rk4 {
		t.Errorf("alpha(1s): euler %g should be close to but not equal rk4 %g", euler, rk4)
	}
}
