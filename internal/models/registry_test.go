package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	names := r.List()
	if len(names) != 2 || names[0] != "c172-linear" || names[1] != "short-period" {
		t.Fatalf("List() = %v", names)
	}
	if r.Describe("short-period") == "" {
		t.Error("missing description")
	}

	a, err := r.Get("short-period")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Get("short-period")
	a.SetProperty("ic/alpha-rad", 1)
	if v, _ := b.GetProperty("ic/alpha-rad"); v != 0 {
		t.Error("Get should build independent engines")
	}

	if _, err := r.Get("concorde"); err == nil {
		t.Error("expected unknown model error")
	}
}

func TestRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roll.yaml")
	data := []byte(`name: roll
dt: 0.02
properties:
  ic/p-rad_sec: 0
  fcs/aileron-cmd-norm: 0
states:
  - {name: velocities/p-rad_sec, derivative: accelerations/pdot-rad_sec2, ic: ic/p-rad_sec}
outputs:
  - name: accelerations/pdot-rad_sec2
    terms:
      velocities/p-rad_sec: -4
      fcs/aileron-cmd-norm: 10
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	name, err := r.RegisterFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if name != "roll" {
		t.Errorf("name = %q", name)
	}

	a, err := r.Get("roll")
	if err != nil {
		t.Fatal(err)
	}
	if a.Dt() != 0.02 {
		t.Errorf("dt = %f", a.Dt())
	}
	a.SetProperty("fcs/aileron-cmd-norm", 0.5)
	a.RunIC()
	if v, _ := a.GetProperty("accelerations/pdot-rad_sec2"); v != 5 {
		t.Errorf("pdot = %f, want 5", v)
	}
}

func TestRegistryFileMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.RegisterFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestRegistrySpecIsACopy(t *testing.T) {
	r := NewRegistry()
	spec, err := r.Spec("short-period")
	if err != nil {
		t.Fatal(err)
	}
	spec.Dt = 0.5
	spec.Properties.Set("ic/alpha-rad", 1)

	again, err := r.Spec("short-period")
	if err != nil {
		t.Fatal(err)
	}
	if again.Dt == 0.5 {
		t.Error("changing a returned spec should not touch the registry")
	}
	if v, _ := again.Properties.Get("ic/alpha-rad"); v == 1 {
		t.Error("properties should be cloned")
	}
	if _, err := r.Spec("nope"); err == nil {
		t.Error("expected an error for an unknown model")
	}
}
