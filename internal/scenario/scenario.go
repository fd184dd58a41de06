// Package scenario sequences a time-stepped run of an engine through named
// stages, trimming and linearizing along the way.
package scenario

import (
	"embed"
	"fmt"
	"math"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/trim"
	"gopkg.in/yaml.v3"
)

// Until ends a stage once Property crosses a threshold.
type Until struct {
	Property string   `yaml:"property"`
	Above    *float64 `yaml:"above,omitempty"`
	Below    *float64 `yaml:"below,omitempty"`
}

func (u *Until) holds(sample map[string]float64) bool {
	v, ok := sample[u.Property]
	if !ok {
		return false
	}
	if u.Above != nil && v > *u.Above {
		return true
	}
	return u.Below != nil && v < *u.Below
}

func (u *Until) String() string {
	if u.Above != nil {
		return fmt.Sprintf("%s > %g", u.Property, *u.Above)
	}
	if u.Below != nil {
		return fmt.Sprintf("%s < %g", u.Property, *u.Below)
	}
	return u.Property
}

// TrimCondition is a wings-level trim requested on stage entry.
type TrimCondition struct {
	AltitudeFt float64 `yaml:"altitude_ft"`
	Mach       float64 `yaml:"mach"`
	PhiRad     float64 `yaml:"phi_rad,omitempty"`
	PsiRad     float64 `yaml:"psi_rad,omitempty"`
	GammaRad   float64 `yaml:"gamma_rad,omitempty"`
}

func (c TrimCondition) Input() trim.WingsLevelInput {
	return trim.WingsLevelInput{
		AltitudeFt: c.AltitudeFt,
		Mach:       c.Mach,
		PhiRad:     c.PhiRad,
		PsiRad:     c.PsiRad,
		GammaRad:   c.GammaRad,
	}
}

// Stage is one phase of a scenario. Set is written before every step while
// the stage is active. A stage with neither HoldFor nor Until lasts until the
// scenario ends.
type Stage struct {
	Name      string              `yaml:"name"`
	Set       *fdm.OperatingPoint `yaml:"set,omitempty"`
	HoldFor   float64             `yaml:"hold_for,omitempty"`
	Until     *Until              `yaml:"until,omitempty"`
	Trim      *TrimCondition      `yaml:"trim,omitempty"`
	Linearize []string            `yaml:"linearize,omitempty"`
}

type Scenario struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description,omitempty"`
	Duration    float64             `yaml:"duration"`
	Realtime    bool                `yaml:"realtime,omitempty"`
	Initial     *fdm.OperatingPoint `yaml:"initial,omitempty"`
	Log         []string            `yaml:"log,omitempty"`
	Stages      []Stage             `yaml:"stages"`
}

// DefaultColumns are logged when a scenario names none.
var DefaultColumns = []string{
	"position/h-agl-ft",
	"attitude/phi-rad",
	"attitude/theta-rad",
	"attitude/psi-rad",
	"aero/alpha-deg",
	"aero/beta-deg",
	"velocities/u-fps",
	"velocities/v-fps",
	"velocities/w-fps",
	"velocities/vt-fps",
	"velocities/p-rad_sec",
	"velocities/q-rad_sec",
	"velocities/r-rad_sec",
	"velocities/phidot-rad_sec",
	"velocities/thetadot-rad_sec",
	"velocities/psidot-rad_sec",
}

func (s *Scenario) Columns() []string {
	if len(s.Log) > 0 {
		return s.Log
	}
	return DefaultColumns
}

func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fdm.InvalidConfiguration("scenario", "missing name")
	}
	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return fdm.InvalidConfiguration("scenario", "%s: duration must be positive, got %g", s.Name, s.Duration)
	}
	if len(s.Stages) == 0 {
		return fdm.InvalidConfiguration("scenario", "%s: no stages", s.Name)
	}
	seen := make(map[string]bool)
	for i, st := range s.Stages {
		if st.Name == "" {
			return fdm.InvalidConfiguration("scenario", "%s: stage %d has no name", s.Name, i)
		}
		if seen[st.Name] {
			return fdm.InvalidConfiguration("scenario", "%s: duplicate stage %q", s.Name, st.Name)
		}
		seen[st.Name] = true
		if st.HoldFor < 0 {
			return fdm.InvalidConfiguration("scenario", "%s/%s: negative hold_for", s.Name, st.Name)
		}
		if u := st.Until; u != nil {
			if u.Property == "" || (u.Above == nil) == (u.Below == nil) {
				return fdm.InvalidConfiguration("scenario", "%s/%s: until needs a property and exactly one of above or below", s.Name, st.Name)
			}
		}
		for _, p := range st.Linearize {
			if _, err := linearize.GetPreset(p); err != nil {
				return fdm.InvalidConfiguration("scenario", "%s/%s: %v", s.Name, st.Name, err)
			}
		}
	}
	return nil
}

// Required lists every engine property the scenario writes, logs, watches,
// trims or linearizes, without duplicates.
func (s *Scenario) Required() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	add(s.Initial.Keys()...)
	add(s.Columns()...)
	for _, st := range s.Stages {
		add(st.Set.Keys()...)
		if st.Until != nil {
			add(st.Until.Property)
		}
		if st.Trim != nil {
			add(trim.WingsLevelRequired()...)
		}
		for _, name := range st.Linearize {
			if p, err := linearize.GetPreset(name); err == nil {
				add(p.Required()...)
			}
		}
	}
	return out
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown scenario: %s", name)
	}
	return Parse(data)
}

// Resolve loads a built-in scenario by name, or a scenario file otherwise.
func Resolve(nameOrPath string) (*Scenario, error) {
	for _, n := range BuiltinNames() {
		if n == nameOrPath {
			return Builtin(n)
		}
	}
	return Load(nameOrPath)
}
