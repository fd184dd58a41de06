package linearize

import (
	"fmt"
	"sort"

	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/props"
)

// Preset is a fixed choice of states, derivatives and inputs.
type Preset struct {
	Name        string
	Description string
	States      []props.ID
	Derivs      []props.ID
	Inputs      []props.ID
}

// Run linearizes h around op using the preset's names.
func (p Preset) Run(h *fdm.Handle, op *fdm.OperatingPoint, opts Options) (*Model, error) {
	m, err := Linearize(h, props.Names(p.States...), props.Names(p.Derivs...), props.Names(p.Inputs...), op, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	return m, nil
}

// Required lists every engine property the preset touches.
func (p Preset) Required() []string {
	var ids []props.ID
	ids = append(ids, p.States...)
	ids = append(ids, p.Derivs...)
	ids = append(ids, p.Inputs...)
	return props.Names(ids...)
}

type LongitudinalOptions struct {
	// UW uses body velocities u and w instead of Mach and alpha.
	UW bool
	// Altitude appends height above ground as a fifth state.
	Altitude bool
}

func LongitudinalPreset(lo LongitudinalOptions) Preset {
	p := Preset{Name: "longitudinal", Description: "Mach, alpha, pitch attitude and rate"}
	if lo.UW {
		p.Name += "-uw"
		p.Description = "u, w, pitch attitude and rate"
		p.States = []props.ID{props.ICUFps, props.ICWFps}
		p.Derivs = []props.ID{props.AccUDot, props.AccWDot}
	} else {
		p.States = []props.ID{props.ICMach, props.ICAlphaRad}
		p.Derivs = []props.ID{props.CustomMachDot, props.AeroAlphaDot}
	}
	p.States = append(p.States, props.ICThetaRad, props.ICQRadSec)
	p.Derivs = append(p.Derivs, props.VelThetaDot, props.AccQDot)
	if lo.Altitude {
		p.Name += "-h"
		p.Description += ", altitude"
		p.States = append(p.States, props.ICHAglFt)
		p.Derivs = append(p.Derivs, props.VelHDot)
	}
	p.Inputs = []props.ID{props.FCSThrottle0, props.FCSElevator}
	return p
}

var (
	LateralPreset = Preset{
		Name:        "lateral",
		Description: "sideslip velocity, roll and yaw rates, bank and heading",
		States:      []props.ID{props.ICVFps, props.ICPRadSec, props.ICRRadSec, props.ICPhiRad, props.ICPsiTrueRad},
		Derivs:      []props.ID{props.AccVDot, props.AccPDot, props.AccRDot, props.VelPhiDot, props.VelPsiDot},
		Inputs:      []props.ID{props.FCSAileron, props.FCSRudder},
	}

	ShortPeriodPreset = Preset{
		Name:        "short-period",
		Description: "alpha and pitch rate driven by the elevator",
		States:      []props.ID{props.ICAlphaRad, props.ICQRadSec},
		Derivs:      []props.ID{props.AeroAlphaDot, props.AccQDot},
		Inputs:      []props.ID{props.FCSElevator},
	}

	DutchRollPreset = Preset{
		Name:        "dutch-roll",
		Description: "sideslip and yaw rate driven by aileron and rudder",
		States:      []props.ID{props.ICBetaRad, props.ICRRadSec},
		Derivs:      []props.ID{props.AeroBetaDot, props.AccRDot},
		Inputs:      []props.ID{props.FCSAileron, props.FCSRudder},
	}
)

var presets = map[string]Preset{}

func init() {
	for _, p := range []Preset{
		LongitudinalPreset(LongitudinalOptions{}),
		LongitudinalPreset(LongitudinalOptions{UW: true}),
		LongitudinalPreset(LongitudinalOptions{Altitude: true}),
		LongitudinalPreset(LongitudinalOptions{UW: true, Altitude: true}),
		LateralPreset,
		ShortPeriodPreset,
		DutchRollPreset,
	} {
		presets[p.Name] = p
	}
}

func GetPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown linearization preset: %s", name)
	}
	return p, nil
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Longitudinal(h *fdm.Handle, op *fdm.OperatingPoint, lo LongitudinalOptions, opts Options) (*Model, error) {
	return LongitudinalPreset(lo).Run(h, op, opts)
}

func LateralDirectional(h *fdm.Handle, op *fdm.OperatingPoint, opts Options) (*Model, error) {
	return LateralPreset.Run(h, op, opts)
}

func ShortPeriod(h *fdm.Handle, op *fdm.OperatingPoint, opts Options) (*Model, error) {
	return ShortPeriodPreset.Run(h, op, opts)
}

func DutchRoll(h *fdm.Handle, op *fdm.OperatingPoint, opts Options) (*Model, error) {
	return DutchRollPreset.Run(h, op, opts)
}
