// Package props enumerates the engine properties aerotrim reads and writes.
//
// Known names are [ID] constants; anything engine-specific goes through a
// [Registry] so it is still checked against the engine catalog at startup.
package props

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/aerotrim/internal/fdm"
)

type ID int

const (
	Invalid ID = iota

	// Initial conditions.
	ICHSlFt
	ICHAglFt
	ICMach
	ICUFps
	ICVFps
	ICWFps
	ICPRadSec
	ICQRadSec
	ICRRadSec
	ICAlphaRad
	ICBetaRad
	ICPhiRad
	ICThetaRad
	ICPsiTrueRad
	ICGammaRad
	ICAlphaDeg
	ICBetaDeg

	// Body-axis velocities and rates.
	VelU
	VelV
	VelW
	VelVt
	VelP
	VelQ
	VelR
	VelPhiDot
	VelThetaDot
	VelPsiDot
	VelHDot

	// Body-axis accelerations.
	AccUDot
	AccVDot
	AccWDot
	AccPDot
	AccQDot
	AccRDot

	AeroAlphaDot
	AeroBetaDot
	AeroAlphaDeg
	AeroBetaDeg

	AttPhi
	AttTheta
	AttPsi

	PosHSlMeters
	PosHSlFt
	PosHAglFt

	FCSAileron
	FCSElevator
	FCSRudder
	FCSFlap
	FCSMixture
	FCSThrottle
	FCSThrottle0

	PropMagneto
	PropStarter
	ForcesHoldDown

	CustomMachDot

	numIDs
)

var names = [numIDs]string{
	Invalid: "",

	ICHSlFt:      "ic/h-sl-ft",
	ICHAglFt:     "ic/h-agl-ft",
	ICMach:       "ic/mach",
	ICUFps:       "ic/u-fps",
	ICVFps:       "ic/v-fps",
	ICWFps:       "ic/w-fps",
	ICPRadSec:    "ic/p-rad_sec",
	ICQRadSec:    "ic/q-rad_sec",
	ICRRadSec:    "ic/r-rad_sec",
	ICAlphaRad:   "ic/alpha-rad",
	ICBetaRad:    "ic/beta-rad",
	ICPhiRad:     "ic/phi-rad",
	ICThetaRad:   "ic/theta-rad",
	ICPsiTrueRad: "ic/psi-true-rad",
	ICGammaRad:   "ic/gamma-rad",
	ICAlphaDeg:   "ic/alpha-deg",
	ICBetaDeg:    "ic/beta-deg",

	VelU:        "velocities/u-fps",
	VelV:        "velocities/v-fps",
	VelW:        "velocities/w-fps",
	VelVt:       "velocities/vt-fps",
	VelP:        "velocities/p-rad_sec",
	VelQ:        "velocities/q-rad_sec",
	VelR:        "velocities/r-rad_sec",
	VelPhiDot:   "velocities/phidot-rad_sec",
	VelThetaDot: "velocities/thetadot-rad_sec",
	VelPsiDot:   "velocities/psidot-rad_sec",
	VelHDot:     "velocities/h-dot-fps",

	AccUDot: "accelerations/udot-ft_sec2",
	AccVDot: "accelerations/vdot-ft_sec2",
	AccWDot: "accelerations/wdot-ft_sec2",
	AccPDot: "accelerations/pdot-rad_sec2",
	AccQDot: "accelerations/qdot-rad_sec2",
	AccRDot: "accelerations/rdot-rad_sec2",

	AeroAlphaDot: "aero/alphadot-rad_sec",
	AeroBetaDot:  "aero/betadot-rad_sec",
	AeroAlphaDeg: "aero/alpha-deg",
	AeroBetaDeg:  "aero/beta-deg",

	AttPhi:   "attitude/phi-rad",
	AttTheta: "attitude/theta-rad",
	AttPsi:   "attitude/psi-rad",

	PosHSlMeters: "position/h-sl-meters",
	PosHSlFt:     "position/h-sl-ft",
	PosHAglFt:    "position/h-agl-ft",

	FCSAileron:   "fcs/aileron-cmd-norm",
	FCSElevator:  "fcs/elevator-cmd-norm",
	FCSRudder:    "fcs/rudder-cmd-norm",
	FCSFlap:      "fcs/flap-cmd-norm",
	FCSMixture:   "fcs/mixture-cmd-norm",
	FCSThrottle:  "fcs/throttle-cmd-norm",
	FCSThrottle0: "fcs/throttle-cmd-norm[0]",

	PropMagneto:    "propulsion/magneto_cmd",
	PropStarter:    "propulsion/starter_cmd",
	ForcesHoldDown: "forces/hold-down",

	CustomMachDot: "custom/machdot",
}

var byName = func() map[string]ID {
	m := make(map[string]ID, numIDs)
	for id := ID(1); id < numIDs; id++ {
		m[names[id]] = id
	}
	return m
}()

func (id ID) String() string {
	if id <= Invalid || id >= numIDs {
		return fmt.Sprintf("props.ID(%d)", int(id))
	}
	return names[id]
}

// Name is the engine-side property path.
func (id ID) Name() string { return id.String() }

func Lookup(name string) (ID, bool) {
	id, ok := byName[name]
	return id, ok
}

// Names maps ids to their property paths.
func Names(ids ...ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Name()
	}
	return out
}

// Accelerations are the six body-axis accelerations trim drives to zero.
var Accelerations = []ID{AccUDot, AccVDot, AccWDot, AccPDot, AccQDot, AccRDot}

// Derived lists names aerotrim computes itself rather than reading from the engine.
var Derived = []ID{CustomMachDot}

func IsDerived(name string) bool {
	for _, id := range Derived {
		if id.Name() == name {
			return true
		}
	}
	return false
}

// Registry is the lookup table for a particular engine build: the known IDs
// plus any extension names the caller registers.
type Registry struct {
	extensions map[string]bool
}

func NewRegistry(extensions ...string) *Registry {
	r := &Registry{extensions: make(map[string]bool)}
	for _, e := range extensions {
		r.Register(e)
	}
	return r
}

func (r *Registry) Register(name string) {
	r.extensions[name] = true
}

// Known reports whether name is an ID or a registered extension.
func (r *Registry) Known(name string) bool {
	if _, ok := byName[name]; ok {
		return true
	}
	return r.extensions[name]
}

// Validate checks that every name in required is either present in the
// engine catalog or derived locally. The error lists every missing name.
func (r *Registry) Validate(catalog []string, required []string) error {
	have := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		have[c] = true
	}

	var missing []string
	for _, n := range required {
		if have[n] || IsDerived(n) {
			continue
		}
		missing = append(missing, n)
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	e := fdm.UnknownProperty("validate", missing[0])
	e.Message = "engine catalog is missing " + strings.Join(missing, ", ")
	return e
}

// Unrecognized returns catalog names the registry knows nothing about.
func (r *Registry) Unrecognized(catalog []string) []string {
	var out []string
	for _, c := range catalog {
		if !r.Known(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
