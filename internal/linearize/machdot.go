package linearize

import (
	"github.com/san-kum/aerotrim/internal/atmos"
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/props"
)

// MachDot is the rate of change of Mach number implied by the current body
// velocities and accelerations:
//
//	(u*udot + v*vdot + w*wdot) / vt / a(h)
//
// with a(h) the standard-atmosphere speed of sound in ft/s.
func MachDot(h *fdm.Handle) (float64, error) {
	v, err := h.GetAll(props.Names(
		props.VelU, props.AccUDot,
		props.VelV, props.AccVDot,
		props.VelW, props.AccWDot,
		props.VelVt,
	))
	if err != nil {
		return 0, err
	}
	vt := v[6]
	if vt == 0 {
		return 0, fdm.InvalidValue("machdot", props.VelVt.Name(), vt, nil)
	}

	a, err := speedOfSoundFps(h)
	if err != nil {
		return 0, err
	}
	return (v[0]*v[1] + v[2]*v[3] + v[4]*v[5]) / vt / a, nil
}

func speedOfSoundFps(h *fdm.Handle) (float64, error) {
	if h.Has(props.PosHSlMeters.Name()) {
		m, err := h.Get(props.PosHSlMeters.Name())
		if err != nil {
			return 0, err
		}
		return atmos.MToFt(atmos.SpeedOfSound(m)), nil
	}
	ft, err := h.Get(props.PosHSlFt.Name())
	if err != nil {
		return 0, err
	}
	return atmos.SpeedOfSoundFps(ft), nil
}
