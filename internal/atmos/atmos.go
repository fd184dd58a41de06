// Package atmos implements the 1976 standard atmosphere up to 47 km and the
// unit conversions used when talking to engines that work in feet.
package atmos

import (
	"fmt"
	"math"
)

const (
	SeaLevelTempK     = 288.15
	SeaLevelPressure  = 101325.0 // Pa
	SeaLevelDensity   = 1.225    // kg/m^3
	GasConstant       = 287.05287
	HeatCapacityRatio = 1.4
	Gravity           = 9.80665
	EarthRadius       = 6356766.0 // m, used for geopotential altitude
)

type layer struct {
	base      float64 // geopotential base altitude, m
	tempK     float64
	pressure  float64
	lapseRate float64 // K/m
}

// Base values follow from integrating the hydrostatic equation layer by layer.
var layers = []layer{
	{base: 0, tempK: 288.15, pressure: 101325.0, lapseRate: -0.0065},
	{base: 11000, tempK: 216.65, pressure: 22632.06, lapseRate: 0},
	{base: 20000, tempK: 216.65, pressure: 5474.889, lapseRate: 0.001},
	{base: 32000, tempK: 228.65, pressure: 868.0187, lapseRate: 0.0028},
}

// MaxAltitude is the top of the modeled atmosphere (geometric, m).
const MaxAltitude = 47000.0

// Sample is the atmosphere state at one altitude.
type Sample struct {
	AltitudeM    float64
	TemperatureK float64
	PressurePa   float64
	Density      float64
	SpeedOfSound float64 // m/s
}

func (s Sample) String() string {
	return fmt.Sprintf("h=%.0fm T=%.2fK p=%.1fPa rho=%.4f a=%.2fm/s",
		s.AltitudeM, s.TemperatureK, s.PressurePa, s.Density, s.SpeedOfSound)
}

// Geopotential converts a geometric altitude to geopotential altitude.
func Geopotential(h float64) float64 {
	return EarthRadius * h / (EarthRadius + h)
}

// At evaluates the standard atmosphere at geometric altitude h (meters).
// Altitudes outside [-610 m, MaxAltitude] are clamped.
func At(h float64) Sample {
	h = math.Max(-610, math.Min(h, MaxAltitude))
	hg := Geopotential(h)

	l := layers[0]
	for _, cand := range layers[1:] {
		if hg >= cand.base {
			l = cand
		}
	}

	dh := hg - l.base
	t := l.tempK + l.lapseRate*dh
	var p float64
	if l.lapseRate == 0 {
		p = l.pressure * math.Exp(-Gravity*dh/(GasConstant*l.tempK))
	} else {
		p = l.pressure * math.Pow(t/l.tempK, -Gravity/(GasConstant*l.lapseRate))
	}

	return Sample{
		AltitudeM:    h,
		TemperatureK: t,
		PressurePa:   p,
		Density:      p / (GasConstant * t),
		SpeedOfSound: math.Sqrt(HeatCapacityRatio * GasConstant * t),
	}
}

// SpeedOfSound returns the speed of sound in m/s at geometric altitude h (meters).
func SpeedOfSound(h float64) float64 {
	return At(h).SpeedOfSound
}

// SpeedOfSoundFps returns the speed of sound in ft/s at an altitude in feet.
func SpeedOfSoundFps(hFt float64) float64 {
	return MToFt(SpeedOfSound(FtToM(hFt)))
}

func FtToM(ft float64) float64 { return ft * 0.3048 }

func MToFt(m float64) float64 { return m / 0.3048 }

func NmToLbft(nm float64) float64 { return nm * 0.7375621493 }

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
