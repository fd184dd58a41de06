package config

import "sort"

// Presets are named wings-level flight conditions for the built-in aircraft.
var Presets = map[string]Condition{
	"cruise":   {AltitudeFt: 3000, Mach: 0.16123},
	"climb":    {AltitudeFt: 2500, Mach: 0.16123, GammaRad: 0.05},
	"approach": {AltitudeFt: 1000, Mach: 0.16123, GammaRad: -0.0175},
	"descent":  {AltitudeFt: 6000, Mach: 0.16123, GammaRad: -0.015},
}

func GetPreset(name string) (Condition, bool) {
	c, ok := Presets[name]
	return c, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
