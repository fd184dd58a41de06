package atmos

import (
	"math"
	"testing"
)

func TestStandardAtmosphere(t *testing.T) {
	tests := []struct {
		name  string
		h     float64
		tempK float64
		pPa   float64
		a     float64
	}{
		{"sea level", 0, 288.15, 101325, 340.29},
		{"5 km", 5000, 255.68, 54048, 320.55},
		{"tropopause", 11019, 216.65, 22632, 295.07},
		{"20 km", 20000, 216.65, 5529, 295.07},
		{"30 km", 30000, 226.51, 1197, 301.71},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := At(tt.h)
			if math.Abs(s.TemperatureK-tt.tempK) > 0.1 {
				t.Errorf("temperature = %.3f, want %.3f", s.TemperatureK, tt.tempK)
			}
			if math.Abs(s.PressurePa-tt.pPa)/tt.pPa > 2e-3 {
				t.Errorf("pressure = %.1f, want %.1f", s.PressurePa, tt.pPa)
			}
			if math.Abs(s.SpeedOfSound-tt.a) > 0.1 {
				t.Errorf("speed of sound = %.3f, want %.3f", s.SpeedOfSound, tt.a)
			}
		})
	}
}

func TestSeaLevelDensity(t *testing.T) {
	if rho := At(0).Density; math.Abs(rho-SeaLevelDensity) > 1e-3 {
		t.Errorf("density = %f, want %f", rho, SeaLevelDensity)
	}
}

func TestClamp(t *testing.T) {
	if At(1e6).TemperatureK != At(MaxAltitude).TemperatureK {
		t.Error("altitude above the model should clamp")
	}
}

func TestSpeedOfSoundFps(t *testing.T) {
	got := SpeedOfSoundFps(0)
	want := 1116.45
	if math.Abs(got-want) > 0.5 {
		t.Errorf("SpeedOfSoundFps(0) = %.2f, want %.2f", got, want)
	}
}

func TestUnitConversions(t *testing.T) {
	if v := MToFt(FtToM(1234.5)); math.Abs(v-1234.5) > 1e-9 {
		t.Errorf("ft round trip = %f", v)
	}
	if v := FtToM(1); v != 0.3048 {
		t.Errorf("FtToM(1) = %f", v)
	}
	if v := RadToDeg(DegToRad(45)); math.Abs(v-45) > 1e-12 {
		t.Errorf("deg round trip = %f", v)
	}
	if v := NmToLbft(1); math.Abs(v-0.7375621493) > 1e-12 {
		t.Errorf("NmToLbft(1) = %f", v)
	}
}
