package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrShortSeries = errors.New("analysis: series too short for a spectrum")

// Spectrum is the one-sided amplitude spectrum of an evenly sampled series.
type Spectrum struct {
	Frequencies []float64 // Hz
	Amplitudes  []float64
}

// PowerSpectrum removes the mean of values (sampled every dt seconds) and
// returns amplitudes up to the Nyquist frequency.
func PowerSpectrum(values []float64, dt float64) (*Spectrum, error) {
	n := len(values)
	if n < 4 || !(dt > 0) {
		return nil, ErrShortSeries
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range values {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	half := n/2 + 1
	s := &Spectrum{
		Frequencies: make([]float64, half),
		Amplitudes:  make([]float64, half),
	}
	for k := 0; k < half; k++ {
		s.Frequencies[k] = float64(k) / (float64(n) * dt)
		s.Amplitudes[k] = 2 * cmplx.Abs(coeffs[k]) / float64(n)
	}
	return s, nil
}

// Dominant returns the frequency of the largest non-DC peak.
func (s *Spectrum) Dominant() float64 {
	best := 1
	for k := 2; k < len(s.Amplitudes); k++ {
		if s.Amplitudes[k] > s.Amplitudes[best] {
			best = k
		}
	}
	return s.Frequencies[best]
}
