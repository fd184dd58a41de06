package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotSquare   = errors.New("analysis: matrix is not square")
	ErrEigenFailed = errors.New("analysis: eigen decomposition failed")
)

// Mode is one eigenvalue of A. Complex pairs are reported once, with the
// positive imaginary part.
type Mode struct {
	Eigenvalue complex128
	// NaturalFrequency is |lambda| in rad/s.
	NaturalFrequency float64
	Damping          float64
	// Period is infinite for non-oscillatory modes.
	Period       float64
	TimeToHalf   float64
	TimeToDouble float64
}

func (m Mode) Oscillatory() bool { return imag(m.Eigenvalue) != 0 }

func (m Mode) Stable() bool { return real(m.Eigenvalue) < 0 }

func (m Mode) String() string {
	if m.Oscillatory() {
		return fmt.Sprintf("%.4g%+.4gi  wn=%.4g zeta=%.4g T=%.4gs",
			real(m.Eigenvalue), imag(m.Eigenvalue), m.NaturalFrequency, m.Damping, m.Period)
	}
	return fmt.Sprintf("%.4g  tau=%.4gs", real(m.Eigenvalue), timeConstant(real(m.Eigenvalue)))
}

func timeConstant(sigma float64) float64 {
	if sigma == 0 {
		return math.Inf(1)
	}
	return 1 / math.Abs(sigma)
}

func newMode(lambda complex128) Mode {
	sigma, omega := real(lambda), math.Abs(imag(lambda))
	m := Mode{
		Eigenvalue:       complex(sigma, omega),
		NaturalFrequency: cmplx.Abs(lambda),
		Period:           math.Inf(1),
		TimeToHalf:       math.Inf(1),
		TimeToDouble:     math.Inf(1),
	}
	if m.NaturalFrequency > 0 {
		m.Damping = -sigma / m.NaturalFrequency
	}
	if omega > 0 {
		m.Period = 2 * math.Pi / omega
	}
	switch {
	case sigma < 0:
		m.TimeToHalf = math.Ln2 / -sigma
	case sigma > 0:
		m.TimeToDouble = math.Ln2 / sigma
	}
	return m
}

// Modes returns the modes of a, slowest first.
func Modes(a mat.Matrix) ([]Mode, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, r, c)
	}
	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenNone) {
		return nil, ErrEigenFailed
	}

	var modes []Mode
	for _, v := range eig.Values(nil) {
		if imag(v) < 0 {
			continue
		}
		modes = append(modes, newMode(v))
	}
	sort.SliceStable(modes, func(i, j int) bool {
		return modes[i].NaturalFrequency < modes[j].NaturalFrequency
	})
	return modes, nil
}

// Stable reports whether every mode has a negative real part.
func Stable(modes []Mode) bool {
	for _, m := range modes {
		if !m.Stable() {
			return false
		}
	}
	return true
}
