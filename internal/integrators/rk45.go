package integrators

import "math"

// Dormand-Prince 5(4) tableau. The last row of dpA doubles as the fifth
// order weights (first same as last).
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth minus fourth order weights
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 covers each fixed step with as many Dormand-Prince substeps as Tol
// requires. The last accepted substep size carries over to the next call.
type RK45 struct {
	Tol         float64
	MaxSubsteps int

	h float64
	k [7]State
}

func NewRK45() *RK45 {
	return &RK45{Tol: 1e-8, MaxSubsteps: 1000}
}

// Step advances x from t to exactly t+dt. Once MaxSubsteps attempts are
// spent the remainder is taken in one step.
func (r *RK45) Step(dyn System, x State, t, dt float64) State {
	end := t + dt
	h := r.h
	if h <= 0 || h > dt {
		h = dt
	}
	x = x.Clone()

	for attempts := 0; end-t > 1e-12*dt; attempts++ {
		forced := attempts >= r.MaxSubsteps
		if forced {
			h = end - t
		}
		h = math.Min(h, end-t)

		next, ratio := r.attempt(dyn, x, t, h)
		if math.IsNaN(ratio) {
			return next
		}
		if ratio <= 1 || forced {
			x, t = next, t+h
			r.h = h
		}
		h *= growth(ratio)
	}
	return x
}

func growth(ratio float64) float64 {
	if ratio == 0 {
		return 5
	}
	return math.Max(0.2, math.Min(5, 0.9*math.Pow(ratio, -0.2)))
}

// attempt takes one substep of size h and returns the candidate with its
// RMS error relative to Tol.
func (r *RK45) attempt(dyn System, x State, t, h float64) (State, float64) {
	n := len(x)
	stage := make(State, n)
	for s := 0; s < 7; s++ {
		for i := range stage {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpA[s][j] * r.k[j][i]
			}
			stage[i] = x[i] + h*acc
		}
		if s == 6 {
			// stage 7 is evaluated at the fifth order solution
			r.k[s] = dyn.Derive(stage, t+h)
			break
		}
		r.k[s] = dyn.Derive(stage, t+dpC[s]*h)
	}

	next := stage
	var sum float64
	for i := 0; i < n; i++ {
		e := 0.0
		for j := 0; j < 7; j++ {
			e += dpE[j] * r.k[j][i]
		}
		scale := r.Tol * (1 + math.Max(math.Abs(x[i]), math.Abs(next[i])))
		sum += (h * e / scale) * (h * e / scale)
	}
	if n == 0 {
		return next, 0
	}
	return next, math.Sqrt(sum / float64(n))
}
