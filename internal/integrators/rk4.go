package integrators

// RK4 is the classic fourth order method. Stage buffers are reused between
// calls, so an RK4 must not be shared across goroutines.
type RK4 struct {
	k       [4]State
	scratch State
}

func NewRK4() *RK4 {
	return &RK4{}
}

// offset fills r.scratch with x + h*k.
func (r *RK4) offset(x, k State, h float64) State {
	for i := range x {
		r.scratch[i] = x[i] + h*k[i]
	}
	return r.scratch
}

func (r *RK4) Step(dyn System, x State, t, dt float64) State {
	n := len(x)
	if len(r.scratch) != n {
		r.scratch = make(State, n)
		for i := range r.k {
			r.k[i] = make(State, n)
		}
	}

	half := dt / 2
	copy(r.k[0], dyn.Derive(x, t))
	copy(r.k[1], dyn.Derive(r.offset(x, r.k[0], half), t+half))
	copy(r.k[2], dyn.Derive(r.offset(x, r.k[1], half), t+half))
	copy(r.k[3], dyn.Derive(r.offset(x, r.k[2], dt), t+dt))

	next := make(State, n)
	for i := range next {
		next[i] = x[i] + dt/6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return next
}
