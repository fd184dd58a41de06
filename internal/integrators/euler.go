package integrators

// Euler is explicit first order. Mostly useful to compare against RK4.
type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (Euler) Step(dyn System, x State, t, dt float64) State {
	next := x.Clone()
	for i, d := range dyn.Derive(x, t) {
		next[i] += dt * d
	}
	return next
}
