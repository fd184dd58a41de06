package integrators

import "testing"

func BenchmarkIntegrators(b *testing.B) {
	for _, name := range []string{"euler", "rk4", "rk45"} {
		b.Run(name, func(b *testing.B) {
			integ, err := New(name)
			if err != nil {
				b.Fatal(err)
			}
			x := State{1, 0}
			for i := 0; i < b.N; i++ {
				x = integ.Step(oscillator{omega: 1}, x, 0, 0.01)
			}
		})
	}
}
