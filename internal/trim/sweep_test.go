package trim

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/models"
)

func c172Builder(t *testing.T) func() (*fdm.Handle, error) {
	spec, err := models.Builtin("c172-linear")
	if err != nil {
		t.Fatal(err)
	}
	return func() (*fdm.Handle, error) {
		a, err := models.NewAffine(spec)
		if err != nil {
			return nil, err
		}
		return fdm.NewHandle(a), nil
	}
}

func TestSweep(t *testing.T) {
	g := NewWithT(t)
	inputs := []WingsLevelInput{
		{AltitudeFt: 2000, Mach: 0.16123},
		{AltitudeFt: 3000, Mach: 0.16123},
		{AltitudeFt: 2500, Mach: 0.16123, GammaRad: 0.05},
	}

	points, err := Sweep(context.Background(), c172Builder(t), inputs, 2, Options{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(points).To(HaveLen(3))
	for i, p := range points {
		g.Expect(p.Input).To(Equal(inputs[i]))
		g.Expect(p.Err).NotTo(HaveOccurred())
		g.Expect(p.Result.Converged).To(BeTrue(), "condition %d: %s", i, p.Result.Status)
	}
}

func TestSweepBuildFailure(t *testing.T) {
	g := NewWithT(t)
	build := c172Builder(t)
	var calls atomic.Int32
	failing := func() (*fdm.Handle, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("no engine")
		}
		return build()
	}

	points, err := Sweep(context.Background(), failing, []WingsLevelInput{{AltitudeFt: 3000, Mach: 0.16123}, {AltitudeFt: 3000, Mach: 0.16123}}, 1, Options{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(points[0].Err).To(MatchError("no engine"))
	g.Expect(points[1].Err).NotTo(HaveOccurred())
	g.Expect(points[1].Result.Converged).To(BeTrue())
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, c172Builder(t), []WingsLevelInput{{AltitudeFt: 3000, Mach: 0.16123}}, 1, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
