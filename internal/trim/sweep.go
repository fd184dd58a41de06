package trim

import (
	"context"
	"runtime"

	"github.com/san-kum/aerotrim/internal/fdm"
	"golang.org/x/sync/errgroup"
)

// SweepPoint is the outcome of one condition in a sweep. Err holds setup
// and engine failures; a non-converged trim still carries its Result.
type SweepPoint struct {
	Input  WingsLevelInput
	Result *Result
	Err    error
}

const sweepOwner = "sweep"

// Sweep trims every condition concurrently. build must return a fresh
// handle per call since a handle cannot be shared between trims. workers
// <= 0 means GOMAXPROCS.
func Sweep(ctx context.Context, build func() (*fdm.Handle, error), inputs []WingsLevelInput, workers int, opts Options) ([]SweepPoint, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	points := make([]SweepPoint, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		i, in := i, in
		points[i].Input = in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := build()
			if err != nil {
				points[i].Err = err
				return nil
			}
			release, err := h.Acquire(sweepOwner)
			if err != nil {
				points[i].Err = err
				return nil
			}
			defer release()
			o := opts
			o.Owner = sweepOwner
			points[i].Result, points[i].Err = WingsLevel(h, in, o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return points, err
	}
	return points, nil
}
