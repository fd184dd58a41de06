package scenario

import (
	"context"
	"time"
)

// Pacer blocks until wall-clock time catches up with simulation time.
type Pacer interface {
	Wait(ctx context.Context, simTime float64) error
}

// RealtimePacer runs a scenario no faster than real time.
type RealtimePacer struct {
	start time.Time
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewRealtimePacer() *RealtimePacer {
	return &RealtimePacer{now: time.Now, sleep: sleepCtx}
}

func (p *RealtimePacer) Wait(ctx context.Context, simTime float64) error {
	if p.start.IsZero() {
		p.start = p.now()
	}
	ahead := time.Duration(simTime*float64(time.Second)) - p.now().Sub(p.start)
	if ahead <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, ahead)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
