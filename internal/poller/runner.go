// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls every device in order, forever, emitting one PollResult per
// session on out. No overlap. No retries. Returns when ctx is done.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	for {
		for _, d := range p.cfg.Devices {
			res := p.PollDevice(ctx, d)

			select {
			case <-ctx.Done():
				return
			case out <- res:
			}

			if !wait(ctx, p.cfg.DeviceGap) {
				return
			}
		}

		if !wait(ctx, p.cfg.CycleGap) {
			return
		}
	}
}

// wait sleeps for d. It reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
