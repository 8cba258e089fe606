// cmd/batmon/orchestrator.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/batmon/internal/config"
	"github.com/tamzrod/batmon/internal/poller"
	"github.com/tamzrod/batmon/internal/session"
	"github.com/tamzrod/batmon/internal/status"
	"github.com/tamzrod/batmon/internal/writer"
)

// sink is the orchestrator-owned state for one device.
type sink struct {
	device  string
	tracker *status.Tracker
	writer  writer.StatusWriter // nil => log-only
}

func buildSinks(cfg *config.Config, client writer.EndpointClient, logger *slog.Logger) map[string]*sink {
	sinks := make(map[string]*sink, len(cfg.Batmon.Devices))
	for _, d := range cfg.Batmon.Devices {
		s := &sink{device: d.Name, tracker: status.NewTracker()}
		if d.Disabled {
			s.tracker.Disable()
		}

		plan := writer.BuildPlan(d, cfg.Batmon.Publish)
		if sw, ok := writer.NewDeviceStatusWriter(plan, client); ok {
			s.writer = sw
		}
		sinks[d.Address] = s
	}

	// Full block write on start (identity re-assert) for every published device.
	for addr, s := range sinks {
		s.write(logger.With("address", addr), "start")
	}
	return sinks
}

// orchestrate applies poll results and the 1 Hz tick to the device
// trackers and publishes changed snapshots. It owns every sink.
func orchestrate(ctx context.Context, in <-chan poller.PollResult, tick <-chan time.Time, sinks map[string]*sink, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			s, ok := sinks[res.Address]
			if !ok {
				logger.Warn("result for unknown device", "address", res.Address)
				continue
			}
			log := logger.With("device", s.device, "address", res.Address)

			var changed bool
			if res.Err == nil && res.HasReading {
				r := res.Reading
				changed = s.tracker.Success(r.Centivolts(), clampU16(r.Temperature), clampU16(r.Power))
			} else {
				log.Warn("poll without reading", "state", res.State, "err", res.Err)
				changed = s.tracker.Failure(health(res), errorCode(res.Err))
			}
			if changed {
				s.write(log, "poll")
			}

		case <-tick:
			// seconds_in_error increments on the 1 Hz ticker only.
			for addr, s := range sinks {
				if s.tracker.Tick() {
					s.write(logger.With("address", addr), "tick")
				}
			}
		}
	}
}

func (s *sink) write(log *slog.Logger, reason string) {
	if s.writer == nil {
		return
	}
	if err := s.writer.WriteStatus(s.tracker.Snapshot()); err != nil {
		log.Warn("status write failed", "reason", reason, "err", err)
	}
}

// health maps a failed poll to a status health code. A session that
// connected but heard nothing is stale rather than broken.
func health(res poller.PollResult) uint16 {
	if res.State == session.TimedOut || errors.Is(res.Err, session.ErrTimeout) {
		return status.HealthStale
	}
	return status.HealthError
}

// errorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	var c interface{ Code() uint16 }
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, session.ErrTimeout) {
		return session.CodeTimeout
	}
	return session.CodeGeneric
}

func clampU16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > status.MaxCounter:
		return status.MaxCounter
	}
	return uint16(v)
}
