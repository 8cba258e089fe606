// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/batmon/internal/session"
)

// SessionRunner runs one device session. *session.Session implements it.
type SessionRunner interface {
	Run(ctx context.Context, address string) session.Result
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Devices   []Device
	DeviceGap time.Duration // after each device
	CycleGap  time.Duration // after each full pass
}

// Poller walks the device list strictly in order, one session at a time.
type Poller struct {
	cfg    Config
	runner SessionRunner
	log    *slog.Logger
}

// New creates a poller with immutable config.
func New(cfg Config, runner SessionRunner, log *slog.Logger) (*Poller, error) {
	if len(cfg.Devices) == 0 {
		return nil, errors.New("poller: at least one device required")
	}
	if runner == nil {
		return nil, errors.New("poller: session runner required")
	}
	if cfg.DeviceGap < 0 || cfg.CycleGap < 0 {
		return nil, errors.New("poller: gaps must be >= 0")
	}
	if log == nil {
		log = slog.Default()
	}
	devices := make([]Device, len(cfg.Devices))
	copy(devices, cfg.Devices)
	cfg.Devices = devices
	return &Poller{cfg: cfg, runner: runner, log: log}, nil
}

// PollDevice runs exactly one session against d.
func (p *Poller) PollDevice(ctx context.Context, d Device) PollResult {
	p.log.Info("processing device", "device", d.Name, "address", d.Address)

	r := p.runner.Run(ctx, d.Address)
	res := PollResult{
		Device:     d.Name,
		Address:    d.Address,
		At:         time.Now(),
		State:      r.State,
		Reading:    r.Reading,
		HasReading: r.HasReading,
		Err:        r.Err,
	}
	if res.Err == nil && !res.HasReading {
		res.Err = session.ErrTimeout
	}
	return res
}

// PollOnce performs exactly one pass over all devices, with the device
// gap between them, and returns the results in device order.
func (p *Poller) PollOnce(ctx context.Context) []PollResult {
	out := make([]PollResult, 0, len(p.cfg.Devices))
	for i, d := range p.cfg.Devices {
		if ctx.Err() != nil {
			break
		}
		out = append(out, p.PollDevice(ctx, d))
		if i < len(p.cfg.Devices)-1 {
			wait(ctx, p.cfg.DeviceGap)
		}
	}
	return out
}
