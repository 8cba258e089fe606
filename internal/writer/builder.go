// internal/writer/builder.go
package writer

import (
	"fmt"

	cfg "github.com/tamzrod/batmon/internal/config"
	"github.com/tamzrod/batmon/internal/writer/ingest"
	wmodbus "github.com/tamzrod/batmon/internal/writer/modbus"
)

// BuildPlan converts one device config into a writer Plan.
// Assumes config has already passed validation and normalization.
func BuildPlan(d cfg.DeviceConfig, p *cfg.PublishConfig) Plan {
	plan := Plan{Device: d.Name}
	if p == nil || d.StatusSlot == nil {
		return plan
	}

	plan.Status = &StatusPlan{
		Endpoint:   p.Endpoint,
		UnitID:     p.UnitID,
		BaseSlot:   *d.StatusSlot,
		DeviceName: d.Name,
	}
	return plan
}

// BuildEndpointClient creates the single publish client.
// A nil publish config means publishing is disabled: nil client, no error.
func BuildEndpointClient(p *cfg.PublishConfig) (EndpointClient, func() error, error) {
	noop := func() error { return nil }
	if p == nil {
		return nil, noop, nil
	}

	switch p.Mode {
	case cfg.PublishIngest:
		c, err := ingest.NewEndpointClient(ingest.Config{
			Endpoint: p.Endpoint,
			Timeout:  p.Timeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil

	case cfg.PublishModbus, "":
		c, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: p.Endpoint,
			Timeout:  p.Timeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}

	return nil, nil, fmt.Errorf("writer: unknown publish mode %q", p.Mode)
}
