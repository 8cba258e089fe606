// internal/poller/builder.go
package poller

import (
	"fmt"
	"log/slog"

	"github.com/tamzrod/batmon/internal/ble"
	"github.com/tamzrod/batmon/internal/codec"
	cfg "github.com/tamzrod/batmon/internal/config"
	"github.com/tamzrod/batmon/internal/session"
)

// Build wires codec, session and poller from a validated, normalized config.
// The command ciphertext is computed here, once, before any session runs.
func Build(c *cfg.Config, transport ble.Transport, log *slog.Logger) (*Poller, error) {
	b := c.Batmon

	key, err := b.Cipher.KeyBytes()
	if err != nil {
		return nil, fmt.Errorf("poller: cipher key: %w", err)
	}
	cmd, err := b.Cipher.CommandBytes()
	if err != nil {
		return nil, fmt.Errorf("poller: command: %w", err)
	}

	fc, err := codec.New(key, cmd)
	if err != nil {
		return nil, err
	}
	enc := fc.PrecomputeCommand()
	log.Debug("encrypted command precomputed", "frame", enc.Hex())

	s, err := session.New(session.Config{
		ServiceUUID:         b.BLE.Service,
		WriteCharUUID:       b.BLE.WriteChar,
		NotifyCharUUID:      b.BLE.NotifyChar,
		Timeout:             b.Session.Timeout(),
		UnsubscribeSettle:   b.Session.UnsubscribeSettle(),
		DisconnectSettle:    b.Session.DisconnectSettle(),
		ZeroReadingIsAbsent: b.Session.ZeroReadingIsAbsent,
	}, transport, fc, log)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(b.Devices))
	for _, d := range b.Devices {
		if d.Disabled {
			log.Info("device disabled, not polling", "address", d.Address, "device", d.Name)
			continue
		}
		devices = append(devices, Device{Name: d.Name, Address: d.Address})
	}

	return New(Config{
		Devices:   devices,
		DeviceGap: b.Poll.DeviceGap(),
		CycleGap:  b.Poll.CycleGap(),
	}, s, log)
}
