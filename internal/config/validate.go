// internal/config/validate.go
package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	b := cfg.Batmon

	// ------------------------------------------------------------
	// CIPHER
	// ------------------------------------------------------------

	if err := validateBlockHex("cipher.key", b.Cipher.Key); err != nil {
		return err
	}
	if err := validateBlockHex("cipher.command", b.Cipher.Command); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// TIMINGS
	// ------------------------------------------------------------

	if b.Session.TimeoutMs < 0 {
		return fmt.Errorf("session.timeout_ms must be >= 0")
	}
	for name, v := range map[string]*int{
		"session.unsubscribe_settle_ms": b.Session.UnsubscribeSettleMs,
		"session.disconnect_settle_ms":  b.Session.DisconnectSettleMs,
		"poll.device_gap_ms":            b.Poll.DeviceGapMs,
		"poll.cycle_gap_ms":             b.Poll.CycleGapMs,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	if len(b.Devices) == 0 {
		return fmt.Errorf("at least one device is required")
	}

	enabled := 0
	seenAddr := make(map[string]int)
	slotOwner := make(map[uint16]string)

	for i, d := range b.Devices {
		mac, err := net.ParseMAC(d.Address)
		if err != nil || len(mac) != 6 {
			return fmt.Errorf("device %d: address %q is not a BLE MAC address", i, d.Address)
		}

		key := strings.ToLower(mac.String())
		if prev, exists := seenAddr[key]; exists {
			return fmt.Errorf("device %d: address %s already used by device %d", i, d.Address, prev)
		}
		seenAddr[key] = i
		if !d.Disabled {
			enabled++
		}

		// name sanity (ASCII only)
		for j := 0; j < len(d.Name); j++ {
			if d.Name[j] > 0x7F {
				return fmt.Errorf("device %q: name must contain ASCII characters only", d.Address)
			}
		}

		// status is opt-in
		if d.StatusSlot == nil {
			continue
		}
		if b.Publish == nil {
			return fmt.Errorf("device %q: status_slot is set but no publish target is defined", d.Address)
		}
		if *d.StatusSlot > MaxStatusSlot {
			return fmt.Errorf("device %q: status_slot %d exceeds %d", d.Address, *d.StatusSlot, MaxStatusSlot)
		}
		if prev, exists := slotOwner[*d.StatusSlot]; exists {
			return fmt.Errorf(
				"status_slot collision: slot=%d used by devices %q and %q",
				*d.StatusSlot,
				prev,
				d.Address,
			)
		}
		slotOwner[*d.StatusSlot] = d.Address
	}

	if enabled == 0 {
		return fmt.Errorf("at least one enabled device is required")
	}

	// ------------------------------------------------------------
	// PUBLISH (optional)
	// ------------------------------------------------------------

	if p := b.Publish; p != nil {
		switch p.Mode {
		case "", PublishModbus, PublishIngest:
		default:
			return fmt.Errorf("publish.mode %q: want %q or %q", p.Mode, PublishModbus, PublishIngest)
		}
		if p.Endpoint == "" {
			return fmt.Errorf("publish.endpoint is required")
		}
		if p.TimeoutMs < 0 {
			return fmt.Errorf("publish.timeout_ms must be >= 0")
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	switch strings.ToLower(b.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not a known level", b.Log.Level)
	}
	switch strings.ToLower(b.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", b.Log.Format)
	}

	return nil
}

// validateBlockHex accepts empty (default) or exactly 16 hex-encoded bytes.
func validateBlockHex(field, s string) error {
	if s == "" {
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%s: %v", field, err)
	}
	if len(b) != 16 {
		return fmt.Errorf("%s: must be 16 bytes, got %d", field, len(b))
	}
	return nil
}
