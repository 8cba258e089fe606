// internal/config/normalize.go
package config

import (
	"encoding/hex"
	"net"
	"strings"
	"time"

	"github.com/tamzrod/batmon/internal/ble"
	"github.com/tamzrod/batmon/internal/codec"
	"github.com/tamzrod/batmon/internal/status"
)

// Publish modes.
const (
	PublishModbus = "modbus"
	PublishIngest = "ingest"
)

// Defaults for the BM6 poll cycle.
const (
	DefaultTimeoutMs           = 10000
	DefaultUnsubscribeSettleMs = 1000
	DefaultDisconnectSettleMs  = 2000
	DefaultDeviceGapMs         = 1000
	DefaultCycleGapMs          = 10000
	DefaultPublishTimeoutMs    = 2000

	DeviceNameMaxChars = 16
)

// MaxStatusSlot is the last device block that fits the 16-bit register space.
const MaxStatusSlot = (1<<16)/status.SlotsPerDevice - 1

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Batmon

	if b.Cipher.Key == "" {
		b.Cipher.Key = hex.EncodeToString(codec.DefaultKey)
	}
	if b.Cipher.Command == "" {
		b.Cipher.Command = hex.EncodeToString(codec.DefaultCommand)
	}
	b.Cipher.Key = strings.ToLower(b.Cipher.Key)
	b.Cipher.Command = strings.ToLower(b.Cipher.Command)

	if b.BLE.Service == "" {
		b.BLE.Service = ble.DefaultServiceUUID
	}
	if b.BLE.WriteChar == "" {
		b.BLE.WriteChar = ble.DefaultWriteCharUUID
	}
	if b.BLE.NotifyChar == "" {
		b.BLE.NotifyChar = ble.DefaultNotifyCharUUID
	}

	if b.Session.TimeoutMs == 0 {
		b.Session.TimeoutMs = DefaultTimeoutMs
	}
	defaultInt(&b.Session.UnsubscribeSettleMs, DefaultUnsubscribeSettleMs)
	defaultInt(&b.Session.DisconnectSettleMs, DefaultDisconnectSettleMs)
	defaultInt(&b.Poll.DeviceGapMs, DefaultDeviceGapMs)
	defaultInt(&b.Poll.CycleGapMs, DefaultCycleGapMs)

	for i := range b.Devices {
		d := &b.Devices[i]
		// Canonical colon form; the BLE stack parses nothing else.
		if mac, err := net.ParseMAC(d.Address); err == nil {
			d.Address = strings.ToUpper(mac.String())
		} else {
			d.Address = strings.ToUpper(d.Address)
		}

		if d.Name == "" {
			d.Name = strings.ReplaceAll(d.Address, ":", "")
		}
		// Truncate to what the status block can carry.
		if len(d.Name) > DeviceNameMaxChars {
			d.Name = d.Name[:DeviceNameMaxChars]
		}
	}

	if p := b.Publish; p != nil {
		if p.Mode == "" {
			p.Mode = PublishModbus
		}
		if p.TimeoutMs == 0 {
			p.TimeoutMs = DefaultPublishTimeoutMs
		}
	}

	if b.Log.Level == "" {
		b.Log.Level = "info"
	}
	if b.Log.Format == "" {
		b.Log.Format = "text"
	}
	if b.Log.Output == "" {
		b.Log.Output = "stderr"
	}
}

func defaultInt(p **int, v int) {
	if *p == nil {
		*p = &v
	}
}

// ---- typed accessors (call after Normalize) ----

// KeyBytes decodes the cipher key.
func (c CipherConfig) KeyBytes() ([]byte, error) { return hex.DecodeString(c.Key) }

// CommandBytes decodes the command template.
func (c CipherConfig) CommandBytes() ([]byte, error) { return hex.DecodeString(c.Command) }

func (s SessionConfig) Timeout() time.Duration { return ms(&s.TimeoutMs) }

func (s SessionConfig) UnsubscribeSettle() time.Duration { return ms(s.UnsubscribeSettleMs) }

func (s SessionConfig) DisconnectSettle() time.Duration { return ms(s.DisconnectSettleMs) }

func (p PollConfig) DeviceGap() time.Duration { return ms(p.DeviceGapMs) }

func (p PollConfig) CycleGap() time.Duration { return ms(p.CycleGapMs) }

func (p PublishConfig) Timeout() time.Duration { return ms(&p.TimeoutMs) }

func ms(v *int) time.Duration {
	if v == nil {
		return 0
	}
	return time.Duration(*v) * time.Millisecond
}
