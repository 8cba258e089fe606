// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Batmon BatmonConfig `yaml:"batmon"`
}

type BatmonConfig struct {
	Cipher  CipherConfig   `yaml:"cipher"`
	BLE     BLEConfig      `yaml:"ble"`
	Session SessionConfig  `yaml:"session"`
	Poll    PollConfig     `yaml:"poll"`
	Devices []DeviceConfig `yaml:"devices"`
	Publish *PublishConfig `yaml:"publish"`
	Log     LogConfig      `yaml:"log"`
}

// ---- CIPHER ----

// Both fields are 32 hex characters (16 bytes).
type CipherConfig struct {
	Key     string `yaml:"key"`
	Command string `yaml:"command"`
}

// ---- BLE ----

type BLEConfig struct {
	Service    string `yaml:"service"`
	WriteChar  string `yaml:"write_char"`
	NotifyChar string `yaml:"notify_char"`
}

// ---- SESSION ----

type SessionConfig struct {
	TimeoutMs           int  `yaml:"timeout_ms"`
	UnsubscribeSettleMs *int `yaml:"unsubscribe_settle_ms"`
	DisconnectSettleMs  *int `yaml:"disconnect_settle_ms"`

	// Treat voltage==0 && temperature==0 as "no data".
	ZeroReadingIsAbsent bool `yaml:"zero_reading_is_absent"`
}

// ---- POLL ----

type PollConfig struct {
	DeviceGapMs *int `yaml:"device_gap_ms"`
	CycleGapMs  *int `yaml:"cycle_gap_ms"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`

	// Disabled devices are not polled; their status block reports disabled.
	Disabled bool `yaml:"disabled"`

	// Device status block (optional, opt-in, needs publish)
	StatusSlot *uint16 `yaml:"status_slot"`
}

// ---- PUBLISH ----

type PublishConfig struct {
	Mode      string `yaml:"mode"` // modbus | ingest
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and decodes a YAML config file. It does not validate.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes. Unknown keys are rejected.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}
