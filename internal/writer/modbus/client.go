// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// EndpointClient publishes status blocks to one Modbus TCP memory endpoint.
// Requests are serialized: the unit id lives on the shared handler.
//
// The connection is dialed on first use and dropped after a transport
// failure, so an endpoint that restarts is picked up on the next write.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
	open    bool
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	return c.handler.Close()
}

// WriteRegisters writes holding registers (FC16) on the given unit.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		if err := c.handler.Connect(); err != nil {
			return fmt.Errorf("writer modbus: dial %s: %w", c.handler.Address, err)
		}
		c.open = true
	}

	c.handler.SlaveId = unitID
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	if err == nil {
		return nil
	}

	if dropConnection(err) {
		_ = c.handler.Close()
		c.open = false
	}
	return fmt.Errorf("writer modbus: unit %d addr %d: %w", unitID, addr, err)
}

// dropConnection reports whether err leaves the TCP stream in doubt.
// An exception response is a complete reply; the stream is still in sync.
func dropConnection(err error) bool {
	var mbErr *modbus.ModbusError
	return !errors.As(err, &mbErr)
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
