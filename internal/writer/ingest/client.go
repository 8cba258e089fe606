// internal/writer/ingest/client.go
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Raw Ingest v1 framing. Header is 10 bytes:
//
//	0-1 magic "RI" | 2 version | 3 area | 4-5 unit | 6-7 address | 8-9 count | payload
const (
	headerLen = 10
	magic     = "RI"
	versionV1 = 0x01

	areaHoldingRegisters byte = 3
)

// Reply status byte.
const (
	replyOK       byte = 0x00
	replyRejected byte = 0x01
)

var ErrRejected = errors.New("writer ingest: rejected")

// EndpointClient sends one packet per connection. It keeps no socket
// open between writes, so a restarted ingest server needs no reconnect.
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &EndpointClient{endpoint: cfg.Endpoint, timeout: cfg.Timeout}, nil
}

func (c *EndpointClient) Close() error { return nil }

// WriteRegisters implements writer.EndpointClient.
// Status blocks always land in the holding-register area.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return fmt.Errorf("writer ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	// net.Conn.Write returns an error on any short write.
	if _, err := conn.Write(encodePacket(areaHoldingRegisters, unitID, addr, regs)); err != nil {
		return fmt.Errorf("writer ingest: write: %w", err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return fmt.Errorf("writer ingest: read reply: %w", err)
	}

	switch reply[0] {
	case replyOK:
		return nil
	case replyRejected:
		return ErrRejected
	}
	return fmt.Errorf("writer ingest: unknown reply 0x%02x", reply[0])
}

// encodePacket builds one v1 packet carrying big-endian registers.
func encodePacket(area byte, unitID uint8, addr uint16, regs []uint16) []byte {
	pkt := make([]byte, headerLen, headerLen+2*len(regs))
	copy(pkt[0:2], magic)
	pkt[2] = versionV1
	pkt[3] = area
	binary.BigEndian.PutUint16(pkt[4:6], uint16(unitID))
	binary.BigEndian.PutUint16(pkt[6:8], addr)
	binary.BigEndian.PutUint16(pkt[8:10], uint16(len(regs)))

	for _, r := range regs {
		pkt = binary.BigEndian.AppendUint16(pkt, r)
	}
	return pkt
}
