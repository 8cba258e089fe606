// internal/ble/tinygo.go
//go:build linux

package ble

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// Adapter is a Transport backed by the host BlueZ adapter.
type Adapter struct {
	adapter *bluetooth.Adapter
}

// Open enables the default adapter. It must be called once before polling.
func Open() (*Adapter, error) {
	a := bluetooth.DefaultAdapter
	if err := a.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}
	return &Adapter{adapter: a}, nil
}

// Connect dials the peripheral with the given MAC address.
func (a *Adapter) Connect(address string) (Link, error) {
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("ble: parse address %q: %w", address, err)
	}

	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	dev, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("ble: connect %s: %w", address, err)
	}

	return &deviceLink{dev: dev, connected: true}, nil
}

// peripheral and gattChar are the slices of the bluetooth types a link
// drives; tests substitute them.
type peripheral interface {
	DiscoverServices(uuids []bluetooth.UUID) ([]bluetooth.DeviceService, error)
	Disconnect() error
}

type gattChar interface {
	WriteWithoutResponse(p []byte) (int, error)
	EnableNotifications(callback func(buf []byte)) error
}

type deviceLink struct {
	mu        sync.Mutex
	dev       peripheral
	connected bool

	// characteristics with notifications enabled
	subs map[*deviceCharacteristic]struct{}
}

func (l *deviceLink) Service(uuid string) (Service, error) {
	id, err := ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return nil, ErrNotConnected
	}

	svcs, err := l.dev.DiscoverServices([]bluetooth.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrServiceNotFound, uuid, err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, uuid)
	}
	return &deviceService{link: l, svc: svcs[0]}, nil
}

// Disconnect releases any notification still enabled, then drops the link.
func (l *deviceLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for c := range l.subs {
		// best effort; the link is going away regardless
		_ = c.char.EnableNotifications(nil)
		delete(l.subs, c)
	}
	l.connected = false
	return l.dev.Disconnect()
}

func (l *deviceLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *deviceLink) track(c *deviceCharacteristic, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !on {
		delete(l.subs, c)
		return
	}
	if l.subs == nil {
		l.subs = make(map[*deviceCharacteristic]struct{})
	}
	l.subs[c] = struct{}{}
}

type deviceService struct {
	link *deviceLink
	svc  bluetooth.DeviceService
}

func (s *deviceService) Characteristic(uuid string) (Characteristic, error) {
	id, err := ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	chars, err := s.svc.DiscoverCharacteristics([]bluetooth.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCharacteristicNotFound, uuid, err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, uuid)
	}
	// Pointer: EnableNotifications keeps its signal state on the receiver.
	return &deviceCharacteristic{link: s.link, char: &chars[0]}, nil
}

type deviceCharacteristic struct {
	link *deviceLink
	char gattChar
}

func (c *deviceCharacteristic) Write(p []byte) error {
	_, err := c.char.WriteWithoutResponse(p)
	return err
}

// CanNotify is optimistic: BlueZ reports a missing notify property as an
// error from Subscribe.
func (c *deviceCharacteristic) CanNotify() bool { return true }

func (c *deviceCharacteristic) Subscribe(fn func(p []byte)) error {
	if err := c.char.EnableNotifications(fn); err != nil {
		return err
	}
	c.link.track(c, true)
	return nil
}

func (c *deviceCharacteristic) Unsubscribe() error {
	c.link.track(c, false)
	return c.char.EnableNotifications(nil)
}

// ParseUUID accepts 16-bit short forms ("fff0") and full 128-bit UUIDs.
func ParseUUID(s string) (bluetooth.UUID, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) == 4 {
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return bluetooth.UUID{}, fmt.Errorf("ble: parse uuid %q: %w", s, err)
		}
		return bluetooth.New16BitUUID(uint16(v)), nil
	}
	id, err := bluetooth.ParseUUID(s)
	if err != nil {
		return bluetooth.UUID{}, fmt.Errorf("ble: parse uuid %q: %w", s, err)
	}
	return id, nil
}
