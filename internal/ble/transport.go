// internal/ble/transport.go
package ble

import "errors"

// BM6 GATT layout.
const (
	DefaultServiceUUID    = "fff0"
	DefaultWriteCharUUID  = "fff3"
	DefaultNotifyCharUUID = "fff4"
)

var (
	ErrNotConnected           = errors.New("ble: not connected")
	ErrServiceNotFound        = errors.New("ble: service not found")
	ErrCharacteristicNotFound = errors.New("ble: characteristic not found")
)

// Transport opens connections to peripherals by address.
type Transport interface {
	Connect(address string) (Link, error)
}

// Link is one open connection. Disconnect releases it.
type Link interface {
	Service(uuid string) (Service, error)
	Disconnect() error
	Connected() bool
}

// Service is a discovered primary service.
type Service interface {
	Characteristic(uuid string) (Characteristic, error)
}

// Characteristic is a discovered GATT characteristic.
// Subscribe callbacks are invoked on the stack's own goroutine.
type Characteristic interface {
	Write(p []byte) error
	CanNotify() bool
	Subscribe(fn func(p []byte)) error
	Unsubscribe() error
}
