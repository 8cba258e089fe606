// internal/ble/tinygo_other.go
//go:build !linux

package ble

import "errors"

// Adapter is only available on Linux (BlueZ).
type Adapter struct{}

// Open always fails off Linux.
func Open() (*Adapter, error) {
	return nil, errors.New("ble: BlueZ adapter requires linux")
}

func (a *Adapter) Connect(address string) (Link, error) {
	return nil, ErrNotConnected
}
