// internal/session/errors.go
package session

import (
	"errors"
	"fmt"
)

// Error codes written into the device status block.
const (
	CodeGeneric        uint16 = 1
	CodeConnect        uint16 = 2
	CodeService        uint16 = 3
	CodeCharacteristic uint16 = 4
	CodeWrite          uint16 = 5
	CodeTimeout        uint16 = 6
	CodePanic          uint16 = 7
	CodeCanceled       uint16 = 8
)

// ErrTimeout means no valid notification arrived in time.
var ErrTimeout = errors.New("session: no data before timeout")

// Error is a classified session failure.
type Error struct {
	Op   string
	code uint16
	Err  error
}

func newError(op string, code uint16, err error) *Error {
	return &Error{Op: op, code: code, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the status block error code.
func (e *Error) Code() uint16 {
	if e == nil || e.code == 0 {
		return CodeGeneric
	}
	return e.code
}
