// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/batmon/internal/parser"
	"github.com/tamzrod/batmon/internal/session"
)

// Device is one monitor to poll.
type Device struct {
	Name    string
	Address string
}

// PollResult is what one session produced for one device.
type PollResult struct {
	Device  string
	Address string
	At      time.Time

	State      session.State
	Reading    parser.Reading
	HasReading bool

	Err error // non-nil means the session did not produce a reading
}
