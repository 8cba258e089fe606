// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/batmon/internal/ble"
	"github.com/tamzrod/batmon/internal/codec"
	"github.com/tamzrod/batmon/internal/parser"
)

// Codec is the part of the frame codec a session needs.
type Codec interface {
	PrecomputeCommand() codec.Frame
	DecryptHex(frame []byte) (string, error)
}

// Config holds the per-session protocol and timing settings.
type Config struct {
	ServiceUUID    string
	WriteCharUUID  string
	NotifyCharUUID string

	Timeout           time.Duration // wait for data
	UnsubscribeSettle time.Duration
	DisconnectSettle  time.Duration

	// ZeroReadingIsAbsent discards frames with voltage and temperature
	// both zero instead of completing the session.
	ZeroReadingIsAbsent bool
}

// Result is the outcome of one session. State is always terminal.
type Result struct {
	Address    string
	State      State
	Reading    parser.Reading
	HasReading bool
	Err        error
	Elapsed    time.Duration
}

// Session runs one connect/command/notify/disconnect cycle at a time.
// It is not safe for concurrent Run calls.
type Session struct {
	cfg       Config
	transport ble.Transport
	codec     Codec
	log       *slog.Logger
}

// New validates cfg and returns a session bound to the transport.
func New(cfg Config, transport ble.Transport, c Codec, log *slog.Logger) (*Session, error) {
	if transport == nil {
		return nil, errors.New("session: transport required")
	}
	if c == nil {
		return nil, errors.New("session: codec required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("session: timeout must be > 0")
	}
	if cfg.ServiceUUID == "" {
		cfg.ServiceUUID = ble.DefaultServiceUUID
	}
	if cfg.WriteCharUUID == "" {
		cfg.WriteCharUUID = ble.DefaultWriteCharUUID
	}
	if cfg.NotifyCharUUID == "" {
		cfg.NotifyCharUUID = ble.DefaultNotifyCharUUID
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{cfg: cfg, transport: transport, codec: c, log: log}, nil
}

// Run polls one device. Transport faults never escape: they are logged
// and reported in the Result. Every successful connect is matched by
// exactly one disconnect.
func (s *Session) Run(ctx context.Context, address string) Result {
	start := time.Now()
	res := Result{Address: address, State: Idle}
	log := s.log.With("address", address)

	func() {
		defer func() {
			if r := recover(); r != nil {
				res.State = Failed
				res.HasReading = false
				res.Reading = parser.Reading{}
				res.Err = newError("transport", CodePanic, fmt.Errorf("panic: %v", r))
				log.Error("session aborted", "err", res.Err)
			}
		}()
		s.run(ctx, log, &res)
	}()

	if !res.State.Terminal() {
		res.Err = newError("session", CodeGeneric, fmt.Errorf("ended in state %s", res.State))
		res.State = Failed
	}

	res.Elapsed = time.Since(start)
	log.Debug("session state", "state", Idle, "elapsed", res.Elapsed)
	return res
}

func (s *Session) run(ctx context.Context, log *slog.Logger, res *Result) {
	// Single-slot handoff owned by this run only.
	readings := make(chan parser.Reading, 1)

	s.enter(log, res, Connecting)
	link, err := s.transport.Connect(res.Address)
	if err != nil {
		s.fail(log, res, "connect", CodeConnect, err)
		return
	}
	s.enter(log, res, Connected)

	var (
		notify     ble.Characteristic
		subscribed bool
	)
	// Teardown runs in reverse: unsubscribe (Success only), then disconnect.
	defer s.disconnect(ctx, log, res, link)
	defer func() {
		if res.State == Success && subscribed {
			s.unsubscribe(ctx, log, notify)
		}
	}()

	s.enter(log, res, AwaitingService)
	svc, err := link.Service(s.cfg.ServiceUUID)
	if err != nil {
		s.fail(log, res, "discover service", CodeService, err)
		return
	}

	s.enter(log, res, AwaitingCharacteristics)
	write, err := svc.Characteristic(s.cfg.WriteCharUUID)
	if err != nil {
		s.fail(log, res, "discover write characteristic", CodeCharacteristic, err)
		return
	}
	notify, err = svc.Characteristic(s.cfg.NotifyCharUUID)
	if err != nil {
		s.fail(log, res, "discover notify characteristic", CodeCharacteristic, err)
		return
	}

	cmd := s.codec.PrecomputeCommand()
	if err := write.Write(cmd[:]); err != nil {
		s.fail(log, res, "write command", CodeWrite, err)
		return
	}
	s.enter(log, res, CommandSent)

	if notify.CanNotify() {
		if err := notify.Subscribe(s.onNotify(log, readings)); err != nil {
			log.Warn("subscribe failed, no data can arrive", "err", err)
		} else {
			subscribed = true
		}
	} else {
		log.Warn("notify characteristic cannot notify, no data can arrive")
	}

	s.enter(log, res, WaitingForData)
	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-readings:
		res.Reading = r
		res.HasReading = true
		s.enter(log, res, Success)
		log.Info("reading received",
			"voltage", r.Voltage,
			"temperature", r.Temperature,
			"power", r.Power,
		)
	case <-timer.C:
		res.Err = newError("wait", CodeTimeout, ErrTimeout)
		s.enter(log, res, TimedOut)
		log.Warn("no data received", "timeout", s.cfg.Timeout)
	case <-ctx.Done():
		s.fail(log, res, "wait", CodeCanceled, ctx.Err())
	}
}

// onNotify returns the callback handed to the BLE stack. It is the only
// writer of readings and never blocks: a full slot drops the frame.
func (s *Session) onNotify(log *slog.Logger, readings chan<- parser.Reading) func([]byte) {
	return func(p []byte) {
		if len(p) == 0 {
			log.Warn("empty notification")
			return
		}

		msg, err := s.codec.DecryptHex(p)
		if err != nil {
			log.Warn("discarding frame", "len", len(p), "err", err)
			return
		}
		log.Debug("frame received", "frame", msg)

		r, err := parser.Parse(msg)
		if err != nil {
			log.Debug("ignoring frame", "frame", msg, "err", err)
			return
		}
		if s.cfg.ZeroReadingIsAbsent && r.IsZero() {
			log.Debug("ignoring zero reading", "frame", msg)
			return
		}

		select {
		case readings <- r:
		default:
		}
	}
}

// Teardown faults are logged only; they never change the outcome.

func (s *Session) unsubscribe(ctx context.Context, log *slog.Logger, c ble.Characteristic) {
	if err := guard(c.Unsubscribe); err != nil {
		log.Warn("unsubscribe failed", "err", err)
	} else {
		log.Debug("unsubscribed from notifications")
	}
	sleep(ctx, s.cfg.UnsubscribeSettle)
}

func (s *Session) disconnect(ctx context.Context, log *slog.Logger, res *Result, link ble.Link) {
	log.Debug("session state", "state", Disconnecting, "from", res.State)

	err := guard(func() error {
		if !link.Connected() {
			log.Warn("link already dropped")
		}
		return link.Disconnect()
	})
	if err != nil {
		log.Warn("disconnect failed", "err", err)
	} else {
		log.Debug("disconnected")
	}
	sleep(ctx, s.cfg.DisconnectSettle)
}

// guard runs one teardown step and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (s *Session) enter(log *slog.Logger, res *Result, st State) {
	res.State = st
	log.Debug("session state", "state", st)
}

func (s *Session) fail(log *slog.Logger, res *Result, op string, code uint16, err error) {
	res.Err = newError(op, code, err)
	res.State = Failed
	log.Warn("session failed", "op", op, "err", err)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
