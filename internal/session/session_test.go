// internal/session/session_test.go
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/batmon/internal/ble"
	"github.com/tamzrod/batmon/internal/codec"
)

// ---- fake transport ----

type fakeTransport struct {
	mu sync.Mutex

	connectErr   error
	connectPanic bool
	link         *fakeLink

	connects    int
	disconnects int
}

func (f *fakeTransport) Connect(address string) (ble.Link, error) {
	if f.connectPanic {
		panic("radio exploded")
	}
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	f.link.transport = f
	f.link.connected = true
	return f.link, nil
}

func (f *fakeTransport) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

type fakeLink struct {
	transport *fakeTransport
	connected bool

	service         *fakeService
	disconnectErr   error
	disconnectPanic bool
}

func (l *fakeLink) Service(uuid string) (ble.Service, error) {
	if l.service == nil {
		return nil, ble.ErrServiceNotFound
	}
	return l.service, nil
}

func (l *fakeLink) Disconnect() error {
	l.transport.mu.Lock()
	l.transport.disconnects++
	l.transport.mu.Unlock()
	l.connected = false
	if l.disconnectPanic {
		panic("disconnect fault")
	}
	return l.disconnectErr
}

func (l *fakeLink) Connected() bool { return l.connected }

type fakeService struct {
	chars map[string]*fakeChar
}

func (s *fakeService) Characteristic(uuid string) (ble.Characteristic, error) {
	c, ok := s.chars[uuid]
	if !ok {
		return nil, ble.ErrCharacteristicNotFound
	}
	return c, nil
}

type fakeChar struct {
	mu sync.Mutex

	noNotify     bool
	writeErr     error
	writePanic   bool
	subscribeErr error

	unsubscribeErr   error
	unsubscribePanic bool

	// frames delivered asynchronously after Subscribe
	frames [][]byte
	delay  time.Duration

	written      [][]byte
	callback     func([]byte)
	unsubscribed int
}

func (c *fakeChar) Write(p []byte) error {
	if c.writePanic {
		panic("write fault")
	}
	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), p...))
	c.mu.Unlock()
	return c.writeErr
}

func (c *fakeChar) CanNotify() bool { return !c.noNotify }

func (c *fakeChar) Subscribe(fn func([]byte)) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.mu.Lock()
	c.callback = fn
	frames := c.frames
	c.mu.Unlock()

	go func() {
		time.Sleep(c.delay)
		for _, f := range frames {
			fn(f)
		}
	}()
	return nil
}

func (c *fakeChar) Unsubscribe() error {
	c.mu.Lock()
	c.unsubscribed++
	c.mu.Unlock()
	if c.unsubscribePanic {
		panic("unsubscribe fault")
	}
	return c.unsubscribeErr
}

func (c *fakeChar) lastCallback() func([]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback
}

// ---- helpers ----

func testCodec(t *testing.T) *codec.Codec {
	t.Helper()
	c, err := codec.New(codec.DefaultKey, codec.DefaultCommand)
	require.NoError(t, err)
	return c
}

func encFrame(t *testing.T, c *codec.Codec, plainHex string) []byte {
	t.Helper()
	b, err := hex.DecodeString(plainHex)
	require.NoError(t, err)
	f, err := c.Encrypt(b)
	require.NoError(t, err)
	return f[:]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(timeout time.Duration) Config {
	return Config{
		ServiceUUID:    "fff0",
		WriteCharUUID:  "fff3",
		NotifyCharUUID: "fff4",
		Timeout:        timeout,
	}
}

func newRig(writeChar, notifyChar *fakeChar) *fakeTransport {
	return &fakeTransport{
		link: &fakeLink{
			service: &fakeService{chars: map[string]*fakeChar{
				"fff3": writeChar,
				"fff4": notifyChar,
			}},
		},
	}
}

func newSession(t *testing.T, cfg Config, tr ble.Transport, c Codec) *Session {
	t.Helper()
	s, err := New(cfg, tr, c, quietLogger())
	require.NoError(t, err)
	return s
}

const validFrame = "d15507001e006404e200000000000000"

// ---- tests ----

func TestRun_Success(t *testing.T) {
	c := testCodec(t)
	w := &fakeChar{}
	n := &fakeChar{frames: [][]byte{
		encFrame(t, c, "aabbcc00000000000000000000000000"), // ignored
		encFrame(t, c, validFrame),
	}}
	tr := newRig(w, n)

	res := newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "50:54:7B:5E:89:A9")

	require.Equal(t, Success, res.State)
	require.NoError(t, res.Err)
	assert.True(t, res.HasReading)
	assert.InDelta(t, 12.50, res.Reading.Voltage, 1e-9)
	assert.Equal(t, 30, res.Reading.Temperature)
	assert.Equal(t, 100, res.Reading.Power)

	cmd := c.PrecomputeCommand()
	require.Len(t, w.written, 1)
	assert.Equal(t, cmd[:], w.written[0])

	assert.Equal(t, 1, n.unsubscribed)
	connects, disconnects := tr.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestRun_ConnectFailureNoDisconnect(t *testing.T) {
	tr := &fakeTransport{connectErr: errors.New("out of range")}

	res := newSession(t, testConfig(time.Second), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, Failed, res.State)
	assert.False(t, res.HasReading)

	var se *Error
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, CodeConnect, se.Code())

	connects, disconnects := tr.counts()
	assert.Equal(t, 0, connects)
	assert.Equal(t, 0, disconnects)
}

func TestRun_MissingServiceDisconnects(t *testing.T) {
	tr := &fakeTransport{link: &fakeLink{}}

	res := newSession(t, testConfig(time.Second), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, Failed, res.State)
	assert.ErrorIs(t, res.Err, ble.ErrServiceNotFound)

	var se *Error
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, CodeService, se.Code())

	connects, disconnects := tr.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestRun_MissingCharacteristicDisconnects(t *testing.T) {
	tr := &fakeTransport{link: &fakeLink{
		service: &fakeService{chars: map[string]*fakeChar{"fff3": {}}},
	}}

	res := newSession(t, testConfig(time.Second), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, Failed, res.State)
	assert.ErrorIs(t, res.Err, ble.ErrCharacteristicNotFound)

	connects, disconnects := tr.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestRun_WriteErrorDisconnects(t *testing.T) {
	w := &fakeChar{writeErr: errors.New("gatt write rejected")}
	tr := newRig(w, &fakeChar{})

	res := newSession(t, testConfig(time.Second), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, Failed, res.State)
	var se *Error
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, CodeWrite, se.Code())

	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)
}

func TestRun_TransportPanicRecovered(t *testing.T) {
	tr := newRig(&fakeChar{writePanic: true}, &fakeChar{})

	var res Result
	require.NotPanics(t, func() {
		res = newSession(t, testConfig(time.Second), tr, testCodec(t)).Run(context.Background(), "addr")
	})

	assert.Equal(t, Failed, res.State)
	var se *Error
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, CodePanic, se.Code())

	connects, disconnects := tr.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestRun_ConnectPanicRecovered(t *testing.T) {
	tr := &fakeTransport{connectPanic: true}

	res := newSession(t, testConfig(time.Second), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, Failed, res.State)
	connects, disconnects := tr.counts()
	assert.Equal(t, 0, connects)
	assert.Equal(t, 0, disconnects)
}

func TestRun_DisconnectErrorSwallowed(t *testing.T) {
	c := testCodec(t)
	tr := newRig(&fakeChar{}, &fakeChar{frames: [][]byte{encFrame(t, c, validFrame)}})
	tr.link.disconnectErr = errors.New("already gone")

	res := newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "addr")

	assert.Equal(t, Success, res.State)
	assert.NoError(t, res.Err)
}

func TestRun_UnsubscribeErrorKeepsReading(t *testing.T) {
	c := testCodec(t)
	n := &fakeChar{
		frames:         [][]byte{encFrame(t, c, validFrame)},
		unsubscribeErr: errors.New("notify stop rejected"),
	}
	tr := newRig(&fakeChar{}, n)

	res := newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "addr")

	assert.Equal(t, Success, res.State)
	assert.NoError(t, res.Err)
	assert.True(t, res.HasReading)
	assert.Equal(t, 30, res.Reading.Temperature)
	assert.Equal(t, 1, n.unsubscribed)

	connects, disconnects := tr.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestRun_UnsubscribePanicStillDisconnects(t *testing.T) {
	c := testCodec(t)
	n := &fakeChar{
		frames:           [][]byte{encFrame(t, c, validFrame)},
		unsubscribePanic: true,
	}
	tr := newRig(&fakeChar{}, n)

	var res Result
	require.NotPanics(t, func() {
		res = newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "addr")
	})

	assert.Equal(t, Success, res.State)
	assert.NoError(t, res.Err)
	assert.True(t, res.HasReading)
	assert.InDelta(t, 12.50, res.Reading.Voltage, 1e-9)

	connects, disconnects := tr.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestRun_DisconnectPanicKeepsOutcome(t *testing.T) {
	c := testCodec(t)
	tr := newRig(&fakeChar{}, &fakeChar{frames: [][]byte{encFrame(t, c, validFrame)}})
	tr.link.disconnectPanic = true

	var res Result
	require.NotPanics(t, func() {
		res = newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "addr")
	})

	assert.Equal(t, Success, res.State)
	assert.True(t, res.HasReading)
	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)

	// Fault in the body and again in teardown: one disconnect, Failed.
	tr = newRig(&fakeChar{writePanic: true}, &fakeChar{})
	tr.link.disconnectPanic = true
	require.NotPanics(t, func() {
		res = newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "addr")
	})
	assert.Equal(t, Failed, res.State)
	var se *Error
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, CodePanic, se.Code())
	_, disconnects = tr.counts()
	assert.Equal(t, 1, disconnects)
}

func TestRun_Timeout(t *testing.T) {
	const timeout = 150 * time.Millisecond
	n := &fakeChar{}
	tr := newRig(&fakeChar{}, n)

	res := newSession(t, testConfig(timeout), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, TimedOut, res.State)
	assert.False(t, res.HasReading)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.GreaterOrEqual(t, res.Elapsed, timeout)
	assert.Less(t, res.Elapsed, timeout+time.Second)

	// No unsubscribe on timeout, but always a disconnect.
	assert.Zero(t, n.unsubscribed)
	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)
}

func TestRun_InvalidFramesKeepWaiting(t *testing.T) {
	c := testCodec(t)
	n := &fakeChar{frames: [][]byte{
		{0x01, 0x02, 0x03},                                 // wrong length
		{},                                                 // empty
		encFrame(t, c, "d1550800000000000000000000000000"), // wrong marker
	}}
	tr := newRig(&fakeChar{}, n)

	res := newSession(t, testConfig(100*time.Millisecond), tr, c).Run(context.Background(), "addr")

	assert.Equal(t, TimedOut, res.State)
	assert.False(t, res.HasReading)
}

func TestRun_NoNotifyCapabilityTimesOut(t *testing.T) {
	c := testCodec(t)
	n := &fakeChar{noNotify: true, frames: [][]byte{encFrame(t, c, validFrame)}}
	tr := newRig(&fakeChar{}, n)

	res := newSession(t, testConfig(50*time.Millisecond), tr, c).Run(context.Background(), "addr")

	assert.Equal(t, TimedOut, res.State)
	assert.Nil(t, n.lastCallback())
}

func TestRun_SubscribeErrorNotFatal(t *testing.T) {
	n := &fakeChar{subscribeErr: errors.New("notify unsupported")}
	tr := newRig(&fakeChar{}, n)

	res := newSession(t, testConfig(50*time.Millisecond), tr, testCodec(t)).Run(context.Background(), "addr")

	assert.Equal(t, TimedOut, res.State)
	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)
}

func TestRun_ZeroReadingPresence(t *testing.T) {
	c := testCodec(t)
	zero := "d1550700000000000000000000000000"

	// Explicit presence: an all-zero frame is a reading.
	tr := newRig(&fakeChar{}, &fakeChar{frames: [][]byte{encFrame(t, c, zero)}})
	res := newSession(t, testConfig(time.Second), tr, c).Run(context.Background(), "addr")
	assert.Equal(t, Success, res.State)
	assert.True(t, res.HasReading)
	assert.True(t, res.Reading.IsZero())

	// Legacy sentinel: the same frame counts as no data.
	cfg := testConfig(80 * time.Millisecond)
	cfg.ZeroReadingIsAbsent = true
	tr = newRig(&fakeChar{}, &fakeChar{frames: [][]byte{encFrame(t, c, zero)}})
	res = newSession(t, cfg, tr, c).Run(context.Background(), "addr")
	assert.Equal(t, TimedOut, res.State)
	assert.False(t, res.HasReading)
}

func TestRun_LateCallbackDoesNotLeakIntoNextSession(t *testing.T) {
	c := testCodec(t)
	s1Notify := &fakeChar{}
	tr1 := newRig(&fakeChar{}, s1Notify)
	s := newSession(t, testConfig(50*time.Millisecond), tr1, c)

	res1 := s.Run(context.Background(), "addr")
	require.Equal(t, TimedOut, res1.State)

	late := s1Notify.lastCallback()
	require.NotNil(t, late)

	// Session N+1 on the same device; session N's callback fires late.
	s2Notify := &fakeChar{}
	tr1.link.service.chars["fff4"] = s2Notify

	done := make(chan Result, 1)
	go func() { done <- s.Run(context.Background(), "addr") }()

	time.Sleep(10 * time.Millisecond)
	late(encFrame(t, c, validFrame))

	res2 := <-done
	assert.Equal(t, TimedOut, res2.State)
	assert.False(t, res2.HasReading)
	assert.Zero(t, res2.Reading)

	connects, disconnects := tr1.counts()
	assert.Equal(t, connects, disconnects)
}

func TestRun_ContextCanceled(t *testing.T) {
	tr := newRig(&fakeChar{}, &fakeChar{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	res := newSession(t, testConfig(5*time.Second), tr, testCodec(t)).Run(ctx, "addr")

	assert.Equal(t, Failed, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Less(t, res.Elapsed, time.Second)

	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)
}

func TestNew_Validation(t *testing.T) {
	c := testCodec(t)

	_, err := New(testConfig(time.Second), nil, c, nil)
	assert.Error(t, err)

	_, err = New(testConfig(0), &fakeTransport{}, c, nil)
	assert.Error(t, err)

	s, err := New(Config{Timeout: time.Second}, &fakeTransport{}, c, nil)
	require.NoError(t, err)
	assert.Equal(t, ble.DefaultServiceUUID, s.cfg.ServiceUUID)
	assert.Equal(t, ble.DefaultNotifyCharUUID, s.cfg.NotifyCharUUID)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "waiting_for_data", WaitingForData.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, TimedOut.Terminal())
	assert.False(t, Disconnecting.Terminal())
}
