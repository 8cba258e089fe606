// internal/status/tracker.go
package status

// Tracker owns one device's Snapshot and applies poll outcomes to it.
// Each method reports whether the snapshot changed.
// Not safe for concurrent use; the orchestrator owns it.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown with everything zeroed.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Success records a reading. Error fields reset on recovery.
func (t *Tracker) Success(centivolts, temperature, power uint16) bool {
	next := t.snap
	next.Health = HealthOK
	next.LastErrorCode = 0
	next.SecondsInError = 0
	next.MissedPolls = 0
	next.Centivolts = centivolts
	next.Temperature = temperature
	next.Power = power
	return t.set(next)
}

// Failure records a session without a reading.
// seconds_in_error is NOT incremented here; only Tick does that.
func (t *Tracker) Failure(health, code uint16) bool {
	next := t.snap
	next.Health = health
	next.LastErrorCode = code
	if next.MissedPolls < MaxCounter {
		next.MissedPolls++
	}
	return t.set(next)
}

// Disable marks a device that is configured but never polled.
func (t *Tracker) Disable() bool {
	return t.set(Snapshot{Health: HealthDisabled})
}

// Tick advances seconds_in_error by one while not OK. Saturates, never wraps.
func (t *Tracker) Tick() bool {
	switch {
	case t.snap.Health == HealthOK, t.snap.Health == HealthDisabled:
		return false
	case t.snap.SecondsInError >= MaxCounter:
		return false
	}
	t.snap.SecondsInError++
	return true
}

func (t *Tracker) set(next Snapshot) bool {
	if next == t.snap {
		return false
	}
	t.snap = next
	return true
}
