// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	// Last good reading. Kept through errors so consumers see the
	// last known value next to a non-OK health code.
	Centivolts  uint16
	Temperature uint16
	Power       uint16

	MissedPolls uint16
}
