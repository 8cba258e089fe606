// internal/status/encode.go
package status

// Encode converts a Snapshot into a full device status block.
// The device name slots are left zero; the writer owns them.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotVoltage] = s.Centivolts
	regs[SlotTemperature] = s.Temperature
	regs[SlotPower] = s.Power
	regs[SlotMissedPolls] = s.MissedPolls

	return regs
}

// Slot returns the value of one live slot.
func (s Snapshot) Slot(i int) uint16 {
	switch i {
	case SlotHealthCode:
		return s.Health
	case SlotLastErrorCode:
		return s.LastErrorCode
	case SlotSecondsInError:
		return s.SecondsInError
	case SlotVoltage:
		return s.Centivolts
	case SlotTemperature:
		return s.Temperature
	case SlotPower:
		return s.Power
	case SlotMissedPolls:
		return s.MissedPolls
	}
	return 0
}

// LiveSlots lists the slots Encode fills, in address order.
var LiveSlots = []int{
	SlotHealthCode,
	SlotLastErrorCode,
	SlotSecondsInError,
	SlotVoltage,
	SlotTemperature,
	SlotPower,
	SlotMissedPolls,
}
