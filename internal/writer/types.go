// internal/writer/types.go
package writer

// StatusPlan places one device's status block in status memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16 // block index; address = BaseSlot * SlotsPerDevice
	DeviceName string
}

// Plan is the fully-built write plan for one device.
type Plan struct {
	Device string
	Status *StatusPlan // nil => status disabled for the device
}

// EndpointClient is the exact contract the writers use.
// IMPORTANT: There must be NO other version of this interface anywhere.
type EndpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
