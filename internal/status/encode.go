// internal/status/encode.go
package status

// ---- REGISTER BLOCK LAYOUT ----
// Used by the Modbus mirror. Layout is protocol-locked.

// SlotVersion holds the low 16 bits of the snapshot version.
const SlotVersion = 0

// SlotRecordCount holds the number of distinct services (saturating).
const SlotRecordCount = 1

// SlotWorstState holds the aggregate state.
const SlotWorstState = 2

// SlotServicesStart is the first per-service slot.
const SlotServicesStart = 3

// StateMissing marks a configured service absent from the snapshot.
const StateMissing uint16 = 0xFFFF

// EncodeRegisters converts a snapshot into a register block with one slot
// per id in ids, in order. No IO. No side effects.
func EncodeRegisters(s *Snapshot, ids []string) []uint16 {
	regs := make([]uint16, SlotServicesStart+len(ids))

	var version uint64
	if s != nil {
		version = s.Version
	}
	regs[SlotVersion] = uint16(version)

	n := s.Len()
	if n > 0xFFFF {
		n = 0xFFFF
	}
	regs[SlotRecordCount] = uint16(n)
	regs[SlotWorstState] = uint16(s.Worst())

	for i, id := range ids {
		rec, ok := s.Lookup(id)
		if !ok {
			regs[SlotServicesStart+i] = StateMissing
			continue
		}
		regs[SlotServicesStart+i] = uint16(rec.State)
	}

	return regs
}
