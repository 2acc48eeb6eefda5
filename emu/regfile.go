// Package emu provides the functional MRCM execution core.
package emu

// NumRegisters is the number of general-purpose registers.
const NumRegisters = 32

// RegFile represents the MRCM register file: 32 general-purpose 64-bit
// registers. X[0] is hardwired to zero.
type RegFile struct {
	// X holds general-purpose registers x0-x31.
	X [NumRegisters]uint64
}

// ReadReg reads a register value. Register 0 always returns 0.
func (r *RegFile) ReadReg(reg uint8) (uint64, error) {
	if reg >= NumRegisters {
		return 0, &RegisterIndexFault{Index: reg}
	}
	if reg == 0 {
		return 0, nil
	}
	return r.X[reg], nil
}

// WriteReg writes a value to a register. Writes to register 0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) error {
	if reg >= NumRegisters {
		return &RegisterIndexFault{Index: reg}
	}
	if reg == 0 {
		return nil
	}
	r.X[reg] = value
	return nil
}

// Snapshot returns a copy of all registers.
func (r *RegFile) Snapshot() [NumRegisters]uint64 {
	s := r.X
	s[0] = 0
	return s
}

// Clear zeroes every register.
func (r *RegFile) Clear() {
	r.X = [NumRegisters]uint64{}
}
