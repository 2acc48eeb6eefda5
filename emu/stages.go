package emu

import "github.com/sarchlab/mrcm/insts"

// The latches below carry one instruction between the phases of a tick.
// Only one instruction is in flight, so each latch is filled and consumed
// within the same Step call.

// IFID holds state between Fetch and Decode.
type IFID struct {
	// PC is the program counter of the fetched instruction.
	PC uint64

	// Word is the raw 32-bit instruction word.
	Word uint32

	// NextPC is the sequential successor, PC + 4.
	NextPC uint64

	// Filler is true when the word came from beyond the program image.
	Filler bool
}

// IDEX holds state between Decode and Execute.
type IDEX struct {
	IFID

	// Inst is the decoded control bundle.
	Inst *insts.Instruction

	// Register values read from the register file.
	Rs1Value uint64
	Rs2Value uint64
}

// EXMEM holds state between Execute and Memory.
type EXMEM struct {
	IDEX

	// ALUResult is the data result, effective address, or jump target.
	ALUResult uint64

	// BranchTaken is true when a conditional branch's condition held.
	BranchTaken bool

	// ResolvedPC is the PC committed at write-back.
	ResolvedPC uint64
}

// MEMWB holds state between Memory and Write-back.
type MEMWB struct {
	EXMEM

	// MemData is the doubleword read by a load.
	MemData uint64
}

// WriteValue returns the value write-back stores into rd.
func (r *MEMWB) WriteValue() uint64 {
	switch r.Inst.WBSource {
	case insts.WBMem:
		return r.MemData
	case insts.WBLink:
		return r.IFID.NextPC
	default:
		return r.ALUResult
	}
}
