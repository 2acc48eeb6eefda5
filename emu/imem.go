package emu

import (
	"fmt"

	"github.com/sarchlab/mrcm/insts"
)

// DefaultInstructionWords is the default instruction memory capacity in
// words, including the reserved word at address 0.
const DefaultInstructionWords = 1024

// ProgramBase is the byte address of the first program word. Word 0 of
// instruction memory is reserved.
const ProgramBase = 4

// InstructionMemory is the read-only program store. It is addressed by byte
// PC and holds 32-bit words; addresses past the loaded image read as NOP.
type InstructionMemory struct {
	words    []uint32
	capacity int
}

// NewInstructionMemory creates an empty instruction memory that can hold
// capacity words.
func NewInstructionMemory(capacity int) *InstructionMemory {
	return &InstructionMemory{capacity: capacity}
}

// LoadProgram replaces the program image. program[0] is placed at
// ProgramBase.
func (m *InstructionMemory) LoadProgram(program []uint32) error {
	if m.capacity > 0 && len(program)+1 > m.capacity {
		return fmt.Errorf("%w: %d words, capacity %d",
			ErrProgramTooLarge, len(program), m.capacity-1)
	}

	m.words = make([]uint32, len(program)+1)
	copy(m.words[1:], program)
	return nil
}

// Len returns the number of program words loaded.
func (m *InstructionMemory) Len() int {
	if len(m.words) == 0 {
		return 0
	}
	return len(m.words) - 1
}

// InImage reports whether pc addresses a loaded program word.
func (m *InstructionMemory) InImage(pc uint64) bool {
	return pc >= ProgramBase && pc%4 == 0 && pc/4 < uint64(len(m.words))
}

// Fetch returns the word at pc. A misaligned pc faults; an address outside
// the image reads as NOP.
func (m *InstructionMemory) Fetch(pc uint64) (uint32, error) {
	if pc%4 != 0 {
		return 0, &MemoryAccessFault{
			PC:    pc,
			Addr:  pc,
			Size:  4,
			Space: SpaceInstruction,
		}
	}

	if !m.InImage(pc) {
		return insts.NOPWord, nil
	}

	return m.words[pc/4], nil
}
