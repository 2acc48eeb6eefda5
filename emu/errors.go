package emu

import (
	"errors"

	"github.com/sarchlab/mrcm/insts"
	"github.com/sarchlab/mrcm/translate"
)

// Fault sentinels. Every fault returned by the emulator wraps exactly one of
// ErrDecode, ErrMemoryAccess or ErrRegisterIndex.
var (
	ErrDecode           = insts.ErrDecode
	ErrMemoryAccess     = errors.New("memory access fault")
	ErrRegisterIndex    = errors.New("register index fault")
	ErrInstructionLimit = errors.New("instruction limit reached")
	ErrProgramTooLarge  = errors.New("program exceeds instruction memory")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// DecodeFault is raised when an instruction word or ALU operation has no
// defined meaning.
type DecodeFault struct {
	PC     uint64
	Word   uint32
	Reason string
}

func (f *DecodeFault) Error() string {
	return translate.From("decode fault at PC=0x%X: word 0x%08X: %s",
		f.PC, f.Word, f.Reason)
}

// Unwrap returns ErrDecode.
func (f *DecodeFault) Unwrap() error {
	return ErrDecode
}

// Address spaces for MemoryAccessFault.
const (
	SpaceData        = "data"
	SpaceInstruction = "instruction"
)

// MemoryAccessFault is raised when an access falls outside the provisioned
// memory, or an instruction fetch is not word aligned.
type MemoryAccessFault struct {
	PC    uint64
	Addr  uint64
	Size  uint64
	Space string
	Write bool
}

func (f *MemoryAccessFault) Error() string {
	kind := "read"
	if f.Write {
		kind = "write"
	}
	return translate.From("memory access fault at PC=0x%X: %s %s of %v bytes at 0x%X",
		f.PC, f.Space, kind, f.Size, f.Addr)
}

// Unwrap returns ErrMemoryAccess.
func (f *MemoryAccessFault) Unwrap() error {
	return ErrMemoryAccess
}

// RegisterIndexFault is raised for a register index outside [0, 31].
type RegisterIndexFault struct {
	Index uint8
}

func (f *RegisterIndexFault) Error() string {
	return translate.From("register index fault: x%v is not in [0, 31]", f.Index)
}

// Unwrap returns ErrRegisterIndex.
func (f *RegisterIndexFault) Unwrap() error {
	return ErrRegisterIndex
}
