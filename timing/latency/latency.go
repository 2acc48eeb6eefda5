// Package latency provides per-instruction cycle costs for the MRCM core.
//
// The core is functionally single-cycle; the table here produces the cycle
// estimate reported alongside the instruction count, configured via
// TimingConfig.
package latency

import (
	"github.com/sarchlab/mrcm/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the cost in cycles of the given instruction, excluding
// any taken-branch penalty.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch {
	case inst.IsNOP():
		return t.config.NOPLatency
	case inst.MemRead:
		return t.config.LoadLatency
	case inst.MemWrite:
		return t.config.StoreLatency
	case inst.Branch:
		return t.config.BranchLatency
	case inst.Jump:
		return t.config.JumpLatency
	default:
		return t.config.ALULatency
	}
}

// BranchPenalty returns the extra cycles for a taken conditional branch.
func (t *Table) BranchPenalty() uint64 {
	return t.config.BranchTakenPenalty
}

// IsMemoryOp returns true if the instruction accesses data memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.MemRead || inst.MemWrite
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.MemRead
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.MemWrite
}

// IsBranchOp returns true if the instruction may redirect the PC.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsControlFlow()
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
