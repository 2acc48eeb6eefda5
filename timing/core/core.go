// Package core provides the cycle-level view of the MRCM core.
// It wraps the emulator and spreads each instruction over the number of
// cycles its latency class costs, so callers can advance time one clock at
// a time.
package core

import (
	"context"
	"fmt"

	"github.com/sarchlab/mrcm/emu"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// StallCycles counts cycles spent waiting on a multi-cycle instruction.
	StallCycles uint64
}

// CPI returns cycles per retired instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core drives an emulator one clock cycle at a time.
type Core struct {
	// Emulator executes the instructions.
	Emulator *emu.Emulator

	busy  uint64
	idle  bool
	err   error
	last  emu.StepResult
	stats Stats
}

// NewCore creates a Core around e.
func NewCore(e *emu.Emulator) *Core {
	return &Core{Emulator: e}
}

// Tick advances one cycle. An instruction is issued when the previous one
// has used up its latency.
func (c *Core) Tick() {
	if c.Halted() {
		return
	}

	c.stats.Cycles++

	if c.busy > 0 {
		c.busy--
		c.stats.StallCycles++
		return
	}

	c.last = c.Emulator.Step()
	if c.last.Err != nil {
		c.err = c.last.Err
		return
	}

	c.stats.Instructions++
	if c.last.Cycles > 1 {
		c.busy = c.last.Cycles - 1
	}
	c.idle = c.last.Idle
}

// Halted returns true once the program went idle and its last instruction
// completed, or a fault occurred.
func (c *Core) Halted() bool {
	return c.err != nil || (c.idle && c.busy == 0)
}

// Err returns the fault that halted the core, if any.
func (c *Core) Err() error {
	return c.err
}

// LastStep returns the result of the most recently issued instruction.
func (c *Core) LastStep() emu.StepResult {
	return c.last
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Run ticks until the core halts, ctx is cancelled or the configured
// instruction limit is reached.
func (c *Core) Run(ctx context.Context) error {
	limit := c.Emulator.Config().MaxInstructions

	for !c.Halted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if limit > 0 && c.stats.Instructions >= limit && c.busy == 0 {
			return fmt.Errorf("%w: %d", emu.ErrInstructionLimit, limit)
		}
		c.Tick()
	}

	return c.err
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !c.Halted(); i++ {
		c.Tick()
	}
	return !c.Halted()
}

// Reset resets the emulator and clears all cycle state.
func (c *Core) Reset() {
	c.Emulator.Reset()
	c.busy = 0
	c.idle = false
	c.err = nil
	c.last = emu.StepResult{}
	c.stats = Stats{}
}
