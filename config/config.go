// Package config holds the simulator configuration shared by the emulator
// and the command-line tools.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/mrcm/timing/cache"
	"github.com/sarchlab/mrcm/timing/latency"
)

// Config describes one MRCM core instance.
type Config struct {
	// ResetPC is the PC after reset. Default: 4.
	ResetPC uint64 `json:"reset_pc"`

	// DataMemorySize is the data memory size in bytes. Default: 8192.
	DataMemorySize uint64 `json:"data_memory_size"`

	// InstructionMemoryWords is the instruction memory capacity in words,
	// including the reserved word 0. Default: 1024.
	InstructionMemoryWords int `json:"instruction_memory_words"`

	// LinkRegister is used by CALL and RET when their register field is
	// zero. Default: 1.
	LinkRegister uint8 `json:"link_register"`

	// StackRegister is used by PUSH and POP when rs1 is zero. Default: 30.
	StackRegister uint8 `json:"stack_register"`

	// StrictDecode makes unknown instruction words fault. When false they
	// execute as NOP and a warning is logged. Default: true.
	StrictDecode bool `json:"strict_decode"`

	// ClearRegistersOnReset zeroes the register file on reset. Default: true.
	ClearRegistersOnReset bool `json:"clear_registers_on_reset"`

	// ClearMemoryOnReset zeroes data memory on reset. Default: false.
	ClearMemoryOnReset bool `json:"clear_memory_on_reset"`

	// MaxInstructions stops Run after this many instructions. 0 means no
	// limit.
	MaxInstructions uint64 `json:"max_instructions"`

	// Timing holds per-class cycle costs.
	Timing *latency.TimingConfig `json:"timing"`

	// DCache enables the data cache model when set.
	DCache *cache.Config `json:"dcache,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ResetPC:                4,
		DataMemorySize:         8 * 1024,
		InstructionMemoryWords: 1024,
		LinkRegister:           1,
		StackRegister:          30,
		StrictDecode:           true,
		ClearRegistersOnReset:  true,
		Timing:                 latency.DefaultTimingConfig(),
	}
}

// Load reads a JSON configuration. Fields missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every inconsistency in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.ResetPC%4 != 0 {
		errs = append(errs, fmt.Errorf("reset_pc 0x%X is not word aligned", c.ResetPC))
	}
	if c.DataMemorySize < 8 {
		errs = append(errs, fmt.Errorf("data_memory_size must be at least 8"))
	}
	if c.InstructionMemoryWords < 0 {
		errs = append(errs, fmt.Errorf("instruction_memory_words must not be negative"))
	}
	if c.LinkRegister == 0 || c.LinkRegister > 31 {
		errs = append(errs, fmt.Errorf("link_register must be in [1, 31]"))
	}
	if c.StackRegister == 0 || c.StackRegister > 31 {
		errs = append(errs, fmt.Errorf("stack_register must be in [1, 31]"))
	}
	if c.Timing == nil {
		errs = append(errs, fmt.Errorf("timing section is required"))
	} else if err := c.Timing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.DCache != nil {
		if err := c.DCache.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Timing != nil {
		clone.Timing = c.Timing.Clone()
	}
	if c.DCache != nil {
		dcache := *c.DCache
		clone.DCache = &dcache
	}
	return &clone
}
