package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds cycle costs for each instruction class. The core retires
// one instruction per tick; these costs only feed the cycle estimate in the
// emulator statistics.
type TimingConfig struct {
	// ALULatency covers register-register and register-immediate
	// operations and MOV. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// BranchLatency is the cost of a conditional branch. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// BranchTakenPenalty is added when a conditional branch is taken, for
	// the fetch redirect. Default: 2 cycles.
	BranchTakenPenalty uint64 `json:"branch_taken_penalty"`

	// JumpLatency covers JMP, CALL and RET. Default: 2 cycles.
	JumpLatency uint64 `json:"jump_latency"`

	// LoadLatency covers LW, LD and POP when no data cache is modeled.
	// Default: 2 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency covers SW, SD and PUSH when no data cache is modeled.
	// Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// NOPLatency is the cost of a NOP. Default: 1 cycle.
	NOPLatency uint64 `json:"nop_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:         1,
		BranchLatency:      1,
		BranchTakenPenalty: 2,
		JumpLatency:        2,
		LoadLatency:        2,
		StoreLatency:       1,
		NOPLatency:         1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that every per-class latency is at least one cycle.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.JumpLatency == 0 {
		return fmt.Errorf("jump_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.NOPLatency == 0 {
		return fmt.Errorf("nop_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
