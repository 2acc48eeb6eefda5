package emu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/mrcm/config"
	"github.com/sarchlab/mrcm/insts"
	"github.com/sarchlab/mrcm/timing/cache"
	"github.com/sarchlab/mrcm/timing/latency"
	"github.com/sarchlab/mrcm/trace"
)

// StepResult represents the result of executing a single tick.
type StepResult struct {
	// PC is the address of the instruction executed by this tick.
	PC uint64

	// NextPC is the PC after the tick. It equals PC when the tick faulted.
	NextPC uint64

	// Inst is the decoded instruction, nil if fetch or decode faulted.
	Inst *insts.Instruction

	// Idle is true if the instruction came from beyond the program image or
	// jumped to itself. Either way the program has nothing left to do.
	Idle bool

	// Cycles is the estimated cost of the tick, 0 if it faulted.
	Cycles uint64

	// Err is set if the tick faulted. Nothing was committed.
	Err error
}

// Stats holds execution statistics.
type Stats struct {
	Instructions     uint64 `json:"instructions"`
	Cycles           uint64 `json:"cycles"`
	Loads            uint64 `json:"loads"`
	Stores           uint64 `json:"stores"`
	BranchesTaken    uint64 `json:"branches_taken"`
	BranchesNotTaken uint64 `json:"branches_not_taken"`
	Jumps            uint64 `json:"jumps"`
	Calls            uint64 `json:"calls"`
	Returns          uint64 `json:"returns"`
	NOPs             uint64 `json:"nops"`
	LenientDecodes   uint64 `json:"lenient_decodes"`

	DCache *cache.Statistics `json:"dcache,omitempty"`
}

// State is an observable snapshot of the architectural state.
type State struct {
	PC        uint64
	Registers [NumRegisters]uint64
	Fault     error
}

// Emulator is the MRCM execution engine. It owns the PC, register file and
// both memories, and runs one instruction through all five phases per tick.
type Emulator struct {
	cfg *config.Config

	pc      uint64
	regFile *RegFile
	memory  *Memory
	imem    *InstructionMemory

	decoder *insts.Decoder
	alu     *ALU

	latency *latency.Table
	dcache  *cache.Cache

	tracer trace.Writer
	logger *slog.Logger

	// fault latches the first fault until Reset.
	fault error
	// cfgErr is set when the configuration failed validation. Reset does
	// not clear it.
	cfgErr error
	stats Stats
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithConfig replaces the configuration. Apply it before options that
// adjust individual settings. A nil cfg keeps the defaults.
func WithConfig(cfg *config.Config) EmulatorOption {
	return func(e *Emulator) {
		if cfg == nil {
			return
		}
		e.cfg = cfg.Clone()
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithTraceWriter records every tick to w.
func WithTraceWriter(w trace.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.tracer = w
	}
}

// WithLatencyTable sets the table used for the cycle estimate.
func WithLatencyTable(table *latency.Table) EmulatorOption {
	return func(e *Emulator) {
		e.latency = table
	}
}

// WithDataCache enables the data cache model.
func WithDataCache(c cache.Config) EmulatorOption {
	return func(e *Emulator) {
		e.cfg.DCache = &c
	}
}

// WithMaxInstructions sets the maximum number of instructions Run executes.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.cfg.MaxInstructions = max
	}
}

// WithStrictDecode selects whether unknown instruction words fault (true)
// or execute as NOP (false).
func WithStrictDecode(strict bool) EmulatorOption {
	return func(e *Emulator) {
		e.cfg.StrictDecode = strict
	}
}

// NewEmulator creates a new emulator in its reset state.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		cfg:    config.Default(),
		logger: slog.New(slog.DiscardHandler),
		alu:    NewALU(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		e.cfgErr = fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		e.logger.Error("invalid configuration", "err", err)
		e.cfg = config.Default()
	}

	e.regFile = &RegFile{}
	e.memory = NewMemoryWithSize(e.cfg.DataMemorySize)
	e.imem = NewInstructionMemory(e.cfg.InstructionMemoryWords)
	e.decoder = insts.NewDecoder(
		insts.WithLinkRegister(e.cfg.LinkRegister),
		insts.WithStackRegister(e.cfg.StackRegister),
	)

	if e.latency == nil {
		timing := e.cfg.Timing
		if timing == nil {
			timing = latency.DefaultTimingConfig()
		}
		e.latency = latency.NewTableWithConfig(timing)
	}

	if e.cfg.DCache != nil {
		e.dcache = cache.New(*e.cfg.DCache)
	}

	e.pc = e.cfg.ResetPC

	return e
}

// Config returns a copy of the emulator's configuration.
func (e *Emulator) Config() *config.Config {
	return e.cfg.Clone()
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's data memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionMemory returns the emulator's instruction memory.
func (e *Emulator) InstructionMemory() *InstructionMemory {
	return e.imem
}

// Decoder returns the control unit.
func (e *Emulator) Decoder() *insts.Decoder {
	return e.decoder
}

// PC returns the program counter.
func (e *Emulator) PC() uint64 {
	return e.pc
}

// SetPC overrides the program counter.
func (e *Emulator) SetPC(pc uint64) {
	e.pc = pc
}

// Fault returns the latched fault, or nil.
func (e *Emulator) Fault() error {
	if e.cfgErr != nil {
		return e.cfgErr
	}
	return e.fault
}

// InstructionCount returns the number of instructions retired.
func (e *Emulator) InstructionCount() uint64 {
	return e.stats.Instructions
}

// Stats returns the execution statistics.
func (e *Emulator) Stats() Stats {
	s := e.stats
	if e.dcache != nil {
		cs := e.dcache.Stats()
		s.DCache = &cs
	}
	return s
}

// Snapshot returns the PC, register file and latched fault.
func (e *Emulator) Snapshot() State {
	return State{
		PC:        e.pc,
		Registers: e.regFile.Snapshot(),
		Fault:     e.Fault(),
	}
}

// LoadProgram loads a program image; program[0] lands at address 4.
func (e *Emulator) LoadProgram(program []uint32) error {
	if err := e.imem.LoadProgram(program); err != nil {
		return err
	}

	e.logger.Info("program loaded", "words", len(program))
	return nil
}

// LoadData copies a data segment into data memory at base.
func (e *Emulator) LoadData(base uint64, data []byte) error {
	if err := e.memory.Load(base, data); err != nil {
		return fmt.Errorf("loading data segment: %w", err)
	}
	return nil
}

// Reset forces the PC to its reset value and clears the latched fault and
// statistics. Registers and data memory are cleared as configured.
func (e *Emulator) Reset() {
	e.pc = e.cfg.ResetPC
	e.fault = nil
	e.stats = Stats{}

	if e.cfg.ClearRegistersOnReset {
		e.regFile.Clear()
	}
	if e.cfg.ClearMemoryOnReset {
		e.memory.Clear()
	}
	if e.dcache != nil {
		e.dcache.Reset()
	}

	e.logger.Info("reset", "pc", hex(e.pc))
}

// Step runs one tick: fetch, decode, execute, memory access and
// write-back. State is committed only if every phase succeeds. After a
// fault, Step keeps returning it until Reset.
func (e *Emulator) Step() StepResult {
	if err := e.Fault(); err != nil {
		return StepResult{PC: e.pc, NextPC: e.pc, Err: err}
	}

	step := trace.Step{Tick: e.stats.Instructions + 1, PC: e.pc}

	result, cycles := e.tick(&step)
	if result.Err != nil {
		e.fault = result.Err
		e.logger.Error("fault", "pc", hex(result.PC), "err", result.Err)
		step.NextPC = e.pc
		step.Fault = result.Err.Error()
	} else {
		step.NextPC = result.NextPC
		step.Cycles = cycles
	}

	if e.tracer != nil {
		if err := e.tracer.WriteStep(&step); err != nil {
			e.logger.Error("trace write failed", "err", err)
		}
	}

	return result
}

func (e *Emulator) tick(step *trace.Step) (StepResult, uint64) {
	result := StepResult{PC: e.pc, NextPC: e.pc}

	ifid, err := e.fetch()
	if err != nil {
		result.Err = err
		return result, 0
	}
	step.Word = ifid.Word

	idex, err := e.decode(ifid)
	if err != nil {
		result.Err = err
		return result, 0
	}
	result.Inst = idex.Inst
	step.Disasm = idex.Inst.String()

	exmem, err := e.execute(idex)
	if err != nil {
		result.Err = err
		return result, 0
	}

	memwb, cycles, err := e.memoryAccess(exmem, step)
	if err != nil {
		result.Err = err
		return result, 0
	}

	if err := e.writeback(memwb, step); err != nil {
		result.Err = err
		return result, 0
	}

	cycles += e.latencyOf(memwb)
	e.account(memwb, cycles)

	result.NextPC = memwb.ResolvedPC
	result.Cycles = cycles
	result.Idle = ifid.Filler || memwb.ResolvedPC == ifid.PC

	return result, cycles
}

// fetch reads the instruction word at PC.
func (e *Emulator) fetch() (IFID, error) {
	word, err := e.imem.Fetch(e.pc)
	if err != nil {
		return IFID{}, err
	}

	return IFID{
		PC:     e.pc,
		Word:   word,
		NextPC: e.pc + 4,
		Filler: !e.imem.InImage(e.pc),
	}, nil
}

// decode runs the control unit and reads both source registers.
func (e *Emulator) decode(ifid IFID) (IDEX, error) {
	inst, err := e.decoder.Decode(ifid.Word)
	if err != nil {
		var decodeErr *insts.DecodeError
		if !errors.As(err, &decodeErr) {
			return IDEX{}, err
		}
		if e.cfg.StrictDecode {
			return IDEX{}, &DecodeFault{PC: ifid.PC, Word: ifid.Word, Reason: decodeErr.Reason}
		}

		e.logger.Warn("unknown instruction executed as NOP",
			"pc", hex(ifid.PC), "word", fmt.Sprintf("0x%08X", ifid.Word))
		e.stats.LenientDecodes++
		inst = &insts.Instruction{Op: insts.OpNOP, Format: insts.FormatUnknown, Word: ifid.Word}
	}

	rs1, err := e.regFile.ReadReg(inst.Rs1)
	if err != nil {
		return IDEX{}, err
	}
	rs2, err := e.regFile.ReadReg(inst.Rs2)
	if err != nil {
		return IDEX{}, err
	}

	return IDEX{
		IFID:     ifid,
		Inst:     inst,
		Rs1Value: rs1,
		Rs2Value: rs2,
	}, nil
}

// execute drives the ALU and resolves the next PC.
func (e *Emulator) execute(idex IDEX) (EXMEM, error) {
	inst := idex.Inst

	a := idex.Rs1Value
	if inst.PCRelative {
		a = idex.PC
	}
	b := idex.Rs2Value
	if inst.ALUSrc {
		b = uint64(inst.Imm)
	}

	aluResult, err := e.alu.Compute(a, b, inst.ALUOp)
	if err != nil {
		var fault *DecodeFault
		if errors.As(err, &fault) {
			fault.PC = idex.PC
			fault.Word = idex.Word
		}
		return EXMEM{}, err
	}

	exmem := EXMEM{
		IDEX:       idex,
		ALUResult:  aluResult,
		ResolvedPC: idex.NextPC,
	}

	switch {
	case inst.Branch:
		zero := aluResult == 0
		exmem.BranchTaken = (inst.Cond == insts.CondEQ && zero) ||
			(inst.Cond == insts.CondNE && !zero)
		if exmem.BranchTaken {
			exmem.ResolvedPC = idex.PC + uint64(inst.Imm)
		}
	case inst.Jump:
		exmem.ResolvedPC = aluResult
	}

	return exmem, nil
}

// memoryAccess performs the load or store addressed by the ALU result.
// The returned cycles are the data cache latency, if a cache is modeled.
func (e *Emulator) memoryAccess(exmem EXMEM, step *trace.Step) (MEMWB, uint64, error) {
	memwb := MEMWB{EXMEM: exmem}
	inst := exmem.Inst
	addr := exmem.ALUResult

	if !inst.MemRead && !inst.MemWrite {
		return memwb, 0, nil
	}

	var (
		access = &trace.MemAccess{Addr: addr}
		err    error
	)

	if inst.MemRead {
		memwb.MemData, err = e.memory.Read64(addr)
		access.Value = memwb.MemData
		step.MemRead = access
	} else {
		err = e.memory.Write64(addr, exmem.Rs2Value)
		access.Value = exmem.Rs2Value
		step.MemWrite = access
	}

	if err != nil {
		step.MemRead, step.MemWrite = nil, nil
		var fault *MemoryAccessFault
		if errors.As(err, &fault) {
			fault.PC = exmem.PC
		}
		return MEMWB{}, 0, err
	}

	if e.dcache == nil {
		return memwb, 0, nil
	}

	res := e.dcache.Access(addr, 8, inst.MemWrite)
	access.Hit = &res.Hit
	return memwb, res.Latency, nil
}

// writeback commits rd and the PC. An out-of-range rd faults before
// anything is written.
func (e *Emulator) writeback(memwb MEMWB, step *trace.Step) error {
	inst := memwb.Inst

	if inst.RegWrite {
		value := memwb.WriteValue()
		if err := e.regFile.WriteReg(inst.Rd, value); err != nil {
			return err
		}
		if inst.Rd != 0 {
			step.SetRegWrite(inst.Rd, value)
			e.logger.Debug("write", "reg", inst.Rd, "value", value)
		}
	}

	e.pc = memwb.ResolvedPC

	e.logger.Debug("retire", "pc", hex(memwb.PC), "inst", inst.String(),
		"next_pc", hex(memwb.ResolvedPC))

	return nil
}

// latencyOf returns the class latency of a retired instruction. Memory
// operations are costed by the data cache when one is modeled.
func (e *Emulator) latencyOf(memwb MEMWB) uint64 {
	inst := memwb.Inst
	if e.dcache != nil && e.latency.IsMemoryOp(inst) {
		return 0
	}

	cycles := e.latency.GetLatency(inst)
	if memwb.BranchTaken {
		cycles += e.latency.BranchPenalty()
	}
	return cycles
}

func (e *Emulator) account(memwb MEMWB, cycles uint64) {
	inst := memwb.Inst
	s := &e.stats

	s.Instructions++
	s.Cycles += cycles

	switch {
	case inst.IsNOP():
		s.NOPs++
	case inst.MemRead:
		s.Loads++
	case inst.MemWrite:
		s.Stores++
	case inst.Branch && memwb.BranchTaken:
		s.BranchesTaken++
	case inst.Branch:
		s.BranchesNotTaken++
	case inst.Call:
		s.Calls++
	case inst.Ret:
		s.Returns++
	case inst.Jump:
		s.Jumps++
	}
}

// Run steps until the program goes idle, a fault occurs, the instruction
// limit is reached or ctx is cancelled.
func (e *Emulator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := e.cfg.MaxInstructions
		if limit > 0 && e.stats.Instructions >= limit {
			return fmt.Errorf("%w: %d", ErrInstructionLimit, limit)
		}

		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Idle {
			return nil
		}
	}
}

// RunCycles runs at most n ticks and reports whether the program went idle.
func (e *Emulator) RunCycles(n uint64) (bool, error) {
	for i := uint64(0); i < n; i++ {
		result := e.Step()
		if result.Err != nil {
			return false, result.Err
		}
		if result.Idle {
			return true, nil
		}
	}
	return false, nil
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%X", v)
}
