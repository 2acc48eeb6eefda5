// Package insts provides MRCM instruction definitions, encoding and decoding.
//
// MRCM instructions are 32-bit little-endian words laid out like RV64I R/I/S/B
// formats, plus six custom opcodes for register moves and the call stack:
//   - R-type: ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND, NAND
//   - I-type: ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI
//   - Loads and stores: LW/LD, SW/SD (all 64-bit wide)
//   - Branches: BEQ, BNE
//   - Custom: MOV, CALL, JMP, RET, PUSH, POP
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(insts.EncodeI(insts.OpADDI, 1, 0, 3))
//	fmt.Println(inst) // addi x1, x0, 3
package insts

// NOPWord is the canonical no-operation encoding (ADDI x0, x0, 0).
const NOPWord uint32 = 0x00000013

// Major opcodes, taken from bits [6:0] of an instruction word.
const (
	OpcodeLoad   uint8 = 0b0000011
	OpcodeIType  uint8 = 0b0010011
	OpcodeStore  uint8 = 0b0100011
	OpcodeRType  uint8 = 0b0110011
	OpcodeBranch uint8 = 0b1100011
	OpcodeMOV    uint8 = 0b1000000
	OpcodeCALL   uint8 = 0b1000001
	OpcodeJMP    uint8 = 0b1000010
	OpcodeRET    uint8 = 0b1000011
	OpcodePUSH   uint8 = 0b1000100
	OpcodePOP    uint8 = 0b1000101
)

// Op identifies one instruction form.
type Op uint16

// MRCM operations.
const (
	OpUnknown Op = iota
	OpNOP

	// Register-register
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpNAND

	// Register-immediate
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Memory
	OpLW
	OpLD
	OpSW
	OpSD

	// Conditional branches
	OpBEQ
	OpBNE

	// Custom
	OpMOV
	OpCALL
	OpJMP
	OpRET
	OpPUSH
	OpPOP
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // rd, rs1, rs2, funct3, funct7
	FormatI              // rd, rs1, imm[11:0]
	FormatS              // rs1, rs2, imm split over [31:25] and [11:7]
	FormatB              // rs1, rs2, 13-bit branch offset
)

// ALUOp selects the ALU function. The numbering matches the control
// unit's alu_op bus.
type ALUOp uint8

// ALU operations.
const (
	ALUAdd  ALUOp = 0
	ALUSub  ALUOp = 1
	ALUAnd  ALUOp = 2
	ALUOr   ALUOp = 3
	ALUXor  ALUOp = 4
	ALUSll  ALUOp = 5
	ALUSrl  ALUOp = 6
	ALUSra  ALUOp = 7
	ALUSlt  ALUOp = 8
	ALUSltu ALUOp = 9
	ALUMov  ALUOp = 10
	ALUCall ALUOp = 11
	ALUJmp  ALUOp = 12
	ALURet  ALUOp = 13
	ALUNand ALUOp = 14
)

// WBSource selects what the write-back phase stores into rd.
type WBSource uint8

// Write-back sources.
const (
	WBNone WBSource = iota
	WBALU           // ALU result
	WBMem           // data memory load
	WBLink          // return address (PC + 4)
)

// BranchCond is the comparison a conditional branch applies to rs1 - rs2.
type BranchCond uint8

// Branch conditions.
const (
	CondNone BranchCond = iota
	CondEQ
	CondNE
)

// Instruction is the control bundle produced by the decoder.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Word   uint32 // Raw instruction word

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	// Imm is the sign-extended immediate (or shift amount for SLLI/SRLI/SRAI).
	Imm int64

	ALUOp ALUOp

	// ALUSrc selects the immediate as the second ALU operand.
	ALUSrc bool
	// PCRelative selects the PC as the first ALU operand.
	PCRelative bool

	MemRead  bool
	MemWrite bool
	RegWrite bool
	WBSource WBSource

	Branch bool
	Cond   BranchCond
	Jump   bool // JMP, CALL and RET redirect the PC unconditionally
	Call   bool
	Ret    bool
}

// IsNOP reports whether the instruction has no architectural effect.
func (i *Instruction) IsNOP() bool {
	return i.Op == OpNOP
}

// IsControlFlow reports whether the instruction may redirect the PC.
func (i *Instruction) IsControlFlow() bool {
	return i.Branch || i.Jump
}
