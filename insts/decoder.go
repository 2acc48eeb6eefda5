package insts

import (
	"errors"
	"fmt"
)

// ErrDecode is wrapped by every DecodeError.
var ErrDecode = errors.New("decode fault")

// DecodeError describes an instruction word the control unit cannot map to
// a control bundle.
type DecodeError struct {
	Word   uint32
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: word 0x%08X: %s", ErrDecode, e.Word, e.Reason)
}

// Unwrap returns ErrDecode.
func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Default special-purpose registers.
const (
	DefaultLinkRegister  uint8 = 1
	DefaultStackRegister uint8 = 30
)

type funcKey struct {
	funct3 uint8
	funct7 uint8
}

// rTypeOps maps (funct3, funct7) to register-register operations.
var rTypeOps = map[funcKey]Op{
	{0, 0x00}: OpADD,
	{0, 0x20}: OpSUB,
	{1, 0x00}: OpSLL,
	{2, 0x00}: OpSLT,
	{3, 0x00}: OpSLTU,
	{4, 0x00}: OpXOR,
	{5, 0x00}: OpSRL,
	{5, 0x20}: OpSRA,
	{6, 0x00}: OpOR,
	{7, 0x00}: OpAND,
	{7, 0x01}: OpNAND,
}

// iTypeOps maps (funct3, imm[11:6]) to register-immediate operations. The
// upper immediate bits only take part in the key for shifts.
var iTypeOps = map[funcKey]Op{
	{0, 0x00}: OpADDI,
	{1, 0x00}: OpSLLI,
	{2, 0x00}: OpSLTI,
	{3, 0x00}: OpSLTIU,
	{4, 0x00}: OpXORI,
	{5, 0x00}: OpSRLI,
	{5, 0x10}: OpSRAI,
	{6, 0x00}: OpORI,
	{7, 0x00}: OpANDI,
}

var loadOps = map[uint8]Op{2: OpLW, 3: OpLD}

var storeOps = map[uint8]Op{2: OpSW, 3: OpSD}

var branchOps = map[uint8]Op{0: OpBEQ, 1: OpBNE}

// customOps holds the opcodes outside the RV32 base map. They all require
// funct3 == 0.
var customOps = map[uint8]Op{
	OpcodeMOV:  OpMOV,
	OpcodeCALL: OpCALL,
	OpcodeJMP:  OpJMP,
	OpcodeRET:  OpRET,
	OpcodePUSH: OpPUSH,
	OpcodePOP:  OpPOP,
}

// aluOps gives the ALU function driven for each operation.
var aluOps = map[Op]ALUOp{
	OpADD: ALUAdd, OpSUB: ALUSub, OpSLL: ALUSll, OpSLT: ALUSlt,
	OpSLTU: ALUSltu, OpXOR: ALUXor, OpSRL: ALUSrl, OpSRA: ALUSra,
	OpOR: ALUOr, OpAND: ALUAnd, OpNAND: ALUNand,

	OpADDI: ALUAdd, OpSLTI: ALUSlt, OpSLTIU: ALUSltu, OpXORI: ALUXor,
	OpORI: ALUOr, OpANDI: ALUAnd, OpSLLI: ALUSll, OpSRLI: ALUSrl,
	OpSRAI: ALUSra,

	OpLW: ALUAdd, OpLD: ALUAdd, OpSW: ALUAdd, OpSD: ALUAdd,
	OpPUSH: ALUAdd, OpPOP: ALUAdd,

	OpBEQ: ALUSub, OpBNE: ALUSub,

	OpMOV: ALUMov, OpCALL: ALUCall, OpJMP: ALUJmp, OpRET: ALURet,
}

// Decoder is the MRCM control unit. It turns instruction words into
// control bundles.
type Decoder struct {
	linkReg  uint8
	stackReg uint8
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLinkRegister sets the register CALL and RET use when their register
// field is zero.
func WithLinkRegister(reg uint8) DecoderOption {
	return func(d *Decoder) {
		d.linkReg = reg
	}
}

// WithStackRegister sets the register PUSH and POP address from when their
// rs1 field is zero.
func WithStackRegister(reg uint8) DecoderOption {
	return func(d *Decoder) {
		d.stackReg = reg
	}
}

// NewDecoder creates a new instruction decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		linkReg:  DefaultLinkRegister,
		stackReg: DefaultStackRegister,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// LinkRegister returns the implicit link register.
func (d *Decoder) LinkRegister() uint8 {
	return d.linkReg
}

// StackRegister returns the implicit stack register.
func (d *Decoder) StackRegister() uint8 {
	return d.stackReg
}

// Decode decodes a 32-bit instruction word into its control bundle.
// Unrecognized encodings return a *DecodeError.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	if word == 0 || word == NOPWord {
		return &Instruction{Op: OpNOP, Format: FormatI, Word: word}, nil
	}

	opcode := uint8(word & 0x7F)
	funct3 := uint8((word >> 12) & 0x7)

	var (
		op     Op
		format Format
		ok     bool
	)

	switch opcode {
	case OpcodeRType:
		funct7 := uint8(word >> 25)
		op, ok = rTypeOps[funcKey{funct3, funct7}]
		format = FormatR
	case OpcodeIType:
		key := funcKey{funct3: funct3}
		if funct3 == 1 || funct3 == 5 {
			key.funct7 = uint8(word >> 26) // imm[11:6]
		}
		op, ok = iTypeOps[key]
		format = FormatI
	case OpcodeLoad:
		op, ok = loadOps[funct3]
		format = FormatI
	case OpcodeStore:
		op, ok = storeOps[funct3]
		format = FormatS
	case OpcodeBranch:
		op, ok = branchOps[funct3]
		format = FormatB
	default:
		op, ok = customOps[opcode]
		ok = ok && funct3 == 0
		format = FormatI
		if op == OpPUSH {
			format = FormatS
		}
	}

	if !ok {
		return nil, &DecodeError{
			Word: word,
			Reason: fmt.Sprintf("unknown encoding opcode=0x%02X funct3=%d funct7=0x%02X",
				opcode, funct3, word>>25),
		}
	}

	inst := &Instruction{
		Op:     op,
		Format: format,
		Word:   word,
		Rd:     uint8((word >> 7) & 0x1F),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		ALUOp:  aluOps[op],
	}

	switch format {
	case FormatR:
		inst.Imm = 0
	case FormatI:
		inst.Imm = immI(word)
	case FormatS:
		inst.Imm = immS(word)
	case FormatB:
		inst.Imm = immB(word)
	}

	d.setControl(inst)

	return inst, nil
}

// setControl fills in the control signals and clears the register fields an
// instruction form does not use.
func (d *Decoder) setControl(inst *Instruction) {
	switch inst.Format {
	case FormatI:
		inst.Rs2 = 0
	case FormatS, FormatB:
		inst.Rd = 0
	}

	switch inst.Op {
	case OpADD, OpSUB, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpSRA,
		OpOR, OpAND, OpNAND:
		inst.RegWrite = true
		inst.WBSource = WBALU

	case OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI:
		inst.ALUSrc = true
		inst.RegWrite = true
		inst.WBSource = WBALU

	case OpSLLI, OpSRLI, OpSRAI:
		inst.Imm = int64((inst.Word >> 20) & 0x3F)
		inst.ALUSrc = true
		inst.RegWrite = true
		inst.WBSource = WBALU

	case OpLW, OpLD, OpPOP:
		if inst.Op == OpPOP && inst.Rs1 == 0 {
			inst.Rs1 = d.stackReg
		}
		inst.ALUSrc = true
		inst.MemRead = true
		inst.RegWrite = true
		inst.WBSource = WBMem

	case OpSW, OpSD, OpPUSH:
		if inst.Op == OpPUSH && inst.Rs1 == 0 {
			inst.Rs1 = d.stackReg
		}
		inst.ALUSrc = true
		inst.MemWrite = true

	case OpBEQ, OpBNE:
		inst.Branch = true
		inst.Cond = CondEQ
		if inst.Op == OpBNE {
			inst.Cond = CondNE
		}

	case OpMOV:
		inst.Rs1 = 0
		inst.ALUSrc = true
		inst.RegWrite = true
		inst.WBSource = WBALU

	case OpJMP:
		inst.Rd = 0
		inst.Rs1 = 0
		inst.ALUSrc = true
		inst.PCRelative = true
		inst.Jump = true

	case OpCALL:
		if inst.Rd == 0 {
			inst.Rd = d.linkReg
		}
		inst.Rs1 = 0
		inst.ALUSrc = true
		inst.PCRelative = true
		inst.Jump = true
		inst.Call = true
		inst.RegWrite = true
		inst.WBSource = WBLink

	case OpRET:
		if inst.Rs1 == 0 {
			inst.Rs1 = d.linkReg
		}
		inst.Rd = 0
		inst.Imm = 0
		inst.Jump = true
		inst.Ret = true
	}
}

// immI extracts the sign-extended I-type immediate, bits [31:20].
func immI(word uint32) int64 {
	return int64(int32(word) >> 20)
}

// immS extracts the sign-extended S-type immediate, bits [31:25] and [11:7].
func immS(word uint32) int64 {
	hi := int32(word) >> 25
	lo := int32((word >> 7) & 0x1F)
	return int64(hi<<5 | lo)
}

// immB extracts the sign-extended B-type branch offset.
// imm[12] = bit 31, imm[10:5] = bits [30:25], imm[4:1] = bits [11:8],
// imm[11] = bit 7. Bit 0 is always zero.
func immB(word uint32) int64 {
	imm := (word>>31&0x1)<<12 |
		(word>>7&0x1)<<11 |
		(word>>25&0x3F)<<5 |
		(word>>8&0xF)<<1
	return int64(int32(imm<<19) >> 19)
}
