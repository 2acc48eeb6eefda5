package insts

// Encoders build instruction words from operands. They panic on an Op that
// does not belong to the requested format, since that is a programming error
// in the caller rather than bad input data.

type encoding struct {
	opcode uint8
	funct3 uint8
	funct7 uint8
}

var encodings = map[Op]encoding{
	OpADD:  {OpcodeRType, 0, 0x00},
	OpSUB:  {OpcodeRType, 0, 0x20},
	OpSLL:  {OpcodeRType, 1, 0x00},
	OpSLT:  {OpcodeRType, 2, 0x00},
	OpSLTU: {OpcodeRType, 3, 0x00},
	OpXOR:  {OpcodeRType, 4, 0x00},
	OpSRL:  {OpcodeRType, 5, 0x00},
	OpSRA:  {OpcodeRType, 5, 0x20},
	OpOR:   {OpcodeRType, 6, 0x00},
	OpAND:  {OpcodeRType, 7, 0x00},
	OpNAND: {OpcodeRType, 7, 0x01},

	OpADDI:  {OpcodeIType, 0, 0},
	OpSLLI:  {OpcodeIType, 1, 0},
	OpSLTI:  {OpcodeIType, 2, 0},
	OpSLTIU: {OpcodeIType, 3, 0},
	OpXORI:  {OpcodeIType, 4, 0},
	OpSRLI:  {OpcodeIType, 5, 0},
	OpSRAI:  {OpcodeIType, 5, 0x20},
	OpORI:   {OpcodeIType, 6, 0},
	OpANDI:  {OpcodeIType, 7, 0},

	OpLW: {OpcodeLoad, 2, 0},
	OpLD: {OpcodeLoad, 3, 0},
	OpSW: {OpcodeStore, 2, 0},
	OpSD: {OpcodeStore, 3, 0},

	OpBEQ: {OpcodeBranch, 0, 0},
	OpBNE: {OpcodeBranch, 1, 0},

	OpMOV:  {OpcodeMOV, 0, 0},
	OpCALL: {OpcodeCALL, 0, 0},
	OpJMP:  {OpcodeJMP, 0, 0},
	OpRET:  {OpcodeRET, 0, 0},
	OpPUSH: {OpcodePUSH, 0, 0},
	OpPOP:  {OpcodePOP, 0, 0},
}

func mustEncoding(op Op, opcodes ...uint8) encoding {
	enc, ok := encodings[op]
	if ok {
		for _, opcode := range opcodes {
			if enc.opcode == opcode {
				return enc
			}
		}
	}
	panic("insts: " + op.String() + " cannot be encoded in this format")
}

func reg(r uint8) uint32 {
	return uint32(r & 0x1F)
}

// EncodeR encodes a register-register instruction: rd = rs1 op rs2.
func EncodeR(op Op, rd, rs1, rs2 uint8) uint32 {
	enc := mustEncoding(op, OpcodeRType)
	return uint32(enc.funct7)<<25 | reg(rs2)<<20 | reg(rs1)<<15 |
		uint32(enc.funct3)<<12 | reg(rd)<<7 | uint32(enc.opcode)
}

// EncodeI encodes a register-immediate instruction, a load or one of the
// I-layout custom ops: rd = rs1 op imm, or rd = mem[rs1 + imm]. For shifts
// imm is the shift amount.
func EncodeI(op Op, rd, rs1 uint8, imm int64) uint32 {
	enc := mustEncoding(op, OpcodeIType, OpcodeLoad, OpcodePOP,
		OpcodeMOV, OpcodeCALL, OpcodeJMP, OpcodeRET)
	field := uint32(imm) & 0xFFF
	if op == OpSLLI || op == OpSRLI || op == OpSRAI {
		// funct7 holds imm[11:5]; SRAI sets bit 30.
		field = uint32(enc.funct7)<<5 | uint32(imm)&0x3F
	}
	return field<<20 | reg(rs1)<<15 | uint32(enc.funct3)<<12 |
		reg(rd)<<7 | uint32(enc.opcode)
}

// EncodeS encodes a store: mem[rs1 + imm] = rs2.
func EncodeS(op Op, rs1, rs2 uint8, imm int64) uint32 {
	enc := mustEncoding(op, OpcodeStore, OpcodePUSH)
	u := uint32(imm) & 0xFFF
	return (u>>5)<<25 | reg(rs2)<<20 | reg(rs1)<<15 |
		uint32(enc.funct3)<<12 | (u&0x1F)<<7 | uint32(enc.opcode)
}

// EncodeB encodes a conditional branch with a byte offset relative to the
// branch's own PC. The offset must be even.
func EncodeB(op Op, rs1, rs2 uint8, offset int64) uint32 {
	enc := mustEncoding(op, OpcodeBranch)
	u := uint32(offset) & 0x1FFF
	return (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | reg(rs2)<<20 | reg(rs1)<<15 |
		uint32(enc.funct3)<<12 | (u>>1&0xF)<<8 | (u>>11&0x1)<<7 |
		uint32(enc.opcode)
}

// EncodeMOV encodes rd = sign-extended imm12.
func EncodeMOV(rd uint8, imm int64) uint32 {
	return EncodeI(OpMOV, rd, 0, imm)
}

// EncodeCALL encodes a call to PC + offset that stores the return address
// in rd. An rd of zero selects the decoder's link register.
func EncodeCALL(rd uint8, offset int64) uint32 {
	return EncodeI(OpCALL, rd, 0, offset)
}

// EncodeJMP encodes an unconditional jump to PC + offset.
func EncodeJMP(offset int64) uint32 {
	return EncodeI(OpJMP, 0, 0, offset)
}

// EncodeRET encodes a return to the address held in rs1. An rs1 of zero
// selects the decoder's link register.
func EncodeRET(rs1 uint8) uint32 {
	return EncodeI(OpRET, 0, rs1, 0)
}

// EncodePUSH encodes mem[stack + offset] = rs2. An rs1 of zero selects the
// decoder's stack register.
func EncodePUSH(rs1, rs2 uint8, offset int64) uint32 {
	return EncodeS(OpPUSH, rs1, rs2, offset)
}

// EncodePOP encodes rd = mem[stack + offset]. An rs1 of zero selects the
// decoder's stack register.
func EncodePOP(rd, rs1 uint8, offset int64) uint32 {
	return EncodeI(OpPOP, rd, rs1, offset)
}
