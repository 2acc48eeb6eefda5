package insts

import "fmt"

var opNames = map[Op]string{
	OpUnknown: "unknown",
	OpNOP:     "nop",
	OpADD:     "add",
	OpSUB:     "sub",
	OpSLL:     "sll",
	OpSLT:     "slt",
	OpSLTU:    "sltu",
	OpXOR:     "xor",
	OpSRL:     "srl",
	OpSRA:     "sra",
	OpOR:      "or",
	OpAND:     "and",
	OpNAND:    "nand",
	OpADDI:    "addi",
	OpSLTI:    "slti",
	OpSLTIU:   "sltiu",
	OpXORI:    "xori",
	OpORI:     "ori",
	OpANDI:    "andi",
	OpSLLI:    "slli",
	OpSRLI:    "srli",
	OpSRAI:    "srai",
	OpLW:      "lw",
	OpLD:      "ld",
	OpSW:      "sw",
	OpSD:      "sd",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpMOV:     "mov",
	OpCALL:    "call",
	OpJMP:     "jmp",
	OpRET:     "ret",
	OpPUSH:    "push",
	OpPOP:     "pop",
}

// String returns the assembler mnemonic.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint16(op))
}

// OpByName looks up an operation by its mnemonic.
func OpByName(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name && op != OpUnknown {
			return op, true
		}
	}
	return OpUnknown, false
}

// String disassembles the instruction.
func (i *Instruction) String() string {
	switch i.Op {
	case OpNOP, OpUnknown:
		return i.Op.String()
	case OpMOV:
		return fmt.Sprintf("mov x%d, %d", i.Rd, i.Imm)
	case OpJMP:
		return fmt.Sprintf("jmp %+d", i.Imm)
	case OpCALL:
		return fmt.Sprintf("call x%d, %+d", i.Rd, i.Imm)
	case OpRET:
		return fmt.Sprintf("ret x%d", i.Rs1)
	case OpPUSH:
		return fmt.Sprintf("push x%d, %d(x%d)", i.Rs2, i.Imm, i.Rs1)
	case OpPOP:
		return fmt.Sprintf("pop x%d, %d(x%d)", i.Rd, i.Imm, i.Rs1)
	case OpLW, OpLD:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
	}

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %+d", i.Op, i.Rs1, i.Rs2, i.Imm)
	default:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	}
}
