package emu

import (
	"fmt"

	"github.com/sarchlab/mrcm/insts"
)

// ALU implements the MRCM arithmetic and logic functions. It holds no state;
// operands come from the caller.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute applies op to a and b. For JMP and CALL the result is the jump
// target a + b, where a is the PC; for RET it is a, the link register value.
func (u *ALU) Compute(a, b uint64, op insts.ALUOp) (uint64, error) {
	switch op {
	case insts.ALUAdd, insts.ALUJmp, insts.ALUCall:
		return a + b, nil
	case insts.ALUSub:
		return a - b, nil
	case insts.ALUAnd:
		return a & b, nil
	case insts.ALUOr:
		return a | b, nil
	case insts.ALUXor:
		return a ^ b, nil
	case insts.ALUNand:
		return ^(a & b), nil
	case insts.ALUSll:
		return a << (b & 63), nil
	case insts.ALUSrl:
		return a >> (b & 63), nil
	case insts.ALUSra:
		return uint64(int64(a) >> (b & 63)), nil
	case insts.ALUSlt:
		if int64(a) < int64(b) {
			return 1, nil
		}
		return 0, nil
	case insts.ALUSltu:
		if a < b {
			return 1, nil
		}
		return 0, nil
	case insts.ALUMov:
		return b, nil
	case insts.ALURet:
		return a, nil
	default:
		return 0, &DecodeFault{Reason: fmt.Sprintf("unknown ALU operation %d", op)}
	}
}
