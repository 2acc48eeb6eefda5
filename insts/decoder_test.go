package insts_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mrcm/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("NOP", func() {
		It("should decode the all-zero word as NOP", func() {
			inst, err := decoder.Decode(0x00000000)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.IsNOP()).To(BeTrue())
			Expect(inst.RegWrite).To(BeFalse())
			Expect(inst.MemWrite).To(BeFalse())
		})

		It("should decode ADDI x0, x0, 0 as NOP", func() {
			inst, err := decoder.Decode(insts.NOPWord)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpNOP))
		})
	})

	Describe("R-type", func() {
		// ADD x3, x1, x2 -> 0x002081B3
		It("should decode ADD x3, x1, x2", func() {
			inst, err := decoder.Decode(0x002081B3)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Format).To(Equal(insts.FormatR))
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.ALUOp).To(Equal(insts.ALUAdd))
			Expect(inst.ALUSrc).To(BeFalse())
			Expect(inst.RegWrite).To(BeTrue())
			Expect(inst.WBSource).To(Equal(insts.WBALU))
		})

		// SUB x3, x1, x2 -> 0x402081B3
		It("should decode SUB from funct7 0x20", func() {
			inst, err := decoder.Decode(0x402081B3)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSUB))
			Expect(inst.ALUOp).To(Equal(insts.ALUSub))
		})

		It("should decode NAND from funct3 7 with funct7 1", func() {
			inst, err := decoder.Decode(insts.EncodeR(insts.OpNAND, 5, 6, 7))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpNAND))
			Expect(inst.ALUOp).To(Equal(insts.ALUNand))
		})

		It("should reject a funct7 outside the table", func() {
			// ADD with funct7 = 0x7F
			_, err := decoder.Decode(0xFE2081B3)
			Expect(errors.Is(err, insts.ErrDecode)).To(BeTrue())
		})

		It("should reject funct7 1 on funct3 other than 7", func() {
			_, err := decoder.Decode(0x022081B3)
			Expect(err).To(MatchError(insts.ErrDecode))
		})
	})

	Describe("I-type", func() {
		// ADDI x1, x0, 3 -> 0x00300093
		It("should decode ADDI x1, x0, 3", func() {
			inst, err := decoder.Decode(0x00300093)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rs1).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(int64(3)))
			Expect(inst.ALUSrc).To(BeTrue())
		})

		// ADDI x1, x1, -1 -> 0xFFF08093
		It("should sign-extend negative immediates", func() {
			inst, err := decoder.Decode(0xFFF08093)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Imm).To(Equal(int64(-1)))
		})

		It("should decode a 6-bit shift amount", func() {
			inst, err := decoder.Decode(insts.EncodeI(insts.OpSLLI, 1, 2, 63))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSLLI))
			Expect(inst.Imm).To(Equal(int64(63)))
		})

		It("should separate SRLI and SRAI", func() {
			srli, err := decoder.Decode(insts.EncodeI(insts.OpSRLI, 1, 2, 4))
			Expect(err).NotTo(HaveOccurred())
			Expect(srli.Op).To(Equal(insts.OpSRLI))

			srai, err := decoder.Decode(insts.EncodeI(insts.OpSRAI, 1, 2, 4))
			Expect(err).NotTo(HaveOccurred())
			Expect(srai.Op).To(Equal(insts.OpSRAI))
			Expect(srai.Imm).To(Equal(int64(4)))
			Expect(srai.ALUOp).To(Equal(insts.ALUSra))
		})

		It("should reject stray upper bits on a shift", func() {
			// SLLI x1, x2, 1 with imm[11] set
			_, err := decoder.Decode(0x80111093)
			Expect(err).To(MatchError(insts.ErrDecode))
		})
	})

	Describe("Loads and stores", func() {
		// LD x5, 16(x30) -> 0x010F3283
		It("should decode LD as a memory read into rd", func() {
			inst, err := decoder.Decode(0x010F3283)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpLD))
			Expect(inst.Rd).To(Equal(uint8(5)))
			Expect(inst.Rs1).To(Equal(uint8(30)))
			Expect(inst.Imm).To(Equal(int64(16)))
			Expect(inst.MemRead).To(BeTrue())
			Expect(inst.WBSource).To(Equal(insts.WBMem))
		})

		It("should accept the LW encoding", func() {
			inst, err := decoder.Decode(insts.EncodeI(insts.OpLW, 1, 2, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpLW))
			Expect(inst.MemRead).To(BeTrue())
		})

		// SD x2, 8(x30) -> 0x002F3423
		It("should decode the split S-type immediate", func() {
			inst, err := decoder.Decode(0x002F3423)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSD))
			Expect(inst.Rs1).To(Equal(uint8(30)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(int64(8)))
			Expect(inst.MemWrite).To(BeTrue())
			Expect(inst.RegWrite).To(BeFalse())
		})

		It("should sign-extend negative store offsets", func() {
			inst, err := decoder.Decode(insts.EncodeS(insts.OpSW, 3, 4, -8))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Imm).To(Equal(int64(-8)))
		})

		It("should reject byte-width loads", func() {
			// LB x1, 0(x2)
			_, err := decoder.Decode(0x00010083)
			Expect(err).To(MatchError(insts.ErrDecode))
		})
	})

	Describe("Branches", func() {
		// BEQ x1, x2, 8 -> 0x00208463
		It("should decode BEQ x1, x2, 8", func() {
			inst, err := decoder.Decode(0x00208463)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpBEQ))
			Expect(inst.Format).To(Equal(insts.FormatB))
			Expect(inst.Branch).To(BeTrue())
			Expect(inst.Cond).To(Equal(insts.CondEQ))
			Expect(inst.Imm).To(Equal(int64(8)))
			Expect(inst.ALUOp).To(Equal(insts.ALUSub))
		})

		// BNE x0, x0, -4 -> 0xFE001EE3
		It("should decode a backward BNE", func() {
			inst, err := decoder.Decode(0xFE001EE3)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpBNE))
			Expect(inst.Cond).To(Equal(insts.CondNE))
			Expect(inst.Imm).To(Equal(int64(-4)))
		})

		It("should reject BLT", func() {
			_, err := decoder.Decode(0x00204463)
			Expect(err).To(MatchError(insts.ErrDecode))
		})
	})

	Describe("Custom opcodes", func() {
		It("should decode MOV with a sign-extended immediate", func() {
			inst, err := decoder.Decode(insts.EncodeMOV(7, -5))

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpMOV))
			Expect(inst.Rd).To(Equal(uint8(7)))
			Expect(inst.Imm).To(Equal(int64(-5)))
			Expect(inst.ALUOp).To(Equal(insts.ALUMov))
			Expect(inst.RegWrite).To(BeTrue())
		})

		It("should default CALL's link to x1", func() {
			inst, err := decoder.Decode(insts.EncodeCALL(0, 16))

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpCALL))
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(int64(16)))
			Expect(inst.Call).To(BeTrue())
			Expect(inst.Jump).To(BeTrue())
			Expect(inst.PCRelative).To(BeTrue())
			Expect(inst.WBSource).To(Equal(insts.WBLink))
		})

		It("should keep an explicit CALL link register", func() {
			inst, err := decoder.Decode(insts.EncodeCALL(31, -8))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Rd).To(Equal(uint8(31)))
			Expect(inst.Imm).To(Equal(int64(-8)))
		})

		It("should decode JMP without a register write", func() {
			inst, err := decoder.Decode(insts.EncodeJMP(-12))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpJMP))
			Expect(inst.RegWrite).To(BeFalse())
			Expect(inst.Imm).To(Equal(int64(-12)))
		})

		It("should decode the legacy RET encoding", func() {
			// rs1 = x1, opcode 0x43
			inst, err := decoder.Decode(0x00008043)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpRET))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Ret).To(BeTrue())
			Expect(inst.ALUOp).To(Equal(insts.ALURet))
		})

		It("should address PUSH and POP from the stack register", func() {
			push, err := decoder.Decode(insts.EncodePUSH(0, 4, 8))
			Expect(err).NotTo(HaveOccurred())
			Expect(push.Rs1).To(Equal(uint8(30)))
			Expect(push.Rs2).To(Equal(uint8(4)))
			Expect(push.MemWrite).To(BeTrue())

			pop, err := decoder.Decode(insts.EncodePOP(6, 0, 8))
			Expect(err).NotTo(HaveOccurred())
			Expect(pop.Rs1).To(Equal(uint8(30)))
			Expect(pop.Rd).To(Equal(uint8(6)))
			Expect(pop.MemRead).To(BeTrue())
		})

		It("should reject custom opcodes with funct3 set", func() {
			_, err := decoder.Decode(insts.EncodeJMP(4) | 1<<12)
			Expect(err).To(MatchError(insts.ErrDecode))
		})

		It("should reject unassigned opcodes", func() {
			_, err := decoder.Decode(0x0000007F)
			var decodeErr *insts.DecodeError
			Expect(errors.As(err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Word).To(Equal(uint32(0x7F)))
		})
	})

	Describe("Custom-op encoders", func() {
		DescribeTable("should produce words that decode back to the same op",
			func(word, want uint32, op insts.Op, rd, rs1 uint8, imm int64) {
				Expect(word).To(Equal(want))

				inst, err := decoder.Decode(word)
				Expect(err).NotTo(HaveOccurred())
				Expect(inst.Op).To(Equal(op))
				Expect(inst.Rd).To(Equal(rd))
				Expect(inst.Rs1).To(Equal(rs1))
				Expect(inst.Imm).To(Equal(imm))
			},
			Entry("MOV", insts.EncodeMOV(7, -5), uint32(0xFFB003C0), insts.OpMOV, uint8(7), uint8(0), int64(-5)),
			Entry("CALL", insts.EncodeCALL(0, 16), uint32(0x01000041), insts.OpCALL, uint8(1), uint8(0), int64(16)),
			Entry("JMP", insts.EncodeJMP(-12), uint32(0xFF400042), insts.OpJMP, uint8(0), uint8(0), int64(-12)),
			Entry("RET", insts.EncodeRET(1), uint32(0x00008043), insts.OpRET, uint8(0), uint8(1), int64(0)),
		)

		It("should refuse ops outside the requested layout", func() {
			Expect(func() { insts.EncodeI(insts.OpADD, 1, 2, 3) }).To(Panic())
			Expect(func() { insts.EncodeS(insts.OpMOV, 1, 2, 3) }).To(Panic())
		})
	})

	Describe("Options", func() {
		It("should honor custom link and stack registers", func() {
			decoder = insts.NewDecoder(
				insts.WithLinkRegister(31),
				insts.WithStackRegister(2),
			)

			call, err := decoder.Decode(insts.EncodeCALL(0, 8))
			Expect(err).NotTo(HaveOccurred())
			Expect(call.Rd).To(Equal(uint8(31)))

			ret, err := decoder.Decode(insts.EncodeRET(0))
			Expect(err).NotTo(HaveOccurred())
			Expect(ret.Rs1).To(Equal(uint8(31)))

			pop, err := decoder.Decode(insts.EncodePOP(1, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(pop.Rs1).To(Equal(uint8(2)))
		})
	})

	Describe("String", func() {
		It("should disassemble common forms", func() {
			add, _ := decoder.Decode(0x002081B3)
			Expect(add.String()).To(Equal("add x3, x1, x2"))

			sd, _ := decoder.Decode(0x002F3423)
			Expect(sd.String()).To(Equal("sd x2, 8(x30)"))

			bne, _ := decoder.Decode(0xFE001EE3)
			Expect(bne.String()).To(Equal("bne x0, x0, -4"))
		})
	})
})
