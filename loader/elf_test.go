package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mrcm/insts"
	"github.com/sarchlab/mrcm/loader"
)

const (
	machineRISCV = 243
	machineX86   = 62

	ptLoad = 1
	ptNote = 4

	flagsRX = 0x5
	flagsRW = 0x6
)

type testSegment struct {
	typ     uint32
	flags   uint32
	vaddr   uint64
	data    []byte
	memSize uint64
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	code := wordBytes(
		insts.EncodeI(insts.OpADDI, 1, 0, 3),
		insts.EncodeR(insts.OpADD, 2, 1, 1),
	)

	Context("with a RISC-V executable linked at the program base", func() {
		It("should use the executable segment as the program", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			writeELF(elfPath, 2, machineRISCV, testSegment{
				typ: ptLoad, flags: flagsRX, vaddr: 4, data: code,
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]uint32{
				insts.EncodeI(insts.OpADDI, 1, 0, 3),
				insts.EncodeR(insts.OpADD, 2, 1, 1),
			}))
			Expect(prog.Data).To(BeEmpty())
		})
	})

	Context("with a text segment linked at address 0", func() {
		It("should drop the reserved first word", func() {
			elfPath := filepath.Join(tempDir, "zero.elf")
			writeELF(elfPath, 2, machineRISCV, testSegment{
				typ: ptLoad, flags: flagsRX, vaddr: 0,
				data: append(wordBytes(0xFFFFFFFF), code...),
			})

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(HaveLen(2))
			Expect(prog.Words[0]).To(Equal(insts.EncodeI(insts.OpADDI, 1, 0, 3)))
		})
	})

	Context("with a text segment linked above the program base", func() {
		It("should pad the gap with NOPs", func() {
			elfPath := filepath.Join(tempDir, "high.elf")
			writeELF(elfPath, 2, machineRISCV, testSegment{
				typ: ptLoad, flags: flagsRX, vaddr: 12, data: code,
			})

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(HaveLen(4))
			Expect(prog.Words[0]).To(Equal(insts.NOPWord))
			Expect(prog.Words[1]).To(Equal(insts.NOPWord))
			Expect(prog.Words[2]).To(Equal(insts.EncodeI(insts.OpADDI, 1, 0, 3)))
		})
	})

	Describe("data segments", func() {
		It("should collect writable segments as data", func() {
			elfPath := filepath.Join(tempDir, "multi.elf")
			writeELF(elfPath, 2, machineRISCV,
				testSegment{typ: ptLoad, flags: flagsRX, vaddr: 4, data: code},
				testSegment{typ: ptLoad, flags: flagsRW, vaddr: 0x1000, data: []byte{1, 2, 3, 4}},
			)

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Data).To(HaveLen(1))
			Expect(prog.Data[0].Addr).To(Equal(uint64(0x1000)))
			Expect(prog.Data[0].Data).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should zero-fill BSS up to the memory size", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			writeELF(elfPath, 2, machineRISCV,
				testSegment{typ: ptLoad, flags: flagsRX, vaddr: 4, data: code},
				testSegment{typ: ptLoad, flags: flagsRW, vaddr: 0x800, data: []byte{9}, memSize: 16},
			)

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Data[0].Data).To(HaveLen(16))
			Expect(prog.Data[0].Data[0]).To(Equal(byte(9)))
			Expect(prog.Data[0].Data[15]).To(BeZero())
		})

		It("should ignore segments that are not PT_LOAD", func() {
			elfPath := filepath.Join(tempDir, "note.elf")
			writeELF(elfPath, 2, machineRISCV,
				testSegment{typ: ptNote, flags: 0x4, vaddr: 0, data: []byte{1, 2, 3, 4}},
				testSegment{typ: ptLoad, flags: flagsRX, vaddr: 4, data: code},
			)

			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Data).To(BeEmpty())
			Expect(prog.Words).To(HaveLen(2))
		})
	})

	Describe("rejections", func() {
		It("should fail for a missing file", func() {
			_, err := loader.Load("/nonexistent/path/to/file.elf")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to open"))
		})

		It("should reject a non-RISC-V machine", func() {
			elfPath := filepath.Join(tempDir, "x86.elf")
			writeELF(elfPath, 2, machineX86, testSegment{
				typ: ptLoad, flags: flagsRX, vaddr: 4, data: code,
			})

			_, err := loader.Load(elfPath)
			Expect(err).To(MatchError(loader.ErrFormat))
			Expect(err.Error()).To(ContainSubstring("not a RISC-V"))
		})

		It("should reject a 32-bit ELF", func() {
			elfPath := filepath.Join(tempDir, "elf32.elf")
			header := make([]byte, 52)
			copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
			header[4] = 1 // ELFCLASS32
			header[5] = 1
			header[6] = 1
			binary.LittleEndian.PutUint16(header[16:18], 2)
			binary.LittleEndian.PutUint16(header[18:20], machineRISCV)
			binary.LittleEndian.PutUint32(header[20:24], 1)
			binary.LittleEndian.PutUint16(header[40:42], 52) // ehsize
			Expect(os.WriteFile(elfPath, header, 0o644)).To(Succeed())

			_, err := loader.Load(elfPath)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("64-bit"))
		})

		It("should require an executable segment", func() {
			elfPath := filepath.Join(tempDir, "data-only.elf")
			writeELF(elfPath, 2, machineRISCV, testSegment{
				typ: ptLoad, flags: flagsRW, vaddr: 0x1000, data: []byte{1},
			})

			_, err := loader.LoadELF(elfPath)
			Expect(err).To(MatchError(loader.ErrFormat))
		})

		It("should reject two executable segments", func() {
			elfPath := filepath.Join(tempDir, "two-text.elf")
			writeELF(elfPath, 2, machineRISCV,
				testSegment{typ: ptLoad, flags: flagsRX, vaddr: 4, data: code},
				testSegment{typ: ptLoad, flags: flagsRX, vaddr: 0x100, data: code},
			)

			_, err := loader.LoadELF(elfPath)
			Expect(err).To(MatchError(loader.ErrFormat))
		})

		It("should reject a misaligned text segment", func() {
			elfPath := filepath.Join(tempDir, "odd.elf")
			writeELF(elfPath, 2, machineRISCV, testSegment{
				typ: ptLoad, flags: flagsRX, vaddr: 6, data: code,
			})

			_, err := loader.LoadELF(elfPath)
			Expect(err).To(MatchError(loader.ErrFormat))
		})
	})
})

func wordBytes(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// writeELF writes a little-endian ELF64 executable with one program header
// per segment, followed by the segment contents in order.
func writeELF(path string, class byte, machine uint16, segs ...testSegment) {
	const (
		ehsize    = 64
		phentsize = 56
	)

	header := make([]byte, ehsize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = class
	header[5] = 1 // little endian
	header[6] = 1 // version

	// Executable, entry at the program base.
	binary.LittleEndian.PutUint16(header[16:18], 2)
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint64(header[24:32], 4)
	binary.LittleEndian.PutUint64(header[32:40], ehsize)
	binary.LittleEndian.PutUint16(header[52:54], ehsize)
	binary.LittleEndian.PutUint16(header[54:56], phentsize)
	binary.LittleEndian.PutUint16(header[56:58], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[58:60], 64)

	out := header
	offset := uint64(ehsize + phentsize*len(segs))
	var payload []byte

	for _, seg := range segs {
		memSize := seg.memSize
		if memSize < uint64(len(seg.data)) {
			memSize = uint64(len(seg.data))
		}

		ph := make([]byte, phentsize)
		binary.LittleEndian.PutUint32(ph[0:4], seg.typ)
		binary.LittleEndian.PutUint32(ph[4:8], seg.flags)
		binary.LittleEndian.PutUint64(ph[8:16], offset)
		binary.LittleEndian.PutUint64(ph[16:24], seg.vaddr)
		binary.LittleEndian.PutUint64(ph[24:32], seg.vaddr)
		binary.LittleEndian.PutUint64(ph[32:40], uint64(len(seg.data)))
		binary.LittleEndian.PutUint64(ph[40:48], memSize)
		binary.LittleEndian.PutUint64(ph[48:56], 4)
		out = append(out, ph...)

		payload = append(payload, seg.data...)
		offset += uint64(len(seg.data))
	}

	Expect(os.WriteFile(path, append(out, payload...), 0o644)).To(Succeed())
}
