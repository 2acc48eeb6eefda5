package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"github.com/sarchlab/mrcm/emu"
	"github.com/sarchlab/mrcm/insts"
)

// LoadELF parses a RISC-V ELF64 executable. The single executable PT_LOAD
// segment becomes the instruction image and must be linked at or below
// address 4; every other PT_LOAD segment becomes a data segment, with BSS
// zero-filled to its memory size.
func LoadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("%w: not a 64-bit ELF file", ErrFormat)
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: not a RISC-V ELF file (machine type: %v)",
			ErrFormat, f.Machine)
	}

	prog := &Program{}
	haveText := false

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Memsz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data[:phdr.Filesz], 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		if phdr.Flags&elf.PF_X == 0 {
			prog.Data = append(prog.Data, Segment{Addr: phdr.Vaddr, Data: data})
			continue
		}

		if haveText {
			return nil, fmt.Errorf("%w: more than one executable segment", ErrFormat)
		}
		haveText = true

		words, err := textWords(phdr.Vaddr, data)
		if err != nil {
			return nil, err
		}
		prog.Words = words
	}

	if !haveText {
		return nil, fmt.Errorf("%w: no executable segment", ErrFormat)
	}

	return prog, nil
}

// textWords converts an executable segment at vaddr to program words
// starting at emu.ProgramBase. A segment linked at 0 loses its reserved
// first word; one linked above the base is preceded by NOPs.
func textWords(vaddr uint64, data []byte) ([]uint32, error) {
	if vaddr%4 != 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: executable segment at 0x%x is not word aligned",
			ErrFormat, vaddr)
	}

	words, err := ParseBinary(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	switch {
	case vaddr == 0:
		if len(words) == 0 {
			return nil, nil
		}
		return words[1:], nil
	case vaddr > emu.ProgramBase:
		pad := make([]uint32, (vaddr-emu.ProgramBase)/4)
		for i := range pad {
			pad[i] = insts.NOPWord
		}
		return append(pad, words...), nil
	default:
		return words, nil
	}
}
