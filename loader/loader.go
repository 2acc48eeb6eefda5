// Package loader reads MRCM program images and data segments.
//
// Three image formats are accepted:
//   - RISC-V ELF64 executables (the executable segment becomes the program)
//   - raw little-endian binaries of 32-bit words
//   - hex text: one or more words per line, with optional 0x prefixes,
//     commas, brackets or braces, and '#' or '//' comments
package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sarchlab/mrcm/emu"
)

// ErrFormat is wrapped by every parse error.
var ErrFormat = errors.New("invalid program image")

// Segment is a block of initialized data memory.
type Segment struct {
	// Addr is the data memory address of the first byte.
	Addr uint64
	// Data holds the segment contents.
	Data []byte
}

// Program is a program image ready for loading into an emulator.
type Program struct {
	// Words holds the instruction words; Words[0] is placed at address 4.
	Words []uint32
	// Data holds the data memory segments.
	Data []Segment
}

// LoadInto loads the program and its data segments into e.
func (p *Program) LoadInto(e *emu.Emulator) error {
	if err := e.LoadProgram(p.Words); err != nil {
		return err
	}

	for _, seg := range p.Data {
		if err := e.LoadData(seg.Addr, seg.Data); err != nil {
			return fmt.Errorf("segment at 0x%X: %w", seg.Addr, err)
		}
	}

	return nil
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Load reads a program image, choosing the format from the file contents
// and extension: ELF by magic number, hex text for .hex and .txt, and raw
// binary otherwise.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program image: %w", err)
	}

	if bytes.HasPrefix(data, elfMagic) {
		return LoadELF(path)
	}

	var words []uint32
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".txt":
		words, err = ParseHex(bytes.NewReader(data))
	default:
		words, err = ParseBinary(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Program{Words: words}, nil
}

// ParseBinary decodes little-endian 32-bit words.
func ParseBinary(r io.Reader) ([]uint32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words",
			ErrFormat, len(data))
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4*i:])
	}

	return words, nil
}

// ParseHex decodes whitespace or comma separated hexadecimal words.
func ParseHex(r io.Reader) ([]uint32, error) {
	var words []uint32

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			switch r {
			case ' ', '\t', ',', '[', ']', '{', '}', ';':
				return true
			}
			return false
		})

		for _, field := range fields {
			digits := strings.TrimPrefix(strings.ToLower(field), "0x")
			word, err := strconv.ParseUint(digits, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not a 32-bit hex word",
					ErrFormat, lineNo, field)
			}
			words = append(words, uint32(word))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

// LoadSegment reads a raw data segment to be placed at addr.
func LoadSegment(path string, addr uint64) (Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Segment{}, fmt.Errorf("failed to read data segment: %w", err)
	}
	return Segment{Addr: addr, Data: data}, nil
}

// ParseSegmentSpec splits a "path@addr" data segment argument. The address
// defaults to DefaultDataBase.
func ParseSegmentSpec(spec string) (string, uint64, error) {
	path, addrText, found := strings.Cut(spec, "@")
	if !found {
		return spec, DefaultDataBase, nil
	}

	addr, err := strconv.ParseUint(addrText, 0, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad segment address %q", ErrFormat, addrText)
	}
	return path, addr, nil
}

// DefaultDataBase is the conventional base address of a data segment.
const DefaultDataBase = 0x1000
