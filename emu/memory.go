package emu

import "encoding/binary"

// DefaultMemorySize is the default data memory size in bytes (1024 doublewords).
const DefaultMemorySize = 8 * 1024

// Memory is the byte-addressable, little-endian data memory. It is a separate
// address space from instruction memory. Accesses outside [0, Size) fault;
// alignment is not enforced.
type Memory struct {
	data []byte
}

// NewMemory creates a zeroed data memory of DefaultMemorySize bytes.
func NewMemory() *Memory {
	return NewMemoryWithSize(DefaultMemorySize)
}

// NewMemoryWithSize creates a zeroed data memory of the given size.
func NewMemoryWithSize(size uint64) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

func (m *Memory) check(addr, size uint64, write bool) error {
	if addr > m.Size() || size > m.Size()-addr {
		return &MemoryAccessFault{
			Addr:  addr,
			Size:  size,
			Space: SpaceData,
			Write: write,
		}
	}
	return nil
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint64) (byte, error) {
	if err := m.check(addr, 1, false); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint64, value byte) error {
	if err := m.check(addr, 1, true); err != nil {
		return err
	}
	m.data[addr] = value
	return nil
}

// Read64 reads a little-endian doubleword.
func (m *Memory) Read64(addr uint64) (uint64, error) {
	if err := m.check(addr, 8, false); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[addr:]), nil
}

// Write64 writes a little-endian doubleword.
func (m *Memory) Write64(addr uint64, value uint64) error {
	if err := m.check(addr, 8, true); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[addr:], value)
	return nil
}

// Load copies a data segment into memory at base.
func (m *Memory) Load(base uint64, data []byte) error {
	if err := m.check(base, uint64(len(data)), true); err != nil {
		return err
	}
	copy(m.data[base:], data)
	return nil
}

// Window returns a copy of n bytes starting at addr.
func (m *Memory) Window(addr, n uint64) ([]byte, error) {
	if err := m.check(addr, n, false); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[addr:addr+n])
	return out, nil
}

// Clear zeroes the whole memory.
func (m *Memory) Clear() {
	clear(m.data)
}
