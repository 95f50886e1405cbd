package flatelf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Class is the word size of an ELF file. It is carried through the whole
// pipeline so that 32-bit images keep 4-byte entry and base_vaddr fields
// on the wire.
type Class uint8

const (
	// Class32 marks a 32-bit ELF.
	Class32 Class = 1
	// Class64 marks a 64-bit ELF.
	Class64 Class = 2
)

// WordSize returns the machine word size in bytes.
func (c Class) WordSize() int {
	if c == Class32 {
		return 4
	}
	return 8
}

func (c Class) String() string {
	if c == Class32 {
		return "ELF32"
	}
	return "ELF64"
}

// ELF structure constants. Only the fields needed to build a flat binary
// are parsed.
const (
	elfIdentSize = 0x10

	elfHeaderSize32 = 52
	elfHeaderSize64 = 64

	progHeaderSize32 = 32
	progHeaderSize64 = 56

	ptLoad uint32 = 1
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// segment is a loadable program header entry: a read-only view into the
// source buffer plus its memory placement.
type segment struct {
	off    uint64
	vaddr  uint64
	filesz uint64
	memsz  uint64
}

func (s segment) end() (uint64, bool) {
	return addU64(s.vaddr, s.memsz)
}

// elfFile is the parsed view of an ELF executable: word size, byte order,
// entry point and the LOAD segments in file order.
type elfFile struct {
	class    Class
	order    binary.ByteOrder
	entry    uint64
	segments []segment
}

// parseELF reads the ELF header and program header table from data. It
// validates the identification fields and bounds of every declared range,
// but not segment contents: malformed-but-in-bounds input is accepted
// as-is.
func parseELF(data []byte) (*elfFile, error) {
	if len(data) < elfIdentSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for the ELF identification", ErrMalformedELF, len(data))
	}
	if !bytes.Equal(data[:4], elfMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedELF)
	}

	var class Class
	switch data[4] {
	case 1:
		class = Class32
	case 2:
		class = Class64
	default:
		return nil, fmt.Errorf("%w: unknown class %#x", ErrMalformedELF, data[4])
	}

	var order binary.ByteOrder
	switch data[5] {
	case 1:
		order = binary.LittleEndian
	case 2:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: unknown data encoding %#x", ErrMalformedELF, data[5])
	}

	if data[6] != 1 {
		return nil, fmt.Errorf("%w: unsupported ELF version %d", ErrMalformedELF, data[6])
	}

	res := &elfFile{class: class, order: order}

	var phoff uint64
	var phentsize, phnum uint16
	switch class {
	case Class32:
		if len(data) < elfHeaderSize32 {
			return nil, fmt.Errorf("%w: %d bytes is too short for an ELF32 header", ErrMalformedELF, len(data))
		}
		if v := order.Uint32(data[20:]); v != 1 {
			return nil, fmt.Errorf("%w: unsupported ELF version %d", ErrMalformedELF, v)
		}
		res.entry = uint64(order.Uint32(data[24:]))
		phoff = uint64(order.Uint32(data[28:]))
		phentsize = order.Uint16(data[42:])
		phnum = order.Uint16(data[44:])
	case Class64:
		if len(data) < elfHeaderSize64 {
			return nil, fmt.Errorf("%w: %d bytes is too short for an ELF64 header", ErrMalformedELF, len(data))
		}
		if v := order.Uint32(data[20:]); v != 1 {
			return nil, fmt.Errorf("%w: unsupported ELF version %d", ErrMalformedELF, v)
		}
		res.entry = order.Uint64(data[24:])
		phoff = order.Uint64(data[32:])
		phentsize = order.Uint16(data[54:])
		phnum = order.Uint16(data[56:])
	}

	phdrSize := uint64(progHeaderSize64)
	if class == Class32 {
		phdrSize = progHeaderSize32
	}

	for i := uint64(0); i < uint64(phnum); i++ {
		off, ok := addU64(phoff, i*uint64(phentsize))
		if !ok {
			return nil, fmt.Errorf("%w: program header %d offset overflows", ErrMalformedELF, i)
		}
		end, ok := addU64(off, phdrSize)
		if !ok || end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: program header %d extends past the end of the file", ErrMalformedELF, i)
		}

		p := data[off:]
		if order.Uint32(p) != ptLoad {
			continue
		}

		var s segment
		if class == Class32 {
			s = segment{
				off:    uint64(order.Uint32(p[4:])),
				vaddr:  uint64(order.Uint32(p[8:])),
				filesz: uint64(order.Uint32(p[16:])),
				memsz:  uint64(order.Uint32(p[20:])),
			}
		} else {
			s = segment{
				off:    order.Uint64(p[8:]),
				vaddr:  order.Uint64(p[16:]),
				filesz: order.Uint64(p[32:]),
				memsz:  order.Uint64(p[40:]),
			}
		}

		fileEnd, ok := addU64(s.off, s.filesz)
		if !ok || fileEnd > uint64(len(data)) {
			return nil, fmt.Errorf("%w: segment %d file range [%#x, %#x) extends past the end of the file",
				ErrMalformedELF, i, s.off, fileEnd)
		}

		res.segments = append(res.segments, s)
	}

	return res, nil
}

func addU64(a, b uint64) (uint64, bool) {
	s := a + b
	return s, s >= a
}
