package flatelf

import "encoding/binary"

// helpers for constructing synthetic ELF images in tests

type testSeg struct {
	vaddr uint64
	data  []byte
	memsz uint64 // 0 means len(data)
	typ   uint32 // 0 means PT_LOAD
}

// buildELF assembles a minimal ELF image: identification, header, program
// header table and the segment contents laid out back to back.
func buildELF(class Class, order binary.ByteOrder, entry uint64, segs []testSeg) []byte {
	ehSize, phentsize := elfHeaderSize64, progHeaderSize64
	if class == Class32 {
		ehSize, phentsize = elfHeaderSize32, progHeaderSize32
	}

	phoff := ehSize
	dataOff := phoff + phentsize*len(segs)

	buf := make([]byte, dataOff)
	copy(buf, elfMagic)
	buf[4] = byte(class)
	if order == binary.ByteOrder(binary.BigEndian) {
		buf[5] = 2
	} else {
		buf[5] = 1
	}
	buf[6] = 1

	order.PutUint16(buf[16:], 2) // e_type: ET_EXEC
	order.PutUint32(buf[20:], 1) // e_version
	if class == Class32 {
		order.PutUint16(buf[18:], 3) // e_machine: EM_386
		order.PutUint32(buf[24:], uint32(entry))
		order.PutUint32(buf[28:], uint32(phoff))
		order.PutUint16(buf[40:], uint16(ehSize))
		order.PutUint16(buf[42:], uint16(phentsize))
		order.PutUint16(buf[44:], uint16(len(segs)))
	} else {
		order.PutUint16(buf[18:], 0x3e) // e_machine: EM_X86_64
		order.PutUint64(buf[24:], entry)
		order.PutUint64(buf[32:], uint64(phoff))
		order.PutUint16(buf[52:], uint16(ehSize))
		order.PutUint16(buf[54:], uint16(phentsize))
		order.PutUint16(buf[56:], uint16(len(segs)))
	}

	off := uint64(dataOff)
	for i, s := range segs {
		typ := s.typ
		if typ == 0 {
			typ = ptLoad
		}
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint64(len(s.data))
		}

		p := buf[phoff+i*phentsize:]
		order.PutUint32(p, typ)
		if class == Class32 {
			order.PutUint32(p[4:], uint32(off))
			order.PutUint32(p[8:], uint32(s.vaddr))
			order.PutUint32(p[12:], uint32(s.vaddr))
			order.PutUint32(p[16:], uint32(len(s.data)))
			order.PutUint32(p[20:], uint32(memsz))
			order.PutUint32(p[24:], 5) // p_flags: R+X
			order.PutUint32(p[28:], 0x1000)
		} else {
			order.PutUint32(p[4:], 5) // p_flags: R+X
			order.PutUint64(p[8:], off)
			order.PutUint64(p[16:], s.vaddr)
			order.PutUint64(p[24:], s.vaddr)
			order.PutUint64(p[32:], uint64(len(s.data)))
			order.PutUint64(p[40:], memsz)
			order.PutUint64(p[48:], 0x1000)
		}

		buf = append(buf, s.data...)
		off += uint64(len(s.data))
	}

	return buf
}

func filled(n int, b byte) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = b
	}
	return res
}
