package flatelf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseELF64LittleEndian(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0x401000, []testSeg{
		{vaddr: 0x400000, data: []byte{1, 2, 3, 4}},
		{vaddr: 0x600000, data: []byte{5, 6}, memsz: 0x10},
	})

	e, err := parseELF(data)
	require.NoError(t, err)
	require.Equal(t, Class64, e.class)
	require.Equal(t, binary.ByteOrder(binary.LittleEndian), e.order)
	require.Equal(t, uint64(0x401000), e.entry)
	require.Len(t, e.segments, 2)

	require.Equal(t, uint64(0x400000), e.segments[0].vaddr)
	require.Equal(t, uint64(4), e.segments[0].filesz)
	require.Equal(t, uint64(4), e.segments[0].memsz)

	require.Equal(t, uint64(0x600000), e.segments[1].vaddr)
	require.Equal(t, uint64(2), e.segments[1].filesz)
	require.Equal(t, uint64(0x10), e.segments[1].memsz)
}

func TestParseELF32BigEndian(t *testing.T) {
	data := buildELF(Class32, binary.BigEndian, 0x8048000, []testSeg{
		{vaddr: 0x8048000, data: []byte{0xde, 0xad, 0xbe, 0xef}},
	})

	e, err := parseELF(data)
	require.NoError(t, err)
	require.Equal(t, Class32, e.class)
	require.Equal(t, binary.ByteOrder(binary.BigEndian), e.order)
	require.Equal(t, uint64(0x8048000), e.entry)
	require.Len(t, e.segments, 1)
}

func TestParseSkipsNonLoadSegments(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0x1000, []testSeg{
		{vaddr: 0x0, data: []byte{9, 9}, typ: 4}, // PT_NOTE
		{vaddr: 0x1000, data: []byte{1}},
	})

	e, err := parseELF(data)
	require.NoError(t, err)
	require.Len(t, e.segments, 1)
	require.Equal(t, uint64(0x1000), e.segments[0].vaddr)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, err := parseELF([]byte{0x7f, 'E', 'L'})
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, nil)
	data[0] = 'M'
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsUnknownClass(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, nil)
	data[4] = 3
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsUnknownEncoding(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, nil)
	data[5] = 3
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsBadVersion(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, nil)
	data[6] = 2
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)

	data = buildELF(Class64, binary.LittleEndian, 0, nil)
	binary.LittleEndian.PutUint32(data[20:], 7) // e_version
	_, err = parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsPhdrTablePastEOF(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, []testSeg{
		{vaddr: 0x1000, data: []byte{1, 2, 3}},
	})
	binary.LittleEndian.PutUint16(data[56:], 100) // e_phnum
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsSegmentPastEOF(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, []testSeg{
		{vaddr: 0x1000, data: []byte{1, 2, 3}},
	})
	// first phdr's p_filesz
	binary.LittleEndian.PutUint64(data[elfHeaderSize64+32:], 1<<20)
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseRejectsPhdrOffsetOverflow(t *testing.T) {
	data := buildELF(Class64, binary.LittleEndian, 0, []testSeg{
		{vaddr: 0x1000, data: []byte{1}},
	})
	binary.LittleEndian.PutUint64(data[32:], ^uint64(7)) // e_phoff
	_, err := parseELF(data)
	require.ErrorIs(t, err, ErrMalformedELF)
}

func TestParseAcceptsGarbageInBounds(t *testing.T) {
	// Nonsense flags and alignment are not validated, only bounds are.
	data := buildELF(Class64, binary.LittleEndian, 0xffff, []testSeg{
		{vaddr: 0x1000, data: []byte{1, 2, 3}},
	})
	binary.LittleEndian.PutUint32(data[elfHeaderSize64+4:], 0xffffffff) // p_flags
	binary.LittleEndian.PutUint64(data[elfHeaderSize64+48:], 3)        // p_align

	_, err := parseELF(data)
	require.NoError(t, err)
}
