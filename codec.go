package flatelf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode serializes the image into the FLATELF container format:
//
//	["FLATELF1"][entry][base_vaddr][flatbin_size][flatbin]
//
// entry and base_vaddr are one machine word wide and flatbin_size is
// always 8 bytes; all fields are little-endian regardless of the byte
// order of the source ELF.
func (f *FlatImage) Encode() []byte {
	out := make([]byte, 0, headerLen(f.Class)+len(f.Data))
	out = append(out, magic...)
	out = appendWord(out, f.Class, f.Entry)
	out = appendWord(out, f.Class, f.BaseVaddr)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(f.Data)))
	out = append(out, f.Data...)
	return out
}

// Decode parses a FLATELF container produced for the given class. The
// container does not self-describe its word size, so the caller states
// which width it expects. The flatbin_size field must match the bytes
// actually present and is checked against the configured maximum before
// the image is allocated.
func Decode(data []byte, class Class, opts ...Option) (*FlatImage, error) {
	opt := defaultOptions()
	for _, o := range opts {
		o(&opt)
	}

	if len(data) < magicLen {
		return nil, fmt.Errorf("%w: %d bytes is too short for the magic", ErrTruncated, len(data))
	}
	if !bytes.Equal(data[:magicLen], magic) {
		return nil, ErrBadMagic
	}

	hdrLen := headerLen(class)
	if len(data) < hdrLen {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, hdrLen, len(data))
	}

	w := class.WordSize()
	entry := readWord(data[magicLen:], class)
	base := readWord(data[magicLen+w:], class)
	size := binary.LittleEndian.Uint64(data[magicLen+2*w:])

	if size > opt.maxImageSize {
		return nil, fmt.Errorf("%w: flatbin size %d exceeds maximum %d", ErrSizeMismatch, size, opt.maxImageSize)
	}
	if rest := uint64(len(data) - hdrLen); size != rest {
		return nil, fmt.Errorf("%w: header declares %d bytes, buffer holds %d", ErrSizeMismatch, size, rest)
	}

	return &FlatImage{
		Entry:     entry,
		BaseVaddr: base,
		Class:     class,
		Data:      append([]byte(nil), data[hdrLen:]...),
	}, nil
}

// Info is the metadata carried by a FLATELF container header.
type Info struct {
	Entry       uint64
	BaseVaddr   uint64
	FlatbinSize uint64
	Class       Class
}

// ReadInfo reads just the container header from r, without loading the
// image body.
func ReadInfo(r io.ReaderAt, class Class) (Info, error) {
	hdr := make([]byte, headerLen(class))
	if _, err := r.ReadAt(hdr, 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Info{}, fmt.Errorf("%w: header needs %d bytes", ErrTruncated, len(hdr))
		}
		return Info{}, err
	}
	if !bytes.Equal(hdr[:magicLen], magic) {
		return Info{}, ErrBadMagic
	}
	w := class.WordSize()
	return Info{
		Entry:       readWord(hdr[magicLen:], class),
		BaseVaddr:   readWord(hdr[magicLen+w:], class),
		FlatbinSize: binary.LittleEndian.Uint64(hdr[magicLen+2*w:]),
		Class:       class,
	}, nil
}

func appendWord(b []byte, class Class, v uint64) []byte {
	if class == Class32 {
		return binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return binary.LittleEndian.AppendUint64(b, v)
}

func readWord(b []byte, class Class) uint64 {
	if class == Class32 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}
