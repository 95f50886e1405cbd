// Package flatelf converts ELF executables into their flat in-memory
// representation: a single contiguous buffer holding exactly what a
// loader would place in memory before execution begins.
//
// The flat image can be wrapped in a small self-describing container, the
// FLATELF format, carrying the metadata needed to load and run it without
// consulting the original ELF structure:
//
//	["FLATELF1"][entry][base_vaddr][flatbin_size][flatbin]
package flatelf

// FlatImage is the flat memory representation of an ELF executable. The
// first byte of Data corresponds to the virtual address BaseVaddr; BSS
// regions and gaps between segments are zero-filled. A FlatImage is
// immutable once built.
type FlatImage struct {
	// Entry is the entry point of the flat binary.
	Entry uint64

	// BaseVaddr is the lowest virtual address among all LOAD segments.
	BaseVaddr uint64

	// Class is the word size of the source ELF. It decides the width of
	// the entry and base_vaddr fields in the FLATELF container.
	Class Class

	// Data is the flat memory image.
	Data []byte
}

// New parses data as an ELF executable and flattens its LOAD segments
// into a single contiguous image.
func New(data []byte, opts ...Option) (*FlatImage, error) {
	opt := defaultOptions()
	for _, o := range opts {
		o(&opt)
	}

	e, err := parseELF(data)
	if err != nil {
		return nil, err
	}

	buf, base, err := flatten(data, e.segments, opt.strictOverlap)
	if err != nil {
		return nil, err
	}

	return &FlatImage{
		Entry:     e.entry,
		BaseVaddr: base,
		Class:     e.class,
		Data:      buf,
	}, nil
}
