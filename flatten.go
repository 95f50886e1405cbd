package flatelf

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// flatten lays the LOAD segments out in a single contiguous buffer whose
// first byte corresponds to the lowest virtual address. BSS tails
// (memsz > filesz) and gaps between segments stay zero-filled: the flat
// format has no notion of holes, so unmapped-but-addressed regions are
// materialized as zero bytes.
//
// Segments are copied in ascending virtual address order. When two
// segments' ranges intersect, the higher segment overwrites the shared
// range (strict mode turns the intersection into ErrOverlappingSegments
// instead). Segments with equal virtual addresses keep file order, so the
// later one wins.
func flatten(data []byte, segs []segment, strict bool) ([]byte, uint64, error) {
	if len(segs) == 0 {
		return nil, 0, ErrNoLoadSegments
	}

	ordered := slices.Clone(segs)
	slices.SortStableFunc(ordered, func(a, b segment) int {
		switch {
		case a.vaddr < b.vaddr:
			return -1
		case a.vaddr > b.vaddr:
			return 1
		default:
			return 0
		}
	})

	base := ordered[0].vaddr
	var end uint64
	for i, s := range ordered {
		e, ok := s.end()
		if !ok {
			return nil, 0, fmt.Errorf("%w: segment %d memory range wraps around at %#x", ErrMalformedELF, i, s.vaddr)
		}
		if e > end {
			end = e
		}
	}

	size := end - base
	if size > math.MaxInt {
		return nil, 0, fmt.Errorf("%w: flat image of %d bytes is not addressable", ErrMalformedELF, size)
	}

	buf := make([]byte, size)
	var prevEnd uint64
	for i, s := range ordered {
		if strict && i > 0 && s.vaddr < prevEnd {
			return nil, 0, fmt.Errorf("%w: segment at %#x starts before %#x", ErrOverlappingSegments, s.vaddr, prevEnd)
		}
		if s.filesz > s.memsz {
			return nil, 0, fmt.Errorf("%w: segment at %#x has file size %d larger than memory size %d",
				ErrMalformedELF, s.vaddr, s.filesz, s.memsz)
		}
		copy(buf[s.vaddr-base:], data[s.off:s.off+s.filesz])
		if e, _ := s.end(); e > prevEnd {
			prevEnd = e
		}
	}

	return buf, base, nil
}
