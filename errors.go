package flatelf

import "errors"

// Error kinds returned by the conversion pipeline and the FLATELF codec.
// Failures carry extra detail and wrap one of these sentinels, so callers
// can classify them with errors.Is.
var (
	// ErrMalformedELF is returned when the input is structurally not an
	// ELF file, or when a declared header or segment range would read
	// past the end of the input buffer.
	ErrMalformedELF = errors.New("malformed ELF")

	// ErrNoLoadSegments is returned when the ELF contains no loadable
	// segments, leaving nothing to flatten.
	ErrNoLoadSegments = errors.New("no LOAD segments")

	// ErrOverlappingSegments is returned in strict mode when two LOAD
	// segments' virtual ranges intersect.
	ErrOverlappingSegments = errors.New("overlapping LOAD segments")

	// ErrBadMagic is returned when a decoded buffer does not start with
	// the FLATELF magic.
	ErrBadMagic = errors.New("bad FLATELF magic")

	// ErrTruncated is returned when a decoded buffer is shorter than the
	// fixed container header.
	ErrTruncated = errors.New("truncated FLATELF")

	// ErrSizeMismatch is returned when the flatbin_size field disagrees
	// with the number of bytes actually present, or exceeds the
	// configured maximum.
	ErrSizeMismatch = errors.New("FLATELF size mismatch")
)
