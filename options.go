// options.go
package flatelf

// Option configures the conversion pipeline and the FLATELF codec.
type Option func(*options)

// Options for controlling conversion and decoding behavior
type options struct {
	strictOverlap bool   // Fail on intersecting LOAD segments
	maxImageSize  uint64 // Largest flatbin size Decode will allocate
}

func defaultOptions() options {
	return options{maxImageSize: defaultMaxImageSize}
}

// WithStrictOverlap makes New fail with ErrOverlappingSegments when two
// LOAD segments' virtual ranges intersect. By default the segment with
// the higher virtual address wins the shared range.
func WithStrictOverlap() Option {
	return func(o *options) {
		o.strictOverlap = true
	}
}

// WithMaxImageSize bounds the flat image size Decode is willing to
// allocate, protecting against attacker-controlled size fields.
func WithMaxImageSize(n uint64) Option {
	return func(o *options) {
		o.maxImageSize = n
	}
}
