package flatelf

// File format constants
const (
	// Size of the magic at the start of every FLATELF container
	magicLen = 8

	// Size of the flatbin_size field
	sizeFieldLen = 8

	// Default upper bound for the flatbin size Decode is willing to
	// allocate
	defaultMaxImageSize = 1 << 30
)

// Magic number for FLATELF containers
var magic = []byte("FLATELF1")

// headerLen returns the size of the fixed container header for images of
// the given class: magic, entry, base_vaddr and flatbin_size. The entry
// and base_vaddr fields are one machine word wide.
func headerLen(class Class) int {
	return magicLen + 2*class.WordSize() + sizeFieldLen
}
