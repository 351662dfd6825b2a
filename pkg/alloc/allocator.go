package alloc

// Allocator hands out single allocation units.
type Allocator interface {
	Alloc() (uint32, bool)
	Free(uint32)
}

var (
	_ Allocator = (*Flushable)(nil)
	_ Allocator = HintAllocator{}
)

// HintAllocator allocates from a preferred region of the medium first, e.g.
// the descriptor area at the start of a floppy.
type HintAllocator struct {
	*Flushable
	Hint uint32
}

func (ha HintAllocator) Alloc() (uint32, bool) {
	return ha.Flushable.AllocFrom(ha.Hint)
}
