// Package astarena generalizes the teacher's internal/arena wrapper (itself a
// thin layer over Go's experimental arena package) into a stable-index arena
// suitable for every host toolchain, not just ones built with
// goexperiment.arenas. The design notes in spec §9 call this out directly:
// "Implementations using arenas with stable indices are a natural fit;
// references into the arena are weak relations, the arena owns the nodes."
//
// No other package in this module imports astarena: astmodel.Expr trees are
// ordinary garbage-collected values (see the Arena doc below), and the
// package stands on its own with its own tests.
package astarena

import "unsafe"

const defaultSlabSize = 64 << 10 // 64 KiB per slab, mirrors typical cell size

// slab is one fixed-size backing buffer. Values are packed into it by
// unsafe.Pointer arithmetic; slabs are never resized, only appended to the
// Arena's slab list, so existing NodeRef values stay valid for the lifetime
// of the Arena.
type slab struct {
	buf []byte
	off int
}

// NodeRef is a stable, arena-relative handle: (slab index, byte offset). It
// remains valid until the owning Arena's Free is called, at which point every
// NodeRef derived from it becomes invalid — the same contract the teacher's
// internal/arena documents for *T pointers returned by NewValue.
type NodeRef struct {
	slabIdx int
	offset  int
}

// Arena is a thin, not-thread-safe bump allocator: no locking is done here,
// so a caller sharing one Arena across goroutines serializes access itself.
//
// T must be pointer-free (primitives, arrays/structs of primitives). The
// backing storage is a plain []byte slab, which the garbage collector does
// not scan for pointers; allocating a T that itself holds live pointers
// would let the GC collect their targets out from under the arena. Node
// trees (astmodel.Expr, which are pointer-heavy) are therefore kept as
// ordinary garbage-collected values and never placed in an Arena — this
// package is limited to pointer-free data such as primitive payloads and
// scratch buffers.
type Arena struct {
	slabs []*slab
}

// New constructs an empty arena ready for allocations.
func New() *Arena {
	return &Arena{slabs: []*slab{newSlab(defaultSlabSize)}}
}

func newSlab(size int) *slab {
	return &slab{buf: make([]byte, size)}
}

// Free releases all memory allocated in the arena. After the call, any
// NodeRef previously returned becomes invalid.
func (a *Arena) Free() {
	a.slabs = nil
}

// NewValue allocates a zero-initialized T inside the arena and returns a
// pointer to it plus the stable NodeRef that can later be used to recover
// that pointer via Deref, even after the Arena's backing slices have been
// reallocated by append elsewhere.
func NewValue[T any](a *Arena) (*T, NodeRef) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		size = 1
	}
	align := int(unsafe.Alignof(zero))

	s := a.current()
	aligned := alignUp(s.off, align)
	if aligned+size > len(s.buf) {
		newSize := defaultSlabSize
		if size > newSize {
			newSize = size
		}
		s = newSlab(newSize)
		a.slabs = append(a.slabs, s)
		aligned = 0
	}

	ptr := (*T)(unsafe.Pointer(&s.buf[aligned]))
	*ptr = zero
	s.off = aligned + size

	return ptr, NodeRef{slabIdx: len(a.slabs) - 1, offset: aligned}
}

// Deref recovers the *T previously returned alongside ref by NewValue[T]. The
// caller is responsible for using the same T the ref was allocated with;
// there is no runtime type tag, matching the teacher's unsafe-pointer
// discipline in pkg/cache.go's entry.vptr field.
func Deref[T any](a *Arena, ref NodeRef) *T {
	s := a.slabs[ref.slabIdx]
	return (*T)(unsafe.Pointer(&s.buf[ref.offset]))
}

// MakeSlice allocates a slice of length==cap==n inside the arena.
func MakeSlice[T any](a *Arena, n int) []T {
	if n == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero)) * n
	align := int(unsafe.Alignof(zero))

	s := a.current()
	aligned := alignUp(s.off, align)
	if aligned+size > len(s.buf) {
		newSize := defaultSlabSize
		if size > newSize {
			newSize = size
		}
		s = newSlab(newSize)
		a.slabs = append(a.slabs, s)
		aligned = 0
	}
	s.off = aligned + size
	return unsafe.Slice((*T)(unsafe.Pointer(&s.buf[aligned])), n)
}

// AllocBytes copies buf into the arena and returns a reference to the new
// memory, independent of buf's original backing array.
func AllocBytes(a *Arena, buf []byte) []byte {
	dst := MakeSlice[byte](a, len(buf))
	copy(dst, buf)
	return dst
}

func (a *Arena) current() *slab { return a.slabs[len(a.slabs)-1] }

func alignUp(x, align int) int {
	if align <= 1 {
		return x
	}
	return (x + align - 1) &^ (align - 1)
}
