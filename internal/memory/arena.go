package memory

import (
	"fmt"
	"unsafe"
)

// Arena carves typed, cache-line aligned views out of a byte slice. An arena
// created by Measure only counts the bytes a sequence of Carve calls needs,
// so the same reservation code sizes a buffer and then lays it out.
type Arena struct {
	buf       []byte
	off       int
	measuring bool
}

// NewArena lays views out over buf, which must be cache-line aligned.
func NewArena(buf []byte) *Arena {
	if len(buf) > 0 && uintptr(unsafe.Pointer(unsafe.SliceData(buf)))&(CacheLineSize-1) != 0 {
		panic("memory: arena buffer is not cache-line aligned")
	}
	return &Arena{buf: buf}
}

// Measure returns an arena that hands out nil views and only tracks size.
func Measure() *Arena {
	return &Arena{measuring: true}
}

// Size returns the number of bytes consumed so far, padding included.
func (a *Arena) Size() int { return a.off }

// Measuring reports whether the arena only counts bytes.
func (a *Arena) Measuring() bool { return a.measuring }

// Carve reserves n elements of T at the next cache-line boundary.
// T must not contain pointers.
func Carve[T any](a *Arena, n int) []T {
	var zero T
	start := (a.off + CacheLineSize - 1) &^ (CacheLineSize - 1)
	size := n * int(unsafe.Sizeof(zero))
	a.off = start + size

	if a.measuring {
		return nil
	}
	if a.off > len(a.buf) {
		panic(fmt.Sprintf("memory: arena overflow: need %d bytes, have %d", a.off, len(a.buf)))
	}
	if n == 0 {
		return []T{}
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&a.buf[start])), n)
}
