//go:build linux

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocLargePages maps one large page more than needed and hands out the
// large-page aligned window inside it, so transparent huge pages can back
// every page of the buffer. The whole mapping is released together.
func allocLargePages(size int) (data []byte, release, freeze func() error, err error) {
	rounded := (size + LargePageSize - 1) / LargePageSize * LargePageSize

	mem, err := unix.Mmap(-1, 0, rounded+LargePageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: mmap: %v", ErrAllocationFailed, err)
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	off := int((LargePageSize - base%LargePageSize) % LargePageSize)
	window := mem[off : off+rounded : off+rounded]

	if err := unix.Madvise(window, unix.MADV_HUGEPAGE); err != nil {
		unix.Munmap(mem)
		return nil, nil, nil, fmt.Errorf("%w: madvise: %v", ErrAllocationFailed, err)
	}

	release = func() error { return unix.Munmap(mem) }
	freeze = func() error { return unix.Mprotect(window, unix.PROT_READ) }
	return window[:size:size], release, freeze, nil
}
