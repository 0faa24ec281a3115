// Package memory provides the aligned and large-page backed buffers that hold
// network weights and accumulator slabs.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// CacheLineSize is the minimum alignment of every buffer handed out.
const CacheLineSize = 64

// LargePageSize is the huge page granularity requested from the OS.
const LargePageSize = 2 << 20

// ErrAllocationFailed is returned when no allocation strategy can satisfy a request.
var ErrAllocationFailed = errors.New("memory: allocation failed")

// Strategy identifies how a Buffer was obtained, and therefore how it is released.
type Strategy uint8

const (
	StrategyNone Strategy = iota
	StrategyAligned
	StrategyLargePages
)

func (s Strategy) String() string {
	switch s {
	case StrategyAligned:
		return "aligned"
	case StrategyLargePages:
		return "large-pages"
	default:
		return "none"
	}
}

// Options controls Allocate.
type Options struct {
	// LargePages requests huge-page backing. Allocate falls back to an
	// aligned heap allocation when the OS refuses.
	LargePages bool
}

// Buffer is an owning handle over a block of aligned memory. The release path
// is fixed when the buffer is acquired and runs at most once.
type Buffer struct {
	data     []byte
	strategy Strategy
	release  func() error
	freeze   func() error
	frozen   bool

	once sync.Once
	err  error
}

// Allocate returns a zeroed buffer of size bytes aligned to at least CacheLineSize.
func Allocate(size int, opts Options) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrAllocationFailed, size)
	}

	if opts.LargePages {
		data, release, freeze, err := allocLargePages(size)
		if err == nil {
			return &Buffer{
				data:     data,
				strategy: StrategyLargePages,
				release:  release,
				freeze:   freeze,
			}, nil
		}
		// fall through to the aligned heap
	}

	data, err := alignedAlloc(size)
	if err != nil {
		return nil, err
	}
	b := &Buffer{data: data, strategy: StrategyAligned}
	b.release = func() error {
		b.data = nil
		return nil
	}
	return b, nil
}

// AlignedAlloc returns a zeroed heap slice of size bytes whose first element
// sits on a cache line boundary. The memory is owned by the garbage collector.
func AlignedAlloc(size int) []byte {
	data, err := alignedAlloc(size)
	if err != nil {
		panic(err)
	}
	return data
}

func alignedAlloc(size int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: %v", ErrAllocationFailed, r)
		}
	}()

	raw := make([]byte, size+CacheLineSize)
	off := int(-uintptr(unsafe.Pointer(unsafe.SliceData(raw))) & (CacheLineSize - 1))
	return raw[off : off+size : off+size], nil
}

// Bytes returns the underlying memory. It is nil after Release.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the usable size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Strategy reports how the buffer was obtained.
func (b *Buffer) Strategy() Strategy { return b.strategy }

// Frozen reports whether Freeze has been called.
func (b *Buffer) Frozen() bool { return b.frozen }

// Freeze marks the buffer read-only. Large-page mappings are protected by the
// OS; heap buffers only record the state.
func (b *Buffer) Freeze() error {
	if b.frozen {
		return nil
	}
	if b.freeze != nil {
		if err := b.freeze(); err != nil {
			return fmt.Errorf("memory: freeze: %w", err)
		}
	}
	b.frozen = true
	return nil
}

// Release returns the memory through the strategy's own deallocator.
// Calling it more than once is a no-op that returns the first result.
func (b *Buffer) Release() error {
	b.once.Do(func() {
		if b.release != nil {
			b.err = b.release()
		}
		b.data = nil
	})
	return b.err
}
