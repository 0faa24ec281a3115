package memory

import (
	"errors"
	"testing"
	"unsafe"
)

func aligned(b []byte) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%CacheLineSize == 0
}

func TestAllocateAligned(t *testing.T) {
	for _, size := range []int{1, 63, 64, 65, 4096, 100003} {
		buf, err := Allocate(size, Options{})
		if err != nil {
			t.Fatalf("Allocate(%d): %v", size, err)
		}
		if buf.Len() != size {
			t.Errorf("Allocate(%d) len = %d", size, buf.Len())
		}
		if !aligned(buf.Bytes()) {
			t.Errorf("Allocate(%d) is not cache-line aligned", size)
		}
		if buf.Strategy() != StrategyAligned {
			t.Errorf("Allocate(%d) strategy = %v, want aligned", size, buf.Strategy())
		}
		if err := buf.Release(); err != nil {
			t.Errorf("Release: %v", err)
		}
	}
}

func TestAllocateInvalidSize(t *testing.T) {
	if _, err := Allocate(0, Options{}); !errors.Is(err, ErrAllocationFailed) {
		t.Errorf("Allocate(0) error = %v, want ErrAllocationFailed", err)
	}
}

func TestLargePagesFallback(t *testing.T) {
	buf, err := Allocate(3<<20, Options{LargePages: true})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	t.Logf("large page request served by %v", buf.Strategy())
	if buf.Strategy() == StrategyLargePages {
		if addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf.Bytes()))); addr%LargePageSize != 0 {
			t.Errorf("large page buffer at %#x is not aligned to %d", addr, LargePageSize)
		}
	}

	if !aligned(buf.Bytes()) {
		t.Errorf("buffer is not cache-line aligned")
	}
	data := buf.Bytes()
	data[0], data[len(data)-1] = 1, 2

	if err := buf.Freeze(); err != nil {
		t.Errorf("Freeze: %v", err)
	}
	if !buf.Frozen() {
		t.Errorf("Frozen() = false after Freeze")
	}
	if data[0] != 1 || data[len(data)-1] != 2 {
		t.Errorf("contents changed across Freeze")
	}
	if err := buf.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}

func TestReleaseOnce(t *testing.T) {
	calls := 0
	buf, err := Allocate(128, Options{})
	if err != nil {
		t.Fatal(err)
	}
	inner := buf.release
	buf.release = func() error {
		calls++
		return inner()
	}

	buf.Release()
	buf.Release()
	buf.Release()

	if calls != 1 {
		t.Errorf("release ran %d times, want 1", calls)
	}
	if buf.Bytes() != nil {
		t.Errorf("Bytes() not nil after Release")
	}
}

func TestArenaMeasureMatchesLayout(t *testing.T) {
	reserve := func(a *Arena) ([]int16, []int32, []int8) {
		return Carve[int16](a, 100), Carve[int32](a, 7), Carve[int8](a, 33)
	}

	m := Measure()
	reserve(m)
	if m.Size() == 0 {
		t.Fatal("measure arena reported zero size")
	}

	buf := AlignedAlloc(m.Size())
	a := NewArena(buf)
	i16, i32, i8 := reserve(a)

	if a.Size() != m.Size() {
		t.Errorf("layout size %d != measured size %d", a.Size(), m.Size())
	}
	if len(i16) != 100 || len(i32) != 7 || len(i8) != 33 {
		t.Errorf("unexpected view lengths %d %d %d", len(i16), len(i32), len(i8))
	}
	for _, p := range []unsafe.Pointer{unsafe.Pointer(&i16[0]), unsafe.Pointer(&i32[0]), unsafe.Pointer(&i8[0])} {
		if uintptr(p)%CacheLineSize != 0 {
			t.Errorf("view at %p is not cache-line aligned", p)
		}
	}

	i16[99] = -5
	i32[0] = 1 << 30
	i8[32] = -128
	if i16[99] != -5 || i32[0] != 1<<30 || i8[32] != -128 {
		t.Errorf("views overlap")
	}
}

func TestArenaOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on overflow")
		}
	}()
	a := NewArena(AlignedAlloc(64))
	Carve[int32](a, 17)
}
