package nnue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/hailam/millnnue/internal/memory"
	"github.com/hailam/millnnue/nnue/common"
	"github.com/hailam/millnnue/nnue/features"
	"github.com/hailam/millnnue/nnue/layers"
)

func testNetwork(t testing.TB, v features.Variant) *Network {
	t.Helper()
	net, err := Synthesize(DefaultSeed, LoadOptions{Variant: v})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	t.Cleanup(func() { net.Close() })
	return net
}

func saved(t *testing.T, net *Network, opts SaveOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := net.Save(&buf, opts); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return buf.Bytes()
}

// trackAllocations records every weight buffer handed out until the test ends.
func trackAllocations(t *testing.T) *[]*memory.Buffer {
	var bufs []*memory.Buffer
	prev := allocate
	allocate = func(size int, opts memory.Options) (*memory.Buffer, error) {
		b, err := prev(size, opts)
		if err == nil {
			bufs = append(bufs, b)
		}
		return b, err
	}
	t.Cleanup(func() { allocate = prev })
	return &bufs
}

func TestNetworkHash(t *testing.T) {
	v := features.NineMensMorris
	topo := DefaultTopology()

	want := v.HashValue() ^ uint32(2*topo.TransformedDimensions)
	want ^= layers.NewStack(2*topo.TransformedDimensions, topo.Hidden).HashValue()

	got, err := NetworkHash(v, topo)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("NetworkHash = %08x, want %08x", got, want)
	}
	if net := testNetwork(t, v); net.Hash() != got {
		t.Errorf("network hash %08x differs from NetworkHash %08x", net.Hash(), got)
	}

	other, _ := NetworkHash(features.TwelveMensMorris, topo)
	if other == got {
		t.Errorf("nine and twelve men's morris share a hash")
	}
	small := topo
	small.Hidden = []int{8, 32}
	if h, _ := NetworkHash(v, small); h == got {
		t.Errorf("different hidden widths share a hash")
	}
}

func TestTopologyValidate(t *testing.T) {
	if err := DefaultTopology().Validate(); err != nil {
		t.Errorf("default topology rejected: %v", err)
	}
	bad := []Topology{
		{TransformedDimensions: 0, PSQTBuckets: 8, LayerStacks: 8, Hidden: []int{16}},
		{TransformedDimensions: 512, PSQTBuckets: 8, LayerStacks: 4, Hidden: []int{16}},
		{TransformedDimensions: 512, PSQTBuckets: 8, LayerStacks: 8},
		{TransformedDimensions: 512, PSQTBuckets: 8, LayerStacks: 8, Hidden: []int{-1}},
		{TransformedDimensions: 1 << 20, PSQTBuckets: 8, LayerStacks: 8, Hidden: []int{16}},
	}
	for _, topo := range bad {
		if err := topo.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%v: got %v, want ErrInvalidConfig", topo, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	net := testNetwork(t, features.NineMensMorris)

	for name, opts := range map[string]SaveOptions{
		"raw":         {},
		"leb128":      {LEB128: true},
		"zstd":        {Zstd: true},
		"leb128+zstd": {LEB128: true, Zstd: true},
	} {
		t.Run(name, func(t *testing.T) {
			data := saved(t, net, opts)
			loaded, err := Load(bytes.NewReader(data), LoadOptions{Variant: features.NineMensMorris})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			defer loaded.Close()

			if loaded.Digest() != net.Digest() {
				t.Errorf("digest %016x, want %016x", loaded.Digest(), net.Digest())
			}
			if loaded.Description() != net.Description() {
				t.Errorf("description %q, want %q", loaded.Description(), net.Description())
			}
			t.Logf("%s: %d bytes", name, len(data))
		})
	}

	raw := saved(t, net, SaveOptions{})
	if leb := saved(t, net, SaveOptions{LEB128: true}); len(leb) >= len(raw) {
		t.Errorf("LEB128 file (%d bytes) not smaller than raw (%d bytes)", len(leb), len(raw))
	}
}

func TestHashRejectionAllocatesNothing(t *testing.T) {
	net := testNetwork(t, features.NineMensMorris)
	data := saved(t, net, SaveOptions{})
	bufs := trackAllocations(t)

	corrupt := bytes.Clone(data)
	corrupt[4] ^= 0xff
	if _, err := Load(bytes.NewReader(corrupt), LoadOptions{}); !errors.Is(err, ErrIncompatibleTopology) {
		t.Errorf("corrupt hash: got %v, want ErrIncompatibleTopology", err)
	}

	corrupt = bytes.Clone(data)
	corrupt[0] ^= 0x01
	if _, err := Load(bytes.NewReader(corrupt), LoadOptions{}); !errors.Is(err, ErrIncompatibleTopology) {
		t.Errorf("wrong version: got %v, want ErrIncompatibleTopology", err)
	}

	if _, err := Load(bytes.NewReader(data), LoadOptions{Variant: features.TwelveMensMorris}); !errors.Is(err, ErrIncompatibleTopology) {
		t.Errorf("wrong variant: got %v, want ErrIncompatibleTopology", err)
	}

	if len(*bufs) != 0 {
		t.Errorf("%d weight buffers allocated for rejected sources", len(*bufs))
	}
}

func TestTruncatedData(t *testing.T) {
	net := testNetwork(t, features.NineMensMorris)

	for _, leb := range []bool{false, true} {
		data := saved(t, net, SaveOptions{LEB128: leb})
		bufs := trackAllocations(t)

		for _, n := range []int{0, 2, 8, 10, 12 + len(net.Description()) + 2, len(data) / 3, len(data) / 2, len(data) - 1} {
			_, err := Load(bytes.NewReader(data[:n]), LoadOptions{})
			if !errors.Is(err, ErrTruncatedData) {
				t.Errorf("leb128=%v, %d of %d bytes: got %v, want ErrTruncatedData", leb, n, len(data), err)
			}
		}
		for i, b := range *bufs {
			if b.Bytes() != nil {
				t.Errorf("buffer %d not released after failed load", i)
			}
		}
	}
}

func TestTrailingData(t *testing.T) {
	net := testNetwork(t, features.NineMensMorris)
	data := append(saved(t, net, SaveOptions{}), 0)
	bufs := trackAllocations(t)

	if _, err := Load(bytes.NewReader(data), LoadOptions{}); !errors.Is(err, ErrIncompatibleTopology) {
		t.Errorf("trailing byte: got %v, want ErrIncompatibleTopology", err)
	}
	if len(*bufs) != 1 || (*bufs)[0].Bytes() != nil {
		t.Errorf("weight buffer not released after trailing data")
	}
}

func TestCorruptLEB128Count(t *testing.T) {
	net := testNetwork(t, features.NineMensMorris)
	data := saved(t, net, SaveOptions{LEB128: true})

	at := bytes.Index(data, []byte(common.Leb128Magic))
	if at < 0 {
		t.Fatal("no LEB128 section in the saved file")
	}
	binary.LittleEndian.PutUint32(data[at+len(common.Leb128Magic):], 0xFFFFFFF0)
	bufs := trackAllocations(t)

	if _, err := Load(bytes.NewReader(data), LoadOptions{}); !errors.Is(err, ErrIncompatibleTopology) {
		t.Errorf("oversized LEB128 count: got %v, want ErrIncompatibleTopology", err)
	}
	if len(*bufs) != 1 || (*bufs)[0].Bytes() != nil {
		t.Errorf("weight buffer not released after a corrupt section")
	}
}

func TestLoadLargePages(t *testing.T) {
	net := testNetwork(t, features.TwelveMensMorris)
	data := saved(t, net, SaveOptions{})

	loaded, err := Load(bytes.NewReader(data), LoadOptions{Variant: features.TwelveMensMorris, LargePages: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Logf("weights served by %v (%d bytes)", loaded.Strategy(), loaded.Size())

	if loaded.Digest() != net.Digest() {
		t.Errorf("digest mismatch after large page load")
	}
	if err := loaded.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := loaded.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSaveFileLoadFile(t *testing.T) {
	net := testNetwork(t, features.NineMensMorris)
	path := t.TempDir() + "/net.nnue"
	if err := net.SaveFile(path, SaveOptions{Zstd: true}); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFile(path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if loaded.Digest() != net.Digest() {
		t.Errorf("digest mismatch")
	}

	if _, err := LoadFile(path+".missing", LoadOptions{}); err == nil {
		t.Errorf("missing file loaded")
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	a := testNetwork(t, features.NineMensMorris)
	b := testNetwork(t, features.NineMensMorris)
	if a.Digest() != b.Digest() {
		t.Errorf("same seed produced different weights")
	}
	c, err := Synthesize(DefaultSeed+1, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Digest() == a.Digest() {
		t.Errorf("different seeds produced identical weights")
	}
}

func TestEmbeddedDefault(t *testing.T) {
	net, err := EmbeddedDefault(LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer net.Close()

	want, _ := NetworkHash(features.NineMensMorris, DefaultTopology())
	if net.Hash() != want {
		t.Errorf("embedded network hash %08x, want %08x", net.Hash(), want)
	}
}
