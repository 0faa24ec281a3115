package nnue

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/hailam/millnnue/internal/memory"
	"github.com/hailam/millnnue/nnue/common"
	"github.com/hailam/millnnue/nnue/features"
	"github.com/hailam/millnnue/nnue/layers"
)

// maxDescriptionSize bounds the free-form description in a weight file.
const maxDescriptionSize = 1 << 16

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// allocate is swapped by tests to observe allocations.
var allocate = memory.Allocate

// LoadOptions selects the network a weight source must match and how its
// weights are stored.
type LoadOptions struct {
	Variant    features.Variant
	Topology   Topology
	LargePages bool
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.Variant.IsZero() {
		o.Variant = features.NineMensMorris
	}
	if o.Topology.IsZero() {
		o.Topology = DefaultTopology()
	}
	o.Topology = o.Topology.clone()
	return o
}

// SaveOptions controls the encoding written by Save.
type SaveOptions struct {
	// LEB128 compresses the feature transformer sections.
	LEB128 bool
	// Zstd wraps the whole file in a zstd frame.
	Zstd bool
}

// Network owns the weights of one variant and topology. It is immutable once
// loaded and safe for concurrent use by many Evaluators.
type Network struct {
	variant  features.Variant
	topology Topology

	ft     *FeatureTransformer
	stacks []*layers.Stack

	hash        uint32
	description string
	blob        *memory.Buffer
	digest      uint64
}

func newNetwork(opts LoadOptions) (*Network, error) {
	opts = opts.withDefaults()
	if err := opts.Topology.Validate(); err != nil {
		return nil, err
	}
	if opts.Variant.PiecesPerSide <= 0 || opts.Variant.Dimensions() > 128 {
		return nil, fmt.Errorf("%w: variant %q", ErrInvalidConfig, opts.Variant.Name)
	}

	n := &Network{
		variant:  opts.Variant,
		topology: opts.Topology,
		ft:       newFeatureTransformer(opts.Variant, opts.Topology),
	}
	for i := 0; i < opts.Topology.LayerStacks; i++ {
		n.stacks = append(n.stacks, layers.NewStack(2*opts.Topology.TransformedDimensions, opts.Topology.Hidden))
	}
	n.hash = n.ft.HashValue() ^ n.stacks[0].HashValue()
	return n, nil
}

func (n *Network) reserve(a *memory.Arena) {
	n.ft.reserve(a)
	for _, s := range n.stacks {
		s.Reserve(a)
	}
}

// allocateBlob acquires the weight buffer and lays the views out over it.
func (n *Network) allocateBlob(largePages bool) error {
	m := memory.Measure()
	n.reserve(m)

	blob, err := allocate(m.Size(), memory.Options{LargePages: largePages})
	if err != nil {
		return err
	}
	n.blob = blob
	n.reserve(memory.NewArena(blob.Bytes()))
	return nil
}

// seal freezes the blob and records its digest.
func (n *Network) seal() error {
	n.digest = xxhash.Sum64(n.blob.Bytes())
	return n.blob.Freeze()
}

// Load reads a weight file. Header and hash are validated before any weight
// storage is allocated; on failure nothing is retained.
func Load(r io.Reader, opts LoadOptions) (*Network, error) {
	n, err := newNetwork(opts)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("nnue: zstd: %w", err)
		}
		defer dec.Close()
		br = bufio.NewReader(dec)
	}

	desc, err := n.readHeader(br)
	if err != nil {
		return nil, classify(err)
	}
	n.description = desc

	if err := n.allocateBlob(opts.LargePages); err != nil {
		return nil, err
	}
	if err := n.readParameters(br); err != nil {
		n.blob.Release()
		return nil, classify(err)
	}
	if _, err := br.ReadByte(); err == nil {
		n.blob.Release()
		return nil, fmt.Errorf("%w: trailing data after parameters", ErrIncompatibleTopology)
	} else if err != io.EOF {
		n.blob.Release()
		return nil, err
	}
	if err := n.seal(); err != nil {
		n.blob.Release()
		return nil, err
	}
	return n, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts LoadOptions) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nnue: %w", err)
	}
	defer f.Close()

	n, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrTruncatedData, err)
	case errors.Is(err, common.ErrLEB128Corrupt):
		return fmt.Errorf("%w: %v", ErrIncompatibleTopology, err)
	}
	return err
}

func (n *Network) readHeader(r io.Reader) (string, error) {
	version, err := common.ReadLittleEndian[uint32](r)
	if err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	if version != Version {
		return "", fmt.Errorf("%w: version %08x, want %08x", ErrIncompatibleTopology, version, Version)
	}

	hash, err := common.ReadLittleEndian[uint32](r)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	if hash != n.hash {
		return "", fmt.Errorf("%w: hash %08x, want %08x", ErrIncompatibleTopology, hash, n.hash)
	}

	size, err := common.ReadLittleEndian[uint32](r)
	if err != nil {
		return "", fmt.Errorf("description size: %w", err)
	}
	if size > maxDescriptionSize {
		return "", fmt.Errorf("%w: description of %d bytes", ErrIncompatibleTopology, size)
	}
	desc := make([]byte, size)
	if _, err := io.ReadFull(r, desc); err != nil {
		return "", fmt.Errorf("description: %w", err)
	}
	return string(desc), nil
}

func (n *Network) readParameters(r *bufio.Reader) error {
	ftHash, err := common.ReadLittleEndian[uint32](r)
	if err != nil {
		return fmt.Errorf("transformer hash: %w", err)
	}
	if want := n.ft.HashValue(); ftHash != want {
		return fmt.Errorf("%w: transformer hash %08x, want %08x", ErrIncompatibleTopology, ftHash, want)
	}
	if err := n.ft.readParameters(r); err != nil {
		return fmt.Errorf("transformer: %w", err)
	}

	for i, s := range n.stacks {
		stackHash, err := common.ReadLittleEndian[uint32](r)
		if err != nil {
			return fmt.Errorf("stack %d hash: %w", i, err)
		}
		if want := s.HashValue(); stackHash != want {
			return fmt.Errorf("%w: stack %d hash %08x, want %08x", ErrIncompatibleTopology, i, stackHash, want)
		}
		if err := s.ReadParameters(r); err != nil {
			return fmt.Errorf("stack %d: %w", i, err)
		}
	}
	return nil
}

// Save writes the network in the format Load reads.
func (n *Network) Save(w io.Writer, opts SaveOptions) error {
	var enc *zstd.Encoder
	if opts.Zstd {
		var err error
		enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return fmt.Errorf("nnue: zstd: %w", err)
		}
		w = enc
	}

	bw := bufio.NewWriter(w)
	if err := n.writeTo(bw, opts.LEB128); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

func (n *Network) writeTo(w io.Writer, leb128 bool) error {
	for _, v := range []uint32{Version, n.hash, uint32(len(n.description))} {
		if err := common.WriteLittleEndian(w, v); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, n.description); err != nil {
		return err
	}

	if err := common.WriteLittleEndian(w, n.ft.HashValue()); err != nil {
		return err
	}
	if err := n.ft.writeParameters(w, leb128); err != nil {
		return fmt.Errorf("transformer: %w", err)
	}
	for i, s := range n.stacks {
		if err := common.WriteLittleEndian(w, s.HashValue()); err != nil {
			return err
		}
		if err := s.WriteParameters(w); err != nil {
			return fmt.Errorf("stack %d: %w", i, err)
		}
	}
	return nil
}

// SaveFile writes the network to path.
func (n *Network) SaveFile(path string, opts SaveOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := n.Save(f, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Close releases the weights through the allocator that produced them.
// The network must not be used afterwards.
func (n *Network) Close() error {
	if n.blob == nil {
		return nil
	}
	return n.blob.Release()
}

// Hash is the compatibility hash of the network's shape.
func (n *Network) Hash() uint32 { return n.hash }

// Digest is the xxhash64 of the weight blob.
func (n *Network) Digest() uint64 { return n.digest }

func (n *Network) Description() string { return n.description }
func (n *Network) Variant() features.Variant { return n.variant }
func (n *Network) Topology() Topology { return n.topology.clone() }
func (n *Network) Size() int { return n.blob.Len() }
func (n *Network) Strategy() memory.Strategy { return n.blob.Strategy() }
func (n *Network) Transformer() *FeatureTransformer { return n.ft }

// evaluate runs the bucket's stack over a computed accumulator and returns
// the PSQT and positional terms, both from the mover's view.
func (n *Network) evaluate(acc *Accumulator, stm features.Color, bucket int, transformed []uint8, scratch *layers.Scratch) (psqt, positional int32) {
	psqt = n.ft.transform(acc, stm, bucket, transformed)
	positional = n.stacks[bucket].Propagate(transformed, scratch)
	return psqt, positional
}
