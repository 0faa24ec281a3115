package nnue

import (
	"fmt"
	"slices"

	"github.com/hailam/millnnue/nnue/common"
	"github.com/hailam/millnnue/nnue/features"
	"github.com/hailam/millnnue/nnue/layers"
)

// Version of the weight file format.
const Version uint32 = 0x7AF32F20

// Topology is the shape of a network.
type Topology struct {
	TransformedDimensions int
	PSQTBuckets           int
	LayerStacks           int
	// Hidden lists the widths of the hidden affine layers.
	Hidden []int
}

// DefaultTopology returns the standard 512x2-16-32-1 shape with 8 buckets.
func DefaultTopology() Topology {
	return Topology{
		TransformedDimensions: 512,
		PSQTBuckets:           8,
		LayerStacks:           8,
		Hidden:                []int{16, 32},
	}
}

// IsZero reports whether t is the zero value.
func (t Topology) IsZero() bool {
	return t.TransformedDimensions == 0 && t.PSQTBuckets == 0 && t.LayerStacks == 0 && len(t.Hidden) == 0
}

// Validate checks that t describes a buildable network whose affine sums
// cannot overflow int32.
func (t Topology) Validate() error {
	if t.TransformedDimensions <= 0 || t.PSQTBuckets <= 0 || t.LayerStacks <= 0 {
		return fmt.Errorf("%w: topology %v", ErrInvalidConfig, t)
	}
	if t.LayerStacks != t.PSQTBuckets {
		return fmt.Errorf("%w: %d layer stacks for %d buckets", ErrInvalidConfig, t.LayerStacks, t.PSQTBuckets)
	}
	if len(t.Hidden) == 0 {
		return fmt.Errorf("%w: no hidden layers", ErrInvalidConfig)
	}
	for _, h := range t.Hidden {
		if h <= 0 {
			return fmt.Errorf("%w: hidden width %d", ErrInvalidConfig, h)
		}
	}
	if int64(2*t.TransformedDimensions)*127*128 >= 1<<31 {
		return fmt.Errorf("%w: %d transformed dimensions overflow int32 sums", ErrInvalidConfig, t.TransformedDimensions)
	}
	return nil
}

func (t Topology) String() string {
	return fmt.Sprintf("%dx2-%v-1 buckets=%d stacks=%d",
		t.TransformedDimensions, t.Hidden, t.PSQTBuckets, t.LayerStacks)
}

func (t Topology) clone() Topology {
	t.Hidden = slices.Clone(t.Hidden)
	return t
}

// SelectBucket maps a piece count onto [0, buckets).
func SelectBucket(v features.Variant, buckets, pieceCount int) int {
	return common.Clamp((pieceCount-1)*buckets/(2*v.PiecesPerSide), 0, buckets-1)
}

// NetworkHash returns the compatibility hash of v and t without allocating
// any weights.
func NetworkHash(v features.Variant, t Topology) (uint32, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	ft := newFeatureTransformer(v, t)
	stack := layers.NewStack(2*t.TransformedDimensions, t.Hidden)
	return ft.HashValue() ^ stack.HashValue(), nil
}
