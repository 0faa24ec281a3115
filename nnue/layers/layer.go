// Package layers implements the quantized stages of a network layer stack.
package layers

import (
	"io"

	"github.com/hailam/millnnue/internal/memory"
)

// Tensor carries activations between layers. A layer reads the half its
// input type uses and writes the half its output type uses.
type Tensor struct {
	U8  []uint8
	I32 []int32
}

// Layer is one stage of the pipeline.
type Layer interface {
	InputDimensions() int
	OutputDimensions() int
	// HashValue chains this layer's shape into the hash of the layers before it.
	HashValue(prev uint32) uint32
	Forward(in, out *Tensor)
}

// Parametric is a layer with weights stored in the network blob.
type Parametric interface {
	Layer
	Reserve(a *memory.Arena)
	ReadParameters(r io.Reader) error
	WriteParameters(w io.Writer) error
	// Parameters returns the views for in-place initialization.
	Parameters() (biases []int32, weights []int8)
}
