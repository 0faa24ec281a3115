package layers

import (
	"fmt"
	"io"

	"github.com/hailam/millnnue/internal/memory"
	"github.com/hailam/millnnue/nnue/common"
)

// AffineTransformHashValue chains an affine layer of outDims outputs.
func AffineTransformHashValue(prev uint32, outDims int) uint32 {
	h := uint32(0xCC03DAE4)
	h += uint32(outDims)
	h ^= prev >> 1
	h ^= prev << 31
	return h
}

// AffineTransform is a fully connected layer: out = W·in + b, with uint8
// inputs, int8 weights and int32 biases and sums. Weights are row-major
// with each row padded to a multiple of MaxSimdWidth.
type AffineTransform struct {
	inputDims  int
	outputDims int
	paddedIn   int

	Biases  []int32
	Weights []int8
}

// NewAffineTransform returns a layer without storage; call Reserve before use.
func NewAffineTransform(inDims, outDims int) *AffineTransform {
	return &AffineTransform{
		inputDims:  inDims,
		outputDims: outDims,
		paddedIn:   common.CeilToMultiple(inDims, common.MaxSimdWidth),
	}
}

func (a *AffineTransform) InputDimensions() int       { return a.inputDims }
func (a *AffineTransform) OutputDimensions() int      { return a.outputDims }
func (a *AffineTransform) PaddedInputDimensions() int { return a.paddedIn }

func (a *AffineTransform) HashValue(prev uint32) uint32 {
	return AffineTransformHashValue(prev, a.outputDims)
}

// Reserve carves the bias and weight views from the arena.
func (a *AffineTransform) Reserve(arena *memory.Arena) {
	a.Biases = memory.Carve[int32](arena, a.outputDims)
	a.Weights = memory.Carve[int8](arena, a.outputDims*a.paddedIn)
}

func (a *AffineTransform) Parameters() ([]int32, []int8) { return a.Biases, a.Weights }

func (a *AffineTransform) ReadParameters(r io.Reader) error {
	if err := common.ReadLittleEndianSlice(r, a.Biases); err != nil {
		return fmt.Errorf("affine %dx%d biases: %w", a.inputDims, a.outputDims, err)
	}
	if err := common.ReadLittleEndianSlice(r, a.Weights); err != nil {
		return fmt.Errorf("affine %dx%d weights: %w", a.inputDims, a.outputDims, err)
	}
	return nil
}

func (a *AffineTransform) WriteParameters(w io.Writer) error {
	if err := common.WriteLittleEndianSlice(w, a.Biases); err != nil {
		return err
	}
	return common.WriteLittleEndianSlice(w, a.Weights)
}

// Forward reads in.U8 and writes out.I32.
func (a *AffineTransform) Forward(in, out *Tensor) {
	input := in.U8[:a.inputDims]
	output := out.I32[:a.outputDims]
	for i := range output {
		row := a.Weights[i*a.paddedIn : i*a.paddedIn+a.inputDims]
		output[i] = a.Biases[i] + dotProduct(row, input)
	}
	out.I32 = output
}

func dotProduct(weights []int8, input []uint8) int32 {
	var sum0, sum1, sum2, sum3 int32
	n := len(input)
	i := 0
	for ; i+4 <= n; i += 4 {
		sum0 += int32(weights[i]) * int32(input[i])
		sum1 += int32(weights[i+1]) * int32(input[i+1])
		sum2 += int32(weights[i+2]) * int32(input[i+2])
		sum3 += int32(weights[i+3]) * int32(input[i+3])
	}
	for ; i < n; i++ {
		sum0 += int32(weights[i]) * int32(input[i])
	}
	return sum0 + sum1 + sum2 + sum3
}
