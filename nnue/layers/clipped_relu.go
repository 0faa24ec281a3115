package layers

import "github.com/hailam/millnnue/nnue/common"

// ClippedReLUHashValue chains a ClippedReLU layer.
func ClippedReLUHashValue(prev uint32) uint32 {
	return 0x538D24C7 + prev
}

// ClippedReLU maps int32 sums to clamp(x >> WeightScaleBits, 0, 127).
type ClippedReLU struct {
	dims int
}

func NewClippedReLU(dims int) *ClippedReLU { return &ClippedReLU{dims: dims} }

func (c *ClippedReLU) InputDimensions() int         { return c.dims }
func (c *ClippedReLU) OutputDimensions() int        { return c.dims }
func (c *ClippedReLU) HashValue(prev uint32) uint32 { return ClippedReLUHashValue(prev) }

// Forward reads in.I32 and writes out.U8.
func (c *ClippedReLU) Forward(in, out *Tensor) {
	input := in.I32[:c.dims]
	output := out.U8[:c.dims]
	for i, v := range input {
		output[i] = uint8(common.Clamp(v>>common.WeightScaleBits, 0, 127))
	}
	out.U8 = output
}
