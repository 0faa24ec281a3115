package layers

// InputSlice forwards a window of the transformed features.
type InputSlice struct {
	Offset     int
	Dimensions int
}

// NewInputSlice returns a slice of dims values starting at offset.
func NewInputSlice(offset, dims int) *InputSlice {
	return &InputSlice{Offset: offset, Dimensions: dims}
}

func (s *InputSlice) InputDimensions() int  { return s.Offset + s.Dimensions }
func (s *InputSlice) OutputDimensions() int { return s.Dimensions }

// InputSliceHashValue is the hash seed of a stack.
func InputSliceHashValue(dims int) uint32 {
	return 0xEC42E90D ^ uint32(dims)
}

// HashValue ignores prev; the slice starts every chain.
func (s *InputSlice) HashValue(prev uint32) uint32 {
	return InputSliceHashValue(s.Dimensions)
}

// Forward aliases the window without copying.
func (s *InputSlice) Forward(in, out *Tensor) {
	out.U8 = in.U8[s.Offset : s.Offset+s.Dimensions]
}
