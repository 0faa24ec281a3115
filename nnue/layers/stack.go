package layers

import (
	"fmt"
	"io"

	"github.com/hailam/millnnue/internal/memory"
)

// Stack is the ordered pipeline of one bucket:
// InputSlice, then Affine+ClippedReLU per hidden width, then Affine(1).
type Stack struct {
	layers   []Layer
	maxWidth int
}

// NewStack builds the pipeline for inputDims transformed features.
func NewStack(inputDims int, hidden []int) *Stack {
	s := &Stack{}
	s.add(NewInputSlice(0, inputDims))
	prev := inputDims
	for _, h := range hidden {
		s.add(NewAffineTransform(prev, h))
		s.add(NewClippedReLU(h))
		prev = h
	}
	s.add(NewAffineTransform(prev, 1))
	return s
}

func (s *Stack) add(l Layer) {
	s.layers = append(s.layers, l)
	if _, ok := l.(*InputSlice); !ok {
		s.maxWidth = max(s.maxWidth, l.OutputDimensions())
	}
}

// Layers returns the pipeline in evaluation order.
func (s *Stack) Layers() []Layer { return s.layers }

// MaxWidth is the widest intermediate activation.
func (s *Stack) MaxWidth() int { return s.maxWidth }

// HashValue chains every layer's hash.
func (s *Stack) HashValue() uint32 {
	var h uint32
	for _, l := range s.layers {
		h = l.HashValue(h)
	}
	return h
}

// Reserve carves the views of every parametric layer, in order.
func (s *Stack) Reserve(a *memory.Arena) {
	for _, l := range s.layers {
		if p, ok := l.(Parametric); ok {
			p.Reserve(a)
		}
	}
}

func (s *Stack) ReadParameters(r io.Reader) error {
	for i, l := range s.layers {
		if p, ok := l.(Parametric); ok {
			if err := p.ReadParameters(r); err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
		}
	}
	return nil
}

func (s *Stack) WriteParameters(w io.Writer) error {
	for i, l := range s.layers {
		if p, ok := l.(Parametric); ok {
			if err := p.WriteParameters(w); err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
		}
	}
	return nil
}

// Scratch holds the ping-pong activations of one evaluating goroutine.
type Scratch struct {
	u8  [2][]uint8
	i32 [2][]int32
	t   [2]Tensor
}

// NewScratch returns buffers for stacks no wider than width.
func NewScratch(width int) *Scratch {
	s := &Scratch{}
	for i := range s.u8 {
		s.u8[i] = make([]uint8, width)
		s.i32[i] = make([]int32, width)
	}
	return s
}

// Propagate runs input through the pipeline and returns the single output.
func (s *Stack) Propagate(input []uint8, scratch *Scratch) int32 {
	in := &scratch.t[0]
	in.U8, in.I32 = input, nil
	for i, l := range s.layers {
		out := &scratch.t[(i+1)&1]
		out.U8, out.I32 = scratch.u8[(i+1)&1], scratch.i32[(i+1)&1]
		l.Forward(in, out)
		in = out
	}
	return in.I32[0]
}
