package nnue

import (
	"fmt"

	"github.com/hailam/millnnue/nnue/layers"
)

// DefaultSeed seeds the built-in weight set.
const DefaultSeed uint64 = 0x9E3779B97F4A7C15

// lcg is a 64-bit linear congruential generator.
type lcg uint64

func (g *lcg) next() uint64 {
	*g = *g*6364136223846793005 + 1442695040888963407
	return uint64(*g)
}

// in returns a value in [-r, r].
func (g *lcg) in(r int) int {
	return int((g.next()>>33)%uint64(2*r+1)) - r
}

// Synthesize builds a network with deterministic pseudo-random weights.
// The same seed, variant and topology always produce the same blob.
func Synthesize(seed uint64, opts LoadOptions) (*Network, error) {
	n, err := newNetwork(opts)
	if err != nil {
		return nil, err
	}
	if err := n.allocateBlob(opts.LargePages); err != nil {
		return nil, err
	}
	n.description = fmt.Sprintf("synthetic %s %v seed=%016x", n.variant.Name, n.topology, seed)

	g := lcg(seed)
	ft := n.ft
	for i := range ft.Biases {
		ft.Biases[i] = int16(g.in(32))
	}
	for i := range ft.Weights {
		ft.Weights[i] = int16(g.in(24))
	}
	for i := range ft.PSQTWeights {
		ft.PSQTWeights[i] = int32(g.in(400))
	}

	for _, s := range n.stacks {
		for _, l := range s.Layers() {
			a, ok := l.(*layers.AffineTransform)
			if !ok {
				continue
			}
			biases, weights := a.Parameters()
			for i := range biases {
				biases[i] = int32(g.in(256))
			}
			padded := a.PaddedInputDimensions()
			for row := 0; row < a.OutputDimensions(); row++ {
				for col := 0; col < a.InputDimensions(); col++ {
					weights[row*padded+col] = int8(g.in(24))
				}
			}
		}
	}

	if err := n.seal(); err != nil {
		n.blob.Release()
		return nil, err
	}
	return n, nil
}
