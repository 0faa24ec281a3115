package nnue

import (
	"github.com/hailam/millnnue/internal/memory"
	"github.com/hailam/millnnue/nnue/features"
)

// MaxStackSize is the number of nodes an AccumulatorStack keeps. Longer
// lines rebase the top node onto the root slot.
const MaxStackSize = 256

// Accumulator holds the transformed features of one position, per perspective.
// A perspective may only be read once Computed is set for it.
type Accumulator struct {
	Accumulation     [features.ColorNB][]int16
	PSQTAccumulation [features.ColorNB][]int32
	Computed         [features.ColorNB]bool

	active [features.ColorNB]features.ActiveSet
	dirty  features.DirtyPiece
}

// Vector returns the accumulation of perspective p.
func (a *Accumulator) Vector(p features.Color) []int16 {
	if !a.Computed[p] {
		inconsistent("read accumulator", "%v perspective is stale", p)
	}
	return a.Accumulation[p]
}

// PSQT returns the bucket scalars of perspective p.
func (a *Accumulator) PSQT(p features.Color) []int32 {
	if !a.Computed[p] {
		inconsistent("read accumulator", "%v perspective is stale", p)
	}
	return a.PSQTAccumulation[p]
}

// Dirty returns the delta that produced this node from its parent.
func (a *Accumulator) Dirty() *features.DirtyPiece { return &a.dirty }

func (a *Accumulator) invalidate() {
	a.Computed[features.White] = false
	a.Computed[features.Black] = false
}

// AccumulatorStack mirrors the make/unmake stack of one search worker. All
// vectors live in a single cache-line aligned slab.
type AccumulatorStack struct {
	nodes []Accumulator
	size  int

	// dropped counts the plies below the root slot discarded by rebase.
	dropped int
}

// NewAccumulatorStack allocates MaxStackSize nodes.
func NewAccumulatorStack(halfDims, buckets int) *AccumulatorStack {
	s := &AccumulatorStack{nodes: make([]Accumulator, MaxStackSize), size: 1}

	reserve := func(a *memory.Arena) {
		for i := range s.nodes {
			n := &s.nodes[i]
			for c := range n.Accumulation {
				n.Accumulation[c] = memory.Carve[int16](a, halfDims)
				n.PSQTAccumulation[c] = memory.Carve[int32](a, buckets)
			}
		}
	}
	m := memory.Measure()
	reserve(m)
	reserve(memory.NewArena(memory.AlignedAlloc(m.Size())))
	return s
}

// Reset leaves a single, stale root node.
func (s *AccumulatorStack) Reset() {
	s.size = 1
	s.dropped = 0
	s.nodes[0].invalidate()
	s.nodes[0].dirty.Reset()
}

// Push adds a stale child reached from the current node by d.
func (s *AccumulatorStack) Push(d *features.DirtyPiece) {
	if s.size == MaxStackSize {
		s.rebase()
	}
	n := &s.nodes[s.size]
	n.dirty = *d
	n.invalidate()
	s.size++
}

// Pop discards the current node; its parent becomes current unchanged.
// Popping past a rebase leaves a stale root that the next evaluation
// refreshes from the board.
func (s *AccumulatorStack) Pop() {
	if s.size > 1 {
		s.size--
		return
	}
	if s.dropped == 0 {
		inconsistent("pop", "accumulator stack empty")
	}
	s.dropped--
	s.nodes[0].invalidate()
	s.nodes[0].dirty.Reset()
}

// rebase copies the top node into the root slot and discards the rest.
// Stale perspectives stay stale; with no parent left they are refreshed.
func (s *AccumulatorStack) rebase() {
	top, root := &s.nodes[s.size-1], &s.nodes[0]
	for c := range root.Accumulation {
		copy(root.Accumulation[c], top.Accumulation[c])
		copy(root.PSQTAccumulation[c], top.PSQTAccumulation[c])
	}
	root.active = top.active
	root.Computed = top.Computed
	root.dirty.Reset()

	s.dropped += s.size - 1
	s.size = 1
}

// Current returns the top node.
func (s *AccumulatorStack) Current() *Accumulator { return &s.nodes[s.size-1] }

// Size returns the number of nodes held, root included.
func (s *AccumulatorStack) Size() int { return s.size }

// Ply returns the number of pushes not yet popped since the last Reset.
func (s *AccumulatorStack) Ply() int { return s.dropped + s.size - 1 }

// ensure brings perspective p of the top node up to date, walking back to the
// nearest computed ancestor and replaying the deltas forward. When no such
// ancestor exists, or a delta overflowed, the top node is refreshed from b.
func (s *AccumulatorStack) ensure(ft *FeatureTransformer, b features.Board, p features.Color) {
	top := s.size - 1
	if s.nodes[top].Computed[p] {
		return
	}

	i := top
	for i > 0 && !s.nodes[i].Computed[p] && !s.nodes[i].dirty.Overflow {
		i--
	}
	if !s.nodes[i].Computed[p] {
		ft.refresh(&s.nodes[top], b, p)
		return
	}
	for j := i + 1; j <= top; j++ {
		ft.update(&s.nodes[j-1], &s.nodes[j], p)
	}
}
