package nnue

import (
	"github.com/hailam/millnnue/internal/memory"
	"github.com/hailam/millnnue/nnue/common"
	"github.com/hailam/millnnue/nnue/features"
	"github.com/hailam/millnnue/nnue/layers"
)

// Value is an evaluation in engine units, positive when good for the
// requested perspective.
type Value int32

// Breakdown is the decomposition of one evaluation, from the mover's view.
type Breakdown struct {
	Bucket     int
	PSQT       int32
	Positional int32
	Value      Value
}

// Evaluator is the per-worker evaluation state: an accumulator stack that
// tracks the worker's move stack plus scratch buffers. It must not be
// shared between goroutines.
type Evaluator struct {
	net         *Network
	stack       *AccumulatorStack
	transformed []uint8
	scratch     *layers.Scratch
}

// NewEvaluator returns an evaluator positioned at a stale root.
func NewEvaluator(net *Network) *Evaluator {
	t := net.topology
	width := 0
	for _, s := range net.stacks {
		width = max(width, s.MaxWidth())
	}
	return &Evaluator{
		net:         net,
		stack:       NewAccumulatorStack(t.TransformedDimensions, t.PSQTBuckets),
		transformed: memory.AlignedAlloc(2 * t.TransformedDimensions),
		scratch:     layers.NewScratch(width),
	}
}

// Network returns the shared weights.
func (e *Evaluator) Network() *Network { return e.net }

// Reset discards every applied move. The next evaluation refreshes from the board.
func (e *Evaluator) Reset() { e.stack.Reset() }

// DoMove records the delta of a move just applied to the board.
func (e *Evaluator) DoMove(d *features.DirtyPiece) { e.stack.Push(d) }

// UndoMove restores the state before the last DoMove.
func (e *Evaluator) UndoMove() { e.stack.Pop() }

// Ply returns the number of moves applied since the last Reset.
func (e *Evaluator) Ply() int { return e.stack.Ply() }

// Accumulator returns the current node.
func (e *Evaluator) Accumulator() *Accumulator { return e.stack.Current() }

// Evaluate scores b for perspective. A nil delta marks b as a new root and
// forces a full refresh; otherwise delta is the change from the position of
// the previous call.
func (e *Evaluator) Evaluate(b features.Board, delta *features.DirtyPiece, perspective features.Color) Value {
	if delta == nil {
		e.Reset()
	} else {
		e.DoMove(delta)
	}
	return e.EvaluatePosition(b, perspective)
}

// EvaluatePosition scores b, which must be the position of the current node.
// b and the deltas leading to it are not validated unless built with the
// nnuedebug tag; see features.Board.
func (e *Evaluator) EvaluatePosition(b features.Board, perspective features.Color) Value {
	v := e.Breakdown(b).Value
	if perspective != b.SideToMove() {
		v = -v
	}
	return v
}

// Breakdown computes both accumulator perspectives and runs the network.
func (e *Evaluator) Breakdown(b features.Board) Breakdown {
	ft := e.net.ft
	stm := b.SideToMove()
	e.stack.ensure(ft, b, stm)
	e.stack.ensure(ft, b, stm.Opp())

	bucket := SelectBucket(e.net.variant, e.net.topology.PSQTBuckets, features.CountPieces(b))
	psqt, positional := e.net.evaluate(e.stack.Current(), stm, bucket, e.transformed, e.scratch)
	return Breakdown{
		Bucket:     bucket,
		PSQT:       psqt,
		Positional: positional,
		Value:      Value((psqt + positional) / common.OutputScale),
	}
}
