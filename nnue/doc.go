/*
Package nnue is a quantized, incrementally updated neural network evaluator
for the mill family of games.

# Architecture

Positions are encoded by package features as perspective-relative sparse
features. A feature transformer projects them into two int16 accumulators of
TransformedDimensions values (one per side) plus PSQTBuckets int32 scalars.
Each move only adds and subtracts the weight rows of the features it changed,
so an accumulator is rebuilt from scratch only at the root or when the chain
of deltas is broken.

Evaluation clamps both accumulators to uint8, mover first, and feeds them
through one of LayerStacks layer stacks, chosen by piece count:

	InputSlice(2*D) -> Affine(16) -> ClippedReLU -> Affine(32) -> ClippedReLU -> Affine(1)

# Usage

	net, err := nnue.Init(nnue.Config{Variant: features.NineMensMorris})
	if err != nil {
		log.Fatal().Err(err).Msg("nnue init")
	}

	eval := nnue.NewEvaluator(net)
	v := eval.Evaluate(pos, nil, features.White)

	delta, undo := pos.DoMove(m)
	v = eval.Evaluate(pos, &delta, features.White)
	eval.UndoMove()
	pos.UndoMove(undo)

The Network is read-only after loading and may be shared by any number of
goroutines. Every goroutine owns its own Evaluator.
*/
package nnue

//go:generate go run ../cmd/millnnue -store none export -o default.nnue
