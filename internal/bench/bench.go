// Package bench plays greedy one-ply games on several goroutines that share
// a single network, each with its own Evaluator.
package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/millnnue/internal/mill"
	"github.com/hailam/millnnue/nnue"
	"github.com/hailam/millnnue/nnue/features"
)

// Config controls a benchmark run.
type Config struct {
	Threads  int
	Games    int
	MaxPlies int
	Seed     uint64
}

// Result summarises a run. Checksum depends only on the network, the games
// and the seed, never on the thread count.
type Result struct {
	Games     int
	Positions int64
	Checksum  uint64
	Elapsed   time.Duration
}

// PositionsPerSecond returns the evaluation rate.
func (r Result) PositionsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Positions) / r.Elapsed.Seconds()
}

func (c Config) withDefaults() Config {
	if c.Threads <= 0 {
		c.Threads = runtime.GOMAXPROCS(0)
	}
	if c.Games <= 0 {
		c.Games = 64
	}
	if c.MaxPlies <= 0 {
		c.MaxPlies = 200
	}
	return c
}

// Run plays cfg.Games games with net. It stops early when ctx is cancelled
// or a worker hits a consistency failure.
func Run(ctx context.Context, net *nnue.Network, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	var (
		positions atomic.Int64
		checksum  atomic.Uint64
	)

	g, ctx := errgroup.WithContext(ctx)
	games := make(chan int)
	g.Go(func() error {
		defer close(games)
		for i := 0; i < cfg.Games; i++ {
			select {
			case games <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < cfg.Threads; w++ {
		g.Go(func() error {
			p := &player{eval: nnue.NewEvaluator(net), maxPlies: cfg.MaxPlies}
			for game := range games {
				var n int64
				var sum uint64
				err := nnue.Guard(func() {
					n, sum = p.play(net.Variant(), cfg.Seed, game)
				})
				if err != nil {
					return fmt.Errorf("game %d: %w", game, err)
				}
				positions.Add(n)
				checksum.Add(sum)
			}
			return nil
		})
	}

	err := g.Wait()
	res := Result{
		Games:     cfg.Games,
		Positions: positions.Load(),
		Checksum:  checksum.Load(),
		Elapsed:   time.Since(start),
	}
	if err != nil {
		return res, err
	}

	log.Info().
		Int("threads", cfg.Threads).
		Int("games", res.Games).
		Int64("positions", res.Positions).
		Dur("elapsed", res.Elapsed).
		Float64("pps", res.PositionsPerSecond()).
		Msg("bench-done")
	return res, nil
}

type player struct {
	eval     *nnue.Evaluator
	maxPlies int
	moves    []mill.Move
}

// play runs one game. Every candidate move is made, evaluated from the
// mover's point of view and unmade; the best one is played, with ties
// broken by the game's own random stream.
func (p *player) play(v features.Variant, seed uint64, game int) (positions int64, sum uint64) {
	rng := rand.New(rand.NewPCG(seed, uint64(game)))
	pos := mill.NewPosition(v)
	e := p.eval

	e.Evaluate(pos, nil, pos.SideToMove())
	positions++

	for ply := 0; ply < p.maxPlies; ply++ {
		p.moves = pos.LegalMoves(p.moves[:0])
		if len(p.moves) == 0 {
			break
		}

		mover := pos.SideToMove()
		best, bestScore, ties := mill.Move(0), nnue.Value(0), 0
		for i, m := range p.moves {
			d, undo := pos.DoMove(m)
			score := e.Evaluate(pos, &d, mover)
			e.UndoMove()
			pos.UndoMove(undo)
			positions++

			switch {
			case i == 0 || score > bestScore:
				best, bestScore, ties = m, score, 1
			case score == bestScore:
				ties++
				if rng.IntN(ties) == 0 {
					best = m
				}
			}
		}

		d, _ := pos.DoMove(best)
		e.DoMove(&d)
		sum = sum*31 + uint64(uint32(bestScore)) + uint64(best)
	}
	return positions, mix(sum, uint64(game))
}

// mix spreads a per-game sum so that adding the games up in any order
// still tells games apart.
func mix(x, game uint64) uint64 {
	x ^= game * 0x9E3779B97F4A7C15
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return x
}
