// Package mill implements the mill board, its rules and move application.
// Moves report their feature changes as a features.DirtyPiece so an
// Evaluator can follow the game incrementally.
package mill

import (
	"fmt"

	"github.com/hailam/millnnue/nnue/features"
)

type (
	Square = features.Square
	Piece  = features.Piece
	Color  = features.Color
)

const SquareNB = features.SquareNB

// MakeSquare returns the point at index (0 = top midpoint, clockwise) on ring
// (0 = inner, 2 = outer).
func MakeSquare(ring, index int) Square {
	return Square(ring*8 + index&7)
}

// Ring returns the ring of sq.
func Ring(sq Square) int { return int(sq) / 8 }

// Index returns the position of sq on its ring.
func Index(sq Square) int { return int(sq) % 8 }

var (
	// offsets of each ring index, in units of the ring's distance from the centre
	ringOffsets = [8][2]int{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}

	squareNames [SquareNB]string
	squareByName = map[string]Square{}

	// indexed by [hasDiagonals]
	adjacent [2][SquareNB][]Square
	lines    [2][SquareNB][][3]Square
)

func init() {
	for sq := Square(0); sq < SquareNB; sq++ {
		d := Ring(sq) + 1
		off := ringOffsets[Index(sq)]
		col, row := 3+off[0]*d, 3+off[1]*d
		name := fmt.Sprintf("%c%d", 'a'+col, row+1)
		squareNames[sq] = name
		squareByName[name] = sq
	}

	for diag := 0; diag < 2; diag++ {
		link := func(a, b Square) {
			adjacent[diag][a] = append(adjacent[diag][a], b)
			adjacent[diag][b] = append(adjacent[diag][b], a)
		}
		line := func(a, b, c Square) {
			l := [3]Square{a, b, c}
			for _, sq := range l {
				lines[diag][sq] = append(lines[diag][sq], l)
			}
		}

		for r := 0; r < 3; r++ {
			for i := 0; i < 8; i++ {
				link(MakeSquare(r, i), MakeSquare(r, i+1))
			}
			for m := 0; m < 8; m += 2 {
				line(MakeSquare(r, m-1+8), MakeSquare(r, m), MakeSquare(r, m+1))
			}
		}
		for i := 0; i < 8; i++ {
			if i%2 == 1 && diag == 0 {
				continue
			}
			link(MakeSquare(0, i), MakeSquare(1, i))
			link(MakeSquare(1, i), MakeSquare(2, i))
			line(MakeSquare(0, i), MakeSquare(1, i), MakeSquare(2, i))
		}
	}
}

func diagIndex(v features.Variant) int {
	if v.HasDiagonals {
		return 1
	}
	return 0
}

// Adjacent returns the neighbours of sq under the variant's board.
func Adjacent(v features.Variant, sq Square) []Square {
	return adjacent[diagIndex(v)][sq]
}

// Lines returns the mill lines through sq.
func Lines(v features.Variant, sq Square) [][3]Square {
	return lines[diagIndex(v)][sq]
}

// SquareName returns the algebraic name of sq on the 7x7 grid, e.g. "a1".
func SquareName(sq Square) string {
	if !sq.IsOnBoard() {
		return "-"
	}
	return squareNames[sq]
}

// ParseSquare parses an algebraic point name.
func ParseSquare(s string) (Square, error) {
	sq, ok := squareByName[s]
	if !ok {
		return features.SquareNone, fmt.Errorf("invalid square %q", s)
	}
	return sq, nil
}
