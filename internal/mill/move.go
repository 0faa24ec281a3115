package mill

import (
	"fmt"
	"strings"
)

// Move encodes a mill move in 16 bits:
// bits 0-4:   destination (or removed) point
// bits 5-9:   origin point of a slide or fly
// bits 10-11: kind
type Move uint16

// MoveKind distinguishes the three move types.
type MoveKind uint16

const (
	KindNone   MoveKind = 0 << 10
	KindPlace  MoveKind = 1 << 10
	KindSlide  MoveKind = 2 << 10
	KindRemove MoveKind = 3 << 10
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

// NewPlace puts a piece from hand on to.
func NewPlace(to Square) Move { return Move(to) | Move(KindPlace) }

// NewSlide moves a piece from one point to another. Flying uses the same encoding.
func NewSlide(from, to Square) Move { return Move(to) | Move(from)<<5 | Move(KindSlide) }

// NewRemove takes the opponent piece on sq.
func NewRemove(sq Square) Move { return Move(sq) | Move(KindRemove) }

func (m Move) Kind() MoveKind { return MoveKind(m) & (3 << 10) }
func (m Move) To() Square     { return Square(m & 0x1f) }
func (m Move) From() Square   { return Square((m >> 5) & 0x1f) }

// String returns "d7" for a placement, "d7-d6" for a slide and "xd7" for a removal.
func (m Move) String() string {
	switch m.Kind() {
	case KindPlace:
		return SquareName(m.To())
	case KindSlide:
		return SquareName(m.From()) + "-" + SquareName(m.To())
	case KindRemove:
		return "x" + SquareName(m.To())
	}
	return "none"
}

// ParseMove parses the notation produced by String.
func ParseMove(s string) (Move, error) {
	switch {
	case strings.HasPrefix(s, "x"):
		sq, err := ParseSquare(s[1:])
		if err != nil {
			return NoMove, err
		}
		return NewRemove(sq), nil
	case strings.Contains(s, "-"):
		from, to, _ := strings.Cut(s, "-")
		f, err := ParseSquare(from)
		if err != nil {
			return NoMove, err
		}
		t, err := ParseSquare(to)
		if err != nil {
			return NoMove, err
		}
		return NewSlide(f, t), nil
	default:
		sq, err := ParseSquare(s)
		if err != nil {
			return NoMove, fmt.Errorf("invalid move %q: %w", s, err)
		}
		return NewPlace(sq), nil
	}
}
