package features

import (
	"errors"
	"fmt"
)

// MaxActiveFeatures bounds MaxActiveDimensions over every supported variant.
const MaxActiveFeatures = SquareNB + 2*12

// ErrInvalidBoardState is returned for boards no legal game can reach.
var ErrInvalidBoardState = errors.New("invalid board state")

// IndexList is a fixed-capacity list of feature indices.
type IndexList struct {
	n      int
	values [MaxActiveFeatures]int
}

// Push appends idx.
func (l *IndexList) Push(idx int) {
	l.values[l.n] = idx
	l.n++
}

// Len returns the number of indices.
func (l *IndexList) Len() int { return l.n }

// Reset empties the list.
func (l *IndexList) Reset() { l.n = 0 }

// Slice returns the indices. It aliases the list storage.
func (l *IndexList) Slice() []int { return l.values[:l.n] }

// MakeIndex returns the feature of a piece standing on sq, seen from perspective.
// A ban mark is only meaningful when v has ban points.
func MakeIndex(v Variant, perspective Color, pc Piece, sq Square) int {
	if pc == BanPiece {
		return 2*SquareNB + int(sq)
	}
	if pc.Color() == perspective {
		return int(sq)
	}
	return SquareNB + int(sq)
}

// HandIndex returns the feature of the slot-th piece in c's hand.
func HandIndex(v Variant, perspective, c Color, slot int) int {
	idx := v.handOffset() + slot
	if c != perspective {
		idx += v.PiecesPerSide
	}
	return idx
}

// AppendActiveIndices appends every active feature of b for perspective.
// The board is trusted; see Validate.
func AppendActiveIndices(v Variant, b Board, perspective Color, out *IndexList) {
	for sq := Square(0); sq < SquareNB; sq++ {
		if pc := b.PieceOn(sq); pc != NoPiece {
			out.Push(MakeIndex(v, perspective, pc, sq))
		}
	}
	for c := White; c < ColorNB; c++ {
		for slot, n := 0, b.InHand(c); slot < n; slot++ {
			out.Push(HandIndex(v, perspective, c, slot))
		}
	}
}

// ActiveIndices validates b and returns its active features for perspective.
func ActiveIndices(v Variant, b Board, perspective Color) ([]int, error) {
	if err := Validate(v, b); err != nil {
		return nil, err
	}
	var list IndexList
	AppendActiveIndices(v, b, perspective, &list)
	return append([]int(nil), list.Slice()...), nil
}

// Validate rejects boards the encoder cannot represent.
func Validate(v Variant, b Board) error {
	var count [ColorNB]int
	for sq := Square(0); sq < SquareNB; sq++ {
		switch pc := b.PieceOn(sq); pc {
		case NoPiece:
		case WhitePiece, BlackPiece:
			count[pc.Color()]++
		case BanPiece:
			if !v.HasBanPoints {
				return fmt.Errorf("%w: ban mark on %d in variant %s", ErrInvalidBoardState, sq, v.Name)
			}
		default:
			return fmt.Errorf("%w: unknown piece %d on %d", ErrInvalidBoardState, pc, sq)
		}
	}
	for c := White; c < ColorNB; c++ {
		hand := b.InHand(c)
		if hand < 0 || hand > v.PiecesPerSide {
			return fmt.Errorf("%w: %v has %d pieces in hand", ErrInvalidBoardState, c, hand)
		}
		if count[c]+hand > v.PiecesPerSide {
			return fmt.Errorf("%w: %v owns %d pieces, at most %d allowed",
				ErrInvalidBoardState, c, count[c]+hand, v.PiecesPerSide)
		}
	}
	return nil
}

// ValidateDelta rejects delta entries the encoder cannot represent: unknown
// piece codes, ban marks in a variant without ban points, endpoints that are
// neither a point, the hand nor absent, and ban marks entering or leaving a hand.
func ValidateDelta(v Variant, d *DirtyPiece) error {
	for i := 0; i < d.Num; i++ {
		pc, from, to := d.Piece[i], d.From[i], d.To[i]
		switch pc {
		case WhitePiece, BlackPiece:
		case BanPiece:
			if !v.HasBanPoints {
				return fmt.Errorf("%w: delta %d moves a ban mark in variant %s", ErrInvalidBoardState, i, v.Name)
			}
			if from == SquareHand || to == SquareHand {
				return fmt.Errorf("%w: delta %d moves a ban mark through a hand", ErrInvalidBoardState, i)
			}
		default:
			return fmt.Errorf("%w: delta %d has unknown piece %d", ErrInvalidBoardState, i, pc)
		}
		for _, sq := range [2]Square{from, to} {
			if !sq.IsOnBoard() && sq != SquareHand && sq != SquareNone {
				return fmt.Errorf("%w: delta %d has endpoint %d", ErrInvalidBoardState, i, sq)
			}
		}
		if to == SquareHand && d.HandCount[i] >= v.PiecesPerSide {
			return fmt.Errorf("%w: delta %d overfills a hand", ErrInvalidBoardState, i)
		}
		if from == SquareHand && d.HandCount[i] <= 0 {
			return fmt.Errorf("%w: delta %d takes from an empty hand", ErrInvalidBoardState, i)
		}
	}
	return nil
}

// CountPieces returns the stones on the board plus those in both hands.
func CountPieces(b Board) int {
	n := b.InHand(White) + b.InHand(Black)
	for sq := Square(0); sq < SquareNB; sq++ {
		if b.PieceOn(sq).IsStone() {
			n++
		}
	}
	return n
}
