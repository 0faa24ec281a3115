// Package features encodes mill positions as the sparse, perspective-relative
// input features of the network.
package features

import "fmt"

// Color is a side. White moves first.
type Color uint8

const (
	White Color = iota
	Black
	ColorNB = 2
)

// Opp returns the other side.
func (c Color) Opp() Color { return c ^ 1 }

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Square is a board point, ring*8 + index. The three rings run from the inner
// ring (0) to the outer ring (2); index 0 is the top midpoint and indices
// advance clockwise.
type Square int8

const SquareNB = 24

// Sentinels used by DirtyPiece for pieces that leave or enter the board.
const (
	SquareNone Square = -1
	SquareHand Square = -2
)

// IsOnBoard reports whether s is one of the 24 points.
func (s Square) IsOnBoard() bool { return s >= 0 && s < SquareNB }

// Piece is the content of a point.
type Piece uint8

const (
	NoPiece Piece = iota
	WhitePiece
	BlackPiece
	// BanPiece marks a point that may not be occupied until the placing phase ends.
	BanPiece
)

// MakePiece returns the stone of colour c.
func MakePiece(c Color) Piece { return WhitePiece + Piece(c) }

// Color returns the owner of a stone. Only valid for WhitePiece and BlackPiece.
func (p Piece) Color() Color { return Color(p - WhitePiece) }

// IsStone reports whether p is a player's piece.
func (p Piece) IsStone() bool { return p == WhitePiece || p == BlackPiece }

func (p Piece) String() string {
	switch p {
	case NoPiece:
		return "*"
	case WhitePiece:
		return "O"
	case BlackPiece:
		return "@"
	case BanPiece:
		return "X"
	default:
		return fmt.Sprintf("Piece(%d)", uint8(p))
	}
}

// Board is the read-only view of a position the encoder needs. Boards and
// deltas are trusted on the evaluation path: a board Validate would reject,
// such as a ban mark in a variant without ban points, encodes to features
// of other pieces. Builds tagged nnuedebug check both.
type Board interface {
	PieceOn(sq Square) Piece
	InHand(c Color) int
	SideToMove() Color
}
