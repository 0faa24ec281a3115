package mill

import (
	"strings"

	"github.com/hailam/millnnue/nnue/features"
)

// Phase is the stage of the game.
type Phase uint8

const (
	PhasePlacing Phase = iota
	PhaseMoving
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhasePlacing:
		return "placing"
	case PhaseMoving:
		return "moving"
	default:
		return "gameover"
	}
}

// Action is what the side to move must do next.
type Action uint8

const (
	ActionPlace Action = iota
	ActionSelect
	ActionRemove
)

// state is everything a move changes. Undo restores it wholesale.
type state struct {
	board    [SquareNB]Piece
	hand     [features.ColorNB]int
	onBoard  [features.ColorNB]int
	stm      Color
	phase    Phase
	action   Action
	removals int
	winner   Color
	ply      int
}

// Position is a mill game position. It implements features.Board.
type Position struct {
	variant features.Variant
	st      state
}

// Undo restores the position before a move.
type Undo struct {
	st state
}

// NewPosition returns the empty starting position of v.
func NewPosition(v features.Variant) *Position {
	p := &Position{variant: v}
	p.st.hand = [features.ColorNB]int{v.PiecesPerSide, v.PiecesPerSide}
	return p
}

// Copy returns an independent copy.
func (p *Position) Copy() *Position {
	c := *p
	return &c
}

func (p *Position) Variant() features.Variant { return p.variant }
func (p *Position) PieceOn(sq Square) Piece { return p.st.board[sq] }
func (p *Position) InHand(c Color) int { return p.st.hand[c] }
func (p *Position) OnBoard(c Color) int { return p.st.onBoard[c] }
func (p *Position) SideToMove() Color { return p.st.stm }
func (p *Position) Phase() Phase { return p.st.phase }
func (p *Position) Action() Action { return p.st.action }
func (p *Position) PendingRemovals() int { return p.st.removals }
func (p *Position) Ply() int { return p.st.ply }

// inMill reports whether the piece of colour c on sq completes a line.
func (p *Position) inMill(sq Square, c Color) bool {
	pc := features.MakePiece(c)
	for _, l := range Lines(p.variant, sq) {
		if p.st.board[l[0]] == pc && p.st.board[l[1]] == pc && p.st.board[l[2]] == pc {
			return true
		}
	}
	return false
}

// allInMills reports whether every piece of c on the board stands in a mill.
func (p *Position) allInMills(c Color) bool {
	pc := features.MakePiece(c)
	for sq := Square(0); sq < SquareNB; sq++ {
		if p.st.board[sq] == pc && !p.inMill(sq, c) {
			return false
		}
	}
	return true
}

// canFly reports whether c may move to any empty point.
func (p *Position) canFly(c Color) bool {
	return p.variant.MayFly && p.st.onBoard[c] <= p.variant.FlyPieceCount && p.st.hand[c] == 0
}

// String draws the board.
func (p *Position) String() string {
	var grid [7][7]byte
	for r := range grid {
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}
	for sq := Square(0); sq < SquareNB; sq++ {
		name := SquareName(sq)
		col, row := int(name[0]-'a'), int(name[1]-'1')
		grid[row][col] = p.st.board[sq].String()[0]
	}

	var sb strings.Builder
	for row := 6; row >= 0; row-- {
		sb.WriteByte(byte('1' + row))
		sb.WriteByte(' ')
		for col := 0; col < 7; col++ {
			sb.WriteByte(grid[row][col])
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g\n")
	sb.WriteString(p.FEN())
	sb.WriteByte('\n')
	return sb.String()
}
