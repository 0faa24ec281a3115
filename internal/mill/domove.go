package mill

import (
	"fmt"

	"github.com/hailam/millnnue/nnue/features"
)

// DoMove applies a legal move and returns its feature delta together with
// the state needed to take it back.
func (p *Position) DoMove(m Move) (features.DirtyPiece, Undo) {
	undo := Undo{st: p.st}
	var d features.DirtyPiece

	us := p.st.stm
	them := us.Opp()

	switch m.Kind() {
	case KindPlace:
		to := m.To()
		pc := features.MakePiece(us)
		d.Add(pc, features.SquareHand, to, p.st.hand[us])
		p.st.hand[us]--
		p.st.onBoard[us]++
		p.st.board[to] = pc
		p.arrive(to, &d)

	case KindSlide:
		from, to := m.From(), m.To()
		pc := p.st.board[from]
		d.Add(pc, from, to, 0)
		p.st.board[from] = features.NoPiece
		p.st.board[to] = pc
		p.arrive(to, &d)

	case KindRemove:
		sq := m.To()
		d.Add(features.MakePiece(them), sq, features.SquareNone, 0)
		p.st.board[sq] = features.NoPiece
		p.st.onBoard[them]--
		if p.st.phase == PhasePlacing && p.variant.HasBanPoints {
			p.st.board[sq] = features.BanPiece
			d.Add(features.BanPiece, features.SquareNone, sq, 0)
		}
		p.st.removals--
		if p.st.removals == 0 {
			p.endTurn(&d)
		}

	default:
		panic(fmt.Sprintf("mill: invalid move %04x", uint16(m)))
	}

	p.st.ply++
	return d, undo
}

// UndoMove takes back the move that returned u.
func (p *Position) UndoMove(u Undo) {
	p.st = u.st
}

// arrive handles a piece landing on to: a new mill grants a removal,
// otherwise the turn passes.
func (p *Position) arrive(to Square, d *features.DirtyPiece) {
	us := p.st.stm
	if p.inMill(to, us) && p.st.onBoard[us.Opp()] > 0 {
		p.st.action = ActionRemove
		p.st.removals = 1
		return
	}
	p.endTurn(d)
}

func (p *Position) endTurn(d *features.DirtyPiece) {
	p.st.stm = p.st.stm.Opp()

	if p.st.phase == PhasePlacing && p.st.hand[features.White] == 0 && p.st.hand[features.Black] == 0 {
		p.st.phase = PhaseMoving
		for sq := Square(0); sq < SquareNB; sq++ {
			if p.st.board[sq] == features.BanPiece {
				p.st.board[sq] = features.NoPiece
				d.Add(features.BanPiece, sq, features.SquareNone, 0)
			}
		}
	}

	if p.st.phase == PhasePlacing {
		p.st.action = ActionPlace
	} else {
		p.st.action = ActionSelect
	}

	if p.st.phase == PhaseMoving && p.st.onBoard[p.st.stm] < 3 {
		p.st.phase = PhaseGameOver
		p.st.winner = p.st.stm.Opp()
	}
}
