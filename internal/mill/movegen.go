package mill

import "github.com/hailam/millnnue/nnue/features"

// LegalMoves appends every legal move to dst.
func (p *Position) LegalMoves(dst []Move) []Move {
	us := p.st.stm
	switch {
	case p.st.phase == PhaseGameOver:
		return dst

	case p.st.action == ActionRemove:
		them := us.Opp()
		pc := features.MakePiece(them)
		anyPiece := p.allInMills(them)
		for sq := Square(0); sq < SquareNB; sq++ {
			if p.st.board[sq] == pc && (anyPiece || !p.inMill(sq, them)) {
				dst = append(dst, NewRemove(sq))
			}
		}

	case p.st.phase == PhasePlacing:
		if p.st.hand[us] == 0 {
			return dst
		}
		for sq := Square(0); sq < SquareNB; sq++ {
			if p.st.board[sq] == features.NoPiece {
				dst = append(dst, NewPlace(sq))
			}
		}

	default:
		pc := features.MakePiece(us)
		fly := p.canFly(us)
		for from := Square(0); from < SquareNB; from++ {
			if p.st.board[from] != pc {
				continue
			}
			if fly {
				for to := Square(0); to < SquareNB; to++ {
					if p.st.board[to] == features.NoPiece {
						dst = append(dst, NewSlide(from, to))
					}
				}
				continue
			}
			for _, to := range Adjacent(p.variant, from) {
				if p.st.board[to] == features.NoPiece {
					dst = append(dst, NewSlide(from, to))
				}
			}
		}
	}
	return dst
}

// IsLegal reports whether m is among the legal moves.
func (p *Position) IsLegal(m Move) bool {
	var buf [64]Move
	for _, lm := range p.LegalMoves(buf[:0]) {
		if lm == m {
			return true
		}
	}
	return false
}

// Outcome describes a finished game.
type Outcome struct {
	Over   bool
	Draw   bool
	Winner Color
}

// Outcome reports whether the game has ended. A side reduced to two pieces or
// left without a move loses; a full board during placing is a draw.
func (p *Position) Outcome() Outcome {
	if p.st.phase == PhaseGameOver {
		return Outcome{Over: true, Winner: p.st.winner}
	}
	var buf [64]Move
	if len(p.LegalMoves(buf[:0])) > 0 {
		return Outcome{}
	}
	if p.st.phase == PhasePlacing {
		return Outcome{Over: true, Draw: true}
	}
	return Outcome{Over: true, Winner: p.st.stm.Opp()}
}
