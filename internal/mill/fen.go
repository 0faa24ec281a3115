package mill

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hailam/millnnue/nnue/features"
)

// StartFEN returns the starting position of v.
func StartFEN(v features.Variant) string {
	return NewPosition(v).FEN()
}

// FEN returns the position as
// "<inner>/<middle>/<outer> <w|b> <p|m|o> <p|s|r> <white hand> <black hand> <removals>",
// each ring listed from index 0 with O, @, X and * for white, black, ban and empty.
func (p *Position) FEN() string {
	var sb strings.Builder
	for r := 0; r < 3; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		for i := 0; i < 8; i++ {
			sb.WriteString(p.st.board[MakeSquare(r, i)].String())
		}
	}

	side := "w"
	if p.st.stm == features.Black {
		side = "b"
	}
	phase := [...]string{PhasePlacing: "p", PhaseMoving: "m", PhaseGameOver: "o"}[p.st.phase]
	action := [...]string{ActionPlace: "p", ActionSelect: "s", ActionRemove: "r"}[p.st.action]

	fmt.Fprintf(&sb, " %s %s %s %d %d %d", side, phase, action,
		p.st.hand[features.White], p.st.hand[features.Black], p.st.removals)
	return sb.String()
}

// ParseFEN parses the format written by FEN.
func ParseFEN(v features.Variant, fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) != 7 {
		return nil, fmt.Errorf("invalid FEN: need 7 fields, got %d", len(parts))
	}

	p := &Position{variant: v}
	rings := strings.Split(parts[0], "/")
	if len(rings) != 3 {
		return nil, fmt.Errorf("invalid FEN: need 3 rings, got %d", len(rings))
	}
	for r, ring := range rings {
		if len(ring) != 8 {
			return nil, fmt.Errorf("invalid FEN: ring %d has %d points", r, len(ring))
		}
		for i := 0; i < 8; i++ {
			var pc Piece
			switch ring[i] {
			case '*':
				pc = features.NoPiece
			case 'O':
				pc = features.WhitePiece
			case '@':
				pc = features.BlackPiece
			case 'X':
				pc = features.BanPiece
			default:
				return nil, fmt.Errorf("invalid FEN: unknown piece %q", ring[i])
			}
			p.st.board[MakeSquare(r, i)] = pc
			if pc.IsStone() {
				p.st.onBoard[pc.Color()]++
			}
		}
	}

	switch parts[1] {
	case "w":
		p.st.stm = features.White
	case "b":
		p.st.stm = features.Black
	default:
		return nil, fmt.Errorf("invalid side to move: %s", parts[1])
	}

	switch parts[2] {
	case "p":
		p.st.phase = PhasePlacing
	case "m":
		p.st.phase = PhaseMoving
	case "o":
		p.st.phase = PhaseGameOver
		p.st.winner = p.st.stm.Opp()
	default:
		return nil, fmt.Errorf("invalid phase: %s", parts[2])
	}

	switch parts[3] {
	case "p":
		p.st.action = ActionPlace
	case "s":
		p.st.action = ActionSelect
	case "r":
		p.st.action = ActionRemove
	default:
		return nil, fmt.Errorf("invalid action: %s", parts[3])
	}

	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(parts[4+i])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid FEN count %q", parts[4+i])
		}
		nums[i] = n
	}
	p.st.hand = [features.ColorNB]int{nums[0], nums[1]}
	p.st.removals = nums[2]

	if err := features.Validate(v, p); err != nil {
		return nil, err
	}
	if (p.st.action == ActionRemove) != (p.st.removals > 0) {
		return nil, fmt.Errorf("invalid FEN: action and removal count disagree")
	}
	if p.st.phase != PhasePlacing && (p.st.hand[features.White] > 0 || p.st.hand[features.Black] > 0) {
		return nil, fmt.Errorf("invalid FEN: pieces in hand after placing")
	}
	return p, nil
}
