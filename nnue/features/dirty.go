package features

// MaxDirtyPieces is the capacity of a DirtyPiece record.
const MaxDirtyPieces = 16

// DirtyPiece lists the piece movements of one move. Each entry moves Piece
// from From to To, where either end may be a board point, SquareHand or
// SquareNone. HandCount holds the colour's hand size before the entry for
// entries that touch the hand.
type DirtyPiece struct {
	Num      int
	Overflow bool

	Piece     [MaxDirtyPieces]Piece
	From      [MaxDirtyPieces]Square
	To        [MaxDirtyPieces]Square
	HandCount [MaxDirtyPieces]int
}

// Reset clears the record.
func (d *DirtyPiece) Reset() {
	d.Num = 0
	d.Overflow = false
}

// Add appends an entry. A record that runs out of room is flagged as
// overflowing and must be treated as a full change of the position.
func (d *DirtyPiece) Add(pc Piece, from, to Square, handCount int) {
	if d.Num == MaxDirtyPieces {
		d.Overflow = true
		return
	}
	d.Piece[d.Num] = pc
	d.From[d.Num] = from
	d.To[d.Num] = to
	d.HandCount[d.Num] = handCount
	d.Num++
}

// ChangedIndices appends the features switched off and on by d, seen from
// perspective. Entries are applied in order, so removed and added never
// share an index for a well-formed record.
func ChangedIndices(v Variant, perspective Color, d *DirtyPiece, removed, added *IndexList) {
	for i := 0; i < d.Num; i++ {
		pc := d.Piece[i]
		from, to := d.From[i], d.To[i]

		switch {
		case from.IsOnBoard():
			removed.Push(MakeIndex(v, perspective, pc, from))
		case from == SquareHand:
			removed.Push(HandIndex(v, perspective, pc.Color(), d.HandCount[i]-1))
		}

		switch {
		case to.IsOnBoard():
			added.Push(MakeIndex(v, perspective, pc, to))
		case to == SquareHand:
			hand := d.HandCount[i]
			if from == SquareHand {
				hand--
			}
			added.Push(HandIndex(v, perspective, pc.Color(), hand))
		}
	}
}

// ActiveSet is a bitset over feature indices.
type ActiveSet [2]uint64

// Has reports whether idx is set.
func (s *ActiveSet) Has(idx int) bool { return s[idx>>6]&(1<<(idx&63)) != 0 }

// Set marks idx.
func (s *ActiveSet) Set(idx int) { s[idx>>6] |= 1 << (idx & 63) }

// Clear unmarks idx.
func (s *ActiveSet) Clear(idx int) { s[idx>>6] &^= 1 << (idx & 63) }
