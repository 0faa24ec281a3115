package features

import (
	"errors"
	"sort"
	"testing"
)

type testBoard struct {
	squares [SquareNB]Piece
	hand    [ColorNB]int
	stm     Color
}

func (b *testBoard) PieceOn(sq Square) Piece { return b.squares[sq] }
func (b *testBoard) InHand(c Color) int      { return b.hand[c] }
func (b *testBoard) SideToMove() Color       { return b.stm }

func TestIndicesInRangeAndDistinct(t *testing.T) {
	for _, v := range []Variant{NineMensMorris, TwelveMensMorris} {
		seen := make(map[int]string)
		record := func(idx int, what string) {
			if idx < 0 || idx >= v.Dimensions() {
				t.Errorf("%s: %s index %d out of [0,%d)", v.Name, what, idx, v.Dimensions())
			}
			if prev, ok := seen[idx]; ok {
				t.Errorf("%s: index %d used by %s and %s", v.Name, idx, prev, what)
			}
			seen[idx] = what
		}

		for sq := Square(0); sq < SquareNB; sq++ {
			record(MakeIndex(v, White, WhitePiece, sq), "ours")
			record(MakeIndex(v, White, BlackPiece, sq), "theirs")
			if v.HasBanPoints {
				record(MakeIndex(v, White, BanPiece, sq), "ban")
			}
		}
		for slot := 0; slot < v.PiecesPerSide; slot++ {
			record(HandIndex(v, White, White, slot), "our hand")
			record(HandIndex(v, White, Black, slot), "their hand")
		}
		if len(seen) != v.Dimensions() {
			t.Errorf("%s: %d distinct indices, want %d", v.Name, len(seen), v.Dimensions())
		}
	}
}

func TestPerspectiveIsColourRelative(t *testing.T) {
	v := TwelveMensMorris
	for sq := Square(0); sq < SquareNB; sq++ {
		if MakeIndex(v, White, WhitePiece, sq) != MakeIndex(v, Black, BlackPiece, sq) {
			t.Errorf("own piece on %d encodes differently per perspective", sq)
		}
		if MakeIndex(v, White, BlackPiece, sq) != MakeIndex(v, Black, WhitePiece, sq) {
			t.Errorf("enemy piece on %d encodes differently per perspective", sq)
		}
		if MakeIndex(v, White, BanPiece, sq) != MakeIndex(v, Black, BanPiece, sq) {
			t.Errorf("ban mark on %d depends on perspective", sq)
		}
	}
	if HandIndex(v, White, Black, 3) != HandIndex(v, Black, White, 3) {
		t.Errorf("hand slot encodes differently per perspective")
	}
}

func TestActiveIndicesStartPosition(t *testing.T) {
	v := NineMensMorris
	b := &testBoard{hand: [ColorNB]int{9, 9}}

	idx, err := ActiveIndices(v, b, White)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) != 18 {
		t.Errorf("start position has %d active features, want 18", len(idx))
	}
	if len(idx) > v.MaxActiveDimensions() {
		t.Errorf("active features exceed bound")
	}
}

// applyDelta mimics an incremental update on a sorted index set.
func applyDelta(t *testing.T, v Variant, p Color, active []int, d *DirtyPiece) []int {
	var removed, added IndexList
	ChangedIndices(v, p, d, &removed, &added)

	set := make(map[int]bool)
	for _, i := range active {
		set[i] = true
	}
	for _, i := range removed.Slice() {
		if !set[i] {
			t.Fatalf("delta removes inactive feature %d", i)
		}
		delete(set, i)
	}
	for _, i := range added.Slice() {
		if set[i] {
			t.Fatalf("delta adds active feature %d", i)
		}
		set[i] = true
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func sorted(t *testing.T, v Variant, b Board, p Color) []int {
	idx, err := ActiveIndices(v, b, p)
	if err != nil {
		t.Fatal(err)
	}
	sort.Ints(idx)
	return idx
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRemovalLeavesBanMark(t *testing.T) {
	v := TwelveMensMorris
	b := &testBoard{hand: [ColorNB]int{11, 11}}
	b.squares[5] = WhitePiece
	b.squares[9] = BlackPiece
	pre := [ColorNB][]int{sorted(t, v, b, White), sorted(t, v, b, Black)}

	var d DirtyPiece
	d.Add(BlackPiece, 9, SquareNone, 0)
	d.Add(BanPiece, SquareNone, 9, 0)
	b.squares[9] = BanPiece

	for p := White; p < ColorNB; p++ {
		got := applyDelta(t, v, p, pre[p], &d)
		want := sorted(t, v, b, p)
		if !equalInts(got, want) {
			t.Errorf("perspective %v: incremental %v, refresh %v", p, got, want)
		}
	}
}

func TestPlaceDelta(t *testing.T) {
	v := NineMensMorris
	b := &testBoard{hand: [ColorNB]int{9, 9}}
	pre := [ColorNB][]int{sorted(t, v, b, White), sorted(t, v, b, Black)}

	var d DirtyPiece
	d.Add(WhitePiece, SquareHand, 0, b.hand[White])
	b.hand[White]--
	b.squares[0] = WhitePiece

	for p := White; p < ColorNB; p++ {
		got := applyDelta(t, v, p, pre[p], &d)
		want := sorted(t, v, b, p)
		if !equalInts(got, want) {
			t.Errorf("perspective %v: incremental %v, refresh %v", p, got, want)
		}
	}
}

func TestHandRoundTripDelta(t *testing.T) {
	v := NineMensMorris
	b := &testBoard{hand: [ColorNB]int{3, 2}}
	b.squares[4] = BlackPiece
	pre := sorted(t, v, b, White)

	// A piece returns to its owner's hand.
	var d DirtyPiece
	d.Add(BlackPiece, 4, SquareHand, b.hand[Black])
	b.squares[4] = NoPiece
	b.hand[Black]++

	got := applyDelta(t, v, White, pre, &d)
	if want := sorted(t, v, b, White); !equalInts(got, want) {
		t.Errorf("incremental %v, refresh %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	b := &testBoard{hand: [ColorNB]int{9, 9}}
	if err := Validate(NineMensMorris, b); err != nil {
		t.Errorf("start position rejected: %v", err)
	}

	b.squares[3] = BanPiece
	if err := Validate(NineMensMorris, b); !errors.Is(err, ErrInvalidBoardState) {
		t.Errorf("ban mark in nine men's morris: got %v", err)
	}
	if err := Validate(TwelveMensMorris, b); err != nil {
		t.Errorf("ban mark in twelve men's morris rejected: %v", err)
	}

	b.squares[3] = WhitePiece
	if err := Validate(NineMensMorris, b); !errors.Is(err, ErrInvalidBoardState) {
		t.Errorf("ten white pieces accepted: %v", err)
	}

	b.squares[3] = Piece(7)
	if _, err := ActiveIndices(NineMensMorris, b, White); !errors.Is(err, ErrInvalidBoardState) {
		t.Errorf("unknown piece code accepted: %v", err)
	}
}

func TestValidateDelta(t *testing.T) {
	tests := []struct {
		name    string
		v       Variant
		pc      Piece
		from    Square
		to      Square
		hand    int
		wantErr bool
	}{
		{"place", NineMensMorris, WhitePiece, SquareHand, 5, 9, false},
		{"slide", NineMensMorris, BlackPiece, 5, 6, 0, false},
		{"capture", NineMensMorris, BlackPiece, 5, SquareNone, 0, false},
		{"ban mark in twelve", TwelveMensMorris, BanPiece, SquareNone, 3, 0, false},
		{"ban mark in nine", NineMensMorris, BanPiece, SquareNone, 3, 0, true},
		{"ban mark into a hand", TwelveMensMorris, BanPiece, 3, SquareHand, 0, true},
		{"unknown piece", NineMensMorris, Piece(7), SquareNone, 3, 0, true},
		{"off-board endpoint", NineMensMorris, WhitePiece, 5, SquareNB, 0, true},
		{"empty hand", NineMensMorris, WhitePiece, SquareHand, 5, 0, true},
		{"full hand", NineMensMorris, WhitePiece, 5, SquareHand, 9, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d DirtyPiece
			d.Add(tc.pc, tc.from, tc.to, tc.hand)
			err := ValidateDelta(tc.v, &d)
			if tc.wantErr != (err != nil) {
				t.Errorf("ValidateDelta = %v, want error %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidBoardState) {
				t.Errorf("error %v does not wrap ErrInvalidBoardState", err)
			}
		})
	}
}

func TestDirtyPieceOverflow(t *testing.T) {
	var d DirtyPiece
	for i := 0; i < MaxDirtyPieces; i++ {
		d.Add(BanPiece, Square(i), SquareNone, 0)
	}
	if d.Overflow {
		t.Fatalf("overflow flagged at capacity")
	}
	d.Add(BanPiece, 20, SquareNone, 0)
	if !d.Overflow || d.Num != MaxDirtyPieces {
		t.Errorf("Overflow=%v Num=%d after exceeding capacity", d.Overflow, d.Num)
	}
	d.Reset()
	if d.Overflow || d.Num != 0 {
		t.Errorf("Reset left Overflow=%v Num=%d", d.Overflow, d.Num)
	}
}

func TestVariantHash(t *testing.T) {
	if NineMensMorris.HashValue() == TwelveMensMorris.HashValue() {
		t.Errorf("variants with different feature layouts share a hash")
	}
	v := NineMensMorris
	v.HasDiagonals = true
	if v.HashValue() != NineMensMorris.HashValue() {
		t.Errorf("diagonals changed the feature hash")
	}
	if _, err := VariantByName("chess"); err == nil {
		t.Errorf("unknown variant accepted")
	}
}
