package features

import (
	"fmt"
	"math/bits"
	"strings"
)

// Variant is the immutable rule set a network is built for.
type Variant struct {
	Name          string
	PiecesPerSide int
	HasDiagonals  bool
	HasBanPoints  bool
	MayFly        bool
	FlyPieceCount int
}

var (
	NineMensMorris = Variant{
		Name:          "nine",
		PiecesPerSide: 9,
		MayFly:        true,
		FlyPieceCount: 3,
	}
	TwelveMensMorris = Variant{
		Name:          "twelve",
		PiecesPerSide: 12,
		HasDiagonals:  true,
		HasBanPoints:  true,
		MayFly:        true,
		FlyPieceCount: 3,
	}
)

// VariantByName looks up a preset by name.
func VariantByName(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "", "nine", "9", "ninemensmorris":
		return NineMensMorris, nil
	case "twelve", "12", "twelvemensmorris":
		return TwelveMensMorris, nil
	}
	return Variant{}, fmt.Errorf("unknown variant %q", name)
}

// IsZero reports whether v is the zero value.
func (v Variant) IsZero() bool { return v.PiecesPerSide == 0 }

// Dimensions is the size of the feature universe.
func (v Variant) Dimensions() int {
	return v.handOffset() + 2*v.PiecesPerSide
}

// MaxActiveDimensions bounds the number of simultaneously active features.
func (v Variant) MaxActiveDimensions() int {
	return SquareNB + 2*v.PiecesPerSide
}

func (v Variant) handOffset() int {
	if v.HasBanPoints {
		return 3 * SquareNB
	}
	return 2 * SquareNB
}

// HashValue identifies the feature layout. Rules that do not change the
// encoding do not take part.
func (v Variant) HashValue() uint32 {
	h := uint32(0x5F134CB8)
	h = mix(h, uint32(v.Dimensions()))
	h = mix(h, uint32(v.PiecesPerSide))
	if v.HasBanPoints {
		h = mix(h, 1)
	}
	return h
}

func mix(h, x uint32) uint32 {
	return bits.RotateLeft32(h, 7) ^ (x * 0x9E3779B1)
}
