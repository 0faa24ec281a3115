package nnue

import (
	"bufio"
	"fmt"
	"io"

	"github.com/hailam/millnnue/internal/memory"
	"github.com/hailam/millnnue/nnue/common"
	"github.com/hailam/millnnue/nnue/features"
)

// FeatureTransformer projects sparse features into the accumulators.
// Weights are stored feature-major: row idx holds HalfDimensions int16
// values and PSQTBuckets int32 values.
type FeatureTransformer struct {
	variant features.Variant

	HalfDimensions  int
	InputDimensions int
	PSQTBuckets     int

	Biases      []int16
	Weights     []int16
	PSQTWeights []int32
}

func newFeatureTransformer(v features.Variant, t Topology) *FeatureTransformer {
	return &FeatureTransformer{
		variant:         v,
		HalfDimensions:  t.TransformedDimensions,
		InputDimensions: v.Dimensions(),
		PSQTBuckets:     t.PSQTBuckets,
	}
}

// HashValue identifies the feature set and output width.
func (ft *FeatureTransformer) HashValue() uint32 {
	return ft.variant.HashValue() ^ uint32(ft.HalfDimensions*2)
}

func (ft *FeatureTransformer) reserve(a *memory.Arena) {
	ft.Biases = memory.Carve[int16](a, ft.HalfDimensions)
	ft.Weights = memory.Carve[int16](a, ft.HalfDimensions*ft.InputDimensions)
	ft.PSQTWeights = memory.Carve[int32](a, ft.PSQTBuckets*ft.InputDimensions)
}

func (ft *FeatureTransformer) readParameters(r *bufio.Reader) error {
	if err := readSection(r, ft.Biases); err != nil {
		return fmt.Errorf("biases: %w", err)
	}
	if err := readSection(r, ft.Weights); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if err := readSection(r, ft.PSQTWeights); err != nil {
		return fmt.Errorf("psqt weights: %w", err)
	}
	return nil
}

func (ft *FeatureTransformer) writeParameters(w io.Writer, leb128 bool) error {
	if err := writeSection(w, ft.Biases, leb128); err != nil {
		return err
	}
	if err := writeSection(w, ft.Weights, leb128); err != nil {
		return err
	}
	return writeSection(w, ft.PSQTWeights, leb128)
}

// readSection reads a raw little-endian or LEB128-compressed array.
func readSection[T int16 | int32](r *bufio.Reader, out []T) error {
	if magic, err := r.Peek(len(common.Leb128Magic)); err == nil && string(magic) == common.Leb128Magic {
		return common.ReadLEB128(r, out)
	}
	return common.ReadLittleEndianSlice(r, out)
}

func writeSection[T int16 | int32](w io.Writer, values []T, leb128 bool) error {
	if leb128 {
		return common.WriteLEB128(w, values)
	}
	return common.WriteLittleEndianSlice(w, values)
}

func (ft *FeatureTransformer) addFeature(acc *Accumulator, p features.Color, idx int) {
	if acc.active[p].Has(idx) {
		inconsistent("add feature", "feature %d already active for %v", idx, p)
	}
	acc.active[p].Set(idx)

	row := ft.Weights[idx*ft.HalfDimensions : (idx+1)*ft.HalfDimensions]
	vec := acc.Accumulation[p]
	for i, w := range row {
		vec[i] += w
	}
	psqt := ft.PSQTWeights[idx*ft.PSQTBuckets : (idx+1)*ft.PSQTBuckets]
	for i, w := range psqt {
		acc.PSQTAccumulation[p][i] += w
	}
}

func (ft *FeatureTransformer) subFeature(acc *Accumulator, p features.Color, idx int) {
	if !acc.active[p].Has(idx) {
		inconsistent("remove feature", "feature %d not active for %v", idx, p)
	}
	acc.active[p].Clear(idx)

	row := ft.Weights[idx*ft.HalfDimensions : (idx+1)*ft.HalfDimensions]
	vec := acc.Accumulation[p]
	for i, w := range row {
		vec[i] -= w
	}
	psqt := ft.PSQTWeights[idx*ft.PSQTBuckets : (idx+1)*ft.PSQTBuckets]
	for i, w := range psqt {
		acc.PSQTAccumulation[p][i] -= w
	}
}

// refresh rebuilds acc for perspective p from the board.
func (ft *FeatureTransformer) refresh(acc *Accumulator, b features.Board, p features.Color) {
	if debugChecks {
		if err := features.Validate(ft.variant, b); err != nil {
			panic(&ConsistencyError{Op: "refresh", Detail: "board rejected", Err: err})
		}
	}

	var active features.IndexList
	features.AppendActiveIndices(ft.variant, b, p, &active)

	copy(acc.Accumulation[p], ft.Biases)
	clear(acc.PSQTAccumulation[p])
	acc.active[p] = features.ActiveSet{}
	for _, idx := range active.Slice() {
		ft.addFeature(acc, p, idx)
	}
	acc.Computed[p] = true
}

// update derives cur from its computed parent prev by applying cur's delta.
func (ft *FeatureTransformer) update(prev, cur *Accumulator, p features.Color) {
	if debugChecks {
		if err := features.ValidateDelta(ft.variant, &cur.dirty); err != nil {
			panic(&ConsistencyError{Op: "update", Detail: "delta rejected", Err: err})
		}
	}

	var removed, added features.IndexList
	features.ChangedIndices(ft.variant, p, &cur.dirty, &removed, &added)

	copy(cur.Accumulation[p], prev.Accumulation[p])
	copy(cur.PSQTAccumulation[p], prev.PSQTAccumulation[p])
	cur.active[p] = prev.active[p]

	for _, idx := range removed.Slice() {
		ft.subFeature(cur, p, idx)
	}
	for _, idx := range added.Slice() {
		ft.addFeature(cur, p, idx)
	}
	cur.Computed[p] = true
}

// transform writes clamp(acc, 0, 127) for the mover then the opponent into
// out and returns the bucket's PSQT term from the mover's view.
func (ft *FeatureTransformer) transform(acc *Accumulator, stm features.Color, bucket int, out []uint8) int32 {
	perspectives := [2]features.Color{stm, stm.Opp()}
	for half, p := range perspectives {
		vec := acc.Vector(p)
		dst := out[half*ft.HalfDimensions : (half+1)*ft.HalfDimensions]
		for i, v := range vec {
			dst[i] = uint8(common.Clamp(v, 0, 127))
		}
	}
	return (acc.PSQT(stm)[bucket] - acc.PSQT(stm.Opp())[bucket]) / 2
}
