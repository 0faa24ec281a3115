// Package common holds the fixed-point constants and binary I/O helpers shared
// by the network layers and the weight store.
package common

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Quantization constants.
const (
	OutputScale     = 16
	WeightScaleBits = 6
	CacheLineSize   = 64
	MaxSimdWidth    = 32
)

// Leb128Magic prefixes a parameter section compressed with signed LEB128.
const Leb128Magic = "COMPRESSED_LEB128"

// CeilToMultiple rounds n up to a multiple of base.
func CeilToMultiple[T constraints.Integer](n, base T) T {
	return (n + base - 1) / base * base
}

// Clamp limits x to [lo, hi].
func Clamp[T constraints.Integer](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ReadLittleEndian reads a single little-endian integer.
func ReadLittleEndian[T constraints.Integer](r io.Reader) (T, error) {
	var v T
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// ReadLittleEndianSlice fills out from a little-endian stream.
func ReadLittleEndianSlice[T constraints.Integer](r io.Reader, out []T) error {
	return binary.Read(r, binary.LittleEndian, out)
}

// WriteLittleEndian writes a single little-endian integer.
func WriteLittleEndian[T constraints.Integer](w io.Writer, v T) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// WriteLittleEndianSlice writes values in little-endian order.
func WriteLittleEndianSlice[T constraints.Integer](w io.Writer, values []T) error {
	return binary.Write(w, binary.LittleEndian, values)
}

// ReadLEB128 decodes len(out) signed integers from a LEB128 section:
// the magic string, a u32 byte count, then the encoded bytes.
func ReadLEB128[T int16 | int32](r io.Reader, out []T) error {
	magic := make([]byte, len(Leb128Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read LEB128 magic: %w", err)
	}
	if string(magic) != Leb128Magic {
		return fmt.Errorf("invalid LEB128 magic %q", magic)
	}

	count, err := ReadLittleEndian[uint32](r)
	if err != nil {
		return fmt.Errorf("read LEB128 byte count: %w", err)
	}

	var zero T
	bits := uint(8 * unsafe.Sizeof(zero))
	if limit := uint64(len(out)) * uint64((bits+6)/7); uint64(count) > limit {
		return fmt.Errorf("%w: %d bytes for %d values", ErrLEB128Corrupt, count, len(out))
	}
	data := make([]byte, count)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read LEB128 data: %w", err)
	}

	pos := 0
	for i := range out {
		var result T
		var shift uint
		for {
			if pos == len(data) {
				return fmt.Errorf("LEB128 data ends after %d of %d values: %w", i, len(out), io.ErrUnexpectedEOF)
			}
			b := data[pos]
			pos++
			result |= T(b&0x7f) << shift
			shift += 7
			if b&0x80 == 0 {
				if shift < bits && b&0x40 != 0 {
					result |= ^T(0) << shift
				}
				break
			}
		}
		out[i] = result
	}

	if pos != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrLEB128Corrupt, len(data)-pos)
	}
	return nil
}

// ErrLEB128Corrupt marks a LEB128 section whose byte count does not fit
// the values it holds.
var ErrLEB128Corrupt = errors.New("corrupt LEB128 section")

// WriteLEB128 encodes values as a LEB128 section readable by ReadLEB128.
func WriteLEB128[T int16 | int32](w io.Writer, values []T) error {
	encoded := make([]byte, 0, len(values)*2)
	for _, value := range values {
		v := value
		for {
			b := byte(v & 0x7f)
			v >>= 7
			if (b&0x40 == 0 && v == 0) || (b&0x40 != 0 && v == -1) {
				encoded = append(encoded, b)
				break
			}
			encoded = append(encoded, b|0x80)
		}
	}

	if _, err := io.WriteString(w, Leb128Magic); err != nil {
		return fmt.Errorf("write LEB128 magic: %w", err)
	}
	if err := WriteLittleEndian(w, uint32(len(encoded))); err != nil {
		return fmt.Errorf("write LEB128 byte count: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("write LEB128 data: %w", err)
	}
	return nil
}
