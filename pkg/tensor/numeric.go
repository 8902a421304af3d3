package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/samcharles93/goldcase/internal/half"
	"github.com/samcharles93/goldcase/pkg/dtype"
)

// Float64s decodes every element of a numeric tensor to float64. Half kinds are
// decoded from their bit patterns and BOOL maps to 0/1.
func (t *Tensor) Float64s() ([]float64, error) {
	out := make([]float64, t.Len())
	switch v := t.data.(type) {
	case []float32:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []float64:
		copy(out, v)
	case []uint16:
		for i, x := range v {
			switch t.kind {
			case dtype.Float16:
				out[i] = float64(half.Float16ToFloat32(x))
			case dtype.BFloat16:
				out[i] = float64(half.BFloat16ToFloat32(x))
			default:
				out[i] = float64(x)
			}
		}
	case []uint8:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []int8:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []int16:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []int32:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []int64:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []uint32:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []uint64:
		for i, x := range v {
			out[i] = float64(x)
		}
	case []bool:
		for i, x := range v {
			if x {
				out[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("%w: %v is not numeric", ErrKind, t.kind)
	}
	return out, nil
}

// Bytes encodes the elements little-endian, BOOL as one byte each.
func (t *Tensor) Bytes() ([]byte, error) {
	size := t.kind.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %v has no fixed-width encoding", ErrKind, t.kind)
	}
	raw := make([]byte, t.Len()*size)
	le := binary.LittleEndian
	switch v := t.data.(type) {
	case []float32:
		for i, x := range v {
			le.PutUint32(raw[i*4:], math.Float32bits(x))
		}
	case []float64:
		for i, x := range v {
			le.PutUint64(raw[i*8:], math.Float64bits(x))
		}
	case []uint16:
		for i, x := range v {
			le.PutUint16(raw[i*2:], x)
		}
	case []uint8:
		copy(raw, v)
	case []int8:
		for i, x := range v {
			raw[i] = byte(x)
		}
	case []int16:
		for i, x := range v {
			le.PutUint16(raw[i*2:], uint16(x))
		}
	case []int32:
		for i, x := range v {
			le.PutUint32(raw[i*4:], uint32(x))
		}
	case []int64:
		for i, x := range v {
			le.PutUint64(raw[i*8:], uint64(x))
		}
	case []uint32:
		for i, x := range v {
			le.PutUint32(raw[i*4:], x)
		}
	case []uint64:
		for i, x := range v {
			le.PutUint64(raw[i*8:], x)
		}
	case []bool:
		for i, x := range v {
			if x {
				raw[i] = 1
			}
		}
	}
	return raw, nil
}

// FromBytes decodes a little-endian buffer produced by Bytes.
func FromBytes(kind dtype.ElementKind, shape []int, raw []byte) (*Tensor, error) {
	size := kind.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %v has no fixed-width encoding", ErrKind, kind)
	}
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if len(raw) != n*size {
		return nil, fmt.Errorf("%w: %v%v needs %d bytes, got %d", ErrShape, kind, shape, n*size, len(raw))
	}
	le := binary.LittleEndian
	switch kind.Descriptor().Storage {
	case dtype.StorageFloat32:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) }, 4))
	case dtype.StorageFloat64:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }, 8))
	case dtype.StorageUint16:
		return New(kind, shape, decodeLE(raw, n, le.Uint16, 2))
	case dtype.StorageUint8:
		return New(kind, shape, raw)
	case dtype.StorageInt8:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) int8 { return int8(b[0]) }, 1))
	case dtype.StorageInt16:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) int16 { return int16(le.Uint16(b)) }, 2))
	case dtype.StorageInt32:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) int32 { return int32(le.Uint32(b)) }, 4))
	case dtype.StorageInt64:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) int64 { return int64(le.Uint64(b)) }, 8))
	case dtype.StorageUint32:
		return New(kind, shape, decodeLE(raw, n, le.Uint32, 4))
	case dtype.StorageUint64:
		return New(kind, shape, decodeLE(raw, n, le.Uint64, 8))
	case dtype.StorageBool:
		return New(kind, shape, decodeLE(raw, n, func(b []byte) bool { return b[0] != 0 }, 1))
	}
	return nil, fmt.Errorf("%w: %v", ErrKind, kind)
}

func decodeLE[T Element](raw []byte, n int, get func([]byte) T, size int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = get(raw[i*size:])
	}
	return out
}

// Equal reports whether a and b have the same kind, shape and bit-identical
// elements. NaNs compare equal to NaNs with the same bit pattern.
func Equal(a, b *Tensor) bool {
	if a.kind != b.kind || !slices.Equal(a.shape, b.shape) {
		return false
	}
	switch av := a.data.(type) {
	case []float32:
		bv := b.data.([]float32)
		for i := range av {
			if math.Float32bits(av[i]) != math.Float32bits(bv[i]) {
				return false
			}
		}
		return true
	case []float64:
		bv := b.data.([]float64)
		for i := range av {
			if math.Float64bits(av[i]) != math.Float64bits(bv[i]) {
				return false
			}
		}
		return true
	case []string:
		return slices.Equal(av, b.data.([]string))
	case []bool:
		return slices.Equal(av, b.data.([]bool))
	}
	ab, errA := a.Bytes()
	bb, errB := b.Bytes()
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

// AllClose compares float tensors with |a-b| <= atol + rtol*|b|. NaNs must line
// up and infinities must match exactly. Non-float kinds fall back to Equal.
func AllClose(a, b *Tensor, rtol, atol float64) bool {
	if a.kind != b.kind || !slices.Equal(a.shape, b.shape) {
		return false
	}
	if !a.kind.IsFloat() {
		return Equal(a, b)
	}
	av, err := a.Float64s()
	if err != nil {
		return false
	}
	bv, err := b.Float64s()
	if err != nil {
		return false
	}
	for i := range av {
		x, y := av[i], bv[i]
		switch {
		case math.IsNaN(x) || math.IsNaN(y):
			if !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
		case math.IsInf(x, 0) || math.IsInf(y, 0):
			if x != y {
				return false
			}
		case math.Abs(x-y) > atol+rtol*math.Abs(y):
			return false
		}
	}
	return true
}

