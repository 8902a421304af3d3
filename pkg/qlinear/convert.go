package qlinear

import (
	"fmt"
	"math"
	"math/big"

	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

// quantizeInput returns x as float32. INT32 inputs are converted first.
func quantizeInput(x *tensor.Tensor) ([]float32, error) {
	switch x.Kind() {
	case dtype.Float:
		return tensor.Values[float32](x)
	case dtype.Int32:
		v, err := tensor.Values[int32](x)
		if err != nil {
			return nil, err
		}
		out := make([]float32, len(v))
		for i, n := range v {
			out[i] = float32(n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: quantize input must be FLOAT or INT32, got %v", ErrKind, x.Kind())
}

// widen returns the elements of a signed or narrow unsigned integer tensor as
// int64. UINT64 does not fit and is handled by the caller.
func widen(t *tensor.Tensor) ([]int64, error) {
	out := make([]int64, t.Len())
	switch v := t.Data().(type) {
	case []uint8:
		for i, n := range v {
			out[i] = int64(n)
		}
	case []int8:
		for i, n := range v {
			out[i] = int64(n)
		}
	case []uint16:
		for i, n := range v {
			out[i] = int64(n)
		}
	case []int16:
		for i, n := range v {
			out[i] = int64(n)
		}
	case []int32:
		for i, n := range v {
			out[i] = int64(n)
		}
	case []uint32:
		for i, n := range v {
			out[i] = int64(n)
		}
	case []int64:
		copy(out, v)
	default:
		return nil, fmt.Errorf("%w: %v does not widen to int64", ErrKind, t.Kind())
	}
	return out, nil
}

// difference returns a - b rounded once to float32. The magnitude is computed
// in uint64, which holds the distance between any two int64 or uint64 values.
func difference[T int64 | uint64](a, b T) float32 {
	if a >= b {
		return float32(uint64(a) - uint64(b))
	}
	return -float32(uint64(b) - uint64(a))
}

// offsetWide adds the zero point to rounded values in exact integer arithmetic
// and saturates into INT64 or UINT64. float64 cannot hold every 64-bit zero
// point, so the narrow path's float sum is not used here.
func offsetWide(kind dtype.ElementKind, shape []int, r []float64, zeroPoint *tensor.Tensor, p plan) (*tensor.Tensor, error) {
	lo, hi := new(big.Int), new(big.Int)
	switch kind {
	case dtype.Int64:
		lo.SetInt64(kind.MinInt())
		hi.SetInt64(kind.MaxInt())
	case dtype.Uint64:
		hi.SetUint64(kind.MaxUint())
	default:
		return nil, fmt.Errorf("%w: %v is not a 64-bit integer kind", ErrKind, kind)
	}
	zps, err := bigValues(zeroPoint)
	if err != nil {
		return nil, err
	}

	var sum big.Int
	saturated := func(i int) *big.Int {
		v := r[i]
		if math.IsInf(v, 0) {
			if v > 0 {
				return hi
			}
			return lo
		}
		new(big.Float).SetFloat64(v).Int(&sum)
		sum.Add(&sum, zps[p.group(i)])
		if sum.Cmp(lo) < 0 {
			return lo
		}
		if sum.Cmp(hi) > 0 {
			return hi
		}
		return &sum
	}

	if kind == dtype.Uint64 {
		out := make([]uint64, len(r))
		for i := range out {
			out[i] = saturated(i).Uint64()
		}
		return tensor.New(kind, shape, out)
	}
	out := make([]int64, len(r))
	for i := range out {
		out[i] = saturated(i).Int64()
	}
	return tensor.New(kind, shape, out)
}

// bigValues returns a 64-bit zero point tensor as big integers. A nil tensor is
// a single zero.
func bigValues(t *tensor.Tensor) ([]*big.Int, error) {
	if t == nil {
		return []*big.Int{new(big.Int)}, nil
	}
	switch v := t.Data().(type) {
	case []int64:
		out := make([]*big.Int, len(v))
		for i, n := range v {
			out[i] = new(big.Int).SetInt64(n)
		}
		return out, nil
	case []uint64:
		out := make([]*big.Int, len(v))
		for i, n := range v {
			out[i] = new(big.Int).SetUint64(n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %v is not a 64-bit integer kind", ErrKind, t.Kind())
}

func saturateSigned(v float64, kind dtype.ElementKind) int64 {
	lo, hi := kind.MinInt(), kind.MaxInt()
	switch {
	case math.IsNaN(v):
		return 0
	case v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return int64(v)
}

func saturateUnsigned(v float64, kind dtype.ElementKind) uint64 {
	hi := kind.MaxUint()
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= float64(hi):
		return hi
	}
	return uint64(v)
}

// saturateInto clamps integral values into kind and builds the output tensor.
func saturateInto(kind dtype.ElementKind, shape []int, q []float64) (*tensor.Tensor, error) {
	switch kind {
	case dtype.Uint8:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) uint8 { return uint8(saturateUnsigned(v, kind)) }))
	case dtype.Int8:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) int8 { return int8(saturateSigned(v, kind)) }))
	case dtype.Uint16:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) uint16 { return uint16(saturateUnsigned(v, kind)) }))
	case dtype.Int16:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) int16 { return int16(saturateSigned(v, kind)) }))
	case dtype.Int32:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) int32 { return int32(saturateSigned(v, kind)) }))
	case dtype.Uint32:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) uint32 { return uint32(saturateUnsigned(v, kind)) }))
	case dtype.Int64:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) int64 { return saturateSigned(v, kind) }))
	case dtype.Uint64:
		return tensor.New(kind, shape, mapSlice(q, func(v float64) uint64 { return saturateUnsigned(v, kind) }))
	}
	return nil, fmt.Errorf("%w: %v is not an integer kind", ErrKind, kind)
}

func mapSlice[T any](in []float64, f func(float64) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
