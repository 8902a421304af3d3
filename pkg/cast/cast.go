// Package cast converts tensors between element kinds.
//
// Float-to-integer conversions truncate toward zero and saturate, integer-to-integer
// conversions wrap, FLOAT16 rounds to nearest even and BFLOAT16 truncates the low
// 16 bits of the float32 pattern. STRING conversions format and parse decimal text.
package cast

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/goldcase/internal/half"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

var ErrMalformedLiteral = errors.New("cast: malformed numeric literal")

// ParseError reports a STRING element that is not a valid literal of the target kind.
type ParseError struct {
	Index int
	Text  string
	Kind  dtype.ElementKind
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cast: element %d: %q is not a valid %v literal: %v", e.Index, e.Text, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformedLiteral, e.Err}
}

// Cast converts x to kind to. Casting to the same kind returns an equal copy.
func Cast(x *tensor.Tensor, to dtype.ElementKind) (*tensor.Tensor, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("cast: %w: %v", dtype.ErrUnknownKind, to)
	}
	from := x.Kind()
	shape := x.Shape()
	switch {
	case from == to:
		return x.Reshape(shape...)
	case from == dtype.String:
		v, err := tensor.Values[string](x)
		if err != nil {
			return nil, err
		}
		return parseStrings(v, to, shape)
	case to == dtype.String:
		s, err := formatElements(x)
		if err != nil {
			return nil, err
		}
		return tensor.New(dtype.String, shape, s)
	case from == dtype.Float && to == dtype.BFloat16:
		v, err := tensor.Values[float32](x)
		if err != nil {
			return nil, err
		}
		return tensor.New(dtype.BFloat16, shape, half.TruncateBFloat16Slice(v))
	case from == dtype.BFloat16 && to == dtype.Float:
		v, err := tensor.Values[uint16](x)
		if err != nil {
			return nil, err
		}
		return tensor.New(dtype.Float, shape, half.ExtendBFloat16Slice(v))
	case from.IsFloat():
		v, err := x.Float64s()
		if err != nil {
			return nil, err
		}
		return fromFloats(to, shape, v)
	}

	bits, unsigned, err := integerBits(x)
	if err != nil {
		return nil, err
	}
	if to.IsFloat() {
		v := make([]float64, len(bits))
		for i, b := range bits {
			if unsigned {
				v[i] = float64(uint64(b))
			} else {
				v[i] = float64(b)
			}
		}
		return fromFloats(to, shape, v)
	}
	return fromBits(to, shape, bits)
}

// integerBits returns integer or BOOL elements as 64-bit two's complement patterns.
func integerBits(x *tensor.Tensor) ([]int64, bool, error) {
	out := make([]int64, x.Len())
	unsigned := !x.Kind().Descriptor().Signed
	switch v := x.Data().(type) {
	case []bool:
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
	case []uint8:
		fill(out, v)
	case []int8:
		fill(out, v)
	case []uint16:
		fill(out, v)
	case []int16:
		fill(out, v)
	case []int32:
		fill(out, v)
	case []int64:
		copy(out, v)
	case []uint32:
		fill(out, v)
	case []uint64:
		fill(out, v)
	default:
		return nil, false, fmt.Errorf("cast: %w: %v", tensor.ErrKind, x.Kind())
	}
	return out, unsigned, nil
}

type integer interface {
	uint8 | int8 | uint16 | int16 | int32 | int64 | uint32 | uint64
}

func fill[T integer](dst []int64, src []T) {
	for i, v := range src {
		dst[i] = int64(v)
	}
}

func wrap[T integer](bits []int64) []T {
	out := make([]T, len(bits))
	for i, b := range bits {
		out[i] = T(b)
	}
	return out
}

// fromBits builds an integer or BOOL tensor, wrapping to the target width.
func fromBits(to dtype.ElementKind, shape []int, bits []int64) (*tensor.Tensor, error) {
	switch to {
	case dtype.Bool:
		out := make([]bool, len(bits))
		for i, b := range bits {
			out[i] = b != 0
		}
		return tensor.New(to, shape, out)
	case dtype.Uint8:
		return tensor.New(to, shape, wrap[uint8](bits))
	case dtype.Int8:
		return tensor.New(to, shape, wrap[int8](bits))
	case dtype.Uint16:
		return tensor.New(to, shape, wrap[uint16](bits))
	case dtype.Int16:
		return tensor.New(to, shape, wrap[int16](bits))
	case dtype.Int32:
		return tensor.New(to, shape, wrap[int32](bits))
	case dtype.Int64:
		return tensor.New(to, shape, wrap[int64](bits))
	case dtype.Uint32:
		return tensor.New(to, shape, wrap[uint32](bits))
	case dtype.Uint64:
		return tensor.New(to, shape, wrap[uint64](bits))
	}
	return nil, fmt.Errorf("cast: %w: cannot build %v from integers", tensor.ErrKind, to)
}

// fromFloats builds a tensor of kind to from float64 values.
func fromFloats(to dtype.ElementKind, shape []int, v []float64) (*tensor.Tensor, error) {
	switch to {
	case dtype.Float:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return tensor.New(to, shape, out)
	case dtype.Double:
		return tensor.New(to, shape, v)
	case dtype.Float16:
		out := make([]uint16, len(v))
		for i, f := range v {
			out[i] = half.Float16FromFloat64(f)
		}
		return tensor.New(to, shape, out)
	case dtype.BFloat16:
		out := make([]uint16, len(v))
		for i, f := range v {
			out[i] = half.BFloat16Trunc(float32(f))
		}
		return tensor.New(to, shape, out)
	case dtype.Bool:
		out := make([]bool, len(v))
		for i, f := range v {
			out[i] = f != 0
		}
		return tensor.New(to, shape, out)
	}
	if !to.IsInteger() {
		return nil, fmt.Errorf("cast: %w: cannot build %v from floats", tensor.ErrKind, to)
	}
	bits := make([]int64, len(v))
	for i, f := range v {
		bits[i] = truncSaturate(f, to)
	}
	return fromBits(to, shape, bits)
}

// truncSaturate truncates f toward zero and clamps it into kind, returning the
// two's complement pattern. NaN becomes 0.
func truncSaturate(f float64, kind dtype.ElementKind) int64 {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if kind.Descriptor().Signed {
		lo, hi := kind.MinInt(), kind.MaxInt()
		switch {
		case f <= float64(lo):
			return lo
		case f >= float64(hi):
			return hi
		}
		return int64(f)
	}
	hi := kind.MaxUint()
	switch {
	case f <= 0:
		return 0
	case f >= float64(hi):
		return int64(hi)
	}
	return int64(uint64(f))
}
