// Package qlinear implements affine quantization between float32 tensors and
// integer tensors:
//
//	quantize:   q = saturate(round(x / scale) + zero_point)
//	dequantize: y = (q - zero_point) * scale
//
// Scale and zero point are either scalars or one value per slice along an axis,
// selected explicitly with a Broadcast.
package qlinear

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

var (
	ErrKind      = errors.New("qlinear: unsupported element kind")
	ErrBroadcast = errors.New("qlinear: scale/zero point do not broadcast")
)

// Rounding selects how x/scale is rounded to an integer.
type Rounding uint8

const (
	// HalfToEven rounds ties to the even neighbour (2.5 -> 2, 3.5 -> 4).
	HalfToEven Rounding = iota
	// HalfAwayFromZero rounds ties away from zero (0.5 -> 1, -2.5 -> -3).
	HalfAwayFromZero
)

func (r Rounding) String() string {
	switch r {
	case HalfToEven:
		return "half_to_even"
	case HalfAwayFromZero:
		return "half_away_from_zero"
	}
	return fmt.Sprintf("Rounding(%d)", uint8(r))
}

// ParseRounding is the inverse of Rounding.String. An empty name is HalfToEven.
func ParseRounding(name string) (Rounding, error) {
	switch name {
	case "", "half_to_even":
		return HalfToEven, nil
	case "half_away_from_zero":
		return HalfAwayFromZero, nil
	}
	return 0, fmt.Errorf("qlinear: unknown rounding %q", name)
}

func (r Rounding) apply(v float64) float64 {
	if r == HalfAwayFromZero {
		return math.Round(v)
	}
	return math.RoundToEven(v)
}

type options struct {
	rounding Rounding
}

// Option configures Quantize.
type Option func(*options)

// WithRounding overrides the default HalfToEven rounding.
func WithRounding(r Rounding) Option {
	return func(o *options) { o.rounding = r }
}

// Saturate clamps v into the representable range of an integer kind. Non-integer
// kinds return v unchanged and NaN maps to 0.
func Saturate(v float64, kind dtype.ElementKind) float64 {
	lo, hi, ok := kind.Range()
	if !ok {
		return v
	}
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, lo), hi)
}

// Quantize maps x (FLOAT or INT32) to the kind of zeroPoint. A nil zeroPoint
// means zero in UINT8. Out-of-range values saturate; they never fail.
func Quantize(x, scale, zeroPoint *tensor.Tensor, b Broadcast, opts ...Option) (*tensor.Tensor, error) {
	o := options{rounding: HalfToEven}
	for _, opt := range opts {
		opt(&o)
	}

	xs, err := quantizeInput(x)
	if err != nil {
		return nil, err
	}
	target := dtype.Uint8
	if zeroPoint != nil {
		target = zeroPoint.Kind()
	}
	scales, zps, p, err := params(x.Shape(), scale, zeroPoint, target, b)
	if err != nil {
		return nil, err
	}

	q := make([]float64, len(xs))
	for i, v := range xs {
		r := o.rounding.apply(float64(v / scales[p.group(i)]))
		if math.IsNaN(r) {
			r = 0
		}
		q[i] = r
	}
	if target == dtype.Int64 || target == dtype.Uint64 {
		return offsetWide(target, x.Shape(), q, zeroPoint, p)
	}
	for i := range q {
		q[i] += zps[p.group(i)]
	}
	return saturateInto(target, x.Shape(), q)
}

// Dequantize maps an integer tensor back to FLOAT. zeroPoint, if present, must
// share x's kind. x - zero_point is exact for every integer kind, UINT64 and
// INT64 included, and is rounded to float32 once before scaling.
func Dequantize(x, scale, zeroPoint *tensor.Tensor, b Broadcast) (*tensor.Tensor, error) {
	if !x.Kind().IsInteger() {
		return nil, fmt.Errorf("%w: dequantize input must be an integer kind, got %v", ErrKind, x.Kind())
	}
	scales, _, p, err := params(x.Shape(), scale, zeroPoint, x.Kind(), b)
	if err != nil {
		return nil, err
	}

	if x.Kind() == dtype.Uint64 {
		xs, err := tensor.Values[uint64](x)
		if err != nil {
			return nil, err
		}
		zps := make([]uint64, len(scales))
		if zeroPoint != nil {
			if zps, err = tensor.Values[uint64](zeroPoint); err != nil {
				return nil, err
			}
		}
		return tensor.New(dtype.Float, x.Shape(), dequantize(xs, zps, scales, p))
	}

	xs, err := widen(x)
	if err != nil {
		return nil, err
	}
	zps := make([]int64, len(scales))
	if zeroPoint != nil {
		if zps, err = widen(zeroPoint); err != nil {
			return nil, err
		}
	}
	return tensor.New(dtype.Float, x.Shape(), dequantize(xs, zps, scales, p))
}

func dequantize[T int64 | uint64](xs, zps []T, scales []float32, p plan) []float32 {
	y := make([]float32, len(xs))
	for i, v := range xs {
		g := p.group(i)
		y[i] = difference(v, zps[g]) * scales[g]
	}
	return y
}

// params validates scale/zero point and resolves the broadcast plan.
func params(shape []int, scale, zeroPoint *tensor.Tensor, target dtype.ElementKind, b Broadcast) ([]float32, []float64, plan, error) {
	if scale == nil {
		return nil, nil, plan{}, fmt.Errorf("%w: scale is required", ErrBroadcast)
	}
	if scale.Kind() != dtype.Float {
		return nil, nil, plan{}, fmt.Errorf("%w: scale must be FLOAT, got %v", ErrKind, scale.Kind())
	}
	if !target.IsInteger() {
		return nil, nil, plan{}, fmt.Errorf("%w: target must be an integer kind, got %v", ErrKind, target)
	}
	p, err := b.resolve(shape, scale.Shape())
	if err != nil {
		return nil, nil, plan{}, err
	}
	scales, err := tensor.Values[float32](scale)
	if err != nil {
		return nil, nil, plan{}, err
	}
	zps := make([]float64, len(scales))
	if zeroPoint != nil {
		if zeroPoint.Kind() != target {
			return nil, nil, plan{}, fmt.Errorf("%w: zero point is %v, want %v", ErrKind, zeroPoint.Kind(), target)
		}
		if !slices.Equal(zeroPoint.Shape(), scale.Shape()) {
			return nil, nil, plan{}, fmt.Errorf("%w: scale shape %v != zero point shape %v", ErrBroadcast, scale.Shape(), zeroPoint.Shape())
		}
		if zps, err = zeroPoint.Float64s(); err != nil {
			return nil, nil, plan{}, err
		}
	}
	return scales, zps, p, nil
}
