package qlinear

import (
	"fmt"
	"math"

	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

const (
	dynamicQMin float32 = 0
	dynamicQMax float32 = 255
)

// DynamicQuantize calibrates a UINT8 scale and zero point from the range of x
// (widened to include 0) and quantizes x with them. It returns y, the scalar
// scale and the scalar zero point.
//
// NaN elements do not take part in the range and quantize to the zero point.
// An all-zero or empty x has no range; scale and zero point are then 0 and y is
// all zeros.
func DynamicQuantize(x *tensor.Tensor) (y, scale, zeroPoint *tensor.Tensor, err error) {
	if x.Kind() != dtype.Float {
		return nil, nil, nil, fmt.Errorf("%w: dynamic quantize input must be FLOAT, got %v", ErrKind, x.Kind())
	}
	xs, err := tensor.Values[float32](x)
	if err != nil {
		return nil, nil, nil, err
	}

	var lo, hi float32
	for _, v := range xs {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	s := (hi - lo) / dynamicQMax
	var zp uint8
	if s != 0 && !math.IsInf(float64(s), 0) {
		initial := dynamicQMin - lo/s
		zp = uint8(math.RoundToEven(float64(min(max(initial, dynamicQMin), dynamicQMax))))
	}

	if scale, err = tensor.Scalar(dtype.Float, s); err != nil {
		return nil, nil, nil, err
	}
	if zeroPoint, err = tensor.Scalar(dtype.Uint8, zp); err != nil {
		return nil, nil, nil, err
	}
	if s == 0 {
		y, err = tensor.New(dtype.Uint8, x.Shape(), make([]uint8, len(xs)))
		return y, scale, zeroPoint, err
	}
	y, err = Quantize(x, scale, zeroPoint, Scalar())
	if err != nil {
		return nil, nil, nil, err
	}
	return y, scale, zeroPoint, nil
}
