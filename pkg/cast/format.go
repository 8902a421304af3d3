package cast

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samcharles93/goldcase/internal/half"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

// formatElements renders every element of a numeric tensor as text.
func formatElements(x *tensor.Tensor) ([]string, error) {
	out := make([]string, x.Len())
	switch v := x.Data().(type) {
	case []bool:
		for i, b := range v {
			out[i] = FormatBool(b)
		}
		return out, nil
	case []float32:
		for i, f := range v {
			out[i] = FormatFloat(float64(f), dtype.Float)
		}
		return out, nil
	case []float64:
		for i, f := range v {
			out[i] = FormatFloat(f, dtype.Double)
		}
		return out, nil
	}
	if x.Kind().IsFloat() {
		f, err := x.Float64s()
		if err != nil {
			return nil, err
		}
		for i := range f {
			out[i] = FormatFloat(f[i], x.Kind())
		}
		return out, nil
	}
	bits, unsigned, err := integerBits(x)
	if err != nil {
		return nil, err
	}
	for i, b := range bits {
		if unsigned {
			out[i] = strconv.FormatUint(uint64(b), 10)
		} else {
			out[i] = strconv.FormatInt(b, 10)
		}
	}
	return out, nil
}

// FormatBool renders booleans as True/False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatFloat renders v with the fewest significant digits that read back to the
// same value of kind. Magnitudes in [1e-4, 1e16) are positional and always carry
// a fractional part ("1.0"); others use exponent form ("1e-05", "1.5e+20").
// Non-finite values are "nan", "inf" and "-inf".
func FormatFloat(v float64, kind dtype.ElementKind) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	d := shortest(v, kind)
	a := math.Abs(d)
	if a == 0 || (a >= 1e-4 && a < 1e16) {
		s := strconv.FormatFloat(d, 'f', -1, 64)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(d, 'e', -1, 64)
}

// shortest returns the decimal value with the fewest significant digits that
// converts back to v under kind's precision.
func shortest(v float64, kind dtype.ElementKind) float64 {
	if kind == dtype.Double {
		return v
	}
	if kind == dtype.Float {
		d, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'e', -1, 32), 64)
		return d
	}
	same := sameAs(v, kind)
	for prec := 0; prec < 17; prec++ {
		d, err := strconv.ParseFloat(strconv.FormatFloat(v, 'e', prec, 64), 64)
		if err == nil && same(d) {
			return d
		}
	}
	return v
}

func sameAs(v float64, kind dtype.ElementKind) func(float64) bool {
	switch kind {
	case dtype.Float16:
		want := half.Float16FromFloat64(v)
		return func(d float64) bool { return half.Float16FromFloat64(d) == want }
	case dtype.BFloat16:
		want := half.BFloat16Trunc(float32(v))
		return func(d float64) bool { return half.BFloat16Trunc(float32(d)) == want }
	}
	panic(fmt.Sprintf("cast: no precision rule for %v", kind))
}
