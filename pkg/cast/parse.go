package cast

import (
	"errors"
	"strconv"
	"strings"

	"github.com/samcharles93/goldcase/internal/half"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

// parseStrings parses every element as a literal of kind to. The first invalid
// element aborts the cast with a *ParseError.
func parseStrings(v []string, to dtype.ElementKind, shape []int) (*tensor.Tensor, error) {
	switch to {
	case dtype.Bool:
		out := make([]bool, len(v))
		for i, s := range v {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return nil, &ParseError{Index: i, Text: s, Kind: to, Err: err}
			}
			out[i] = b
		}
		return tensor.New(to, shape, out)
	case dtype.Float, dtype.BFloat16:
		f := make([]float32, len(v))
		for i, s := range v {
			x, err := parseFloat(s, 32)
			if err != nil {
				return nil, &ParseError{Index: i, Text: s, Kind: to, Err: err}
			}
			f[i] = float32(x)
		}
		if to == dtype.BFloat16 {
			return tensor.New(to, shape, half.TruncateBFloat16Slice(f))
		}
		return tensor.New(to, shape, f)
	case dtype.Double, dtype.Float16:
		f := make([]float64, len(v))
		for i, s := range v {
			x, err := parseFloat(s, 64)
			if err != nil {
				return nil, &ParseError{Index: i, Text: s, Kind: to, Err: err}
			}
			f[i] = x
		}
		return fromFloats(to, shape, f)
	}

	if !to.IsInteger() {
		return nil, &ParseError{Kind: to, Err: tensor.ErrKind}
	}
	d := to.Descriptor()
	bits := make([]int64, len(v))
	for i, s := range v {
		s = strings.TrimSpace(s)
		if d.Signed {
			n, err := strconv.ParseInt(s, 10, d.Bits)
			if err != nil {
				return nil, &ParseError{Index: i, Text: v[i], Kind: to, Err: err}
			}
			bits[i] = n
			continue
		}
		n, err := strconv.ParseUint(s, 10, d.Bits)
		if err != nil {
			return nil, &ParseError{Index: i, Text: v[i], Kind: to, Err: err}
		}
		bits[i] = int64(n)
	}
	return fromBits(to, shape, bits)
}

// parseFloat accepts decimal literals plus nan/inf spellings in any case.
// Literals beyond the kind's range parse to an infinity.
func parseFloat(s string, bitSize int) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bitSize)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, nil
		}
		return 0, err
	}
	return f, nil
}
