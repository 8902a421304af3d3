package casegen

import (
	"math/rand/v2"
	"strconv"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/half"
	"github.com/samcharles93/goldcase/pkg/cast"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

// CastLiterals feeds the STRING and BFLOAT16 cast cases.
var CastLiterals = []string{
	"0.47892547", "0.48033667", "0.49968487", "0.81910545",
	"0.47031248", "0.816468", "0.21087195", "0.7229038",
	"NaN", "INF", "+INF", "-INF",
}

var castPairs = []struct{ from, to dtype.ElementKind }{
	{dtype.Float, dtype.Float16},
	{dtype.Float, dtype.Double},
	{dtype.Float16, dtype.Float},
	{dtype.Float16, dtype.Double},
	{dtype.Double, dtype.Float},
	{dtype.Double, dtype.Float16},
	{dtype.Float, dtype.String},
	{dtype.String, dtype.Float},
	{dtype.Float, dtype.BFloat16},
	{dtype.BFloat16, dtype.Float},
}

func init() {
	register(Generator{
		Name:   "Cast",
		OpType: "Cast",
		Doc:    "FLOAT/FLOAT16/DOUBLE/STRING/BFLOAT16 conversions on 3x4 tensors",
		Export: exportCast,
	})
}

func exportCast(c *Collector, rng *rand.Rand) error {
	shape := []int{3, 4}
	for _, p := range castPairs {
		var in, out *tensor.Tensor
		var err error
		switch {
		case p.from == dtype.BFloat16 || p.to == dtype.BFloat16:
			in, out, err = bfloat16Pair(p.to == dtype.BFloat16, shape)
		case p.from == dtype.String:
			if in, err = tensor.New(dtype.String, shape, CastLiterals); err == nil {
				out, err = cast.Cast(in, p.to)
			}
		default:
			if in, err = randomSample(rng, p.from, shape); err == nil {
				out, err = cast.Cast(in, p.to)
			}
		}
		if err != nil {
			return err
		}

		node := graph.MakeNode("Cast", []string{"input"}, []string{"output"}, graph.Kind("to", p.to))
		name := "test_cast_" + p.from.String() + "_to_" + p.to.String()
		if err := c.Expect(node, []*tensor.Tensor{in}, []*tensor.Tensor{out}, name); err != nil {
			return err
		}
	}
	return nil
}

// bfloat16Pair builds the float32 fixture and its bfloat16 truncation, returned
// in (input, output) order for the requested direction.
func bfloat16Pair(toBFloat16 bool, shape []int) (*tensor.Tensor, *tensor.Tensor, error) {
	f := make([]float32, len(CastLiterals))
	for i, s := range CastLiterals {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, nil, err
		}
		f[i] = float32(v)
	}
	bits := half.TruncateBFloat16Slice(f)

	if toBFloat16 {
		in, err := tensor.New(dtype.Float, shape, f)
		if err != nil {
			return nil, nil, err
		}
		out, err := tensor.New(dtype.BFloat16, shape, bits)
		return in, out, err
	}
	in, err := tensor.New(dtype.BFloat16, shape, bits)
	if err != nil {
		return nil, nil, err
	}
	out, err := tensor.New(dtype.Float, shape, half.ExtendBFloat16Slice(bits))
	return in, out, err
}

// randomSample draws uniform values in [0, 1) and converts them to kind.
func randomSample(rng *rand.Rand, kind dtype.ElementKind, shape []int) (*tensor.Tensor, error) {
	n, err := tensor.NumElements(shape)
	if err != nil {
		return nil, err
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()
	}
	d, err := tensor.New(dtype.Double, shape, v)
	if err != nil {
		return nil, err
	}
	return cast.Cast(d, kind)
}
