package casegen

import (
	"math/rand/v2"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/qlinear"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

func init() {
	register(Generator{
		Name:   "QuantizeLinear",
		OpType: "QuantizeLinear",
		Doc:    "affine quantization to UINT8/INT8 with scalar and per-row parameters",
		Export: exportQuantizeLinear,
	})
	register(Generator{
		Name:   "DequantizeLinear",
		OpType: "DequantizeLinear",
		Doc:    "affine dequantization from UINT8/INT8/INT32 with scalar and per-row parameters",
		Export: exportDequantizeLinear,
	})
	register(Generator{
		Name:   "DynamicQuantizeLinear",
		OpType: "DynamicQuantizeLinear",
		Doc:    "UINT8 quantization with scale and zero point calibrated from the input range",
		Export: exportDynamicQuantizeLinear,
	})
}

func f32(shape []int, v ...float32) *tensor.Tensor {
	return tensor.Must(tensor.New(dtype.Float, shape, v))
}

func u8(shape []int, v ...uint8) *tensor.Tensor {
	return tensor.Must(tensor.New(dtype.Uint8, shape, v))
}

func i8(shape []int, v ...int8) *tensor.Tensor {
	return tensor.Must(tensor.New(dtype.Int8, shape, v))
}

func list(ts ...*tensor.Tensor) []*tensor.Tensor { return ts }

func exportQuantizeLinear(c *Collector, _ *rand.Rand) error {
	inputs := []string{"x", "y_scale", "y_zero_point"}
	scalar := graph.MakeNode("QuantizeLinear", inputs, []string{"y"})
	perRow := graph.MakeNode("QuantizeLinear", inputs, []string{"y"}, graph.Int("axis", 0))

	// 2/4 is a tie; this fixture resolves it away from zero.
	err := c.Expect(perRow,
		list(
			f32([]int{3, 4}, 0, 2, 3, 1000, 0, 2, 3, 1000, 0, 2, 3, 1000),
			f32([]int{3}, 1, 2, 4),
			u8([]int{3}, 0, 0, 0),
		),
		list(u8([]int{3, 4}, 0, 2, 3, 255, 0, 1, 2, 255, 0, 1, 1, 250)),
		"test_quantizelinear",
		WithRounding(qlinear.HalfAwayFromZero),
	)
	if err != nil {
		return err
	}

	err = c.Expect(scalar,
		list(
			f32([]int{6}, 0.5, 1.5, 2.5, -0.5, -1.5, -2.5),
			f32([]int{}, 1),
			i8([]int{}, 0),
		),
		list(i8([]int{6}, 0, 2, 2, 0, -2, -2)),
		"test_quantizelinear_half_to_even",
	)
	if err != nil {
		return err
	}

	err = c.Expect(scalar,
		list(
			f32([]int{6}, 0, 2, 3, 1000, -254, -1000),
			f32([]int{}, 2),
			i8([]int{}, 1),
		),
		list(i8([]int{6}, 1, 2, 3, 127, -126, -128)),
		"test_quantizelinear_int8",
	)
	if err != nil {
		return err
	}

	noZP := graph.MakeNode("QuantizeLinear", inputs[:2], []string{"y"})
	return c.Expect(noZP,
		list(
			tensor.Must(tensor.New(dtype.Int32, []int{4}, []int32{0, 1, 2, -1})),
			f32([]int{}, 0.5),
		),
		list(u8([]int{4}, 0, 2, 4, 0)),
		"test_quantizelinear_without_zero_point",
	)
}

func exportDequantizeLinear(c *Collector, _ *rand.Rand) error {
	inputs := []string{"x", "x_scale", "x_zero_point"}
	scalar := graph.MakeNode("DequantizeLinear", inputs, []string{"y"})
	perRow := graph.MakeNode("DequantizeLinear", inputs, []string{"y"}, graph.Int("axis", 0))

	err := c.Expect(scalar,
		list(
			u8([]int{4}, 0, 3, 128, 255),
			f32([]int{1}, 2),
			u8([]int{1}, 128),
		),
		list(f32([]int{4}, -256, -250, 0, 254)),
		"test_dequantizelinear",
	)
	if err != nil {
		return err
	}

	// (1 - 0) * 4 = 4 for the first element of the last row.
	err = c.Expect(perRow,
		list(
			u8([]int{3, 4}, 0, 1, 2, 3, 0, 1, 2, 3, 1, 10, 20, 30),
			f32([]int{3}, 1, 2, 4),
			u8([]int{3}, 0, 0, 0),
		),
		list(f32([]int{3, 4}, 0, 1, 2, 3, 0, 2, 4, 6, 4, 40, 80, 120)),
		"test_dequantizelinear_2D",
	)
	if err != nil {
		return err
	}

	err = c.Expect(scalar,
		list(
			i8([]int{4}, -128, -1, 0, 127),
			f32([]int{}, 0.5),
			i8([]int{}, -1),
		),
		list(f32([]int{4}, -63.5, 0, 0.5, 64)),
		"test_dequantizelinear_int8",
	)
	if err != nil {
		return err
	}

	noZP := graph.MakeNode("DequantizeLinear", inputs[:2], []string{"y"})
	return c.Expect(noZP,
		list(
			tensor.Must(tensor.New(dtype.Int32, []int{3}, []int32{-30, 0, 30})),
			f32([]int{}, 0.1),
		),
		list(f32([]int{3}, -3, 0, 3)),
		"test_dequantizelinear_int32",
	)
}

func exportDynamicQuantizeLinear(c *Collector, _ *rand.Rand) error {
	node := graph.MakeNode("DynamicQuantizeLinear", []string{"x"}, []string{"y", "y_scale", "y_zero_point"})
	cases := []struct {
		name  string
		shape []int
		x     []float32
		y     []uint8
		scale float32
		zp    uint8
	}{
		{
			"test_dynamicquantizelinear",
			[]int{6},
			[]float32{0, 2, -3, -2.5, 1.34, 0.5},
			[]uint8{153, 255, 0, 26, 221, 179},
			0.019607843831181526, 153,
		},
		{
			"test_dynamicquantizelinear_max_adjusted",
			[]int{6},
			[]float32{-1.0, -2.1, -1.3, -2.5, -3.34, -4.0},
			[]uint8{191, 121, 172, 96, 42, 0},
			0.01568627543747425, 255,
		},
		{
			"test_dynamicquantizelinear_min_adjusted",
			[]int{3, 4},
			[]float32{1, 2.1, 1.3, 2.5, 3.34, 4.0, 1.5, 2.6, 3.9, 4.0, 3.0, 2.345},
			[]uint8{64, 134, 83, 159, 213, 255, 96, 166, 249, 255, 191, 149},
			0.01568627543747425, 0,
		},
	}
	for _, tc := range cases {
		err := c.Expect(node,
			list(f32(tc.shape, tc.x...)),
			list(u8(tc.shape, tc.y...), f32([]int{}, tc.scale), u8([]int{}, tc.zp)),
			tc.name,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
