package reference

import (
	"errors"
	"slices"
	"testing"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/shapeinfer"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/qlinear"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

func TestOps(t *testing.T) {
	t.Parallel()
	want := []string{"Cast", "DequantizeLinear", "DynamicQuantizeLinear", "QuantizeLinear"}
	if got := Ops(); !slices.Equal(got, want) {
		t.Fatalf("Ops = %v", got)
	}
	for _, op := range want {
		if _, err := shapeinfer.Lookup(op); err != nil {
			t.Fatalf("kernel %s has no schema: %v", op, err)
		}
	}
}

func quantizeInputs() []*tensor.Tensor {
	return []*tensor.Tensor{
		tensor.Must(tensor.New(dtype.Float, []int{3, 4}, []float32{0, 2, 3, 1000, 0, 2, 3, 1000, 0, 2, 3, 1000})),
		tensor.Must(tensor.New(dtype.Float, []int{3}, []float32{1, 2, 4})),
		tensor.Must(tensor.New(dtype.Uint8, []int{3}, []uint8{0, 0, 0})),
	}
}

func TestEvaluateQuantizeLinearRounding(t *testing.T) {
	t.Parallel()
	n := graph.MakeNode("QuantizeLinear", []string{"x", "y_scale", "y_zero_point"}, []string{"y"}, graph.Int("axis", 0))

	out, err := Evaluate(n, quantizeInputs(), WithRounding(qlinear.HalfAwayFromZero))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, _ := tensor.Values[uint8](out[0])
	if !slices.Equal(got, []uint8{0, 2, 3, 255, 0, 1, 2, 255, 0, 1, 1, 250}) {
		t.Fatalf("half away from zero = %v", got)
	}

	out, err = Evaluate(n, quantizeInputs())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, _ = tensor.Values[uint8](out[0])
	if got[9] != 0 {
		t.Fatalf("default rounding should send 0.5 to 0, got %v", got)
	}
}

func TestEvaluateDequantizeLinear(t *testing.T) {
	t.Parallel()
	n := graph.MakeNode("DequantizeLinear", []string{"x", "x_scale", "x_zero_point"}, []string{"y"})
	out, err := Evaluate(n, []*tensor.Tensor{
		tensor.Must(tensor.New(dtype.Uint8, []int{4}, []uint8{0, 3, 128, 255})),
		tensor.Must(tensor.Scalar(dtype.Float, float32(2))),
		tensor.Must(tensor.Scalar(dtype.Uint8, uint8(128))),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, _ := tensor.Values[float32](out[0])
	if !slices.Equal(got, []float32{-256, -250, 0, 254}) {
		t.Fatalf("y = %v", got)
	}
}

func TestEvaluateOptionalZeroPoint(t *testing.T) {
	t.Parallel()
	n := graph.MakeNode("DequantizeLinear", []string{"x", "x_scale"}, []string{"y"})
	out, err := Evaluate(n, []*tensor.Tensor{
		tensor.Must(tensor.New(dtype.Int32, []int{2}, []int32{-3, 5})),
		tensor.Must(tensor.Scalar(dtype.Float, float32(0.5))),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, _ := tensor.Values[float32](out[0])
	if !slices.Equal(got, []float32{-1.5, 2.5}) {
		t.Fatalf("y = %v", got)
	}
}

func TestEvaluateCast(t *testing.T) {
	t.Parallel()
	n := graph.MakeNode("Cast", []string{"input"}, []string{"output"}, graph.Kind("to", dtype.BFloat16))
	out, err := Evaluate(n, []*tensor.Tensor{tensor.Must(tensor.Scalar(dtype.Float, float32(0.47892547)))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got, _ := tensor.Values[uint16](out[0]); got[0] != 0x3EF5 {
		t.Fatalf("bfloat16 = %#04x", got[0])
	}
}

func TestEvaluateDynamicQuantizeLinear(t *testing.T) {
	t.Parallel()
	n := graph.MakeNode("DynamicQuantizeLinear", []string{"x"}, []string{"y", "y_scale", "y_zero_point"})
	out, err := Evaluate(n, []*tensor.Tensor{
		tensor.Must(tensor.New(dtype.Float, []int{2, 3}, []float32{-3, 0, 3, -6, 9, 12})),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d outputs", len(out))
	}
	if zp, _ := tensor.Values[uint8](out[2]); zp[0] != 85 {
		t.Fatalf("zero point = %v", zp)
	}
}

func TestEvaluateRejects(t *testing.T) {
	t.Parallel()
	n := graph.MakeNode("QuantizeLinear", []string{"x", "y_scale", "y_zero_point"}, []string{"y"})
	if _, err := Evaluate(n, quantizeInputs()); !errors.Is(err, shapeinfer.ErrShape) {
		t.Fatalf("per-row scale without axis: expected ErrShape, got %v", err)
	}
	if _, err := Evaluate(graph.MakeNode("Relu", []string{"x"}, []string{"y"}), nil); !errors.Is(err, shapeinfer.ErrUnknownOp) {
		t.Fatalf("expected ErrUnknownOp, got %v", err)
	}
	n = graph.MakeNode("DynamicQuantizeLinear", []string{"x"}, []string{"y", "y_scale", "y_zero_point"}, graph.Kind("to", dtype.Int8))
	x := tensor.Must(tensor.New(dtype.Float, []int{2}, []float32{-1, 1}))
	if _, err := Evaluate(n, []*tensor.Tensor{x}); !errors.Is(err, shapeinfer.ErrTypeConstraint) {
		t.Fatalf("to=INT8: expected ErrTypeConstraint, got %v", err)
	}
	n = graph.MakeNode("Cast", []string{"input"}, []string{"output"}, graph.Kind("to", dtype.Float))
	s := tensor.Must(tensor.New(dtype.String, []int{1}, []string{"x1"}))
	if _, err := Evaluate(n, []*tensor.Tensor{s}); err == nil {
		t.Fatal("expected malformed literal error")
	}
}
