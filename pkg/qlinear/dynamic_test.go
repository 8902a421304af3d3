package qlinear

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

func TestDynamicQuantize(t *testing.T) {
	t.Parallel()
	x := f32([]int{2, 3}, -3, 0, 3, -6, 9, 12)
	y, scale, zp, err := DynamicQuantize(x)
	if err != nil {
		t.Fatalf("DynamicQuantize: %v", err)
	}
	if got := mustValues[uint8](t, y); !slices.Equal(got, []uint8{43, 85, 127, 0, 212, 255}) {
		t.Fatalf("y = %v", got)
	}
	s := mustValues[float32](t, scale)
	if scale.Rank() != 0 || math.Abs(float64(s[0])-18.0/255.0) > 1e-7 {
		t.Fatalf("scale = %v (rank %d)", s, scale.Rank())
	}
	if z := mustValues[uint8](t, zp); zp.Rank() != 0 || z[0] != 85 {
		t.Fatalf("zero point = %v", z)
	}
}

func TestDynamicQuantizePositiveOnly(t *testing.T) {
	t.Parallel()
	// The range always includes 0, so the zero point stays at 0.
	x := f32([]int{4}, 1, 2, 2.55, 0.5)
	y, scale, zp, err := DynamicQuantize(x)
	if err != nil {
		t.Fatal(err)
	}
	if z := mustValues[uint8](t, zp); z[0] != 0 {
		t.Fatalf("zero point = %v", z)
	}
	s := mustValues[float32](t, scale)[0]
	if math.Abs(float64(s)-0.01) > 1e-6 {
		t.Fatalf("scale = %v", s)
	}
	if got := mustValues[uint8](t, y); got[2] != 255 {
		t.Fatalf("max element should map to 255, got %v", got)
	}
}

func TestDynamicQuantizeAllZero(t *testing.T) {
	t.Parallel()
	y, scale, zp, err := DynamicQuantize(f32([]int{3}, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if got := mustValues[uint8](t, y); !slices.Equal(got, []uint8{0, 0, 0}) {
		t.Fatalf("y = %v", got)
	}
	if s := mustValues[float32](t, scale); s[0] != 0 {
		t.Fatalf("scale = %v", s)
	}
	if z := mustValues[uint8](t, zp); z[0] != 0 {
		t.Fatalf("zero point = %v", z)
	}
}

func TestDynamicQuantizeIgnoresNaN(t *testing.T) {
	t.Parallel()
	nan := float32(math.NaN())
	y, scale, zp, err := DynamicQuantize(f32([]int{4}, nan, 0, 255, nan))
	if err != nil {
		t.Fatal(err)
	}
	if s := mustValues[float32](t, scale); s[0] != 1 {
		t.Fatalf("scale = %v", s)
	}
	if z := mustValues[uint8](t, zp); z[0] != 0 {
		t.Fatalf("zero point = %v", z)
	}
	if got := mustValues[uint8](t, y); !slices.Equal(got, []uint8{0, 0, 255, 0}) {
		t.Fatalf("y = %v", got)
	}
}

func TestDynamicQuantizeRejectsIntegers(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Int32, []int{1}, []int32{1}))
	if _, _, _, err := DynamicQuantize(x); !errors.Is(err, ErrKind) {
		t.Fatalf("expected ErrKind, got %v", err)
	}
}
