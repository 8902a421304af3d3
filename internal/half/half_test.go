package half

import (
	"math"
	"testing"
)

func TestBFloat16TruncRoundTrip(t *testing.T) {
	t.Parallel()
	v := float32(0.47892547)
	got := BFloat16ToFloat32(BFloat16Trunc(v))
	want := math.Float32frombits(math.Float32bits(v) &^ 0xFFFF)
	if math.Float32bits(got) != math.Float32bits(want) {
		t.Fatalf("got %08x, want %08x", math.Float32bits(got), math.Float32bits(want))
	}
	if BFloat16Trunc(v) != 0x3EF5 {
		t.Fatalf("unexpected pattern %04x", BFloat16Trunc(v))
	}
	if got != 0.478515625 {
		t.Fatalf("unexpected value %v", got)
	}
}

func TestBFloat16SpecialValues(t *testing.T) {
	t.Parallel()
	inf := float32(math.Inf(1))
	if BFloat16Trunc(inf) != 0x7F80 {
		t.Fatalf("+inf: %04x", BFloat16Trunc(inf))
	}
	if BFloat16Trunc(-inf) != 0xFF80 {
		t.Fatalf("-inf: %04x", BFloat16Trunc(-inf))
	}
	nan := BFloat16ToFloat32(BFloat16Trunc(float32(math.NaN())))
	if !math.IsNaN(float64(nan)) {
		t.Fatalf("nan lost: %v", nan)
	}
}

func TestSlicePathsMatchArithmetic(t *testing.T) {
	t.Parallel()
	src := []float32{0.47892547, 0.48033667, 0.49968487, 0.81910545, -1.5, 0, float32(math.Inf(-1))}
	view := TruncateBFloat16Slice(src)
	for i, v := range src {
		if view[i] != BFloat16Trunc(v) {
			t.Fatalf("index %d: slice %04x, arithmetic %04x", i, view[i], BFloat16Trunc(v))
		}
	}
	back := ExtendBFloat16Slice(view)
	for i, u := range view {
		if math.Float32bits(back[i]) != math.Float32bits(BFloat16ToFloat32(u)) {
			t.Fatalf("index %d: extend mismatch", i)
		}
	}
	if len(TruncateBFloat16Slice(nil)) != 0 || len(ExtendBFloat16Slice(nil)) != 0 {
		t.Fatal("empty input should give empty output")
	}
}

func TestFloat16(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		bits uint16
	}{
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF},
		{float32(math.Inf(1)), 0x7C00},
	}
	for _, tc := range tests {
		if got := Float16FromFloat32(tc.in); got != tc.bits {
			t.Fatalf("Float16FromFloat32(%v) = %04x, want %04x", tc.in, got, tc.bits)
		}
		if got := Float16ToFloat32(tc.bits); got != tc.in {
			t.Fatalf("Float16ToFloat32(%04x) = %v, want %v", tc.bits, got, tc.in)
		}
	}
}

func TestFloat16FromFloat64(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   float64
		want uint16
	}{
		// Just above the midpoint between 1 and its successor. float32 would
		// round it onto the midpoint and the tie would go to 0x3c00.
		{1 + 0x1p-11 + 0x1p-40, 0x3c01},
		{1 + 0x1p-11, 0x3c00},
		{1 + 3*0x1p-11, 0x3c02},
		{-2, 0xc000},
		{math.Copysign(0, -1), 0x8000},
		{65504, 0x7bff},
		{65519.99, 0x7bff},
		{65520, 0x7c00},
		{1e300, 0x7c00},
		{math.Inf(-1), 0xfc00},
		{0x1p-14, 0x0400},
		{0x1p-24, 0x0001},
		{0x1p-25, 0x0000},
		{1.5 * 0x1p-25, 0x0001},
		{1.5 * 0x1p-24, 0x0002},
		{1e-300, 0x0000},
	}
	for _, tc := range cases {
		if got := Float16FromFloat64(tc.in); got != tc.want {
			t.Fatalf("Float16FromFloat64(%v) = %04x, want %04x", tc.in, got, tc.want)
		}
	}
	if !math.IsNaN(float64(Float16ToFloat32(Float16FromFloat64(math.NaN())))) {
		t.Fatal("nan lost")
	}
}

func TestFloat16FromFloat64MatchesFloat32Path(t *testing.T) {
	t.Parallel()
	for _, f := range []float32{0.1, 1.0 / 3, 1e-6, 6.1e-5, 12345.678, -0.47892547, 70000, 2049, 0.00006} {
		got, want := Float16FromFloat64(float64(f)), Float16FromFloat32(f)
		if got != want {
			t.Fatalf("%v: float64 path %04x, float32 path %04x", f, got, want)
		}
	}
}
