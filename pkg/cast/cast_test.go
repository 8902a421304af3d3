package cast

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"testing"

	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

var fixtureLiterals = []string{
	"0.47892547", "0.48033667", "0.49968487", "0.81910545",
	"0.47031248", "0.816468", "0.21087195", "0.7229038",
	"NaN", "INF", "+INF", "-INF",
}

var fixtureBFloat16 = []uint16{
	0x3EF5, 0x3EF5, 0x3EFF, 0x3F51,
	0x3EF0, 0x3F51, 0x3E57, 0x3F39,
	0x7FC0, 0x7F80, 0x7F80, 0xFF80,
}

func mustCast(t *testing.T, x *tensor.Tensor, to dtype.ElementKind) *tensor.Tensor {
	t.Helper()
	y, err := Cast(x, to)
	if err != nil {
		t.Fatalf("Cast(%v -> %v): %v", x, to, err)
	}
	if y.Kind() != to {
		t.Fatalf("kind = %v, want %v", y.Kind(), to)
	}
	if !slices.Equal(y.Shape(), x.Shape()) {
		t.Fatalf("shape = %v, want %v", y.Shape(), x.Shape())
	}
	return y
}

func values[T tensor.Element](t *testing.T, x *tensor.Tensor) []T {
	t.Helper()
	v, err := tensor.Values[T](x)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	return v
}

func fixtureFloats(t *testing.T) *tensor.Tensor {
	t.Helper()
	f := make([]float32, len(fixtureLiterals))
	for i, s := range fixtureLiterals {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		f[i] = float32(v)
	}
	return tensor.Must(tensor.New(dtype.Float, []int{3, 4}, f))
}

func TestCastSameKindCopies(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Int16, []int{2}, []int16{-7, 9}))
	y := mustCast(t, x, dtype.Int16)
	if !tensor.Equal(x, y) {
		t.Fatalf("same-kind cast changed values: %v", values[int16](t, y))
	}
}

func TestCastFloatToBFloat16Truncates(t *testing.T) {
	t.Parallel()
	y := mustCast(t, fixtureFloats(t), dtype.BFloat16)
	if got := values[uint16](t, y); !slices.Equal(got, fixtureBFloat16) {
		t.Fatalf("bfloat16 = %#04x, want %#04x", got, fixtureBFloat16)
	}
}

func TestCastBFloat16ToFloatExtends(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.BFloat16, []int{3, 4}, fixtureBFloat16))
	got := values[float32](t, mustCast(t, x, dtype.Float))
	if got[0] != 0.478515625 || got[6] != 0.2099609375 {
		t.Fatalf("unexpected widening: %v", got[:8])
	}
	if !math.IsNaN(float64(got[8])) || !math.IsInf(float64(got[9]), 1) || !math.IsInf(float64(got[11]), -1) {
		t.Fatalf("specials = %v", got[8:])
	}
	for i, f := range got {
		if math.Float32bits(f)&0xFFFF != 0 {
			t.Fatalf("element %d has non-zero low bits: %#08x", i, math.Float32bits(f))
		}
	}
}

func TestCastStringToFloat(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.String, []int{3, 4}, fixtureLiterals))
	y := mustCast(t, x, dtype.Float)
	want := fixtureFloats(t)
	if !tensor.Equal(y, want) {
		t.Fatalf("got %v, want %v", values[float32](t, y), values[float32](t, want))
	}
}

func TestCastStringToBFloat16(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.String, []int{3, 4}, fixtureLiterals))
	if got := values[uint16](t, mustCast(t, x, dtype.BFloat16)); !slices.Equal(got, fixtureBFloat16) {
		t.Fatalf("bfloat16 = %#04x", got)
	}
}

func TestCastFloatToString(t *testing.T) {
	t.Parallel()
	inf := float32(math.Inf(1))
	x := tensor.Must(tensor.New(dtype.Float, []int{7}, []float32{
		0.47892547, 1, 1e-5, 0.1, float32(math.NaN()), -inf, 1.5e20,
	}))
	got := values[string](t, mustCast(t, x, dtype.String))
	want := []string{"0.47892547", "1.0", "1e-05", "0.1", "nan", "-inf", "1.5e+20"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCastFloatStringRoundTrip(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Float, []int{4}, []float32{0.12345679, 3.4028235e38, 1e-45, float32(math.Copysign(0, -1))}))
	s := mustCast(t, x, dtype.String)
	back := mustCast(t, s, dtype.Float)
	if !tensor.Equal(x, back) {
		t.Fatalf("round trip through %q gave %v", values[string](t, s), values[float32](t, back))
	}
}

func TestFormatFloatHalfKinds(t *testing.T) {
	t.Parallel()
	cases := []struct {
		v    float64
		kind dtype.ElementKind
		want string
	}{
		{0.0999755859375, dtype.Float16, "0.1"},
		{0.5, dtype.Float16, "0.5"},
		{65504, dtype.Float16, "65500.0"},
		{0.478515625, dtype.BFloat16, "0.48"},
		{0, dtype.BFloat16, "0.0"},
		{-2, dtype.Double, "-2.0"},
		{0.1, dtype.Double, "0.1"},
		{1e16, dtype.Double, "1e+16"},
	}
	for _, tc := range cases {
		if got := FormatFloat(tc.v, tc.kind); got != tc.want {
			t.Fatalf("FormatFloat(%v, %v) = %q, want %q", tc.v, tc.kind, got, tc.want)
		}
	}
}

func TestCastFloatWidths(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Float, []int{2, 2}, []float32{0.5, -2, 0.1, 65504}))

	d := values[float64](t, mustCast(t, x, dtype.Double))
	if d[2] != float64(float32(0.1)) {
		t.Fatalf("FLOAT->DOUBLE widened 0.1 to %v", d[2])
	}

	h := mustCast(t, x, dtype.Float16)
	if got := values[uint16](t, h); !slices.Equal(got, []uint16{0x3800, 0xC000, 0x2E66, 0x7BFF}) {
		t.Fatalf("FLOAT->FLOAT16 = %#04x", got)
	}
	back := values[float32](t, mustCast(t, h, dtype.Float))
	if back[0] != 0.5 || back[1] != -2 || back[3] != 65504 {
		t.Fatalf("FLOAT16->FLOAT = %v", back)
	}

	hd := values[float64](t, mustCast(t, h, dtype.Double))
	if hd[2] != 0.0999755859375 {
		t.Fatalf("FLOAT16->DOUBLE = %v", hd[2])
	}
	dh := mustCast(t, mustCast(t, x, dtype.Double), dtype.Float16)
	if !tensor.Equal(dh, h) {
		t.Fatalf("DOUBLE->FLOAT16 = %#04x", values[uint16](t, dh))
	}
}

func TestCastDoubleToFloat16RoundsOnce(t *testing.T) {
	t.Parallel()
	// Each value sits just past a binary16 midpoint but rounds onto it in float32.
	x := tensor.Must(tensor.New(dtype.Double, []int{2}, []float64{1 + 0x1p-11 + 0x1p-40, -(2 + 0x1p-10 + 0x1p-39)}))
	if got := values[uint16](t, mustCast(t, x, dtype.Float16)); !slices.Equal(got, []uint16{0x3C01, 0xC001}) {
		t.Fatalf("DOUBLE->FLOAT16 = %#04x", got)
	}

	s := tensor.Must(tensor.New(dtype.String, []int{1}, []string{"1.00048828125000091"}))
	if got := values[uint16](t, mustCast(t, s, dtype.Float16)); got[0] != 0x3C01 {
		t.Fatalf("STRING->FLOAT16 = %#04x", got)
	}
}

func TestCastFloatToIntegerSaturates(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Float, []int{6}, []float32{
		-1.9, 1.9, 300, -300, float32(math.NaN()), float32(math.Inf(1)),
	}))
	if got := values[int8](t, mustCast(t, x, dtype.Int8)); !slices.Equal(got, []int8{-1, 1, 127, -128, 0, 127}) {
		t.Fatalf("int8 = %v", got)
	}
	if got := values[uint8](t, mustCast(t, x, dtype.Uint8)); !slices.Equal(got, []uint8{0, 1, 255, 0, 0, 255}) {
		t.Fatalf("uint8 = %v", got)
	}
}

func TestCastIntegerWraps(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Int32, []int{4}, []int32{255, 256, -1, 128}))
	if got := values[uint8](t, mustCast(t, x, dtype.Uint8)); !slices.Equal(got, []uint8{255, 0, 255, 128}) {
		t.Fatalf("uint8 = %v", got)
	}
	if got := values[int8](t, mustCast(t, x, dtype.Int8)); !slices.Equal(got, []int8{-1, 0, -1, -128}) {
		t.Fatalf("int8 = %v", got)
	}
	u := tensor.Must(tensor.New(dtype.Uint64, []int{1}, []uint64{math.MaxUint64}))
	if got := values[float64](t, mustCast(t, u, dtype.Double)); got[0] != 1<<64 {
		t.Fatalf("uint64 -> double = %v", got)
	}
	if got := values[string](t, mustCast(t, u, dtype.String)); got[0] != "18446744073709551615" {
		t.Fatalf("uint64 -> string = %q", got)
	}
}

func TestCastBool(t *testing.T) {
	t.Parallel()
	b := tensor.Must(tensor.New(dtype.Bool, []int{2}, []bool{true, false}))
	if got := values[string](t, mustCast(t, b, dtype.String)); !slices.Equal(got, []string{"True", "False"}) {
		t.Fatalf("bool -> string = %q", got)
	}
	if got := values[float32](t, mustCast(t, b, dtype.Float)); !slices.Equal(got, []float32{1, 0}) {
		t.Fatalf("bool -> float = %v", got)
	}
	f := tensor.Must(tensor.New(dtype.Float, []int{3}, []float32{0, -0.5, 2}))
	if got := values[bool](t, mustCast(t, f, dtype.Bool)); !slices.Equal(got, []bool{false, true, true}) {
		t.Fatalf("float -> bool = %v", got)
	}
	s := tensor.Must(tensor.New(dtype.String, []int{2}, []string{"True", "false"}))
	if got := values[bool](t, mustCast(t, s, dtype.Bool)); !slices.Equal(got, []bool{true, false}) {
		t.Fatalf("string -> bool = %v", got)
	}
}

func TestCastStringToInteger(t *testing.T) {
	t.Parallel()
	s := tensor.Must(tensor.New(dtype.String, []int{3}, []string{" 12", "-128", "127"}))
	if got := values[int8](t, mustCast(t, s, dtype.Int8)); !slices.Equal(got, []int8{12, -128, 127}) {
		t.Fatalf("int8 = %v", got)
	}
}

func TestCastMalformedLiteral(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   []string
		to   dtype.ElementKind
		want int
	}{
		{[]string{"1.5", "abc"}, dtype.Float, 1},
		{[]string{"1e999x"}, dtype.Double, 0},
		{[]string{"1", "300"}, dtype.Uint8, 1},
		{[]string{"-1"}, dtype.Uint32, 0},
		{[]string{"yes"}, dtype.Bool, 0},
	}
	for _, tc := range cases {
		x := tensor.Must(tensor.New(dtype.String, []int{len(tc.in)}, tc.in))
		_, err := Cast(x, tc.to)
		if !errors.Is(err, ErrMalformedLiteral) {
			t.Fatalf("%q -> %v: expected ErrMalformedLiteral, got %v", tc.in, tc.to, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Index != tc.want || pe.Kind != tc.to {
			t.Fatalf("%q -> %v: unexpected error detail %#v", tc.in, tc.to, pe)
		}
	}
}

func TestCastOverflowingLiteralIsInfinite(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.String, []int{2}, []string{"1e39", "-1e39"}))
	got := values[float32](t, mustCast(t, x, dtype.Float))
	if !math.IsInf(float64(got[0]), 1) || !math.IsInf(float64(got[1]), -1) {
		t.Fatalf("got %v", got)
	}
}

func TestCastUnknownKind(t *testing.T) {
	t.Parallel()
	x := tensor.Must(tensor.New(dtype.Float, []int{1}, []float32{1}))
	if _, err := Cast(x, dtype.ElementKind(99)); !errors.Is(err, dtype.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
