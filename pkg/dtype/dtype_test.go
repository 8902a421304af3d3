package dtype

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()
	cases := map[string]ElementKind{
		"FLOAT":    Float,
		"float":    Float,
		"float32":  Float,
		"UINT8":    Uint8,
		" int8 ":   Int8,
		"BFLOAT16": BFloat16,
		"bf16":     BFloat16,
		"DOUBLE":   Double,
		"STRING":   String,
	}
	for name, want := range cases {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	t.Parallel()
	_, err := Parse("FLOAT8E4M3")
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestKindCodesAreStable(t *testing.T) {
	t.Parallel()
	if Float != 1 || Uint8 != 2 || String != 8 || Float16 != 10 || BFloat16 != 16 {
		t.Fatal("element kind codes changed")
	}
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Fatalf("%v not valid", k)
		}
		back, err := Parse(k.String())
		if err != nil || back != k {
			t.Fatalf("name round trip for %v: got %v, %v", k, back, err)
		}
	}
}

func TestRange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind   ElementKind
		lo, hi float64
	}{
		{Uint8, 0, 255},
		{Int8, -128, 127},
		{Uint16, 0, 65535},
		{Int16, -32768, 32767},
		{Int32, math.MinInt32, math.MaxInt32},
		{Uint32, 0, math.MaxUint32},
	}
	for _, tc := range tests {
		lo, hi, ok := tc.kind.Range()
		if !ok {
			t.Fatalf("%v: expected integer range", tc.kind)
		}
		if lo != tc.lo || hi != tc.hi {
			t.Fatalf("%v: range [%v, %v], want [%v, %v]", tc.kind, lo, hi, tc.lo, tc.hi)
		}
	}
	if _, _, ok := Float.Range(); ok {
		t.Fatal("FLOAT should not have an integer range")
	}
	if _, _, ok := Bool.Range(); ok {
		t.Fatal("BOOL should not have an integer range")
	}
}

func TestExactBounds(t *testing.T) {
	t.Parallel()
	if Int64.MinInt() != math.MinInt64 || Int64.MaxInt() != math.MaxInt64 {
		t.Fatalf("int64 bounds: %d %d", Int64.MinInt(), Int64.MaxInt())
	}
	if Int8.MinInt() != -128 || Int8.MaxInt() != 127 {
		t.Fatalf("int8 bounds: %d %d", Int8.MinInt(), Int8.MaxInt())
	}
	if Uint64.MaxUint() != math.MaxUint64 {
		t.Fatalf("uint64 max: %d", Uint64.MaxUint())
	}
	if Uint8.MaxUint() != 255 {
		t.Fatalf("uint8 max: %d", Uint8.MaxUint())
	}
}

func TestDescriptor(t *testing.T) {
	t.Parallel()
	d := BFloat16.Descriptor()
	if !d.Float || d.Bits != 16 || d.Storage != StorageUint16 {
		t.Fatalf("unexpected bfloat16 descriptor: %+v", d)
	}
	if String.Size() != 0 || Double.Size() != 8 || Uint8.Size() != 1 {
		t.Fatal("unexpected sizes")
	}
	if String.IsNumeric() || !Bool.IsNumeric() {
		t.Fatal("unexpected numeric classification")
	}
}

func TestTextMarshal(t *testing.T) {
	t.Parallel()
	b, err := Float16.MarshalText()
	if err != nil || string(b) != "FLOAT16" {
		t.Fatalf("MarshalText: %q %v", b, err)
	}
	var k ElementKind
	if err := k.UnmarshalText([]byte("uint16")); err != nil || k != Uint16 {
		t.Fatalf("UnmarshalText: %v %v", k, err)
	}
	if _, err := ElementKind(99).MarshalText(); err == nil {
		t.Fatal("expected error for undefined kind")
	}
}
