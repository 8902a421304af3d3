// Package dtype describes tensor element kinds.
//
// Kind values match the interchange format's TensorProto data type codes so they
// can be written to and read from case descriptions unchanged.
package dtype

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ElementKind identifies the element encoding of a tensor.
// Keep these stable forever; add new values only.
type ElementKind int32

const (
	Undefined ElementKind = 0
	Float     ElementKind = 1
	Uint8     ElementKind = 2
	Int8      ElementKind = 3
	Uint16    ElementKind = 4
	Int16     ElementKind = 5
	Int32     ElementKind = 6
	Int64     ElementKind = 7
	String    ElementKind = 8
	Bool      ElementKind = 9
	Float16   ElementKind = 10
	Double    ElementKind = 11
	Uint32    ElementKind = 12
	Uint64    ElementKind = 13
	BFloat16  ElementKind = 16
)

// Storage names the Go slice type that holds a kind's elements.
type Storage uint8

const (
	StorageNone Storage = iota
	StorageFloat32
	StorageFloat64
	StorageUint16
	StorageUint8
	StorageInt8
	StorageInt16
	StorageInt32
	StorageInt64
	StorageUint32
	StorageUint64
	StorageBool
	StorageString
)

// Descriptor is the static description of an element kind.
type Descriptor struct {
	Name    string
	Bits    int // 0 for STRING
	Signed  bool
	Float   bool
	Storage Storage
}

var ErrUnknownKind = errors.New("dtype: unknown element kind")

var descriptors = map[ElementKind]Descriptor{
	Float:    {Name: "FLOAT", Bits: 32, Signed: true, Float: true, Storage: StorageFloat32},
	Uint8:    {Name: "UINT8", Bits: 8, Storage: StorageUint8},
	Int8:     {Name: "INT8", Bits: 8, Signed: true, Storage: StorageInt8},
	Uint16:   {Name: "UINT16", Bits: 16, Storage: StorageUint16},
	Int16:    {Name: "INT16", Bits: 16, Signed: true, Storage: StorageInt16},
	Int32:    {Name: "INT32", Bits: 32, Signed: true, Storage: StorageInt32},
	Int64:    {Name: "INT64", Bits: 64, Signed: true, Storage: StorageInt64},
	String:   {Name: "STRING", Storage: StorageString},
	Bool:     {Name: "BOOL", Bits: 8, Storage: StorageBool},
	Float16:  {Name: "FLOAT16", Bits: 16, Signed: true, Float: true, Storage: StorageUint16},
	Double:   {Name: "DOUBLE", Bits: 64, Signed: true, Float: true, Storage: StorageFloat64},
	Uint32:   {Name: "UINT32", Bits: 32, Storage: StorageUint32},
	Uint64:   {Name: "UINT64", Bits: 64, Storage: StorageUint64},
	BFloat16: {Name: "BFLOAT16", Bits: 16, Signed: true, Float: true, Storage: StorageUint16},
}

// aliases accepted by Parse in addition to the canonical names.
var aliases = map[string]ElementKind{
	"FLOAT32": Float,
	"FLOAT64": Double,
	"F32":     Float,
	"F64":     Double,
	"F16":     Float16,
	"BF16":    BFloat16,
}

// Kinds returns every defined kind in code order.
func Kinds() []ElementKind {
	return []ElementKind{Float, Uint8, Int8, Uint16, Int16, Int32, Int64, String, Bool, Float16, Double, Uint32, Uint64, BFloat16}
}

// Descriptor returns the kind's descriptor. The zero Descriptor is returned for
// undefined kinds.
func (k ElementKind) Descriptor() Descriptor {
	return descriptors[k]
}

// Valid reports whether k is a defined kind.
func (k ElementKind) Valid() bool {
	_, ok := descriptors[k]
	return ok
}

func (k ElementKind) String() string {
	if d, ok := descriptors[k]; ok {
		return d.Name
	}
	return fmt.Sprintf("ElementKind(%d)", int32(k))
}

// IsFloat reports whether k is a floating-point kind.
func (k ElementKind) IsFloat() bool { return descriptors[k].Float }

// IsInteger reports whether k is a fixed-width integer kind. BOOL is not an integer.
func (k ElementKind) IsInteger() bool {
	d, ok := descriptors[k]
	return ok && !d.Float && d.Bits > 0 && k != Bool
}

// IsNumeric reports whether k holds numbers (floats, integers or bools).
func (k ElementKind) IsNumeric() bool {
	d, ok := descriptors[k]
	return ok && d.Storage != StorageString
}

// Size returns the element size in bytes, or 0 for STRING.
func (k ElementKind) Size() int {
	return descriptors[k].Bits / 8
}

// Range returns the representable range of an integer kind. ok is false for
// non-integer kinds. Bounds of the 64-bit kinds are not exactly representable as
// float64; use MinInt/MaxUint when exact bounds matter.
func (k ElementKind) Range() (lo, hi float64, ok bool) {
	if !k.IsInteger() {
		return 0, 0, false
	}
	d := descriptors[k]
	if d.Signed {
		return -math.Ldexp(1, d.Bits-1), math.Ldexp(1, d.Bits-1) - 1, true
	}
	return 0, math.Ldexp(1, d.Bits) - 1, true
}

// MinInt returns the smallest value of a signed integer kind, 0 for unsigned ones.
func (k ElementKind) MinInt() int64 {
	d := descriptors[k]
	if !k.IsInteger() || !d.Signed {
		return 0
	}
	return -1 << (d.Bits - 1)
}

// MaxInt returns the largest value of a signed integer kind.
func (k ElementKind) MaxInt() int64 {
	d := descriptors[k]
	if !k.IsInteger() || !d.Signed {
		return 0
	}
	return 1<<(d.Bits-1) - 1
}

// MaxUint returns the largest value of an unsigned integer kind.
func (k ElementKind) MaxUint() uint64 {
	d := descriptors[k]
	if !k.IsInteger() || d.Signed {
		return 0
	}
	if d.Bits == 64 {
		return math.MaxUint64
	}
	return 1<<d.Bits - 1
}

// Parse resolves a kind name such as "FLOAT", "uint8" or "bf16".
func Parse(name string) (ElementKind, error) {
	up := strings.ToUpper(strings.TrimSpace(name))
	for k, d := range descriptors {
		if d.Name == up {
			return k, nil
		}
	}
	if k, ok := aliases[up]; ok {
		return k, nil
	}
	return Undefined, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// MarshalText encodes the kind by name.
func (k ElementKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int32(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ElementKind) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
