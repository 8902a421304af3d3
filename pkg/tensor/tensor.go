// Package tensor holds immutable n-dimensional arrays tagged with an element kind.
package tensor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/goldcase/pkg/dtype"
)

var (
	ErrShape = errors.New("tensor: invalid shape")
	ErrKind  = errors.New("tensor: element kind mismatch")
)

// Element is the set of Go types that back tensor storage.
type Element interface {
	float32 | float64 | uint16 | uint8 | int8 | int16 | int32 | int64 | uint32 | uint64 | bool | string
}

// Tensor is an immutable array. Constructors copy their input and accessors
// return copies, so a Tensor can be shared freely.
type Tensor struct {
	kind  dtype.ElementKind
	shape []int
	data  any
}

// New builds a tensor of the given kind and shape. The Go type of values must be
// the storage type of kind (uint16 for FLOAT16 and BFLOAT16 bit patterns).
func New[T Element](kind dtype.ElementKind, shape []int, values []T) (*Tensor, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %v", dtype.ErrUnknownKind, kind)
	}
	if got, want := storageOf(values), kind.Descriptor().Storage; got != want {
		return nil, fmt.Errorf("%w: %v cannot hold %T", ErrKind, kind, values)
	}
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if n != len(values) {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrShape, shape, n, len(values))
	}
	return &Tensor{
		kind:  kind,
		shape: slices.Clone(shapeOrEmpty(shape)),
		data:  slices.Clone(values),
	}, nil
}

// Scalar builds a rank-0 tensor.
func Scalar[T Element](kind dtype.ElementKind, v T) (*Tensor, error) {
	return New(kind, nil, []T{v})
}

// Must panics if err is non-nil. It is meant for literal fixtures.
func Must(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(err)
	}
	return t
}

// Values returns a copy of the elements as []T.
func Values[T Element](t *Tensor) ([]T, error) {
	v, ok := t.data.([]T)
	if !ok {
		var zero []T
		return nil, fmt.Errorf("%w: %v tensor is not %T", ErrKind, t.kind, zero)
	}
	return slices.Clone(v), nil
}

// NumElements returns the product of the extents. A rank-0 shape has one element.
func NumElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dim %d", ErrShape, d)
		}
		if d != 0 && n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("%w: tensor too large", ErrShape)
		}
		n *= d
	}
	return n, nil
}

func (t *Tensor) Kind() dtype.ElementKind { return t.kind }

// Shape returns a copy of the extents.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns the extent of axis i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// Len returns the number of elements.
func (t *Tensor) Len() int {
	n, _ := NumElements(t.shape)
	return n
}

// Data returns a copy of the backing slice, e.g. []float32 for FLOAT.
func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return slices.Clone(v)
	case []float64:
		return slices.Clone(v)
	case []uint16:
		return slices.Clone(v)
	case []uint8:
		return slices.Clone(v)
	case []int8:
		return slices.Clone(v)
	case []int16:
		return slices.Clone(v)
	case []int32:
		return slices.Clone(v)
	case []int64:
		return slices.Clone(v)
	case []uint32:
		return slices.Clone(v)
	case []uint64:
		return slices.Clone(v)
	case []bool:
		return slices.Clone(v)
	case []string:
		return slices.Clone(v)
	}
	return nil
}

// Reshape returns a tensor with the same elements and a new shape.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if n != t.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShape, t.shape, shape)
	}
	return &Tensor{kind: t.kind, shape: slices.Clone(shapeOrEmpty(shape)), data: t.Data()}, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%v%v", t.kind, t.shape)
}

func shapeOrEmpty(shape []int) []int {
	if shape == nil {
		return []int{}
	}
	return shape
}

func storageOf(values any) dtype.Storage {
	switch values.(type) {
	case []float32:
		return dtype.StorageFloat32
	case []float64:
		return dtype.StorageFloat64
	case []uint16:
		return dtype.StorageUint16
	case []uint8:
		return dtype.StorageUint8
	case []int8:
		return dtype.StorageInt8
	case []int16:
		return dtype.StorageInt16
	case []int32:
		return dtype.StorageInt32
	case []int64:
		return dtype.StorageInt64
	case []uint32:
		return dtype.StorageUint32
	case []uint64:
		return dtype.StorageUint64
	case []bool:
		return dtype.StorageBool
	case []string:
		return dtype.StorageString
	}
	return dtype.StorageNone
}
