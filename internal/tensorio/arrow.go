package tensorio

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"

	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

const (
	arrowColumn   = "values"
	arrowKindKey  = "goldcase.kind"
	arrowShapeKey = "goldcase.shape"
)

// ArrowCodec writes a tensor as an Arrow IPC stream with a single flat column.
// The element kind and shape travel in the schema metadata; FLOAT16 and
// BFLOAT16 columns hold the raw uint16 bit patterns.
type ArrowCodec struct{}

func (ArrowCodec) Name() string { return "arrow" }
func (ArrowCodec) Ext() string  { return ".arrow" }

func arrowType(k dtype.ElementKind) (arrow.DataType, error) {
	switch k.Descriptor().Storage {
	case dtype.StorageFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case dtype.StorageFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case dtype.StorageUint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case dtype.StorageUint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case dtype.StorageInt8:
		return arrow.PrimitiveTypes.Int8, nil
	case dtype.StorageInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case dtype.StorageInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case dtype.StorageInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case dtype.StorageUint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case dtype.StorageUint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case dtype.StorageBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case dtype.StorageString:
		return arrow.BinaryTypes.String, nil
	}
	return nil, fmt.Errorf("%w: no arrow type for %v", tensor.ErrKind, k)
}

func (ArrowCodec) Encode(t *tensor.Tensor) ([]byte, error) {
	typ, err := arrowType(t.Kind())
	if err != nil {
		return nil, err
	}
	shape, err := json.Marshal(t.Shape())
	if err != nil {
		return nil, err
	}
	md := arrow.NewMetadata([]string{arrowKindKey, arrowShapeKey}, []string{t.Kind().String(), string(shape)})
	schema := arrow.NewSchema([]arrow.Field{{Name: arrowColumn, Type: typ}}, &md)

	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	switch v := t.Data().(type) {
	case []float32:
		b.Field(0).(*array.Float32Builder).AppendValues(v, nil)
	case []float64:
		b.Field(0).(*array.Float64Builder).AppendValues(v, nil)
	case []uint16:
		b.Field(0).(*array.Uint16Builder).AppendValues(v, nil)
	case []uint8:
		b.Field(0).(*array.Uint8Builder).AppendValues(v, nil)
	case []int8:
		b.Field(0).(*array.Int8Builder).AppendValues(v, nil)
	case []int16:
		b.Field(0).(*array.Int16Builder).AppendValues(v, nil)
	case []int32:
		b.Field(0).(*array.Int32Builder).AppendValues(v, nil)
	case []int64:
		b.Field(0).(*array.Int64Builder).AppendValues(v, nil)
	case []uint32:
		b.Field(0).(*array.Uint32Builder).AppendValues(v, nil)
	case []uint64:
		b.Field(0).(*array.Uint64Builder).AppendValues(v, nil)
	case []bool:
		b.Field(0).(*array.BooleanBuilder).AppendValues(v, nil)
	case []string:
		b.Field(0).(*array.StringBuilder).AppendValues(v, nil)
	}
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ArrowCodec) Decode(data []byte) (*tensor.Tensor, error) {
	mem := memory.NewGoAllocator()
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer r.Release()

	md := r.Schema().Metadata()
	kindName, shapeText := metadataValue(md, arrowKindKey), metadataValue(md, arrowShapeKey)
	if kindName == "" || shapeText == "" {
		return nil, fmt.Errorf("%w: missing %s/%s metadata", ErrCorrupt, arrowKindKey, arrowShapeKey)
	}
	kind, err := dtype.Parse(kindName)
	if err != nil {
		return nil, err
	}
	var shape []int
	if err := json.Unmarshal([]byte(shapeText), &shape); err != nil {
		return nil, fmt.Errorf("%w: shape %q: %v", ErrCorrupt, shapeText, err)
	}
	if len(r.Schema().Fields()) != 1 {
		return nil, fmt.Errorf("%w: expected one column, got %d", ErrCorrupt, len(r.Schema().Fields()))
	}

	var cols []arrow.Array
	for r.Next() {
		rec := r.Record()
		col := rec.Column(0)
		if col.NullN() > 0 {
			return nil, fmt.Errorf("%w: column has %d nulls", ErrCorrupt, col.NullN())
		}
		col.Retain()
		cols = append(cols, col)
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return fromArrow(kind, shape, cols)
}

func metadataValue(md arrow.Metadata, key string) string {
	i := md.FindKey(key)
	if i < 0 {
		return ""
	}
	return md.Values()[i]
}

func fromArrow(kind dtype.ElementKind, shape []int, cols []arrow.Array) (*tensor.Tensor, error) {
	switch kind.Descriptor().Storage {
	case dtype.StorageFloat32:
		return collect(kind, shape, cols, func(a *array.Float32) []float32 { return a.Float32Values() })
	case dtype.StorageFloat64:
		return collect(kind, shape, cols, func(a *array.Float64) []float64 { return a.Float64Values() })
	case dtype.StorageUint16:
		return collect(kind, shape, cols, func(a *array.Uint16) []uint16 { return a.Uint16Values() })
	case dtype.StorageUint8:
		return collect(kind, shape, cols, func(a *array.Uint8) []uint8 { return a.Uint8Values() })
	case dtype.StorageInt8:
		return collect(kind, shape, cols, func(a *array.Int8) []int8 { return a.Int8Values() })
	case dtype.StorageInt16:
		return collect(kind, shape, cols, func(a *array.Int16) []int16 { return a.Int16Values() })
	case dtype.StorageInt32:
		return collect(kind, shape, cols, func(a *array.Int32) []int32 { return a.Int32Values() })
	case dtype.StorageInt64:
		return collect(kind, shape, cols, func(a *array.Int64) []int64 { return a.Int64Values() })
	case dtype.StorageUint32:
		return collect(kind, shape, cols, func(a *array.Uint32) []uint32 { return a.Uint32Values() })
	case dtype.StorageUint64:
		return collect(kind, shape, cols, func(a *array.Uint64) []uint64 { return a.Uint64Values() })
	case dtype.StorageBool:
		return collect(kind, shape, cols, func(a *array.Boolean) []bool {
			out := make([]bool, a.Len())
			for i := range out {
				out[i] = a.Value(i)
			}
			return out
		})
	case dtype.StorageString:
		return collect(kind, shape, cols, func(a *array.String) []string {
			out := make([]string, a.Len())
			for i := range out {
				out[i] = a.Value(i)
			}
			return out
		})
	}
	return nil, fmt.Errorf("%w: %v", tensor.ErrKind, kind)
}

// collect concatenates the column chunks; tensor.New copies out of arrow memory.
func collect[A arrow.Array, T tensor.Element](kind dtype.ElementKind, shape []int, cols []arrow.Array, values func(A) []T) (*tensor.Tensor, error) {
	var out []T
	for _, c := range cols {
		a, ok := c.(A)
		if !ok {
			return nil, fmt.Errorf("%w: column type %v does not hold %v", ErrCorrupt, c.DataType(), kind)
		}
		out = append(out, values(a)...)
	}
	if out == nil {
		out = []T{}
	}
	return tensor.New(kind, shape, out)
}
