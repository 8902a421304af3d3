package tensorio

import (
	"bytes"
	"fmt"

	"github.com/samcharles93/goldcase/internal/safetensors"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

const (
	safetensorsName    = "tensor"
	safetensorsKindKey = "goldcase.kind"
)

var stDTypes = map[dtype.ElementKind]string{
	dtype.Float:    "F32",
	dtype.Double:   "F64",
	dtype.Float16:  "F16",
	dtype.BFloat16: "BF16",
	dtype.Uint8:    "U8",
	dtype.Int8:     "I8",
	dtype.Uint16:   "U16",
	dtype.Int16:    "I16",
	dtype.Int32:    "I32",
	dtype.Int64:    "I64",
	dtype.Uint32:   "U32",
	dtype.Uint64:   "U64",
	dtype.Bool:     "BOOL",
}

// SafetensorsCodec stores one tensor named "tensor". STRING has no safetensors
// encoding and is rejected.
type SafetensorsCodec struct{}

func (SafetensorsCodec) Name() string { return "safetensors" }
func (SafetensorsCodec) Ext() string  { return ".safetensors" }

func (SafetensorsCodec) Encode(t *tensor.Tensor) ([]byte, error) {
	st, ok := stDTypes[t.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %v", safetensors.ErrUnsupportedKind, t.Kind())
	}
	raw, err := t.Bytes()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = safetensors.Write(&buf, []safetensors.Entry{{
		Name:  safetensorsName,
		DType: st,
		Shape: t.Shape(),
		Data:  raw,
	}}, map[string]string{safetensorsKindKey: t.Kind().String()})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (SafetensorsCodec) Decode(data []byte) (*tensor.Tensor, error) {
	f, err := safetensors.Parse(data)
	if err != nil {
		return nil, err
	}
	return decodeSafetensors(f)
}

// DecodeFile reads through a memory mapping instead of loading the file.
func (SafetensorsCodec) DecodeFile(path string) (*tensor.Tensor, error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return decodeSafetensors(f)
}

func decodeSafetensors(f *safetensors.File) (*tensor.Tensor, error) {
	raw, info, err := f.ReadTensor(safetensorsName)
	if err != nil {
		return nil, err
	}
	kind, err := kindOfDType(info.DType)
	if err != nil {
		return nil, err
	}
	if name, ok := f.Metadata[safetensorsKindKey]; ok {
		meta, err := dtype.Parse(name)
		if err != nil {
			return nil, err
		}
		if meta != kind {
			return nil, fmt.Errorf("%w: dtype %s disagrees with %s=%s", ErrCorrupt, info.DType, safetensorsKindKey, name)
		}
	}
	// FromBytes copies, so the result outlives the mapping.
	return tensor.FromBytes(kind, info.Shape, raw)
}

func kindOfDType(st string) (dtype.ElementKind, error) {
	for k, v := range stDTypes {
		if v == st {
			return k, nil
		}
	}
	return dtype.Undefined, fmt.Errorf("%w: dtype %s", safetensors.ErrUnsupportedKind, st)
}
