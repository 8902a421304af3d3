package tensorio

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/goldcase/pkg/cast"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

// Document is the JSON form of a tensor. Numbers keep their source precision;
// non-finite floats are written as the strings "nan", "inf" and "-inf".
type Document struct {
	Kind   dtype.ElementKind `json:"kind"`
	Shape  []int             `json:"shape"`
	Values []any             `json:"values"`
}

// ToDocument renders t for JSON output.
func ToDocument(t *tensor.Tensor) (Document, error) {
	doc := Document{Kind: t.Kind(), Shape: t.Shape(), Values: make([]any, t.Len())}
	switch v := t.Data().(type) {
	case []bool:
		for i, b := range v {
			doc.Values[i] = b
		}
		return doc, nil
	case []string:
		for i, s := range v {
			doc.Values[i] = s
		}
		return doc, nil
	}

	text, err := cast.Cast(t, dtype.String)
	if err != nil {
		return Document{}, err
	}
	strs, err := tensor.Values[string](text)
	if err != nil {
		return Document{}, err
	}
	for i, s := range strs {
		switch s {
		case "nan", "inf", "-inf":
			doc.Values[i] = s
		default:
			doc.Values[i] = json.Number(s)
		}
	}
	return doc, nil
}

// FromDocument builds the tensor a Document describes. Values may be JSON
// numbers, numeric strings or booleans; they are parsed as doc.Kind literals.
func FromDocument(doc Document) (*tensor.Tensor, error) {
	if !doc.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", dtype.ErrUnknownKind, int32(doc.Kind))
	}
	shape := doc.Shape
	if shape == nil {
		shape = []int{}
	}
	text := make([]string, len(doc.Values))
	for i, v := range doc.Values {
		switch x := v.(type) {
		case string:
			text[i] = x
		case json.Number:
			text[i] = x.String()
		case float64:
			text[i] = strconv.FormatFloat(x, 'g', -1, 64)
		case bool:
			text[i] = strconv.FormatBool(x)
		case nil:
			return nil, fmt.Errorf("%w: value %d is null", ErrCorrupt, i)
		default:
			return nil, fmt.Errorf("%w: value %d has unsupported JSON type %T", ErrCorrupt, i, v)
		}
	}
	s, err := tensor.New(dtype.String, shape, text)
	if err != nil {
		return nil, err
	}
	if doc.Kind == dtype.String {
		return s, nil
	}
	return cast.Cast(s, doc.Kind)
}

// DecodeDocument parses JSON into a Document, keeping numbers exact.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return doc, nil
}

// JSONCodec stores one Document per file.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Ext() string  { return ".json" }

func (JSONCodec) Encode(t *tensor.Tensor) ([]byte, error) {
	doc, err := ToDocument(t)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (JSONCodec) Decode(data []byte) (*tensor.Tensor, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}
