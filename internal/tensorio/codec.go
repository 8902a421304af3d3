// Package tensorio encodes tensors to files and lays golden cases out on disk.
package tensorio

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samcharles93/goldcase/internal/metrics"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

var (
	ErrUnknownFormat = errors.New("tensorio: unknown format")
	ErrCorrupt       = errors.New("tensorio: corrupt tensor file")
)

// Codec converts a single tensor to and from one file format.
type Codec interface {
	Name() string
	Ext() string
	Encode(t *tensor.Tensor) ([]byte, error)
	Decode(data []byte) (*tensor.Tensor, error)
}

// fileDecoder is implemented by codecs that can read a path more cheaply than
// loading it into memory first.
type fileDecoder interface {
	DecodeFile(path string) (*tensor.Tensor, error)
}

var codecs = map[string]Codec{}

func register(c Codec) {
	codecs[c.Name()] = c
}

func init() {
	register(ArrowCodec{})
	register(SafetensorsCodec{})
	register(JSONCodec{})
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
	return c, nil
}

// Formats lists codec names.
func Formats() []string {
	out := make([]string, 0, len(codecs))
	for name := range codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// WriteFile encodes t with c into path.
func WriteFile(c Codec, path string, t *tensor.Tensor) error {
	data, err := c.Encode(t)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	metrics.TensorBytesWrittenTotal.WithLabelValues(c.Name()).Add(float64(len(data)))
	return nil
}

// ReadFile decodes the tensor stored at path.
func ReadFile(c Codec, path string) (*tensor.Tensor, error) {
	if fd, ok := c.(fileDecoder); ok {
		t, err := fd.DecodeFile(path)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return t, nil
}
