// Package safetensors reads and writes the safetensors container format.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

var (
	ErrCorruptFile     = errors.New("safetensors: corrupt file")
	ErrTensorNotFound  = errors.New("safetensors: tensor not found")
	ErrUnsupportedKind = errors.New("safetensors: unsupported element kind")
)

// maxHeaderLen bounds the JSON header so a corrupt length cannot force a huge allocation.
const maxHeaderLen = 100 << 20

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

type File struct {
	Path      string
	DataStart int64
	Tensors   map[string]TensorInfo
	Metadata  map[string]string

	data    []byte
	mmapped bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps a safetensors file read-only and parses its header. Platforms
// without mmap read the whole file instead. The file must be closed.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size < 8 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s: size %d", ErrCorruptFile, path, size)
	}

	data, mmapped, err := mapFile(f, int(size))
	if err != nil {
		return nil, err
	}
	sf, err := parse(data)
	if err != nil {
		if mmapped {
			_ = unmap(data)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sf.Path = path
	sf.data = data
	sf.mmapped = mmapped
	return sf, nil
}

// Parse reads a safetensors image held in memory.
func Parse(data []byte) (*File, error) {
	sf, err := parse(data)
	if err != nil {
		return nil, err
	}
	sf.data = data
	return sf, nil
}

func parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: missing header length", ErrCorruptFile)
	}
	headerLen := binary.LittleEndian.Uint64(data)
	if headerLen > maxHeaderLen || headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header length %d exceeds file", ErrCorruptFile, headerLen)
	}
	headerBytes := data[8 : 8+headerLen]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptFile, err)
	}
	var meta map[string]string
	if m, ok := raw["__metadata__"]; ok {
		if err := json.Unmarshal(m, &meta); err != nil {
			return nil, fmt.Errorf("%w: __metadata__: %v", ErrCorruptFile, err)
		}
		delete(raw, "__metadata__")
	}

	dataStart := int64(8 + headerLen)
	dataLen := int64(len(data)) - dataStart
	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrCorruptFile, name, err)
		}
		if len(th.DataOffsets) != 2 {
			return nil, fmt.Errorf("%w: tensor %s: invalid data_offsets", ErrCorruptFile, name)
		}
		start, end := th.DataOffsets[0], th.DataOffsets[1]
		if start < 0 || end < start || end > dataLen {
			return nil, fmt.Errorf("%w: tensor %s: offsets [%d, %d) outside %d data bytes", ErrCorruptFile, name, start, end, dataLen)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: start,
			End:   end,
		}
	}
	return &File{
		DataStart: dataStart,
		Tensors:   tensors,
		Metadata:  meta,
	}, nil
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Names returns tensor names in data order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := f.Tensors[names[i]], f.Tensors[names[j]]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return names[i] < names[j]
	})
	return names
}

// ReadTensor returns the raw little-endian bytes of a tensor. The slice aliases
// the mapping and is only valid until Close.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	off := f.DataStart + t.Start
	return f.data[off : f.DataStart+t.End : f.DataStart+t.End], t, nil
}

// Close releases the mapping.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unmap(f.data)
	}
	f.data = nil
	f.mmapped = false
	return err
}

// Entry is one tensor to write.
type Entry struct {
	Name  string
	DType string
	Shape []int
	Data  []byte
}

// Write encodes entries in order. The header is padded with spaces so the data
// section starts 8-byte aligned.
func Write(w io.Writer, entries []Entry, metadata map[string]string) error {
	header := make(map[string]any, len(entries)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	var off int64
	for _, e := range entries {
		if e.Name == "" || e.Name == "__metadata__" {
			return fmt.Errorf("safetensors: invalid tensor name %q", e.Name)
		}
		if _, dup := header[e.Name]; dup {
			return fmt.Errorf("safetensors: duplicate tensor %q", e.Name)
		}
		size, ok := DTypeSize(e.DType)
		if !ok {
			return fmt.Errorf("%w: dtype %s", ErrUnsupportedKind, e.DType)
		}
		n := 1
		for _, d := range e.Shape {
			n *= d
		}
		if n*size != len(e.Data) {
			return fmt.Errorf("safetensors: tensor %s: %d bytes for shape %v of %s", e.Name, len(e.Data), e.Shape, e.DType)
		}
		shape := e.Shape
		if shape == nil {
			shape = []int{}
		}
		header[e.Name] = tensorHeader{
			DType:       e.DType,
			Shape:       shape,
			DataOffsets: []int64{off, off + int64(len(e.Data))},
		}
		off += int64(len(e.Data))
	}

	hb, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if pad := len(hb) % 8; pad != 0 {
		hb = append(hb, bytes.Repeat([]byte{' '}, 8-pad)...)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(hb)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := w.Write(e.Data); err != nil {
			return err
		}
	}
	return nil
}

var dtypeSizes = map[string]int{
	"BOOL": 1, "U8": 1, "I8": 1,
	"F16": 2, "BF16": 2, "U16": 2, "I16": 2,
	"F32": 4, "U32": 4, "I32": 4,
	"F64": 8, "U64": 8, "I64": 8,
}

// DTypeSize returns the element size in bytes of a safetensors dtype name.
func DTypeSize(dtype string) (int, bool) {
	n, ok := dtypeSizes[dtype]
	return n, ok
}
