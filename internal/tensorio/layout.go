package tensorio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/logger"
	"github.com/samcharles93/goldcase/pkg/qlinear"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

const (
	ManifestFile = "manifest.yaml"
	ModelFile    = "model.json"
	nodeDir      = "node"
	dataSetDir   = "test_data_set_0"
)

var (
	ErrCaseExists   = errors.New("tensorio: case already exists")
	ErrCaseNotFound = errors.New("tensorio: case not found")
)

// Manifest summarises one export run.
type Manifest struct {
	RunID   string          `yaml:"run_id"`
	Version string          `yaml:"version"`
	Seed    uint64          `yaml:"seed"`
	Format  string          `yaml:"format"`
	Created time.Time       `yaml:"created"`
	Cases   []ManifestEntry `yaml:"cases"`
}

type ManifestEntry struct {
	Name    string `yaml:"name"`
	OpType  string `yaml:"op_type"`
	Inputs  int    `yaml:"inputs"`
	Outputs int    `yaml:"outputs"`
}

// Model is the model.json document stored beside each case's data.
type Model struct {
	Name     string            `json:"name"`
	Format   string            `json:"format"`
	Node     graph.Node        `json:"node"`
	Inputs   []graph.ValueInfo `json:"inputs"`
	Outputs  []graph.ValueInfo `json:"outputs"`
	Rounding string            `json:"rounding,omitempty"`
}

type WriteOptions struct {
	Codec   Codec
	Seed    uint64
	Version string
	// Force replaces existing case directories.
	Force bool
}

// CaseDir returns the directory holding a case.
func CaseDir(root, name string) string {
	return filepath.Join(root, nodeDir, name)
}

func dataPath(root, name, role string, i int, c Codec) string {
	return filepath.Join(CaseDir(root, name), dataSetDir, role+"_"+strconv.Itoa(i)+c.Ext())
}

// WriteCases exports cases under root and writes the manifest last.
func WriteCases(ctx context.Context, root string, cases []casegen.Case, opts WriteOptions) (*Manifest, error) {
	log := logger.FromContext(ctx)
	if opts.Codec == nil {
		opts.Codec = ArrowCodec{}
	}
	m := &Manifest{
		RunID:   uuid.NewString(),
		Version: opts.Version,
		Seed:    opts.Seed,
		Format:  opts.Codec.Name(),
		Created: time.Now().UTC().Truncate(time.Second),
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeCase(root, c, opts); err != nil {
			return nil, err
		}
		m.Cases = append(m.Cases, ManifestEntry{
			Name:    c.Name,
			OpType:  c.Node.OpType,
			Inputs:  len(c.InputInfos()),
			Outputs: len(c.Outputs),
		})
		log.Debug("wrote case", "case", c.Name, "dir", CaseDir(root, c.Name))
	}

	raw, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(root, ManifestFile), raw, 0o644); err != nil {
		return nil, err
	}
	return m, nil
}

func writeCase(root string, c casegen.Case, opts WriteOptions) error {
	dir := CaseDir(root, c.Name)
	if _, err := os.Stat(dir); err == nil {
		if !opts.Force {
			return fmt.Errorf("%w: %s", ErrCaseExists, dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, dataSetDir), 0o755); err != nil {
		return err
	}

	model := Model{
		Name:    c.Name,
		Format:  opts.Codec.Name(),
		Node:    c.Node,
		Inputs:  c.InputInfos(),
		Outputs: c.OutputInfos(),
	}
	if c.Node.OpType == "QuantizeLinear" {
		model.Rounding = c.Rounding.String()
	}
	raw, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ModelFile), raw, 0o644); err != nil {
		return err
	}

	for i, t := range c.Inputs {
		if t == nil {
			continue
		}
		if err := WriteFile(opts.Codec, dataPath(root, c.Name, "input", i, opts.Codec), t); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	for i, t := range c.Outputs {
		if err := WriteFile(opts.Codec, dataPath(root, c.Name, "output", i, opts.Codec), t); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

// ReadManifest loads root/manifest.yaml.
func ReadManifest(root string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", ManifestFile, err)
	}
	return &m, nil
}

// ReadModel loads a case's model.json.
func ReadModel(root, name string) (*Model, error) {
	raw, err := os.ReadFile(filepath.Join(CaseDir(root, name), ModelFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s/%s: %w", name, ModelFile, err)
	}
	return &m, nil
}

// ReadTensor loads one input or output of a case. role is "input" or "output".
func ReadTensor(root string, m *Model, role string, i int) (*tensor.Tensor, error) {
	c, err := Lookup(m.Format)
	if err != nil {
		return nil, err
	}
	return ReadFile(c, dataPath(root, m.Name, role, i, c))
}

// ReadCase loads a case back into memory.
func ReadCase(root, name string) (casegen.Case, error) {
	m, err := ReadModel(root, name)
	if err != nil {
		return casegen.Case{}, err
	}
	c := casegen.Case{Name: m.Name, Node: m.Node, Rounding: qlinear.HalfToEven}
	if m.Rounding != "" {
		if c.Rounding, err = qlinear.ParseRounding(m.Rounding); err != nil {
			return casegen.Case{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	c.Inputs = make([]*tensor.Tensor, len(m.Node.Inputs))
	for i, in := range m.Node.Inputs {
		if in == "" {
			continue
		}
		if c.Inputs[i], err = ReadTensor(root, m, "input", i); err != nil {
			return casegen.Case{}, err
		}
	}
	c.Outputs = make([]*tensor.Tensor, len(m.Node.Outputs))
	for i := range m.Node.Outputs {
		if c.Outputs[i], err = ReadTensor(root, m, "output", i); err != nil {
			return casegen.Case{}, err
		}
	}
	return c, nil
}

// ReadCases loads every case listed in the manifest, in manifest order.
func ReadCases(ctx context.Context, root string) (*Manifest, []casegen.Case, error) {
	m, err := ReadManifest(root)
	if err != nil {
		return nil, nil, err
	}
	out := make([]casegen.Case, 0, len(m.Cases))
	for _, e := range m.Cases {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		c, err := ReadCase(root, e.Name)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, c)
	}
	return m, out, nil
}
