// Package casegen builds golden operator cases.
//
// Each generator exports one operator's cases into a Collector, which checks every
// case against the reference evaluator before accepting it.
package casegen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/logger"
	"github.com/samcharles93/goldcase/internal/reference"
	"github.com/samcharles93/goldcase/pkg/qlinear"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

var (
	ErrDuplicateCase    = errors.New("casegen: duplicate case name")
	ErrInvalidCase      = errors.New("casegen: invalid case")
	ErrMismatch         = errors.New("casegen: output mismatch")
	ErrUnknownGenerator = errors.New("casegen: unknown generator")
)

// Float outputs are compared with these tolerances; every other kind must match bit for bit.
const (
	RTol = 1e-5
	ATol = 1e-8
)

// Case is one node invocation with its literal inputs and expected outputs.
type Case struct {
	Name     string
	Node     graph.Node
	Inputs   []*tensor.Tensor
	Outputs  []*tensor.Tensor
	Rounding qlinear.Rounding
}

// InputInfos describes the supplied inputs.
func (c Case) InputInfos() []graph.ValueInfo { return reference.Infos(c.Node.Inputs, c.Inputs) }

// OutputInfos describes the expected outputs.
func (c Case) OutputInfos() []graph.ValueInfo { return reference.Infos(c.Node.Outputs, c.Outputs) }

type ExpectOption func(*Case)

// WithRounding records the tie-breaking rule the case's outputs were produced with.
func WithRounding(r qlinear.Rounding) ExpectOption {
	return func(c *Case) { c.Rounding = r }
}

// Collector accumulates checked cases in the order they were expected.
type Collector struct {
	cases []Case
	names map[string]struct{}
}

func NewCollector() *Collector {
	return &Collector{names: make(map[string]struct{})}
}

// Expect records a case after checking it against the reference evaluator.
func (c *Collector) Expect(node graph.Node, inputs, outputs []*tensor.Tensor, name string, opts ...ExpectOption) error {
	tc := Case{
		Name:     name,
		Node:     node,
		Inputs:   slices.Clone(inputs),
		Outputs:  slices.Clone(outputs),
		Rounding: qlinear.HalfToEven,
	}
	for _, opt := range opts {
		opt(&tc)
	}
	if !strings.HasPrefix(name, "test_") {
		return fmt.Errorf("%w: %q must start with test_", ErrInvalidCase, name)
	}
	if _, dup := c.names[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateCase, name)
	}
	if err := Check(tc); err != nil {
		return err
	}
	c.names[name] = struct{}{}
	c.cases = append(c.cases, tc)
	return nil
}

// Cases returns the collected cases.
func (c *Collector) Cases() []Case { return slices.Clone(c.cases) }

// Check re-evaluates tc and compares the result with its expected outputs.
func Check(tc Case) error {
	if err := tc.Node.Validate(); err != nil {
		return fmt.Errorf("%s: %w", tc.Name, err)
	}
	if len(tc.Inputs) != len(tc.Node.Inputs) || len(tc.Outputs) != len(tc.Node.Outputs) {
		return fmt.Errorf("%w: %s: node names %d inputs and %d outputs, case has %d and %d",
			ErrInvalidCase, tc.Name, len(tc.Node.Inputs), len(tc.Node.Outputs), len(tc.Inputs), len(tc.Outputs))
	}
	got, err := reference.Evaluate(tc.Node, tc.Inputs, reference.WithRounding(tc.Rounding))
	if err != nil {
		return fmt.Errorf("%s: %w", tc.Name, err)
	}
	for i := range got {
		if err := Compare(tc.Outputs[i], got[i]); err != nil {
			return fmt.Errorf("%s: output %q: %w", tc.Name, tc.Node.Outputs[i], err)
		}
	}
	return nil
}

// Compare reports whether got matches want under the case comparison rules.
func Compare(want, got *tensor.Tensor) error {
	if want.Kind() != got.Kind() || !slices.Equal(want.Shape(), got.Shape()) {
		return fmt.Errorf("%w: want %v, got %v", ErrMismatch, want, got)
	}
	ok := tensor.Equal(want, got)
	if !ok && (want.Kind().IsFloat() && want.Kind().Descriptor().Bits >= 32) {
		ok = tensor.AllClose(want, got, RTol, ATol)
	}
	if !ok {
		return fmt.Errorf("%w: want %v, got %v", ErrMismatch, want.Data(), got.Data())
	}
	return nil
}

// ExportFunc emits a generator's cases.
type ExportFunc func(c *Collector, rng *rand.Rand) error

// Generator produces the cases for one operator.
type Generator struct {
	Name   string
	OpType string
	Doc    string
	Export ExportFunc
}

var generators = map[string]Generator{}

func register(g Generator) {
	if _, dup := generators[g.Name]; dup {
		panic("casegen: duplicate generator " + g.Name)
	}
	generators[g.Name] = g
}

// Generators lists the registered generators ordered by name.
func Generators() []Generator {
	out := make([]Generator, 0, len(generators))
	for _, g := range generators {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run executes the named generators, or all of them when names is empty. Each
// generator draws from its own stream derived from seed and its name, so the
// cases a generator produces do not depend on which others run.
func Run(ctx context.Context, seed uint64, names ...string) ([]Case, error) {
	log := logger.FromContext(ctx)
	selected := Generators()
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			g, ok := generators[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
			}
			selected = append(selected, g)
		}
	}

	c := NewCollector()
	for _, g := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := len(c.cases)
		rng := rand.New(rand.NewPCG(seed, xxhash.Sum64String(g.Name)))
		if err := g.Export(c, rng); err != nil {
			return nil, fmt.Errorf("generator %s: %w", g.Name, err)
		}
		log.Debug("generator finished", "generator", g.Name, "cases", len(c.cases)-before)
	}
	return c.Cases(), nil
}
