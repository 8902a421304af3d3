// Package shapeinfer holds operator schemas and infers output types and shapes.
package shapeinfer

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/pkg/dtype"
)

var (
	ErrUnknownOp      = errors.New("shapeinfer: unknown operator")
	ErrArity          = errors.New("shapeinfer: wrong number of inputs or outputs")
	ErrTypeConstraint = errors.New("shapeinfer: type constraint violated")
	ErrShape          = errors.New("shapeinfer: incompatible shapes")
)

// Formal is one declared input or output of an operator.
// TypeParam names an entry in Schema.Constraints; Fixed pins a single kind instead.
type Formal struct {
	Name      string
	TypeParam string
	Fixed     dtype.ElementKind
	Optional  bool
}

func (f Formal) allowed(s *Schema) []dtype.ElementKind {
	if f.TypeParam == "" {
		return []dtype.ElementKind{f.Fixed}
	}
	return s.Constraints[f.TypeParam]
}

// Schema declares an operator's signature.
type Schema struct {
	OpType      string
	Since       int
	Doc         string
	Inputs      []Formal
	Outputs     []Formal
	Constraints map[string][]dtype.ElementKind
	Attributes  map[string]graph.AttrType

	infer func(n graph.Node, in []graph.ValueInfo, bound map[string]dtype.ElementKind) ([]graph.ValueInfo, error)
}

func (s *Schema) minInputs() int {
	n := 0
	for i, f := range s.Inputs {
		if !f.Optional {
			n = i + 1
		}
	}
	return n
}

var schemas = map[string]*Schema{}

func register(s *Schema) {
	if _, dup := schemas[s.OpType]; dup {
		panic("shapeinfer: duplicate schema " + s.OpType)
	}
	schemas[s.OpType] = s
}

// Lookup returns the schema registered for opType.
func Lookup(opType string) (*Schema, error) {
	s, ok := schemas[opType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, opType)
	}
	return s, nil
}

// Schemas lists every registered schema ordered by op type.
func Schemas() []*Schema {
	out := make([]*Schema, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpType < out[j].OpType })
	return out
}

// Infer checks n and its inputs against the operator schema and returns the
// output value infos. in is aligned with n.Inputs; entries for omitted optional
// inputs (empty names) are ignored.
func Infer(n graph.Node, in []graph.ValueInfo) ([]graph.ValueInfo, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	s, err := Lookup(n.OpType)
	if err != nil {
		return nil, err
	}
	if len(n.Inputs) < s.minInputs() || len(n.Inputs) > len(s.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %d..%d inputs, got %d", ErrArity, n.OpType, s.minInputs(), len(s.Inputs), len(n.Inputs))
	}
	if len(n.Outputs) != len(s.Outputs) {
		return nil, fmt.Errorf("%w: %s has %d outputs, got %d", ErrArity, n.OpType, len(s.Outputs), len(n.Outputs))
	}
	if len(in) != len(n.Inputs) {
		return nil, fmt.Errorf("%w: %s names %d inputs but %d were described", ErrArity, n.OpType, len(n.Inputs), len(in))
	}
	for _, a := range n.Attributes {
		want, ok := s.Attributes[a.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no attribute %q", graph.ErrInvalidNode, n.OpType, a.Name)
		}
		if a.Type != want {
			return nil, fmt.Errorf("%w: %s.%s is %s, want %s", graph.ErrAttribute, n.OpType, a.Name, a.Type, want)
		}
	}

	bound := make(map[string]dtype.ElementKind, len(s.Constraints))
	for i, name := range n.Inputs {
		f := s.Inputs[i]
		if name == "" {
			if !f.Optional {
				return nil, fmt.Errorf("%w: %s input %q is required", ErrArity, n.OpType, f.Name)
			}
			continue
		}
		if err := bind(s, f, in[i].Kind, bound); err != nil {
			return nil, err
		}
	}

	out, err := s.infer(n, in, bound)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Name = n.Outputs[i]
		if !slices.Contains(s.Outputs[i].allowed(s), out[i].Kind) {
			return nil, fmt.Errorf("%w: %s output %q cannot be %v", ErrTypeConstraint, n.OpType, s.Outputs[i].Name, out[i].Kind)
		}
	}
	return out, nil
}

func bind(s *Schema, f Formal, k dtype.ElementKind, bound map[string]dtype.ElementKind) error {
	if !slices.Contains(f.allowed(s), k) {
		return fmt.Errorf("%w: %s input %q cannot be %v", ErrTypeConstraint, s.OpType, f.Name, k)
	}
	if f.TypeParam == "" {
		return nil
	}
	if prev, ok := bound[f.TypeParam]; ok && prev != k {
		return fmt.Errorf("%w: %s binds %s to both %v and %v", ErrTypeConstraint, s.OpType, f.TypeParam, prev, k)
	}
	bound[f.TypeParam] = k
	return nil
}

// present reports whether optional input i was supplied.
func present(n graph.Node, i int) bool {
	return i < len(n.Inputs) && n.Inputs[i] != ""
}
