// Package graph describes single operator invocations.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/goldcase/pkg/dtype"
)

var (
	ErrInvalidNode = errors.New("graph: invalid node")
	ErrAttribute   = errors.New("graph: attribute type mismatch")
)

type AttrType string

const (
	AttrInt    AttrType = "int"
	AttrFloat  AttrType = "float"
	AttrString AttrType = "string"
	AttrInts   AttrType = "ints"
)

// Attribute is a typed node attribute. Only the field matching Type is meaningful.
type Attribute struct {
	Name   string   `json:"name" yaml:"name"`
	Type   AttrType `json:"type" yaml:"type"`
	Int    int64    `json:"i,omitempty" yaml:"i,omitempty"`
	Float  float32  `json:"f,omitempty" yaml:"f,omitempty"`
	String string   `json:"s,omitempty" yaml:"s,omitempty"`
	Ints   []int64  `json:"ints,omitempty" yaml:"ints,omitempty"`
}

func Int(name string, v int64) Attribute { return Attribute{Name: name, Type: AttrInt, Int: v} }

func Float(name string, v float32) Attribute {
	return Attribute{Name: name, Type: AttrFloat, Float: v}
}

func String(name, v string) Attribute { return Attribute{Name: name, Type: AttrString, String: v} }

func Ints(name string, v ...int64) Attribute {
	return Attribute{Name: name, Type: AttrInts, Ints: slices.Clone(v)}
}

// Kind stores an element kind as the int attribute the interchange format uses for "to".
func Kind(name string, k dtype.ElementKind) Attribute { return Int(name, int64(k)) }

// Node is one operator invocation. Inputs and Outputs name values positionally;
// an empty input name marks an omitted optional input.
type Node struct {
	OpType     string      `json:"op_type" yaml:"op_type"`
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Inputs     []string    `json:"inputs" yaml:"inputs"`
	Outputs    []string    `json:"outputs" yaml:"outputs"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// MakeNode builds a node. Later attributes replace earlier ones with the same name.
func MakeNode(opType string, inputs, outputs []string, attrs ...Attribute) Node {
	n := Node{
		OpType:  opType,
		Inputs:  slices.Clone(inputs),
		Outputs: slices.Clone(outputs),
	}
	for _, a := range attrs {
		n = n.With(a)
	}
	return n
}

// With returns a copy of n with a set.
func (n Node) With(a Attribute) Node {
	out := n.clone()
	for i := range out.Attributes {
		if out.Attributes[i].Name == a.Name {
			out.Attributes[i] = a
			return out
		}
	}
	out.Attributes = append(out.Attributes, a)
	return out
}

func (n Node) clone() Node {
	out := n
	out.Inputs = slices.Clone(n.Inputs)
	out.Outputs = slices.Clone(n.Outputs)
	out.Attributes = make([]Attribute, len(n.Attributes))
	for i, a := range n.Attributes {
		a.Ints = slices.Clone(a.Ints)
		out.Attributes[i] = a
	}
	return out
}

func (n Node) Attr(name string) (Attribute, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

func (n Node) Has(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// IntAttr returns the named int attribute, or def when it is absent.
func (n Node) IntAttr(name string, def int64) (int64, error) {
	a, ok := n.Attr(name)
	if !ok {
		return def, nil
	}
	if a.Type != AttrInt {
		return 0, fmt.Errorf("%w: %s.%s is %s, want %s", ErrAttribute, n.OpType, name, a.Type, AttrInt)
	}
	return a.Int, nil
}

func (n Node) StringAttr(name, def string) (string, error) {
	a, ok := n.Attr(name)
	if !ok {
		return def, nil
	}
	if a.Type != AttrString {
		return "", fmt.Errorf("%w: %s.%s is %s, want %s", ErrAttribute, n.OpType, name, a.Type, AttrString)
	}
	return a.String, nil
}

// KindAttr reads an element kind stored as an int attribute.
func (n Node) KindAttr(name string) (dtype.ElementKind, error) {
	a, ok := n.Attr(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s requires attribute %q", ErrInvalidNode, n.OpType, name)
	}
	if a.Type != AttrInt {
		return 0, fmt.Errorf("%w: %s.%s is %s, want %s", ErrAttribute, n.OpType, name, a.Type, AttrInt)
	}
	k := dtype.ElementKind(a.Int)
	if !k.Valid() {
		return 0, fmt.Errorf("%w: %s.%s = %d", dtype.ErrUnknownKind, n.OpType, name, a.Int)
	}
	return k, nil
}

// Validate checks structural well-formedness, independent of any schema.
func (n Node) Validate() error {
	if n.OpType == "" {
		return fmt.Errorf("%w: empty op type", ErrInvalidNode)
	}
	if len(n.Outputs) == 0 {
		return fmt.Errorf("%w: %s has no outputs", ErrInvalidNode, n.OpType)
	}
	seen := make(map[string]struct{}, len(n.Attributes))
	for _, a := range n.Attributes {
		if a.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed attribute", ErrInvalidNode, n.OpType)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: %s has duplicate attribute %q", ErrInvalidNode, n.OpType, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	for i, o := range n.Outputs {
		if o == "" {
			return fmt.Errorf("%w: %s output %d is unnamed", ErrInvalidNode, n.OpType, i)
		}
	}
	return nil
}

// ValueInfo describes a named value flowing into or out of a node.
type ValueInfo struct {
	Name  string            `json:"name" yaml:"name"`
	Kind  dtype.ElementKind `json:"kind" yaml:"kind"`
	Shape []int             `json:"shape" yaml:"shape"`
}

func (v ValueInfo) String() string {
	return fmt.Sprintf("%s: %v%v", v.Name, v.Kind, v.Shape)
}
