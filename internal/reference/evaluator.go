// Package reference evaluates single nodes with the pure-Go kernels.
package reference

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/shapeinfer"
	"github.com/samcharles93/goldcase/pkg/cast"
	"github.com/samcharles93/goldcase/pkg/qlinear"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

var ErrMismatch = errors.New("reference: kernel output disagrees with inferred type")

type Option func(*options)

type options struct {
	rounding qlinear.Rounding
}

// WithRounding selects the tie-breaking rule for quantizing operators.
func WithRounding(r qlinear.Rounding) Option {
	return func(o *options) { o.rounding = r }
}

type kernel func(n graph.Node, in []*tensor.Tensor, o options) ([]*tensor.Tensor, error)

var kernels = map[string]kernel{
	"Cast":                  evalCast,
	"QuantizeLinear":        evalQuantize,
	"DequantizeLinear":      evalDequantize,
	"DynamicQuantizeLinear": evalDynamicQuantize,
}

// Ops lists the operators the evaluator can run.
func Ops() []string {
	out := make([]string, 0, len(kernels))
	for op := range kernels {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// Evaluate runs n on inputs, aligned with n.Inputs. A nil tensor stands for an
// omitted optional input. Inputs are type checked against the operator schema
// before the kernel runs.
func Evaluate(n graph.Node, inputs []*tensor.Tensor, opts ...Option) ([]*tensor.Tensor, error) {
	o := options{rounding: qlinear.HalfToEven}
	for _, opt := range opts {
		opt(&o)
	}
	k, ok := kernels[n.OpType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shapeinfer.ErrUnknownOp, n.OpType)
	}

	infos := make([]graph.ValueInfo, len(inputs))
	for i, t := range inputs {
		if t == nil {
			if i < len(n.Inputs) && n.Inputs[i] != "" {
				return nil, fmt.Errorf("reference: %s input %q has no value", n.OpType, n.Inputs[i])
			}
			continue
		}
		infos[i] = graph.ValueInfo{Kind: t.Kind(), Shape: t.Shape()}
		if i < len(n.Inputs) {
			infos[i].Name = n.Inputs[i]
		}
	}
	want, err := shapeinfer.Infer(n, infos)
	if err != nil {
		return nil, err
	}

	out, err := k(n, inputs, o)
	if err != nil {
		return nil, fmt.Errorf("reference: %s: %w", n.OpType, err)
	}
	for i, t := range out {
		if t.Kind() != want[i].Kind || !slices.Equal(t.Shape(), want[i].Shape) {
			return nil, fmt.Errorf("%w: %s output %d is %v, want %v", ErrMismatch, n.OpType, i, t, want[i])
		}
	}
	return out, nil
}

// Infos describes tensors as value infos named after names.
func Infos(names []string, ts []*tensor.Tensor) []graph.ValueInfo {
	out := make([]graph.ValueInfo, 0, len(ts))
	for i, t := range ts {
		if t == nil {
			continue
		}
		out = append(out, graph.ValueInfo{Name: names[i], Kind: t.Kind(), Shape: t.Shape()})
	}
	return out
}

func optional(in []*tensor.Tensor, i int) *tensor.Tensor {
	if i < len(in) {
		return in[i]
	}
	return nil
}

func broadcastOf(n graph.Node) (qlinear.Broadcast, error) {
	if !n.Has("axis") {
		return qlinear.Scalar(), nil
	}
	axis, err := n.IntAttr("axis", 0)
	if err != nil {
		return qlinear.Broadcast{}, err
	}
	return qlinear.PerAxis(int(axis)), nil
}

func evalCast(n graph.Node, in []*tensor.Tensor, _ options) ([]*tensor.Tensor, error) {
	to, err := n.KindAttr("to")
	if err != nil {
		return nil, err
	}
	y, err := cast.Cast(in[0], to)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{y}, nil
}

func evalQuantize(n graph.Node, in []*tensor.Tensor, o options) ([]*tensor.Tensor, error) {
	b, err := broadcastOf(n)
	if err != nil {
		return nil, err
	}
	y, err := qlinear.Quantize(in[0], in[1], optional(in, 2), b, qlinear.WithRounding(o.rounding))
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{y}, nil
}

func evalDequantize(n graph.Node, in []*tensor.Tensor, _ options) ([]*tensor.Tensor, error) {
	b, err := broadcastOf(n)
	if err != nil {
		return nil, err
	}
	y, err := qlinear.Dequantize(in[0], in[1], optional(in, 2), b)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{y}, nil
}

func evalDynamicQuantize(_ graph.Node, in []*tensor.Tensor, _ options) ([]*tensor.Tensor, error) {
	y, scale, zp, err := qlinear.DynamicQuantize(in[0])
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{y, scale, zp}, nil
}
