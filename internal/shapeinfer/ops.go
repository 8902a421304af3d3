package shapeinfer

import (
	"fmt"
	"slices"

	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/pkg/dtype"
)

var castKinds = []dtype.ElementKind{
	dtype.Float16, dtype.Float, dtype.Double, dtype.BFloat16,
	dtype.Int8, dtype.Int16, dtype.Int32, dtype.Int64,
	dtype.Uint8, dtype.Uint16, dtype.Uint32, dtype.Uint64,
	dtype.Bool, dtype.String,
}

func init() {
	register(&Schema{
		OpType: "Cast",
		Since:  9,
		Doc:    "Casts the elements of a tensor to the kind named by 'to'.",
		Inputs: []Formal{{Name: "input", TypeParam: "T1"}},
		Outputs: []Formal{
			{Name: "output", TypeParam: "T2"},
		},
		Constraints: map[string][]dtype.ElementKind{"T1": castKinds, "T2": castKinds},
		Attributes:  map[string]graph.AttrType{"to": graph.AttrInt},
		infer: func(n graph.Node, in []graph.ValueInfo, _ map[string]dtype.ElementKind) ([]graph.ValueInfo, error) {
			to, err := n.KindAttr("to")
			if err != nil {
				return nil, err
			}
			return []graph.ValueInfo{{Kind: to, Shape: slices.Clone(in[0].Shape)}}, nil
		},
	})

	register(&Schema{
		OpType: "QuantizeLinear",
		Since:  10,
		Doc:    "y = saturate(round(x / y_scale) + y_zero_point). y takes the zero point's kind, UINT8 when it is omitted.",
		Inputs: []Formal{
			{Name: "x", TypeParam: "T1"},
			{Name: "y_scale", Fixed: dtype.Float},
			{Name: "y_zero_point", TypeParam: "T2", Optional: true},
		},
		Outputs: []Formal{{Name: "y", TypeParam: "T2"}},
		Constraints: map[string][]dtype.ElementKind{
			"T1": {dtype.Float, dtype.Int32},
			"T2": {dtype.Int8, dtype.Uint8},
		},
		Attributes: map[string]graph.AttrType{"axis": graph.AttrInt},
		infer: func(n graph.Node, in []graph.ValueInfo, bound map[string]dtype.ElementKind) ([]graph.ValueInfo, error) {
			if err := checkParams(n, in); err != nil {
				return nil, err
			}
			k, ok := bound["T2"]
			if !ok {
				k = dtype.Uint8
			}
			return []graph.ValueInfo{{Kind: k, Shape: slices.Clone(in[0].Shape)}}, nil
		},
	})

	register(&Schema{
		OpType: "DequantizeLinear",
		Since:  10,
		Doc:    "y = (x - x_zero_point) * x_scale. INT32 inputs carry no zero point.",
		Inputs: []Formal{
			{Name: "x", TypeParam: "T"},
			{Name: "x_scale", Fixed: dtype.Float},
			{Name: "x_zero_point", TypeParam: "T", Optional: true},
		},
		Outputs: []Formal{{Name: "y", Fixed: dtype.Float}},
		Constraints: map[string][]dtype.ElementKind{
			"T": {dtype.Int8, dtype.Uint8, dtype.Int32},
		},
		Attributes: map[string]graph.AttrType{"axis": graph.AttrInt},
		infer: func(n graph.Node, in []graph.ValueInfo, _ map[string]dtype.ElementKind) ([]graph.ValueInfo, error) {
			if err := checkParams(n, in); err != nil {
				return nil, err
			}
			return []graph.ValueInfo{{Kind: dtype.Float, Shape: slices.Clone(in[0].Shape)}}, nil
		},
	})

	register(&Schema{
		OpType: "DynamicQuantizeLinear",
		Since:  11,
		Doc:    "Computes a UINT8 scale and zero point covering [min(0, x), max(0, x)] and quantizes x with them.",
		Inputs: []Formal{{Name: "x", TypeParam: "T1"}},
		Outputs: []Formal{
			{Name: "y", TypeParam: "T2"},
			{Name: "y_scale", Fixed: dtype.Float},
			{Name: "y_zero_point", TypeParam: "T2"},
		},
		Constraints: map[string][]dtype.ElementKind{
			"T1": {dtype.Float},
			"T2": {dtype.Uint8},
		},
		Attributes: map[string]graph.AttrType{"to": graph.AttrInt},
		infer: func(n graph.Node, in []graph.ValueInfo, _ map[string]dtype.ElementKind) ([]graph.ValueInfo, error) {
			if n.Has("to") {
				k, err := n.KindAttr("to")
				if err != nil {
					return nil, err
				}
				if k != dtype.Uint8 {
					return nil, fmt.Errorf("%w: %s 'to' must be UINT8, got %v", ErrTypeConstraint, n.OpType, k)
				}
			}
			return []graph.ValueInfo{
				{Kind: dtype.Uint8, Shape: slices.Clone(in[0].Shape)},
				{Kind: dtype.Float, Shape: []int{}},
				{Kind: dtype.Uint8, Shape: []int{}},
			}, nil
		},
	})
}

// checkParams validates scale and zero point shapes against x and the axis attribute.
func checkParams(n graph.Node, in []graph.ValueInfo) error {
	x, scale := in[0], in[1]
	if present(n, 2) && !slices.Equal(in[2].Shape, scale.Shape) {
		return fmt.Errorf("%w: %s scale %v and zero point %v differ", ErrShape, n.OpType, scale.Shape, in[2].Shape)
	}
	count := 1
	for _, d := range scale.Shape {
		count *= d
	}
	if !n.Has("axis") {
		if len(scale.Shape) > 1 || count != 1 {
			return fmt.Errorf("%w: %s without axis needs a single scale, got shape %v", ErrShape, n.OpType, scale.Shape)
		}
		return nil
	}
	axis, err := n.IntAttr("axis", 0)
	if err != nil {
		return err
	}
	rank := int64(len(x.Shape))
	if axis < -rank || axis >= rank {
		return fmt.Errorf("%w: %s axis %d out of range for rank %d", ErrShape, n.OpType, axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	if len(scale.Shape) != 1 || scale.Shape[0] != x.Shape[axis] {
		return fmt.Errorf("%w: %s scale shape %v does not match axis %d of %v", ErrShape, n.OpType, scale.Shape, axis, x.Shape)
	}
	return nil
}
