package qlinear

import "fmt"

// Broadcast selects how scale and zero point line up with the data tensor.
// The zero value is Scalar.
type Broadcast struct {
	perAxis bool
	axis    int
}

// Scalar applies a single scale and zero point to every element.
func Scalar() Broadcast { return Broadcast{} }

// PerAxis applies scale[i] and zero_point[i] to the i-th slice along axis.
// Negative axes count from the last dimension.
func PerAxis(axis int) Broadcast { return Broadcast{perAxis: true, axis: axis} }

func (b Broadcast) IsScalar() bool { return !b.perAxis }

// Axis returns the configured axis. It is meaningless for Scalar.
func (b Broadcast) Axis() int { return b.axis }

func (b Broadcast) String() string {
	if !b.perAxis {
		return "scalar"
	}
	return fmt.Sprintf("axis=%d", b.axis)
}

// plan maps a flat element index to its parameter index.
type plan struct {
	groups int
	inner  int
}

func (p plan) group(i int) int {
	if p.groups <= 1 {
		return 0
	}
	return (i / p.inner) % p.groups
}

// resolve checks the parameter shape against the data shape.
func (b Broadcast) resolve(shape, paramShape []int) (plan, error) {
	paramLen := 1
	for _, d := range paramShape {
		paramLen *= d
	}
	if !b.perAxis {
		if paramLen != 1 {
			return plan{}, fmt.Errorf("%w: scalar broadcast needs one parameter, got shape %v", ErrBroadcast, paramShape)
		}
		return plan{groups: 1, inner: 1}, nil
	}
	axis := b.axis
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		return plan{}, fmt.Errorf("%w: axis %d out of range for rank %d", ErrBroadcast, b.axis, len(shape))
	}
	if len(paramShape) != 1 {
		return plan{}, fmt.Errorf("%w: per-axis parameters must be rank 1, got shape %v", ErrBroadcast, paramShape)
	}
	if paramShape[0] != shape[axis] {
		return plan{}, fmt.Errorf("%w: %d parameters for axis %d of extent %d", ErrBroadcast, paramShape[0], axis, shape[axis])
	}
	inner := 1
	for _, d := range shape[axis+1:] {
		inner *= d
	}
	if inner == 0 {
		inner = 1
	}
	return plan{groups: shape[axis], inner: inner}, nil
}
