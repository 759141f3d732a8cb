package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Float16
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Float16:
		return "Float16"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

type DeviceType int

const (
	CPU DeviceType = iota
	AccelCPU
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case AccelCPU:
		return "AccelCPU"
	default:
		return "Unknown"
	}
}

// Operation is implemented by autograd nodes. Backward receives the gradient
// flowing into the operation's output and returns one gradient per input.
type Operation interface {
	Inputs() []*Tensor
	Backward(gradOut *Tensor) ([]*Tensor, error)
}

type Tensor struct {
	Shape        []int
	Strides      []int
	DType        DType
	Device       DeviceType
	Data         interface{}
	NumElems     int
	requiresGrad bool
	grad         *Tensor
	creator      Operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s, elements=%d)",
		t.Shape, t.DType, t.Device, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// Float32Data returns the underlying float32 storage.
func (t *Tensor) Float32Data() ([]float32, error) {
	data, ok := t.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("tensor is %s, not Float32", t.DType)
	}
	return data, nil
}

// Int32Data returns the underlying int32 storage.
func (t *Tensor) Int32Data() ([]int32, error) {
	data, ok := t.Data.([]int32)
	if !ok {
		return nil, fmt.Errorf("tensor is %s, not Int32", t.DType)
	}
	return data, nil
}

// Item extracts the value of a single-element Float32 tensor.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}
	data, err := t.Float32Data()
	if err != nil {
		return 0, err
	}
	return float64(data[0]), nil
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
