package tensor

import (
	"fmt"
	"math/rand"
)

// NewTensor creates a tensor from existing data. The data length must match
// the number of elements implied by the shape.
func NewTensor(shape []int, dtype DType, device DeviceType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	t := &Tensor{
		Shape:    append([]int{}, shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		Device:   device,
		NumElems: calculateNumElements(shape),
	}

	if err := t.setData(data); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	switch t.DType {
	case Float32, Float16:
		d, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("expected []float32 data for %s tensor, got %T", t.DType, data)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), t.Shape, t.NumElems)
		}
		t.Data = d
	case Int32:
		d, ok := data.([]int32)
		if !ok {
			return fmt.Errorf("expected []int32 data for Int32 tensor, got %T", data)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), t.Shape, t.NumElems)
		}
		t.Data = d
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

// SetData replaces the tensor's storage in place, keeping shape and dtype.
func (t *Tensor) SetData(data interface{}) error {
	return t.setData(data)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	n := calculateNumElements(shape)
	switch dtype {
	case Float32, Float16:
		return NewTensor(shape, dtype, device, make([]float32, n))
	case Int32:
		return NewTensor(shape, dtype, device, make([]int32, n))
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

// Ones creates a one-filled tensor.
func Ones(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	t, err := Zeros(shape, dtype, device)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32, Float16:
		data := t.Data.([]float32)
		for i := range data {
			data[i] = 1
		}
	case Int32:
		data := t.Data.([]int32)
		for i := range data {
			data[i] = 1
		}
	}
	return t, nil
}

// FromScalar creates a single-element Float32 tensor.
func FromScalar(value float64, device DeviceType) (*Tensor, error) {
	return NewTensor([]int{1}, Float32, device, []float32{float32(value)})
}

// RandomUniform creates a Float32 tensor with values drawn from U(low, high).
func RandomUniform(shape []int, low, high float64, device DeviceType, rng *rand.Rand) (*Tensor, error) {
	if low >= high {
		return nil, fmt.Errorf("invalid range [%v, %v)", low, high)
	}
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	n := calculateNumElements(shape)
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(low + rng.Float64()*(high-low))
	}
	return NewTensor(shape, Float32, device, data)
}

// Clone returns a deep copy of the tensor. Gradient state is not copied.
func (t *Tensor) Clone() (*Tensor, error) {
	switch t.DType {
	case Float32, Float16:
		src := t.Data.([]float32)
		dst := make([]float32, len(src))
		copy(dst, src)
		return NewTensor(t.Shape, t.DType, t.Device, dst)
	case Int32:
		src := t.Data.([]int32)
		dst := make([]int32, len(src))
		copy(dst, src)
		return NewTensor(t.Shape, t.DType, t.Device, dst)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

// Reshape returns a view with a new shape over the same storage.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if calculateNumElements(shape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v", t.Shape, t.NumElems, shape)
	}

	return &Tensor{
		Shape:        append([]int{}, shape...),
		Strides:      calculateStrides(shape),
		DType:        t.DType,
		Device:       t.Device,
		Data:         t.Data,
		NumElems:     t.NumElems,
		requiresGrad: t.requiresGrad,
	}, nil
}
