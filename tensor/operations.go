package tensor

import (
	"fmt"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("dtype mismatch: %s vs %s", t1.DType, t2.DType)
	}
	return nil
}

// broadcastShapes accepts identical shapes, or a trailing-dimension broadcast
// such as [batch, n] + [n]. The result shape is the larger of the two.
func broadcastShapes(shape1, shape2 []int) ([]int, error) {
	if sameShape(shape1, shape2) {
		return shape1, nil
	}
	if len(shape1) == 2 && len(shape2) == 1 && shape1[1] == shape2[0] {
		return shape1, nil
	}
	if len(shape2) == 2 && len(shape1) == 1 && shape2[1] == shape1[0] {
		return shape2, nil
	}
	return nil, fmt.Errorf("shapes %v and %v are not broadcastable", shape1, shape2)
}

func elementwise(t1, t2 *Tensor, f func(a, b float32) float32) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	outShape, err := broadcastShapes(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	d1, err := t1.Float32Data()
	if err != nil {
		return nil, err
	}
	d2, err := t2.Float32Data()
	if err != nil {
		return nil, err
	}

	n := calculateNumElements(outShape)
	result := make([]float32, n)

	switch {
	case len(d1) == len(d2):
		for i := range result {
			result[i] = f(d1[i], d2[i])
		}
	case len(d1) > len(d2):
		// [batch, n] op [n]
		for i := range result {
			result[i] = f(d1[i], d2[i%len(d2)])
		}
	default:
		// [n] op [batch, n]
		for i := range result {
			result[i] = f(d1[i%len(d1)], d2[i])
		}
	}

	return NewTensor(outShape, t1.DType, t1.Device, result)
}

// Add computes the elementwise sum of two tensors.
func Add(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float32) float32 { return a + b })
}

// Sub computes the elementwise difference of two tensors.
func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float32) float32 { return a - b })
}

// Mul computes the elementwise product of two tensors.
func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float32) float32 { return a * b })
}

// Div computes the elementwise quotient of two tensors. Division by zero
// follows IEEE 754 float semantics.
func Div(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float32) float32 { return a / b })
}

// MulScalar scales every element of a Float32 tensor by s.
func MulScalar(t *Tensor, s float64) (*Tensor, error) {
	data, err := t.Float32Data()
	if err != nil {
		return nil, err
	}

	result := make([]float32, len(data))
	factor := float32(s)
	for i, v := range data {
		result[i] = v * factor
	}
	return NewTensor(t.Shape, t.DType, t.Device, result)
}

// ReLU computes max(0, x) elementwise.
func ReLU(t *Tensor) (*Tensor, error) {
	data, err := t.Float32Data()
	if err != nil {
		return nil, err
	}

	result := make([]float32, len(data))
	for i, v := range data {
		if v > 0 {
			result[i] = v
		}
	}
	return NewTensor(t.Shape, t.DType, t.Device, result)
}

// MatMul multiplies a [m, k] tensor by a [k, n] tensor. The AccelCPU device
// uses a cache-blocked kernel; plain CPU runs the straightforward loop.
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2D tensors, got %v and %v", t1.Shape, t2.Shape)
	}
	if t1.Shape[1] != t2.Shape[0] {
		return nil, fmt.Errorf("inner dimension mismatch: %v x %v", t1.Shape, t2.Shape)
	}

	m, k, n := t1.Shape[0], t1.Shape[1], t2.Shape[1]

	a, err := t1.Float32Data()
	if err != nil {
		return nil, err
	}
	b, err := t2.Float32Data()
	if err != nil {
		return nil, err
	}

	result := make([]float32, m*n)
	if t1.Device == AccelCPU || t2.Device == AccelCPU {
		matmulBlocked(a, b, result, m, k, n)
	} else {
		matmulNaive(a, b, result, m, k, n)
	}

	return NewTensor([]int{m, n}, t1.DType, t1.Device, result)
}

func matmulNaive(a, b, c []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < k; p++ {
				sum += a[i*k+p] * b[p*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

// matmulBlocked keeps the inner loop over contiguous rows of b so the
// compiler can vectorize it on AVX2-capable hardware.
func matmulBlocked(a, b, c []float32, m, k, n int) {
	const block = 64
	for i0 := 0; i0 < m; i0 += block {
		iMax := min(i0+block, m)
		for p0 := 0; p0 < k; p0 += block {
			pMax := min(p0+block, k)
			for i := i0; i < iMax; i++ {
				ci := c[i*n : (i+1)*n]
				for p := p0; p < pMax; p++ {
					av := a[i*k+p]
					bp := b[p*n : (p+1)*n]
					for j, bv := range bp {
						ci[j] += av * bv
					}
				}
			}
		}
	}
}

// Transpose returns the transpose of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2D tensor, got %v", t.Shape)
	}

	data, err := t.Float32Data()
	if err != nil {
		return nil, err
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result := make([]float32, len(data))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result[j*rows+i] = data[i*cols+j]
		}
	}
	return NewTensor([]int{cols, rows}, t.DType, t.Device, result)
}
