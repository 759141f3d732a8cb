package tensor

import (
	"fmt"
	"math/rand"
)

// needsGraph reports whether an operation over the inputs must record an
// autograd node.
func needsGraph(inputs ...*Tensor) bool {
	for _, in := range inputs {
		if in.requiresGrad || in.creator != nil {
			return true
		}
	}
	return false
}

// reduceGradientToShape sums a broadcast gradient back down to the shape of
// the input it belongs to, e.g. a [batch, n] gradient for a [n] bias.
func reduceGradientToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	if sameShape(grad.Shape, targetShape) {
		return grad, nil
	}
	if len(grad.Shape) == 2 && len(targetShape) == 1 && grad.Shape[1] == targetShape[0] {
		data, err := grad.Float32Data()
		if err != nil {
			return nil, err
		}
		n := targetShape[0]
		reduced := make([]float32, n)
		for i, v := range data {
			reduced[i%n] += v
		}
		return NewTensor(targetShape, grad.DType, grad.Device, reduced)
	}
	return nil, fmt.Errorf("cannot reduce gradient %v to shape %v", grad.Shape, targetShape)
}

type addOp struct {
	a, b *Tensor
}

func (op *addOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *addOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	gradA, err := reduceGradientToShape(gradOut, op.a.Shape)
	if err != nil {
		return nil, fmt.Errorf("add backward (lhs): %w", err)
	}
	gradB, err := reduceGradientToShape(gradOut, op.b.Shape)
	if err != nil {
		return nil, fmt.Errorf("add backward (rhs): %w", err)
	}
	return []*Tensor{gradA, gradB}, nil
}

type matMulOp struct {
	a, b *Tensor
}

func (op *matMulOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *matMulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	// dL/dA = dL/dY @ B^T, dL/dB = A^T @ dL/dY
	bT, err := Transpose(op.b)
	if err != nil {
		return nil, fmt.Errorf("matmul backward: %w", err)
	}
	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		return nil, fmt.Errorf("matmul backward (lhs): %w", err)
	}

	aT, err := Transpose(op.a)
	if err != nil {
		return nil, fmt.Errorf("matmul backward: %w", err)
	}
	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		return nil, fmt.Errorf("matmul backward (rhs): %w", err)
	}

	return []*Tensor{gradA, gradB}, nil
}

type reluOp struct {
	input *Tensor
}

func (op *reluOp) Inputs() []*Tensor { return []*Tensor{op.input} }

func (op *reluOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	inData, err := op.input.Float32Data()
	if err != nil {
		return nil, err
	}
	gradData, err := gradOut.Float32Data()
	if err != nil {
		return nil, err
	}

	result := make([]float32, len(gradData))
	for i := range result {
		if inData[i] > 0 {
			result[i] = gradData[i]
		}
	}

	grad, err := NewTensor(op.input.Shape, op.input.DType, op.input.Device, result)
	if err != nil {
		return nil, err
	}
	return []*Tensor{grad}, nil
}

type reshapeOp struct {
	input *Tensor
}

func (op *reshapeOp) Inputs() []*Tensor { return []*Tensor{op.input} }

func (op *reshapeOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := gradOut.Reshape(op.input.Shape)
	if err != nil {
		return nil, fmt.Errorf("reshape backward: %w", err)
	}
	return []*Tensor{grad}, nil
}

type dropoutOp struct {
	input *Tensor
	mask  []float32
}

func (op *dropoutOp) Inputs() []*Tensor { return []*Tensor{op.input} }

func (op *dropoutOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	gradData, err := gradOut.Float32Data()
	if err != nil {
		return nil, err
	}

	result := make([]float32, len(gradData))
	for i := range result {
		result[i] = gradData[i] * op.mask[i]
	}

	grad, err := NewTensor(op.input.Shape, op.input.DType, op.input.Device, result)
	if err != nil {
		return nil, err
	}
	return []*Tensor{grad}, nil
}

// AddAutograd adds two tensors and records the operation on the graph.
func AddAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := Add(a, b)
	if err != nil {
		return nil, err
	}
	if needsGraph(a, b) {
		out.creator = &addOp{a: a, b: b}
	}
	return out, nil
}

// MatMulAutograd multiplies two matrices and records the operation.
func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := MatMul(a, b)
	if err != nil {
		return nil, err
	}
	if needsGraph(a, b) {
		out.creator = &matMulOp{a: a, b: b}
	}
	return out, nil
}

// ReLUAutograd applies ReLU and records the operation.
func ReLUAutograd(a *Tensor) (*Tensor, error) {
	out, err := ReLU(a)
	if err != nil {
		return nil, err
	}
	if needsGraph(a) {
		out.creator = &reluOp{input: a}
	}
	return out, nil
}

// ReshapeAutograd reshapes a tensor and records the operation.
func ReshapeAutograd(a *Tensor, shape []int) (*Tensor, error) {
	out, err := a.Reshape(shape)
	if err != nil {
		return nil, err
	}
	if needsGraph(a) {
		out.creator = &reshapeOp{input: a}
	}
	return out, nil
}

// DropoutAutograd zeroes elements with probability p, scaling survivors by
// 1/(1-p) so the expected activation is unchanged.
func DropoutAutograd(a *Tensor, p float64, rng *rand.Rand) (*Tensor, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %v", p)
	}

	data, err := a.Float32Data()
	if err != nil {
		return nil, err
	}

	scale := float32(1.0 / (1.0 - p))
	mask := make([]float32, len(data))
	result := make([]float32, len(data))
	for i := range data {
		if rng.Float64() >= p {
			mask[i] = scale
			result[i] = data[i] * scale
		}
	}

	out, err := NewTensor(a.Shape, a.DType, a.Device, result)
	if err != nil {
		return nil, err
	}
	if needsGraph(a) {
		out.creator = &dropoutOp{input: a, mask: mask}
	}
	return out, nil
}

// Backward propagates grad from t through the recorded graph, accumulating
// into the .grad of every leaf tensor that requires gradients.
func Backward(t *Tensor, grad *Tensor) error {
	if !sameShape(t.Shape, grad.Shape) {
		return fmt.Errorf("gradient shape %v does not match tensor shape %v", grad.Shape, t.Shape)
	}

	if t.creator == nil {
		if !t.requiresGrad {
			return nil
		}
		if t.grad == nil {
			g, err := grad.Clone()
			if err != nil {
				return err
			}
			t.grad = g
			return nil
		}
		accumulated, err := Add(t.grad, grad)
		if err != nil {
			return fmt.Errorf("gradient accumulation failed: %w", err)
		}
		t.grad = accumulated
		return nil
	}

	inputGrads, err := t.creator.Backward(grad)
	if err != nil {
		return err
	}

	inputs := t.creator.Inputs()
	if len(inputGrads) != len(inputs) {
		return fmt.Errorf("operation returned %d gradients for %d inputs", len(inputGrads), len(inputs))
	}

	for i, input := range inputs {
		if inputGrads[i] == nil {
			continue
		}
		if err := Backward(input, inputGrads[i]); err != nil {
			return err
		}
	}
	return nil
}

// ZeroGrad clears accumulated gradients on the given parameters.
func ZeroGrad(params []*Tensor) {
	for _, p := range params {
		p.grad = nil
	}
}
