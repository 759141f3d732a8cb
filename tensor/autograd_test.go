package tensor

import (
	"math/rand"
	"testing"
)

func TestBackwardLeafAccumulation(t *testing.T) {
	leaf, _ := NewTensor([]int{2}, Float32, CPU, []float32{0, 0})
	leaf.SetRequiresGrad(true)

	g1, _ := NewTensor([]int{2}, Float32, CPU, []float32{1, 2})
	g2, _ := NewTensor([]int{2}, Float32, CPU, []float32{10, 20})

	if err := Backward(leaf, g1); err != nil {
		t.Fatalf("first Backward failed: %v", err)
	}
	if err := Backward(leaf, g2); err != nil {
		t.Fatalf("second Backward failed: %v", err)
	}

	grad, _ := leaf.Grad().Float32Data()
	expected := []float32{11, 22}
	for i, v := range grad {
		if v != expected[i] {
			t.Errorf("grad element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestBackwardIgnoresNonGradLeaf(t *testing.T) {
	leaf, _ := NewTensor([]int{2}, Float32, CPU, []float32{1, 2})
	g, _ := NewTensor([]int{2}, Float32, CPU, []float32{1, 1})

	if err := Backward(leaf, g); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	if leaf.Grad() != nil {
		t.Error("gradient accumulated on a leaf that does not require grad")
	}
}

func TestMatMulBackward(t *testing.T) {
	// y = x @ w with x [1x2], w [2x2], upstream gradient of ones.
	// dL/dw = x^T @ dL/dy, so each column of dL/dw is x^T.
	x, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{2, 3})
	w, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 0, 0, 1})
	w.SetRequiresGrad(true)

	y, err := MatMulAutograd(x, w)
	if err != nil {
		t.Fatalf("MatMulAutograd failed: %v", err)
	}

	grad, _ := Ones([]int{1, 2}, Float32, CPU)
	if err := Backward(y, grad); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	wGrad, _ := w.Grad().Float32Data()
	expected := []float32{2, 2, 3, 3}
	for i, v := range wGrad {
		if v != expected[i] {
			t.Errorf("weight grad element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestAddBackwardBiasReduction(t *testing.T) {
	// A [batch, n] gradient flowing into a [n] bias must sum over the batch.
	x, _ := NewTensor([]int{3, 2}, Float32, CPU, []float32{1, 2, 3, 4, 5, 6})
	bias, _ := NewTensor([]int{2}, Float32, CPU, []float32{0, 0})
	bias.SetRequiresGrad(true)

	y, err := AddAutograd(x, bias)
	if err != nil {
		t.Fatalf("AddAutograd failed: %v", err)
	}

	grad, _ := Ones([]int{3, 2}, Float32, CPU)
	if err := Backward(y, grad); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	biasGrad, _ := bias.Grad().Float32Data()
	for i, v := range biasGrad {
		if v != 3 {
			t.Errorf("bias grad element %d: expected 3, got %v", i, v)
		}
	}
}

func TestReLUBackwardMasksNegatives(t *testing.T) {
	x, _ := NewTensor([]int{4}, Float32, CPU, []float32{-1, 2, -3, 4})
	x.SetRequiresGrad(true)

	y, err := ReLUAutograd(x)
	if err != nil {
		t.Fatalf("ReLUAutograd failed: %v", err)
	}

	grad, _ := NewTensor([]int{4}, Float32, CPU, []float32{10, 10, 10, 10})
	if err := Backward(y, grad); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	xGrad, _ := x.Grad().Float32Data()
	expected := []float32{0, 10, 0, 10}
	for i, v := range xGrad {
		if v != expected[i] {
			t.Errorf("grad element %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestChainedBackward(t *testing.T) {
	// y = relu(x @ w + b), checked against hand-computed gradients
	x, _ := NewTensor([]int{1, 2}, Float32, CPU, []float32{1, -1})
	w, _ := NewTensor([]int{2, 2}, Float32, CPU, []float32{1, 2, 3, 4})
	w.SetRequiresGrad(true)
	b, _ := NewTensor([]int{2}, Float32, CPU, []float32{1, 1})
	b.SetRequiresGrad(true)

	// x @ w = [-2, -2], + b = [-1, -1], relu = [0, 0]
	h, err := MatMulAutograd(x, w)
	if err != nil {
		t.Fatalf("MatMulAutograd failed: %v", err)
	}
	h, err = AddAutograd(h, b)
	if err != nil {
		t.Fatalf("AddAutograd failed: %v", err)
	}
	y, err := ReLUAutograd(h)
	if err != nil {
		t.Fatalf("ReLUAutograd failed: %v", err)
	}

	outData, _ := y.Float32Data()
	for i, v := range outData {
		if v != 0 {
			t.Fatalf("output element %d: expected 0, got %v", i, v)
		}
	}

	grad, _ := Ones([]int{1, 2}, Float32, CPU)
	if err := Backward(y, grad); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// All pre-activations are negative, so every gradient is masked to zero.
	wGrad, _ := w.Grad().Float32Data()
	for i, v := range wGrad {
		if v != 0 {
			t.Errorf("weight grad element %d: expected 0, got %v", i, v)
		}
	}
	bGrad, _ := b.Grad().Float32Data()
	for i, v := range bGrad {
		if v != 0 {
			t.Errorf("bias grad element %d: expected 0, got %v", i, v)
		}
	}
}

func TestDropoutAutograd(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	x, _ := NewTensor([]int{1, 100}, Float32, CPU, make([]float32, 100))
	xData, _ := x.Float32Data()
	for i := range xData {
		xData[i] = 1
	}
	x.SetRequiresGrad(true)

	const p = 0.5
	y, err := DropoutAutograd(x, p, rng)
	if err != nil {
		t.Fatalf("DropoutAutograd failed: %v", err)
	}

	// Survivors are scaled by 1/(1-p); dropped elements are exactly zero.
	yData, _ := y.Float32Data()
	zeros := 0
	for i, v := range yData {
		switch v {
		case 0:
			zeros++
		case 2:
		default:
			t.Fatalf("element %d: expected 0 or 2, got %v", i, v)
		}
	}
	if zeros == 0 || zeros == len(yData) {
		t.Fatalf("expected a mix of kept and dropped elements, got %d zeros", zeros)
	}

	grad, _ := Ones([]int{1, 100}, Float32, CPU)
	if err := Backward(y, grad); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// The gradient mask must match the forward mask.
	xGrad, _ := x.Grad().Float32Data()
	for i := range yData {
		if (yData[i] == 0) != (xGrad[i] == 0) {
			t.Errorf("element %d: forward/backward masks disagree", i)
		}
	}
}

func TestDropoutInvalidProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x, _ := Ones([]int{2}, Float32, CPU)

	if _, err := DropoutAutograd(x, 1.0, rng); err == nil {
		t.Error("expected error for p = 1")
	}
	if _, err := DropoutAutograd(x, -0.1, rng); err == nil {
		t.Error("expected error for negative p")
	}
}

func TestZeroGrad(t *testing.T) {
	p, _ := Ones([]int{2}, Float32, CPU)
	p.SetRequiresGrad(true)

	g, _ := Ones([]int{2}, Float32, CPU)
	if err := Backward(p, g); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	if p.Grad() == nil {
		t.Fatal("expected gradient after Backward")
	}

	ZeroGrad([]*Tensor{p})
	if p.Grad() != nil {
		t.Error("expected nil gradient after ZeroGrad")
	}
}
