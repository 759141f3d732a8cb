package training

import (
	"math"
	"testing"

	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

func paramWithGrad(t *testing.T, value, grad float32) *tensor.Tensor {
	t.Helper()

	p, err := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{value})
	if err != nil {
		t.Fatalf("failed to create parameter: %v", err)
	}
	p.SetRequiresGrad(true)

	g, err := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{grad})
	if err != nil {
		t.Fatalf("failed to create gradient: %v", err)
	}
	if err := tensor.Backward(p, g); err != nil {
		t.Fatalf("failed to attach gradient: %v", err)
	}
	return p
}

func TestAdamFirstStep(t *testing.T) {
	// On the first step the bias-corrected update is lr * g / (|g| + eps),
	// which moves the parameter by almost exactly lr against the gradient.
	p := paramWithGrad(t, 1.0, 0.5)

	adam, err := NewAdam([]*tensor.Tensor{p}, 0.01, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	data, _ := p.Float32Data()
	expected := 1.0 - 0.01
	if math.Abs(float64(data[0])-expected) > 1e-4 {
		t.Errorf("expected parameter near %v after first step, got %v", expected, data[0])
	}
}

func TestAdamDescendsQuadratic(t *testing.T) {
	// Minimize f(x) = x^2 from x = 1. Adam must steadily reduce |x|.
	p := paramWithGrad(t, 1.0, 2.0)

	adam, err := NewAdam([]*tensor.Tensor{p}, 0.1, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		data, _ := p.Float32Data()

		adam.ZeroGrad()
		g, _ := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{2 * data[0]})
		if err := tensor.Backward(p, g); err != nil {
			t.Fatalf("failed to attach gradient: %v", err)
		}
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	data, _ := p.Float32Data()
	if math.Abs(float64(data[0])) > 0.1 {
		t.Errorf("expected parameter near 0 after 50 steps, got %v", data[0])
	}
	if adam.StepCount() != 50 {
		t.Errorf("expected 50 steps recorded, got %d", adam.StepCount())
	}
}

func TestAdamSkipsNilGradients(t *testing.T) {
	p, _ := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{3.0})
	p.SetRequiresGrad(true)

	adam, err := NewAdam([]*tensor.Tensor{p}, 0.1, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	data, _ := p.Float32Data()
	if data[0] != 3.0 {
		t.Errorf("parameter without gradient must not move, got %v", data[0])
	}
}

func TestAdamZeroGrad(t *testing.T) {
	p := paramWithGrad(t, 1.0, 1.0)

	adam, err := NewAdam([]*tensor.Tensor{p}, 0.1, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}

	adam.ZeroGrad()
	if p.Grad() != nil {
		t.Error("expected nil gradient after ZeroGrad")
	}
}

func TestAdamLearningRate(t *testing.T) {
	p := paramWithGrad(t, 1.0, 1.0)

	adam, err := NewAdam([]*tensor.Tensor{p}, 0.001, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	if adam.GetLR() != 0.001 {
		t.Errorf("expected lr 0.001, got %v", adam.GetLR())
	}

	adam.SetLR(0.0001)
	if adam.GetLR() != 0.0001 {
		t.Errorf("expected lr 0.0001 after SetLR, got %v", adam.GetLR())
	}

	if _, err := NewAdam(nil, -1, 0, 0, 0); err == nil {
		t.Error("expected error for negative learning rate")
	}
}

func TestAdamMomentState(t *testing.T) {
	p := paramWithGrad(t, 1.0, 0.5)

	adam, err := NewAdam([]*tensor.Tensor{p}, 0.01, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	m, v := adam.MomentState()
	if len(m) != 1 || len(v) != 1 {
		t.Fatalf("expected one moment slice per parameter, got %d and %d", len(m), len(v))
	}
	// m = (1 - beta1) * g = 0.1 * 0.5
	if math.Abs(float64(m[0][0])-0.05) > 1e-6 {
		t.Errorf("expected first moment 0.05, got %v", m[0][0])
	}
	// v = (1 - beta2) * g^2 = 0.001 * 0.25
	if math.Abs(float64(v[0][0])-0.00025) > 1e-8 {
		t.Errorf("expected second moment 0.00025, got %v", v[0][0])
	}

	// The returned state is a copy.
	m[0][0] = 999
	m2, _ := adam.MomentState()
	if m2[0][0] == 999 {
		t.Error("MomentState must return copies, not the internal slices")
	}
}
