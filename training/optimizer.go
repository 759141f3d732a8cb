package training

import (
	"fmt"
	"math"
	"sync"

	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// Adam implements the Adam optimizer.
type Adam struct {
	parameters []*tensor.Tensor
	lr         float64
	beta1      float64
	beta2      float64
	eps        float64
	step       int64
	m          [][]float32 // First moment estimates, one per parameter
	v          [][]float32 // Second moment estimates, one per parameter
	mutex      sync.RWMutex
}

// NewAdam creates a new Adam optimizer. Zero betas and eps select the
// usual defaults (0.9, 0.999, 1e-8).
func NewAdam(parameters []*tensor.Tensor, lr, beta1, beta2, eps float64) (*Adam, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", lr)
	}
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	if eps == 0 {
		eps = 1e-8
	}

	adam := &Adam{
		parameters: parameters,
		lr:         lr,
		beta1:      beta1,
		beta2:      beta2,
		eps:        eps,
		m:          make([][]float32, len(parameters)),
		v:          make([][]float32, len(parameters)),
	}

	for i, param := range parameters {
		if param.RequiresGrad() {
			adam.m[i] = make([]float32, param.NumElems)
			adam.v[i] = make([]float32, param.NumElems)
		}
	}

	return adam, nil
}

// Step performs a single optimization step
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.step++

	// Bias correction factors
	bias1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bias2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	b1 := float32(adam.beta1)
	b2 := float32(adam.beta2)

	for i, param := range adam.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		gradData, err := param.Grad().Float32Data()
		if err != nil {
			return fmt.Errorf("parameter %d gradient: %w", i, err)
		}
		paramData, err := param.Float32Data()
		if err != nil {
			return fmt.Errorf("parameter %d data: %w", i, err)
		}
		if len(gradData) != len(paramData) {
			return fmt.Errorf("parameter %d gradient size mismatch: %d vs %d", i, len(gradData), len(paramData))
		}

		m := adam.m[i]
		v := adam.v[i]

		for j, g := range gradData {
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g

			mHat := float64(m[j]) / bias1
			vHat := float64(v[j]) / bias2

			paramData[j] -= float32(adam.lr * mHat / (math.Sqrt(vHat) + adam.eps))
		}
	}

	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.parameters)
}

// GetLR returns the current learning rate
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.lr
}

// SetLR sets the learning rate
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.lr = lr
}

// StepCount returns the number of optimization steps taken.
func (adam *Adam) StepCount() int64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.step
}

// MomentState returns copies of the first and second moment estimates in
// parameter order, for checkpointing.
func (adam *Adam) MomentState() (m, v [][]float32) {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()

	m = make([][]float32, len(adam.m))
	v = make([][]float32, len(adam.v))
	for i := range adam.m {
		if adam.m[i] == nil {
			continue
		}
		m[i] = append([]float32{}, adam.m[i]...)
		v[i] = append([]float32{}, adam.v[i]...)
	}
	return m, v
}
