package training

import (
	"fmt"
	"math"

	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

// GradScaler implements loss scaling for mixed precision training. The loss
// gradient is multiplied by a large scale factor before backpropagation so
// small fp16 gradients do not flush to zero; parameter gradients are
// unscaled before the optimizer step. On overflow the step is skipped and
// the scale is reduced.
type GradScaler struct {
	scale          float64
	growthFactor   float64
	backoffFactor  float64
	growthInterval int
	goodSteps      int
	foundInf       bool
}

// NewGradScaler creates a scaler with the usual defaults: initial scale
// 65536, growth x2 every 2000 clean steps, backoff x0.5 on overflow.
func NewGradScaler() *GradScaler {
	return &GradScaler{
		scale:          65536.0,
		growthFactor:   2.0,
		backoffFactor:  0.5,
		growthInterval: 2000,
	}
}

// Scale multiplies a gradient tensor by the current scale factor.
func (gs *GradScaler) Scale(grad *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.MulScalar(grad, gs.scale)
}

// GetScale returns the current scale factor.
func (gs *GradScaler) GetScale() float64 {
	return gs.scale
}

// Step unscales the parameter gradients and runs the optimizer step, unless
// any gradient is non-finite, in which case the step is skipped.
func (gs *GradScaler) Step(opt Optimizer, params []*tensor.Tensor) error {
	gs.foundInf = false
	inv := float32(1.0 / gs.scale)

	for i, param := range params {
		if param.Grad() == nil {
			continue
		}
		gradData, err := param.Grad().Float32Data()
		if err != nil {
			return fmt.Errorf("parameter %d gradient: %w", i, err)
		}
		for j, g := range gradData {
			unscaled := g * inv
			if math.IsInf(float64(unscaled), 0) || math.IsNaN(float64(unscaled)) {
				gs.foundInf = true
			}
			gradData[j] = unscaled
		}
	}

	if gs.foundInf {
		return nil
	}
	return opt.Step()
}

// Update adjusts the scale factor after a step: backoff on overflow, growth
// after growthInterval consecutive clean steps.
func (gs *GradScaler) Update() {
	if gs.foundInf {
		gs.scale *= gs.backoffFactor
		gs.goodSteps = 0
		gs.foundInf = false
		return
	}

	gs.goodSteps++
	if gs.goodSteps >= gs.growthInterval {
		gs.scale *= gs.growthFactor
		gs.goodSteps = 0
	}
}
