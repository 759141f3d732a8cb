package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

// Global random source for deterministic initialization
var globalRng *rand.Rand = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight
// initialization and dropout masks.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Module interface defines methods that all neural network layers must implement
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor // Returns trainable parameters
	Train()                       // Sets module to training mode
	Eval()                        // Sets module to evaluation mode
	IsTraining() bool             // Returns true if in training mode
}

// Linear implements a fully connected layer: y = xW + b
type Linear struct {
	weight   *tensor.Tensor
	bias     *tensor.Tensor
	training bool
}

// NewLinear creates a new Linear layer with Xavier/Glorot uniform
// initialization.
func NewLinear(inputSize, outputSize int, bias bool, device tensor.DeviceType) (*Linear, error) {
	// W ~ U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
	bound := math.Sqrt(6.0 / float64(inputSize+outputSize))

	weightData := make([]float32, inputSize*outputSize)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{inputSize, outputSize}, tensor.Float32, device, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	linear := &Linear{
		weight:   weight,
		training: true,
	}

	if bias {
		biasData := make([]float32, outputSize)
		biasT, err := tensor.NewTensor([]int{outputSize}, tensor.Float32, device, biasData)
		if err != nil {
			return nil, fmt.Errorf("failed to create bias tensor: %v", err)
		}
		biasT.SetRequiresGrad(true)
		linear.bias = biasT
	}

	return linear, nil
}

// Forward performs the forward pass: y = xW + b
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("Linear layer expects 2D input [batch_size, input_size], got shape %v", input.Shape)
	}

	if input.Shape[1] != l.weight.Shape[0] {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", l.weight.Shape[0], input.Shape[1])
	}

	output, err := tensor.MatMulAutograd(input, l.weight)
	if err != nil {
		return nil, fmt.Errorf("matmul failed: %v", err)
	}

	if l.bias != nil {
		output, err = tensor.AddAutograd(output, l.bias)
		if err != nil {
			return nil, fmt.Errorf("bias addition failed: %v", err)
		}
	}

	return output, nil
}

func (l *Linear) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

func (l *Linear) Train()           { l.training = true }
func (l *Linear) Eval()            { l.training = false }
func (l *Linear) IsTraining() bool { return l.training }

// ReLU applies the rectified linear activation.
type ReLU struct {
	training bool
}

func NewReLU() *ReLU {
	return &ReLU{training: true}
}

func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLUAutograd(input)
}

func (r *ReLU) Parameters() []*tensor.Tensor { return nil }
func (r *ReLU) Train()                       { r.training = true }
func (r *ReLU) Eval()                        { r.training = false }
func (r *ReLU) IsTraining() bool             { return r.training }

// Dropout randomly zeroes activations during training. In eval mode the
// input passes through unchanged.
type Dropout struct {
	p        float64
	training bool
}

func NewDropout(p float64) *Dropout {
	return &Dropout{p: p, training: true}
}

func (d *Dropout) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !d.training || d.p == 0 {
		return input, nil
	}
	return tensor.DropoutAutograd(input, d.p, globalRng)
}

func (d *Dropout) Parameters() []*tensor.Tensor { return nil }
func (d *Dropout) Train()                       { d.training = true }
func (d *Dropout) Eval()                        { d.training = false }
func (d *Dropout) IsTraining() bool             { return d.training }

// Flatten collapses all trailing dimensions into one: [b, c, h, w] -> [b, c*h*w]
type Flatten struct {
	training bool
}

func NewFlatten() *Flatten {
	return &Flatten{training: true}
}

func (f *Flatten) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) < 2 {
		return nil, fmt.Errorf("Flatten expects at least 2D input, got shape %v", input.Shape)
	}
	if len(input.Shape) == 2 {
		return input, nil
	}

	features := 1
	for _, dim := range input.Shape[1:] {
		features *= dim
	}
	return tensor.ReshapeAutograd(input, []int{input.Shape[0], features})
}

func (f *Flatten) Parameters() []*tensor.Tensor { return nil }
func (f *Flatten) Train()                       { f.training = true }
func (f *Flatten) Eval()                        { f.training = false }
func (f *Flatten) IsTraining() bool             { return f.training }
