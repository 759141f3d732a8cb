package model

import (
	"fmt"

	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

// Sequential chains modules, applying them in order.
type Sequential struct {
	names   []string
	modules []Module
}

func NewSequential() *Sequential {
	return &Sequential{}
}

// Add appends a named module to the chain.
func (s *Sequential) Add(name string, m Module) *Sequential {
	s.names = append(s.names, name)
	s.modules = append(s.modules, m)
	return s
}

func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out := input
	var err error
	for i, m := range s.modules {
		out, err = m.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %s failed: %v", s.names[i], err)
		}
	}
	return out, nil
}

func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// NamedParameters returns parameter names alongside the tensors, in the
// same order as Parameters. Linear layers contribute "<name>.weight" and
// "<name>.bias".
func (s *Sequential) NamedParameters() ([]string, []*tensor.Tensor) {
	var names []string
	var params []*tensor.Tensor
	for i, m := range s.modules {
		layerParams := m.Parameters()
		for j, p := range layerParams {
			suffix := "weight"
			if j == 1 {
				suffix = "bias"
			}
			names = append(names, fmt.Sprintf("%s.%s", s.names[i], suffix))
			params = append(params, p)
		}
	}
	return names, params
}

func (s *Sequential) Train() {
	for _, m := range s.modules {
		m.Train()
	}
}

func (s *Sequential) Eval() {
	for _, m := range s.modules {
		m.Eval()
	}
}

func (s *Sequential) IsTraining() bool {
	for _, m := range s.modules {
		if !m.IsTraining() {
			return false
		}
	}
	return true
}

// NewClassifier builds the scan classifier: a fully connected head over
// flattened imageSize x imageSize RGB input.
func NewClassifier(numClasses, imageSize int, device tensor.DeviceType) (*Sequential, error) {
	if numClasses < 2 {
		return nil, fmt.Errorf("classifier needs at least 2 classes, got %d", numClasses)
	}
	if imageSize <= 0 {
		return nil, fmt.Errorf("invalid image size %d", imageSize)
	}

	features := 3 * imageSize * imageSize

	fc1, err := NewLinear(features, 256, true, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create fc1: %v", err)
	}
	fc2, err := NewLinear(256, 128, true, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create fc2: %v", err)
	}
	fc3, err := NewLinear(128, numClasses, true, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create fc3: %v", err)
	}

	return NewSequential().
		Add("flatten", NewFlatten()).
		Add("fc1", fc1).
		Add("relu1", NewReLU()).
		Add("dropout1", NewDropout(0.5)).
		Add("fc2", fc2).
		Add("relu2", NewReLU()).
		Add("fc3", fc3), nil
}
