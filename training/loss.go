package training

import (
	"fmt"
	"math"

	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

// Loss interface defines methods that all loss functions must implement
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
	Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
}

// CrossEntropyLoss implements Cross Entropy loss for classification.
type CrossEntropyLoss struct {
	reduction string // "mean" or "sum"
}

// NewCrossEntropyLoss creates a new Cross Entropy loss function
func NewCrossEntropyLoss(reduction string) *CrossEntropyLoss {
	if reduction == "" {
		reduction = "mean"
	}
	return &CrossEntropyLoss{reduction: reduction}
}

func (ce *CrossEntropyLoss) check(predicted, target *tensor.Tensor) (int, int, error) {
	if predicted.DType != tensor.Float32 || target.DType != tensor.Int32 {
		return 0, 0, fmt.Errorf("predicted must be Float32 and target must be Int32")
	}
	if len(predicted.Shape) != 2 {
		return 0, 0, fmt.Errorf("predicted must be 2D tensor [batch_size, num_classes], got shape %v", predicted.Shape)
	}
	if len(target.Shape) != 1 {
		return 0, 0, fmt.Errorf("target must be 1D tensor [batch_size], got shape %v", target.Shape)
	}
	if target.Shape[0] != predicted.Shape[0] {
		return 0, 0, fmt.Errorf("batch size mismatch: predicted %d, target %d", predicted.Shape[0], target.Shape[0])
	}
	return predicted.Shape[0], predicted.Shape[1], nil
}

// Forward computes the Cross Entropy loss.
// predicted: [batch_size, num_classes] logits
// target: [batch_size] class indices
func (ce *CrossEntropyLoss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	batchSize, numClasses, err := ce.check(predicted, target)
	if err != nil {
		return nil, err
	}

	probs, err := ce.softmax(predicted)
	if err != nil {
		return nil, fmt.Errorf("softmax computation failed: %v", err)
	}

	targetData, _ := target.Int32Data()

	var totalLoss float32
	for i := 0; i < batchSize; i++ {
		targetClass := targetData[i]
		if targetClass < 0 || int(targetClass) >= numClasses {
			return nil, fmt.Errorf("target class %d out of range [0, %d)", targetClass, numClasses)
		}

		prob := probs[i*numClasses+int(targetClass)]
		// Clamp to avoid log(0)
		if prob < 1e-10 {
			prob = 1e-10
		}
		totalLoss += -float32(math.Log(float64(prob)))
	}

	if ce.reduction == "mean" {
		totalLoss /= float32(batchSize)
	}

	return tensor.NewTensor([]int{1}, tensor.Float32, predicted.Device, []float32{totalLoss})
}

// Backward computes the gradient of the loss with respect to the logits:
// softmax(x) - onehot(target), scaled by the reduction.
func (ce *CrossEntropyLoss) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	batchSize, numClasses, err := ce.check(predicted, target)
	if err != nil {
		return nil, err
	}

	grad, err := ce.softmax(predicted)
	if err != nil {
		return nil, fmt.Errorf("softmax computation failed: %v", err)
	}

	targetData, _ := target.Int32Data()
	for i := 0; i < batchSize; i++ {
		targetClass := targetData[i]
		if targetClass < 0 || int(targetClass) >= numClasses {
			return nil, fmt.Errorf("target class %d out of range [0, %d)", targetClass, numClasses)
		}
		grad[i*numClasses+int(targetClass)] -= 1.0
	}

	if ce.reduction == "mean" {
		scale := 1.0 / float32(batchSize)
		for i := range grad {
			grad[i] *= scale
		}
	}

	return tensor.NewTensor(predicted.Shape, tensor.Float32, predicted.Device, grad)
}

// softmax computes row-wise softmax probabilities from logits.
func (ce *CrossEntropyLoss) softmax(logits *tensor.Tensor) ([]float32, error) {
	data, err := logits.Float32Data()
	if err != nil {
		return nil, err
	}

	batchSize := logits.Shape[0]
	numClasses := logits.Shape[1]
	result := make([]float32, len(data))

	for i := 0; i < batchSize; i++ {
		offset := i * numClasses

		// Subtract the row max for numerical stability
		maxVal := data[offset]
		for j := 1; j < numClasses; j++ {
			if data[offset+j] > maxVal {
				maxVal = data[offset+j]
			}
		}

		var sum float32
		for j := 0; j < numClasses; j++ {
			exp := float32(math.Exp(float64(data[offset+j] - maxVal)))
			result[offset+j] = exp
			sum += exp
		}

		for j := 0; j < numClasses; j++ {
			result[offset+j] /= sum
		}
	}

	return result, nil
}
