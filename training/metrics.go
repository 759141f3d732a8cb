package training

import (
	"fmt"
)

// ConfusionMatrix accumulates classification results for a full pass over a
// dataset.
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true_class][predicted_class]
	TotalSamples int
}

// NewConfusionMatrix creates a new confusion matrix
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{
		NumClasses: numClasses,
		Matrix:     matrix,
	}
}

// Reset clears the confusion matrix
func (cm *ConfusionMatrix) Reset() {
	for i := range cm.Matrix {
		for j := range cm.Matrix[i] {
			cm.Matrix[i][j] = 0
		}
	}
	cm.TotalSamples = 0
}

// Update records a batch of predictions against the true labels.
func (cm *ConfusionMatrix) Update(predictions []int, trueLabels []int32) error {
	if len(predictions) != len(trueLabels) {
		return fmt.Errorf("predictions length %d does not match labels length %d", len(predictions), len(trueLabels))
	}

	for i, predClass := range predictions {
		trueClass := int(trueLabels[i])
		if trueClass < 0 || trueClass >= cm.NumClasses || predClass < 0 || predClass >= cm.NumClasses {
			return fmt.Errorf("class index out of range: true=%d pred=%d classes=%d", trueClass, predClass, cm.NumClasses)
		}
		cm.Matrix[trueClass][predClass]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy returns the overall accuracy percentage in [0, 100].
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return float64(correct) / float64(cm.TotalSamples) * 100.0
}

// Precision returns the precision for the given class: TP / (TP + FP).
func (cm *ConfusionMatrix) Precision(class int) float64 {
	if class < 0 || class >= cm.NumClasses {
		return 0
	}
	predicted := 0
	for i := 0; i < cm.NumClasses; i++ {
		predicted += cm.Matrix[i][class]
	}
	if predicted == 0 {
		return 0
	}
	return float64(cm.Matrix[class][class]) / float64(predicted)
}

// Recall returns the recall for the given class: TP / (TP + FN).
func (cm *ConfusionMatrix) Recall(class int) float64 {
	if class < 0 || class >= cm.NumClasses {
		return 0
	}
	actual := 0
	for j := 0; j < cm.NumClasses; j++ {
		actual += cm.Matrix[class][j]
	}
	if actual == 0 {
		return 0
	}
	return float64(cm.Matrix[class][class]) / float64(actual)
}

// ArgMaxRows returns the index of the largest logit in each row of a
// [batch, classes] slice.
func ArgMaxRows(logits []float32, batchSize, numClasses int) ([]int, error) {
	if len(logits) != batchSize*numClasses {
		return nil, fmt.Errorf("logits length %d does not match %d x %d", len(logits), batchSize, numClasses)
	}

	preds := make([]int, batchSize)
	for i := 0; i < batchSize; i++ {
		maxIdx := 0
		maxVal := logits[i*numClasses]
		for j := 1; j < numClasses; j++ {
			if logits[i*numClasses+j] > maxVal {
				maxVal = logits[i*numClasses+j]
				maxIdx = j
			}
		}
		preds[i] = maxIdx
	}
	return preds, nil
}
