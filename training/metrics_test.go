package training

import (
	"math"
	"testing"
)

func TestConfusionMatrixUpdate(t *testing.T) {
	cm := NewConfusionMatrix(2)

	err := cm.Update([]int{0, 1, 0, 1}, []int32{0, 1, 1, 0})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if cm.TotalSamples != 4 {
		t.Errorf("expected 4 samples, got %d", cm.TotalSamples)
	}
	if cm.Matrix[0][0] != 1 || cm.Matrix[1][1] != 1 || cm.Matrix[1][0] != 1 || cm.Matrix[0][1] != 1 {
		t.Errorf("unexpected matrix: %v", cm.Matrix)
	}
	if cm.Accuracy() != 50.0 {
		t.Errorf("expected 50%% accuracy, got %v", cm.Accuracy())
	}
}

func TestConfusionMatrixPerfect(t *testing.T) {
	cm := NewConfusionMatrix(2)
	if err := cm.Update([]int{0, 0, 1, 1}, []int32{0, 0, 1, 1}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if cm.Accuracy() != 100.0 {
		t.Errorf("expected 100%% accuracy, got %v", cm.Accuracy())
	}
	if cm.Precision(0) != 1.0 || cm.Recall(0) != 1.0 {
		t.Errorf("expected perfect precision and recall, got %v and %v", cm.Precision(0), cm.Recall(0))
	}
}

func TestConfusionMatrixPrecisionRecall(t *testing.T) {
	cm := NewConfusionMatrix(2)
	// Class 0: 3 true positives, 1 false negative, 2 false positives.
	if err := cm.Update(
		[]int{0, 0, 0, 1, 0, 0},
		[]int32{0, 0, 0, 0, 1, 1},
	); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := cm.Precision(0); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("expected precision 0.6, got %v", got)
	}
	if got := cm.Recall(0); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("expected recall 0.75, got %v", got)
	}
}

func TestConfusionMatrixReset(t *testing.T) {
	cm := NewConfusionMatrix(2)
	if err := cm.Update([]int{0}, []int32{0}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cm.Reset()
	if cm.TotalSamples != 0 {
		t.Errorf("expected 0 samples after reset, got %d", cm.TotalSamples)
	}
	if cm.Matrix[0][0] != 0 {
		t.Errorf("expected cleared matrix, got %v", cm.Matrix)
	}
	if cm.Accuracy() != 0 {
		t.Errorf("expected 0 accuracy on empty matrix, got %v", cm.Accuracy())
	}
}

func TestConfusionMatrixValidation(t *testing.T) {
	cm := NewConfusionMatrix(2)

	if err := cm.Update([]int{0, 1}, []int32{0}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if err := cm.Update([]int{2}, []int32{0}); err == nil {
		t.Error("expected error for out-of-range prediction")
	}
	if err := cm.Update([]int{0}, []int32{-1}); err == nil {
		t.Error("expected error for negative label")
	}
}

func TestArgMaxRows(t *testing.T) {
	logits := []float32{
		0.1, 0.9,
		2.0, -1.0,
		0.5, 0.5,
	}

	preds, err := ArgMaxRows(logits, 3, 2)
	if err != nil {
		t.Fatalf("ArgMaxRows failed: %v", err)
	}

	expected := []int{1, 0, 0} // ties resolve to the lower index
	for i, p := range preds {
		if p != expected[i] {
			t.Errorf("row %d: expected class %d, got %d", i, expected[i], p)
		}
	}

	if _, err := ArgMaxRows(logits, 2, 2); err == nil {
		t.Error("expected error for length mismatch")
	}
}
