package dataset

import (
	"fmt"
	"path/filepath"
)

// Splits bundles the train/validation/test datasets for a run together with
// the shared class names.
type Splits struct {
	Train      *ImageFolderDataset
	Val        *ImageFolderDataset
	Test       *ImageFolderDataset
	ClassNames []string
}

// LoadADNI loads an ADNI-style AD/NC directory:
//
//	root/train/<class>/*.jpeg
//	root/test/<class>/*.jpeg
//
// The validation set is carved from the training directory with a
// deterministic split.
func LoadADNI(root string, valRatio float64, seed int64) (*Splits, error) {
	if valRatio < 0 || valRatio >= 1 {
		return nil, fmt.Errorf("validation ratio must be in [0, 1), got %v", valRatio)
	}

	full, err := NewImageFolderDataset(filepath.Join(root, "train"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load training set: %w", err)
	}

	test, err := NewImageFolderDataset(filepath.Join(root, "test"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load test set: %w", err)
	}

	if len(full.ClassNames()) != len(test.ClassNames()) {
		return nil, fmt.Errorf("class mismatch: train has %v, test has %v", full.ClassNames(), test.ClassNames())
	}
	for i, name := range full.ClassNames() {
		if test.ClassNames()[i] != name {
			return nil, fmt.Errorf("class mismatch: train has %v, test has %v", full.ClassNames(), test.ClassNames())
		}
	}

	train, val := full.Split(1.0-valRatio, seed)

	return &Splits{
		Train:      train,
		Val:        val,
		Test:       test,
		ClassNames: full.ClassNames(),
	}, nil
}
