package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageFolderDataset represents a dataset loaded from a directory structure
// where each subdirectory represents a class
type ImageFolderDataset struct {
	imagePaths []string
	labels     []int
	classNames []string
	classToIdx map[string]int
}

var defaultExtensions = []string{".jpg", ".jpeg", ".png"}

// NewImageFolderDataset creates a dataset from a directory structure. Class
// subdirectories are indexed in sorted order so labels are stable across
// runs and across splits.
func NewImageFolderDataset(root string, extensions []string) (*ImageFolderDataset, error) {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes in %s: %w", root, err)
	}

	dataset := &ImageFolderDataset{
		classToIdx: make(map[string]int),
	}

	var classDirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			classDirs = append(classDirs, entry.Name())
		}
	}
	sort.Strings(classDirs)

	for classIdx, className := range classDirs {
		dataset.classNames = append(dataset.classNames, className)
		dataset.classToIdx[className] = classIdx

		files, err := os.ReadDir(filepath.Join(root, className))
		if err != nil {
			return nil, fmt.Errorf("failed to list class %s: %w", className, err)
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(file.Name()))
			for _, allowed := range extensions {
				if ext == allowed {
					dataset.imagePaths = append(dataset.imagePaths, filepath.Join(root, className, file.Name()))
					dataset.labels = append(dataset.labels, classIdx)
					break
				}
			}
		}
	}

	if len(dataset.imagePaths) == 0 {
		return nil, fmt.Errorf("no images found in %s", root)
	}

	return dataset, nil
}

// Len returns the number of items in the dataset
func (d *ImageFolderDataset) Len() int {
	return len(d.imagePaths)
}

// GetItem returns the image path and label at the given index
func (d *ImageFolderDataset) GetItem(index int) (string, int, error) {
	if index < 0 || index >= len(d.imagePaths) {
		return "", 0, fmt.Errorf("index %d out of range [0, %d)", index, len(d.imagePaths))
	}
	return d.imagePaths[index], d.labels[index], nil
}

// NumClasses returns the number of classes
func (d *ImageFolderDataset) NumClasses() int {
	return len(d.classNames)
}

// ClassNames returns the list of class names
func (d *ImageFolderDataset) ClassNames() []string {
	return d.classNames
}

// ClassDistribution returns the distribution of samples per class
func (d *ImageFolderDataset) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for _, label := range d.labels {
		dist[d.classNames[label]]++
	}
	return dist
}

// Split splits the dataset into two parts, the first containing trainRatio
// of the samples. The shuffle is driven by the given seed so splits are
// reproducible.
func (d *ImageFolderDataset) Split(trainRatio float64, seed int64) (*ImageFolderDataset, *ImageFolderDataset) {
	n := len(d.imagePaths)
	trainSize := int(float64(n) * trainRatio)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	return d.subset(indices[:trainSize]), d.subset(indices[trainSize:])
}

func (d *ImageFolderDataset) subset(indices []int) *ImageFolderDataset {
	sub := &ImageFolderDataset{
		imagePaths: make([]string, len(indices)),
		labels:     make([]int, len(indices)),
		classNames: d.classNames,
		classToIdx: d.classToIdx,
	}
	for i, idx := range indices {
		sub.imagePaths[i] = d.imagePaths[idx]
		sub.labels[i] = d.labels[idx]
	}
	return sub
}

// String returns a string representation of the dataset
func (d *ImageFolderDataset) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ImageFolderDataset: %d samples, %d classes\n", len(d.imagePaths), len(d.classNames)))
	dist := d.ClassDistribution()
	for _, className := range d.classNames {
		sb.WriteString(fmt.Sprintf("  %s: %d samples\n", className, dist[className]))
	}
	return sb.String()
}
