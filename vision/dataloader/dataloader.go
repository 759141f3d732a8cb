package dataloader

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/praneetdhoolia/PatternAnalysis-2024/vision/preprocessing"
)

// Dataset interface defines the contract for datasets
type Dataset interface {
	Len() int
	GetItem(index int) (imagePath string, label int, err error)
}

// DataLoader iterates a dataset in batches of preprocessed image data.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	indices   []int
	position  int
	rng       *rand.Rand
	mu        sync.Mutex

	cache     *CacheManager
	processor *preprocessing.ImageProcessor
	imageSize int
}

// Config holds configuration for DataLoader
type Config struct {
	BatchSize    int
	ImageSize    int
	Shuffle      bool
	MaxCacheSize int
	Seed         int64
}

// NewDataLoader creates a new data loader
func NewDataLoader(dataset Dataset, config Config) (*DataLoader, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.ImageSize <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", config.ImageSize)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	dl := &DataLoader{
		dataset:   dataset,
		batchSize: config.BatchSize,
		shuffle:   config.Shuffle,
		indices:   indices,
		rng:       rand.New(rand.NewSource(config.Seed)),
		cache:     NewCacheManager(config.MaxCacheSize),
		processor: preprocessing.NewImageProcessor(config.ImageSize),
		imageSize: config.ImageSize,
	}

	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}

	return dl, nil
}

// Reset rewinds the loader to the beginning, reshuffling if configured.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// NextBatch loads the next batch of images. It returns CHW float32 image
// data, int32 labels, and the actual batch size. A batch size of zero means
// the epoch is exhausted.
func (dl *DataLoader) NextBatch() ([]float32, []int32, int, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil, 0, nil
	}

	batchSize := dl.batchSize
	if remaining < batchSize {
		batchSize = remaining
	}

	pixelsPerImage := 3 * dl.imageSize * dl.imageSize
	imageData := make([]float32, batchSize*pixelsPerImage)
	labelData := make([]int32, batchSize)

	for i := 0; i < batchSize; i++ {
		idx := dl.indices[dl.position]
		dl.position++

		imagePath, label, err := dl.dataset.GetItem(idx)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to get item %d: %w", idx, err)
		}

		imgData, err := dl.loadImageWithCache(imagePath)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to load %s: %w", imagePath, err)
		}

		copy(imageData[i*pixelsPerImage:(i+1)*pixelsPerImage], imgData)
		labelData[i] = int32(label)
	}

	return imageData, labelData, batchSize, nil
}

func (dl *DataLoader) loadImageWithCache(imagePath string) ([]float32, error) {
	if cached, ok := dl.cache.Get(imagePath); ok {
		return cached, nil
	}

	file, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	processed, err := dl.processor.DecodeAndPreprocess(file)
	if err != nil {
		return nil, err
	}

	dl.cache.Put(imagePath, processed.Data)
	return processed.Data, nil
}

// Len returns the number of samples the loader iterates per epoch.
func (dl *DataLoader) Len() int {
	return len(dl.indices)
}

// Stats returns cache statistics.
func (dl *DataLoader) Stats() string {
	return dl.cache.Stats()
}
