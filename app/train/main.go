package main

import (
	"fmt"
	"os"

	"github.com/praneetdhoolia/PatternAnalysis-2024/model"
	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
	"github.com/praneetdhoolia/PatternAnalysis-2024/training"
	"github.com/praneetdhoolia/PatternAnalysis-2024/vision/dataloader"
	"github.com/praneetdhoolia/PatternAnalysis-2024/vision/dataset"
)

func main() {
	if err := run(training.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(config training.Config) error {
	device := tensor.SelectDevice()
	fmt.Printf("Using device: %s\n", device)

	model.SetRandomSeed(config.Seed)

	splits, err := dataset.LoadADNI(config.DataDir, config.ValRatio, config.Seed)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	fmt.Printf("Classes: %v\n", splits.ClassNames)
	fmt.Printf("Train: %d samples, Val: %d samples, Test: %d samples\n",
		splits.Train.Len(), splits.Val.Len(), splits.Test.Len())

	trainLoader, err := dataloader.NewDataLoader(splits.Train, dataloader.Config{
		BatchSize:    config.BatchSize,
		ImageSize:    config.ImageSize,
		Shuffle:      true,
		MaxCacheSize: 4096,
		Seed:         config.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to create train loader: %w", err)
	}

	valLoader, err := dataloader.NewDataLoader(splits.Val, dataloader.Config{
		BatchSize:    config.BatchSize,
		ImageSize:    config.ImageSize,
		MaxCacheSize: 4096,
		Seed:         config.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to create validation loader: %w", err)
	}

	testLoader, err := dataloader.NewDataLoader(splits.Test, dataloader.Config{
		BatchSize:    config.BatchSize,
		ImageSize:    config.ImageSize,
		MaxCacheSize: 4096,
		Seed:         config.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to create test loader: %w", err)
	}

	classifier, err := model.NewClassifier(len(splits.ClassNames), config.ImageSize, device)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}

	optimizer, err := training.NewAdam(classifier.Parameters(), config.LearningRate, 0, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to create optimizer: %w", err)
	}

	criterion := training.NewCrossEntropyLoss("mean")

	trainer, err := training.NewTrainer(classifier, optimizer, criterion, config, splits.ClassNames, device)
	if err != nil {
		return fmt.Errorf("failed to create trainer: %w", err)
	}

	return trainer.Run(trainLoader, valLoader, testLoader)
}
