package training

import (
	"math"
)

// LRScheduler defines the interface for learning rate scheduling strategies.
// Schedulers are pure functions of the epoch index.
type LRScheduler interface {
	// GetLR returns the learning rate for the given epoch
	GetLR(epoch int, baseLR float64) float64

	// GetName returns the scheduler name for logging
	GetName() string
}

// StepLRScheduler decays the learning rate by Gamma once every StepSize
// epochs.
type StepLRScheduler struct {
	StepSize int
	Gamma    float64
}

// NewStepLRScheduler creates a step decay schedule. Out-of-range arguments
// fall back to the defaults (step 30, gamma 0.1).
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}
