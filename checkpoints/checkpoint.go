package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint represents a persisted snapshot of model weights, optimizer
// state, and training progress.
type Checkpoint struct {
	Epoch   int            `json:"epoch"`
	Weights []WeightTensor `json:"weights"`

	// Optimizer state (omitted for weight-only snapshots)
	OptimizerState *OptimizerState `json:"optimizer_state,omitempty"`

	// Training loss at the time of the snapshot
	Loss float64 `json:"loss"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// OptimizerState captures optimizer-specific state (moment estimates etc.)
type OptimizerState struct {
	Type       string             `json:"type"` // "Adam", "SGD", ...
	Step       int64              `json:"step"`
	Parameters map[string]float64 `json:"parameters"`
	StateData  []OptimizerTensor  `json:"state_data"`
}

// OptimizerTensor represents optimizer state tensors (momentum, variance, etc.)
type OptimizerTensor struct {
	Name      string    `json:"name"`
	Data      []float32 `json:"data"`
	StateType string    `json:"state_type"` // "m", "v", ...
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Saver persists checkpoints as JSON documents.
type Saver struct{}

// NewSaver creates a new checkpoint saver.
func NewSaver() *Saver {
	return &Saver{}
}

// Save writes a checkpoint to path.
func (s *Saver) Save(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "pattern-analysis"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

// Load reads a checkpoint back from path.
func (s *Saver) Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &checkpoint, nil
}

// CheckpointPath returns the conventional path for an epoch checkpoint.
func CheckpointPath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint_epoch_%d.pth", epoch))
}

// FinalModelPath returns the conventional path for the final model.
func FinalModelPath(dir string) string {
	return filepath.Join(dir, "final_model.pth")
}
