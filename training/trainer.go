package training

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/praneetdhoolia/PatternAnalysis-2024/checkpoints"
	"github.com/praneetdhoolia/PatternAnalysis-2024/plots"
	"github.com/praneetdhoolia/PatternAnalysis-2024/tensor"
)

// Config holds the fixed run configuration.
type Config struct {
	DataDir       string
	OutputDir     string
	CheckpointDir string

	Epochs    int
	BatchSize int
	ImageSize int

	LearningRate      float64
	SchedulerStepSize int
	SchedulerGamma    float64

	EarlyStopAccuracy float64 // test accuracy percentage that stops training
	CheckpointEvery   int     // persist a checkpoint every N epochs
	MixedPrecision    bool

	ValRatio float64
	Seed     int64
}

// DefaultConfig returns the configuration used for the ADNI AD/NC runs.
func DefaultConfig() Config {
	return Config{
		DataDir:           "/home/groups/comp3710/ADNI/AD_NC",
		OutputDir:         "output",
		CheckpointDir:     "checkpoints",
		Epochs:            13,
		BatchSize:         32,
		ImageSize:         64,
		LearningRate:      0.0001,
		SchedulerStepSize: 10,
		SchedulerGamma:    0.1,
		EarlyStopAccuracy: 80.0,
		CheckpointEvery:   5,
		MixedPrecision:    true,
		ValRatio:          0.1,
		Seed:              42,
	}
}

// Model is the contract the trainer needs from a classifier.
type Model interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	NamedParameters() ([]string, []*tensor.Tensor)
	Train()
	Eval()
}

// BatchSource yields preprocessed batches for one pass over a dataset. A
// returned batch size of zero signals the end of the pass.
type BatchSource interface {
	NextBatch() (data []float32, labels []int32, batchSize int, err error)
	Reset()
}

// Trainer orchestrates the full training run: per-epoch train, validation,
// and test passes, early stopping, periodic checkpoints, final model
// persistence, and plot generation.
type Trainer struct {
	model      Model
	optimizer  *Adam
	criterion  Loss
	scheduler  LRScheduler
	scaler     *GradScaler
	config     Config
	device     tensor.DeviceType
	classNames []string

	trainLosses []float64
	trainAccs   []float64
	valLosses   []float64
	valAccs     []float64

	confusion    *ConfusionMatrix
	stoppedEarly bool

	metricLog *log.Logger
}

// NewTrainer creates a trainer for the given model and collaborators. The
// learning rate schedule is constructed here alongside the optimizer.
func NewTrainer(model Model, optimizer *Adam, criterion Loss, config Config, classNames []string, device tensor.DeviceType) (*Trainer, error) {
	if len(classNames) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", len(classNames))
	}
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epoch count must be positive, got %d", config.Epochs)
	}
	if config.CheckpointEvery <= 0 {
		return nil, fmt.Errorf("checkpoint interval must be positive, got %d", config.CheckpointEvery)
	}

	return &Trainer{
		model:      model,
		optimizer:  optimizer,
		criterion:  criterion,
		scheduler:  NewStepLRScheduler(config.SchedulerStepSize, config.SchedulerGamma),
		scaler:     NewGradScaler(),
		config:     config,
		device:     device,
		classNames: classNames,
		confusion:  NewConfusionMatrix(len(classNames)),
	}, nil
}

// TrainHistory returns the recorded per-epoch training losses and accuracies.
func (t *Trainer) TrainHistory() (losses, accs []float64) {
	return t.trainLosses, t.trainAccs
}

// StoppedEarly reports whether the run ended on the accuracy threshold.
func (t *Trainer) StoppedEarly() bool {
	return t.stoppedEarly
}

// ConfusionMatrix returns the matrix accumulated over the most recent test
// pass.
func (t *Trainer) ConfusionMatrix() *ConfusionMatrix {
	return t.confusion
}

// Run executes the complete training loop over the given loaders.
func (t *Trainer) Run(trainLoader, valLoader, testLoader BatchSource) error {
	if err := os.MkdirAll(t.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.MkdirAll(t.config.CheckpointDir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	logFile, err := os.Create(filepath.Join(t.config.OutputDir, "metrics.log"))
	if err != nil {
		return fmt.Errorf("failed to create metrics log: %w", err)
	}
	defer logFile.Close()
	t.metricLog = log.New(logFile, "", 0)

	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		t.model.Train()
		trainLoss, trainAcc, err := t.trainEpoch(trainLoader)
		if err != nil {
			return fmt.Errorf("training epoch %d failed: %w", epoch, err)
		}

		t.trainLosses = append(t.trainLosses, trainLoss)
		t.trainAccs = append(t.trainAccs, trainAcc)
		fmt.Printf("Epoch [%d/%d] - Train loss: %.4f, Acc: %.2f%%\n", epoch, t.config.Epochs, trainLoss, trainAcc)

		t.model.Eval()
		valLoss, valAcc, err := t.evalEpoch(valLoader, false)
		if err != nil {
			return fmt.Errorf("validation epoch %d failed: %w", epoch, err)
		}
		fmt.Printf("Validation loss: %.4f, Acc: %.2f%%\n", valLoss, valAcc)

		testLoss, testAcc, err := t.evalEpoch(testLoader, true)
		if err != nil {
			return fmt.Errorf("test epoch %d failed: %w", epoch, err)
		}

		t.metricLog.Printf("epoch=%d train_loss=%.6f train_acc=%.4f val_loss=%.6f val_acc=%.4f test_loss=%.6f test_acc=%.4f",
			epoch, trainLoss, trainAcc, valLoss, valAcc, testLoss, testAcc)

		if testAcc >= t.config.EarlyStopAccuracy {
			fmt.Printf("Test accuracy reached %.0f%% at epoch %d. Stopping early.\n", t.config.EarlyStopAccuracy, epoch)
			t.stoppedEarly = true
			break
		}

		if epoch%t.config.CheckpointEvery == 0 {
			if err := t.saveCheckpoint(epoch, trainLoss); err != nil {
				return fmt.Errorf("checkpoint at epoch %d failed: %w", epoch, err)
			}
			fmt.Printf("Checkpoint saved at epoch %d\n", epoch)
		}
	}

	if err := t.saveFinalModel(); err != nil {
		return fmt.Errorf("failed to save final model: %w", err)
	}
	fmt.Printf("Final model saved at %s\n", checkpoints.FinalModelPath(t.config.CheckpointDir))

	if err := t.renderPlots(); err != nil {
		return fmt.Errorf("failed to render plots: %w", err)
	}

	return nil
}

// batchTensors converts raw loader output into input and label tensors. In
// mixed precision mode the input is quantized through half precision.
func (t *Trainer) batchTensors(data []float32, labels []int32, n int) (*tensor.Tensor, *tensor.Tensor, error) {
	input, err := tensor.NewTensor([]int{n, 3, t.config.ImageSize, t.config.ImageSize}, tensor.Float32, t.device, data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build input tensor: %w", err)
	}

	if t.config.MixedPrecision {
		input, err = tensor.RoundHalf(input)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to quantize input: %w", err)
		}
	}

	labelT, err := tensor.NewTensor([]int{n}, tensor.Int32, t.device, labels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build label tensor: %w", err)
	}

	return input, labelT, nil
}

// trainEpoch runs one full pass over the training loader with gradient
// updates.
func (t *Trainer) trainEpoch(loader BatchSource) (float64, float64, error) {
	loader.Reset()

	var runningLoss float64
	var runningCorrects, totalSamples int
	numClasses := len(t.classNames)

	for {
		data, labels, n, err := loader.NextBatch()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load batch: %w", err)
		}
		if n == 0 {
			break
		}

		input, labelT, err := t.batchTensors(data, labels, n)
		if err != nil {
			return 0, 0, err
		}

		t.optimizer.ZeroGrad()

		logits, err := t.model.Forward(input)
		if err != nil {
			return 0, 0, fmt.Errorf("forward pass failed: %w", err)
		}

		lossT, err := t.criterion.Forward(logits, labelT)
		if err != nil {
			return 0, 0, fmt.Errorf("loss computation failed: %w", err)
		}
		lossValue, err := lossT.Item()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read loss value: %w", err)
		}

		grad, err := t.criterion.Backward(logits, labelT)
		if err != nil {
			return 0, 0, fmt.Errorf("loss backward failed: %w", err)
		}

		if t.config.MixedPrecision {
			grad, err = t.scaler.Scale(grad)
			if err != nil {
				return 0, 0, fmt.Errorf("gradient scaling failed: %w", err)
			}
		}

		if err := tensor.Backward(logits, grad); err != nil {
			return 0, 0, fmt.Errorf("backward pass failed: %w", err)
		}

		if t.config.MixedPrecision {
			if err := t.scaler.Step(t.optimizer, t.model.Parameters()); err != nil {
				return 0, 0, fmt.Errorf("optimizer step failed: %w", err)
			}
			t.scaler.Update()
		} else {
			if err := t.optimizer.Step(); err != nil {
				return 0, 0, fmt.Errorf("optimizer step failed: %w", err)
			}
		}

		logitsData, err := logits.Float32Data()
		if err != nil {
			return 0, 0, err
		}
		preds, err := ArgMaxRows(logitsData, n, numClasses)
		if err != nil {
			return 0, 0, err
		}
		for i, pred := range preds {
			if int32(pred) == labels[i] {
				runningCorrects++
			}
		}

		runningLoss += lossValue * float64(n)
		totalSamples += n
	}

	epochLoss := runningLoss / float64(totalSamples)
	epochAcc := float64(runningCorrects) / float64(totalSamples) * 100.0
	return epochLoss, epochAcc, nil
}

// evalEpoch runs one no-gradient pass over a loader. When collect is set,
// every prediction and true label is accumulated into the confusion matrix.
func (t *Trainer) evalEpoch(loader BatchSource, collect bool) (float64, float64, error) {
	loader.Reset()

	if collect {
		t.confusion.Reset()
	}

	var runningLoss float64
	var runningCorrects, totalSamples int
	numClasses := len(t.classNames)

	for {
		data, labels, n, err := loader.NextBatch()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load batch: %w", err)
		}
		if n == 0 {
			break
		}

		input, labelT, err := t.batchTensors(data, labels, n)
		if err != nil {
			return 0, 0, err
		}

		logits, err := t.model.Forward(input)
		if err != nil {
			return 0, 0, fmt.Errorf("forward pass failed: %w", err)
		}

		lossT, err := t.criterion.Forward(logits, labelT)
		if err != nil {
			return 0, 0, fmt.Errorf("loss computation failed: %w", err)
		}
		lossValue, err := lossT.Item()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read loss value: %w", err)
		}

		logitsData, err := logits.Float32Data()
		if err != nil {
			return 0, 0, err
		}
		preds, err := ArgMaxRows(logitsData, n, numClasses)
		if err != nil {
			return 0, 0, err
		}
		for i, pred := range preds {
			if int32(pred) == labels[i] {
				runningCorrects++
			}
		}

		if collect {
			if err := t.confusion.Update(preds, labels); err != nil {
				return 0, 0, fmt.Errorf("confusion matrix update failed: %w", err)
			}
		}

		runningLoss += lossValue * float64(n)
		totalSamples += n
	}

	epochLoss := runningLoss / float64(totalSamples)
	epochAcc := float64(runningCorrects) / float64(totalSamples) * 100.0
	return epochLoss, epochAcc, nil
}

// saveCheckpoint persists model weights, optimizer state, and the current
// training loss.
func (t *Trainer) saveCheckpoint(epoch int, trainLoss float64) error {
	names, params := t.model.NamedParameters()

	weights := make([]checkpoints.WeightTensor, len(params))
	for i, param := range params {
		data, err := param.Float32Data()
		if err != nil {
			return fmt.Errorf("parameter %s: %w", names[i], err)
		}
		weights[i] = checkpoints.WeightTensor{
			Name:  names[i],
			Shape: append([]int{}, param.Shape...),
			Data:  append([]float32{}, data...),
		}
	}

	m, v := t.optimizer.MomentState()
	var stateData []checkpoints.OptimizerTensor
	for i := range m {
		if m[i] == nil {
			continue
		}
		stateData = append(stateData,
			checkpoints.OptimizerTensor{Name: names[i], Data: m[i], StateType: "m"},
			checkpoints.OptimizerTensor{Name: names[i], Data: v[i], StateType: "v"},
		)
	}

	checkpoint := &checkpoints.Checkpoint{
		Epoch:   epoch,
		Weights: weights,
		Loss:    trainLoss,
		OptimizerState: &checkpoints.OptimizerState{
			Type: "Adam",
			Step: t.optimizer.StepCount(),
			Parameters: map[string]float64{
				"lr": t.optimizer.GetLR(),
			},
			StateData: stateData,
		},
	}

	return checkpoints.NewSaver().Save(checkpoint, checkpoints.CheckpointPath(t.config.CheckpointDir, epoch))
}

// saveFinalModel persists a weights-only snapshot of the model.
func (t *Trainer) saveFinalModel() error {
	names, params := t.model.NamedParameters()

	weights := make([]checkpoints.WeightTensor, len(params))
	for i, param := range params {
		data, err := param.Float32Data()
		if err != nil {
			return fmt.Errorf("parameter %s: %w", names[i], err)
		}
		weights[i] = checkpoints.WeightTensor{
			Name:  names[i],
			Shape: append([]int{}, param.Shape...),
			Data:  append([]float32{}, data...),
		}
	}

	checkpoint := &checkpoints.Checkpoint{
		Epoch:   len(t.trainLosses),
		Weights: weights,
	}

	return checkpoints.NewSaver().Save(checkpoint, checkpoints.FinalModelPath(t.config.CheckpointDir))
}

// renderPlots writes the loss, accuracy, and confusion matrix images.
func (t *Trainer) renderPlots() error {
	if err := plots.SaveLossPlot(filepath.Join(t.config.OutputDir, "loss_vs_epochs.png"), t.trainLosses, t.valLosses); err != nil {
		return err
	}
	if err := plots.SaveAccuracyPlot(filepath.Join(t.config.OutputDir, "accuracy_vs_epochs.png"), t.trainAccs, t.valAccs); err != nil {
		return err
	}
	return plots.SaveConfusionMatrix(filepath.Join(t.config.OutputDir, "confusion_matrix.png"), t.confusion.Matrix, t.classNames)
}
