package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sslstudent/3dprint-image-translation/nn"
	"github.com/sslstudent/3dprint-image-translation/optimizer"
	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Checkpoint captures both networks of a GAN run plus training progress,
// enough to resume or to run generation standalone.
type Checkpoint struct {
	GeneratorWeights     []WeightTensor `json:"generator_weights"`
	DiscriminatorWeights []WeightTensor `json:"discriminator_weights"`

	TrainingState TrainingState `json:"training_state"`

	OptimizerG OptimizerState `json:"optimizer_g"`
	OptimizerD OptimizerState `json:"optimizer_d"`

	Metadata Metadata `json:"metadata"`
}

// OptimizerState captures an optimizer's resumable scalars.
type OptimizerState struct {
	Type         string  `json:"type"`
	LearningRate float64 `json:"learning_rate"`
	StepCount    uint64  `json:"step_count"`
}

// CaptureOptimizer snapshots an optimizer's state under a type label.
func CaptureOptimizer(opt optimizer.Optimizer, kind string) OptimizerState {
	if opt == nil {
		return OptimizerState{Type: kind}
	}
	return OptimizerState{
		Type:         kind,
		LearningRate: opt.LearningRate(),
		StepCount:    opt.StepCount(),
	}
}

// WeightTensor is one parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// TrainingState captures the current training progress.
type TrainingState struct {
	Epoch         int     `json:"epoch"`
	Step          int     `json:"step"`
	BestPixelLoss float64 `json:"best_pixel_loss"`
	BestCRIError  float64 `json:"best_cri_error"`
}

// Metadata identifies the run a checkpoint belongs to.
type Metadata struct {
	RunID       string    `json:"run_id"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// NewRunID returns a fresh identifier for a training run.
func NewRunID() string {
	return uuid.NewString()
}

// Capture snapshots both networks, both optimizer states, and the given
// training state.
func Capture(g, d nn.Network, optG, optD OptimizerState, state TrainingState, runID string) (*Checkpoint, error) {
	gw, err := captureWeights(g, "generator")
	if err != nil {
		return nil, err
	}
	dw, err := captureWeights(d, "discriminator")
	if err != nil {
		return nil, err
	}
	return &Checkpoint{
		GeneratorWeights:     gw,
		DiscriminatorWeights: dw,
		TrainingState:        state,
		OptimizerG:           optG,
		OptimizerD:           optD,
		Metadata: Metadata{
			RunID:     runID,
			Version:   "1.0.0",
			CreatedAt: time.Now(),
		},
	}, nil
}

func captureWeights(net nn.Network, prefix string) ([]WeightTensor, error) {
	if net == nil {
		return nil, fmt.Errorf("checkpoint: %s network cannot be nil", prefix)
	}
	params := net.Parameters()
	weights := make([]WeightTensor, 0, len(params))
	for i, p := range params {
		if p == nil {
			return nil, fmt.Errorf("checkpoint: %s parameter %d is nil", prefix, i)
		}
		data := make([]float32, p.NumElems)
		copy(data, p.Data)
		shape := make([]int, len(p.Shape))
		copy(shape, p.Shape)
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("%s.param.%d", prefix, i),
			Shape: shape,
			Data:  data,
		})
	}
	return weights, nil
}

// Restore copies checkpoint weights back into both networks. Parameter
// order must match the order at capture time.
func (c *Checkpoint) Restore(g, d nn.Network) error {
	if err := restoreWeights(g, c.GeneratorWeights, "generator"); err != nil {
		return err
	}
	return restoreWeights(d, c.DiscriminatorWeights, "discriminator")
}

func restoreWeights(net nn.Network, weights []WeightTensor, prefix string) error {
	if net == nil {
		return fmt.Errorf("checkpoint: %s network cannot be nil", prefix)
	}
	params := net.Parameters()
	if len(params) != len(weights) {
		return fmt.Errorf("checkpoint: %s has %d parameters, checkpoint holds %d", prefix, len(params), len(weights))
	}
	for i, w := range weights {
		p := params[i]
		if !tensor.ShapesEqual(p.Shape, w.Shape) {
			return fmt.Errorf("checkpoint: %s parameter %d shape mismatch: %v vs %v", prefix, i, p.Shape, w.Shape)
		}
		copy(p.Data, w.Data)
	}
	return nil
}

// Save writes the checkpoint as indented JSON, creating the parent
// directory if needed.
func (c *Checkpoint) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %v", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Checkpoint, error) {
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
