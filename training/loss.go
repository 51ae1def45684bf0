package training

import (
	"fmt"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// AdversarialLoss scores discriminator output against a real/fake target.
type AdversarialLoss interface {
	Forward(score *tensor.Tensor, targetReal bool) (*tensor.Tensor, error)
	Name() string
}

// ReconstructionLoss compares a generated image batch against a reference.
type ReconstructionLoss interface {
	Forward(generated, reference *tensor.Tensor) (*tensor.Tensor, error)
	Name() string
}

// BCEAdversarialLoss is binary cross-entropy on raw discriminator logits.
type BCEAdversarialLoss struct{}

func NewBCEAdversarialLoss() *BCEAdversarialLoss {
	return &BCEAdversarialLoss{}
}

func (l *BCEAdversarialLoss) Forward(score *tensor.Tensor, targetReal bool) (*tensor.Tensor, error) {
	if score == nil {
		return nil, fmt.Errorf("BCE loss: score cannot be nil")
	}
	return tensor.BCEWithLogitsMean(score, targetReal)
}

func (l *BCEAdversarialLoss) Name() string {
	return "BCEWithLogits"
}

// L1Loss is the mean absolute difference between two image batches.
type L1Loss struct{}

func NewL1Loss() *L1Loss {
	return &L1Loss{}
}

func (l *L1Loss) Forward(generated, reference *tensor.Tensor) (*tensor.Tensor, error) {
	if generated == nil || reference == nil {
		return nil, fmt.Errorf("L1 loss: inputs cannot be nil")
	}
	return tensor.L1Mean(generated, reference)
}

func (l *L1Loss) Name() string {
	return "L1"
}

// MultiScalePerceptualLoss compares images at several resolutions. Each
// level halves the spatial dimensions with average pooling and takes the
// L1 distance; the per-level distances are averaged. It stands in for a
// pretrained-feature perceptual loss while keeping gradients flowing
// through every scale.
type MultiScalePerceptualLoss struct {
	levels int
}

// NewMultiScalePerceptualLoss builds a perceptual loss over the given
// number of pooling levels. Level 0 compares full resolution images only.
func NewMultiScalePerceptualLoss(levels int) (*MultiScalePerceptualLoss, error) {
	if levels < 0 {
		return nil, fmt.Errorf("perceptual loss: levels cannot be negative, got %d", levels)
	}
	return &MultiScalePerceptualLoss{levels: levels}, nil
}

func (l *MultiScalePerceptualLoss) Forward(generated, reference *tensor.Tensor) (*tensor.Tensor, error) {
	if generated == nil || reference == nil {
		return nil, fmt.Errorf("perceptual loss: inputs cannot be nil")
	}
	total, err := tensor.L1Mean(generated, reference)
	if err != nil {
		return nil, err
	}
	gen, ref := generated, reference
	for level := 0; level < l.levels; level++ {
		if gen, err = tensor.AvgPool2(gen); err != nil {
			return nil, fmt.Errorf("perceptual loss level %d: %w", level+1, err)
		}
		if ref, err = tensor.AvgPool2(ref); err != nil {
			return nil, fmt.Errorf("perceptual loss level %d: %w", level+1, err)
		}
		term, err := tensor.L1Mean(gen, ref)
		if err != nil {
			return nil, err
		}
		if total, err = tensor.Add(total, term); err != nil {
			return nil, err
		}
	}
	return tensor.Scale(total, 1.0/float32(l.levels+1))
}

func (l *MultiScalePerceptualLoss) Name() string {
	return "MultiScalePerceptual"
}
