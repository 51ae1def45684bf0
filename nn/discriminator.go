package nn

import (
	"fmt"
	"math/rand"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// DenseDiscriminatorConfig describes the reference discriminator. The pair
// input carries twice the generator's channel count (source concatenated
// with real or generated target along the channel axis).
type DenseDiscriminatorConfig struct {
	Channels     int // channels of a single image; the pair input has 2x
	Height       int
	Width        int
	EmbeddingDim int // must match the generator's embedding table
	HiddenDim    int
}

func DefaultDenseDiscriminatorConfig() DenseDiscriminatorConfig {
	return DenseDiscriminatorConfig{
		Channels:     3,
		Height:       16,
		Width:        16,
		EmbeddingDim: 8,
		HiddenDim:    64,
	}
}

// DenseDiscriminator scores conditional image pairs. The condition enters
// twice, as in the generator's contract: the raw signal selects a row of the
// generator-owned embedding table passed in at call time.
type DenseDiscriminator struct {
	cfg      DenseDiscriminatorConfig
	hidden   *Linear
	out      *Linear
	training bool
}

func NewDenseDiscriminator(cfg DenseDiscriminatorConfig, rng *rand.Rand, device tensor.DeviceType) (*DenseDiscriminator, error) {
	if cfg.Channels <= 0 || cfg.Height <= 0 || cfg.Width <= 0 {
		return nil, fmt.Errorf("discriminator: invalid image shape %dx%dx%d", cfg.Channels, cfg.Height, cfg.Width)
	}
	pairSize := 2 * cfg.Channels * cfg.Height * cfg.Width

	hidden, err := NewLinear(pairSize+cfg.EmbeddingDim, cfg.HiddenDim, rng, device)
	if err != nil {
		return nil, err
	}
	out, err := NewLinear(cfg.HiddenDim, 1, rng, device)
	if err != nil {
		return nil, err
	}
	return &DenseDiscriminator{cfg: cfg, hidden: hidden, out: out, training: true}, nil
}

func (d *DenseDiscriminator) Forward(pair, cond, embedding *tensor.Tensor) (*tensor.Tensor, error) {
	if len(pair.Shape) != 4 {
		return nil, fmt.Errorf("discriminator: pair must be [B,2C,H,W], got %v", pair.Shape)
	}
	if pair.Shape[1] != 2*d.cfg.Channels {
		return nil, fmt.Errorf("discriminator: pair has %d channels, want %d", pair.Shape[1], 2*d.cfg.Channels)
	}
	batch := pair.Shape[0]
	pairSize := 2 * d.cfg.Channels * d.cfg.Height * d.cfg.Width

	flat, err := tensor.Reshape(pair, []int{batch, pairSize})
	if err != nil {
		return nil, err
	}
	emb, err := tensor.GatherRows(embedding, ConditionIndices(cond))
	if err != nil {
		return nil, err
	}
	h, err := tensor.Cat(flat, emb, 1)
	if err != nil {
		return nil, err
	}
	if h, err = d.hidden.Forward(h); err != nil {
		return nil, err
	}
	if h, err = tensor.LeakyReLU(h, 0.2); err != nil {
		return nil, err
	}
	return d.out.Forward(h)
}

func (d *DenseDiscriminator) Parameters() []*tensor.Tensor {
	params := d.hidden.Parameters()
	return append(params, d.out.Parameters()...)
}

func (d *DenseDiscriminator) SetTraining(training bool) {
	d.training = training
}
