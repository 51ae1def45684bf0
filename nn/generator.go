package nn

import (
	"fmt"
	"math/rand"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// DenseGeneratorConfig describes the reference generator.
type DenseGeneratorConfig struct {
	Channels     int // image channels
	Height       int
	Width        int
	NumClasses   int // distinct condition classes
	EmbeddingDim int
	HiddenDim    int
}

// DefaultDenseGeneratorConfig returns a small configuration suitable for
// tests and smoke runs.
func DefaultDenseGeneratorConfig() DenseGeneratorConfig {
	return DenseGeneratorConfig{
		Channels:     3,
		Height:       16,
		Width:        16,
		NumClasses:   8,
		EmbeddingDim: 8,
		HiddenDim:    64,
	}
}

// DenseGenerator is the reference conditional generator: the flattened
// source image is concatenated with the condition embedding, passed through
// one hidden layer, and mapped back to image shape under tanh so outputs
// stay in [-1,1].
type DenseGenerator struct {
	cfg       DenseGeneratorConfig
	embedding *Embedding
	hidden    *Linear
	out       *Linear
	training  bool
}

func NewDenseGenerator(cfg DenseGeneratorConfig, rng *rand.Rand, device tensor.DeviceType) (*DenseGenerator, error) {
	if cfg.Channels <= 0 || cfg.Height <= 0 || cfg.Width <= 0 {
		return nil, fmt.Errorf("generator: invalid image shape %dx%dx%d", cfg.Channels, cfg.Height, cfg.Width)
	}
	imgSize := cfg.Channels * cfg.Height * cfg.Width

	embedding, err := NewEmbedding(cfg.NumClasses, cfg.EmbeddingDim, rng, device)
	if err != nil {
		return nil, err
	}
	hidden, err := NewLinear(imgSize+cfg.EmbeddingDim, cfg.HiddenDim, rng, device)
	if err != nil {
		return nil, err
	}
	out, err := NewLinear(cfg.HiddenDim, imgSize, rng, device)
	if err != nil {
		return nil, err
	}
	return &DenseGenerator{
		cfg:       cfg,
		embedding: embedding,
		hidden:    hidden,
		out:       out,
		training:  true,
	}, nil
}

func (g *DenseGenerator) Forward(src, cond *tensor.Tensor) (*tensor.Tensor, error) {
	if len(src.Shape) != 4 {
		return nil, fmt.Errorf("generator: source must be [B,C,H,W], got %v", src.Shape)
	}
	batch := src.Shape[0]
	imgSize := g.cfg.Channels * g.cfg.Height * g.cfg.Width

	flat, err := tensor.Reshape(src, []int{batch, imgSize})
	if err != nil {
		return nil, err
	}
	emb, err := g.embedding.Forward(cond)
	if err != nil {
		return nil, err
	}
	h, err := tensor.Cat(flat, emb, 1)
	if err != nil {
		return nil, err
	}
	if h, err = g.hidden.Forward(h); err != nil {
		return nil, err
	}
	if h, err = tensor.LeakyReLU(h, 0.2); err != nil {
		return nil, err
	}
	if h, err = g.out.Forward(h); err != nil {
		return nil, err
	}
	if h, err = tensor.Tanh(h); err != nil {
		return nil, err
	}
	return tensor.Reshape(h, []int{batch, g.cfg.Channels, g.cfg.Height, g.cfg.Width})
}

func (g *DenseGenerator) ConditionEmbedding() *tensor.Tensor {
	return g.embedding.Embeddings
}

func (g *DenseGenerator) Parameters() []*tensor.Tensor {
	params := g.embedding.Parameters()
	params = append(params, g.hidden.Parameters()...)
	params = append(params, g.out.Parameters()...)
	return params
}

func (g *DenseGenerator) SetTraining(training bool) {
	g.training = training
}
