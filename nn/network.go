// Package nn defines the network contracts the training loop drives and
// small dense reference models that satisfy them. The loop itself never
// depends on a concrete architecture.
package nn

import (
	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Network is any parameterized model the trainer can freeze, switch between
// train/eval mode, and hand to an optimizer.
type Network interface {
	Parameters() []*tensor.Tensor
	SetTraining(training bool)
}

// Generator maps a source image batch plus a condition signal to an image
// batch in [-1,1]. Its condition-embedding table is exposed because the
// discriminator consumes it as an auxiliary input; that coupling is a fixed
// interface contract between the two networks.
type Generator interface {
	Network
	Forward(src, cond *tensor.Tensor) (*tensor.Tensor, error)
	ConditionEmbedding() *tensor.Tensor
}

// Discriminator scores channel-concatenated (source, candidate) image pairs
// conditioned on the raw condition signal and the generator's embedding table.
type Discriminator interface {
	Network
	Forward(pair, cond, embedding *tensor.Tensor) (*tensor.Tensor, error)
}
