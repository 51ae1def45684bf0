package nn

import (
	"fmt"
	"math/rand"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Linear is a fully connected layer y = xW + b over [B,in] inputs.
type Linear struct {
	Weight *tensor.Tensor // [in, out]
	Bias   *tensor.Tensor // [out]
}

func NewLinear(inFeatures, outFeatures int, rng *rand.Rand, device tensor.DeviceType) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("linear: features must be positive, got %dx%d", inFeatures, outFeatures)
	}
	weight, err := tensor.KaimingNormal([]int{inFeatures, outFeatures}, inFeatures, rng, device)
	if err != nil {
		return nil, fmt.Errorf("linear: weight init failed: %v", err)
	}
	bias, err := tensor.Zeros([]int{outFeatures}, tensor.Float32, device)
	if err != nil {
		return nil, fmt.Errorf("linear: bias init failed: %v", err)
	}
	weight.SetRequiresGrad(true)
	bias.SetRequiresGrad(true)
	return &Linear{Weight: weight, Bias: bias}, nil
}

func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := tensor.MatMul(x, l.Weight)
	if err != nil {
		return nil, err
	}
	return tensor.BiasAdd(y, l.Bias)
}

func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weight, l.Bias}
}
