package optimizer

import (
	"fmt"
	"math"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns the conventional Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam implements the Adam update rule with bias correction.
type Adam struct {
	params []*tensor.Tensor
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	decay  float64

	momentum  [][]float32 // first moment per parameter
	variance  [][]float32 // second moment per parameter
	stepCount uint64
}

func NewAdam(params []*tensor.Tensor, config AdamConfig) (*Adam, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("adam: learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Beta1 <= 0 || config.Beta1 >= 1 {
		return nil, fmt.Errorf("adam: beta1 must be in (0, 1), got %f", config.Beta1)
	}
	if config.Beta2 <= 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("adam: beta2 must be in (0, 1), got %f", config.Beta2)
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("adam: epsilon must be positive, got %f", config.Epsilon)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("adam: weight decay must be non-negative, got %f", config.WeightDecay)
	}

	momentum := make([][]float32, len(params))
	variance := make([][]float32, len(params))
	for i, p := range params {
		momentum[i] = make([]float32, p.NumElems)
		variance[i] = make([]float32, p.NumElems)
	}
	return &Adam{
		params:   params,
		lr:       config.LearningRate,
		beta1:    config.Beta1,
		beta2:    config.Beta2,
		eps:      config.Epsilon,
		decay:    config.WeightDecay,
		momentum: momentum,
		variance: variance,
	}, nil
}

func (a *Adam) Step() error {
	a.stepCount++
	correction1 := 1.0 - math.Pow(a.beta1, float64(a.stepCount))
	correction2 := 1.0 - math.Pow(a.beta2, float64(a.stepCount))

	for i, p := range a.params {
		if !p.RequiresGrad() {
			continue
		}
		grad := p.Grad()
		if grad == nil {
			continue
		}
		m := a.momentum[i]
		v := a.variance[i]
		b1 := float32(a.beta1)
		b2 := float32(a.beta2)
		wd := float32(a.decay)
		for j := range p.Data {
			g := grad.Data[j]
			if wd != 0 {
				g += wd * p.Data[j]
			}
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g

			mHat := float64(m[j]) / correction1
			vHat := float64(v[j]) / correction2
			p.Data[j] -= float32(a.lr * mHat / (math.Sqrt(vHat) + a.eps))
		}
	}
	return nil
}

func (a *Adam) ZeroGrad() {
	tensor.ZeroGrad(a.params)
}

func (a *Adam) LearningRate() float64 {
	return a.lr
}

func (a *Adam) SetLearningRate(lr float64) {
	a.lr = lr
}

func (a *Adam) StepCount() uint64 {
	return a.stepCount
}
