package optimizer

import (
	"fmt"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// SGDConfig holds configuration for stochastic gradient descent.
type SGDConfig struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
}

// DefaultSGDConfig returns default SGD configuration.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
		Momentum:     0.9,
		WeightDecay:  0.0,
	}
}

// SGD implements gradient descent with optional classical momentum.
type SGD struct {
	params   []*tensor.Tensor
	lr       float64
	momentum float64
	decay    float64

	velocity  [][]float32
	stepCount uint64
}

func NewSGD(params []*tensor.Tensor, config SGDConfig) (*SGD, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("sgd: learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, fmt.Errorf("sgd: momentum must be in [0, 1), got %f", config.Momentum)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("sgd: weight decay must be non-negative, got %f", config.WeightDecay)
	}

	velocity := make([][]float32, len(params))
	for i, p := range params {
		velocity[i] = make([]float32, p.NumElems)
	}
	return &SGD{
		params:   params,
		lr:       config.LearningRate,
		momentum: config.Momentum,
		decay:    config.WeightDecay,
		velocity: velocity,
	}, nil
}

func (s *SGD) Step() error {
	for i, p := range s.params {
		if !p.RequiresGrad() {
			continue
		}
		grad := p.Grad()
		if grad == nil {
			continue
		}
		vel := s.velocity[i]
		lr := float32(s.lr)
		mom := float32(s.momentum)
		wd := float32(s.decay)
		for j := range p.Data {
			g := grad.Data[j]
			if wd != 0 {
				g += wd * p.Data[j]
			}
			vel[j] = mom*vel[j] + g
			p.Data[j] -= lr * vel[j]
		}
	}
	s.stepCount++
	return nil
}

func (s *SGD) ZeroGrad() {
	tensor.ZeroGrad(s.params)
}

func (s *SGD) LearningRate() float64 {
	return s.lr
}

func (s *SGD) SetLearningRate(lr float64) {
	s.lr = lr
}

func (s *SGD) StepCount() uint64 {
	return s.stepCount
}
