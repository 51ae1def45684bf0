package training

import (
	"fmt"

	"github.com/sslstudent/3dprint-image-translation/optimizer"
)

// Scheduler adjusts an optimizer's learning rate. Step is called once per
// epoch after warm-up; each call advances a monotonic counter regardless
// of whether the rate actually changed.
type Scheduler interface {
	Step()
	StepCount() int
}

// LinearDecay lowers the learning rate linearly from its base value down
// to zero over a fixed number of steps, then holds it at zero.
type LinearDecay struct {
	opt        optimizer.Optimizer
	baseLR     float64
	decaySteps int
	steps      int
}

func NewLinearDecay(opt optimizer.Optimizer, decaySteps int) (*LinearDecay, error) {
	if opt == nil {
		return nil, fmt.Errorf("scheduler: optimizer cannot be nil")
	}
	if decaySteps <= 0 {
		return nil, fmt.Errorf("scheduler: decay steps must be positive, got %d", decaySteps)
	}
	return &LinearDecay{
		opt:        opt,
		baseLR:     opt.LearningRate(),
		decaySteps: decaySteps,
	}, nil
}

func (s *LinearDecay) Step() {
	s.steps++
	remaining := s.decaySteps - s.steps
	if remaining < 0 {
		remaining = 0
	}
	s.opt.SetLearningRate(s.baseLR * float64(remaining) / float64(s.decaySteps))
}

func (s *LinearDecay) StepCount() int {
	return s.steps
}

// StepDecay multiplies the learning rate by a fixed factor every interval
// steps.
type StepDecay struct {
	opt      optimizer.Optimizer
	factor   float64
	interval int
	steps    int
}

func NewStepDecay(opt optimizer.Optimizer, factor float64, interval int) (*StepDecay, error) {
	if opt == nil {
		return nil, fmt.Errorf("scheduler: optimizer cannot be nil")
	}
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("scheduler: decay factor must be in (0, 1], got %f", factor)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %d", interval)
	}
	return &StepDecay{opt: opt, factor: factor, interval: interval}, nil
}

func (s *StepDecay) Step() {
	s.steps++
	if s.steps%s.interval == 0 {
		s.opt.SetLearningRate(s.opt.LearningRate() * s.factor)
	}
}

func (s *StepDecay) StepCount() int {
	return s.steps
}
