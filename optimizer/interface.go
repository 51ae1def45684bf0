// Package optimizer implements parameter update rules over tensor parameter
// lists. Optimizers own their per-parameter state (momentum, variance) and
// advance once per Step call; the learning rate is schedule-controlled from
// outside via SetLearningRate.
package optimizer

import (
	"fmt"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Optimizer is the common contract for all update rules.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient and
	// has gradient tracking enabled.
	Step() error

	// ZeroGrad clears accumulated gradients on all managed parameters.
	ZeroGrad()

	// LearningRate returns the current learning rate.
	LearningRate() float64

	// SetLearningRate updates the learning rate; schedulers call this.
	SetLearningRate(lr float64)

	// StepCount returns the number of updates applied so far.
	StepCount() uint64
}

func validateParams(params []*tensor.Tensor) error {
	if len(params) == 0 {
		return fmt.Errorf("optimizer: no parameters provided")
	}
	for i, p := range params {
		if p == nil {
			return fmt.Errorf("optimizer: parameter %d is nil", i)
		}
	}
	return nil
}
