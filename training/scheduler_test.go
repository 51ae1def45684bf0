package training

import (
	"math"
	"testing"

	"github.com/sslstudent/3dprint-image-translation/optimizer"
	"github.com/sslstudent/3dprint-image-translation/tensor"
)

func testOptimizer(t *testing.T, lr float64) optimizer.Optimizer {
	t.Helper()
	p, err := tensor.Ones([]int{1}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Ones failed: %v", err)
	}
	p.SetRequiresGrad(true)
	opt, err := optimizer.NewSGD([]*tensor.Tensor{p}, optimizer.SGDConfig{LearningRate: lr})
	if err != nil {
		t.Fatalf("NewSGD failed: %v", err)
	}
	return opt
}

func TestLinearDecaySchedule(t *testing.T) {
	opt := testOptimizer(t, 1.0)
	sched, err := NewLinearDecay(opt, 4)
	if err != nil {
		t.Fatalf("NewLinearDecay failed: %v", err)
	}

	want := []float64{0.75, 0.5, 0.25, 0, 0}
	for i, w := range want {
		sched.Step()
		if got := opt.LearningRate(); math.Abs(got-w) > 1e-12 {
			t.Errorf("after step %d: lr = %v, want %v", i+1, got, w)
		}
	}
	if got := sched.StepCount(); got != 5 {
		t.Errorf("step count = %d, want 5", got)
	}
}

func TestLinearDecayCounterIsMonotonic(t *testing.T) {
	sched, err := NewLinearDecay(testOptimizer(t, 0.1), 2)
	if err != nil {
		t.Fatalf("NewLinearDecay failed: %v", err)
	}
	prev := sched.StepCount()
	for i := 0; i < 5; i++ {
		sched.Step()
		if got := sched.StepCount(); got != prev+1 {
			t.Fatalf("step count jumped from %d to %d", prev, got)
		}
		prev = sched.StepCount()
	}
}

func TestStepDecaySchedule(t *testing.T) {
	opt := testOptimizer(t, 1.0)
	sched, err := NewStepDecay(opt, 0.5, 2)
	if err != nil {
		t.Fatalf("NewStepDecay failed: %v", err)
	}

	want := []float64{1.0, 0.5, 0.5, 0.25}
	for i, w := range want {
		sched.Step()
		if got := opt.LearningRate(); math.Abs(got-w) > 1e-12 {
			t.Errorf("after step %d: lr = %v, want %v", i+1, got, w)
		}
	}
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	opt := testOptimizer(t, 0.1)
	if _, err := NewLinearDecay(nil, 2); err == nil {
		t.Error("expected error for nil optimizer")
	}
	if _, err := NewLinearDecay(opt, 0); err == nil {
		t.Error("expected error for zero decay steps")
	}
	if _, err := NewStepDecay(opt, 0, 2); err == nil {
		t.Error("expected error for zero decay factor")
	}
	if _, err := NewStepDecay(opt, 0.5, 0); err == nil {
		t.Error("expected error for zero interval")
	}
}
