package training

import (
	"math"
	"testing"

	"github.com/sslstudent/3dprint-image-translation/nn"
	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// spyDiscriminator records whether its parameters tracked gradients and
// whether the caller was in a reduced-precision region at the moment of
// each forward call.
type spyDiscriminator struct {
	*nn.DenseDiscriminator
	gradStates []bool
	pairLinked []bool // whether the pair still carried graph linkage
	reduced    []bool
}

func (s *spyDiscriminator) Forward(pair, cond, embedding *tensor.Tensor) (*tensor.Tensor, error) {
	s.gradStates = append(s.gradStates, s.Parameters()[0].RequiresGrad())
	s.pairLinked = append(s.pairLinked, pair.Creator() != nil)
	s.reduced = append(s.reduced, tensor.AutocastEnabled())
	return s.DenseDiscriminator.Forward(pair, cond, embedding)
}

func TestTrainStepLossesFiniteAndNonNegative(t *testing.T) {
	g, d := testNetworks(t)
	trainer := testTrainer(t, g, d)
	src, dst, cond := testBatch(t, 2)

	losses, _, err := trainer.TrainStep(src, dst, cond)
	if err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}

	checks := []struct {
		name string
		v    float64
	}{
		{"G adversarial", losses.GAdversarial},
		{"G perceptual", losses.GPerceptual},
		{"G pixel", losses.GPixel},
		{"D real", losses.DReal},
		{"D fake", losses.DFake},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			t.Errorf("%s loss is not finite: %v", c.name, c.v)
		}
		if c.v < 0 {
			t.Errorf("%s loss is negative: %v", c.name, c.v)
		}
	}
}

func TestTrainStepFreezesDiscriminatorDuringGeneratorUpdate(t *testing.T) {
	g, d := testNetworks(t)
	spy := &spyDiscriminator{DenseDiscriminator: d}
	trainer := testTrainer(t, g, spy)
	src, dst, cond := testBatch(t, 2)

	if _, _, err := trainer.TrainStep(src, dst, cond); err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}

	// Two discriminator-phase forwards with gradients on, then the
	// generator-phase forward with the discriminator frozen.
	want := []bool{true, true, false}
	if len(spy.gradStates) != len(want) {
		t.Fatalf("discriminator saw %d forwards, want %d", len(spy.gradStates), len(want))
	}
	for i, w := range want {
		if spy.gradStates[i] != w {
			t.Errorf("forward %d: discriminator grad tracking = %v, want %v", i, spy.gradStates[i], w)
		}
	}
}

func TestTrainStepForwardsRunReducedPrecision(t *testing.T) {
	g, d := testNetworks(t)
	spy := &spyDiscriminator{DenseDiscriminator: d}
	trainer := testTrainer(t, g, spy)
	src, dst, cond := testBatch(t, 2)

	if _, _, err := trainer.TrainStep(src, dst, cond); err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}

	// Every discriminator forward of the step runs inside a
	// reduced-precision region, in both sub-steps.
	if len(spy.reduced) != 3 {
		t.Fatalf("discriminator saw %d forwards, want 3", len(spy.reduced))
	}
	for i, r := range spy.reduced {
		if !r {
			t.Errorf("forward %d ran outside the reduced-precision region", i)
		}
	}
	if tensor.AutocastEnabled() {
		t.Error("reduced-precision mode leaked past TrainStep")
	}
}

func TestTrainStepReturnsPreUpdateOutput(t *testing.T) {
	g, d := testNetworks(t)
	reference, _ := testNetworks(t) // same seed, identical initial weights
	trainer := testTrainer(t, g, d)
	src, dst, cond := testBatch(t, 2)

	_, fake, err := trainer.TrainStep(src, dst, cond)
	if err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}
	if fake == nil {
		t.Fatal("TrainStep returned no generated batch")
	}
	if fake.Creator() != nil {
		t.Error("generated batch still carries graph linkage")
	}
	if !tensor.ShapesEqual(fake.Shape, dst.Shape) {
		t.Fatalf("generated batch shape = %v, want %v", fake.Shape, dst.Shape)
	}

	// A forward through an untouched copy of the generator reproduces the
	// returned batch exactly, so it was produced before the update.
	var want *tensor.Tensor
	err = tensor.WithAutocast(func() error {
		var ferr error
		want, ferr = reference.Forward(src, cond)
		return ferr
	})
	if err != nil {
		t.Fatalf("reference forward failed: %v", err)
	}
	for i := range want.Data {
		if fake.Data[i] != want.Data[i] {
			t.Fatalf("generated batch element %d = %v, want pre-update value %v", i, fake.Data[i], want.Data[i])
		}
	}
}

func TestTrainStepLeavesDiscriminatorUnfrozen(t *testing.T) {
	g, d := testNetworks(t)
	trainer := testTrainer(t, g, d)
	src, dst, cond := testBatch(t, 2)

	if _, _, err := trainer.TrainStep(src, dst, cond); err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}
	for i, p := range d.Parameters() {
		if !p.RequiresGrad() {
			t.Errorf("discriminator parameter %d left frozen after TrainStep", i)
		}
	}
}

func TestTrainStepDetachesDiscriminatorInputs(t *testing.T) {
	g, d := testNetworks(t)
	spy := &spyDiscriminator{DenseDiscriminator: d}
	trainer := testTrainer(t, g, spy)
	src, dst, cond := testBatch(t, 2)

	if _, _, err := trainer.TrainStep(src, dst, cond); err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}

	// Both discriminator-phase pairs arrive detached; the generator-phase
	// pair keeps its graph so adversarial gradients can reach the
	// generator.
	want := []bool{false, false, true}
	if len(spy.pairLinked) != len(want) {
		t.Fatalf("discriminator saw %d forwards, want %d", len(spy.pairLinked), len(want))
	}
	for i, w := range want {
		if spy.pairLinked[i] != w {
			t.Errorf("forward %d: pair graph linkage = %v, want %v", i, spy.pairLinked[i], w)
		}
	}
}

func TestTrainStepLeavesGeneratorTrainable(t *testing.T) {
	g, d := testNetworks(t)
	trainer := testTrainer(t, g, d)
	src, dst, cond := testBatch(t, 2)

	// The generator is never frozen; both sub-steps leave its parameters
	// tracking gradients.
	if _, _, err := trainer.TrainStep(src, dst, cond); err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}
	for i, p := range g.Parameters() {
		if !p.RequiresGrad() {
			t.Errorf("generator parameter %d frozen after TrainStep", i)
		}
	}
}

func TestTrainStepUpdatesBothNetworks(t *testing.T) {
	g, d := testNetworks(t)
	trainer := testTrainer(t, g, d)
	src, dst, cond := testBatch(t, 2)

	gBefore := snapshot(g.Parameters())
	dBefore := snapshot(d.Parameters())
	if _, _, err := trainer.TrainStep(src, dst, cond); err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}
	if !changed(gBefore, snapshot(g.Parameters())) {
		t.Error("generator parameters did not move")
	}
	if !changed(dBefore, snapshot(d.Parameters())) {
		t.Error("discriminator parameters did not move")
	}
}

func TestTrainStepRejectsNilInputs(t *testing.T) {
	g, d := testNetworks(t)
	trainer := testTrainer(t, g, d)
	src, dst, cond := testBatch(t, 2)

	if _, _, err := trainer.TrainStep(nil, dst, cond); err == nil {
		t.Error("expected error for nil source")
	}
	if _, _, err := trainer.TrainStep(src, nil, cond); err == nil {
		t.Error("expected error for nil target")
	}
	if _, _, err := trainer.TrainStep(src, dst, nil); err == nil {
		t.Error("expected error for nil condition")
	}
}

func snapshot(params []*tensor.Tensor) [][]float32 {
	out := make([][]float32, len(params))
	for i, p := range params {
		out[i] = make([]float32, len(p.Data))
		copy(out[i], p.Data)
	}
	return out
}

func changed(before, after [][]float32) bool {
	for i := range before {
		for j := range before[i] {
			if before[i][j] != after[i][j] {
				return true
			}
		}
	}
	return false
}
