package training

import (
	"fmt"
	"io"
	"os"

	"github.com/sslstudent/3dprint-image-translation/nn"
	"github.com/sslstudent/3dprint-image-translation/optimizer"
	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// StepLosses holds the scalar losses of one training step. The generator
// terms are reported after their lambda weights are applied.
type StepLosses struct {
	GAdversarial float64
	GPerceptual  float64
	GPixel       float64
	DReal        float64
	DFake        float64
}

// GANTrainer drives the alternating discriminator/generator update for a
// conditional image-to-image model.
type GANTrainer struct {
	G    nn.Generator
	D    nn.Discriminator
	OptG optimizer.Optimizer
	OptD optimizer.Optimizer

	Adv        AdversarialLoss
	Perceptual ReconstructionLoss
	Pixel      ReconstructionLoss
	LambdaVGG  float64
	LambdaL1   float64

	// Out receives progress lines. Defaults to standard output.
	Out io.Writer

	scalerG *tensor.GradScaler
	scalerD *tensor.GradScaler
}

func NewGANTrainer(g nn.Generator, d nn.Discriminator, optG, optD optimizer.Optimizer, cfg Config) (*GANTrainer, error) {
	if g == nil || d == nil {
		return nil, fmt.Errorf("trainer: networks cannot be nil")
	}
	if optG == nil || optD == nil {
		return nil, fmt.Errorf("trainer: optimizers cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("trainer: invalid config: %w", err)
	}
	perceptual, err := NewMultiScalePerceptualLoss(2)
	if err != nil {
		return nil, err
	}
	return &GANTrainer{
		G:          g,
		D:          d,
		OptG:       optG,
		OptD:       optD,
		Adv:        NewBCEAdversarialLoss(),
		Perceptual: perceptual,
		Pixel:      NewL1Loss(),
		LambdaVGG:  cfg.LambdaVGG,
		LambdaL1:   cfg.LambdaL1,
		Out:        os.Stdout,
		scalerG:    tensor.NewGradScaler(),
		scalerD:    tensor.NewGradScaler(),
	}, nil
}

// TrainStep runs one discriminator update followed by one generator
// update on a single batch. The discriminator sees detached pairs so its
// update never reaches the generator; during the generator update the
// discriminator's parameters are frozen so adversarial gradients flow
// through it without accumulating. The discriminator is left unfrozen
// when the call returns. Forwards and loss terms of both sub-steps run
// inside a reduced-precision region; backward and optimizer math stay
// float32.
//
// The second return value is the batch the generator produced before
// either update, detached from the graph, for display logging.
func (t *GANTrainer) TrainStep(src, dst, cond *tensor.Tensor) (StepLosses, *tensor.Tensor, error) {
	if src == nil || dst == nil || cond == nil {
		return StepLosses{}, nil, fmt.Errorf("train step: batch tensors cannot be nil")
	}

	var fake *tensor.Tensor
	err := tensor.WithAutocast(func() error {
		var ferr error
		fake, ferr = t.G.Forward(src, cond)
		return ferr
	})
	if err != nil {
		return StepLosses{}, nil, fmt.Errorf("generator forward failed: %w", err)
	}

	var losses StepLosses
	embedding := t.G.ConditionEmbedding()

	// Discriminator update on detached pairs.
	Unfreeze(t.D)
	t.OptD.ZeroGrad()

	var lossFake, lossReal, lossD *tensor.Tensor
	err = tensor.WithAutocast(func() error {
		fakePair, cerr := tensor.Cat(src, fake, 1)
		if cerr != nil {
			return fmt.Errorf("failed to build fake pair: %w", cerr)
		}
		fakeScore, ferr := t.D.Forward(fakePair.Detach(), cond, embedding)
		if ferr != nil {
			return fmt.Errorf("discriminator forward (fake) failed: %w", ferr)
		}
		if lossFake, ferr = t.Adv.Forward(fakeScore, false); ferr != nil {
			return ferr
		}

		realPair, cerr := tensor.Cat(src, dst, 1)
		if cerr != nil {
			return fmt.Errorf("failed to build real pair: %w", cerr)
		}
		realScore, ferr := t.D.Forward(realPair.Detach(), cond, embedding)
		if ferr != nil {
			return fmt.Errorf("discriminator forward (real) failed: %w", ferr)
		}
		if lossReal, ferr = t.Adv.Forward(realScore, true); ferr != nil {
			return ferr
		}

		sumD, aerr := tensor.Add(lossFake, lossReal)
		if aerr != nil {
			return aerr
		}
		lossD, aerr = tensor.Scale(sumD, 0.5)
		return aerr
	})
	if err != nil {
		return StepLosses{}, nil, err
	}
	if err := t.applyUpdate(t.scalerD, lossD, t.OptD, t.D.Parameters()); err != nil {
		return StepLosses{}, nil, fmt.Errorf("discriminator update failed: %w", err)
	}
	if losses.DFake, err = lossFake.Item(); err != nil {
		return StepLosses{}, nil, err
	}
	if losses.DReal, err = lossReal.Item(); err != nil {
		return StepLosses{}, nil, err
	}

	// Generator update with the discriminator frozen.
	Freeze(t.D)
	t.OptG.ZeroGrad()

	var advLoss, perceptual, pixel, lossG *tensor.Tensor
	err = tensor.WithAutocast(func() error {
		genPair, cerr := tensor.Cat(src, fake, 1)
		if cerr != nil {
			return fmt.Errorf("failed to build generator pair: %w", cerr)
		}
		genScore, ferr := t.D.Forward(genPair, cond, embedding)
		if ferr != nil {
			return fmt.Errorf("discriminator forward (generator) failed: %w", ferr)
		}
		if advLoss, ferr = t.Adv.Forward(genScore, true); ferr != nil {
			return ferr
		}
		if perceptual, ferr = t.Perceptual.Forward(fake, dst); ferr != nil {
			return ferr
		}
		if perceptual, ferr = tensor.Scale(perceptual, float32(t.LambdaVGG)); ferr != nil {
			return ferr
		}
		if pixel, ferr = t.Pixel.Forward(fake, dst); ferr != nil {
			return ferr
		}
		if pixel, ferr = tensor.Scale(pixel, float32(t.LambdaL1)); ferr != nil {
			return ferr
		}

		lossG, ferr = tensor.Add(advLoss, perceptual)
		if ferr != nil {
			return ferr
		}
		lossG, ferr = tensor.Add(lossG, pixel)
		return ferr
	})
	if err != nil {
		return StepLosses{}, nil, err
	}
	if err := t.applyUpdate(t.scalerG, lossG, t.OptG, t.G.Parameters()); err != nil {
		return StepLosses{}, nil, fmt.Errorf("generator update failed: %w", err)
	}

	Unfreeze(t.D)

	if losses.GAdversarial, err = advLoss.Item(); err != nil {
		return StepLosses{}, nil, err
	}
	if losses.GPerceptual, err = perceptual.Item(); err != nil {
		return StepLosses{}, nil, err
	}
	if losses.GPixel, err = pixel.Item(); err != nil {
		return StepLosses{}, nil, err
	}
	return losses, fake.Detach(), nil
}

// applyUpdate backpropagates a scaled loss and steps the optimizer unless
// the scaler found non-finite gradients, in which case the step is skipped
// and the scale backs off.
func (t *GANTrainer) applyUpdate(scaler *tensor.GradScaler, loss *tensor.Tensor, opt optimizer.Optimizer, params []*tensor.Tensor) error {
	if err := scaler.Backward(loss); err != nil {
		return err
	}
	ok, err := scaler.Unscale(params)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return opt.Step()
}
