package training

import (
	"fmt"

	"github.com/sslstudent/3dprint-image-translation/tblog"
	"github.com/sslstudent/3dprint-image-translation/tensor"
	"github.com/sslstudent/3dprint-image-translation/vision"
)

// TrainOneEpoch runs one full pass over the training loader. Learning rate
// schedulers advance once at the start of the epoch, but only after the
// warm-up window has passed. Batch indices are 1-based and the global step
// is (epoch-1)*batches + index, so step numbering continues seamlessly
// across epochs.
func (t *GANTrainer) TrainOneEpoch(loader *vision.Loader, epoch int, cfg Config, sink tblog.Sink, schedG, schedD Scheduler) error {
	if loader == nil {
		return fmt.Errorf("train epoch: loader cannot be nil")
	}
	if epoch < 1 {
		return fmt.Errorf("train epoch: epoch must be 1-based, got %d", epoch)
	}

	t.G.SetTraining(true)
	t.D.SetTraining(true)

	if epoch > cfg.WarmupEpochs {
		if schedG != nil {
			schedG.Step()
		}
		if schedD != nil {
			schedD.Step()
		}
	}

	total := loader.Len()
	loader.Reset()
	for i := 1; ; i++ {
		batch, err := loader.Next()
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
		}
		if batch == nil {
			break
		}
		if batch.Target == nil {
			return fmt.Errorf("epoch %d batch %d: training requires target images", epoch, i)
		}

		losses, fake, err := t.TrainStep(batch.Source, batch.Target, batch.Condition)
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
		}

		step := (epoch-1)*total + i
		if i%cfg.LogFreq == 0 || i == total {
			t.logScalars(sink, losses, step)
			fmt.Fprintf(t.Out,
				"Epoch [%d/%d] Batch [%d/%d] G_adv: %.4f G_vgg: %.4f G_l1: %.4f D_real: %.4f D_fake: %.4f \n",
				epoch, cfg.TotalEpochs, i, total,
				losses.GAdversarial, losses.GPerceptual, losses.GPixel,
				losses.DReal, losses.DFake)
		}
		if i%cfg.DisplayFreq == 0 {
			if err := t.logImages(sink, batch, fake, step); err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
			}
		}
	}
	return nil
}

func (t *GANTrainer) logScalars(sink tblog.Sink, losses StepLosses, step int) {
	if sink == nil {
		return
	}
	sink.AddScalar("G/adversarial", losses.GAdversarial, step)
	sink.AddScalar("G/vgg", losses.GPerceptual, step)
	sink.AddScalar("G/l1", losses.GPixel, step)
	sink.AddScalar("G/lr", t.OptG.LearningRate(), step)
	sink.AddScalar("D/real", losses.DReal, step)
	sink.AddScalar("D/fake", losses.DFake, step)
	sink.AddScalar("D/lr", t.OptD.LearningRate(), step)
}

// logImages renders the current batch's source, target, and the output
// the generator produced during the step as grids, so the displayed
// samples match the losses logged for the same step.
func (t *GANTrainer) logImages(sink tblog.Sink, batch *vision.Batch, fake *tensor.Tensor, step int) error {
	if sink == nil {
		return nil
	}
	srcGrid, err := vision.MakeGrid(batch.Source, 2)
	if err != nil {
		return fmt.Errorf("failed to build source grid: %w", err)
	}
	dstGrid, err := vision.MakeGrid(batch.Target, 2)
	if err != nil {
		return fmt.Errorf("failed to build target grid: %w", err)
	}
	genGrid, err := vision.MakeGrid(fake, 2)
	if err != nil {
		return fmt.Errorf("failed to build generated grid: %w", err)
	}
	sink.AddImage("images/src", srcGrid, step)
	sink.AddImage("images/dst", dstGrid, step)
	sink.AddImage("images/gen", genGrid, step)
	return nil
}
