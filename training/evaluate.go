package training

import (
	"fmt"
	"strings"

	"github.com/sslstudent/3dprint-image-translation/metric"
	"github.com/sslstudent/3dprint-image-translation/tblog"
	"github.com/sslstudent/3dprint-image-translation/tensor"
	"github.com/sslstudent/3dprint-image-translation/vision"
)

// CRIThreshold is the per-sample error bound under which a generated
// sample counts as usable.
const CRIThreshold = 20.0

// EvalResult summarizes one validation pass.
type EvalResult struct {
	MeanPixelLoss float64
	MeanCRIError  float64
	PerSampleCRI  []float64
	SamplesBelow  int
	SamplesTotal  int
}

// Evaluate runs the generator over the whole loader without gradient
// tracking, concatenates outputs in visit order, and reports pixel and
// CRI error against the reference images. Both sides are rescaled from
// [-1,1] to [0,255] before comparison.
func (t *GANTrainer) Evaluate(loader *vision.Loader, epoch int, cfg Config, sink tblog.Sink) (EvalResult, error) {
	if loader == nil {
		return EvalResult{}, fmt.Errorf("evaluate: loader cannot be nil")
	}

	fmt.Fprintln(t.Out, strings.Repeat("=", 80))
	fmt.Fprintf(t.Out, "Validation at epoch [%d/%d]\n", epoch, cfg.TotalEpochs)

	t.G.SetTraining(false)
	t.D.SetTraining(false)

	var generated, reference *tensor.Tensor
	err := tensor.WithNoGrad(func() error {
		loader.Reset()
		for {
			batch, err := loader.Next()
			if err != nil {
				return err
			}
			if batch == nil {
				return nil
			}
			if batch.Target == nil {
				return fmt.Errorf("evaluation requires target images")
			}
			fake, err := t.G.Forward(batch.Source, batch.Condition)
			if err != nil {
				return fmt.Errorf("generator forward failed: %w", err)
			}
			if generated == nil {
				generated, reference = fake, batch.Target
				continue
			}
			if generated, err = tensor.Cat(generated, fake, 0); err != nil {
				return err
			}
			if reference, err = tensor.Cat(reference, batch.Target, 0); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return EvalResult{}, err
	}
	if generated == nil {
		return EvalResult{}, fmt.Errorf("evaluate: loader produced no batches")
	}

	gen255, err := rescale(generated, 255)
	if err != nil {
		return EvalResult{}, err
	}
	ref255, err := rescale(reference, 255)
	if err != nil {
		return EvalResult{}, err
	}

	pix, err := metric.MeanPixelLoss(gen255, ref255)
	if err != nil {
		return EvalResult{}, err
	}
	cri, perSample, err := metric.MeanAbsoluteCRIError(gen255, ref255, true)
	if err != nil {
		return EvalResult{}, err
	}

	below := 0
	for _, e := range perSample {
		if e < CRIThreshold {
			below++
		}
	}

	if sink != nil {
		sink.AddScalar("metric/pixel loss", pix, epoch)
		sink.AddScalar("metric/cri_error", cri, epoch)
		sink.AddHistogram("metric/cri_error_hist", perSample, epoch)
	}

	fmt.Fprintf(t.Out, "* Mean Pix error: %.4f\n", pix)
	fmt.Fprintf(t.Out, "* Mean CRI error: %.4f\n", cri)
	fmt.Fprintf(t.Out, "* # of samples (CRI error < %d): %d / %d\n", int(CRIThreshold), below, len(perSample))

	return EvalResult{
		MeanPixelLoss: pix,
		MeanCRIError:  cri,
		PerSampleCRI:  perSample,
		SamplesBelow:  below,
		SamplesTotal:  len(perSample),
	}, nil
}

// rescale maps values from [-1,1] to [0,scale].
func rescale(t *tensor.Tensor, scale float32) (*tensor.Tensor, error) {
	data := make([]float32, t.NumElems)
	for i, v := range t.Data {
		data[i] = (v + 1) * 0.5 * scale
	}
	return tensor.NewTensor(t.Shape, t.DType, t.Device, data)
}
