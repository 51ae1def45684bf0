package training

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sslstudent/3dprint-image-translation/tblog"
	"github.com/sslstudent/3dprint-image-translation/tensor"
	"github.com/sslstudent/3dprint-image-translation/vision"
)

// Generate runs the generator over the loader without gradient tracking
// and returns the outputs concatenated in visit order, still in [-1,1].
// When sink is non-nil a display grid is logged under the given
// identifier. When persist is set each output is rescaled to [0,1] and
// written to cfg.OutputDir using the basename of its source file, so the
// i-th saved image always corresponds to the i-th input.
func (t *GANTrainer) Generate(loader *vision.Loader, identifier int, cfg Config, sink tblog.Sink, persist bool) (*tensor.Tensor, error) {
	if loader == nil {
		return nil, fmt.Errorf("generate: loader cannot be nil")
	}

	t.G.SetTraining(false)

	var generated *tensor.Tensor
	var filenames []string
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
			fake, err := t.G.Forward(batch.Source, batch.Condition)
			if err != nil {
				return fmt.Errorf("generator forward failed: %w", err)
			}
			filenames = append(filenames, batch.Filenames...)
			if generated == nil {
				generated = fake
				continue
			}
			if generated, err = tensor.Cat(generated, fake, 0); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if generated == nil {
		return nil, fmt.Errorf("generate: loader produced no batches")
	}

	if sink != nil {
		grid, err := vision.MakeGrid(generated, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to build generated grid: %w", err)
		}
		sink.AddImage("images/test_gen", grid, identifier)
	}

	if persist {
		if err := t.persistSamples(generated, filenames, cfg.OutputDir); err != nil {
			return nil, err
		}
	}
	return generated, nil
}

func (t *GANTrainer) persistSamples(generated *tensor.Tensor, filenames []string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	rescaled, err := rescale(generated, 1)
	if err != nil {
		return err
	}
	batch := rescaled.Shape[0]
	if len(filenames) != batch {
		return fmt.Errorf("have %d filenames for %d generated samples", len(filenames), batch)
	}
	for i := 0; i < batch; i++ {
		sample, err := sampleAt(rescaled, i)
		if err != nil {
			return err
		}
		path := filepath.Join(outputDir, filepath.Base(filenames[i]))
		if err := vision.SaveImage(sample, path); err != nil {
			return fmt.Errorf("failed to save sample %d: %w", i, err)
		}
	}
	return nil
}

// sampleAt extracts the i-th sample of a batched tensor as a [C,H,W] view
// copy.
func sampleAt(t *tensor.Tensor, i int) (*tensor.Tensor, error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("sample extraction needs a batched tensor, got shape %v", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("sample index %d out of range [0, %d)", i, t.Shape[0])
	}
	perSample := t.NumElems / t.Shape[0]
	data := make([]float32, perSample)
	copy(data, t.Data[i*perSample:(i+1)*perSample])
	shape := make([]int, len(t.Shape)-1)
	copy(shape, t.Shape[1:])
	return tensor.NewTensor(shape, t.DType, t.Device, data)
}
