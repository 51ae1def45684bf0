// Package metric computes image-translation quality metrics between
// generated and reference batches. Inputs are expected in [0,255] pixel
// scale with the batch along the leading dimension.
package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// MeanPixelLoss returns the mean squared pixel difference across the whole
// batch.
func MeanPixelLoss(generated, reference *tensor.Tensor) (float64, error) {
	if !tensor.ShapesEqual(generated.Shape, reference.Shape) {
		return 0, fmt.Errorf("pixel loss: shape mismatch %v vs %v", generated.Shape, reference.Shape)
	}
	if generated.NumElems == 0 {
		return 0, fmt.Errorf("pixel loss: empty input")
	}
	var sum float64
	for i := range generated.Data {
		d := float64(generated.Data[i] - reference.Data[i])
		sum += d * d
	}
	return sum / float64(generated.NumElems), nil
}

// MeanAbsoluteCRIError returns the mean absolute CRI error over the batch.
// The CRI error of one sample is the mean absolute pixel deviation of that
// sample. When returnErrorArray is set, the per-sample errors are returned
// in batch order alongside the aggregate.
func MeanAbsoluteCRIError(generated, reference *tensor.Tensor, returnErrorArray bool) (float64, []float64, error) {
	if !tensor.ShapesEqual(generated.Shape, reference.Shape) {
		return 0, nil, fmt.Errorf("cri error: shape mismatch %v vs %v", generated.Shape, reference.Shape)
	}
	if len(generated.Shape) == 0 || generated.Shape[0] == 0 {
		return 0, nil, fmt.Errorf("cri error: empty batch")
	}

	batch := generated.Shape[0]
	perSample := generated.NumElems / batch
	errors := make([]float64, batch)
	for i := 0; i < batch; i++ {
		var sum float64
		base := i * perSample
		for j := 0; j < perSample; j++ {
			sum += math.Abs(float64(generated.Data[base+j] - reference.Data[base+j]))
		}
		errors[i] = sum / float64(perSample)
	}

	mean := stat.Mean(errors, nil)
	if !returnErrorArray {
		return mean, nil, nil
	}
	return mean, errors, nil
}
