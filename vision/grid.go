// Package vision handles the image side of training: grid rendering for
// telemetry, PNG/JPEG persistence, and paired source/target datasets with
// stable iteration order.
package vision

import (
	"fmt"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// MakeGrid tiles a [B,C,H,W] batch into a single [C, rows*H, nrow*W] image,
// renormalizing pixel values from [-1,1] to [0,1]. Samples fill the grid
// row-major in batch order; unused cells stay black.
func MakeGrid(images *tensor.Tensor, nrow int) (*tensor.Tensor, error) {
	if len(images.Shape) != 4 {
		return nil, fmt.Errorf("make grid: requires [B,C,H,W], got %v", images.Shape)
	}
	if nrow <= 0 {
		return nil, fmt.Errorf("make grid: nrow must be positive, got %d", nrow)
	}
	b, c, h, w := images.Shape[0], images.Shape[1], images.Shape[2], images.Shape[3]
	rows := (b + nrow - 1) / nrow

	grid, err := tensor.Zeros([]int{c, rows * h, nrow * w}, tensor.Float32, images.Device)
	if err != nil {
		return nil, err
	}
	gridW := nrow * w
	for i := 0; i < b; i++ {
		row, col := i/nrow, i%nrow
		for ch := 0; ch < c; ch++ {
			for y := 0; y < h; y++ {
				srcBase := ((i*c+ch)*h + y) * w
				dstBase := ch*rows*h*gridW + (row*h+y)*gridW + col*w
				for x := 0; x < w; x++ {
					grid.Data[dstBase+x] = clamp01((images.Data[srcBase+x] + 1) * 0.5)
				}
			}
		}
	}
	return grid, nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
