package tensor

import (
	"fmt"
	"math"
)

// Loss primitives. Each produces a single-element tensor wired into the
// autograd graph so a scalar Backward drives the whole network update.

type bceWithLogitsOp struct {
	inputs []*Tensor
	target float32
}

func (op *bceWithLogitsOp) Inputs() []*Tensor { return op.inputs }

func (op *bceWithLogitsOp) Backward(gradOut *Tensor) []*Tensor {
	score := op.inputs[0]
	n := float32(score.NumElems)
	g := gradOut.Data[0]
	grad, _ := Zeros(score.Shape, Float32, score.Device)
	for i, x := range score.Data {
		sig := float32(1.0 / (1.0 + math.Exp(-float64(x))))
		grad.Data[i] = g * (sig - op.target) / n
	}
	return []*Tensor{grad}
}

// BCEWithLogitsMean computes mean binary cross-entropy between raw scores and
// a constant boolean label, numerically stable in logit space.
func BCEWithLogitsMean(score *Tensor, targetReal bool) (*Tensor, error) {
	if score.NumElems == 0 {
		return nil, fmt.Errorf("bce: empty score tensor")
	}
	target := float32(0)
	if targetReal {
		target = 1
	}
	var sum float64
	for _, x := range score.Data {
		// max(x,0) - t*x + log(1 + exp(-|x|))
		fx := float64(x)
		sum += math.Max(fx, 0) - float64(target)*fx + math.Log1p(math.Exp(-math.Abs(fx)))
	}
	data := []float32{float32(sum / float64(score.NumElems))}
	op := &bceWithLogitsOp{inputs: []*Tensor{score}, target: target}
	return newResult([]int{1}, score.Device, data, op, score.requiresGrad), nil
}

type l1MeanOp struct{ inputs []*Tensor }

func (op *l1MeanOp) Inputs() []*Tensor { return op.inputs }

func (op *l1MeanOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	n := float32(a.NumElems)
	g := gradOut.Data[0]
	gradA, _ := Zeros(a.Shape, Float32, a.Device)
	gradB, _ := Zeros(b.Shape, Float32, b.Device)
	for i := range a.Data {
		var s float32
		switch d := a.Data[i] - b.Data[i]; {
		case d > 0:
			s = 1
		case d < 0:
			s = -1
		}
		gradA.Data[i] = g * s / n
		gradB.Data[i] = -g * s / n
	}
	return []*Tensor{gradA, gradB}
}

// L1Mean computes the mean absolute difference between two tensors.
func L1Mean(a, b *Tensor) (*Tensor, error) {
	if err := checkSameShape("l1", a, b); err != nil {
		return nil, err
	}
	var sum float64
	for i := range a.Data {
		sum += math.Abs(float64(a.Data[i] - b.Data[i]))
	}
	data := []float32{float32(sum / float64(a.NumElems))}
	op := &l1MeanOp{inputs: []*Tensor{a, b}}
	return newResult([]int{1}, a.Device, data, op, a.requiresGrad || b.requiresGrad), nil
}

type avgPool2Op struct{ inputs []*Tensor }

func (op *avgPool2Op) Inputs() []*Tensor { return op.inputs }

func (op *avgPool2Op) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	b, c, h, w := in.Shape[0], in.Shape[1], in.Shape[2], in.Shape[3]
	oh, ow := h/2, w/2
	grad, _ := Zeros(in.Shape, Float32, in.Device)
	for n := 0; n < b*c; n++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				g := gradOut.Data[n*oh*ow+y*ow+x] * 0.25
				base := n*h*w + 2*y*w + 2*x
				grad.Data[base] += g
				grad.Data[base+1] += g
				grad.Data[base+w] += g
				grad.Data[base+w+1] += g
			}
		}
	}
	return []*Tensor{grad}
}

// AvgPool2 downsamples a [B,C,H,W] tensor by averaging 2x2 blocks.
// H and W must be even.
func AvgPool2(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 4 {
		return nil, fmt.Errorf("avg pool: requires [B,C,H,W], got %v", t.Shape)
	}
	b, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if h%2 != 0 || w%2 != 0 {
		return nil, fmt.Errorf("avg pool: spatial dims must be even, got %dx%d", h, w)
	}
	oh, ow := h/2, w/2
	data := make([]float32, b*c*oh*ow)
	for n := 0; n < b*c; n++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				base := n*h*w + 2*y*w + 2*x
				sum := t.Data[base] + t.Data[base+1] + t.Data[base+w] + t.Data[base+w+1]
				data[n*oh*ow+y*ow+x] = sum * 0.25
			}
		}
	}
	op := &avgPool2Op{inputs: []*Tensor{t}}
	return newResult([]int{b, c, oh, ow}, t.Device, data, op, t.requiresGrad), nil
}

type gatherRowsOp struct {
	inputs  []*Tensor
	indices []int
}

func (op *gatherRowsOp) Inputs() []*Tensor { return op.inputs }

func (op *gatherRowsOp) Backward(gradOut *Tensor) []*Tensor {
	table := op.inputs[0]
	cols := table.Shape[1]
	grad, _ := Zeros(table.Shape, Float32, table.Device)
	for i, row := range op.indices {
		for j := 0; j < cols; j++ {
			grad.Data[row*cols+j] += gradOut.Data[i*cols+j]
		}
	}
	return []*Tensor{grad}
}

// GatherRows selects rows of a [V,E] table by index, producing [len(indices),E].
// Gradients scatter-add back into the table.
func GatherRows(table *Tensor, indices []int) (*Tensor, error) {
	if len(table.Shape) != 2 {
		return nil, fmt.Errorf("gather rows: requires 2D table, got %v", table.Shape)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("gather rows: no indices")
	}
	rows, cols := table.Shape[0], table.Shape[1]
	data := make([]float32, len(indices)*cols)
	for i, row := range indices {
		if row < 0 || row >= rows {
			return nil, fmt.Errorf("gather rows: index %d out of range [0, %d)", row, rows)
		}
		copy(data[i*cols:(i+1)*cols], table.Data[row*cols:(row+1)*cols])
	}
	idx := make([]int, len(indices))
	copy(idx, indices)
	op := &gatherRowsOp{inputs: []*Tensor{table}, indices: idx}
	return newResult([]int{len(indices), cols}, table.Device, data, op, table.requiresGrad), nil
}
