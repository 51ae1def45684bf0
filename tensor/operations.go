package tensor

import (
	"fmt"
	"math"
)

// newResult wires a freshly computed forward result into the autograd graph.
// Autocast rounding is applied to the forward data before the node is attached.
func newResult(shape []int, device DeviceType, data []float32, op Operation, requiresGrad bool) *Tensor {
	roundHalfInPlace(data)
	t := &Tensor{
		Shape:    shape,
		Strides:  calculateStrides(shape),
		DType:    Float32,
		Device:   device,
		Data:     data,
		NumElems: len(data),
	}
	if requiresGrad && gradEnabled {
		t.requiresGrad = true
		t.creator = op
	}
	return t
}

func checkSameShape(name string, a, b *Tensor) error {
	if !shapesEqual(a.Shape, b.Shape) {
		return fmt.Errorf("%s: shape mismatch %v vs %v", name, a.Shape, b.Shape)
	}
	return nil
}

// --- elementwise ---

type addOp struct{ inputs []*Tensor }

func (op *addOp) Inputs() []*Tensor { return op.inputs }

func (op *addOp) Backward(gradOut *Tensor) []*Tensor {
	gradA := mustClone(gradOut)
	gradB := mustClone(gradOut)
	return []*Tensor{gradA, gradB}
}

func Add(a, b *Tensor) (*Tensor, error) {
	if err := checkSameShape("add", a, b); err != nil {
		return nil, err
	}
	data := make([]float32, a.NumElems)
	for i := range data {
		data[i] = a.Data[i] + b.Data[i]
	}
	op := &addOp{inputs: []*Tensor{a, b}}
	return newResult(a.Shape, a.Device, data, op, a.requiresGrad || b.requiresGrad), nil
}

type subOp struct{ inputs []*Tensor }

func (op *subOp) Inputs() []*Tensor { return op.inputs }

func (op *subOp) Backward(gradOut *Tensor) []*Tensor {
	gradA := mustClone(gradOut)
	gradB := mustClone(gradOut)
	for i := range gradB.Data {
		gradB.Data[i] = -gradB.Data[i]
	}
	return []*Tensor{gradA, gradB}
}

func Sub(a, b *Tensor) (*Tensor, error) {
	if err := checkSameShape("sub", a, b); err != nil {
		return nil, err
	}
	data := make([]float32, a.NumElems)
	for i := range data {
		data[i] = a.Data[i] - b.Data[i]
	}
	op := &subOp{inputs: []*Tensor{a, b}}
	return newResult(a.Shape, a.Device, data, op, a.requiresGrad || b.requiresGrad), nil
}

type mulOp struct{ inputs []*Tensor }

func (op *mulOp) Inputs() []*Tensor { return op.inputs }

func (op *mulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := mustClone(gradOut)
	gradB := mustClone(gradOut)
	for i := range gradA.Data {
		gradA.Data[i] *= b.Data[i]
		gradB.Data[i] *= a.Data[i]
	}
	return []*Tensor{gradA, gradB}
}

func Mul(a, b *Tensor) (*Tensor, error) {
	if err := checkSameShape("mul", a, b); err != nil {
		return nil, err
	}
	data := make([]float32, a.NumElems)
	for i := range data {
		data[i] = a.Data[i] * b.Data[i]
	}
	op := &mulOp{inputs: []*Tensor{a, b}}
	return newResult(a.Shape, a.Device, data, op, a.requiresGrad || b.requiresGrad), nil
}

type scaleOp struct {
	inputs []*Tensor
	factor float32
}

func (op *scaleOp) Inputs() []*Tensor { return op.inputs }

func (op *scaleOp) Backward(gradOut *Tensor) []*Tensor {
	grad := mustClone(gradOut)
	for i := range grad.Data {
		grad.Data[i] *= op.factor
	}
	return []*Tensor{grad}
}

// Scale multiplies every element by a constant factor.
func Scale(a *Tensor, factor float32) (*Tensor, error) {
	data := make([]float32, a.NumElems)
	for i := range data {
		data[i] = a.Data[i] * factor
	}
	op := &scaleOp{inputs: []*Tensor{a}, factor: factor}
	return newResult(a.Shape, a.Device, data, op, a.requiresGrad), nil
}

// --- linear algebra ---

type matMulOp struct{ inputs []*Tensor }

func (op *matMulOp) Inputs() []*Tensor { return op.inputs }

func (op *matMulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	m, k := a.Shape[0], a.Shape[1]
	n := b.Shape[1]

	// gradA = gradOut @ B^T, gradB = A^T @ gradOut
	gradA := make([]float32, m*k)
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			var sum float32
			for p := 0; p < n; p++ {
				sum += gradOut.Data[i*n+p] * b.Data[j*n+p]
			}
			gradA[i*k+j] = sum
		}
	}
	gradB := make([]float32, k*n)
	for i := 0; i < k; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < m; p++ {
				sum += a.Data[p*k+i] * gradOut.Data[p*n+j]
			}
			gradB[i*n+j] = sum
		}
	}
	ta, _ := NewTensor([]int{m, k}, Float32, a.Device, gradA)
	tb, _ := NewTensor([]int{k, n}, Float32, b.Device, gradB)
	return []*Tensor{ta, tb}
}

// MatMul computes a @ b for 2D tensors [M,K] x [K,N].
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul: requires 2D tensors, got %v and %v", a.Shape, b.Shape)
	}
	if a.Shape[1] != b.Shape[0] {
		return nil, fmt.Errorf("matmul: inner dimensions mismatch %v vs %v", a.Shape, b.Shape)
	}
	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	data := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := a.Data[i*k+p]
			if av == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				data[i*n+j] += av * b.Data[p*n+j]
			}
		}
	}
	op := &matMulOp{inputs: []*Tensor{a, b}}
	return newResult([]int{m, n}, a.Device, data, op, a.requiresGrad || b.requiresGrad), nil
}

type biasAddOp struct{ inputs []*Tensor }

func (op *biasAddOp) Inputs() []*Tensor { return op.inputs }

func (op *biasAddOp) Backward(gradOut *Tensor) []*Tensor {
	rows, cols := gradOut.Shape[0], gradOut.Shape[1]
	gradX := mustClone(gradOut)
	gradB := make([]float32, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			gradB[j] += gradOut.Data[i*cols+j]
		}
	}
	tb, _ := NewTensor([]int{cols}, Float32, gradOut.Device, gradB)
	return []*Tensor{gradX, tb}
}

// BiasAdd adds a bias vector [N] to every row of x [B,N].
func BiasAdd(x, bias *Tensor) (*Tensor, error) {
	if len(x.Shape) != 2 || len(bias.Shape) != 1 || x.Shape[1] != bias.Shape[0] {
		return nil, fmt.Errorf("bias add: incompatible shapes %v and %v", x.Shape, bias.Shape)
	}
	rows, cols := x.Shape[0], x.Shape[1]
	data := make([]float32, x.NumElems)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = x.Data[i*cols+j] + bias.Data[j]
		}
	}
	op := &biasAddOp{inputs: []*Tensor{x, bias}}
	return newResult(x.Shape, x.Device, data, op, x.requiresGrad || bias.requiresGrad), nil
}

// --- shape ---

type catOp struct {
	inputs []*Tensor
	dim    int
}

func (op *catOp) Inputs() []*Tensor { return op.inputs }

func (op *catOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA, _ := Zeros(a.Shape, Float32, a.Device)
	gradB, _ := Zeros(b.Shape, Float32, b.Device)

	outer := 1
	for i := 0; i < op.dim; i++ {
		outer *= a.Shape[i]
	}
	inner := 1
	for i := op.dim + 1; i < len(a.Shape); i++ {
		inner *= a.Shape[i]
	}
	aDim, bDim := a.Shape[op.dim], b.Shape[op.dim]

	for o := 0; o < outer; o++ {
		srcBase := o * (aDim + bDim) * inner
		copy(gradA.Data[o*aDim*inner:(o+1)*aDim*inner], gradOut.Data[srcBase:srcBase+aDim*inner])
		copy(gradB.Data[o*bDim*inner:(o+1)*bDim*inner], gradOut.Data[srcBase+aDim*inner:srcBase+(aDim+bDim)*inner])
	}
	return []*Tensor{gradA, gradB}
}

// Cat concatenates two tensors along the given dimension. All other
// dimensions must match.
func Cat(a, b *Tensor, dim int) (*Tensor, error) {
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("cat: rank mismatch %v vs %v", a.Shape, b.Shape)
	}
	if dim < 0 || dim >= len(a.Shape) {
		return nil, fmt.Errorf("cat: dimension %d out of range for rank %d", dim, len(a.Shape))
	}
	for i := range a.Shape {
		if i != dim && a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("cat: shapes %v and %v differ outside dimension %d", a.Shape, b.Shape, dim)
		}
	}

	outShape := make([]int, len(a.Shape))
	copy(outShape, a.Shape)
	outShape[dim] = a.Shape[dim] + b.Shape[dim]

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= a.Shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(a.Shape); i++ {
		inner *= a.Shape[i]
	}
	aDim, bDim := a.Shape[dim], b.Shape[dim]

	data := make([]float32, calculateNumElements(outShape))
	for o := 0; o < outer; o++ {
		dstBase := o * (aDim + bDim) * inner
		copy(data[dstBase:dstBase+aDim*inner], a.Data[o*aDim*inner:(o+1)*aDim*inner])
		copy(data[dstBase+aDim*inner:dstBase+(aDim+bDim)*inner], b.Data[o*bDim*inner:(o+1)*bDim*inner])
	}
	op := &catOp{inputs: []*Tensor{a, b}, dim: dim}
	return newResult(outShape, a.Device, data, op, a.requiresGrad || b.requiresGrad), nil
}

type reshapeOp struct {
	inputs  []*Tensor
	inShape []int
}

func (op *reshapeOp) Inputs() []*Tensor { return op.inputs }

func (op *reshapeOp) Backward(gradOut *Tensor) []*Tensor {
	grad := mustClone(gradOut)
	grad.Shape = op.inShape
	grad.Strides = calculateStrides(op.inShape)
	return []*Tensor{grad}
}

// Reshape returns a tensor with the same data viewed under a new shape.
func Reshape(t *Tensor, shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if calculateNumElements(shape) != t.NumElems {
		return nil, fmt.Errorf("reshape: cannot view %d elements as %v", t.NumElems, shape)
	}
	data := make([]float32, t.NumElems)
	copy(data, t.Data)
	inShape := make([]int, len(t.Shape))
	copy(inShape, t.Shape)
	op := &reshapeOp{inputs: []*Tensor{t}, inShape: inShape}
	return newResult(shape, t.Device, data, op, t.requiresGrad), nil
}

// --- activations ---

type tanhOp struct {
	inputs []*Tensor
	output []float32
}

func (op *tanhOp) Inputs() []*Tensor { return op.inputs }

func (op *tanhOp) Backward(gradOut *Tensor) []*Tensor {
	grad := mustClone(gradOut)
	for i := range grad.Data {
		y := op.output[i]
		grad.Data[i] *= 1 - y*y
	}
	return []*Tensor{grad}
}

func Tanh(a *Tensor) (*Tensor, error) {
	data := make([]float32, a.NumElems)
	for i := range data {
		data[i] = float32(math.Tanh(float64(a.Data[i])))
	}
	op := &tanhOp{inputs: []*Tensor{a}, output: data}
	return newResult(a.Shape, a.Device, data, op, a.requiresGrad), nil
}

type leakyReLUOp struct {
	inputs []*Tensor
	slope  float32
}

func (op *leakyReLUOp) Inputs() []*Tensor { return op.inputs }

func (op *leakyReLUOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	grad := mustClone(gradOut)
	for i := range grad.Data {
		if in.Data[i] < 0 {
			grad.Data[i] *= op.slope
		}
	}
	return []*Tensor{grad}
}

// LeakyReLU applies max(x, slope*x) elementwise.
func LeakyReLU(a *Tensor, slope float32) (*Tensor, error) {
	if slope < 0 {
		return nil, fmt.Errorf("leaky relu: negative slope %f must be non-negative", slope)
	}
	data := make([]float32, a.NumElems)
	for i := range data {
		v := a.Data[i]
		if v < 0 {
			v *= slope
		}
		data[i] = v
	}
	op := &leakyReLUOp{inputs: []*Tensor{a}, slope: slope}
	return newResult(a.Shape, a.Device, data, op, a.requiresGrad), nil
}
