package tensor

import (
	"fmt"
)

// Backward runs reverse-mode differentiation from a scalar loss, accumulating
// gradients into every reachable leaf tensor whose requiresGrad flag is set.
func (t *Tensor) Backward() error {
	seed, err := Ones(t.Shape, Float32, t.Device)
	if err != nil {
		return err
	}
	return t.BackwardWith(seed)
}

// BackwardWith runs reverse-mode differentiation seeded with an explicit
// output gradient, which must match the root tensor's shape.
func (t *Tensor) BackwardWith(seed *Tensor) error {
	if t.NumElems != 1 {
		return fmt.Errorf("backward: root must be a scalar, got shape %v", t.Shape)
	}
	if !shapesEqual(seed.Shape, t.Shape) {
		return fmt.Errorf("backward: seed shape %v does not match root shape %v", seed.Shape, t.Shape)
	}
	if t.creator == nil {
		return nil
	}

	order := topologicalOrder(t)
	grads := map[*Tensor]*Tensor{t: seed}

	// Walk nodes from root to leaves, pushing gradients through each creator.
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		gradOut := grads[node]
		if gradOut == nil || node.creator == nil {
			continue
		}
		inputGrads := node.creator.Backward(gradOut)
		inputs := node.creator.Inputs()
		if len(inputGrads) != len(inputs) {
			return fmt.Errorf("backward: operation returned %d gradients for %d inputs", len(inputGrads), len(inputs))
		}
		for j, in := range inputs {
			if !in.requiresGrad && in.creator == nil {
				continue
			}
			if existing := grads[in]; existing != nil {
				for k := range existing.Data {
					existing.Data[k] += inputGrads[j].Data[k]
				}
			} else {
				grads[in] = inputGrads[j]
			}
		}
	}

	// Leaves keep their accumulated gradient across calls, as optimizers
	// expect zero-grad to be explicit.
	for x, g := range grads {
		if x.creator != nil || !x.requiresGrad {
			continue
		}
		if x.grad == nil {
			x.grad = g
			continue
		}
		for k := range x.grad.Data {
			x.grad.Data[k] += g.Data[k]
		}
	}
	return nil
}

// topologicalOrder returns tensors reachable from root ordered leaves-first.
func topologicalOrder(root *Tensor) []*Tensor {
	var order []*Tensor
	visited := make(map[*Tensor]bool)

	var visit func(x *Tensor)
	visit = func(x *Tensor) {
		if visited[x] {
			return
		}
		visited[x] = true
		if x.creator != nil {
			for _, in := range x.creator.Inputs() {
				visit(in)
			}
		}
		order = append(order, x)
	}
	visit(root)
	return order
}

// Detach returns a tensor sharing this tensor's data but cut from the
// autograd graph: no creator and no gradient tracking.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:    t.Shape,
		Strides:  t.Strides,
		DType:    t.DType,
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

// Clone returns a deep copy of the tensor's shape and data. The copy is a
// leaf: gradient state and graph linkage are not carried over.
func (t *Tensor) Clone() (*Tensor, error) {
	data := make([]float32, t.NumElems)
	copy(data, t.Data)
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	return NewTensor(shape, t.DType, t.Device, data)
}

func mustClone(t *Tensor) *Tensor {
	c, err := t.Clone()
	if err != nil {
		panic(fmt.Sprintf("clone failed: %v", err))
	}
	return c
}

// ZeroGrad clears accumulated gradients on every tensor that tracks them.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		if t.requiresGrad && t.grad != nil {
			for i := range t.grad.Data {
				t.grad.Data[i] = 0
			}
		}
	}
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("item: tensor has %d elements, want 1", t.NumElems)
	}
	return float64(t.Data[0]), nil
}
