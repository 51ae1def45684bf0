package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

func NewTensor(shape []int, dtype DType, device DeviceType, data []float32) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	strides := calculateStrides(shape)

	tensor := &Tensor{
		Shape:    shape,
		Strides:  strides,
		DType:    dtype,
		Device:   device,
		NumElems: numElems,
	}

	if data != nil {
		if len(data) != numElems {
			return nil, fmt.Errorf("data length %d does not match tensor size %d", len(data), numElems)
		}
		tensor.Data = data
	} else {
		tensor.Data = make([]float32, numElems)
	}

	return tensor, nil
}

func Zeros(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	return NewTensor(shape, dtype, device, nil)
}

func Ones(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	t, err := NewTensor(shape, dtype, device, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = 1.0
	}
	return t, nil
}

func Full(shape []int, value float32, dtype DType, device DeviceType) (*Tensor, error) {
	t, err := NewTensor(shape, dtype, device, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t, nil
}

// FromScalar creates a single-element tensor from a float64 value.
func FromScalar(value float64, dtype DType, device DeviceType) *Tensor {
	t, _ := NewTensor([]int{1}, dtype, device, []float32{float32(value)})
	return t
}

// RandNormal creates a tensor filled with N(0, stddev) samples from rng.
// Pass a seeded rng for reproducible initialization.
func RandNormal(shape []int, stddev float64, rng *rand.Rand, device DeviceType) (*Tensor, error) {
	t, err := NewTensor(shape, Float32, device, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64() * stddev)
	}
	return t, nil
}

// KaimingNormal initializes a weight tensor with stddev sqrt(2/fanIn).
func KaimingNormal(shape []int, fanIn int, rng *rand.Rand, device DeviceType) (*Tensor, error) {
	if fanIn <= 0 {
		return nil, fmt.Errorf("fan-in must be positive, got %d", fanIn)
	}
	return RandNormal(shape, math.Sqrt(2.0/float64(fanIn)), rng, device)
}
