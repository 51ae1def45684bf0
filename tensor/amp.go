package tensor

import (
	"fmt"
	"math"
)

// Reduced-precision support. Go has no native float16, so half precision is
// realized by rounding float32 values through the IEEE 754 binary16
// representation. Inside an autocast region every forward result is rounded,
// which reproduces the throughput/stability trade-off of half-precision
// compute without changing gradient precision: backward math stays float32.

// Half is a binary16 value stored in a uint16.
type Half uint16

// Float32ToFloat16 converts with round-to-nearest, clamping overflow to
// signed infinity and flushing subnormals to signed zero.
func Float32ToFloat16(f float32) Half {
	bits := math.Float32bits(f)
	sign := bits & 0x80000000

	if bits&0x7FFFFFFF >= 0x47800000 { // >= 2^16: overflow, or NaN/Inf
		if bits&0x7F800000 == 0x7F800000 && bits&0x007FFFFF != 0 {
			return Half((sign >> 16) | 0x7E00) // NaN
		}
		return Half((sign >> 16) | 0x7C00) // Inf
	}
	if bits&0x7FFFFFFF < 0x38800000 { // < 2^-14: below minimum normal
		return Half(sign >> 16)
	}

	// Round mantissa to 10 bits before repacking.
	bits += 0x00001000
	exp := ((bits >> 23) & 0xFF) - 127 + 15
	mantissa := (bits >> 13) & 0x3FF
	return Half((sign >> 16) | (exp << 10) | mantissa)
}

// Float16ToFloat32 converts a binary16 value back to float32.
func Float16ToFloat32(h Half) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1F
	mantissa := uint32(h) & 0x3FF

	switch exp {
	case 0:
		if mantissa == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal half; normalize into float32.
		e := -1
		for mantissa&0x400 == 0 {
			mantissa <<= 1
			e++
		}
		mantissa &= 0x3FF
		return math.Float32frombits(sign | uint32(127-15-e)<<23 | mantissa<<13)
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mantissa<<13)
	default:
		return math.Float32frombits(sign | (exp-15+127)<<23 | mantissa<<13)
	}
}

var autocastEnabled bool

// WithAutocast runs fn inside a reduced-precision compute region. Forward
// results of tensor operations started within the region are rounded to
// float16 precision. The previous mode is restored on exit, including when
// fn fails, so precision state never leaks past the region.
func WithAutocast(fn func() error) error {
	prev := autocastEnabled
	autocastEnabled = true
	defer func() { autocastEnabled = prev }()
	return fn()
}

// AutocastEnabled reports whether the caller is inside an autocast region.
func AutocastEnabled() bool {
	return autocastEnabled
}

func roundHalfInPlace(data []float32) {
	if !autocastEnabled {
		return
	}
	for i, v := range data {
		data[i] = Float16ToFloat32(Float32ToFloat16(v))
	}
}

// GradScaler implements dynamic loss scaling for reduced-precision training:
// the loss is scaled before backward so small gradients survive rounding,
// gradients are unscaled before the optimizer step, and the scale adapts
// when non-finite gradients appear.
type GradScaler struct {
	scale     float32
	growth    float32
	backoff   float32
	interval  int
	goodSteps int
}

// NewGradScaler creates a scaler with the conventional defaults
// (initial scale 2^16, growth 2x every 2000 clean steps, halve on overflow).
func NewGradScaler() *GradScaler {
	return &GradScaler{
		scale:    65536.0,
		growth:   2.0,
		backoff:  0.5,
		interval: 2000,
	}
}

// Scale returns the current loss scale.
func (gs *GradScaler) Scale() float32 {
	return gs.scale
}

// Backward runs a scaled backward pass from a scalar loss.
func (gs *GradScaler) Backward(loss *Tensor) error {
	seed, err := Full(loss.Shape, gs.scale, Float32, loss.Device)
	if err != nil {
		return err
	}
	return loss.BackwardWith(seed)
}

// Unscale divides accumulated gradients by the loss scale and reports whether
// all gradients are finite. On overflow the scale is reduced and the step
// should be skipped.
func (gs *GradScaler) Unscale(params []*Tensor) (bool, error) {
	if gs.scale <= 0 {
		return false, fmt.Errorf("grad scaler: invalid scale %f", gs.scale)
	}
	inv := 1.0 / gs.scale
	finite := true
	for _, p := range params {
		g := p.Grad()
		if g == nil {
			continue
		}
		for i := range g.Data {
			g.Data[i] *= inv
			if v := float64(g.Data[i]); math.IsNaN(v) || math.IsInf(v, 0) {
				finite = false
			}
		}
	}

	if !finite {
		gs.scale *= gs.backoff
		gs.goodSteps = 0
		return false, nil
	}
	gs.goodSteps++
	if gs.goodSteps >= gs.interval {
		gs.scale *= gs.growth
		gs.goodSteps = 0
	}
	return true, nil
}
