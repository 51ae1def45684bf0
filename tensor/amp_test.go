package tensor

import (
	"errors"
	"math"
	"testing"
)

var errTest = errors.New("test error")

func TestFloat16RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want float32
	}{
		{"zero", 0, 0},
		{"one", 1, 1},
		{"negative", -2.5, -2.5},
		{"exact half", 0.5, 0.5},
		{"rounded", 0.1, 0.099975586},
		{"overflow", 1e6, float32(math.Inf(1))},
		{"negative overflow", -1e6, float32(math.Inf(-1))},
		{"subnormal flush", 1e-8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Float16ToFloat32(Float32ToFloat16(tt.in))
			if got != tt.want {
				t.Errorf("round trip of %v = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHalfStorageDistinctFromFloat16DType(t *testing.T) {
	// Half names the binary16 value; Float16 names the dtype tag.
	var h Half = Float32ToFloat16(1.5)
	if got := Float16ToFloat32(h); got != 1.5 {
		t.Errorf("round trip = %v, want 1.5", got)
	}
	if got := Float16.String(); got != "Float16" {
		t.Errorf("dtype string = %q, want %q", got, "Float16")
	}
}

func TestFloat16NaN(t *testing.T) {
	nan := float32(math.NaN())
	got := Float16ToFloat32(Float32ToFloat16(nan))
	if !math.IsNaN(float64(got)) {
		t.Errorf("NaN round trip = %v, want NaN", got)
	}
}

func TestAutocastRoundsForwardResults(t *testing.T) {
	a := scalar(t, 0.1, false)
	b := scalar(t, 0, false)

	var inside, outside *Tensor
	err := WithAutocast(func() error {
		var err error
		inside, err = Add(a, b)
		return err
	})
	if err != nil {
		t.Fatalf("WithAutocast failed: %v", err)
	}
	outside, err = Add(a, b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if inside.Data[0] == outside.Data[0] {
		t.Error("autocast result identical to full precision; rounding did not apply")
	}
	want := Float16ToFloat32(Float32ToFloat16(0.1))
	if inside.Data[0] != want {
		t.Errorf("autocast result = %v, want %v", inside.Data[0], want)
	}
	if AutocastEnabled() {
		t.Error("autocast mode leaked past the region")
	}
}

func TestAutocastRestoredOnError(t *testing.T) {
	errBoom := WithAutocast(func() error {
		return errTest
	})
	if errBoom != errTest {
		t.Fatalf("WithAutocast returned %v, want sentinel", errBoom)
	}
	if AutocastEnabled() {
		t.Error("autocast mode leaked after an error")
	}
}

func TestGradScalerScalesAndUnscales(t *testing.T) {
	x := scalar(t, 2, true)
	loss, err := Scale(x, 3)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}

	gs := NewGradScaler()
	if err := gs.Backward(loss); err != nil {
		t.Fatalf("scaled backward failed: %v", err)
	}
	// Gradient is held scaled until Unscale runs.
	if got := x.Grad().Data[0]; got != 3*65536 {
		t.Errorf("scaled grad = %v, want %v", got, 3*65536)
	}

	ok, err := gs.Unscale([]*Tensor{x})
	if err != nil {
		t.Fatalf("Unscale failed: %v", err)
	}
	if !ok {
		t.Fatal("Unscale reported non-finite gradients")
	}
	if got := x.Grad().Data[0]; got != 3 {
		t.Errorf("unscaled grad = %v, want 3", got)
	}
}

func TestGradScalerBacksOffOnNonFinite(t *testing.T) {
	x := scalar(t, 1, true)
	x.grad = mustClone(x)
	x.grad.Data[0] = float32(math.Inf(1))

	gs := NewGradScaler()
	before := gs.Scale()
	ok, err := gs.Unscale([]*Tensor{x})
	if err != nil {
		t.Fatalf("Unscale failed: %v", err)
	}
	if ok {
		t.Error("Unscale accepted a non-finite gradient")
	}
	if got := gs.Scale(); got != before*0.5 {
		t.Errorf("scale after overflow = %v, want %v", got, before*0.5)
	}
}

func TestGradScalerGrowsAfterInterval(t *testing.T) {
	gs := &GradScaler{scale: 2, growth: 2, backoff: 0.5, interval: 3}
	x := scalar(t, 1, true)

	for i := 0; i < 3; i++ {
		x.grad = mustClone(x)
		if ok, err := gs.Unscale([]*Tensor{x}); err != nil || !ok {
			t.Fatalf("Unscale step %d: ok=%v err=%v", i, ok, err)
		}
	}
	if got := gs.Scale(); got != 4 {
		t.Errorf("scale after growth interval = %v, want 4", got)
	}
}
