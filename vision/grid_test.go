package vision

import (
	"testing"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

func TestMakeGridShape(t *testing.T) {
	tests := []struct {
		name  string
		batch int
		nrow  int
		wantH int
		wantW int
	}{
		{"exact fit", 4, 2, 2 * 3, 2 * 3},
		{"partial last row", 3, 2, 2 * 3, 2 * 3},
		{"single column", 2, 1, 2 * 3, 1 * 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images, err := tensor.Zeros([]int{tt.batch, 1, 3, 3}, tensor.Float32, tensor.CPU)
			if err != nil {
				t.Fatalf("Zeros failed: %v", err)
			}
			grid, err := MakeGrid(images, tt.nrow)
			if err != nil {
				t.Fatalf("MakeGrid failed: %v", err)
			}
			want := []int{1, tt.wantH, tt.wantW}
			if !tensor.ShapesEqual(grid.Shape, want) {
				t.Errorf("grid shape = %v, want %v", grid.Shape, want)
			}
		})
	}
}

func TestMakeGridRenormalizes(t *testing.T) {
	// Constant -1 image must map to 0, constant +1 to 1.
	data := make([]float32, 2*1*2*2)
	for i := 0; i < 4; i++ {
		data[i] = -1
		data[4+i] = 1
	}
	images, err := tensor.NewTensor([]int{2, 1, 2, 2}, tensor.Float32, tensor.CPU, data)
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}
	grid, err := MakeGrid(images, 2)
	if err != nil {
		t.Fatalf("MakeGrid failed: %v", err)
	}
	// First sample occupies the left 2x2 cell, second the right.
	if got := grid.Data[0]; got != 0 {
		t.Errorf("renormalized -1 = %v, want 0", got)
	}
	if got := grid.Data[2]; got != 1 {
		t.Errorf("renormalized +1 = %v, want 1", got)
	}
}

func TestMakeGridPlacesSamplesRowMajor(t *testing.T) {
	// Sample i is a constant image of value (i+1)/10 before renormalization.
	b, h, w := 3, 2, 2
	data := make([]float32, b*h*w)
	for i := 0; i < b; i++ {
		for j := 0; j < h*w; j++ {
			data[i*h*w+j] = float32(i+1) / 10
		}
	}
	images, err := tensor.NewTensor([]int{b, 1, h, w}, tensor.Float32, tensor.CPU, data)
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}
	grid, err := MakeGrid(images, 2)
	if err != nil {
		t.Fatalf("MakeGrid failed: %v", err)
	}

	gridW := 2 * w
	readCell := func(row, col int) float32 {
		return grid.Data[row*h*gridW+col*w]
	}
	renorm := func(v float32) float32 { return (v + 1) * 0.5 }

	if got := readCell(0, 0); got != renorm(0.1) {
		t.Errorf("cell (0,0) = %v, want sample 0", got)
	}
	if got := readCell(0, 1); got != renorm(0.2) {
		t.Errorf("cell (0,1) = %v, want sample 1", got)
	}
	if got := readCell(1, 0); got != renorm(0.3) {
		t.Errorf("cell (1,0) = %v, want sample 2", got)
	}
	if got := readCell(1, 1); got != 0 {
		t.Errorf("unused cell (1,1) = %v, want 0", got)
	}
}

func TestMakeGridRejectsBadInput(t *testing.T) {
	flat, err := tensor.Zeros([]int{4, 4}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	if _, err := MakeGrid(flat, 2); err == nil {
		t.Error("expected error for non-4D input")
	}
	images, err := tensor.Zeros([]int{1, 1, 2, 2}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	if _, err := MakeGrid(images, 0); err == nil {
		t.Error("expected error for nrow 0")
	}
}
