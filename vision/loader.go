package vision

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Batch holds one mini-batch of stacked samples. Target is nil when the
// underlying dataset has no target images.
type Batch struct {
	Source    *tensor.Tensor // [B,C,H,W]
	Target    *tensor.Tensor // [B,C,H,W] or nil
	Condition *tensor.Tensor // [B,K]
	Filenames []string
}

// Loader iterates a dataset in mini-batches. With shuffling disabled the
// visit order equals the dataset order on every pass.
type Loader struct {
	dataset   *PairedDataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	mu      sync.Mutex
	indices []int
	cursor  int
}

func NewLoader(dataset *PairedDataset, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if dataset == nil {
		return nil, fmt.Errorf("loader: dataset cannot be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("loader: shuffling requires a random source")
	}
	l := &Loader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		indices:   make([]int, dataset.Len()),
	}
	for i := range l.indices {
		l.indices[i] = i
	}
	l.resetLocked()
	return l, nil
}

// Len returns the number of batches per pass. A short final batch counts.
func (l *Loader) Len() int {
	n := l.dataset.Len()
	return (n + l.batchSize - 1) / l.batchSize
}

// NumSamples returns the number of samples in the underlying dataset.
func (l *Loader) NumSamples() int {
	return l.dataset.Len()
}

// Reset rewinds the loader and reshuffles if shuffling is enabled.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

func (l *Loader) resetLocked() {
	l.cursor = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// Next returns the next batch, or (nil, nil) when the pass is exhausted.
func (l *Loader) Next() (*Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.indices) {
		return nil, nil
	}
	end := l.cursor + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	idx := l.indices[l.cursor:end]
	l.cursor = end

	samples := make([]Sample, len(idx))
	for i, j := range idx {
		s, err := l.dataset.Get(j)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return stackBatch(samples)
}

func stackBatch(samples []Sample) (*Batch, error) {
	src, err := stackTensors(samples, func(s Sample) *tensor.Tensor { return s.Source })
	if err != nil {
		return nil, fmt.Errorf("failed to stack source images: %w", err)
	}
	cond, err := stackTensors(samples, func(s Sample) *tensor.Tensor { return s.Condition })
	if err != nil {
		return nil, fmt.Errorf("failed to stack conditions: %w", err)
	}
	batch := &Batch{Source: src, Condition: cond, Filenames: make([]string, len(samples))}
	for i, s := range samples {
		batch.Filenames[i] = s.SourceFilename
	}
	if samples[0].Target != nil {
		dst, err := stackTensors(samples, func(s Sample) *tensor.Tensor { return s.Target })
		if err != nil {
			return nil, fmt.Errorf("failed to stack target images: %w", err)
		}
		batch.Target = dst
	}
	return batch, nil
}

func stackTensors(samples []Sample, pick func(Sample) *tensor.Tensor) (*tensor.Tensor, error) {
	first := pick(samples[0])
	if first == nil {
		return nil, fmt.Errorf("missing tensor in sample 0")
	}
	data := make([]float32, 0, first.NumElems*len(samples))
	for i, s := range samples {
		t := pick(s)
		if t == nil {
			return nil, fmt.Errorf("missing tensor in sample %d", i)
		}
		if t.NumElems != first.NumElems {
			return nil, fmt.Errorf("sample %d shape mismatch: %v vs %v", i, t.Shape, first.Shape)
		}
		data = append(data, t.Data...)
	}
	shape := append([]int{len(samples)}, first.Shape...)
	return tensor.NewTensor(shape, first.DType, first.Device, data)
}
