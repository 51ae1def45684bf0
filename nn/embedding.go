package nn

import (
	"fmt"
	"math/rand"

	"github.com/sslstudent/3dprint-image-translation/tensor"
)

// Embedding maps integer condition classes to learned dense vectors.
type Embedding struct {
	// Embeddings is the [numClasses, dim] lookup table.
	Embeddings *tensor.Tensor
}

func NewEmbedding(numClasses, dim int, rng *rand.Rand, device tensor.DeviceType) (*Embedding, error) {
	if numClasses <= 0 || dim <= 0 {
		return nil, fmt.Errorf("embedding: size must be positive, got %dx%d", numClasses, dim)
	}
	table, err := tensor.RandNormal([]int{numClasses, dim}, 0.02, rng, device)
	if err != nil {
		return nil, fmt.Errorf("embedding: init failed: %v", err)
	}
	table.SetRequiresGrad(true)
	return &Embedding{Embeddings: table}, nil
}

// Forward looks up one embedding row per sample. The condition tensor holds
// one class id per sample in its leading dimension.
func (e *Embedding) Forward(cond *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.GatherRows(e.Embeddings, ConditionIndices(cond))
}

func (e *Embedding) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{e.Embeddings}
}

// ConditionIndices reads a condition tensor as per-sample class ids.
func ConditionIndices(cond *tensor.Tensor) []int {
	batch := cond.Shape[0]
	perSample := cond.NumElems / batch
	indices := make([]int, batch)
	for i := range indices {
		// The class id is the first component of each sample's condition.
		indices[i] = int(cond.Data[i*perSample] + 0.5)
	}
	return indices
}
