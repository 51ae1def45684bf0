package training

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/sslstudent/3dprint-image-translation/nn"
	"github.com/sslstudent/3dprint-image-translation/optimizer"
	"github.com/sslstudent/3dprint-image-translation/tensor"
	"github.com/sslstudent/3dprint-image-translation/vision"
)

const (
	testChannels = 1
	testHeight   = 4
	testWidth    = 4
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TotalEpochs = 4
	cfg.WarmupEpochs = 2
	cfg.LogFreq = 1
	cfg.DisplayFreq = 1
	return cfg
}

func testNetworks(t *testing.T) (*nn.DenseGenerator, *nn.DenseDiscriminator) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	g, err := nn.NewDenseGenerator(nn.DenseGeneratorConfig{
		Channels:     testChannels,
		Height:       testHeight,
		Width:        testWidth,
		NumClasses:   3,
		EmbeddingDim: 2,
		HiddenDim:    8,
	}, rng, tensor.CPU)
	if err != nil {
		t.Fatalf("NewDenseGenerator failed: %v", err)
	}
	d, err := nn.NewDenseDiscriminator(nn.DenseDiscriminatorConfig{
		Channels:     testChannels,
		Height:       testHeight,
		Width:        testWidth,
		EmbeddingDim: 2,
		HiddenDim:    8,
	}, rng, tensor.CPU)
	if err != nil {
		t.Fatalf("NewDenseDiscriminator failed: %v", err)
	}
	return g, d
}

func testTrainer(t *testing.T, g nn.Generator, d nn.Discriminator) *GANTrainer {
	t.Helper()
	optG, err := optimizer.NewAdam(g.Parameters(), optimizer.DefaultAdamConfig())
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	optD, err := optimizer.NewAdam(d.Parameters(), optimizer.DefaultAdamConfig())
	if err != nil {
		t.Fatalf("NewAdam failed: %v", err)
	}
	trainer, err := NewGANTrainer(g, d, optG, optD, testConfig())
	if err != nil {
		t.Fatalf("NewGANTrainer failed: %v", err)
	}
	trainer.Out = &bytes.Buffer{}
	return trainer
}

func testLoader(t *testing.T, n, batchSize int) *vision.Loader {
	t.Helper()
	samples := make([]vision.Sample, n)
	rng := rand.New(rand.NewSource(2))
	for i := range samples {
		src, err := tensor.RandNormal([]int{testChannels, testHeight, testWidth}, 0.3, rng, tensor.CPU)
		if err != nil {
			t.Fatalf("RandNormal failed: %v", err)
		}
		dst, err := tensor.RandNormal([]int{testChannels, testHeight, testWidth}, 0.3, rng, tensor.CPU)
		if err != nil {
			t.Fatalf("RandNormal failed: %v", err)
		}
		cond, err := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{float32(i % 3)})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}
		samples[i] = vision.Sample{
			Source:         src,
			Target:         dst,
			Condition:      cond,
			SourceFilename: fmt.Sprintf("sample_%02d.png", i),
		}
	}
	ds, err := vision.NewPairedDataset(samples)
	if err != nil {
		t.Fatalf("NewPairedDataset failed: %v", err)
	}
	loader, err := vision.NewLoader(ds, batchSize, false, nil)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return loader
}

func testBatch(t *testing.T, batchSize int) (src, dst, cond *tensor.Tensor) {
	t.Helper()
	loader := testLoader(t, batchSize, batchSize)
	batch, err := loader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	return batch.Source, batch.Target, batch.Condition
}
