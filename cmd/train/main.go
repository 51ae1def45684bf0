package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/sslstudent/3dprint-image-translation/checkpoints"
	"github.com/sslstudent/3dprint-image-translation/nn"
	"github.com/sslstudent/3dprint-image-translation/optimizer"
	"github.com/sslstudent/3dprint-image-translation/tblog"
	"github.com/sslstudent/3dprint-image-translation/tensor"
	"github.com/sslstudent/3dprint-image-translation/training"
	"github.com/sslstudent/3dprint-image-translation/vision"
)

func main() {
	var (
		trainSrc   = flag.String("train-src", "data/train/src", "directory of training source images")
		trainDst   = flag.String("train-dst", "data/train/dst", "directory of training target images")
		trainCond  = flag.String("train-cond", "data/train/conditions.csv", "training condition file")
		valSrc     = flag.String("val-src", "data/val/src", "directory of validation source images")
		valDst     = flag.String("val-dst", "data/val/dst", "directory of validation target images")
		valCond    = flag.String("val-cond", "data/val/conditions.csv", "validation condition file")
		outputDir  = flag.String("output", "output", "directory for generated images and checkpoints")
		epochs     = flag.Int("epochs", 200, "total training epochs")
		warmup     = flag.Int("warmup", 100, "epochs before learning rate decay starts")
		batchSize  = flag.Int("batch-size", 4, "mini-batch size")
		lr         = flag.Float64("lr", 2e-4, "initial learning rate for both optimizers")
		lambdaVGG  = flag.Float64("lambda-vgg", 10.0, "perceptual loss weight")
		lambdaL1   = flag.Float64("lambda-l1", 100.0, "pixel loss weight")
		logFreq    = flag.Int("log-freq", 100, "batch interval for scalar logging")
		dispFreq   = flag.Int("display-freq", 500, "batch interval for image grid logging")
		evalFreq   = flag.Int("eval-freq", 5, "epoch interval for validation")
		sidecarURL = flag.String("sidecar", "", "plotting sidecar base URL (empty disables)")
		seed       = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()

	cfg := training.Config{
		TotalEpochs:  *epochs,
		WarmupEpochs: *warmup,
		LogFreq:      *logFreq,
		DisplayFreq:  *dispFreq,
		LambdaVGG:    *lambdaVGG,
		LambdaL1:     *lambdaL1,
		OutputDir:    *outputDir,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := run(cfg, *trainSrc, *trainDst, *trainCond, *valSrc, *valDst, *valCond,
		*batchSize, *lr, *evalFreq, *sidecarURL, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(cfg training.Config, trainSrc, trainDst, trainCond, valSrc, valDst, valCond string,
	batchSize int, lr float64, evalFreq int, sidecarURL string, seed int64) error {

	if evalFreq < 1 {
		return fmt.Errorf("eval-freq must be at least 1, got %d", evalFreq)
	}

	rng := rand.New(rand.NewSource(seed))
	device := tensor.CPU

	trainSet, err := vision.LoadPairedDirs(trainSrc, trainDst, trainCond, device)
	if err != nil {
		return fmt.Errorf("failed to load training data: %w", err)
	}
	valSet, err := vision.LoadPairedDirs(valSrc, valDst, valCond, device)
	if err != nil {
		return fmt.Errorf("failed to load validation data: %w", err)
	}
	trainLoader, err := vision.NewLoader(trainSet, batchSize, true, rng)
	if err != nil {
		return err
	}
	valLoader, err := vision.NewLoader(valSet, batchSize, false, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d training and %d validation samples\n", trainSet.Len(), valSet.Len())

	genCfg := nn.DefaultDenseGeneratorConfig()
	g, err := nn.NewDenseGenerator(genCfg, rng, device)
	if err != nil {
		return fmt.Errorf("failed to build generator: %w", err)
	}
	discCfg := nn.DefaultDenseDiscriminatorConfig()
	d, err := nn.NewDenseDiscriminator(discCfg, rng, device)
	if err != nil {
		return fmt.Errorf("failed to build discriminator: %w", err)
	}

	adamCfg := optimizer.DefaultAdamConfig()
	adamCfg.LearningRate = lr
	optG, err := optimizer.NewAdam(g.Parameters(), adamCfg)
	if err != nil {
		return fmt.Errorf("failed to build generator optimizer: %w", err)
	}
	optD, err := optimizer.NewAdam(d.Parameters(), adamCfg)
	if err != nil {
		return fmt.Errorf("failed to build discriminator optimizer: %w", err)
	}

	decaySteps := cfg.TotalEpochs - cfg.WarmupEpochs
	if decaySteps < 1 {
		decaySteps = 1
	}
	schedG, err := training.NewLinearDecay(optG, decaySteps)
	if err != nil {
		return err
	}
	schedD, err := training.NewLinearDecay(optD, decaySteps)
	if err != nil {
		return err
	}

	trainer, err := training.NewGANTrainer(g, d, optG, optD, cfg)
	if err != nil {
		return err
	}

	var sink tblog.Sink
	if sidecarURL != "" {
		scCfg := tblog.DefaultSidecarConfig()
		scCfg.BaseURL = sidecarURL
		sink = tblog.NewSidecarSink(scCfg)
	} else {
		sink = tblog.NewCollector()
	}

	runID := checkpoints.NewRunID()
	fmt.Printf("Starting run %s\n", runID)

	batches := trainLoader.Len()
	bestCRI := math.Inf(1)
	for epoch := 1; epoch <= cfg.TotalEpochs; epoch++ {
		if err := trainer.TrainOneEpoch(trainLoader, epoch, cfg, sink, schedG, schedD); err != nil {
			return fmt.Errorf("epoch %d failed: %w", epoch, err)
		}
		if epoch%evalFreq != 0 && epoch != cfg.TotalEpochs {
			continue
		}
		result, err := trainer.Evaluate(valLoader, epoch, cfg, sink)
		if err != nil {
			return fmt.Errorf("validation at epoch %d failed: %w", epoch, err)
		}
		if result.MeanCRIError < bestCRI {
			bestCRI = result.MeanCRIError
			ckpt, err := checkpoints.Capture(g, d,
				checkpoints.CaptureOptimizer(optG, "Adam"),
				checkpoints.CaptureOptimizer(optD, "Adam"),
				checkpoints.TrainingState{
					Epoch:         epoch,
					Step:          epoch * batches,
					BestPixelLoss: result.MeanPixelLoss,
					BestCRIError:  result.MeanCRIError,
				}, runID)
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.OutputDir, "best.json")
			if err := ckpt.Save(path); err != nil {
				return fmt.Errorf("failed to save checkpoint: %w", err)
			}
			fmt.Printf("Saved best checkpoint to %s (CRI %.4f)\n", path, bestCRI)
		}
	}

	if _, err := trainer.Generate(valLoader, cfg.TotalEpochs, cfg, sink, true); err != nil {
		return fmt.Errorf("final generation failed: %w", err)
	}
	fmt.Printf("Generated images written to %s\n", cfg.OutputDir)
	return nil
}
