package training

import "fmt"

// Config holds the knobs for a full training run.
type Config struct {
	// TotalEpochs is the number of training epochs.
	TotalEpochs int

	// WarmupEpochs is the number of leading epochs during which learning
	// rate schedules are held still. Schedulers only advance once the
	// current epoch exceeds this value.
	WarmupEpochs int

	// LogFreq is the batch interval for scalar logging. The final batch
	// of every epoch is always logged.
	LogFreq int

	// DisplayFreq is the batch interval for image grid logging.
	DisplayFreq int

	// LambdaVGG scales the perceptual term of the generator loss.
	LambdaVGG float64

	// LambdaL1 scales the pixel reconstruction term of the generator loss.
	LambdaL1 float64

	// OutputDir receives generated images when persistence is requested.
	OutputDir string
}

func DefaultConfig() Config {
	return Config{
		TotalEpochs:  200,
		WarmupEpochs: 100,
		LogFreq:      100,
		DisplayFreq:  500,
		LambdaVGG:    10.0,
		LambdaL1:     100.0,
		OutputDir:    "output",
	}
}

func (c Config) Validate() error {
	if c.TotalEpochs <= 0 {
		return fmt.Errorf("total epochs must be positive, got %d", c.TotalEpochs)
	}
	if c.WarmupEpochs < 0 {
		return fmt.Errorf("warmup epochs cannot be negative, got %d", c.WarmupEpochs)
	}
	if c.LogFreq <= 0 {
		return fmt.Errorf("log frequency must be positive, got %d", c.LogFreq)
	}
	if c.DisplayFreq <= 0 {
		return fmt.Errorf("display frequency must be positive, got %d", c.DisplayFreq)
	}
	if c.LambdaVGG < 0 {
		return fmt.Errorf("lambda VGG cannot be negative, got %f", c.LambdaVGG)
	}
	if c.LambdaL1 < 0 {
		return fmt.Errorf("lambda L1 cannot be negative, got %f", c.LambdaL1)
	}
	return nil
}
