package utils

import (
	"fmt"
	"strconv"
)

const (
	DefaultMaxEpochs   = 100
	DefaultPatience    = 7
	DefaultMinDelta    = 1e-2
	DefaultValFraction = 0.2
)

// Config holds the configuration of a single fine-tuning experiment.
// It is built once per run and never mutated by the trainer.
type Config struct {
	ModelName    string
	DataCategory string
	Seed         int64
	BatchSize    int
	LearningRate float64
	GPU          string

	TrainPath string
	TestPath  string
	// SaveRoot is prepended verbatim to the experiment name; empty disables
	// saving the model and epoch results.
	SaveRoot string

	MaxEpochs   int
	Patience    int
	MinDelta    float64
	ValFraction float64
}

// DefaultConfig returns a Config with the training-loop constants filled in.
func DefaultConfig() Config {
	return Config{
		GPU:         "0",
		MaxEpochs:   DefaultMaxEpochs,
		Patience:    DefaultPatience,
		MinDelta:    DefaultMinDelta,
		ValFraction: DefaultValFraction,
	}
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if config.ModelName == "" {
		return fmt.Errorf("model name must be set")
	}
	if config.TrainPath == "" || config.TestPath == "" {
		return fmt.Errorf("train and test data paths must be set")
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}
	if config.MaxEpochs <= 0 {
		return fmt.Errorf("max epochs must be positive")
	}
	if config.Patience <= 0 {
		return fmt.Errorf("early stopping patience must be positive")
	}
	if config.MinDelta < 0 {
		return fmt.Errorf("min delta must not be negative")
	}
	if config.ValFraction <= 0 || config.ValFraction >= 1 {
		return fmt.Errorf("validation fraction must be in (0, 1)")
	}
	return nil
}

// FormatLearningRate renders a learning rate the way experiment names
// expect it: 0.0001, 1e-05, 1e-06, ...
func FormatLearningRate(lr float64) string {
	return strconv.FormatFloat(lr, 'g', -1, 64)
}

// ExperimentName is <model><category>-<seed>-<lr>-<batch size>.
func (c Config) ExperimentName() string {
	return fmt.Sprintf("%s%s-%d-%s-%d", c.ModelName, c.DataCategory, c.Seed, FormatLearningRate(c.LearningRate), c.BatchSize)
}

// SavePath is where the fine-tuned model and epoch results go, or "" when
// saving is disabled.
func (c Config) SavePath() string {
	if c.SaveRoot == "" {
		return ""
	}
	return c.SaveRoot + c.ExperimentName()
}
