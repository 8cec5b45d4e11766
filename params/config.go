// Package params holds the training hyperparameters as a single flat
// struct, loadable from YAML or set directly by CLI flags.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrainConfig holds every knob the training loop and optimizer need.
type TrainConfig struct {
	CheckpointPath string `yaml:"checkpoint_path"`
	TrainTokens    string `yaml:"train_tokens"`
	ValTokens      string `yaml:"val_tokens"`

	BatchSize int `yaml:"batch_size"`
	SeqLen    int `yaml:"seq_len"`
	Steps     int `yaml:"steps"`

	LR          float32 `yaml:"lr"`
	Beta1       float32 `yaml:"beta1"`
	Beta2       float32 `yaml:"beta2"`
	Eps         float32 `yaml:"eps"`
	WeightDecay float32 `yaml:"weight_decay"`

	ValEveryNSteps    int `yaml:"val_every_n_steps"`
	ValBatches        int `yaml:"val_batches"`
	SampleEveryNSteps int `yaml:"sample_every_n_steps"`
	SampleLength      int    `yaml:"sample_length"`
	SampleSeed        uint64 `yaml:"sample_seed"`

	SaveEveryNSteps int    `yaml:"save_every_n_steps"`
	OutDir          string `yaml:"out_dir"`
}

// Default returns the reference hyperparameters from the training loop
// this engine was distilled from: lr=1e-4, beta1=0.9, beta2=0.999,
// eps=1e-8, weight decay disabled.
func Default() TrainConfig {
	return TrainConfig{
		BatchSize:         4,
		SeqLen:            64,
		Steps:             40,
		LR:                1e-4,
		Beta1:             0.9,
		Beta2:             0.999,
		Eps:               1e-8,
		WeightDecay:       0,
		ValEveryNSteps:    10,
		ValBatches:        10,
		SampleEveryNSteps: 20,
		SampleLength:      64,
		SampleSeed:        1337,
		OutDir:            ".",
	}
}

// Load reads a YAML config file and overlays it onto Default().
func Load(path string) (TrainConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("params: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("params: parse %s: %w", path, err)
	}
	return cfg, nil
}
