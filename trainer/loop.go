// Package trainer drives the training loop: a checkpointed model, a
// training and validation token loader, the AdamW optimizer, and
// periodic validation/sampling/checkpointing.
package trainer

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/arlojansen/gpt2train/checkpoint"
	"github.com/arlojansen/gpt2train/data"
	"github.com/arlojansen/gpt2train/model"
	"github.com/arlojansen/gpt2train/optim"
	"github.com/arlojansen/gpt2train/params"
	"github.com/arlojansen/gpt2train/rng"
	"github.com/google/uuid"
)

// Loop owns everything one training run needs: the model, its
// optimizer, the train/val loaders, and a rolling window of recent
// losses used for the smoothed-loss diagnostic.
type Loop struct {
	Cfg   params.TrainConfig
	Model *model.Model
	Optim optim.AdamW

	Train *data.Loader
	Val   *data.Loader

	RunID      string
	lossWindow []float64
	log        *slog.Logger
}

// New builds a Loop from a loaded checkpoint and training config. It
// assigns a fresh run id (used to namespace checkpoint filenames) via
// uuid, mirroring how production training scripts tag each run.
func New(ckpt *checkpoint.Checkpoint, cfg params.TrainConfig, log *slog.Logger) (*Loop, error) {
	train, err := data.Open(cfg.TrainTokens, cfg.BatchSize, cfg.SeqLen)
	if err != nil {
		return nil, fmt.Errorf("trainer: open train tokens: %w", err)
	}
	var val *data.Loader
	if cfg.ValTokens != "" {
		val, err = data.Open(cfg.ValTokens, cfg.BatchSize, cfg.SeqLen)
		if err != nil {
			return nil, fmt.Errorf("trainer: open val tokens: %w", err)
		}
	}

	return &Loop{
		Cfg:   cfg,
		Model: model.New(ckpt.Config, ckpt.Params),
		Optim: optim.AdamW{LR: cfg.LR, Beta1: cfg.Beta1, Beta2: cfg.Beta2, Eps: cfg.Eps, WeightDecay: cfg.WeightDecay},
		Train: train,
		Val:   val,
		RunID: uuid.NewString(),
		log:   log,
	}, nil
}

// Run executes Cfg.Steps training steps, interleaving validation passes,
// sample generation, and checkpoint saves at the configured cadence.
func (l *Loop) Run() error {
	l.log.Info("starting training run", "run_id", l.RunID, "steps", l.Cfg.Steps)

	for step := 0; step < l.Cfg.Steps; step++ {
		if l.Val != nil && l.Cfg.ValEveryNSteps > 0 && step%l.Cfg.ValEveryNSteps == 0 {
			valLoss, err := l.validate()
			if err != nil {
				return fmt.Errorf("trainer: validate at step %d: %w", step, err)
			}
			l.log.Info("validation", "step", step, "val_loss", valLoss)
		}

		if l.Cfg.SampleEveryNSteps > 0 && step > 0 && step%l.Cfg.SampleEveryNSteps == 0 {
			tokens := l.Sample(l.Cfg.SampleLength, l.Cfg.SampleSeed+uint64(step))
			l.log.Info("sample", "step", step, "tokens", tokens)
		}

		stepStart := time.Now()

		inputs, targets, err := l.Train.NextBatch()
		if err != nil {
			return fmt.Errorf("trainer: next batch at step %d: %w", step, err)
		}
		if err := l.Model.Forward(inputs, targets, l.Cfg.BatchSize, l.Cfg.SeqLen); err != nil {
			return fmt.Errorf("trainer: forward at step %d: %w", step, err)
		}
		l.Model.ZeroGrad()
		if err := l.Model.Backward(); err != nil {
			return fmt.Errorf("trainer: backward at step %d: %w", step, err)
		}
		if err := l.Model.Update(l.Optim); err != nil {
			return fmt.Errorf("trainer: update at step %d: %w", step, err)
		}

		smoothed := l.pushLoss(float64(l.Model.MeanLoss))
		stepMS := float64(time.Since(stepStart)) / float64(time.Millisecond)
		l.log.Info("train step", "step", step, "loss", l.Model.MeanLoss, "smoothed_loss", smoothed, "step_ms", stepMS)

		if l.Cfg.SaveEveryNSteps > 0 && step > 0 && step%l.Cfg.SaveEveryNSteps == 0 {
			if err := l.save(step); err != nil {
				return fmt.Errorf("trainer: save at step %d: %w", step, err)
			}
		}
	}
	return l.save(l.Cfg.Steps)
}

// validate runs ValBatches forward-only passes over the validation
// loader from its start and returns the mean loss across them.
func (l *Loop) validate() (float64, error) {
	l.Val.Reset()
	var sum float64
	for i := 0; i < l.Cfg.ValBatches; i++ {
		inputs, targets, err := l.Val.NextBatch()
		if err != nil {
			return 0, err
		}
		if err := l.Model.Forward(inputs, targets, l.Cfg.BatchSize, l.Cfg.SeqLen); err != nil {
			return 0, err
		}
		sum += float64(l.Model.MeanLoss)
	}
	return sum / float64(l.Cfg.ValBatches), nil
}

// Sample autoregressively generates n token ids starting from the
// end-of-text token, seeded by seed, matching the reference engine's
// sanity-check generation (inference recomputes activations from
// scratch at every step; no KV cache).
func (l *Loop) Sample(n int, seed uint64) []int32 {
	const endOfText = 50256
	state := rng.NewState(seed)
	tokens := make([]int32, n)
	tokens[0] = endOfText

	l.Model.Preallocate(1, n)
	V := l.Model.Cfg.V
	for t := 1; t < n; t++ {
		if err := l.Model.Forward(tokens[:t], nil, 1, t); err != nil {
			break
		}
		probs := l.Model.APlan.Probs.Slice(l.Model.Acts)
		lastRow := probs[(t-1)*V : t*V]
		coin := state.Float32()
		tokens[t] = int32(rng.SampleMultinomial(lastRow, coin))
	}
	return tokens
}

// save writes a checkpoint tagged with the run id and step number.
func (l *Loop) save(step int) error {
	path := fmt.Sprintf("%s/%s-step%06d.bin", l.Cfg.OutDir, l.RunID, step)
	ckpt := &checkpoint.Checkpoint{Config: l.Model.Cfg, Params: l.Model.Params}
	if err := ckpt.Save(path); err != nil {
		return err
	}
	l.log.Info("checkpoint saved", "path", path)
	return nil
}

// pushLoss appends loss to a bounded rolling window and returns the
// window's mean via gonum/stat, giving the training log a less noisy
// trend line than the raw per-step loss.
func (l *Loop) pushLoss(loss float64) float64 {
	const windowSize = 20
	l.lossWindow = append(l.lossWindow, loss)
	if len(l.lossWindow) > windowSize {
		l.lossWindow = l.lossWindow[len(l.lossWindow)-windowSize:]
	}
	return stat.Mean(l.lossWindow, nil)
}
