package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/arlojansen/gpt2train/checkpoint"
	"github.com/arlojansen/gpt2train/params"
	"github.com/arlojansen/gpt2train/trainer"
)

func trainCmd(log *slog.Logger) *cli.Command {
	var (
		checkpointPath string
		configPath     string
		trainTokens    string
		valTokens      string
		outDir         string
		steps          int
		valEvery       int
		valBatches     int
		sampleEvery    int
		sampleLen      int
	)

	return &cli.Command{
		Name:  "train",
		Usage: "run a training loop from a checkpoint and a token file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "checkpoint", Aliases: []string{"c"}, Usage: "path to the .bin checkpoint", Destination: &checkpointPath, Required: true},
			&cli.StringFlag{Name: "config", Usage: "path to a YAML training config", Destination: &configPath},
			&cli.StringFlag{Name: "train-tokens", Usage: "path to the training token file", Destination: &trainTokens, Required: true},
			&cli.StringFlag{Name: "val-tokens", Usage: "path to the validation token file", Destination: &valTokens},
			&cli.StringFlag{Name: "out-dir", Usage: "directory for saved checkpoints", Destination: &outDir},
			&cli.IntFlag{Name: "steps", Usage: "override the number of training steps", Destination: &steps},
			&cli.IntFlag{Name: "val-every", Usage: "override validation cadence in steps", Destination: &valEvery},
			&cli.IntFlag{Name: "val-batches", Usage: "override number of validation batches per pass", Destination: &valBatches},
			&cli.IntFlag{Name: "sample-every", Usage: "override sample-generation cadence in steps", Destination: &sampleEvery},
			&cli.IntFlag{Name: "sample-len", Usage: "override number of tokens generated per sample", Destination: &sampleLen},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := params.Default()
			if configPath != "" {
				var err error
				cfg, err = params.Load(configPath)
				if err != nil {
					return err
				}
			}
			cfg.TrainTokens = trainTokens
			if valTokens != "" {
				cfg.ValTokens = valTokens
			}
			if outDir != "" {
				cfg.OutDir = outDir
			}
			if steps > 0 {
				cfg.Steps = steps
			}
			if valEvery > 0 {
				cfg.ValEveryNSteps = valEvery
			}
			if valBatches > 0 {
				cfg.ValBatches = valBatches
			}
			if sampleEvery > 0 {
				cfg.SampleEveryNSteps = sampleEvery
			}
			if sampleLen > 0 {
				cfg.SampleLength = sampleLen
			}

			ckpt, err := checkpoint.Load(checkpointPath)
			if err != nil {
				return fmt.Errorf("train: load checkpoint: %w", err)
			}

			loop, err := trainer.New(ckpt, cfg, log)
			if err != nil {
				return err
			}
			defer loop.Train.Close()
			if loop.Val != nil {
				defer loop.Val.Close()
			}
			return loop.Run()
		},
	}
}
