package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/arlojansen/gpt2train/checkpoint"
	"github.com/arlojansen/gpt2train/model"
	"github.com/arlojansen/gpt2train/rng"
)

func sampleCmd(log *slog.Logger) *cli.Command {
	var (
		checkpointPath string
		length         int
		seed           int64
	)

	return &cli.Command{
		Name:  "sample",
		Usage: "generate tokens from a checkpoint with no training loop",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "checkpoint", Aliases: []string{"c"}, Usage: "path to the .bin checkpoint", Destination: &checkpointPath, Required: true},
			&cli.IntFlag{Name: "length", Usage: "number of tokens to output, including the leading end-of-text token", Value: 64, Destination: &length},
			&cli.Int64Flag{Name: "seed", Usage: "xorshift seed", Value: 1337, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ckpt, err := checkpoint.Load(checkpointPath)
			if err != nil {
				return fmt.Errorf("sample: load checkpoint: %w", err)
			}

			m := model.New(ckpt.Config, ckpt.Params)
			const endOfText = 50256
			state := rng.NewState(uint64(seed))
			tokens := make([]int32, length)
			tokens[0] = endOfText

			m.Preallocate(1, length)
			V := ckpt.Config.V
			for t := 1; t < length; t++ {
				if err := m.Forward(tokens[:t], nil, 1, t); err != nil {
					return fmt.Errorf("sample: forward: %w", err)
				}
				probs := m.APlan.Probs.Slice(m.Acts)
				lastRow := probs[(t-1)*V : t*V]
				coin := state.Float32()
				tokens[t] = int32(rng.SampleMultinomial(lastRow, coin))
			}

			log.Info("generated", "tokens", tokens)
			fmt.Println(tokens)
			return nil
		},
	}
}
