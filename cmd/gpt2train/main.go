package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := &cli.Command{
		Name:  "gpt2train",
		Usage: "train and sample from a GPT-2-family checkpoint",
		Commands: []*cli.Command{
			trainCmd(log),
			sampleCmd(log),
			inspectCmd(log),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
