package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/arlojansen/gpt2train/checkpoint"
	"github.com/arlojansen/gpt2train/layout"
)

func inspectCmd(log *slog.Logger) *cli.Command {
	var (
		checkpointPath string
		tensorName     string
		rows           int
		cols           int
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "print checkpoint hyperparameters and tensor summaries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "checkpoint", Aliases: []string{"c"}, Usage: "path to the .bin checkpoint", Destination: &checkpointPath, Required: true},
			&cli.StringFlag{Name: "tensor", Usage: "name of one parameter tensor to dump as a matrix", Destination: &tensorName},
			&cli.IntFlag{Name: "rows", Usage: "rows to print for --tensor (0 = all)", Destination: &rows},
			&cli.IntFlag{Name: "cols", Usage: "cols to print for --tensor (0 = all)", Destination: &cols},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ckpt, err := checkpoint.Load(checkpointPath)
			if err != nil {
				return fmt.Errorf("inspect: load checkpoint: %w", err)
			}

			fmt.Printf("config: maxT=%d vocab=%d layers=%d heads=%d channels=%d\n",
				ckpt.Config.MaxT, ckpt.Config.V, ckpt.Config.L, ckpt.Config.NH, ckpt.Config.C)

			plan := layout.NewParamPlan(ckpt.Config)
			fmt.Printf("total parameters: %d\n", plan.Total)

			if tensorName == "" {
				printTensorTable(plan)
				return nil
			}

			t, ok := findTensor(plan, tensorName)
			if !ok {
				return fmt.Errorf("inspect: unknown tensor %q", tensorName)
			}
			printTensorMatrix(t, ckpt.Params, rows, cols)
			return nil
		},
	}
}

func findTensor(p layout.ParamPlan, name string) (layout.Tensor, bool) {
	for _, t := range []layout.Tensor{
		p.Wte, p.Wpe, p.Ln1w, p.Ln1b, p.Qkvw, p.Qkvb, p.Attprojw, p.Attprojb,
		p.Ln2w, p.Ln2b, p.Fcw, p.Fcb, p.Fcprojw, p.Fcprojb, p.Lnfw, p.Lnfb,
	} {
		if t.Name == name {
			return t, true
		}
	}
	return layout.Tensor{}, false
}

func printTensorTable(p layout.ParamPlan) {
	for _, t := range []layout.Tensor{
		p.Wte, p.Wpe, p.Ln1w, p.Ln1b, p.Qkvw, p.Qkvb, p.Attprojw, p.Attprojb,
		p.Ln2w, p.Ln2b, p.Fcw, p.Fcb, p.Fcprojw, p.Fcprojb, p.Lnfw, p.Lnfb,
	} {
		fmt.Printf("%-10s offset=%-10d len=%-10d shape=%v\n", t.Name, t.Offset, t.Len, t.Shape)
	}
}

// printTensorMatrix views a tensor as a matrix whose columns are its last
// dimension and whose rows are all leading dimensions flattened together,
// and uses gonum/mat's formatter to print a bounded slice of it.
func printTensorMatrix(t layout.Tensor, params []float32, rows, cols int) {
	shape := t.Shape
	if len(shape) < 1 {
		fmt.Println("(scalar tensor, nothing to display)")
		return
	}
	c := shape[len(shape)-1]
	r := t.Len / c

	wide := make([]float64, t.Len)
	for i, v := range t.Slice(params) {
		wide[i] = float64(v)
	}
	m := mat.NewDense(r, c, wide)

	if rows <= 0 || rows > r {
		rows = r
	}
	if cols <= 0 || cols > c {
		cols = c
	}
	view := m.Slice(0, rows, 0, cols)
	fmt.Printf("%v\n", mat.Formatted(view, mat.Prefix(""), mat.Squeeze()))
}
