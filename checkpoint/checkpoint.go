// Package checkpoint reads and writes the fixed binary checkpoint format:
// a 256 int32 header (magic, version, hyperparameters, reserved padding)
// followed by a flat dump of every parameter tensor in ParamPlan's fixed
// order, each stored as 32-bit floats in its natural row-major
// flattening.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/arlojansen/gpt2train/layout"
)

const (
	magic       = 20240326
	version     = 1
	headerInts  = 256
	headerBytes = headerInts * 4
)

// Checkpoint holds the hyperparameters and the flat parameter buffer
// loaded from (or to be written to) a checkpoint file.
type Checkpoint struct {
	Config layout.Config
	Params []float32
}

// Load reads and validates a checkpoint file, returning its config and
// flat parameter buffer in the order ParamPlan expects.
func Load(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InvalidError{Path: path, Reason: "cannot open", Err: err}
	}
	defer f.Close()

	hdr := make([]int32, headerInts)
	if err := binary.Read(f, binary.LittleEndian, hdr); err != nil {
		return nil, &InvalidError{Path: path, Reason: "cannot read header", Err: err}
	}
	if hdr[0] != magic {
		return nil, &InvalidError{Path: path, Reason: fmt.Sprintf("bad magic %d, want %d", hdr[0], magic)}
	}
	if hdr[1] != version {
		return nil, &InvalidError{Path: path, Reason: fmt.Sprintf("bad version %d, want %d", hdr[1], version)}
	}

	cfg := layout.Config{
		MaxT: int(hdr[2]),
		V:    int(hdr[3]),
		L:    int(hdr[4]),
		NH:   int(hdr[5]),
		C:    int(hdr[6]),
	}
	if cfg.NH == 0 || cfg.C%cfg.NH != 0 {
		return nil, &InvalidError{Path: path, Reason: fmt.Sprintf("C=%d not divisible by NH=%d", cfg.C, cfg.NH)}
	}

	plan := layout.NewParamPlan(cfg)
	params := make([]float32, plan.Total)
	if err := binary.Read(f, binary.LittleEndian, params); err != nil {
		return nil, &InvalidError{Path: path, Reason: "cannot read parameters", Err: err}
	}

	return &Checkpoint{Config: cfg, Params: params}, nil
}

// Save writes the checkpoint back out in the exact on-disk format Load
// expects, byte-for-byte reproducible from the same Config and Params
// (testable property 7).
func (c *Checkpoint) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &InvalidError{Path: path, Reason: "cannot create", Err: err}
	}
	defer f.Close()
	return c.WriteTo(f)
}

// WriteTo writes the header and parameter payload to w.
func (c *Checkpoint) WriteTo(w io.Writer) error {
	hdr := make([]int32, headerInts)
	hdr[0] = magic
	hdr[1] = version
	hdr[2] = int32(c.Config.MaxT)
	hdr[3] = int32(c.Config.V)
	hdr[4] = int32(c.Config.L)
	hdr[5] = int32(c.Config.NH)
	hdr[6] = int32(c.Config.C)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("checkpoint: write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, c.Params); err != nil {
		return fmt.Errorf("checkpoint: write parameters: %w", err)
	}
	return nil
}
