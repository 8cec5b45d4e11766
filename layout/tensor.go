// Package layout computes the size and base offset of every named tensor
// that the model needs, for both the parameter buffer and the activation
// buffer. Each table hands out a Tensor descriptor — an offset and length
// into one owning flat allocation — rather than a raw pointer, so callers
// slice views out of a single []float32 instead of holding separate
// allocations per tensor.
package layout

// Tensor is a {offset, length, shape} view into an owning flat buffer.
// Slice extracts the view. A Tensor carries no accumulate-or-overwrite
// flag; that contract is stated on each kernel in package ops, and
// nothing here enforces it.
type Tensor struct {
	Name   string
	Offset int
	Len    int
	Shape  []int
}

// Slice returns the view of buf described by t.
func (t Tensor) Slice(buf []float32) []float32 {
	return buf[t.Offset : t.Offset+t.Len]
}

// Config holds the checkpoint-derived hyperparameters both plans are
// computed from.
type Config struct {
	MaxT int
	V    int
	L    int
	NH   int
	C    int
}

// HeadSize returns C/NH; callers should have already validated C%NH==0.
func (c Config) HeadSize() int { return c.C / c.NH }
