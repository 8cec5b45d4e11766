package model

import "github.com/arlojansen/gpt2train/optim"

// Update applies one AdamW step over the full flat parameter buffer
// using the gradients accumulated by the most recent Backward call. The
// first-moment and second-moment buffers are allocated and zeroed lazily
// on the first Update, and the step counter starts at 1 for bias
// correction.
func (m *Model) Update(o optim.AdamW) error {
	if m.Grads == nil {
		return &StateViolationError{Op: "Update", Reason: "no prior Backward call"}
	}

	if m.adamM == nil {
		m.adamM = make([]float32, m.PPlan.Total)
		m.adamV = make([]float32, m.PPlan.Total)
	}

	m.adamStep++
	o.Step(m.Params, m.Grads, m.adamM, m.adamV, m.adamStep)
	return nil
}
