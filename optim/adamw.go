// Package optim implements the decoupled-weight-decay Adam optimizer as a
// single pass over the flat parameter vector, updating every one of the
// model's parameter tensors at once from their mirrored gradient,
// first-moment and second-moment buffers.
package optim

import "github.com/chewxy/math32"

// AdamW holds the hyperparameters for one optimizer instance. Moments are
// owned by the caller (model.Model) and lazily zero-initialized there on
// first Step.
type AdamW struct {
	LR          float32
	Beta1       float32
	Beta2       float32
	Eps         float32
	WeightDecay float32
}

// Step advances params in place using grads, the running first/second
// moment buffers m and v, and step index t (1-indexed, for bias
// correction). params, grads, m and v must all have the same length.
func (o AdamW) Step(params, grads, m, v []float32, t int) {
	beta1Correction := 1.0 - math32.Pow(o.Beta1, float32(t))
	beta2Correction := 1.0 - math32.Pow(o.Beta2, float32(t))

	for i, g := range grads {
		mi := o.Beta1*m[i] + (1.0-o.Beta1)*g
		vi := o.Beta2*v[i] + (1.0-o.Beta2)*g*g
		m[i] = mi
		v[i] = vi

		mHat := mi / beta1Correction
		vHat := vi / beta2Correction

		params[i] -= o.LR * (mHat/(math32.Sqrt(vHat)+o.Eps) + o.WeightDecay*params[i])
	}
}
