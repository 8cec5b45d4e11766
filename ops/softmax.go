package ops

import "github.com/chewxy/math32"

// SoftmaxForward computes row-stable softmax over the last axis (length V)
// of logits(B,T,V), writing probs(B,T,V). Parallelized over the outer
// (B,T) pair. The max-subtraction starts from the same -1e4 sentinel used
// by attention; a row whose true max logit is below -1e4 would silently
// start from the wrong baseline, but logits of that magnitude don't occur
// in practice here.
//
// softmax_backward (the non-fused variant) deliberately does not exist:
// the engine only ever differentiates softmax fused with cross-entropy,
// via CrossEntropySoftmaxBackward below.
func SoftmaxForward(probs, logits []float32, B, T, V int) {
	parallelFor(B*T, func(bt int) {
		row := logits[bt*V : bt*V+V]
		out := probs[bt*V : bt*V+V]

		maxval := float32(negInfSentinel)
		for _, v := range row {
			if v > maxval {
				maxval = v
			}
		}
		var sum float32
		for i, v := range row {
			e := math32.Exp(v - maxval)
			out[i] = e
			sum += e
		}
		invSum := float32(0)
		if sum != 0 {
			invSum = 1.0 / sum
		}
		for i := range out {
			out[i] *= invSum
		}
	})
}
