package ops

import "github.com/chewxy/math32"

// CrossEntropyForward computes losses[b,t] = -log(probs[b,t,targets[b,t]])
// for every (b,t).
func CrossEntropyForward(losses, probs []float32, targets []int32, B, T, V int) {
	for bt := 0; bt < B*T; bt++ {
		p := probs[bt*V+int(targets[bt])]
		losses[bt] = -math32.Log(p)
	}
}

// CrossEntropySoftmaxBackward is the mandatory fused softmax+cross-entropy
// backward: it emits dlogits directly from probs and targets, seeded by
// dlosses, without ever materializing a plain softmax Jacobian. dlogits is
// overwritten, not accumulated, because it is always the first gradient
// produced in the backward pass (see model.Backward).
func CrossEntropySoftmaxBackward(dlogits, dlosses, probs []float32, targets []int32, B, T, V int) {
	for bt := 0; bt < B*T; bt++ {
		dloss := dlosses[bt]
		probsRow := probs[bt*V : bt*V+V]
		dlogitsRow := dlogits[bt*V : bt*V+V]
		target := int(targets[bt])
		for i := 0; i < V; i++ {
			indicator := float32(0)
			if i == target {
				indicator = 1
			}
			dlogitsRow[i] = (probsRow[i] - indicator) * dloss
		}
	}
}
