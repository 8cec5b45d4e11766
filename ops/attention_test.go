package ops

import "testing"

func TestAttentionForwardCausalMask(t *testing.T) {
	const B, T, C, NH = 1, 3, 2, 1
	qkv := []float32{
		1, 0, 0, 1, 0, 1, // t=0: q,k,v
		0, 1, 1, 0, 1, 0, // t=1
		1, 1, 1, 1, 1, 1, // t=2
	}
	out := make([]float32, B*T*C)
	preatt := make([]float32, B*NH*T*T)
	att := make([]float32, B*NH*T*T)
	AttentionForward(out, preatt, att, qkv, B, T, C, NH)

	// Row 0 may only attend to position 0.
	if att[0] != 1 {
		t.Errorf("t=0 row should have att[0]=1, got %v", att[0])
	}
	for t2 := 1; t2 < T; t2++ {
		if att[t2] != 0 {
			t.Errorf("t=0 row must not attend to future position %d, got %v", t2, att[t2])
		}
	}
}

func TestAttentionBackwardFiniteDiffOnQKV(t *testing.T) {
	const B, T, C, NH = 1, 2, 2, 1
	qkv := []float32{0.2, -0.1, 0.3, 0.4, -0.5, 0.1, 0.1, 0.2, -0.3, 0.4, 0.2, -0.2}
	dout := []float32{1, 0.5, -0.3, 0.2}

	forwardLoss := func(x []float32) float32 {
		out := make([]float32, B*T*C)
		preatt := make([]float32, B*NH*T*T)
		att := make([]float32, B*NH*T*T)
		AttentionForward(out, preatt, att, x, B, T, C, NH)
		var loss float32
		for i, o := range out {
			loss += o * dout[i]
		}
		return loss
	}

	out := make([]float32, B*T*C)
	preatt := make([]float32, B*NH*T*T)
	att := make([]float32, B*NH*T*T)
	AttentionForward(out, preatt, att, qkv, B, T, C, NH)

	dqkv := make([]float32, len(qkv))
	datt := make([]float32, B*NH*T*T)
	dpreatt := make([]float32, B*NH*T*T)
	AttentionBackward(dqkv, datt, dpreatt, dout, qkv, att, B, T, C, NH)

	eps := float32(1e-3)
	for i := range qkv {
		x := make([]float32, len(qkv))
		copy(x, qkv)
		x[i] += eps
		lp := forwardLoss(x)
		x[i] -= 2 * eps
		lm := forwardLoss(x)

		numGrad := (lp - lm) / (2 * eps)
		if diff := numGrad - dqkv[i]; diff > 1e-2 || diff < -1e-2 {
			t.Errorf("dqkv[%d]: numeric=%v analytic=%v", i, numGrad, dqkv[i])
		}
	}
}
