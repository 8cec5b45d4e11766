package ops

import "testing"

func TestMatmulForwardBackwardShapes(t *testing.T) {
	const B, T, C, OC = 1, 3, 2, 5
	inp := []float32{1, 2, -1, 3, 0.5, -0.5}
	weight := make([]float32, OC*C)
	for i := range weight {
		weight[i] = float32(i) * 0.1
	}
	bias := []float32{0.1, 0.2, 0.3, 0.4, 0.5}

	out := make([]float32, B*T*OC)
	MatmulForward(out, inp, weight, bias, B, T, C, OC)

	dout := make([]float32, B*T*OC)
	for i := range dout {
		dout[i] = 1
	}
	dinp := make([]float32, B*T*C)
	dweight := make([]float32, OC*C)
	dbias := make([]float32, OC)
	MatmulBackward(dinp, dweight, dbias, dout, inp, weight, B, T, C, OC)

	for _, b := range dbias {
		if b != float32(B*T) {
			t.Errorf("dbias accumulation wrong: got %v, want %v", b, B*T)
		}
	}
}

func TestMatmulBackwardAccumulates(t *testing.T) {
	const B, T, C, OC = 1, 1, 2, 2
	inp := []float32{1, 1}
	weight := []float32{1, 0, 0, 1}
	dout := []float32{1, 1}

	dinp := []float32{5, 5}
	dweight := []float32{0, 0, 0, 0}
	dbias := []float32{0, 0}
	MatmulBackward(dinp, dweight, dbias, dout, inp, weight, B, T, C, OC)

	if dinp[0] != 6 || dinp[1] != 6 {
		t.Errorf("MatmulBackward must accumulate into dinp, got %v", dinp)
	}
}
