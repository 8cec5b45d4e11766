package ops

import "testing"

func TestResidualForwardBackward(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{0.1, 0.2, 0.3}
	out := make([]float32, 3)
	ResidualForward(out, a, b)
	want := []float32{1.1, 2.2, 3.3}
	for i := range want {
		if diff := out[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	da := []float32{5, 5, 5}
	db := []float32{0, 0, 0}
	dout := []float32{1, 2, 3}
	ResidualBackward(da, db, dout)
	if da[0] != 6 || da[1] != 7 || da[2] != 8 {
		t.Errorf("ResidualBackward must accumulate into da, got %v", da)
	}
	if db[0] != 1 || db[1] != 2 || db[2] != 3 {
		t.Errorf("db = %v, want dout", db)
	}
}
