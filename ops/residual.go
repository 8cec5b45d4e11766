package ops

// ResidualForward computes out = a + b elementwise.
func ResidualForward(out, a, b []float32) {
	for i := range out {
		out[i] = a[i] + b[i]
	}
}

// ResidualBackward accumulates da += dout and db += dout elementwise.
func ResidualBackward(da, db, dout []float32) {
	for i, d := range dout {
		da[i] += d
		db[i] += d
	}
}
