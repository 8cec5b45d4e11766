package ops

// MatmulForward computes out(B,T,OC) = inp(B,T,C) * weight(OC,C)^T +
// bias(OC)?. weight is stored (OC,C) row-major: row o holds the
// contribution for output channel o. bias may be nil. Parallelized over
// the outer (B,T) pair, per the reference design.
func MatmulForward(out, inp, weight, bias []float32, B, T, C, OC int) {
	parallelFor(B*T, func(bt int) {
		x := inp[bt*C : bt*C+C]
		o := out[bt*OC : bt*OC+OC]
		for oc := 0; oc < OC; oc++ {
			var sum float32
			if bias != nil {
				sum = bias[oc]
			}
			w := weight[oc*C : oc*C+C]
			for i := 0; i < C; i++ {
				sum += x[i] * w[i]
			}
			o[oc] = sum
		}
	})
}

// MatmulBackward accumulates dinp, dweight and dbias from dout. The two
// passes below are mandatory for correctness under parallelism: fusing
// them into one oc-major loop would have every (b,t) goroutine writing
// into the same dweight rows and race.
func MatmulBackward(dinp, dweight, dbias, dout, inp, weight []float32, B, T, C, OC int) {
	// Pass 1: dinp += dout * weight, parallel over (B,T).
	parallelFor(B*T, func(bt int) {
		dy := dout[bt*OC : bt*OC+OC]
		dx := dinp[bt*C : bt*C+C]
		for oc := 0; oc < OC; oc++ {
			g := dy[oc]
			if g == 0 {
				continue
			}
			w := weight[oc*C : oc*C+C]
			for i := 0; i < C; i++ {
				dx[i] += g * w[i]
			}
		}
	})

	// Pass 2: dweight += dout^T * inp, dbias += sum(dout); parallel over oc.
	parallelFor(OC, func(oc int) {
		dw := dweight[oc*C : oc*C+C]
		for bt := 0; bt < B*T; bt++ {
			g := dout[bt*OC+oc]
			if g == 0 {
				continue
			}
			x := inp[bt*C : bt*C+C]
			for i := 0; i < C; i++ {
				dw[i] += g * x[i]
			}
			if dbias != nil {
				dbias[oc] += g
			}
		}
	})
}
