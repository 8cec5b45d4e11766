package ops

import "github.com/chewxy/math32"

const layerNormEps = 1e-5

// LayerNormForward normalizes each of the B*T length-C vectors in inp to
// zero mean and unit variance, then applies the affine weight/bias. The
// per-row mean and reciprocal standard deviation are cached in mean and
// rstd (each length B*T) for use by LayerNormBackward.
func LayerNormForward(out, mean, rstd, inp, weight, bias []float32, B, T, C int) {
	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			x := inp[(b*T+t)*C : (b*T+t)*C+C]
			var m float32
			for i := 0; i < C; i++ {
				m += x[i]
			}
			m /= float32(C)
			var v float32
			for i := 0; i < C; i++ {
				d := x[i] - m
				v += d * d
			}
			v /= float32(C)
			s := 1.0 / math32.Sqrt(v+layerNormEps)
			o := out[(b*T+t)*C : (b*T+t)*C+C]
			for i := 0; i < C; i++ {
				n := (x[i] - m) * s
				o[i] = n*weight[i] + bias[i]
			}
			mean[b*T+t] = m
			rstd[b*T+t] = s
		}
	}
}

// LayerNormBackward accumulates dweight, dbias and dinp from dout, using
// the mean/rstd cached by the matching forward call. dinp, dweight, dbias
// are all accumulated (+=), never overwritten.
func LayerNormBackward(dinp, dweight, dbias, dout, inp, weight, mean, rstd []float32, B, T, C int) {
	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			x := inp[(b*T+t)*C : (b*T+t)*C+C]
			dy := dout[(b*T+t)*C : (b*T+t)*C+C]
			dx := dinp[(b*T+t)*C : (b*T+t)*C+C]
			m := mean[b*T+t]
			s := rstd[b*T+t]

			var meanDnorm, meanDnormXhat float32
			for i := 0; i < C; i++ {
				xhat := (x[i] - m) * s
				dnorm := weight[i] * dy[i]
				meanDnorm += dnorm
				meanDnormXhat += dnorm * xhat
			}
			meanDnorm /= float32(C)
			meanDnormXhat /= float32(C)

			for i := 0; i < C; i++ {
				xhat := (x[i] - m) * s
				dbias[i] += dy[i]
				dweight[i] += xhat * dy[i]

				dnorm := weight[i] * dy[i]
				dx[i] += s * (dnorm - meanDnorm - xhat*meanDnormXhat)
			}
		}
	}
}
