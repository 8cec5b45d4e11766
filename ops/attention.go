package ops

import "github.com/chewxy/math32"

// negInfSentinel stands in for -Inf in the softmax max-reduction. A finite
// value keeps every lane's arithmetic well-defined (exp of a huge negative
// number underflows cleanly to 0) without the branching a literal -Inf
// would need when every score in a row happens to be masked out.
const negInfSentinel = -1e4

// AttentionForward computes causal multi-head attention. qkv is the
// (B,T,3C) concatenation of Q,K,V; within each third, head h occupies
// channels [h*hs,(h+1)*hs). preatt and att are (B,NH,T,T); out is
// (B,T,C). Parallelized over the outer (b,h) pair; the t loop runs
// serially inside each (b,h).
func AttentionForward(out, preatt, att, qkv []float32, B, T, C, NH int) {
	hs := C / NH
	scale := 1.0 / math32.Sqrt(float32(hs))
	C3 := 3 * C

	parallelFor(B*NH, func(bh int) {
		b := bh / NH
		h := bh % NH

		for t := 0; t < T; t++ {
			qOff := b*T*C3 + t*C3 + h*hs
			q := qkv[qOff : qOff+hs]

			preattRow := preatt[((b*NH+h)*T+t)*T : ((b*NH+h)*T+t)*T+T]
			attRow := att[((b*NH+h)*T+t)*T : ((b*NH+h)*T+t)*T+T]

			maxval := float32(negInfSentinel)
			for t2 := 0; t2 <= t; t2++ {
				kOff := b*T*C3 + t2*C3 + C + h*hs
				k := qkv[kOff : kOff+hs]
				var dot float32
				for i := 0; i < hs; i++ {
					dot += q[i] * k[i]
				}
				dot *= scale
				if dot > maxval {
					maxval = dot
				}
				preattRow[t2] = dot
			}

			var expsum float32
			for t2 := 0; t2 <= t; t2++ {
				e := math32.Exp(preattRow[t2] - maxval)
				expsum += e
				attRow[t2] = e
			}
			expsumInv := float32(0)
			if expsum != 0 {
				expsumInv = 1.0 / expsum
			}
			for t2 := 0; t2 <= t; t2++ {
				attRow[t2] *= expsumInv
			}
			for t2 := t + 1; t2 < T; t2++ {
				attRow[t2] = 0
			}

			outOff := b*T*C + t*C + h*hs
			o := out[outOff : outOff+hs]
			for i := range o {
				o[i] = 0
			}
			for t2 := 0; t2 <= t; t2++ {
				vOff := b*T*C3 + t2*C3 + 2*C + h*hs
				v := qkv[vOff : vOff+hs]
				a := attRow[t2]
				for i := 0; i < hs; i++ {
					o[i] += a * v[i]
				}
			}
		}
	})
}

// AttentionBackward accumulates dqkv from dout, using the att cached by the
// matching forward call. Runs serially: the reference design accumulates
// into dK/dV across every t2<=t, which races under a (b,t,h)-parallel loop
// without per-thread shadow buffers.
func AttentionBackward(dqkv, datt, dpreatt, dout, qkv, att []float32, B, T, C, NH int) {
	hs := C / NH
	scale := 1.0 / math32.Sqrt(float32(hs))
	C3 := 3 * C

	for b := 0; b < B; b++ {
		for h := 0; h < NH; h++ {
			for t := 0; t < T; t++ {
				attRow := att[((b*NH+h)*T+t)*T : ((b*NH+h)*T+t)*T+T]
				dattRow := datt[((b*NH+h)*T+t)*T : ((b*NH+h)*T+t)*T+T]
				dpreattRow := dpreatt[((b*NH+h)*T+t)*T : ((b*NH+h)*T+t)*T+T]

				doutOff := b*T*C + t*C + h*hs
				dout_bth := dout[doutOff : doutOff+hs]

				qOff := b*T*C3 + t*C3 + h*hs
				q := qkv[qOff : qOff+hs]
				dq := dqkv[qOff : qOff+hs]

				// Value path: datt[t2] += V[t2].dout ; dV[t2] += att[t2]*dout.
				for t2 := 0; t2 <= t; t2++ {
					vOff := b*T*C3 + t2*C3 + 2*C + h*hs
					v := qkv[vOff : vOff+hs]
					dv := dqkv[vOff : vOff+hs]
					var d float32
					for i := 0; i < hs; i++ {
						d += v[i] * dout_bth[i]
					}
					dattRow[t2] += d
					a := attRow[t2]
					for i := 0; i < hs; i++ {
						dv[i] += a * dout_bth[i]
					}
				}

				// Softmax path: dpreatt[t3] += sum_t2 att[t2]*(1[t2=t3]-att[t3])*datt[t2].
				for t2 := 0; t2 <= t; t2++ {
					for t3 := 0; t3 <= t; t3++ {
						indicator := float32(0)
						if t2 == t3 {
							indicator = 1
						}
						local := attRow[t2] * (indicator - attRow[t3])
						dpreattRow[t3] += local * dattRow[t2]
					}
				}

				// QK path: dQ += K[t2]*dpreatt[t2]*scale ; dK[t2] += Q*dpreatt[t2]*scale.
				for t2 := 0; t2 <= t; t2++ {
					kOff := b*T*C3 + t2*C3 + C + h*hs
					k := qkv[kOff : kOff+hs]
					dk := dqkv[kOff : kOff+hs]
					g := dpreattRow[t2] * scale
					for i := 0; i < hs; i++ {
						dq[i] += k[i] * g
						dk[i] += q[i] * g
					}
				}
			}
		}
	}
}
