package ops

// EncoderForward computes out[b,t,:] = wte[inp[b,t],:] + wpe[t,:] for every
// (b,t), writing the C-wide embedding vector for each token-position pair.
// wte is (V,C) row-major, wpe is (maxT,C) row-major, inp holds B*T token
// ids, out is (B,T,C).
func EncoderForward(out, wte, wpe []float32, inp []int32, B, T, C int) {
	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			outBT := out[(b*T+t)*C : (b*T+t)*C+C]
			wteRow := wte[int(inp[b*T+t])*C : int(inp[b*T+t])*C+C]
			wpeRow := wpe[t*C : t*C+C]
			for i := 0; i < C; i++ {
				outBT[i] = wteRow[i] + wpeRow[i]
			}
		}
	}
}

// EncoderBackward accumulates dout[b,t,:] into row inp[b,t] of dwte and into
// row t of dwpe. Multiple (b,t) pairs can touch the same wte row (repeated
// tokens), so this runs serially: parallelizing it needs per-worker shadow
// accumulators reduced at the end, per the reference design's concurrency
// notes.
func EncoderBackward(dwte, dwpe, dout []float32, inp []int32, B, T, C int) {
	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			doutBT := dout[(b*T+t)*C : (b*T+t)*C+C]
			dwteRow := dwte[int(inp[b*T+t])*C : int(inp[b*T+t])*C+C]
			dwpeRow := dwpe[t*C : t*C+C]
			for i := 0; i < C; i++ {
				dwteRow[i] += doutBT[i]
				dwpeRow[i] += doutBT[i]
			}
		}
	}
}
