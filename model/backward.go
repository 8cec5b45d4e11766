package model

import (
	"github.com/arlojansen/gpt2train/layout"
	"github.com/arlojansen/gpt2train/ops"
)

// Backward runs the reverse pass symmetric to Forward. It requires a prior
// Forward call that was given targets (MeanLoss must not be the
// sentinel); it allocates and zeroes the gradient buffers on first call.
// Every primitive backward accumulates (+=) into its gradient argument;
// the fused cross-entropy/softmax seed is the only overwrite.
func (m *Model) Backward() error {
	if m.Acts == nil || !m.hasTargets || m.MeanLoss == MeanLossSentinel {
		return &StateViolationError{Op: "Backward", Reason: "no prior Forward call with targets"}
	}

	if m.Grads == nil {
		m.Grads = make([]float32, m.PPlan.Total)
		m.ActGrads = make([]float32, layout.NewActPlan(m.Cfg, m.allocB, m.allocT).Total)
	}

	B, T := lastShape(m.APlan)
	C, L, NH, V := m.Cfg.C, m.Cfg.L, m.Cfg.NH, m.Cfg.V
	buf := m.Acts
	gbuf := m.ActGrads

	dlosses := m.APlan.Losses.Slice(gbuf)
	invBT := float32(1.0) / float32(B*T)
	for i := range dlosses {
		dlosses[i] = invBT
	}

	probs := m.APlan.Probs.Slice(buf)
	dlogits := m.APlan.Logits.Slice(gbuf)
	ops.CrossEntropySoftmaxBackward(dlogits, dlosses, probs, m.Targets, B, T, V)

	wte := m.PPlan.Wte.Slice(m.Params)
	dwte := m.PPlan.Wte.Slice(m.Grads)
	lnf := m.APlan.Lnf.Slice(buf)
	dlnf := m.APlan.Lnf.Slice(gbuf)
	// Tied logits matmul backward: dlnf += dlogits . wte ; dwte += dlogits^T . lnf.
	ops.MatmulBackward(dlnf, dwte, nil, dlogits, lnf, wte, B, T, C, V)

	lnfw := m.PPlan.Lnfw.Slice(m.Params)
	dlnfw := m.PPlan.Lnfw.Slice(m.Grads)
	dlnfb := m.PPlan.Lnfb.Slice(m.Grads)
	lnfMean := m.APlan.LnfMean.Slice(buf)
	lnfRstd := m.APlan.LnfRstd.Slice(buf)

	lastResidual := m.lastResidual(buf, L)
	dresidual := m.lastResidual(gbuf, L)
	ops.LayerNormBackward(dresidual, dlnfw, dlnfb, dlnf, lastResidual, lnfw, lnfMean, lnfRstd, B, T, C)

	for l := L - 1; l >= 0; l-- {
		lp := m.layer(m.Params, l)
		dlp := m.layer(m.Grads, l)
		la := m.layerAct(buf, l)
		dla := m.layerAct(gbuf, l)

		residual2 := m.residualBefore(buf, l)
		dresidual2 := m.residualBefore(gbuf, l)
		xin := m.residualBefore2(buf, l)
		dxin := m.residualBefore2(gbuf, l)

		// Add2 backward: residual3 = residual2 + fcproj.
		ops.ResidualBackward(dresidual2, dla.fcproj, dla.residual3)

		ops.MatmulBackward(dla.fchGelu, dlp.fcprojw, dlp.fcprojb, dla.fcproj, la.fchGelu, lp.fcprojw, B, T, 4*C, C)
		ops.GeluBackward(dla.fch, la.fch, dla.fchGelu)
		ops.MatmulBackward(dla.ln2, dlp.fcw, dlp.fcb, dla.fch, la.ln2, lp.fcw, B, T, C, 4*C)
		ops.LayerNormBackward(dresidual2, dlp.ln2w, dlp.ln2b, dla.ln2, residual2, lp.ln2w, la.ln2Mean, la.ln2Rstd, B, T, C)

		// Add1 backward: residual2 = xin + attproj. dresidual2 now carries
		// the full accumulated gradient from both the mlp (ln2) branch and
		// the residual3 skip path.
		ops.ResidualBackward(dxin, dla.attproj, dresidual2)

		ops.MatmulBackward(dla.atty, dlp.attprojw, dlp.attprojb, dla.attproj, la.atty, lp.attprojw, B, T, C, C)
		ops.AttentionBackward(dla.qkv, dla.att, dla.preatt, dla.atty, la.qkv, la.att, B, T, C, NH)
		ops.MatmulBackward(dla.ln1, dlp.qkvw, dlp.qkvb, dla.qkv, la.ln1, lp.qkvw, B, T, C, 3*C)
		ops.LayerNormBackward(dxin, dlp.ln1w, dlp.ln1b, dla.ln1, xin, lp.ln1w, la.ln1Mean, la.ln1Rstd, B, T, C)
	}

	dwpe := m.PPlan.Wpe.Slice(m.Grads)
	dencoded := m.APlan.Encoded.Slice(gbuf)
	ops.EncoderBackward(dwte, dwpe, dencoded, m.Inputs, B, T, C)

	return nil
}

func lastShape(p layout.ActPlan) (B, T int) {
	// Encoded is (B,T,C); its Shape is stored as []int{B,T,C} by NewActPlan.
	s := p.Encoded.Shape
	return s[0], s[1]
}

// lastResidual returns residual3 of the last layer, or encoded if L==0.
func (m *Model) lastResidual(buf []float32, L int) []float32 {
	if L == 0 {
		return m.APlan.Encoded.Slice(buf)
	}
	return layout.Layer(m.APlan.Residual3, L-1, m.APlan.Residual3Len).Slice(buf)
}

// residualBefore returns the residual stream entering block l's second
// half (i.e. residual2 of block l, the sum of the block's input and its
// attention output).
func (m *Model) residualBefore(buf []float32, l int) []float32 {
	return layout.Layer(m.APlan.Residual2, l, m.APlan.Residual2Len).Slice(buf)
}

// residualBefore2 returns the residual stream entering block l (encoded
// for l==0, residual3 of block l-1 otherwise).
func (m *Model) residualBefore2(buf []float32, l int) []float32 {
	if l == 0 {
		return m.APlan.Encoded.Slice(buf)
	}
	return layout.Layer(m.APlan.Residual3, l-1, m.APlan.Residual3Len).Slice(buf)
}
