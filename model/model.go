// Package model drives the per-layer forward and backward graph:
// token+position embedding, N transformer blocks, final layernorm,
// tied-weight logits, softmax and cross-entropy, and the symmetric
// reverse pass. It owns the flat parameter, gradient and activation
// buffers and slices every per-layer sub-tensor out of them via package
// layout, rather than holding one matrix per weight.
package model

import (
	"github.com/arlojansen/gpt2train/layout"
	"github.com/arlojansen/gpt2train/ops"
	"gonum.org/v1/gonum/floats"
)

// MeanLossSentinel is the value of MeanLoss after a Forward call made
// without targets, signaling "no loss available".
const MeanLossSentinel float32 = -1.0

// Model owns the parameter buffer (loaded from a checkpoint), its
// gradient and AdamW moment twins, and the activation buffers allocated
// lazily on first Forward.
type Model struct {
	Cfg   layout.Config
	PPlan layout.ParamPlan

	Params []float32
	Grads  []float32

	adamM, adamV []float32
	adamStep     int

	allocB, allocT int
	APlan          layout.ActPlan
	Acts           []float32
	ActGrads       []float32

	Inputs     []int32
	Targets    []int32
	hasTargets bool

	MeanLoss float32
}

// New constructs a Model over an already-loaded flat parameter buffer.
// params must have length layout.NewParamPlan(cfg).Total.
func New(cfg layout.Config, params []float32) *Model {
	return &Model{
		Cfg:      cfg,
		PPlan:    layout.NewParamPlan(cfg),
		Params:   params,
		MeanLoss: MeanLossSentinel,
	}
}

// ZeroGrad zeroes the parameter- and activation-gradient buffers. It is a
// no-op if they have not yet been allocated (i.e. Backward has never
// run).
func (m *Model) ZeroGrad() {
	for i := range m.Grads {
		m.Grads[i] = 0
	}
	for i := range m.ActGrads {
		m.ActGrads[i] = 0
	}
}

// perLayerParamLens holds the size of one layer's slab for each
// per-layer parameter tensor, used with layout.Layer to index layer l.
type perLayerParamLens struct {
	ln1, qkvw, qkvb, attprojw, attprojb, ln2, fcw, fcb, fcprojw, fcprojb int
}

func (m *Model) paramLens() perLayerParamLens {
	C := m.Cfg.C
	return perLayerParamLens{
		ln1:       C,
		qkvw:      3 * C * C,
		qkvb:      3 * C,
		attprojw:  C * C,
		attprojb:  C,
		ln2:       C,
		fcw:       4 * C * C,
		fcb:       4 * C,
		fcprojw:   C * 4 * C,
		fcprojb:   C,
	}
}

// layerParams is the set of parameter (or gradient) slices for one block.
type layerParams struct {
	ln1w, ln1b         []float32
	qkvw, qkvb         []float32
	attprojw, attprojb []float32
	ln2w, ln2b         []float32
	fcw, fcb           []float32
	fcprojw, fcprojb   []float32
}

func (m *Model) layer(buf []float32, l int) layerParams {
	ln := m.paramLens()
	return layerParams{
		ln1w:     layout.Layer(m.PPlan.Ln1w, l, ln.ln1).Slice(buf),
		ln1b:     layout.Layer(m.PPlan.Ln1b, l, ln.ln1).Slice(buf),
		qkvw:     layout.Layer(m.PPlan.Qkvw, l, ln.qkvw).Slice(buf),
		qkvb:     layout.Layer(m.PPlan.Qkvb, l, ln.qkvb).Slice(buf),
		attprojw: layout.Layer(m.PPlan.Attprojw, l, ln.attprojw).Slice(buf),
		attprojb: layout.Layer(m.PPlan.Attprojb, l, ln.attprojb).Slice(buf),
		ln2w:     layout.Layer(m.PPlan.Ln2w, l, ln.ln1).Slice(buf),
		ln2b:     layout.Layer(m.PPlan.Ln2b, l, ln.ln1).Slice(buf),
		fcw:      layout.Layer(m.PPlan.Fcw, l, ln.fcw).Slice(buf),
		fcb:      layout.Layer(m.PPlan.Fcb, l, ln.fcb).Slice(buf),
		fcprojw:  layout.Layer(m.PPlan.Fcprojw, l, ln.fcprojw).Slice(buf),
		fcprojb:  layout.Layer(m.PPlan.Fcprojb, l, ln.fcprojb).Slice(buf),
	}
}

// layerActs is the set of activation (or activation-gradient) slices for
// one block, at the (B,T) the enclosing ActPlan was built with.
type layerActs struct {
	ln1, ln1Mean, ln1Rstd []float32
	qkv, atty             []float32
	preatt, att           []float32
	attproj, residual2    []float32
	ln2, ln2Mean, ln2Rstd []float32
	fch, fchGelu          []float32
	fcproj, residual3     []float32
}

func (m *Model) layerAct(buf []float32, l int) layerActs {
	p := m.APlan
	return layerActs{
		ln1:       layout.Layer(p.Ln1, l, p.Ln1Len).Slice(buf),
		ln1Mean:   layout.Layer(p.Ln1Mean, l, p.Ln1MeanLen).Slice(buf),
		ln1Rstd:   layout.Layer(p.Ln1Rstd, l, p.Ln1RstdLen).Slice(buf),
		qkv:       layout.Layer(p.Qkv, l, p.QkvLen).Slice(buf),
		atty:      layout.Layer(p.Atty, l, p.AttyLen).Slice(buf),
		preatt:    layout.Layer(p.Preatt, l, p.PreattLen).Slice(buf),
		att:       layout.Layer(p.Att, l, p.AttLen).Slice(buf),
		attproj:   layout.Layer(p.Attproj, l, p.AttprojLen).Slice(buf),
		residual2: layout.Layer(p.Residual2, l, p.Residual2Len).Slice(buf),
		ln2:       layout.Layer(p.Ln2, l, p.Ln2Len).Slice(buf),
		ln2Mean:   layout.Layer(p.Ln2Mean, l, p.Ln2MeanLen).Slice(buf),
		ln2Rstd:   layout.Layer(p.Ln2Rstd, l, p.Ln2RstdLen).Slice(buf),
		fch:       layout.Layer(p.Fch, l, p.FchLen).Slice(buf),
		fchGelu:   layout.Layer(p.FchGelu, l, p.FchGeluLen).Slice(buf),
		fcproj:    layout.Layer(p.Fcproj, l, p.FcprojLen).Slice(buf),
		residual3: layout.Layer(p.Residual3, l, p.Residual3Len).Slice(buf),
	}
}

// Preallocate reserves activation buffers sized for (B,T) without
// running Forward. Autoregressive callers that grow T across repeated
// Forward calls (sampling, with no KV cache) must reserve the largest
// T they will ever pass before the first call, since Forward itself
// locks the allocation ceiling to whatever shape it first sees. A
// no-op once Acts has already been allocated.
func (m *Model) Preallocate(B, T int) {
	if m.Acts != nil {
		return
	}
	m.allocB, m.allocT = B, T
	m.APlan = layout.NewActPlan(m.Cfg, B, T)
	m.Acts = make([]float32, m.APlan.Total)
	m.Inputs = make([]int32, B*T)
	m.Targets = make([]int32, B*T)
}

// Forward runs the encoder, all L transformer blocks, the final
// layernorm, the tied logits matmul, softmax, and — if targets is
// non-nil — cross-entropy, setting m.MeanLoss. If targets is nil,
// m.MeanLoss is set to MeanLossSentinel.
func (m *Model) Forward(inputs, targets []int32, B, T int) error {
	if m.Acts == nil {
		m.allocB, m.allocT = B, T
		m.APlan = layout.NewActPlan(m.Cfg, B, T)
		m.Acts = make([]float32, m.APlan.Total)
		m.Inputs = make([]int32, B*T)
		m.Targets = make([]int32, B*T)
	} else if B > m.allocB || T > m.allocT {
		return &ShapeOverflowError{GotB: B, GotT: T, AllocB: m.allocB, AllocT: m.allocT}
	} else {
		m.APlan = layout.NewActPlan(m.Cfg, B, T)
	}

	copy(m.Inputs, inputs[:B*T])
	m.hasTargets = targets != nil
	if m.hasTargets {
		copy(m.Targets, targets[:B*T])
	}

	C, L, NH, V := m.Cfg.C, m.Cfg.L, m.Cfg.NH, m.Cfg.V
	buf := m.Acts

	wte := m.PPlan.Wte.Slice(m.Params)
	wpe := m.PPlan.Wpe.Slice(m.Params)
	encoded := m.APlan.Encoded.Slice(buf)
	ops.EncoderForward(encoded, wte, wpe, m.Inputs, B, T, C)

	residual := encoded
	for l := 0; l < L; l++ {
		lp := m.layer(m.Params, l)
		la := m.layerAct(buf, l)

		ops.LayerNormForward(la.ln1, la.ln1Mean, la.ln1Rstd, residual, lp.ln1w, lp.ln1b, B, T, C)
		ops.MatmulForward(la.qkv, la.ln1, lp.qkvw, lp.qkvb, B, T, C, 3*C)
		ops.AttentionForward(la.atty, la.preatt, la.att, la.qkv, B, T, C, NH)
		ops.MatmulForward(la.attproj, la.atty, lp.attprojw, lp.attprojb, B, T, C, C)
		ops.ResidualForward(la.residual2, residual, la.attproj)

		ops.LayerNormForward(la.ln2, la.ln2Mean, la.ln2Rstd, la.residual2, lp.ln2w, lp.ln2b, B, T, C)
		ops.MatmulForward(la.fch, la.ln2, lp.fcw, lp.fcb, B, T, C, 4*C)
		ops.GeluForward(la.fchGelu, la.fch)
		ops.MatmulForward(la.fcproj, la.fchGelu, lp.fcprojw, lp.fcprojb, B, T, 4*C, C)
		ops.ResidualForward(la.residual3, la.residual2, la.fcproj)

		residual = la.residual3
	}

	lnfw := m.PPlan.Lnfw.Slice(m.Params)
	lnfb := m.PPlan.Lnfb.Slice(m.Params)
	lnf := m.APlan.Lnf.Slice(buf)
	lnfMean := m.APlan.LnfMean.Slice(buf)
	lnfRstd := m.APlan.LnfRstd.Slice(buf)
	ops.LayerNormForward(lnf, lnfMean, lnfRstd, residual, lnfw, lnfb, B, T, C)

	logits := m.APlan.Logits.Slice(buf)
	ops.MatmulForward(logits, lnf, wte, nil, B, T, C, V)

	probs := m.APlan.Probs.Slice(buf)
	ops.SoftmaxForward(probs, logits, B, T, V)

	if m.hasTargets {
		losses := m.APlan.Losses.Slice(buf)
		ops.CrossEntropyForward(losses, probs, m.Targets, B, T, V)
		m.MeanLoss = float32(meanLoss(losses)) / float32(B*T)
	} else {
		m.MeanLoss = MeanLossSentinel
	}
	return nil
}

// meanLoss widens the (small, B*T-length) per-position loss vector to
// float64 and reduces it with gonum/floats, the same library the
// training loop uses for its smoothed-loss diagnostics.
func meanLoss(losses []float32) float64 {
	wide := make([]float64, len(losses))
	for i, l := range losses {
		wide[i] = float64(l)
	}
	return floats.Sum(wide)
}
