package layout

// ActPlan lays out the 23 activation tensors as offset+length
// views into one flat allocation sized for a given (B,T). Per-layer
// tensors (everything from Ln1 through Residual3) carry their L copies
// back to back; PerLayer tensors give the base of layer 0 and the size
// of a single layer's slab, so callers slice layer l with
// layout.Layer(t, l, perLayerLen). The activation-gradient buffer mirrors
// this layout exactly, so the same ActPlan sizes both.
type ActPlan struct {
	Encoded Tensor

	Ln1, Ln1Mean, Ln1Rstd       Tensor // per layer
	Qkv, Atty                  Tensor // per layer
	Preatt, Att                Tensor // per layer
	Attproj, Residual2         Tensor // per layer
	Ln2, Ln2Mean, Ln2Rstd      Tensor // per layer
	Fch, FchGelu               Tensor // per layer
	Fcproj, Residual3          Tensor // per layer

	Lnf, LnfMean, LnfRstd Tensor
	Logits, Probs, Losses Tensor

	// Per-layer slab sizes, needed by layout.Layer to index layer l.
	Ln1Len, Ln1MeanLen, Ln1RstdLen     int
	QkvLen, AttyLen                    int
	PreattLen, AttLen                  int
	AttprojLen, Residual2Len           int
	Ln2Len, Ln2MeanLen, Ln2RstdLen     int
	FchLen, FchGeluLen                 int
	FcprojLen, Residual3Len            int

	Total int
}

// NewActPlan computes the offsets of every activation tensor for the
// given config and batch shape (B,T). Forward/backward buffers allocated
// from this plan must never be reused across a forward call whose B or T
// exceeds the (B,T) this plan was built with.
func NewActPlan(cfg Config, B, T int) ActPlan {
	L, NH, C, V := cfg.L, cfg.NH, cfg.C, cfg.V
	var p ActPlan
	off := 0
	add := func(name string, perLayerShape ...int) (Tensor, int) {
		n := 1
		for _, s := range perLayerShape {
			n *= s
		}
		total := n * L
		t := Tensor{Name: name, Offset: off, Len: total, Shape: append([]int{L}, perLayerShape...)}
		off += total
		return t, n
	}

	p.Encoded = Tensor{Name: "encoded", Offset: off, Len: B * T * C, Shape: []int{B, T, C}}
	off += p.Encoded.Len

	p.Ln1, p.Ln1Len = add("ln1", B, T, C)
	p.Ln1Mean, p.Ln1MeanLen = add("ln1_mean", B, T)
	p.Ln1Rstd, p.Ln1RstdLen = add("ln1_rstd", B, T)
	p.Qkv, p.QkvLen = add("qkv", B, T, 3*C)
	p.Atty, p.AttyLen = add("atty", B, T, C)
	p.Preatt, p.PreattLen = add("preatt", B, NH, T, T)
	p.Att, p.AttLen = add("att", B, NH, T, T)
	p.Attproj, p.AttprojLen = add("attproj", B, T, C)
	p.Residual2, p.Residual2Len = add("residual2", B, T, C)
	p.Ln2, p.Ln2Len = add("ln2", B, T, C)
	p.Ln2Mean, p.Ln2MeanLen = add("ln2_mean", B, T)
	p.Ln2Rstd, p.Ln2RstdLen = add("ln2_rstd", B, T)
	p.Fch, p.FchLen = add("fch", B, T, 4*C)
	p.FchGelu, p.FchGeluLen = add("fch_gelu", B, T, 4*C)
	p.Fcproj, p.FcprojLen = add("fcproj", B, T, C)
	p.Residual3, p.Residual3Len = add("residual3", B, T, C)

	mk := func(name string, shape ...int) Tensor {
		n := 1
		for _, s := range shape {
			n *= s
		}
		t := Tensor{Name: name, Offset: off, Len: n, Shape: shape}
		off += n
		return t
	}
	p.Lnf = mk("lnf", B, T, C)
	p.LnfMean = mk("lnf_mean", B, T)
	p.LnfRstd = mk("lnf_rstd", B, T)
	p.Logits = mk("logits", B, T, V)
	p.Probs = mk("probs", B, T, V)
	p.Losses = mk("losses", B, T)

	p.Total = off
	return p
}
