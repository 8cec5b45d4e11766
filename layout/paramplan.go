package layout

// ParamPlan lays out the 16 parameter tensors, in their fixed on-disk
// order, as non-overlapping offset+length views into one flat
// allocation. The parameter-gradient buffer and both AdamW moment
// buffers are sized identically, so a single ParamPlan serves all four.
type ParamPlan struct {
	Wte, Wpe            Tensor
	Ln1w, Ln1b          Tensor
	Qkvw, Qkvb          Tensor
	Attprojw, Attprojb  Tensor
	Ln2w, Ln2b          Tensor
	Fcw, Fcb            Tensor
	Fcprojw, Fcprojb    Tensor
	Lnfw, Lnfb          Tensor
	Total               int
}

// NewParamPlan computes the offsets of every parameter tensor for the
// given config, in the fixed order wte,wpe,ln1w,ln1b,qkvw,qkvb,attprojw,
// attprojb,ln2w,ln2b,fcw,fcb,fcprojw,fcprojb,lnfw,lnfb.
func NewParamPlan(cfg Config) ParamPlan {
	V, maxT, L, C := cfg.V, cfg.MaxT, cfg.L, cfg.C
	var p ParamPlan
	off := 0
	add := func(name string, shape ...int) Tensor {
		n := 1
		for _, s := range shape {
			n *= s
		}
		t := Tensor{Name: name, Offset: off, Len: n, Shape: shape}
		off += n
		return t
	}
	p.Wte = add("wte", V, C)
	p.Wpe = add("wpe", maxT, C)
	p.Ln1w = add("ln1w", L, C)
	p.Ln1b = add("ln1b", L, C)
	p.Qkvw = add("qkvw", L, 3*C, C)
	p.Qkvb = add("qkvb", L, 3*C)
	p.Attprojw = add("attprojw", L, C, C)
	p.Attprojb = add("attprojb", L, C)
	p.Ln2w = add("ln2w", L, C)
	p.Ln2b = add("ln2b", L, C)
	p.Fcw = add("fcw", L, 4*C, C)
	p.Fcb = add("fcb", L, 4*C)
	p.Fcprojw = add("fcprojw", L, C, 4*C)
	p.Fcprojb = add("fcprojb", L, C)
	p.Lnfw = add("lnfw", C)
	p.Lnfb = add("lnfb", C)
	p.Total = off
	return p
}

// Layer returns the offset+length of tensor t's l'th layer slab. t must
// be one of the per-layer tensors (everything except Wte, Wpe, Lnfw,
// Lnfb); perLayerLen is the size of a single layer's slab.
func Layer(t Tensor, l, perLayerLen int) Tensor {
	return Tensor{
		Name:   t.Name,
		Offset: t.Offset + l*perLayerLen,
		Len:    perLayerLen,
		Shape:  t.Shape[1:],
	}
}
