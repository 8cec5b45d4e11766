package layout

import "testing"

func TestActPlanGrowsWithTAndFitsCapacity(t *testing.T) {
	cfg := Config{MaxT: 16, V: 10, L: 2, NH: 2, C: 4}
	small := NewActPlan(cfg, 2, 4)
	big := NewActPlan(cfg, 2, 8)

	if big.Total <= small.Total {
		t.Errorf("doubling T should grow the activation plan: small=%d big=%d", small.Total, big.Total)
	}

	capacity := make([]float32, big.Total)
	if small.Total > len(capacity) {
		t.Errorf("a smaller (B,T) plan must always fit in capacity sized for a larger one")
	}
}

func TestActPlanEncodedShape(t *testing.T) {
	cfg := Config{MaxT: 16, V: 10, L: 2, NH: 2, C: 4}
	p := NewActPlan(cfg, 3, 5)
	if p.Encoded.Shape[0] != 3 || p.Encoded.Shape[1] != 5 || p.Encoded.Shape[2] != 4 {
		t.Errorf("encoded shape = %v, want [3 5 4]", p.Encoded.Shape)
	}
}
