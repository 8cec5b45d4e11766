package rng

import "testing"

func TestFloat32IsInUnitInterval(t *testing.T) {
	s := NewState(12345)
	for i := 0; i < 1000; i++ {
		f := s.Float32()
		if f < 0 || f >= 1 {
			t.Fatalf("Float32() = %v, want value in [0,1)", f)
		}
	}
}

func TestStateIsDeterministic(t *testing.T) {
	a := NewState(42)
	b := NewState(42)
	for i := 0; i < 10; i++ {
		if a.Uint32() != b.Uint32() {
			t.Fatalf("two generators seeded identically diverged at draw %d", i)
		}
	}
}

func TestSampleMultinomialPicksBinWhoseCDFExceedsCoin(t *testing.T) {
	probs := []float32{0.1, 0.1, 0.7, 0.1}
	// coin just below the cumulative mass of the first three bins.
	idx := SampleMultinomial(probs, 0.89)
	if idx != 2 {
		t.Errorf("SampleMultinomial = %d, want 2", idx)
	}
}

func TestSampleMultinomialFallsBackToLastIndex(t *testing.T) {
	probs := []float32{0.3, 0.3, 0.3} // sums to 0.9, not 1, by construction
	idx := SampleMultinomial(probs, 0.999)
	if idx != len(probs)-1 {
		t.Errorf("SampleMultinomial = %d, want fallback to last index %d", idx, len(probs)-1)
	}
}
