package cbow

import "testing"

func TestPlateau(t *testing.T) {
	p := NewPlateau(0.5, 2)
	rate := 1.0
	losses := []float64{5, 4, 4, 4, 4, 3.9999999, 3, 3, 3, 3}
	expected := []float64{1, 1, 1, 1, 0.5, 0.5, 0.5, 0.5, 0.5, 0.25}
	for i, loss := range losses {
		rate = p.Step(loss, rate)
		if rate != expected[i] {
			t.Fatalf("epoch %d: expected rate %f but got %f", i+1, expected[i], rate)
		}
	}
	if p.Reductions != 2 {
		t.Errorf("expected 2 reductions but got %d", p.Reductions)
	}
}

func TestPlateauMinRate(t *testing.T) {
	p := NewPlateau(0.1, 0)
	p.MinRate = 0.05
	rate := p.Step(1, 1)
	rate = p.Step(1, rate)
	if rate != 0.1 {
		t.Fatalf("expected 0.1 but got %f", rate)
	}
	rate = p.Step(1, rate)
	if rate != 0.05 {
		t.Errorf("expected rate to stop at 0.05 but got %f", rate)
	}
}

func TestStopper(t *testing.T) {
	s := NewStopper(3)
	losses := []float64{5, 4, 4.5, 4, 3, 3.5, 3.1, 3}
	expectImproved := []bool{true, true, false, false, true, false, false, false}
	lastBest := s.Best
	for i, loss := range losses {
		improved, stop := s.Observe(loss)
		if improved != expectImproved[i] {
			t.Errorf("epoch %d: expected improved=%v", i+1, expectImproved[i])
		}
		if s.Best > lastBest {
			t.Fatalf("epoch %d: best loss increased", i+1)
		}
		lastBest = s.Best
		if stop != (i == len(losses)-1) {
			t.Errorf("epoch %d: unexpected stop=%v", i+1, stop)
		}
	}
	if s.Best != 3 {
		t.Errorf("expected best 3 but got %f", s.Best)
	}
}
