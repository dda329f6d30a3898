package cbow

import "math"

// Plateau decays a learning rate when a monitored loss
// stops improving.
//
// A loss counts as an improvement when it is below
// Best*(1-Threshold).
// Once more than Patience epochs pass without one, the
// rate is multiplied by Factor.
type Plateau struct {
	Factor    float64
	Patience  int
	Threshold float64
	MinRate   float64

	Best       float64
	BadEpochs  int
	Reductions int
}

// NewPlateau creates a Plateau with the usual relative
// threshold of 1e-4.
func NewPlateau(factor float64, patience int) *Plateau {
	return &Plateau{
		Factor:    factor,
		Patience:  patience,
		Threshold: 1e-4,
		Best:      math.Inf(1),
	}
}

// Step feeds an epoch loss to the schedule and returns the
// learning rate to use from now on.
func (p *Plateau) Step(loss, rate float64) float64 {
	if loss < p.Best*(1-p.Threshold) {
		p.Best = loss
		p.BadEpochs = 0
		return rate
	}
	p.BadEpochs++
	if p.BadEpochs <= p.Patience {
		return rate
	}
	p.BadEpochs = 0
	newRate := math.Max(rate*p.Factor, p.MinRate)
	if newRate < rate {
		p.Reductions++
	}
	return newRate
}

// A Stopper decides when training should stop because the
// loss has not improved for too long.
type Stopper struct {
	Patience int

	// Best is the lowest loss seen so far.
	Best float64

	// NoImprovement counts the epochs since Best was set.
	NoImprovement int
}

// NewStopper creates a Stopper with no loss seen yet.
func NewStopper(patience int) *Stopper {
	return &Stopper{Patience: patience, Best: math.Inf(1)}
}

// Observe records an epoch loss.
//
// It reports whether the loss improved on the best loss,
// and whether training should stop.
func (s *Stopper) Observe(loss float64) (improved, stop bool) {
	if loss < s.Best {
		s.Best = loss
		s.NoImprovement = 0
		return true, false
	}
	s.NoImprovement++
	return false, s.NoImprovement >= s.Patience
}
