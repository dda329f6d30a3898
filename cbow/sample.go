package cbow

import "math/rand"

// An Example is a center word and its surrounding
// context.
type Example struct {
	// Context holds the c words before the target followed
	// by the c words after it.
	Context []int

	// Target is the center word.
	Target int
}

// A Sampler produces CBOW examples from a token sequence.
//
// Only positions with a full window on both sides are
// sampled; there is no padding or wraparound.
type Sampler struct {
	Tokens []int
	Window int
}

// NewSampler creates a Sampler with context radius
// window.
func NewSampler(tokens []int, window int) *Sampler {
	if window < 1 {
		panic("window must be at least 1")
	}
	return &Sampler{Tokens: tokens, Window: window}
}

// Len returns the number of examples.
func (s *Sampler) Len() int {
	if n := len(s.Tokens) - 2*s.Window; n > 0 {
		return n
	}
	return 0
}

// Example returns the i-th example, whose target is at
// position i+Window in the token sequence.
func (s *Sampler) Example(i int) Example {
	center := i + s.Window
	ctx := make([]int, 0, 2*s.Window)
	ctx = append(ctx, s.Tokens[center-s.Window:center]...)
	ctx = append(ctx, s.Tokens[center+1:center+1+s.Window]...)
	return Example{Context: ctx, Target: s.Tokens[center]}
}

// Order returns the order in which examples should be
// visited for one epoch.
//
// If gen is nil, the examples are visited in sequence.
func (s *Sampler) Order(gen *rand.Rand) []int {
	if gen == nil {
		res := make([]int, s.Len())
		for i := range res {
			res[i] = i
		}
		return res
	}
	return gen.Perm(s.Len())
}

// Examples collects the examples in the given order.
func (s *Sampler) Examples(order []int) []Example {
	res := make([]Example, len(order))
	for i, idx := range order {
		res[i] = s.Example(idx)
	}
	return res
}
