package cbow

import (
	"context"
	"sync"
)

// A Batch is a group of examples stacked for one step.
type Batch struct {
	// Index is the batch's position in the epoch.
	Index int

	Contexts [][]int
	Targets  []int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Targets)
}

// A Prefetcher assembles batches on a pool of worker
// goroutines while the caller trains on earlier ones.
//
// Batches are delivered in order, so the sequence of
// batches only depends on the visiting order.
type Prefetcher struct {
	Sampler   *Sampler
	BatchSize int

	// Workers is the number of goroutines building batches.
	Workers int

	// Queue is the number of batches which may be built
	// ahead of the consumer.
	Queue int
}

// NumBatches returns the number of batches for n examples.
// The last batch may be smaller than BatchSize.
func (p *Prefetcher) NumBatches(n int) int {
	return (n + p.BatchSize - 1) / p.BatchSize
}

// Batches streams the batches for one pass over order.
//
// The channel is closed after the last batch, or early if
// ctx is done.
// Callers which stop reading early must cancel ctx.
func (p *Prefetcher) Batches(ctx context.Context, order []int) <-chan *Batch {
	type job struct {
		index int
		out   chan *Batch
	}
	queue := make(chan chan *Batch, maxInt(p.Queue, 1))
	jobs := make(chan job)
	res := make(chan *Batch)

	var wg sync.WaitGroup
	for i := 0; i < maxInt(p.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				j.out <- p.build(j.index, order)
			}
		}()
	}

	go func() {
		defer close(queue)
		defer func() {
			close(jobs)
			wg.Wait()
		}()
		for i := 0; i < p.NumBatches(len(order)); i++ {
			out := make(chan *Batch, 1)
			select {
			case queue <- out:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- job{index: i, out: out}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer close(res)
		for out := range queue {
			var b *Batch
			select {
			case b = <-out:
			case <-ctx.Done():
				return
			}
			select {
			case res <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	return res
}

func (p *Prefetcher) build(index int, order []int) *Batch {
	start := index * p.BatchSize
	end := start + p.BatchSize
	if end > len(order) {
		end = len(order)
	}
	b := &Batch{
		Index:    index,
		Contexts: make([][]int, 0, end-start),
		Targets:  make([]int, 0, end-start),
	}
	for _, idx := range order[start:end] {
		ex := p.Sampler.Example(idx)
		b.Contexts = append(b.Contexts, ex.Context)
		b.Targets = append(b.Targets, ex.Target)
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
