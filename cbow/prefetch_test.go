package cbow

import (
	"context"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func TestPrefetcherOrder(t *testing.T) {
	s := NewSampler(positions(14), 2)
	order := s.Order(rand.New(rand.NewSource(5)))
	p := &Prefetcher{Sampler: s, BatchSize: 3, Workers: 3, Queue: 2}
	if p.NumBatches(len(order)) != 4 {
		t.Fatalf("expected 4 batches but got %d", p.NumBatches(len(order)))
	}

	expected := s.Examples(order)
	var actual []Example
	var count int
	for b := range p.Batches(context.Background(), order) {
		if b.Index != count {
			t.Fatalf("expected batch %d but got %d", count, b.Index)
		}
		if count < 3 && b.Size() != 3 {
			t.Errorf("batch %d has size %d", count, b.Size())
		}
		for i := range b.Targets {
			actual = append(actual, Example{Context: b.Contexts[i], Target: b.Targets[i]})
		}
		count++
	}
	if count != 4 {
		t.Errorf("expected 4 batches but got %d", count)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Error("batches do not follow the visiting order")
	}
}

func TestPrefetcherCancel(t *testing.T) {
	s := NewSampler(positions(1000), 1)
	p := &Prefetcher{Sampler: s, BatchSize: 2, Workers: 4, Queue: 4}
	ctx, cancel := context.WithCancel(context.Background())
	ch := p.Batches(ctx, s.Order(nil))
	<-ch
	cancel()

	timeout := time.After(5 * time.Second)
	var count int
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if count >= p.NumBatches(s.Len())-1 {
					t.Error("cancellation did not stop the stream early")
				}
				return
			}
			count++
		case <-timeout:
			t.Fatal("channel not closed after cancel")
		}
	}
}
