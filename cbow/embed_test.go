package cbow

import (
	"math"
	"testing"

	"github.com/FilippoRomeo/wordembed"
	"github.com/unixpickle/anyvec/anyvec32"
)

var _ wordembed.Embedding = (*Embed)(nil)

func testEmbed() *Embed {
	vocab := wordembed.Vocab{"a", "b", "c", "d", "e"}
	return NewEmbed(anyvec32.MakeVectorData([]float32{
		1, 0,
		2, 0.1,
		0, 1,
		-1, 0,
		0, 0,
	}), vocab)
}

func TestEmbedSimilarities(t *testing.T) {
	e := testEmbed()
	sims := e.Similarities(e.Embed("a"))
	expected := []float64{1, 2 / math.Sqrt(4.01), 0, -1, 0}
	for i, x := range expected {
		if math.Abs(sims[i]-x) > 1e-4 {
			t.Errorf("word %d: expected %f but got %f", i, x, sims[i])
		}
	}
}

func TestEmbedNearest(t *testing.T) {
	e := testEmbed()
	neighbors, err := e.Nearest("a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors but got %d", len(neighbors))
	}
	if neighbors[0].Word != "b" {
		t.Errorf("expected b first but got %s", neighbors[0].Word)
	}
	// c and e tie at zero; the lower ID wins.
	if neighbors[1].Word != "c" {
		t.Errorf("expected c second but got %s", neighbors[1].Word)
	}
	for _, n := range neighbors {
		if n.Word == "a" {
			t.Error("probe word returned as its own neighbor")
		}
	}

	all, err := e.Nearest("e", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 neighbors but got %d", len(all))
	}
	for _, n := range all {
		if math.IsNaN(n.Score) {
			t.Error("zero vector produced NaN similarity")
		}
	}

	if _, err := e.Nearest("zebra", 2); err != ErrUnknownWord {
		t.Errorf("expected ErrUnknownWord but got %v", err)
	}
}

func TestEmbedLookup(t *testing.T) {
	e := testEmbed()
	if e.Embed("zebra") != nil {
		t.Error("expected nil embedding for unknown word")
	}
	ids, scores := e.Lookup(e.Embed("d"), 3)
	if len(ids) != 3 || len(scores) != 3 {
		t.Fatalf("expected 3 results but got %d", len(ids))
	}
	if e.Token(ids[0]) != "d" {
		t.Errorf("expected d to be nearest to itself but got %s", e.Token(ids[0]))
	}
	if math.Abs(float64(scores[0].(float32))-1) > 1e-4 {
		t.Errorf("expected self similarity 1 but got %v", scores[0])
	}
}

func TestSimilar(t *testing.T) {
	e := testEmbed()
	neighbors, err := Similar(e.Matrix, e.Vocab, "c", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 || neighbors[0].Word != "a" {
		t.Errorf("unexpected neighbors %v", neighbors)
	}
}
