package cbow

import (
	"errors"
	"math"

	"github.com/FilippoRomeo/wordembed"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/splaytree"
)

// ErrUnknownWord is returned when a probe word is not in
// the vocabulary.
var ErrUnknownWord = errors.New("word not in vocabulary")

// normEpsilon bounds the norm used to normalize a vector,
// so zero vectors get zero similarity instead of NaN.
const normEpsilon = 1e-12

// A Neighbor is a word ranked by similarity.
type Neighbor struct {
	ID    int
	Word  string
	Score float64
}

// Embed looks up and compares word embeddings.
//
// Embed never modifies Matrix, so it is safe to use
// between training epochs.
type Embed struct {
	// Matrix is the row-major embedding table, with one
	// row per word in Vocab.
	Matrix anyvec.Vector
	Vocab  wordembed.Vocab

	index map[string]int
}

// NewEmbed creates an Embed over a table.
func NewEmbed(matrix anyvec.Vector, vocab wordembed.Vocab) *Embed {
	if vocab.Len() == 0 || matrix.Len()%vocab.Len() != 0 {
		panic("matrix size does not match vocabulary")
	}
	return &Embed{Matrix: matrix, Vocab: vocab, index: vocab.Index()}
}

// Dim returns the dimensionality of the embedding.
func (e *Embed) Dim() int {
	return e.Matrix.Len() / e.Vocab.Len()
}

// Embed returns the embedding for the token, or nil if
// the token is unknown.
func (e *Embed) Embed(token string) anyvec.Vector {
	id, ok := e.index[token]
	if !ok {
		return nil
	}
	return e.EmbedID(id)
}

// EmbedID returns the embedding for the token ID.
func (e *Embed) EmbedID(id int) anyvec.Vector {
	dim := e.Dim()
	return e.Matrix.Slice(id*dim, (id+1)*dim)
}

// Token looks up the token for the token ID.
func (e *Embed) Token(id int) string {
	return e.Vocab.Word(id)
}

// Similarities computes the cosine similarity between vec
// and every row, indexed by token ID.
func (e *Embed) Similarities(vec anyvec.Vector) []float64 {
	if vec.Len() != e.Dim() {
		panic("incorrect vector length")
	}
	rows := e.Vocab.Len()
	c := e.Matrix.Creator()

	squares := e.Matrix.Copy()
	anyvec.Pow(squares, c.MakeNumeric(2))
	normalizers := anyvec.SumCols(squares, rows)
	normalizers.AddScalar(c.MakeNumeric(normEpsilon * normEpsilon))
	anyvec.Pow(normalizers, c.MakeNumeric(-0.5))
	normalized := e.Matrix.Copy()
	anyvec.ScaleChunks(normalized, normalizers)

	query := vec.Copy()
	norm := math.Max(numericFloat(anyvec.Norm(query)), normEpsilon)
	query.Scale(c.MakeNumeric(1 / norm))

	product := &anyvec.Matrix{
		Data: c.MakeVector(rows),
		Rows: rows,
		Cols: 1,
	}
	product.Product(false, false, c.MakeNumeric(1),
		&anyvec.Matrix{Data: normalized, Rows: rows, Cols: e.Dim()},
		&anyvec.Matrix{Data: query, Rows: query.Len(), Cols: 1},
		c.MakeNumeric(0))
	return vectorFloats(product.Data)
}

// Lookup finds the n nearest token IDs to the vector by
// cosine similarity, most similar first.
//
// If n is greater than the total number of words,
// there will be fewer than n results.
func (e *Embed) Lookup(vec anyvec.Vector, n int) ([]int, []anyvec.Numeric) {
	c := e.Matrix.Creator()
	var ids []int
	var scores []anyvec.Numeric
	for _, s := range topScores(e.Similarities(vec), n, -1) {
		ids = append(ids, s.ID)
		scores = append(scores, c.MakeNumeric(s.Score))
	}
	return ids, scores
}

// Nearest finds the n words most similar to a word,
// excluding the word itself.
func (e *Embed) Nearest(word string, n int) ([]Neighbor, error) {
	id, ok := e.index[word]
	if !ok {
		return nil, ErrUnknownWord
	}
	var res []Neighbor
	for _, s := range topScores(e.Similarities(e.EmbedID(id)), n, id) {
		res = append(res, Neighbor{ID: s.ID, Word: e.Token(s.ID), Score: s.Score})
	}
	return res, nil
}

// Similar finds the k words nearest to word in a table
// with one row per word in vocab.
func Similar(table anyvec.Vector, vocab wordembed.Vocab, word string, k int) ([]Neighbor, error) {
	return NewEmbed(table, vocab).Nearest(word, k)
}

type scoredID struct {
	ID    int
	Score float64
}

// Compare orders by score; on ties the lower ID ranks as
// more similar.
func (s scoredID) Compare(v2 splaytree.Value) int {
	other := v2.(scoredID)
	if s.Score < other.Score {
		return -1
	} else if s.Score > other.Score {
		return 1
	}
	if s.ID > other.ID {
		return -1
	} else if s.ID < other.ID {
		return 1
	}
	return 0
}

// topScores selects the n largest scores, skipping the
// ID exclude, largest first.
func topScores(scores []float64, n, exclude int) []scoredID {
	if n <= 0 {
		return nil
	}
	tree := &splaytree.Tree{}
	var size int
	for id, score := range scores {
		if id == exclude {
			continue
		}
		if math.IsNaN(score) {
			score = math.Inf(-1)
		}
		tree.Insert(scoredID{ID: id, Score: score})
		size++
		if size > n {
			tree.Delete(minValue(tree))
			size--
		}
	}
	var res []scoredID
	descending(tree.Root, &res)
	return res
}

func minValue(t *splaytree.Tree) splaytree.Value {
	n := t.Root
	for n.Left != nil {
		n = n.Left
	}
	return n.Value
}

func descending(n *splaytree.Node, res *[]scoredID) {
	if n == nil {
		return
	}
	descending(n.Right, res)
	*res = append(*res, n.Value.(scoredID))
	descending(n.Left, res)
}
