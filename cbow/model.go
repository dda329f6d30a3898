// Package cbow trains continuous bag-of-words word
// embeddings.
package cbow

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// A Model predicts a center word from the mean of its
// context embeddings.
//
// There is no non-linearity between the pooled context
// and the output projection.
type Model struct {
	VocabSize int
	Dim       int

	// Embedding is the row-major VocabSize x Dim table.
	Embedding *anydiff.Var

	// Projection maps pooled vectors to vocabulary logits.
	Projection *anynet.FC
}

// NewModel creates a randomly initialized model.
//
// Embedding rows are drawn from a standard normal and the
// projection is scaled by 1/sqrt(dim), with zero biases.
// If gen is nil, the global source is used.
func NewModel(c anyvec.Creator, vocabSize, dim int, gen *rand.Rand) *Model {
	table := c.MakeVector(vocabSize * dim)
	anyvec.Rand(table, anyvec.Normal, gen)

	proj := anynet.NewFC(c, dim, vocabSize)
	anyvec.Rand(proj.Weights.Vector, anyvec.Normal, gen)
	proj.Weights.Vector.Scale(c.MakeNumeric(math.Sqrt(1 / float64(dim))))
	proj.Biases.Vector.Scale(c.MakeNumeric(0))

	return &Model{
		VocabSize:  vocabSize,
		Dim:        dim,
		Embedding:  anydiff.NewVar(table),
		Projection: proj,
	}
}

// DeserializeModel deserializes a Model.
func DeserializeModel(d []byte) (*Model, error) {
	var res Model
	var table, weights, biases *anyvecsave.S
	err := serializer.DeserializeAny(d, &res.VocabSize, &res.Dim, &table, &weights, &biases)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	res.Embedding = anydiff.NewVar(table.Vector)
	res.Projection = &anynet.FC{
		InCount:  res.Dim,
		OutCount: res.VocabSize,
		Weights:  anydiff.NewVar(weights.Vector),
		Biases:   anydiff.NewVar(biases.Vector),
	}
	return &res, nil
}

// Apply computes vocabulary logits for a batch of
// contexts.
func (m *Model) Apply(contexts [][]int) anydiff.Res {
	pooled := meanContext(m.Embedding, m.Dim, contexts)
	return m.Projection.Apply(pooled, len(contexts))
}

// Loss computes the mean cross-entropy of predicting the
// targets from the contexts.
func (m *Model) Loss(contexts [][]int, targets []int) anydiff.Res {
	if len(contexts) != len(targets) {
		panic("context and target count mismatch")
	}
	c := m.Embedding.Vector.Creator()
	logProbs := anydiff.LogSoftmax(m.Apply(contexts), m.VocabSize)
	oneHot := make([]float64, len(targets)*m.VocabSize)
	for i, t := range targets {
		oneHot[i*m.VocabSize+t] = 1
	}
	desired := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(oneHot)))
	total := anydiff.Sum(anydiff.Mul(desired, logProbs))
	return anydiff.Scale(total, c.MakeNumeric(-1/float64(len(targets))))
}

// Parameters returns the trainable parameters.
// The order is stable, so it can index optimizer state.
func (m *Model) Parameters() []*anydiff.Var {
	return []*anydiff.Var{m.Embedding, m.Projection.Weights, m.Projection.Biases}
}

// Row copies the embedding of a token ID.
func (m *Model) Row(id int) anyvec.Vector {
	return m.Embedding.Vector.Slice(id*m.Dim, (id+1)*m.Dim)
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/FilippoRomeo/wordembed/cbow.Model"
}

// Serialize serializes the Model.
func (m *Model) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		m.VocabSize,
		m.Dim,
		&anyvecsave.S{Vector: m.Embedding.Vector},
		&anyvecsave.S{Vector: m.Projection.Weights.Vector},
		&anyvecsave.S{Vector: m.Projection.Biases.Vector},
	)
}
