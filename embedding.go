package wordembed

import "github.com/unixpickle/anyvec"

// Embedding is a trained table of word vectors.
//
// Token IDs follow the order of the Vocab the embedding
// was trained with.
type Embedding interface {
	// Dim returns the dimensionality of the embedding.
	Dim() int

	// Embed returns the vector for the token, or nil if the
	// token is not in the vocabulary.
	Embed(token string) anyvec.Vector

	// EmbedID returns the vector for the token ID.
	EmbedID(id int) anyvec.Vector

	// Lookup finds the n token IDs whose vectors have the
	// highest cosine similarity to vec, most similar first.
	//
	// If n is greater than the total number of words,
	// there will be fewer than n results.
	Lookup(vec anyvec.Vector, n int) ([]int, []anyvec.Numeric)

	// Token looks up the token for the token ID.
	Token(id int) string
}
