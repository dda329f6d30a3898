package wordembed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/FilippoRomeo/wordembed/internal/atomicfile"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer(Vocab{}.SerializerType(), DeserializeVocab)
}

// ErrEmptyVocab is returned when no token survives the
// minimum count filter.
var ErrEmptyVocab = errors.New("vocabulary is empty")

// A Vocab translates between words and dense token IDs.
//
// A Vocab is represented as a list of words, where each
// word's index is its ID.
// Words are ordered from most to least frequent.
type Vocab []string

// BuildVocab creates a Vocab from every token which
// occurs at least minCount times.
func BuildVocab(counts TokenCounts, minCount int) (Vocab, error) {
	words := counts.AtLeast(minCount)
	if len(words) == 0 {
		return nil, ErrEmptyVocab
	}
	return Vocab(words), nil
}

// DeserializeVocab deserializes a Vocab.
func DeserializeVocab(d []byte) (Vocab, error) {
	var res Vocab
	if err := json.Unmarshal(d, &res); err != nil {
		return nil, essentials.AddCtx("deserialize Vocab", err)
	}
	return res, nil
}

// Len returns the number of words.
func (v Vocab) Len() int {
	return len(v)
}

// Index builds a word to ID map.
func (v Vocab) Index() map[string]int {
	res := make(map[string]int, len(v))
	for i, w := range v {
		res[w] = i
	}
	return res
}

// IDs converts tokens to IDs, dropping tokens which are
// not in the vocabulary.
func (v Vocab) IDs(tokens []string) []int {
	index := v.Index()
	res := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		if id, ok := index[tok]; ok {
			res = append(res, id)
		}
	}
	return res
}

// Word gets the word for the given ID.
//
// If the ID is out of range, then "" is returned.
func (v Vocab) Word(id int) string {
	if id < 0 || id >= len(v) {
		return ""
	}
	return v[id]
}

// SerializerType returns the unique ID used to serialize
// a Vocab with the serializer package.
func (v Vocab) SerializerType() string {
	return "github.com/FilippoRomeo/wordembed.Vocab"
}

// Serialize serializes the Vocab.
func (v Vocab) Serialize() ([]byte, error) {
	return json.Marshal([]string(v))
}

type vocabJSON struct {
	WordToIx map[string]int    `json:"word_to_ix"`
	IxToWord map[string]string `json:"ix_to_word"`
}

// MarshalJSON encodes both directions of the mapping.
// JSON objects only have string keys, so the inverse
// mapping is keyed by the decimal ID.
func (v Vocab) MarshalJSON() ([]byte, error) {
	obj := vocabJSON{
		WordToIx: v.Index(),
		IxToWord: make(map[string]string, len(v)),
	}
	for i, w := range v {
		obj.IxToWord[strconv.Itoa(i)] = w
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes the format written by
// MarshalJSON.
func (v *Vocab) UnmarshalJSON(d []byte) error {
	var list []string
	if err := json.Unmarshal(d, &list); err == nil {
		*v = list
		return nil
	}
	var obj vocabJSON
	if err := json.Unmarshal(d, &obj); err != nil {
		return err
	}
	res := make(Vocab, len(obj.IxToWord))
	for key, w := range obj.IxToWord {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 || id >= len(res) {
			return fmt.Errorf("invalid vocabulary id: %q", key)
		}
		if obj.WordToIx[w] != id {
			return fmt.Errorf("inconsistent vocabulary entry: %q", w)
		}
		res[id] = w
	}
	*v = res
	return nil
}

// WriteJSON atomically writes the vocabulary as JSON.
func (v Vocab) WriteJSON(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return essentials.AddCtx("write vocabulary", err)
	}
	return atomicfile.WriteFile(path, data)
}

// ReadVocabJSON reads a vocabulary file.
func ReadVocabJSON(path string) (Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("read vocabulary", err)
	}
	var res Vocab
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, essentials.AddCtx("read vocabulary", err)
	}
	return res, nil
}
