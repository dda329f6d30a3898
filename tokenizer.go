package wordembed

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/unixpickle/essentials"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyCorpus is returned when a corpus contains no
// tokens at all.
var ErrEmptyCorpus = errors.New("corpus contains no tokens")

// PunctuationMode is a way to deal with punctuation and
// other symbols when tokenizing strings.
type PunctuationMode int

const (
	// Treat each piece of punctuation as its own token.
	SeparatePunctuation PunctuationMode = iota

	// Remove all punctuation.
	DropPunctuation

	// Treat punctuation as just another character.
	IncludePunctuation
)

// A Tokenizer separates strings into word tokens.
//
// By default, a Tokenizer converts all tokens to
// lowercase, applies NFKC normalization, and treats
// punctuation as its own token.
type Tokenizer struct {
	// PunctuationMode is used to decide how to treat
	// punctuation.
	PunctuationMode PunctuationMode

	// PreserveCase, if true, indicates that fields should
	// not automatically be converted to lowercase.
	PreserveCase bool
}

// TokenizeReader streams the tokens of a reader.
//
// Fields are split on whitespace without reading whole
// lines, since corpora like text8 are a single line.
func (t *Tokenizer) TokenizeReader(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	scanner.Split(bufio.ScanWords)
	var res []string
	for scanner.Scan() {
		res = append(res, t.tokenizeField(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("tokenize", err)
	}
	return res, nil
}

// TokenizeFile reads and tokenizes a corpus file.
//
// It fails if the file cannot be read or yields no
// tokens.
func (t *Tokenizer) TokenizeFile(path string) (tokens []string, err error) {
	defer essentials.AddCtxTo("tokenize "+path, &err)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tokens, err = t.TokenizeReader(f)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyCorpus
	}
	return tokens, nil
}

func (t *Tokenizer) tokenizeField(field string) []string {
	field = norm.NFKC.String(field)
	if !t.PreserveCase {
		field = strings.ToLower(field)
	}
	var res []string
	for _, tok := range handlePunctuation(t.PunctuationMode, field) {
		if tok != "" {
			res = append(res, tok)
		}
	}
	return res
}

func handlePunctuation(m PunctuationMode, field string) []string {
	switch m {
	case SeparatePunctuation:
		var res []string
		var cur strings.Builder
		for _, ch := range field {
			if unicode.IsPunct(ch) {
				if cur.Len() > 0 {
					res = append(res, cur.String())
					cur.Reset()
				}
				res = append(res, string(ch))
			} else {
				cur.WriteRune(ch)
			}
		}
		if cur.Len() > 0 {
			res = append(res, cur.String())
		}
		return res
	case DropPunctuation:
		return []string{strings.Map(func(ch rune) rune {
			if unicode.IsPunct(ch) {
				return -1
			}
			return ch
		}, field)}
	case IncludePunctuation:
		return []string{field}
	}
	panic("unknown punctuation mode")
}
