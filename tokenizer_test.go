package wordembed

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeModes(t *testing.T) {
	tok := &Tokenizer{}
	actual, err := tok.TokenizeReader(strings.NewReader("Hello, World!  ﬁne"))
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"hello", ",", "world", "!", "fine"}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}

	tok = &Tokenizer{PunctuationMode: DropPunctuation, PreserveCase: true}
	actual, err = tok.TokenizeReader(strings.NewReader("Hello, World! ..."))
	if err != nil {
		t.Fatal(err)
	}
	expected = []string{"Hello", "World"}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestTokenizeReader(t *testing.T) {
	tok := &Tokenizer{}
	corpus := strings.Repeat("anarchism originated as a term ", 1000)
	tokens, err := tok.TokenizeReader(strings.NewReader(corpus))
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 5000 {
		t.Errorf("expected 5000 tokens but got %d", len(tokens))
	}
	if tokens[4] != "term" || tokens[5] != "anarchism" {
		t.Errorf("unexpected tokens: %v", tokens[:6])
	}
}

func TestTokenizeFileErrors(t *testing.T) {
	tok := &Tokenizer{}
	dir := t.TempDir()
	if _, err := tok.TokenizeFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte(" \n\t "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := tok.TokenizeFile(empty); err == nil {
		t.Error("expected error for empty corpus")
	}
}
