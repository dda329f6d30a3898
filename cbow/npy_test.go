package cbow

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNPY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emb.npy")
	data := []float32{1, 2, 3, -4, 5.5, 6}
	if err := WriteNPY(path, 2, 3, data); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("\x93NUMPY")) {
		t.Errorf("missing npy magic: %q", raw[:6])
	}
	if !bytes.Contains(raw, []byte("<f4")) {
		t.Error("expected little-endian float32 descriptor")
	}

	rows, cols, actual, err := ReadNPY(path)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 2 || cols != 3 {
		t.Errorf("expected shape (2, 3) but got (%d, %d)", rows, cols)
	}
	if !reflect.DeepEqual(actual, data) {
		t.Errorf("expected %v but got %v", data, actual)
	}
}

func TestNPYBadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emb.npy")
	if err := WriteNPY(path, 2, 2, []float32{1, 2, 3}); err == nil {
		t.Error("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file written despite error")
	}
}
