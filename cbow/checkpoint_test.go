package cbow

import (
	"encoding/json"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FilippoRomeo/wordembed"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestCheckpointSaveLoad(t *testing.T) {
	m := NewModel(anyvec32.CurrentCreator(), 5, 4, rand.New(rand.NewSource(1)))
	opt := NewAdamW(0.01, 0, true)
	if _, err := Step(m, opt, &Batch{Contexts: [][]int{{0, 1}}, Targets: []int{2}}, 1); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "best.ckpt")
	if err := Save(path, &Checkpoint{Model: m, Optimizer: opt, Loss: 1.25, Epoch: 3}); err != nil {
		t.Fatal(err)
	}
	ckpt, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if ckpt.Loss != 1.25 || ckpt.Epoch != 3 {
		t.Errorf("unexpected loss %f and epoch %d", ckpt.Loss, ckpt.Epoch)
	}
	if !reflect.DeepEqual(vectorFloats(ckpt.Model.Embedding.Vector), vectorFloats(m.Embedding.Vector)) {
		t.Error("embedding differs after round trip")
	}
	checkAdamWEqual(t, ckpt.Optimizer, opt)

	if _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.ckpt")); err == nil {
		t.Error("expected error for missing checkpoint")
	}
}

func TestFinalModelSaveLoad(t *testing.T) {
	vocab := wordembed.Vocab{"x", "y", "z"}
	m := NewModel(anyvec32.CurrentCreator(), 3, 2, rand.New(rand.NewSource(2)))
	config, _ := json.Marshal(map[string]int{"embedding_dim": 2})

	path := filepath.Join(t.TempDir(), "final.ckpt")
	final := &FinalModel{Model: m, Optimizer: NewAdamW(0.01, 0, true), Vocab: vocab, Config: config}
	if err := Save(path, final); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFinalModel(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.Vocab, vocab) {
		t.Errorf("expected vocab %v but got %v", vocab, loaded.Vocab)
	}
	if string(loaded.Config) != string(config) {
		t.Errorf("expected config %s but got %s", config, loaded.Config)
	}
	embed := loaded.Embed()
	if embed.Dim() != 2 {
		t.Errorf("expected dim 2 but got %d", embed.Dim())
	}
	if !reflect.DeepEqual(vectorFloats(embed.EmbedID(1)), vectorFloats(m.Row(1))) {
		t.Error("embedding row differs after round trip")
	}
}
