package track

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

type failingSink struct {
	calls int
}

func (f *failingSink) LogBatch(m BatchMetrics) error { f.calls++; return errors.New("offline") }
func (f *failingSink) LogEpoch(m EpochMetrics) error { f.calls++; return errors.New("offline") }
func (f *failingSink) LogSimilar(string, []Neighbor) error {
	f.calls++
	return errors.New("offline")
}
func (f *failingSink) LogArtifacts(string, []Artifact) error {
	f.calls++
	return errors.New("offline")
}
func (f *failingSink) Close() error { f.calls++; return errors.New("offline") }

func TestMultiBestEffort(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	failing := &failingSink{}
	m := NewMulti(logger, failing, nil, &LogSink{Log: logger})
	if len(m.Sinks) != 2 {
		t.Fatalf("expected nil sink to be skipped, got %d sinks", len(m.Sinks))
	}
	if err := m.LogBatch(BatchMetrics{Step: 1, Loss: 2}); err != nil {
		t.Error(err)
	}
	if err := m.LogEpoch(EpochMetrics{Epoch: 1, Loss: 1.5}); err != nil {
		t.Error(err)
	}
	if err := m.LogSimilar("car", []Neighbor{{"truck", 0.9}}); err != nil {
		t.Error(err)
	}
	if err := m.Close(); err != nil {
		t.Error(err)
	}
	if failing.calls != 4 {
		t.Errorf("expected 4 calls but got %d", failing.calls)
	}
	out := buf.String()
	if !strings.Contains(out, "metric sink failed") {
		t.Error("failure was not logged")
	}
	if !strings.Contains(out, "1. truck (0.900)") {
		t.Errorf("similarity table was not logged: %s", out)
	}
}

func TestPromSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPromSink(reg)
	if err != nil {
		t.Fatal(err)
	}
	p.LogBatch(BatchMetrics{Loss: 3.5, LearningRate: 0.005, EpochProgress: 1.25})
	p.LogBatch(BatchMetrics{Loss: 3.25, LearningRate: 0.005, EpochProgress: 1.5})
	p.LogEpoch(EpochMetrics{Epoch: 2, Loss: 3.1, Minutes: 0.5, LearningRate: 0.0025})
	p.LogSimilar("king", []Neighbor{{"queen", 0.8}, {"prince", 0.7}})

	if v := testutil.ToFloat64(p.batchLoss); v != 3.25 {
		t.Errorf("expected batch loss 3.25 but got %f", v)
	}
	if v := testutil.ToFloat64(p.batches); v != 2 {
		t.Errorf("expected 2 batches but got %f", v)
	}
	if v := testutil.ToFloat64(p.learningRate); v != 0.0025 {
		t.Errorf("expected lr 0.0025 but got %f", v)
	}
	if v := testutil.ToFloat64(p.neighborScore.WithLabelValues("king", "2")); v != 0.7 {
		t.Errorf("expected score 0.7 but got %f", v)
	}

	if _, err := NewPromSink(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	p.Close()
	if _, err := NewPromSink(reg); err != nil {
		t.Errorf("registration after close should succeed: %v", err)
	}
}

func TestSQLStore(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLStore(filepath.Join(dir, "runs.sqlite3"), "test", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if store.RunID == "" {
		t.Fatal("missing run id")
	}
	for i, loss := range []float64{5, 4.5, 4.75} {
		if err := store.LogEpoch(EpochMetrics{Epoch: i + 1, Loss: loss}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.LogBatch(BatchMetrics{Step: 0, Loss: 6}); err != nil {
		t.Fatal(err)
	}
	losses, err := store.EpochLosses()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(losses, []float64{5, 4.5, 4.75}) {
		t.Errorf("unexpected losses %v", losses)
	}

	store.LogSimilar("car", []Neighbor{{"bus", 0.5}, {"van", 0.4}})
	store.LogSimilar("car", []Neighbor{{"truck", 0.75}})
	neighbors, err := store.Neighbors("car")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(neighbors, []Neighbor{{"truck", 0.75}}) {
		t.Errorf("unexpected neighbors %v", neighbors)
	}
}

func TestDescribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.bin")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	a, err := Describe(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Size != 3 {
		t.Errorf("expected size 3 but got %d", a.Size)
	}
	const abcHash = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if a.SHA256 != abcHash {
		t.Errorf("unexpected hash %s", a.SHA256)
	}
	if _, err := Describe(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
