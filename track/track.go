// Package track records training metrics and artifacts.
//
// Every Sink is best-effort from the point of view of the
// trainer: errors are reported but never stop training.
package track

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/essentials"
)

// BatchMetrics is emitted periodically during an epoch.
type BatchMetrics struct {
	Step          int
	Loss          float64
	EpochProgress float64
	LearningRate  float64
}

// EpochMetrics is emitted once per finished epoch.
type EpochMetrics struct {
	Epoch        int
	Loss         float64
	Minutes      float64
	LearningRate float64
}

// Neighbor is one row of a similarity table.
type Neighbor struct {
	Word  string
	Score float64
}

// Artifact describes a file produced by a run.
type Artifact struct {
	Path   string
	Size   int64
	SHA256 string
}

// A Sink receives training metrics.
type Sink interface {
	LogBatch(m BatchMetrics) error
	LogEpoch(m EpochMetrics) error
	LogSimilar(word string, neighbors []Neighbor) error
	LogArtifacts(name string, files []Artifact) error
	Close() error
}

// Describe computes the Artifact for a file.
func Describe(path string) (a Artifact, err error) {
	defer essentials.AddCtxTo("describe artifact", &err)
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Path:   filepath.Clean(path),
		Size:   n,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Multi fans metrics out to several sinks.
//
// Failures are logged as warnings and never returned, so
// a broken sink degrades to whatever sinks still work.
type Multi struct {
	Sinks []Sink
	Log   logrus.FieldLogger
}

// NewMulti creates a Multi, skipping nil sinks.
func NewMulti(log logrus.FieldLogger, sinks ...Sink) *Multi {
	res := &Multi{Log: log}
	for _, s := range sinks {
		if s != nil {
			res.Sinks = append(res.Sinks, s)
		}
	}
	return res
}

// LogBatch forwards to every sink.
func (m *Multi) LogBatch(b BatchMetrics) error {
	m.each("batch", func(s Sink) error { return s.LogBatch(b) })
	return nil
}

// LogEpoch forwards to every sink.
func (m *Multi) LogEpoch(e EpochMetrics) error {
	m.each("epoch", func(s Sink) error { return s.LogEpoch(e) })
	return nil
}

// LogSimilar forwards to every sink.
func (m *Multi) LogSimilar(word string, neighbors []Neighbor) error {
	m.each("similar", func(s Sink) error { return s.LogSimilar(word, neighbors) })
	return nil
}

// LogArtifacts forwards to every sink.
func (m *Multi) LogArtifacts(name string, files []Artifact) error {
	m.each("artifacts", func(s Sink) error { return s.LogArtifacts(name, files) })
	return nil
}

// Close closes every sink.
func (m *Multi) Close() error {
	m.each("close", func(s Sink) error { return s.Close() })
	return nil
}

func (m *Multi) each(what string, f func(s Sink) error) {
	for _, s := range m.Sinks {
		if err := f(s); err != nil && m.Log != nil {
			m.Log.WithError(err).WithField("sink", what).Warn("metric sink failed")
		}
	}
}
