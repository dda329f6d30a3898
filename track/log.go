package track

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogSink writes metrics to a logger.
type LogSink struct {
	Log logrus.FieldLogger
}

// LogBatch logs batch metrics at debug level.
func (l *LogSink) LogBatch(m BatchMetrics) error {
	l.Log.WithFields(logrus.Fields{
		"step":     m.Step,
		"loss":     fmt.Sprintf("%.4f", m.Loss),
		"progress": fmt.Sprintf("%.3f", m.EpochProgress),
		"lr":       m.LearningRate,
	}).Debug("batch")
	return nil
}

// LogEpoch logs the epoch summary.
func (l *LogSink) LogEpoch(m EpochMetrics) error {
	l.Log.WithFields(logrus.Fields{
		"epoch":   m.Epoch,
		"loss":    fmt.Sprintf("%.4f", m.Loss),
		"minutes": fmt.Sprintf("%.2f", m.Minutes),
		"lr":      m.LearningRate,
	}).Info("epoch finished")
	return nil
}

// LogSimilar logs a ranked similarity table on one
// line.
func (l *LogSink) LogSimilar(word string, neighbors []Neighbor) error {
	var lines []string
	for i, n := range neighbors {
		lines = append(lines, fmt.Sprintf("%d. %s (%.3f)", i+1, n.Word, n.Score))
	}
	l.Log.WithField("word", word).Infof("top %d similar words: %s", len(neighbors),
		strings.Join(lines, ", "))
	return nil
}

// LogArtifacts logs one line per saved file.
func (l *LogSink) LogArtifacts(name string, files []Artifact) error {
	for _, f := range files {
		l.Log.WithFields(logrus.Fields{
			"artifact": name,
			"path":     f.Path,
			"bytes":    f.Size,
			"sha256":   f.SHA256,
		}).Info("saved artifact")
	}
	return nil
}

// Close does nothing.
func (l *LogSink) Close() error {
	return nil
}
