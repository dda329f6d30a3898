package track

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/unixpickle/essentials"
)

// PromSink exposes the latest metrics as prometheus
// collectors.
type PromSink struct {
	batchLoss     prometheus.Gauge
	learningRate  prometheus.Gauge
	epochProgress prometheus.Gauge
	batches       prometheus.Counter
	epochLoss     prometheus.Gauge
	epoch         prometheus.Gauge
	epochMinutes  prometheus.Gauge
	neighborScore *prometheus.GaugeVec
	artifactBytes *prometheus.GaugeVec

	reg        prometheus.Registerer
	collectors []prometheus.Collector
}

// NewPromSink creates the collectors and registers them
// with reg.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	p := &PromSink{
		batchLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbow_batch_loss",
			Help: "cross-entropy of the most recently logged batch",
		}),
		learningRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbow_learning_rate",
			Help: "current optimizer learning rate",
		}),
		epochProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbow_epoch_progress",
			Help: "fractional epoch position of the last logged batch",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbow_logged_batches_total",
			Help: "number of batch metric records",
		}),
		epochLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbow_epoch_loss",
			Help: "mean cross-entropy of the last finished epoch",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbow_epoch",
			Help: "index of the last finished epoch",
		}),
		epochMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbow_elapsed_minutes",
			Help: "wall-clock minutes since training started",
		}),
		neighborScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cbow_neighbor_score",
			Help: "cosine similarity of a probe word's ranked neighbors",
		}, []string{"word", "rank"}),
		artifactBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cbow_artifact_bytes",
			Help: "size of saved artifacts",
		}, []string{"artifact", "path"}),
		reg: reg,
	}
	p.collectors = []prometheus.Collector{p.batchLoss, p.learningRate, p.epochProgress,
		p.batches, p.epochLoss, p.epoch, p.epochMinutes, p.neighborScore, p.artifactBytes}
	for i, c := range p.collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range p.collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, essentials.AddCtx("register metrics", err)
		}
	}
	return p, nil
}

// LogBatch updates the batch gauges and counts the
// batch.
func (p *PromSink) LogBatch(m BatchMetrics) error {
	p.batchLoss.Set(m.Loss)
	p.learningRate.Set(m.LearningRate)
	p.epochProgress.Set(m.EpochProgress)
	p.batches.Inc()
	return nil
}

// LogEpoch updates the epoch gauges.
func (p *PromSink) LogEpoch(m EpochMetrics) error {
	p.epochLoss.Set(m.Loss)
	p.epoch.Set(float64(m.Epoch))
	p.epochMinutes.Set(m.Minutes)
	p.learningRate.Set(m.LearningRate)
	return nil
}

// LogSimilar sets the score gauge for each rank of the
// word's table.
func (p *PromSink) LogSimilar(word string, neighbors []Neighbor) error {
	for i, n := range neighbors {
		p.neighborScore.WithLabelValues(word, strconv.Itoa(i+1)).Set(n.Score)
	}
	return nil
}

// LogArtifacts sets the size gauge of each file.
func (p *PromSink) LogArtifacts(name string, files []Artifact) error {
	for _, f := range files {
		p.artifactBytes.WithLabelValues(name, f.Path).Set(float64(f.Size))
	}
	return nil
}

// Close unregisters the collectors.
func (p *PromSink) Close() error {
	for _, c := range p.collectors {
		p.reg.Unregister(c)
	}
	return nil
}
