package cbow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/FilippoRomeo/wordembed"
	"github.com/FilippoRomeo/wordembed/internal/config"
	"github.com/FilippoRomeo/wordembed/track"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec32"
)

// State is the phase of a Trainer.
type State int

const (
	Idle State = iota
	EpochRunning
	EpochEvaluating
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case EpochRunning:
		return "epoch-running"
	case EpochEvaluating:
		return "epoch-evaluating"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result summarizes a finished run.
type Result struct {
	// EpochLosses holds the mean loss of every epoch that
	// ran, in order.
	EpochLosses []float64
	BestLoss    float64

	// EarlyStop is set when training ended because the loss
	// stopped improving.
	EarlyStop bool

	// Interrupted is set when the context was done at an
	// epoch boundary.
	Interrupted bool

	Artifacts []track.Artifact
}

// Epochs returns the number of epochs that ran.
func (r *Result) Epochs() int {
	return len(r.EpochLosses)
}

// A Trainer runs the CBOW optimization loop.
//
// The model and optimizer are only touched by the
// goroutine calling Run; batch assembly happens on a
// Prefetcher pool.
type Trainer struct {
	Config    config.Config
	Vocab     wordembed.Vocab
	Sampler   *Sampler
	Model     *Model
	Optimizer *AdamW
	Plateau   *Plateau
	Stopper   *Stopper
	Sink      track.Sink
	Log       logrus.FieldLogger

	// StatusFunc, if non-nil, is called after every epoch
	// with the mean epoch loss.
	StatusFunc func(epoch int, loss float64)

	state      State
	gen        *rand.Rand
	numSteps   int
	firstEpoch int
}

// NewTrainer sets up a run over a token sequence.
//
// If sink is nil, metrics are only logged.
func NewTrainer(cfg config.Config, vocab wordembed.Vocab, tokens []int, sink track.Sink,
	log logrus.FieldLogger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocab.Len() == 0 {
		return nil, wordembed.ErrEmptyVocab
	}
	sampler := NewSampler(tokens, cfg.Model.ContextSize)
	if sampler.Len() == 0 {
		return nil, fmt.Errorf("corpus of %d tokens is too short for context size %d",
			len(tokens), cfg.Model.ContextSize)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if sink == nil {
		sink = &track.LogSink{Log: log}
	}
	gen := rand.New(rand.NewSource(cfg.Train.Seed))
	return &Trainer{
		Config:     cfg,
		Vocab:      vocab,
		Sampler:    sampler,
		Model:      NewModel(anyvec32.CurrentCreator(), vocab.Len(), cfg.Model.EmbeddingDim, gen),
		Optimizer:  NewAdamW(cfg.Train.LearningRate, cfg.Train.WeightDecay, true),
		Plateau:    NewPlateau(cfg.Train.PlateauFactor, cfg.Train.PlateauPatience),
		Stopper:    NewStopper(cfg.Train.Patience),
		Sink:       sink,
		Log:        log,
		gen:        gen,
		firstEpoch: 1,
	}, nil
}

// State returns the current phase.
func (t *Trainer) State() State {
	return t.state
}

// Restore continues from a checkpoint.
// The next epoch run is the one after the checkpoint's.
func (t *Trainer) Restore(ckpt *Checkpoint) error {
	if ckpt.Model.VocabSize != t.Vocab.Len() || ckpt.Model.Dim != t.Config.Model.EmbeddingDim {
		return fmt.Errorf("checkpoint shape %dx%d does not match %dx%d", ckpt.Model.VocabSize,
			ckpt.Model.Dim, t.Vocab.Len(), t.Config.Model.EmbeddingDim)
	}
	t.Model = ckpt.Model
	t.Optimizer = ckpt.Optimizer
	t.Stopper.Best = ckpt.Loss
	t.Plateau.Best = ckpt.Loss
	t.firstEpoch = ckpt.Epoch + 1
	return nil
}

// Run trains until the epoch limit, early stopping, or
// cancellation of ctx, whichever comes first.
//
// Cancellation is only checked between epochs.
// Unless training diverges or a checkpoint cannot be
// written, the final model and embedding export are saved.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	defer func() {
		t.state = Stopped
	}()

	res := &Result{BestLoss: t.Stopper.Best}
	start := time.Now()
	cfg := t.Config.Train
	t.Log.WithFields(logrus.Fields{
		"examples": t.Sampler.Len(),
		"vocab":    t.Vocab.Len(),
		"dim":      t.Model.Dim,
	}).Info("starting training")

	for epoch := t.firstEpoch; epoch <= cfg.Epochs; epoch++ {
		if ctx.Err() != nil {
			t.Log.WithField("epoch", epoch).Warn("interrupted, saving final model")
			res.Interrupted = true
			break
		}

		loss, err := t.runEpoch(epoch)
		if err != nil {
			return res, err
		}
		res.EpochLosses = append(res.EpochLosses, loss)

		t.state = EpochEvaluating
		newRate := t.Plateau.Step(loss, t.Optimizer.Rate)
		if newRate != t.Optimizer.Rate {
			t.Log.WithFields(logrus.Fields{"epoch": epoch, "lr": newRate}).Info("reducing learning rate")
			t.Optimizer.Rate = newRate
		}

		if epoch == 1 || epoch%cfg.EvalEvery == 0 {
			t.reportSimilar()
		}

		t.emit(t.Sink.LogEpoch(track.EpochMetrics{
			Epoch:        epoch,
			Loss:         loss,
			Minutes:      time.Since(start).Minutes(),
			LearningRate: t.Optimizer.Rate,
		}))
		if t.StatusFunc != nil {
			t.StatusFunc(epoch, loss)
		}

		improved, stop := t.Stopper.Observe(loss)
		res.BestLoss = t.Stopper.Best
		if improved {
			ckpt := &Checkpoint{Model: t.Model, Optimizer: t.Optimizer, Loss: loss, Epoch: epoch}
			if err := Save(t.Config.Data.BestModel, ckpt); err != nil {
				return res, err
			}
		} else if stop {
			t.Log.WithField("epoch", epoch).Info("early stopping")
			res.EarlyStop = true
			break
		}
	}

	artifacts, err := t.finish()
	res.Artifacts = artifacts
	if err != nil {
		return res, err
	}
	t.Log.WithField("minutes", fmt.Sprintf("%.2f", time.Since(start).Minutes())).
		Info("training completed")
	return res, nil
}

// Step performs one optimization step on a batch and
// returns the loss before the step.
func (t *Trainer) Step(b *Batch) (float64, error) {
	loss, err := Step(t.Model, t.Optimizer, b, t.Config.Train.MaxGradNorm)
	if err == nil {
		t.numSteps++
	}
	return loss, err
}

// Step computes the loss of a batch, back-propagates it,
// clips the gradient and applies one optimizer update.
//
// It returns ErrDiverged without touching the model if
// the loss or gradient is not finite.
func Step(m *Model, opt *AdamW, b *Batch, maxGradNorm float64) (float64, error) {
	params := m.Parameters()
	lossRes := m.Loss(b.Contexts, b.Targets)
	loss := scalarValue(lossRes.Output())
	if !finite(loss) {
		return loss, ErrDiverged
	}

	c := lossRes.Output().Creator()
	grad := anydiff.NewGrad(params...)
	upstream := c.MakeVector(1)
	upstream.AddScalar(c.MakeNumeric(1))
	lossRes.Propagate(upstream, grad)

	if norm := ClipGrad(grad, maxGradNorm); !finite(norm) {
		return loss, ErrDiverged
	}
	opt.Step(params, grad)
	return loss, nil
}

func (t *Trainer) runEpoch(epoch int) (float64, error) {
	t.state = EpochRunning
	cfg := t.Config.Train

	var order []int
	if cfg.Shuffle {
		order = t.Sampler.Order(t.gen)
	} else {
		order = t.Sampler.Order(nil)
	}
	prefetcher := &Prefetcher{
		Sampler:   t.Sampler,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Queue:     cfg.Prefetch,
	}
	numBatches := prefetcher.NumBatches(len(order))

	// Stopping mid-epoch only happens on errors, so the
	// prefetcher gets its own context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var total float64
	for b := range prefetcher.Batches(ctx, order) {
		loss, err := t.Step(b)
		if err != nil {
			t.Log.WithFields(logrus.Fields{"epoch": epoch, "batch": b.Index, "loss": loss}).
				Error("non-finite training signal")
			return 0, err
		}
		total += loss
		if b.Index%cfg.LogEvery == 0 {
			t.emit(t.Sink.LogBatch(track.BatchMetrics{
				Step:          t.numSteps,
				Loss:          loss,
				EpochProgress: float64(epoch) + float64(b.Index)/float64(numBatches),
				LearningRate:  t.Optimizer.Rate,
			}))
		}
	}
	return total / float64(numBatches), nil
}

func (t *Trainer) reportSimilar() {
	for _, word := range t.Config.Train.EvalWords {
		neighbors, err := Similar(t.Model.Embedding.Vector, t.Vocab, word, t.Config.Train.TopN)
		if errors.Is(err, ErrUnknownWord) {
			t.Log.WithField("word", word).Warn("not in vocabulary")
			continue
		}
		table := make([]track.Neighbor, len(neighbors))
		for i, n := range neighbors {
			table[i] = track.Neighbor{Word: n.Word, Score: n.Score}
		}
		t.emit(t.Sink.LogSimilar(word, table))
	}
}

// finish saves the final model and embedding export and
// records every artifact of the run.
func (t *Trainer) finish() ([]track.Artifact, error) {
	paths := t.Config.Data
	final := &FinalModel{
		Model:     t.Model,
		Optimizer: t.Optimizer,
		Vocab:     t.Vocab,
		Config:    t.Config.JSON(),
	}
	if err := Save(paths.FinalModel, final); err != nil {
		return nil, err
	}
	err := WriteNPY(paths.Embeddings, t.Model.VocabSize, t.Model.Dim,
		vectorFloat32s(t.Model.Embedding.Vector))
	if err != nil {
		return nil, err
	}

	var artifacts []track.Artifact
	for _, path := range []string{paths.FinalModel, paths.BestModel, paths.Embeddings, paths.Vocab} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		a, err := track.Describe(path)
		if err != nil {
			t.Log.WithError(err).Warn("skipping artifact")
			continue
		}
		artifacts = append(artifacts, a)
	}
	t.emit(t.Sink.LogArtifacts("trained-model", artifacts))
	return artifacts, nil
}

func (t *Trainer) emit(err error) {
	if err != nil {
		t.Log.WithError(err).Warn("failed to record metrics")
	}
}
