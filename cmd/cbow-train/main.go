// Command cbow-train trains CBOW word embeddings on a
// whitespace-separated corpus such as text8.
//
// Every flag defaults to the matching CBOW_* environment
// variable, or to the text8 setup if it is unset.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/FilippoRomeo/wordembed"
	"github.com/FilippoRomeo/wordembed/cbow"
	"github.com/FilippoRomeo/wordembed/internal/config"
	"github.com/FilippoRomeo/wordembed/track"
	"github.com/klauspost/cpuid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	if os.Getenv("CBOW_WORKERS") == "" && cpuid.CPU.LogicalCores > 0 {
		cfg.Train.Workers = cpuid.CPU.LogicalCores
	}

	var evalWords string
	var resume string
	var cpuProfile string
	flag.StringVar(&cfg.Data.Corpus, "corpus", cfg.Data.Corpus, "path to the training corpus")
	flag.StringVar(&cfg.Data.Vocab, "vocab", cfg.Data.Vocab, "vocabulary JSON output path")
	flag.StringVar(&cfg.Data.BestModel, "best", cfg.Data.BestModel, "best checkpoint output path")
	flag.StringVar(&cfg.Data.FinalModel, "model", cfg.Data.FinalModel, "final model output path")
	flag.StringVar(&cfg.Data.Embeddings, "embeddings", cfg.Data.Embeddings, "embedding .npy output path")
	flag.IntVar(&cfg.Model.MinWordCount, "min-count", cfg.Model.MinWordCount, "minimum word frequency")
	flag.IntVar(&cfg.Model.ContextSize, "context", cfg.Model.ContextSize, "context words on each side")
	flag.IntVar(&cfg.Model.EmbeddingDim, "dim", cfg.Model.EmbeddingDim, "embedding dimensionality")
	flag.IntVar(&cfg.Train.BatchSize, "batch", cfg.Train.BatchSize, "batch size")
	flag.Float64Var(&cfg.Train.LearningRate, "lr", cfg.Train.LearningRate, "initial learning rate")
	flag.Float64Var(&cfg.Train.WeightDecay, "weight-decay", cfg.Train.WeightDecay, "AdamW weight decay")
	flag.Float64Var(&cfg.Train.MaxGradNorm, "max-grad-norm", cfg.Train.MaxGradNorm, "gradient clipping norm")
	flag.IntVar(&cfg.Train.Epochs, "epochs", cfg.Train.Epochs, "maximum number of epochs")
	flag.IntVar(&cfg.Train.Patience, "patience", cfg.Train.Patience, "early stopping patience")
	flag.Int64Var(&cfg.Train.Seed, "seed", cfg.Train.Seed, "random seed")
	flag.BoolVar(&cfg.Train.Shuffle, "shuffle", cfg.Train.Shuffle, "shuffle examples every epoch")
	flag.IntVar(&cfg.Train.Workers, "workers", cfg.Train.Workers, "batch assembly goroutines")
	flag.IntVar(&cfg.Train.TopN, "top", cfg.Train.TopN, "neighbors per probe word")
	flag.StringVar(&evalWords, "eval-words", strings.Join(cfg.Train.EvalWords, ","),
		"comma-separated probe words")
	flag.StringVar(&cfg.Track.LogLevel, "log-level", cfg.Track.LogLevel, "logrus level")
	flag.StringVar(&cfg.Track.RunDB, "run-db", cfg.Track.RunDB, "sqlite run store (empty to disable)")
	flag.StringVar(&cfg.Track.MetricsAddr, "metrics-addr", cfg.Track.MetricsAddr,
		"address to serve /metrics on (empty to disable)")
	flag.StringVar(&resume, "resume", "", "checkpoint to resume from")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to file")
	flag.Parse()
	cfg.Train.EvalWords = splitWords(evalWords)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Track.LogLevel); err != nil {
		log.WithError(err).Warn("unknown log level, using info")
	} else {
		log.SetLevel(level)
	}
	if err := run(log, cfg, resume, cpuProfile); err != nil {
		if errors.Is(err, cbow.ErrDiverged) {
			log.Error("training diverged; no final model was written")
		}
		log.Fatal(err)
	}
}

// run trains a model, releasing every resource it opened
// before returning.
func run(log *logrus.Logger, cfg config.Config, resume, cpuProfile string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	logDevice(log, cfg)

	var tok wordembed.Tokenizer
	tokens, err := tok.TokenizeFile(cfg.Data.Corpus)
	if err != nil {
		return err
	}
	vocab, err := wordembed.BuildVocab(wordembed.CountSlice(tokens), cfg.Model.MinWordCount)
	if err != nil {
		return err
	}
	if err := vocab.WriteJSON(cfg.Data.Vocab); err != nil {
		return err
	}
	ids := vocab.IDs(tokens)
	log.WithFields(logrus.Fields{
		"tokens": len(tokens),
		"kept":   len(ids),
		"vocab":  vocab.Len(),
	}).Info("built vocabulary")

	sink, closeSinks := openSinks(log, cfg)
	defer closeSinks()

	trainer, err := cbow.NewTrainer(cfg, vocab, ids, sink, log)
	if err != nil {
		return err
	}
	if resume != "" {
		ckpt, err := cbow.LoadCheckpoint(resume)
		if err != nil {
			return err
		}
		if err := trainer.Restore(ckpt); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"epoch": ckpt.Epoch, "loss": ckpt.Loss}).
			Info("resuming from checkpoint")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := trainer.Run(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"epochs":      res.Epochs(),
		"best_loss":   res.BestLoss,
		"early_stop":  res.EarlyStop,
		"interrupted": res.Interrupted,
	}).Info("done")
	for _, a := range res.Artifacts {
		log.WithFields(logrus.Fields{"size": a.Size, "sha256": a.SHA256}).Info(a.Path)
	}
	return nil
}

func splitWords(s string) []string {
	var res []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			res = append(res, w)
		}
	}
	return res
}

func logDevice(log logrus.FieldLogger, cfg config.Config) {
	log.WithFields(logrus.Fields{
		"cpu":     cpuid.CPU.BrandName,
		"cores":   cpuid.CPU.PhysicalCores,
		"threads": cpuid.CPU.LogicalCores,
		"avx2":    cpuid.CPU.Supports(cpuid.AVX2),
		"avx512":  cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
		"workers": cfg.Train.Workers,
		"dim":     cfg.Model.EmbeddingDim,
		"batch":   cfg.Train.BatchSize,
		"context": cfg.Model.ContextSize,
		"project": cfg.Track.Project,
		"run_db":  cfg.Track.RunDB,
	}).Info("device")
}

// openSinks sets up every configured metric sink.
//
// Sinks that fail to open are skipped with a warning.
func openSinks(log *logrus.Logger, cfg config.Config) (track.Sink, func()) {
	sinks := []track.Sink{&track.LogSink{Log: log}}
	var closers []func()

	reg := prometheus.NewRegistry()
	if prom, err := track.NewPromSink(reg); err != nil {
		log.WithError(err).Warn("metrics disabled")
	} else {
		sinks = append(sinks, prom)
	}
	if cfg.Track.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Track.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
		log.WithField("addr", cfg.Track.MetricsAddr).Info("serving metrics")
	}

	if cfg.Track.RunDB != "" {
		store, err := track.OpenSQLStore(cfg.Track.RunDB, cfg.Track.Project, cfg.JSON())
		if err != nil {
			log.WithError(err).Warn("run store disabled")
		} else {
			sinks = append(sinks, store)
			log.WithField("run", store.RunID).Info("recording run")
		}
	}

	multi := track.NewMulti(log, sinks...)
	return multi, func() {
		multi.Close()
		for _, c := range closers {
			c()
		}
	}
}
