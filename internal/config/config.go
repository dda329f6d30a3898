package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all training configuration.
//
// A Config is passed by value and never mutated once a
// run has started.
type Config struct {
	Data  DataConfig
	Model ModelConfig
	Train TrainConfig
	Track TrackConfig
}

// DataConfig holds input and artifact paths.
type DataConfig struct {
	Corpus     string
	Vocab      string
	BestModel  string
	FinalModel string
	Embeddings string
}

// ModelConfig holds vocabulary and architecture settings.
type ModelConfig struct {
	MinWordCount int
	ContextSize  int
	EmbeddingDim int
}

// TrainConfig holds optimization settings.
type TrainConfig struct {
	BatchSize       int
	LearningRate    float64
	WeightDecay     float64
	MaxGradNorm     float64
	Epochs          int
	Patience        int
	PlateauPatience int
	PlateauFactor   float64
	Seed            int64
	Shuffle         bool
	Workers         int
	Prefetch        int
	LogEvery        int
	EvalEvery       int
	EvalWords       []string
	TopN            int
}

// TrackConfig holds observability settings.
type TrackConfig struct {
	LogLevel    string
	RunDB       string // empty disables the sqlite run store
	MetricsAddr string // empty disables the /metrics endpoint
	Project     string
}

// Load reads configuration from environment variables with
// the defaults used for text8.
func Load() Config {
	dataDir := getenv("CBOW_DATA_DIR", "data")
	return Config{
		Data: DataConfig{
			Corpus:     getenv("CBOW_CORPUS", filepath.Join(dataDir, "text8")),
			Vocab:      getenv("CBOW_VOCAB_PATH", filepath.Join(dataDir, "text8_vocab.json")),
			BestModel:  getenv("CBOW_BEST_MODEL_PATH", filepath.Join(dataDir, "best_model.ckpt")),
			FinalModel: getenv("CBOW_MODEL_PATH", filepath.Join(dataDir, "text8_cbow_model.ckpt")),
			Embeddings: getenv("CBOW_EMBEDDINGS_PATH", filepath.Join(dataDir, "text8_embeddings.npy")),
		},
		Model: ModelConfig{
			MinWordCount: getenvInt("CBOW_MIN_WORD_COUNT", 5),
			ContextSize:  getenvInt("CBOW_CONTEXT_SIZE", 5),
			EmbeddingDim: getenvInt("CBOW_EMBEDDING_DIM", 300),
		},
		Train: TrainConfig{
			BatchSize:       getenvInt("CBOW_BATCH_SIZE", 1024),
			LearningRate:    getenvFloat("CBOW_LR", 0.005),
			WeightDecay:     getenvFloat("CBOW_WEIGHT_DECAY", 1e-5),
			MaxGradNorm:     getenvFloat("CBOW_MAX_GRAD_NORM", 1),
			Epochs:          getenvInt("CBOW_EPOCHS", 5),
			Patience:        getenvInt("CBOW_PATIENCE", 5),
			PlateauPatience: getenvInt("CBOW_PLATEAU_PATIENCE", 2),
			PlateauFactor:   getenvFloat("CBOW_PLATEAU_FACTOR", 0.5),
			Seed:            int64(getenvInt("CBOW_SEED", 42)),
			Shuffle:         getenvBool("CBOW_SHUFFLE", true),
			Workers:         getenvInt("CBOW_WORKERS", 4),
			Prefetch:        getenvInt("CBOW_PREFETCH", 8),
			LogEvery:        getenvInt("CBOW_LOG_EVERY", 500),
			EvalEvery:       getenvInt("CBOW_EVAL_EVERY", 2),
			EvalWords:       getenvList("CBOW_EVAL_WORDS", []string{"king", "queen", "apple", "computer", "car", "human"}),
			TopN:            getenvInt("CBOW_TOP_N", 10),
		},
		Track: TrackConfig{
			LogLevel:    getenv("CBOW_LOG_LEVEL", "info"),
			RunDB:       getenv("CBOW_RUN_DB", filepath.Join(dataDir, "runs.sqlite3")),
			MetricsAddr: os.Getenv("CBOW_METRICS_ADDR"),
			Project:     getenv("CBOW_PROJECT", "word2vec-cbow"),
		},
	}
}

// Validate checks that every size is usable.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	check(c.Data.Corpus != "", "corpus path is empty")
	check(c.Model.MinWordCount >= 1, "min word count must be at least 1")
	check(c.Model.ContextSize >= 1, "context size must be at least 1")
	check(c.Model.EmbeddingDim >= 1, "embedding dim must be at least 1")
	check(c.Train.BatchSize >= 1, "batch size must be at least 1")
	check(c.Train.LearningRate > 0, "learning rate must be positive")
	check(c.Train.WeightDecay >= 0, "weight decay must not be negative")
	check(c.Train.MaxGradNorm > 0, "max grad norm must be positive")
	check(c.Train.Epochs >= 1, "epochs must be at least 1")
	check(c.Train.Patience >= 1, "patience must be at least 1")
	check(c.Train.PlateauPatience >= 0, "plateau patience must not be negative")
	check(c.Train.PlateauFactor > 0 && c.Train.PlateauFactor < 1, "plateau factor must be in (0, 1)")
	check(c.Train.Workers >= 1, "workers must be at least 1")
	check(c.Train.Prefetch >= 1, "prefetch must be at least 1")
	check(c.Train.LogEvery >= 1, "log interval must be at least 1")
	check(c.Train.EvalEvery >= 1, "eval interval must be at least 1")
	check(c.Train.TopN >= 1, "top n must be at least 1")
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// JSON encodes the config for embedding in artifacts.
func (c Config) JSON() []byte {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("marshal config: %v", err))
	}
	return data
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getenvList splits a comma-separated variable.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var res []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}
