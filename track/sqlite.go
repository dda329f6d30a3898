package track

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/unixpickle/essentials"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	config      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS batch_metrics (
	run_id         TEXT NOT NULL,
	step           INTEGER NOT NULL,
	loss           REAL NOT NULL,
	epoch_progress REAL NOT NULL,
	learning_rate  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS epoch_metrics (
	run_id        TEXT NOT NULL,
	epoch         INTEGER NOT NULL,
	loss          REAL NOT NULL,
	minutes       REAL NOT NULL,
	learning_rate REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS similarities (
	run_id   TEXT NOT NULL,
	word     TEXT NOT NULL,
	rank     INTEGER NOT NULL,
	neighbor TEXT NOT NULL,
	score    REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS artifacts (
	run_id TEXT NOT NULL,
	name   TEXT NOT NULL,
	path   TEXT NOT NULL,
	size   INTEGER NOT NULL,
	sha256 TEXT NOT NULL
);
`

// SQLStore appends metrics for one run to a sqlite
// database, so that runs can be compared after the fact.
type SQLStore struct {
	RunID string

	lock sync.Mutex
	db   *sql.DB
}

// OpenSQLStore opens (or creates) the database at path
// and starts a new run.
func OpenSQLStore(path, project string, config []byte) (store *SQLStore, err error) {
	defer essentials.AddCtxTo("open run store", &err)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	runID := uuid.New().String()
	_, err = db.Exec(`INSERT INTO runs (id, project, config, started_at) VALUES (?, ?, ?, ?)`,
		runID, project, string(config), now())
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{RunID: runID, db: db}, nil
}

// LogBatch appends a row to batch_metrics.
func (s *SQLStore) LogBatch(m BatchMetrics) error {
	return s.exec(`INSERT INTO batch_metrics VALUES (?, ?, ?, ?, ?)`,
		s.RunID, m.Step, m.Loss, m.EpochProgress, m.LearningRate)
}

// LogEpoch appends a row to epoch_metrics.
func (s *SQLStore) LogEpoch(m EpochMetrics) error {
	return s.exec(`INSERT INTO epoch_metrics VALUES (?, ?, ?, ?, ?)`,
		s.RunID, m.Epoch, m.Loss, m.Minutes, m.LearningRate)
}

// LogSimilar stores a similarity table in a single
// transaction.
func (s *SQLStore) LogSimilar(word string, neighbors []Neighbor) error {
	return s.tx(func(tx *sql.Tx) error {
		for i, n := range neighbors {
			_, err := tx.Exec(`INSERT INTO similarities VALUES (?, ?, ?, ?, ?)`,
				s.RunID, word, i+1, n.Word, n.Score)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LogArtifacts stores the artifact list in a single
// transaction.
func (s *SQLStore) LogArtifacts(name string, files []Artifact) error {
	return s.tx(func(tx *sql.Tx) error {
		for _, f := range files {
			_, err := tx.Exec(`INSERT INTO artifacts VALUES (?, ?, ?, ?, ?)`,
				s.RunID, name, f.Path, f.Size, f.SHA256)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// EpochLosses reads back the epoch losses of the run, in
// epoch order.
func (s *SQLStore) EpochLosses() (losses []float64, err error) {
	defer essentials.AddCtxTo("read epoch losses", &err)
	s.lock.Lock()
	defer s.lock.Unlock()
	rows, err := s.db.Query(`SELECT loss FROM epoch_metrics WHERE run_id = ? ORDER BY epoch`,
		s.RunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var loss float64
		if err := rows.Scan(&loss); err != nil {
			return nil, err
		}
		losses = append(losses, loss)
	}
	return losses, rows.Err()
}

// Neighbors reads back the most recent similarity table
// logged for word.
func (s *SQLStore) Neighbors(word string) (res []Neighbor, err error) {
	defer essentials.AddCtxTo("read neighbors", &err)
	s.lock.Lock()
	defer s.lock.Unlock()
	rows, err := s.db.Query(`SELECT neighbor, score, rank FROM similarities
		WHERE run_id = ? AND word = ? ORDER BY rowid`, s.RunID, word)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n Neighbor
		var rank int
		if err := rows.Scan(&n.Word, &n.Score, &rank); err != nil {
			return nil, err
		}
		if rank == 1 {
			res = res[:0]
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// Close marks the run as finished and closes the database.
func (s *SQLStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, now(), s.RunID)
	if closeErr := s.db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return essentials.AddCtx("close run store", err)
	}
	return nil
}

func (s *SQLStore) exec(query string, args ...interface{}) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *SQLStore) tx(f func(tx *sql.Tx) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
