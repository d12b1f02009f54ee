// Package service hosts the background workers of the search service.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/metrics"
	"github.com/farosearch/faro/internal/search"

	_ "modernc.org/sqlite"
)

// writerQueueSize bounds the pending-write queue. Jobs beyond it are dropped
// with a warning; history writes are best-effort and never surface errors to
// the request path.
const writerQueueSize = 1024

// HistoryJob upserts one search into the history table.
type HistoryJob struct {
	Query        string
	Doc          string
	Strategy     search.Strategy
	PesoFTS      float64
	PesoSemantic float64
	KNeighbors   int
}

// CacheJob is reserved for persisted result caching. Accepted and logged,
// not yet written.
type CacheJob struct {
	Query      string
	ResultJSON string
	ExpiresAt  int64
}

// WriteJob is one unit of work for the writer. Exactly one variant is set.
type WriteJob struct {
	History *HistoryJob
	Cache   *CacheJob
}

// Writer serializes history and cache writes through a single background
// goroutine owning a dedicated connection, so request handlers never contend
// for the database writer.
type Writer struct {
	db   *sql.DB
	log  *logrus.Logger
	jobs chan WriteJob
}

// NewWriter opens the dedicated writer connection.
func NewWriter(dbPath string, log *logrus.Logger) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening writer connection: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()

		return nil, fmt.Errorf("enabling WAL on writer connection: %w", err)
	}

	return &Writer{
		db:   db,
		log:  log,
		jobs: make(chan WriteJob, writerQueueSize),
	}, nil
}

// Enqueue submits a job without blocking. A full queue drops the job with a
// warning.
func (w *Writer) Enqueue(job WriteJob) {
	select {
	case w.jobs <- job:
		metrics.WriteQueueDepth.Set(float64(len(w.jobs)))
	default:
		w.log.Warn("write queue full, dropping job")
	}
}

// RecordSearch enqueues a history upsert for a completed search.
func (w *Writer) RecordSearch(searchStr, doc string, strategy search.Strategy, pesoFTS, pesoSemantic float64, kNeighbors int) {
	w.Enqueue(WriteJob{History: &HistoryJob{
		Query:        searchStr,
		Doc:          doc,
		Strategy:     strategy,
		PesoFTS:      pesoFTS,
		PesoSemantic: pesoSemantic,
		KNeighbors:   kNeighbors,
	}})
}

// Run drains the queue until ctx is cancelled, then processes whatever is
// still pending and closes the connection. Call in a goroutine.
func (w *Writer) Run(ctx context.Context) {
	defer w.db.Close()

	for {
		select {
		case <-ctx.Done():
			w.drain()

			return
		case job := <-w.jobs:
			metrics.WriteQueueDepth.Set(float64(len(w.jobs)))
			w.process(job)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

// process applies one job. Failures are logged and never propagated.
func (w *Writer) process(job WriteJob) {
	switch {
	case job.History != nil:
		h := job.History

		_, err := w.db.Exec(
			"INSERT OR REPLACE INTO historial(query, strategy, doc, peso_fts, peso_semantic, neighbors) VALUES (?, ?, ?, ?, ?, ?)",
			h.Query, h.Strategy.String(), h.Doc, h.PesoFTS, h.PesoSemantic, h.KNeighbors,
		)
		if err != nil {
			w.log.WithError(err).Warn("history write failed")

			return
		}

		w.log.WithField("query", h.Query).Debug("history updated")
	case job.Cache != nil:
		w.log.WithField("query", job.Cache.Query).Debug("cache write jobs are not persisted yet")
	default:
		w.log.Warn("empty write job dropped")
	}
}
