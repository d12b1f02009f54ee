package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/embedding"
	"github.com/farosearch/faro/internal/schema"
	"github.com/farosearch/faro/internal/vec"
)

// maxInflightChunks caps how many chunk tasks run concurrently against the
// embedding provider.
const maxInflightChunks = 6

// Embedder is the provider slice the vector sync needs. Satisfied by
// *embedding.Client.
type Embedder interface {
	EmbedBatch(ctx context.Context, ids []int64, texts []string, backoffBase uint, progress chan<- embedding.Progress) ([]embedding.Pair, error)
}

// VecSyncStats aggregates a vector synchronization run.
type VecSyncStats struct {
	Inserted int64
	// MeanChunkMillis is the average wall-clock time per chunk, summed over
	// per-chunk durations.
	MeanChunkMillis float64
}

// SyncVectors reads every (id, vec_input) row of the normalized table,
// chunks them, embeds each chunk through client with at most
// maxInflightChunks chunks in flight, and inserts the resulting vectors into
// the vector table inside short per-chunk transactions.
//
// A failed chunk is logged and skipped; the remaining chunks continue and
// the aggregate stats are still returned. After synchronization the partial
// payload index is ensured.
func (ing *Ingestor) SyncVectors(ctx context.Context, doc *domain.Document, client Embedder, backoffBase uint, chunkSize int) (VecSyncStats, error) {
	if err := doc.Validate(); err != nil {
		return VecSyncStats{}, err
	}

	if chunkSize <= 0 {
		chunkSize = 256
	}

	ids, texts, err := ing.payloadRows(ctx, doc)
	if err != nil {
		return VecSyncStats{}, err
	}

	ing.log.WithFields(logrus.Fields{
		"document": doc.Name,
		"entries":  len(ids),
	}).Info("syncing vector index")

	var (
		inserted    atomic.Int64
		chunkMillis atomic.Int64
		chunks      int
		// insertMu serializes the per-chunk insert transactions; SQLite
		// admits one writer at a time.
		insertMu sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInflightChunks)

	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		chunkIDs := ids[start:end]
		chunkTexts := texts[start:end]
		chunkNum := chunks + 1
		chunks++

		g.Go(func() error {
			chunkStart := time.Now()

			progress := make(chan embedding.Progress, 16)
			done := make(chan struct{})

			go func() {
				defer close(done)

				for msg := range progress {
					ing.log.WithFields(logrus.Fields{
						"chunk": chunkNum,
					}).Info(msg.String())
				}
			}()

			pairs, err := client.EmbedBatch(gctx, chunkIDs, chunkTexts, backoffBase, progress)

			close(progress)
			<-done

			if err != nil {
				// Per-chunk failures never abort the run.
				ing.log.WithError(err).WithField("chunk", chunkNum).Error("chunk embedding failed, skipping")

				return nil
			}

			insertMu.Lock()
			n, err := ing.insertChunk(gctx, doc, pairs)
			insertMu.Unlock()

			if err != nil {
				ing.log.WithError(err).WithField("chunk", chunkNum).Error("chunk insert failed, skipping")

				return nil
			}

			inserted.Add(n)
			chunkMillis.Add(time.Since(chunkStart).Milliseconds())

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return VecSyncStats{}, err
	}

	if err := schema.EnsurePayloadIndex(ctx, ing.db, doc); err != nil {
		return VecSyncStats{}, err
	}

	stats := VecSyncStats{Inserted: inserted.Load()}
	if chunks > 0 {
		stats.MeanChunkMillis = float64(chunkMillis.Load()) / float64(chunks)
	}

	return stats, nil
}

// payloadRows loads every (id, vec_input) pair of the normalized table into
// memory.
func (ing *Ingestor) payloadRows(ctx context.Context, doc *domain.Document) ([]int64, []string, error) {
	stmt := fmt.Sprintf("SELECT id, vec_input FROM %s", doc.Table())

	rows, err := ing.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("reading payload rows from %s: %w", doc.Table(), err)
	}
	defer rows.Close()

	var (
		ids   []int64
		texts []string
	)

	for rows.Next() {
		var (
			id   int64
			text string
		)

		if err := rows.Scan(&id, &text); err != nil {
			return nil, nil, fmt.Errorf("scanning payload row: %w", err)
		}

		ids = append(ids, id)
		texts = append(texts, text)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating payload rows: %w", err)
	}

	return ids, texts, nil
}

// insertChunk writes one chunk's vectors inside a short transaction.
func (ing *Ingestor) insertChunk(ctx context.Context, doc *domain.Document, pairs []embedding.Pair) (int64, error) {
	tx, err := ing.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	insert := fmt.Sprintf("INSERT INTO %s(row_id, vec_input_embedding) VALUES (?, ?)", doc.VecTable())

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("preparing vector insert: %w", err)
	}
	defer stmt.Close()

	var n int64

	for _, pair := range pairs {
		if _, err := stmt.ExecContext(ctx, pair.ID, vec.Encode(pair.Vector)); err != nil {
			return 0, fmt.Errorf("inserting vector for row %d: %w", pair.ID, err)
		}

		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing chunk: %w", err)
	}

	return n, nil
}
