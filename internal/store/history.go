package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/farosearch/faro/internal/query"
)

// HistoryStore reads and deletes search history rows. Inserts and upserts go
// through the write-serializer, never through this store.
type HistoryStore struct {
	Base
}

// NewHistoryStore creates a HistoryStore.
func NewHistoryStore(base Base) *HistoryStore {
	return &HistoryStore{Base: base}
}

// HistoryEntry is the summary view of one remembered search.
type HistoryEntry struct {
	ID    int64  `json:"id"`
	Query string `json:"query"`
}

// HistoryDetail expands an entry with the parameters it ran with.
type HistoryDetail struct {
	ID           int64   `json:"id"`
	Query        string  `json:"query"`
	Filters      string  `json:"filters,omitempty"`
	Strategy     string  `json:"strategy"`
	PesoFTS      float64 `json:"peso_fts"`
	PesoSemantic float64 `json:"peso_semantic"`
	Neighbors    int     `json:"neighbors"`
	Timestamp    string  `json:"timestamp"`
}

// Summary lists {id, query} for a document, newest first.
func (s *HistoryStore) Summary(ctx context.Context, doc string) ([]HistoryEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("history summary: %w", err)
	}
	defer handle.Release()

	rows, err := handle.Conn().QueryContext(ctx,
		"SELECT id, query FROM historial WHERE doc = ? ORDER BY timestamp DESC", doc)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, 16)

	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Query); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}

	return entries, nil
}

// Detailed lists history entries with strategy and weights, newest first.
// The stored search string is re-parsed so the free-text query and its
// filters are reported separately.
func (s *HistoryStore) Detailed(ctx context.Context, doc string) ([]HistoryDetail, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("history detail: %w", err)
	}
	defer handle.Release()

	rows, err := handle.Conn().QueryContext(ctx,
		`SELECT id, query, strategy, peso_fts, peso_semantic, neighbors, timestamp
		 FROM historial WHERE doc = ? ORDER BY timestamp DESC`, doc)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryDetail, 0, 16)

	for rows.Next() {
		var (
			d         HistoryDetail
			raw       string
			timestamp string
		)

		if err := rows.Scan(&d.ID, &raw, &d.Strategy, &d.PesoFTS, &d.PesoSemantic, &d.Neighbors, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		d.Query, d.Filters = splitStoredQuery(raw)
		d.Timestamp = formatTimestamp(timestamp)

		entries = append(entries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}

	return entries, nil
}

// Delete removes one history entry by its exact search string.
func (s *HistoryStore) Delete(ctx context.Context, doc, searchStr string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("history delete: %w", err)
	}
	defer handle.Release()

	if _, err := handle.Conn().ExecContext(ctx,
		"DELETE FROM historial WHERE query = ? AND doc = ?", searchStr, doc); err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}

	return nil
}

// splitStoredQuery re-parses a stored search string into its free-text part
// and a rendered filter list. Unparseable strings come back whole.
func splitStoredQuery(raw string) (text, filters string) {
	q, err := query.Parse("query:" + raw)
	if err != nil {
		return raw, ""
	}

	if len(q.Constraints) == 0 {
		return q.Query, ""
	}

	full := q.String()
	rendered, _ := strings.CutPrefix(full, "query: "+q.Query+", ")

	return q.Query, rendered
}

// formatTimestamp converts the SQLite "YYYY-MM-DD HH:MM:SS" form to RFC3339;
// unexpected layouts pass through untouched.
func formatTimestamp(ts string) string {
	t, err := time.Parse("2006-01-02 15:04:05", ts)
	if err != nil {
		return ts
	}

	return t.Format(time.RFC3339)
}
