package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/farosearch/faro/internal/domain"
)

// SyncFTS repopulates the document's full-text index from its normalized
// table and issues the rebuild and optimize control commands. It returns the
// number of rows inserted by the populate step. Errors are fatal to the
// sync command; there are no retries.
func (ing *Ingestor) SyncFTS(ctx context.Context, doc *domain.Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	cols := strings.Join(append([]string{"vec_input"}, doc.PlainFields()...), ", ")

	populate := fmt.Sprintf(
		"INSERT INTO %s(rowid, %s) SELECT id, %s FROM %s",
		doc.FTSTable(), cols, cols, doc.Table(),
	)

	res, err := ing.db.ExecContext(ctx, populate)
	if err != nil {
		return 0, fmt.Errorf("populating %s: %w", doc.FTSTable(), err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading fts row count: %w", err)
	}

	for _, command := range []string{"rebuild", "optimize"} {
		stmt := fmt.Sprintf("INSERT INTO %s(%s) VALUES (?)", doc.FTSTable(), doc.FTSTable())
		if _, err := ing.db.ExecContext(ctx, stmt, command); err != nil {
			return inserted, fmt.Errorf("fts %s on %s: %w", command, doc.FTSTable(), err)
		}
	}

	return inserted, nil
}
