package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/vec"
)

// vecMatch is one nearest-neighbor hit against the vector table, ranked
// ascending by distance starting at 1.
type vecMatch struct {
	RowID    int64
	Rank     int64
	Distance float64
}

// knnMatches scans the document's vector table and returns the k rows whose
// embeddings are closest to queryVec by cosine distance. The vector table is
// a BLOB column store, so the neighbor scan runs in process; results feed
// the SQL composition as a vec_matches CTE.
func knnMatches(ctx context.Context, conn *sql.Conn, doc *domain.Document, queryVec []float32, k int) ([]vecMatch, error) {
	stmt := fmt.Sprintf("SELECT row_id, vec_input_embedding FROM %s", doc.VecTable())

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", doc.VecTable(), err)
	}
	defer rows.Close()

	var matches []vecMatch

	for rows.Next() {
		var (
			rowID int64
			blob  []byte
		)

		if err := rows.Scan(&rowID, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}

		embedded, err := vec.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowID, err)
		}

		matches = append(matches, vecMatch{
			RowID:    rowID,
			Distance: vec.CosineDistance(queryVec, embedded),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector rows: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })

	if k < len(matches) {
		matches = matches[:k]
	}

	for i := range matches {
		matches[i].Rank = int64(i + 1)
	}

	return matches, nil
}

// vecMatchesCTE renders the vec_matches(row_id, rank_number, distance) CTE
// body for the given neighbor set, with every cell bound by name. An empty
// set renders a zero-row SELECT so the surrounding query stays valid.
func vecMatchesCTE(matches []vecMatch) (body string, args []any) {
	if len(matches) == 0 {
		return "SELECT NULL, NULL, NULL WHERE 0", nil
	}

	rows := make([]string, len(matches))

	for i, m := range matches {
		rows[i] = fmt.Sprintf("(:vm%d_id, :vm%d_rank, :vm%d_dist)", i, i, i)
		args = append(args,
			sql.Named(fmt.Sprintf("vm%d_id", i), m.RowID),
			sql.Named(fmt.Sprintf("vm%d_rank", i), m.Rank),
			sql.Named(fmt.Sprintf("vm%d_dist", i), m.Distance),
		)
	}

	return "VALUES " + strings.Join(rows, ", "), args
}
