package search

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/dbpool"
	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/embedding"
	"github.com/farosearch/faro/internal/metrics"
	"github.com/farosearch/faro/internal/query"
)

// rrfK is the smoothing constant of the reciprocal rank fusion formula.
const rrfK = 60

// unknownCell is rendered for NULL or untyped result cells.
const unknownCell = "Tipo de dato desconocido"

// highlightOpen and highlightClose wrap matched terms in FTS results.
const (
	highlightOpen  = `<b style="color: green;">`
	highlightClose = `</b>`
)

// Embedder produces a query-time embedding. Satisfied by *embedding.Client.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// HistoryRecorder receives the parameters of a completed search. Satisfied
// by the write-serializer; recording is asynchronous and best-effort.
type HistoryRecorder interface {
	RecordSearch(searchStr, doc string, strategy Strategy, pesoFTS, pesoSemantic float64, kNeighbors int)
}

// Params is one search request.
type Params struct {
	SearchStr    string
	Document     string
	Strategy     Strategy
	PesoFTS      float64
	PesoSemantic float64
	KNeighbors   int
}

// Table is the shaped search result.
type Table struct {
	Msg     string     `json:"msg"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Engine evaluates searches against the pooled database.
type Engine struct {
	pool     *dbpool.Pool
	docs     []domain.Document
	embedder Embedder
	cache    *embedding.Cache
	history  HistoryRecorder
	log      *logrus.Logger
}

// NewEngine wires a search engine over its collaborators.
func NewEngine(pool *dbpool.Pool, docs []domain.Document, embedder Embedder, cache *embedding.Cache, history HistoryRecorder, log *logrus.Logger) *Engine {
	return &Engine{
		pool:     pool,
		docs:     docs,
		embedder: embedder,
		cache:    cache,
		history:  history,
		log:      log,
	}
}

// Search parses the search string, validates it against the document schema,
// evaluates the selected strategy and returns the shaped result table. On
// success the search parameters are enqueued for history persistence.
func (e *Engine) Search(ctx context.Context, p Params) (*Table, error) {
	q, err := query.Parse("query:" + p.SearchStr)
	if err != nil {
		return nil, err
	}

	doc, err := domain.Find(e.docs, p.Document)
	if err != nil {
		return nil, err
	}

	if err := validateConstraintKeys(q.Constraints, doc.PlainFields()); err != nil {
		return nil, err
	}

	queryVec, source, err := e.queryEmbedding(ctx, q.Query, p.Strategy)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	handle, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer handle.Release()

	var table *Table

	switch p.Strategy {
	case StrategyFts:
		table, err = e.searchFTS(ctx, handle.Conn(), doc, q)
	case StrategySemantic:
		table, err = e.searchSemantic(ctx, handle.Conn(), doc, q, queryVec, p.KNeighbors)
	case StrategyRRF:
		table, err = e.searchRRF(ctx, handle.Conn(), doc, q, queryVec, p)
	default:
		err = fmt.Errorf("unsupported strategy %d", p.Strategy)
	}

	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"document":  doc.Name,
		"strategy":  p.Strategy.String(),
		"embedding": source.String(),
		"results":   len(table.Rows),
	}).Info("search completed")

	if e.history != nil {
		e.history.RecordSearch(p.SearchStr, doc.Name, p.Strategy, p.PesoFTS, p.PesoSemantic, p.KNeighbors)
	}

	return table, nil
}

// queryEmbedding resolves the query vector through the cache. Fts needs no
// embedding and skips both cache and provider.
func (e *Engine) queryEmbedding(ctx context.Context, text string, strategy Strategy) ([]float32, embedding.Source, error) {
	if strategy == StrategyFts {
		metrics.EmbeddingCacheLookups.WithLabelValues(embedding.SourceSkip.String()).Inc()

		return nil, embedding.SourceSkip, nil
	}

	if v, ok := e.cache.Get(text); ok {
		metrics.EmbeddingCacheLookups.WithLabelValues(embedding.SourceHit.String()).Inc()

		return v, embedding.SourceHit, nil
	}

	metrics.EmbeddingCacheLookups.WithLabelValues(embedding.SourceMiss.String()).Inc()

	v, err := e.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, embedding.SourceMiss, err
	}

	e.cache.Put(text, v)

	return v, embedding.SourceMiss, nil
}

// searchFTS evaluates the lexical-only strategy: a phrase match against the
// payload column, ranked by FTS rank, with matched terms highlighted.
func (e *Engine) searchFTS(ctx context.Context, conn *sql.Conn, doc *domain.Document, q *query.Query) (*Table, error) {
	cols := []string{"rank AS score"}
	cols = append(cols, doc.PlainFields()...)
	cols = append(cols,
		fmt.Sprintf("highlight(%s, 0, '%s', '%s') AS input", doc.FTSTable(), highlightOpen, highlightClose),
		"'fts' AS match_type",
	)

	conditions, args := compileFilters(q.Constraints)
	conditions = append(conditions, `vec_input MATCH '"' || :query || '"'`)
	args = append(args, sql.Named("query", q.Query))

	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY rank",
		strings.Join(cols, ", "), doc.FTSTable(), strings.Join(conditions, " AND "),
	)

	return e.runQuery(ctx, conn, stmt, args)
}

// searchSemantic evaluates the dense-only strategy: the k nearest neighbors
// of the query embedding, projected through the normalized table.
func (e *Engine) searchSemantic(ctx context.Context, conn *sql.Conn, doc *domain.Document, q *query.Query, queryVec []float32, k int) (*Table, error) {
	matches, err := knnMatches(ctx, conn, doc, queryVec, k)
	if err != nil {
		return nil, err
	}

	cteBody, args := vecMatchesCTE(matches)

	cols := []string{"vec_matches.distance AS distance"}
	for _, f := range doc.PlainFields() {
		cols = append(cols, fmt.Sprintf("%s.%s", doc.Table(), f))
	}

	cols = append(cols,
		fmt.Sprintf("%s.vec_input AS input", doc.Table()),
		"'vec' AS match_type",
	)

	conditions, filterArgs := compileFilters(q.Constraints)
	args = append(args, filterArgs...)

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	stmt := fmt.Sprintf(`WITH vec_matches(row_id, rank_number, distance) AS (%s)
SELECT %s
FROM vec_matches
LEFT JOIN %s ON %s.id = vec_matches.row_id
%s
ORDER BY vec_matches.rank_number`,
		cteBody, strings.Join(cols, ", "), doc.Table(), doc.Table(), where,
	)

	return e.runQuery(ctx, conn, stmt, args)
}

// searchRRF evaluates the hybrid strategy: both rankings are fused in SQL
// with the weighted reciprocal rank formula and ordered by combined rank.
func (e *Engine) searchRRF(ctx context.Context, conn *sql.Conn, doc *domain.Document, q *query.Query, queryVec []float32, p Params) (*Table, error) {
	matches, err := knnMatches(ctx, conn, doc, queryVec, p.KNeighbors)
	if err != nil {
		return nil, err
	}

	cteBody, args := vecMatchesCTE(matches)

	var cols []string
	for _, f := range doc.PlainFields() {
		cols = append(cols, fmt.Sprintf("%s.%s", doc.Table(), f))
	}

	cols = append(cols,
		fmt.Sprintf("%s.vec_input AS input", doc.Table()),
		"vec_matches.rank_number AS vec_rank",
		"fts_matches.rank_number AS fts_rank",
		`(
		COALESCE(1.0 / (:rrf_k + fts_matches.rank_number), 0.0) * :weight_fts +
		COALESCE(1.0 / (:rrf_k + vec_matches.rank_number), 0.0) * :weight_vec
	) AS combined_rank`,
		"vec_matches.distance AS vec_distance",
		"fts_matches.score AS fts_score",
	)

	conditions, filterArgs := compileFilters(q.Constraints)

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args,
		sql.Named("query", q.Query),
		sql.Named("rrf_k", rrfK),
		sql.Named("weight_fts", p.PesoFTS/100),
		sql.Named("weight_vec", p.PesoSemantic/100),
	)
	args = append(args, filterArgs...)

	stmt := fmt.Sprintf(`WITH vec_matches(row_id, rank_number, distance) AS (%s),
fts_matches AS (
	SELECT
		rowid AS row_id,
		row_number() OVER (ORDER BY rank) AS rank_number,
		rank AS score
	FROM %s
	WHERE vec_input MATCH '"' || :query || '"'
),
final AS (
	SELECT %s
	FROM fts_matches
	FULL OUTER JOIN vec_matches ON vec_matches.row_id = fts_matches.row_id
	JOIN %s ON %s.id = COALESCE(fts_matches.row_id, vec_matches.row_id)
	%s
	ORDER BY combined_rank DESC
)
SELECT * FROM final`,
		cteBody, doc.FTSTable(), strings.Join(cols, ",\n\t\t"), doc.Table(), doc.Table(), where,
	)

	return e.runQuery(ctx, conn, stmt, args)
}

// runQuery executes the composed statement and shapes the rows.
func (e *Engine) runQuery(ctx context.Context, conn *sql.Conn, stmt string, args []any) (*Table, error) {
	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	shaped := make([][]string, 0, 32)

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}

		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderCell(v)
		}

		shaped = append(shaped, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}

	return &Table{
		Msg:     fmt.Sprintf("Hay un total de %d resultados.", len(shaped)),
		Columns: columns,
		Rows:    shaped,
	}, nil
}

// renderCell renders one result cell: text verbatim, reals as the sign-
// flipped three-decimal form, integers in decimal, NULL as the unknown-type
// marker. The sign flip preserves the convention that distances and ranks
// are reported as negative-scale similarity scores.
func renderCell(v any) string {
	switch t := v.(type) {
	case nil:
		return unknownCell
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return fmt.Sprintf("%.3f", -t)
	default:
		return unknownCell
	}
}
