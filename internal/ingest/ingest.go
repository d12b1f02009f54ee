package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/domain"
)

// progressEvery is how often record progress is logged during a file load.
const progressEvery = 1000

// Ingestor loads source files into a document's tables. Ingest runs are
// CLI-driven and never concurrent with service traffic, so it holds a plain
// database handle rather than a pool.
type Ingestor struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewIngestor creates an Ingestor over db.
func NewIngestor(db *sql.DB, log *logrus.Logger) *Ingestor {
	return &Ingestor{db: db, log: log}
}

// Ingest loads every source file under dir into doc's raw table, one
// transaction per file, and returns the number of rows inserted into the
// raw table. It does not write the normalized table; Project does that.
//
// A malformed record aborts its file's transaction; files already committed
// stay committed.
func (ing *Ingestor) Ingest(ctx context.Context, doc *domain.Document, dir string) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	sources, err := EnumerateSources(dir)
	if err != nil {
		return 0, err
	}

	if len(sources) == 0 {
		ing.log.WithField("dir", dir).Warn("source directory is empty")
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		doc.RawTable(),
		strings.Join(doc.FieldNames(), ", "),
		placeholders(len(doc.Fields)),
	)

	var total int64

	for _, src := range sources {
		count, err := ing.loadFile(ctx, doc, src, insertSQL)
		if err != nil {
			return total, fmt.Errorf("loading %q: %w", src.Path, err)
		}

		ing.log.WithFields(logrus.Fields{
			"file":    src.Path,
			"records": count,
		}).Info("source file loaded")

		total += count
	}

	return total, nil
}

// Project derives the normalized rows: non-payload fields are copied, the
// vec_input column is the concatenation of every payload field. Duplicate
// keys are dropped by the ON CONFLICT IGNORE constraints. Returns the number
// of newly inserted rows.
func (ing *Ingestor) Project(ctx context.Context, doc *domain.Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	tx, err := ing.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning projection transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	plain := strings.Join(doc.PlainFields(), ", ")

	var stmt string
	if plain == "" {
		stmt = fmt.Sprintf(
			"INSERT OR IGNORE INTO %s (vec_input) SELECT %s AS vec_input FROM %s",
			doc.Table(), doc.PayloadExpr(), doc.RawTable(),
		)
	} else {
		stmt = fmt.Sprintf(
			"INSERT OR IGNORE INTO %s (%s, vec_input) SELECT %s, %s AS vec_input FROM %s",
			doc.Table(), plain, plain, doc.PayloadExpr(), doc.RawTable(),
		)
	}

	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("projecting %s into %s: %w", doc.RawTable(), doc.Table(), err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading projection row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing projection: %w", err)
	}

	return inserted, nil
}

// loadFile inserts one source file inside its own transaction.
func (ing *Ingestor) loadFile(ctx context.Context, doc *domain.Document, src Source, insertSQL string) (int64, error) {
	records, err := readRecords(doc, src)
	if err != nil {
		return 0, err
	}

	tx, err := ing.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var count int64

	for _, record := range records {
		args := make([]any, len(record))
		for i, v := range record {
			args[i] = v
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("inserting record %d: %w", count+1, err)
		}

		count++
		if count%progressEvery == 0 {
			ing.log.WithField("records", count).Info("processing records")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}

	return count, nil
}

// readRecords parses a source file into per-field value rows, in document
// field order, after checking its header set against the document schema.
func readRecords(doc *domain.Document, src Source) ([][]string, error) {
	switch src.Type {
	case FiletypeCSV:
		return readCSV(doc, src.Path)
	case FiletypeJSON:
		return readJSON(doc, src.Path)
	default:
		return nil, fmt.Errorf("unsupported filetype %d", src.Type)
	}
}

func readCSV(doc *domain.Document, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	if err := checkHeaders(header, doc.FieldNames()); err != nil {
		return nil, err
	}

	// Column position of each document field in this file.
	position := make(map[string]int, len(header))
	for i, h := range header {
		position[h] = i
	}

	var records [][]string

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}

		record := make([]string, len(doc.Fields))

		for i, field := range doc.Fields {
			if pos, ok := position[field.Name]; ok && pos < len(row) {
				record[i] = strings.TrimSpace(row[pos])
			}
		}

		records = append(records, record)
	}

	return records, nil
}

func readJSON(doc *domain.Document, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var data []map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	var header []string
	if len(data) > 0 {
		for k := range data[0] {
			header = append(header, k)
		}
	}

	if err := checkHeaders(header, doc.FieldNames()); err != nil {
		return nil, err
	}

	records := make([][]string, 0, len(data))

	for _, obj := range data {
		record := make([]string, len(doc.Fields))

		for i, field := range doc.Fields {
			value, ok := obj[field.Name]
			if !ok {
				continue
			}

			record[i] = coerceJSONValue(value)
		}

		records = append(records, record)
	}

	return records, nil
}

// coerceJSONValue renders a JSON value as its canonical text form. Null
// becomes the empty string; arrays and objects are re-serialized.
func coerceJSONValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}

		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}

		return string(b)
	}
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}

	return strings.Join(parts, ", ")
}
