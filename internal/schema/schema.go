// Package schema materializes the physical layout for a document: the raw
// ingest buffer, the normalized table with the searchable payload column,
// the FTS5 index and the vector table, plus the global tables shared by
// every document.
//
// Every identifier is passed through the domain validator before it is
// interpolated into DDL. Row values are always bound elsewhere; this package
// only ever interpolates validated schema names.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/embedding"
)

// Execer is the slice of database/sql needed to run DDL. *sql.DB, *sql.Conn
// and *sql.Tx all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// globalDDL creates the tables shared by every document: search history with
// its external-content FTS mirror and sync triggers, favorites, and users.
const globalDDL = `
CREATE TABLE IF NOT EXISTS historial(
	id INTEGER PRIMARY KEY,
	query TEXT NOT NULL UNIQUE,
	strategy TEXT,
	doc TEXT,
	peso_fts REAL,
	peso_semantic REAL,
	neighbors INTEGER,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS favoritos(
	id INTEGER PRIMARY KEY,
	nombre TEXT NOT NULL UNIQUE,
	data TEXT,
	doc TEXT,
	busquedas TEXT,
	tipos TEXT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	auth_token TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_historial USING fts5(
	query,
	content='historial', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS after_insert_historial
	AFTER INSERT ON historial
	BEGIN
	INSERT INTO fts_historial(rowid, query) VALUES (new.id, new.query);
END;

CREATE TRIGGER IF NOT EXISTS after_update_historial
	AFTER UPDATE ON historial
	BEGIN
	INSERT INTO fts_historial(fts_historial, rowid, query) VALUES ('delete', old.id, old.query);
	INSERT INTO fts_historial(rowid, query) VALUES (new.id, new.query);
END;

CREATE TRIGGER IF NOT EXISTS after_delete_historial
	AFTER DELETE ON historial
	BEGIN
	INSERT INTO fts_historial(fts_historial, rowid, query) VALUES ('delete', old.id, old.query);
END;
`

// EnsureGlobal creates the shared tables and triggers. Idempotent.
func EnsureGlobal(ctx context.Context, ex Execer) error {
	for _, stmt := range splitStatements(globalDDL) {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating global tables: %w", err)
		}
	}

	return nil
}

// EnsureDocument creates D_raw, D, fts_D and vec_D for the document.
// Idempotent; all identifiers are validated first.
func EnsureDocument(ctx context.Context, ex Execer, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	for _, stmt := range documentDDL(doc) {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables for document %q: %w", doc.Name, err)
		}
	}

	return nil
}

// DropDocument drops the normalized, raw and vector tables ahead of a forced
// re-sync. The FTS index is external-content, so it is dropped as well to
// avoid a dangling content reference.
func DropDocument(ctx context.Context, ex Execer, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + doc.FTSTable(),
		"DROP TABLE IF EXISTS " + doc.Table(),
		"DROP TABLE IF EXISTS " + doc.RawTable(),
		"DROP TABLE IF EXISTS " + doc.VecTable(),
	}

	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping tables for document %q: %w", doc.Name, err)
		}
	}

	return nil
}

// EnsurePayloadIndex creates the partial index over non-empty payloads.
func EnsurePayloadIndex(ctx context.Context, ex Execer, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_vec_input ON %s(vec_input) WHERE length(vec_input) > 0",
		doc.Name, doc.Table(),
	)

	if _, err := ex.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating payload index for %q: %w", doc.Name, err)
	}

	return nil
}

// documentDDL renders the per-document statements.
func documentDDL(doc *domain.Document) []string {
	rawCols := make([]string, 0, len(doc.Fields))
	plainCols := make([]string, 0, len(doc.Fields))

	for _, f := range doc.Fields {
		col := f.Name + " TEXT"
		if f.Unique {
			col += " UNIQUE ON CONFLICT IGNORE"
		}

		rawCols = append(rawCols, col)

		if !f.VecInput {
			plainCols = append(plainCols, col)
		}
	}

	ftsCols := append([]string{"vec_input"}, doc.PlainFields()...)

	rawTable := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s(\n\tid INTEGER PRIMARY KEY,\n\t%s\n)",
		doc.RawTable(), strings.Join(rawCols, ",\n\t"),
	)

	table := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s(\n\tid INTEGER PRIMARY KEY,\n\t%s\n)",
		doc.Table(), strings.Join(append(plainCols, "vec_input TEXT"), ",\n\t"),
	)

	ftsTable := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(
	%s,
	content='%s',
	content_rowid='id',
	prefix='2 3 4',
	tokenize='unicode61 remove_diacritics 1'
)`,
		doc.FTSTable(), strings.Join(ftsCols, ", "), doc.Table(),
	)

	vecTable := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s(\n\trow_id INTEGER PRIMARY KEY,\n\tvec_input_embedding BLOB NOT NULL CHECK (length(vec_input_embedding) = %d)\n)",
		doc.VecTable(), 4*embedding.Dimensions,
	)

	return []string{rawTable, table, ftsTable, vecTable}
}

// splitStatements breaks a DDL batch on statement boundaries, keeping
// trigger bodies (BEGIN ... END;) intact.
func splitStatements(batch string) []string {
	var (
		stmts   []string
		current strings.Builder
		inBody  bool
	)

	for _, line := range strings.Split(batch, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && current.Len() == 0 {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")

		upper := strings.ToUpper(trimmed)

		if strings.HasSuffix(upper, "BEGIN") {
			inBody = true
		}

		if strings.HasSuffix(upper, ";") {
			if inBody && upper != "END;" {
				continue
			}

			stmts = append(stmts, strings.TrimSpace(current.String()))
			current.Reset()
			inBody = false
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}

	return stmts
}
