// Package db drives schema migrations over the embedded database with
// goose. Migrations live in a directory on disk; a fresh directory is seeded
// from the embedded baseline files.
package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/farosearch/faro/internal/db/migrations"
	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/schema"

	_ "modernc.org/sqlite"
)

// DefaultMigrationsDir is where migration files are kept.
const DefaultMigrationsDir = "migrations"

// Open opens the database with the pragmas the service relies on.
func Open(path string) (*sql.DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := handle.Exec(pragma); err != nil {
			handle.Close()

			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return handle, nil
}

// EnsureDir creates the migrations directory if needed and seeds it with the
// embedded baseline files.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating migrations directory %q: %w", dir, err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("reading embedded migrations: %w", err)
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		target := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(target); err == nil {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, entry.Name())
		if err != nil {
			return fmt.Errorf("reading embedded migration %q: %w", entry.Name(), err)
		}

		if err := os.WriteFile(target, content, 0o644); err != nil {
			return fmt.Errorf("seeding migration %q: %w", entry.Name(), err)
		}
	}

	return nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, dbPath, dir string) error {
	return withGoose(dbPath, dir, func(handle *sql.DB) error {
		return goose.UpContext(ctx, handle, dir)
	})
}

// Status reports applied and pending migrations through goose's logger.
func Status(ctx context.Context, dbPath, dir string) error {
	return withGoose(dbPath, dir, func(handle *sql.DB) error {
		return goose.StatusContext(ctx, handle, dir)
	})
}

// Fresh rolls every migration back and reapplies them.
func Fresh(ctx context.Context, dbPath, dir string) error {
	return withGoose(dbPath, dir, func(handle *sql.DB) error {
		if err := goose.ResetContext(ctx, handle, dir); err != nil {
			return err
		}

		return goose.UpContext(ctx, handle, dir)
	})
}

// Create writes a timestamped empty migration skeleton named name.
func Create(dbPath, dir, name string) error {
	return withGoose(dbPath, dir, func(handle *sql.DB) error {
		return goose.Create(handle, dir, name, "sql")
	})
}

// Generate emits the DDL of every registered document as a migration file
// whose name carries a content hash, so regenerating an unchanged schema is
// a no-op.
func Generate(dir string, docs []domain.Document) ([]string, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	existing, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %q: %w", dir, err)
	}

	next := int64(1)
	hashes := make(map[string]bool)

	for _, entry := range existing {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		if v := versionPrefix(name); v >= next {
			next = v + 1
		}

		if h := hashSuffix(name); h != "" {
			hashes[h] = true
		}
	}

	var written []string

	for i := range docs {
		doc := &docs[i]

		content, err := documentMigration(doc)
		if err != nil {
			return nil, err
		}

		sum := sha256.Sum256([]byte(content))
		hash := hex.EncodeToString(sum[:4])

		// A matching hash means this exact schema was already emitted.
		if hashes[hash] {
			continue
		}

		filename := fmt.Sprintf("%05d_document_%s_%s.sql", next, doc.Name, hash)
		next++

		if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing migration %q: %w", filename, err)
		}

		written = append(written, filename)
	}

	return written, nil
}

// versionPrefix extracts the numeric goose version from a migration
// filename, 0 if there is none.
func versionPrefix(name string) int64 {
	digits := name
	if i := strings.IndexByte(name, '_'); i > 0 {
		digits = name[:i]
	}

	var v int64
	if _, err := fmt.Sscanf(digits, "%d", &v); err != nil {
		return 0
	}

	return v
}

// hashSuffix extracts the trailing content hash of a generated document
// migration, empty for hand-written files.
func hashSuffix(name string) string {
	base := strings.TrimSuffix(name, ".sql")

	i := strings.LastIndexByte(base, '_')
	if i < 0 || len(base)-i-1 != 8 {
		return ""
	}

	suffix := base[i+1:]
	if _, err := hex.DecodeString(suffix); err != nil {
		return ""
	}

	return suffix
}

// documentMigration renders the up/down DDL for one document by capturing
// the statements the schema materializer would run.
func documentMigration(doc *domain.Document) (string, error) {
	var rec ddlRecorder
	if err := schema.EnsureDocument(context.Background(), &rec, doc); err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("-- +goose Up\n")

	for _, stmt := range rec.statements {
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}

	b.WriteString("-- +goose Down\n")
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", doc.FTSTable())
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", doc.VecTable())
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", doc.Table())
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", doc.RawTable())

	return b.String(), nil
}

// ddlRecorder satisfies schema.Execer, capturing statements instead of
// running them.
type ddlRecorder struct {
	statements []string
}

func (r *ddlRecorder) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.statements = append(r.statements, query)

	return noopResult{}, nil
}

type noopResult struct{}

func (noopResult) LastInsertId() (int64, error) { return 0, nil }
func (noopResult) RowsAffected() (int64, error) { return 0, nil }

func withGoose(dbPath, dir string, fn func(*sql.DB) error) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("selecting goose dialect: %w", err)
	}

	handle, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer handle.Close()

	return fn(handle)
}
