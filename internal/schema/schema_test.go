package schema

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/farosearch/faro/internal/domain"

	_ "modernc.org/sqlite"
)

func testDoc() *domain.Document {
	return &domain.Document{
		Name: "personas",
		Fields: []domain.Field{
			{Name: "email", Unique: true},
			{Name: "nombre", VecInput: true},
			{Name: "ciudad"},
			{Name: "edad"},
		},
	}
}

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}

	// A second pooled connection would see a fresh empty in-memory database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { db.Close() })

	return db
}

func tableNames(t *testing.T, db *sql.DB) map[string]bool {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type IN ('table', 'trigger')")
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	defer rows.Close()

	names := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scanning name: %v", err)
		}

		names[name] = true
	}

	return names
}

func TestEnsureGlobalIsIdempotent(t *testing.T) {
	t.Parallel()

	db := openMemoryDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := EnsureGlobal(ctx, db); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	names := tableNames(t, db)
	for _, expected := range []string{
		"historial", "favoritos", "users",
		"after_insert_historial", "after_update_historial", "after_delete_historial",
	} {
		if !names[expected] {
			t.Errorf("missing %q after EnsureGlobal", expected)
		}
	}
}

func TestHistoryTriggersKeepMirrorInSync(t *testing.T) {
	t.Parallel()

	db := openMemoryDB(t)
	ctx := context.Background()

	if err := EnsureGlobal(ctx, db); err != nil {
		t.Fatalf("ensure global: %v", err)
	}

	if _, err := db.Exec(
		"INSERT INTO historial(query, strategy, doc) VALUES ('ana corrientes', 'Fts', 'personas')"); err != nil {
		t.Fatalf("inserting history: %v", err)
	}

	var count int
	if err := db.QueryRow(
		"SELECT count(*) FROM fts_historial WHERE fts_historial MATCH 'corrientes'").Scan(&count); err != nil {
		t.Fatalf("querying mirror: %v", err)
	}

	if count != 1 {
		t.Fatalf("expected mirror to index the insert, got %d matches", count)
	}

	if _, err := db.Exec("DELETE FROM historial WHERE query = 'ana corrientes'"); err != nil {
		t.Fatalf("deleting history: %v", err)
	}

	if err := db.QueryRow(
		"SELECT count(*) FROM fts_historial WHERE fts_historial MATCH 'corrientes'").Scan(&count); err != nil {
		t.Fatalf("querying mirror after delete: %v", err)
	}

	if count != 0 {
		t.Fatalf("expected mirror to drop the row on delete, got %d matches", count)
	}
}

func TestEnsureDocumentCreatesPhysicalTables(t *testing.T) {
	t.Parallel()

	db := openMemoryDB(t)
	ctx := context.Background()

	doc := testDoc()

	for i := 0; i < 2; i++ {
		if err := EnsureDocument(ctx, db, doc); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	names := tableNames(t, db)
	for _, expected := range []string{"personas_raw", "personas", "fts_personas", "vec_personas"} {
		if !names[expected] {
			t.Errorf("missing %q after EnsureDocument", expected)
		}
	}
}

func TestUniqueFieldsIgnoreConflicts(t *testing.T) {
	t.Parallel()

	db := openMemoryDB(t)
	ctx := context.Background()

	if err := EnsureDocument(ctx, db, testDoc()); err != nil {
		t.Fatalf("ensure document: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := db.Exec(
			"INSERT INTO personas(email, ciudad, edad, vec_input) VALUES ('a@b.c', 'Corrientes', '30', '  Ana  ')"); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT count(*) FROM personas").Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}

	if count != 1 {
		t.Fatalf("expected the duplicate key to be ignored, got %d rows", count)
	}
}

func TestIdentifierGateBlocksMaterialization(t *testing.T) {
	t.Parallel()

	db := openMemoryDB(t)
	ctx := context.Background()

	bad := []*domain.Document{
		{Name: "personas; drop", Fields: []domain.Field{{Name: "a", VecInput: true}}},
		{Name: "select", Fields: []domain.Field{{Name: "a", VecInput: true}}},
		{Name: "personas", Fields: []domain.Field{{Name: "bad-name", VecInput: true}}},
		{Name: "1personas", Fields: []domain.Field{{Name: "a", VecInput: true}}},
	}

	for _, doc := range bad {
		if err := EnsureDocument(ctx, db, doc); err == nil {
			t.Errorf("expected materializer to refuse document %q", doc.Name)
		}
	}

	if names := tableNames(t, db); len(names) != 0 {
		t.Errorf("no tables should exist after rejected documents, got %v", names)
	}
}

func TestDocumentDDLShape(t *testing.T) {
	t.Parallel()

	stmts := documentDDL(testDoc())
	joined := strings.Join(stmts, ";\n")

	for _, fragment := range []string{
		"email TEXT UNIQUE ON CONFLICT IGNORE",
		"prefix='2 3 4'",
		"tokenize='unicode61 remove_diacritics 1'",
		"content='personas'",
		"vec_input_embedding BLOB",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("expected DDL to contain %q:\n%s", fragment, joined)
		}
	}

	// The normalized table carries only non-payload fields plus vec_input.
	if strings.Contains(stmts[1], "nombre") {
		t.Errorf("normalized table should not carry payload fields:\n%s", stmts[1])
	}
}

func TestSplitStatementsKeepsTriggerBodies(t *testing.T) {
	t.Parallel()

	stmts := splitStatements(globalDDL)

	var triggers int

	for _, s := range stmts {
		if strings.Contains(s, "CREATE TRIGGER") {
			triggers++

			if !strings.Contains(s, "END;") {
				t.Errorf("trigger statement split mid-body:\n%s", s)
			}
		}
	}

	if triggers != 3 {
		t.Errorf("expected 3 trigger statements, got %d", triggers)
	}
}
