package domain

import (
	"path/filepath"
	"reflect"
	"testing"
)

func sampleDoc() Document {
	return Document{
		Name: "personas",
		Fields: []Field{
			{Name: "email", Unique: true},
			{Name: "nombre", VecInput: true},
			{Name: "descripcion", VecInput: true},
			{Name: "ciudad"},
			{Name: "edad"},
		},
	}
}

func TestDocumentValidate(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	if err := doc.Validate(); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}

	noVec := Document{Name: "x", Fields: []Field{{Name: "a"}}}
	if err := noVec.Validate(); err == nil {
		t.Error("expected error for document without vec_input fields")
	}

	dup := Document{Name: "x", Fields: []Field{{Name: "a", VecInput: true}, {Name: "a"}}}
	if err := dup.Validate(); err == nil {
		t.Error("expected error for duplicate field names")
	}

	upper := Document{Name: "Personas", Fields: []Field{{Name: "a", VecInput: true}}}
	if err := upper.Validate(); err == nil {
		t.Error("expected error for non-lowercase document name")
	}
}

func TestPayloadExpr(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()

	expected := "'  ' || nombre || '  ' || descripcion || '  '"
	if got := doc.PayloadExpr(); got != expected {
		t.Errorf("expected payload expression %q, got %q", expected, got)
	}
}

func TestPlainFields(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()

	expected := []string{"email", "ciudad", "edad"}
	if got := doc.PlainFields(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected plain fields %v, got %v", expected, got)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	docs := []Document{sampleDoc()}

	doc, err := Find(docs, "PERSONAS")
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}

	if doc.Name != "personas" {
		t.Errorf("expected personas, got %q", doc.Name)
	}

	if _, err := Find(docs, "otros"); err == nil {
		t.Error("expected unknown-document error")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meta.json")

	// First load initializes an empty file.
	docs, err := LoadMeta(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}

	if len(docs) != 0 {
		t.Fatalf("expected empty meta, got %v", docs)
	}

	if err := AddDocument(path, sampleDoc()); err != nil {
		t.Fatalf("adding document: %v", err)
	}

	if err := AddDocument(path, sampleDoc()); err == nil {
		t.Error("expected duplicate-name error")
	}

	docs, err = LoadMeta(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if len(docs) != 1 || docs[0].Name != "personas" {
		t.Fatalf("unexpected meta content: %v", docs)
	}

	if err := DeleteDocument(path, "personas"); err != nil {
		t.Fatalf("deleting document: %v", err)
	}

	if err := DeleteDocument(path, "personas"); err == nil {
		t.Error("expected unknown-document error on second delete")
	}
}

func TestMetaLowercasesNames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meta.json")

	docs := []Document{{Name: "Personas", Fields: []Field{{Name: "nombre", VecInput: true}}}}
	if err := SaveMeta(path, docs); err != nil {
		t.Fatalf("saving meta: %v", err)
	}

	loaded, err := LoadMeta(path)
	if err != nil {
		t.Fatalf("loading meta: %v", err)
	}

	if loaded[0].Name != "personas" {
		t.Errorf("expected lowercase name, got %q", loaded[0].Name)
	}
}
