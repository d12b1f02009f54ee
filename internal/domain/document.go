// Package domain defines the document schema model shared by the ingest,
// index and search layers, plus the identifier gate applied to every name
// before it reaches a SQL statement.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDocument is returned when a request names a document that is not
// registered in the meta file.
var ErrUnknownDocument = errors.New("unknown document")

// Field is a single named text column of a document.
type Field struct {
	Name string `json:"name"`
	// VecInput marks the field as part of the concatenated searchable
	// payload used for both FTS phrase matching and embeddings.
	VecInput bool `json:"vec_input"`
	// Unique maps to a UNIQUE ON CONFLICT IGNORE constraint.
	Unique bool `json:"unique"`
}

// Document is a user-declared collection: a name plus an ordered field list.
type Document struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Validate checks the document name, every field name, field-name uniqueness
// and the presence of at least one vec_input field.
func (d *Document) Validate() error {
	if err := ValidateIdentifier(d.Name); err != nil {
		return fmt.Errorf("document name: %w", err)
	}

	if d.Name != strings.ToLower(d.Name) {
		return fmt.Errorf("document name %q must be lowercase", d.Name)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	hasVecInput := false

	for _, f := range d.Fields {
		if err := ValidateIdentifier(f.Name); err != nil {
			return fmt.Errorf("field name: %w", err)
		}

		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q in document %q", f.Name, d.Name)
		}

		seen[f.Name] = struct{}{}

		if f.VecInput {
			hasVecInput = true
		}
	}

	if !hasVecInput {
		return fmt.Errorf("document %q has no vec_input field", d.Name)
	}

	return nil
}

// FieldNames returns every field name in declaration order.
func (d *Document) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}

	return names
}

// PlainFields returns the names of the fields that are not part of the
// searchable payload. These are the columns a search filter may reference.
func (d *Document) PlainFields() []string {
	names := make([]string, 0, len(d.Fields))

	for _, f := range d.Fields {
		if !f.VecInput {
			names = append(names, f.Name)
		}
	}

	return names
}

// PayloadExpr returns the SQL expression that concatenates every vec_input
// field into the searchable payload: '  ' || f1 || '  ' || f2 || '  '.
func (d *Document) PayloadExpr() string {
	var b strings.Builder

	b.WriteString("'  '")

	for _, f := range d.Fields {
		if f.VecInput {
			b.WriteString(" || ")
			b.WriteString(f.Name)
			b.WriteString(" || '  '")
		}
	}

	return b.String()
}

// RawTable, Table, FTSTable and VecTable name the physical tables derived
// from the document.
func (d *Document) RawTable() string { return d.Name + "_raw" }

// Table returns the normalized table name.
func (d *Document) Table() string { return d.Name }

// FTSTable returns the full-text index name.
func (d *Document) FTSTable() string { return "fts_" + d.Name }

// VecTable returns the vector index name.
func (d *Document) VecTable() string { return "vec_" + d.Name }

// Find resolves a document by case-insensitive name.
func Find(docs []Document, name string) (*Document, error) {
	for i := range docs {
		if strings.EqualFold(docs[i].Name, name) {
			return &docs[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, name)
}
