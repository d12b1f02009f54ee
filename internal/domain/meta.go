package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadMeta reads the document list from the meta file. A missing file is
// initialized to an empty list so first runs work out of the box. Document
// names are lowercased on load.
func LoadMeta(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("opening meta file %q: %w", path, err)
		}

		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("initializing meta file %q: %w", path, err)
		}

		data = []byte("[]")
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing meta file %q: %w", path, err)
	}

	for i := range docs {
		docs[i].Name = strings.ToLower(docs[i].Name)
		if err := docs[i].Validate(); err != nil {
			return nil, fmt.Errorf("meta file %q: %w", path, err)
		}
	}

	return docs, nil
}

// SaveMeta writes the document list back to the meta file.
func SaveMeta(path string, docs []Document) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meta file: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing meta file %q: %w", path, err)
	}

	return nil
}

// AddDocument validates doc and appends it to the meta file, rejecting
// duplicate names.
func AddDocument(path string, doc Document) error {
	doc.Name = strings.ToLower(doc.Name)
	if err := doc.Validate(); err != nil {
		return err
	}

	docs, err := LoadMeta(path)
	if err != nil {
		return err
	}

	for _, d := range docs {
		if d.Name == doc.Name {
			return fmt.Errorf("document %q already exists", doc.Name)
		}
	}

	return SaveMeta(path, append(docs, doc))
}

// DeleteDocument removes the named document from the meta file.
func DeleteDocument(path, name string) error {
	docs, err := LoadMeta(path)
	if err != nil {
		return err
	}

	name = strings.ToLower(name)
	kept := docs[:0]
	found := false

	for _, d := range docs {
		if d.Name == name {
			found = true

			continue
		}

		kept = append(kept, d)
	}

	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownDocument, name)
	}

	return SaveMeta(path, kept)
}
