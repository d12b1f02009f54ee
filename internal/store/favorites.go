package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/farosearch/faro/internal/query"
)

// FavoritesStore manages saved searches.
type FavoritesStore struct {
	Base
}

// NewFavoritesStore creates a FavoritesStore.
func NewFavoritesStore(base Base) *FavoritesStore {
	return &FavoritesStore{Base: base}
}

// SavedSearch pairs a remembered query with the strategy it ran under.
type SavedSearch struct {
	Query    string `json:"query"`
	Strategy string `json:"strategy"`
}

// Favorite is one saved search bundle.
type Favorite struct {
	ID        int64         `json:"id"`
	Nombre    string        `json:"nombre"`
	Data      string        `json:"data"`
	Busquedas []SavedSearch `json:"busquedas"`
	Fecha     string        `json:"fecha"`
}

// List returns the favorites saved for a document, newest first. The stored
// busquedas/tipos JSON arrays are zipped back into query/strategy pairs.
func (s *FavoritesStore) List(ctx context.Context, doc string) ([]Favorite, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer handle.Release()

	rows, err := handle.Conn().QueryContext(ctx,
		`SELECT id, nombre, data, timestamp, busquedas, tipos
		 FROM favoritos WHERE doc = ? ORDER BY timestamp DESC`, doc)
	if err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]Favorite, 0, 8)

	for rows.Next() {
		var (
			f         Favorite
			timestamp string
			busquedas string
			tipos     string
		)

		if err := rows.Scan(&f.ID, &f.Nombre, &f.Data, &timestamp, &busquedas, &tipos); err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}

		var queries, strategies []string

		if err := json.Unmarshal([]byte(busquedas), &queries); err != nil {
			return nil, fmt.Errorf("decoding favorite %q searches: %w", f.Nombre, err)
		}

		if err := json.Unmarshal([]byte(tipos), &strategies); err != nil {
			return nil, fmt.Errorf("decoding favorite %q strategies: %w", f.Nombre, err)
		}

		for i, q := range queries {
			strategy := ""
			if i < len(strategies) {
				strategy = strategies[i]
			}

			f.Busquedas = append(f.Busquedas, SavedSearch{Query: q, Strategy: strategy})
		}

		f.Fecha = formatTimestamp(timestamp)
		favorites = append(favorites, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating favorites: %w", err)
	}

	return favorites, nil
}

// Add saves a favorite. Each space, tab, newline or carriage return in the
// name is replaced with an underscore, and every query is run through the parser so only well-formed searches are
// stored.
func (s *FavoritesStore) Add(ctx context.Context, doc, nombre string, data []string, searches []SavedSearch) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	nombre = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return '_'
		}

		return r
	}, nombre)

	queries := make([]string, 0, len(searches))
	strategies := make([]string, 0, len(searches))

	for _, search := range searches {
		parsed, err := query.Parse("query: " + search.Query)
		if err != nil {
			return err
		}

		queries = append(queries, parsed.Query)
		strategies = append(strategies, search.Strategy)
	}

	queriesJSON, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("encoding favorite searches: %w", err)
	}

	strategiesJSON, err := json.Marshal(strategies)
	if err != nil {
		return fmt.Errorf("encoding favorite strategies: %w", err)
	}

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("adding favorite: %w", err)
	}
	defer handle.Release()

	_, err = handle.Conn().ExecContext(ctx,
		`INSERT INTO favoritos (nombre, data, doc, busquedas, tipos, timestamp)
		 VALUES (?, ?, ?, ?, ?, datetime('now', 'localtime'))`,
		nombre, strings.Join(data, ", "), doc, string(queriesJSON), string(strategiesJSON))
	if err != nil {
		return fmt.Errorf("inserting favorite %q: %w", nombre, err)
	}

	return nil
}

// Delete removes a favorite by name.
func (s *FavoritesStore) Delete(ctx context.Context, doc, nombre string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("deleting favorite: %w", err)
	}
	defer handle.Release()

	if _, err := handle.Conn().ExecContext(ctx,
		"DELETE FROM favoritos WHERE nombre = ? AND doc = ?", nombre, doc); err != nil {
		return fmt.Errorf("deleting favorite %q: %w", nombre, err)
	}

	return nil
}
