package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseOnlyQuery(t *testing.T) {
	t.Parallel()

	q, err := Parse("query: Lautaro,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Query != "Lautaro" {
		t.Errorf("expected query %q, got %q", "Lautaro", q.Query)
	}

	if q.Constraints != nil {
		t.Errorf("expected nil constraints, got %v", q.Constraints)
	}
}

func TestParseWithFilters(t *testing.T) {
	t.Parallel()

	q, err := Parse("query: Ana, ciudad: Corrientes, provincia: Mendoza")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Query != "Ana" {
		t.Errorf("expected query %q, got %q", "Ana", q.Query)
	}

	expected := map[string][]Constraint{
		"ciudad":    {{Op: OpExact, Value: "Corrientes"}},
		"provincia": {{Op: OpExact, Value: "Mendoza"}},
	}

	if !reflect.DeepEqual(q.Constraints, expected) {
		t.Errorf("expected constraints %v, got %v", expected, q.Constraints)
	}
}

func TestParseWithRanges(t *testing.T) {
	t.Parallel()

	q, err := Parse("query: Ana, edad > 30, edad < 60")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string][]Constraint{
		"edad": {
			{Op: OpGreaterThan, Value: "30"},
			{Op: OpLesserThan, Value: "60"},
		},
	}

	if !reflect.DeepEqual(q.Constraints, expected) {
		t.Errorf("expected constraints %v, got %v", expected, q.Constraints)
	}
}

func TestParseFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		kind  ErrKind
	}{
		{"no query prefix", "Lautaro, edad > 30", ErrMissingQuery},
		{"empty query value", "query: , edad > 30", ErrMissingQuery},
		{"no colon after query", "query Lautaro, edad > 30", ErrMissingQuery},
		{"bare text", "Lautaro", ErrMissingQuery},
		{"missing value colon", "query: Lautaro, city:", ErrMissingValue},
		{"missing value gt", "query: Lautaro, edad>", ErrMissingValue},
		{"missing value lt", "query: Lautaro, edad<", ErrMissingValue},
		{"missing key colon", "query: Lautaro, :Berlin", ErrMissingKey},
		{"missing key gt", "query: Lautaro, >30", ErrMissingKey},
		{"missing key lt", "query: Lautaro, <30", ErrMissingKey},
		{"invalid token", "query: Ana, city; Corrientes", ErrInvalidToken},
		{"control characters", "query: Test, ;\x00", ErrInvalidToken},
		{"empty input", "", ErrEmptyInput},
		{"whitespace input", "   \t ", ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.input)

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}

			if parseErr.Kind != tt.kind {
				t.Errorf("expected kind %d, got %d (%v)", tt.kind, parseErr.Kind, parseErr)
			}
		})
	}
}

func TestParseInvalidTokenCarriesToken(t *testing.T) {
	t.Parallel()

	_, err := Parse("query: Ana, city; Corrientes")

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}

	if parseErr.Token != "city; Corrientes" {
		t.Errorf("expected token %q, got %q", "city; Corrientes", parseErr.Token)
	}
}

func TestParseStripsMarkup(t *testing.T) {
	t.Parallel()

	q, err := Parse("query: <script>alert(1)</script>Ana")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Query != "Ana" {
		t.Errorf("expected markup stripped to %q, got %q", "Ana", q.Query)
	}
}

func TestParseKeepsComparisonOperators(t *testing.T) {
	t.Parallel()

	// A bare '<' is the query language's operator, not markup.
	q, err := Parse("query: Ana, edad < 60")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(q.Constraints["edad"]) != 1 {
		t.Fatalf("expected one edad constraint, got %v", q.Constraints)
	}
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"query: Ana",
		"query: Ana, ciudad: Corrientes",
		"query: Ana, edad > 30, edad < 60",
		"query: Ana, ciudad: Corrientes, provincia: Mendoza, edad > 30",
	}

	for _, input := range inputs {
		q, err := Parse(input)
		if err != nil {
			t.Fatalf("parsing %q: %v", input, err)
		}

		again, err := Parse(q.String())
		if err != nil {
			t.Fatalf("re-parsing %q: %v", q.String(), err)
		}

		if !reflect.DeepEqual(q, again) {
			t.Errorf("round trip of %q changed the query: %v vs %v", input, q, again)
		}
	}
}
