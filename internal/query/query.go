// Package query parses the search string mini-language into a structured
// filter AST.
//
// The grammar is a single free-text query followed by optional constraints:
//
//	query: <text>[, <field><op><value>]*
//
// where <op> is ':' (exact), '>' (greater than) or '<' (lesser than).
// Multiple constraints on the same field are AND-combined.
package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Op identifies the comparison a constraint applies.
type Op byte

// Constraint operators, keyed by the character that introduces them.
const (
	OpExact       Op = ':'
	OpGreaterThan Op = '>'
	OpLesserThan  Op = '<'
)

// Constraint is a single field filter.
type Constraint struct {
	Op    Op
	Value string
}

// Query is the parsed form of a search string. Constraints is nil when the
// input carried no filters.
type Query struct {
	Query       string
	Constraints map[string][]Constraint
}

// ErrKind classifies a parse failure.
type ErrKind int

// Parse failure kinds.
const (
	ErrMissingQuery ErrKind = iota
	ErrMissingValue
	ErrMissingKey
	ErrInvalidToken
	ErrEmptyInput
)

// ParseError reports why an input could not be parsed. Op is set for
// MissingValue/MissingKey; Token for InvalidToken.
type ParseError struct {
	Kind  ErrKind
	Op    byte
	Token string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrMissingQuery:
		return "search doesn't have a 'query' key"
	case ErrMissingValue:
		return fmt.Sprintf("no value after %q", e.Op)
	case ErrMissingKey:
		return fmt.Sprintf("no key before %q", e.Op)
	case ErrInvalidToken:
		return fmt.Sprintf("invalid token: %q", e.Token)
	case ErrEmptyInput:
		return "empty input"
	}

	return "invalid search string"
}

// markupPattern conservatively detects HTML-looking input. A bare comparison
// operator ("edad < 60") does not match; an element or closing tag does.
var markupPattern = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)

// sanitizer strips every tag, keeping only text content.
var sanitizer = bluemonday.StrictPolicy()

// Parse converts a raw search string into a Query.
func Parse(input string) (*Query, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &ParseError{Kind: ErrEmptyInput}
	}

	if markupPattern.MatchString(input) {
		input = sanitizer.Sanitize(input)
	}

	if strings.ContainsFunc(input, unicode.IsControl) {
		return nil, &ParseError{Kind: ErrInvalidToken, Token: input}
	}

	head, rest, hasRest := strings.Cut(input, ",")

	key, text, found := strings.Cut(head, ":")
	if !found || strings.TrimSpace(key) != "query" || strings.TrimSpace(text) == "" {
		return nil, &ParseError{Kind: ErrMissingQuery}
	}

	q := &Query{Query: strings.TrimSpace(text)}

	if !hasRest {
		return q, nil
	}

	for _, token := range strings.Split(rest, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		k, c, err := parseToken(token)
		if err != nil {
			return nil, err
		}

		if q.Constraints == nil {
			q.Constraints = make(map[string][]Constraint)
		}

		q.Constraints[k] = append(q.Constraints[k], c)
	}

	return q, nil
}

// parseToken splits a constraint token on the first operator found, trying
// ':' then '<' then '>'.
func parseToken(token string) (string, Constraint, error) {
	for _, op := range []Op{OpExact, OpLesserThan, OpGreaterThan} {
		k, v, found := strings.Cut(token, string(byte(op)))
		if !found {
			continue
		}

		switch {
		case k == "":
			return "", Constraint{}, &ParseError{Kind: ErrMissingKey, Op: byte(op)}
		case v == "":
			return "", Constraint{}, &ParseError{Kind: ErrMissingValue, Op: byte(op)}
		}

		return strings.TrimSpace(k), Constraint{Op: op, Value: strings.TrimSpace(v)}, nil
	}

	return "", Constraint{}, &ParseError{Kind: ErrInvalidToken, Token: token}
}

// String renders the canonical textual form: "query: Q[, k op v]*".
// Parsing the result yields an equal Query, up to whitespace.
func (q *Query) String() string {
	var b strings.Builder

	b.WriteString("query: ")
	b.WriteString(q.Query)

	keys := make([]string, 0, len(q.Constraints))
	for k := range q.Constraints {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		for _, c := range q.Constraints[k] {
			switch c.Op {
			case OpExact:
				fmt.Fprintf(&b, ", %s: %s", k, c.Value)
			default:
				fmt.Fprintf(&b, ", %s %c %s", k, c.Op, c.Value)
			}
		}
	}

	return b.String()
}
