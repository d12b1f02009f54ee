package search

import (
	"fmt"
	"strings"
)

// BadFieldsError reports constraint keys that are not filterable fields of
// the document. No partial execution happens; the request fails whole.
type BadFieldsError struct {
	ValidFields   []string
	InvalidFields []string
}

func (e *BadFieldsError) Error() string {
	return fmt.Sprintf(
		"search filters reference fields that don't exist in the document: [%s]; valid fields are [%s]",
		strings.Join(e.InvalidFields, ", "),
		strings.Join(e.ValidFields, ", "),
	)
}
