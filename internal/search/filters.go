package search

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/farosearch/faro/internal/query"
)

// compileFilters turns the constraint map into SQL fragments with uniquely
// named binds (:{field}_{i}). Constraint values are always bound, never
// interpolated; field names have been validated against the document schema
// before this point. Keys are sorted so the generated SQL is deterministic.
func compileFilters(constraints map[string][]query.Constraint) (conditions []string, args []any) {
	keys := make([]string, 0, len(constraints))
	for k := range constraints {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, field := range keys {
		for i, c := range constraints[field] {
			bind := fmt.Sprintf("%s_%d", field, i)

			var condition string

			switch c.Op {
			case query.OpExact:
				condition = fmt.Sprintf("LOWER(%s) = LOWER(:%s)", field, bind)
			case query.OpGreaterThan:
				condition = fmt.Sprintf("%s > :%s", field, bind)
			case query.OpLesserThan:
				condition = fmt.Sprintf("%s < :%s", field, bind)
			}

			conditions = append(conditions, condition)
			args = append(args, sql.Named(bind, c.Value))
		}
	}

	return conditions, args
}

// validateConstraintKeys checks every constraint key against the document's
// filterable (non-payload) fields.
func validateConstraintKeys(constraints map[string][]query.Constraint, validFields []string) error {
	if len(constraints) == 0 {
		return nil
	}

	valid := make(map[string]struct{}, len(validFields))
	for _, f := range validFields {
		valid[f] = struct{}{}
	}

	var invalid []string

	for k := range constraints {
		if _, ok := valid[k]; !ok {
			invalid = append(invalid, k)
		}
	}

	if len(invalid) == 0 {
		return nil
	}

	sort.Strings(invalid)

	return &BadFieldsError{ValidFields: validFields, InvalidFields: invalid}
}
