// Package filtersql compiles entity filters to parameterized SQLite SQL over
// the graphstore entities table.
//
// CRITICAL: every query ends in ORDER BY with a deterministic tiebreaker.
// CRITICAL: values and property paths are always bound as parameters, never
// interpolated into SQL text.
package filtersql

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
)

// EntityColumns is the column list every compiled SELECT returns, in scan
// order.
const EntityColumns = "e.owned_by_id, e.entity_uuid, e.edition_id, e.entity_type_id, " +
	"e.properties, e.left_owned_by_id, e.left_entity_uuid, e.right_owned_by_id, " +
	"e.right_entity_uuid, e.archived, e.draft, e.created_at_ns"

// columns maps filter fields to entity table columns.
var columns = map[filter.FieldName]string{
	filter.FieldArchived:         "e.archived",
	filter.FieldDraft:            "e.draft",
	filter.FieldOwnedByID:        "e.owned_by_id",
	filter.FieldUUID:             "e.entity_uuid",
	filter.FieldTypeVersionedURL: "e.entity_type_id",
	filter.FieldTypeBaseURL:      "e.entity_type_base_url",
	filter.FieldTypeVersion:      "e.entity_type_version",
	filter.FieldLeftEntityOwner:  "e.left_owned_by_id",
	filter.FieldLeftEntityUUID:   "e.left_entity_uuid",
	filter.FieldRightEntityOwner: "e.right_owned_by_id",
	filter.FieldRightEntityUUID:  "e.right_entity_uuid",
}

// Query is a compiled-to-be entity query.
type Query struct {
	Filter filter.Filter

	// AsOf restricts results to entities created at or before the instant.
	// Nil means latest.
	AsOf *time.Time

	// IncludeDrafts admits draft entities. Drafts are excluded by default.
	IncludeDrafts bool
}

// Compiler compiles filters to SQL.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts a query into a SELECT over the entities table.
// Returns (sql, params, error).
func (c *Compiler) Compile(q Query) (string, []any, error) {
	if err := filter.Validate(q.Filter); err != nil {
		return "", nil, fmt.Errorf("invalid filter: %w", err)
	}

	where, params, err := c.CompilePredicate(q.Filter)
	if err != nil {
		return "", nil, err
	}

	conditions := []string{where}
	if !q.IncludeDrafts {
		conditions = append(conditions, "e.draft = 0")
	}
	if q.AsOf != nil {
		conditions = append(conditions, "e.created_at_ns <= ?")
		params = append(params, q.AsOf.UnixNano())
	}

	sql := fmt.Sprintf("SELECT %s FROM entities e WHERE %s ORDER BY %s",
		EntityColumns,
		strings.Join(conditions, " AND "),
		stableOrderKey())

	return sql, params, nil
}

// stableOrderKey returns the ORDER BY clause body.
// Insertion sequence first, then uuid for a deterministic tiebreak.
func stableOrderKey() string {
	return "e.seq ASC, e.entity_uuid ASC COLLATE BINARY"
}

// CompilePredicate compiles a filter to a WHERE clause fragment.
func (c *Compiler) CompilePredicate(f filter.Filter) (string, []any, error) {
	switch node := f.(type) {
	case filter.Equal:
		return c.compileEqual(node)
	case filter.All:
		return c.compileList(node, " AND ", "1 = 1")
	case filter.Any:
		return c.compileList(node, " OR ", "1 = 0")
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil filter")
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

// compileList joins children with op. An empty list compiles to identity:
// All{} is true, Any{} is false.
func (c *Compiler) compileList(children []filter.Filter, op, identity string) (string, []any, error) {
	if len(children) == 0 {
		return identity, nil, nil
	}

	parts := make([]string, 0, len(children))
	var params []any
	for _, child := range children {
		sql, childParams, err := c.CompilePredicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, childParams...)
	}

	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, op) + ")", params, nil
}

func (c *Compiler) compileEqual(eq filter.Equal) (string, []any, error) {
	if eq.Path.IsProperty() {
		return compilePropertyEqual(eq.Path.PropertyKey, eq.Value)
	}

	column, ok := columns[eq.Path.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", eq.Path.Field)
	}
	param, err := scalarParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", eq.Path.Field, err)
	}
	return column + " = ?", []any{param}, nil
}

// compilePropertyEqual compares a property inside the canonical JSON bag.
// json_type guards the comparison so that 1 never matches true and the text
// "1" never matches the number 1.
func compilePropertyEqual(key ir.BaseURL, val ir.Value) (string, []any, error) {
	path := JSONPath(key)

	switch v := val.(type) {
	case ir.Bool:
		want := "false"
		if v {
			want = "true"
		}
		return "json_type(e.properties, ?) = ?", []any{path, want}, nil
	case ir.String:
		return "(json_type(e.properties, ?) = 'text' AND json_extract(e.properties, ?) = ?)",
			[]any{path, path, norm.NFC.String(string(v))}, nil
	case ir.Int:
		return "(json_type(e.properties, ?) = 'integer' AND json_extract(e.properties, ?) = ?)",
			[]any{path, path, int64(v)}, nil
	case ir.Array, ir.Object:
		canonical, err := ir.MarshalCanonical(v)
		if err != nil {
			return "", nil, fmt.Errorf("property %q: %w", key, err)
		}
		kind := "array"
		if _, isObj := v.(ir.Object); isObj {
			kind = "object"
		}
		return "(json_type(e.properties, ?) = ? AND json_extract(e.properties, ?) = ?)",
			[]any{path, kind, path, string(canonical)}, nil
	default:
		return "", nil, fmt.Errorf("property %q: unsupported value type %T", key, val)
	}
}

// JSONPath returns the SQLite JSON path addressing a top-level property.
func JSONPath(key ir.BaseURL) string {
	return `$."` + string(key) + `"`
}

// scalarParam converts a metadata comparison value to a SQL parameter.
// Booleans bind as 0/1 to match the INTEGER columns.
func scalarParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported value type for column comparison: %T", v)
	}
}
