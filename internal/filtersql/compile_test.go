package filtersql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
)

const nameKey ir.BaseURL = "https://example.com/property-type/name/"

func TestCompile_DuplicateQueryShape(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.Compile(Query{
		Filter: filter.All{
			filter.Equal{Path: filter.Field(filter.FieldArchived), Value: ir.Bool(false)},
			filter.Any{
				filter.Equal{Path: filter.Property(nameKey), Value: ir.String("Ada")},
			},
			filter.Equal{Path: filter.Field(filter.FieldOwnedByID), Value: ir.String("web-1")},
			filter.VersionedURLMatch("https://example.com/types/person/v/1", filter.MatchExact),
		},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT "+EntityColumns+" FROM entities e WHERE "+
			"(e.archived = ? AND (json_type(e.properties, ?) = 'text' AND json_extract(e.properties, ?) = ?) "+
			"AND e.owned_by_id = ? AND e.entity_type_id = ?) AND e.draft = 0 "+
			"ORDER BY e.seq ASC, e.entity_uuid ASC COLLATE BINARY",
		sql)

	path := `$."https://example.com/property-type/name/"`
	assert.Equal(t, []any{int64(0), path, path, "Ada", "web-1", "https://example.com/types/person/v/1"}, params)
	assert.NotContains(t, sql, "Ada")
}

func TestCompile_AnyJoinsWithOr(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.CompilePredicate(filter.Any{
		filter.Equal{Path: filter.Property("name/"), Value: ir.String("Ada")},
		filter.Equal{Path: filter.Property("legal-name/"), Value: ir.String("Augusta Ada King")},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, " OR ")
	assert.Len(t, params, 6)
}

func TestCompile_EmptyListsAreIdentities(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.CompilePredicate(filter.All{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)

	sql, _, err = c.CompilePredicate(filter.Any{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
}

func TestCompile_PropertyValueKinds(t *testing.T) {
	tests := []struct {
		name       string
		value      ir.Value
		wantSQL    string
		wantParams []any
	}{
		{
			name:       "bool",
			value:      ir.Bool(true),
			wantSQL:    "json_type(e.properties, ?) = ?",
			wantParams: []any{`$."k/"`, "true"},
		},
		{
			name:       "int",
			value:      ir.Int(7),
			wantSQL:    "(json_type(e.properties, ?) = 'integer' AND json_extract(e.properties, ?) = ?)",
			wantParams: []any{`$."k/"`, `$."k/"`, int64(7)},
		},
		{
			name:       "object",
			value:      ir.Object{"b": ir.Int(1), "a": ir.String("x")},
			wantSQL:    "(json_type(e.properties, ?) = ? AND json_extract(e.properties, ?) = ?)",
			wantParams: []any{`$."k/"`, "object", `$."k/"`, `{"a":"x","b":1}`},
		},
		{
			name:       "array",
			value:      ir.Array{ir.Int(1)},
			wantSQL:    "(json_type(e.properties, ?) = ? AND json_extract(e.properties, ?) = ?)",
			wantParams: []any{`$."k/"`, "array", `$."k/"`, `[1]`},
		},
		{
			name:       "string is NFC normalized",
			value:      ir.String("cafe\u0301"),
			wantSQL:    "(json_type(e.properties, ?) = 'text' AND json_extract(e.properties, ?) = ?)",
			wantParams: []any{`$."k/"`, `$."k/"`, "caf\u00e9"},
		},
	}

	c := NewCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := c.CompilePredicate(filter.Equal{Path: filter.Property("k/"), Value: tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompile_TemporalAxesAndDrafts(t *testing.T) {
	c := NewCompiler()
	asOf := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	sql, params, err := c.Compile(Query{
		Filter:        filter.Equal{Path: filter.Field(filter.FieldUUID), Value: ir.String("u-1")},
		AsOf:          &asOf,
		IncludeDrafts: true,
	})
	require.NoError(t, err)

	assert.NotContains(t, sql, "e.draft = 0")
	assert.Contains(t, sql, "e.created_at_ns <= ?")
	assert.Equal(t, []any{"u-1", asOf.UnixNano()}, params)
}

func TestCompile_LinkEndpointFields(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.CompilePredicate(filter.All{
		filter.Equal{Path: filter.Field(filter.FieldLeftEntityOwner), Value: ir.String("web-1")},
		filter.Equal{Path: filter.Field(filter.FieldLeftEntityUUID), Value: ir.String("a")},
		filter.Equal{Path: filter.Field(filter.FieldRightEntityOwner), Value: ir.String("web-1")},
		filter.Equal{Path: filter.Field(filter.FieldRightEntityUUID), Value: ir.String("b")},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"(e.left_owned_by_id = ? AND e.left_entity_uuid = ? AND e.right_owned_by_id = ? AND e.right_entity_uuid = ?)",
		sql)
	assert.Equal(t, []any{"web-1", "a", "web-1", "b"}, params)
}

func TestCompile_RejectsInvalidFilter(t *testing.T) {
	c := NewCompiler()

	_, _, err := c.Compile(Query{Filter: filter.Equal{Path: filter.Property("k/"), Value: ir.Null{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")

	_, _, err = c.Compile(Query{Filter: nil})
	require.Error(t, err)
}
