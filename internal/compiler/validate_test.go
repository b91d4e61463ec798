package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/ir"
)

func validSchema() ir.EntityTypeSchema {
	return ir.EntityTypeSchema{
		ID:    "https://example.com/@acme/types/entity-type/person/v/1",
		Title: "Person",
		Properties: map[ir.BaseURL]ir.PropertySchema{
			nameKey: {Type: ir.PropertyText},
			ageKey:  {Type: ir.PropertyNumber},
		},
		Required: []ir.BaseURL{nameKey},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	schema := validSchema()
	assert.Empty(t, Validate(&schema))
}

func TestValidateInvalidID(t *testing.T) {
	schema := validSchema()
	schema.ID = "https://example.com/@acme/types/entity-type/person"

	errs := Validate(&schema)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidTypeID, errs[0].Code)
	assert.Equal(t, "id", errs[0].Field)
}

func TestValidateWhitespaceTitle(t *testing.T) {
	schema := validSchema()
	schema.Title = "   "

	assert.Equal(t, []string{ErrTitleEmpty}, codes(Validate(&schema)))
}

func TestValidatePropertyKeyWithoutSlash(t *testing.T) {
	schema := validSchema()
	schema.Properties["https://example.com/p/email"] = ir.PropertySchema{Type: ir.PropertyText}

	errs := Validate(&schema)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidPropertyKey, errs[0].Code)
	assert.Equal(t, `properties["https://example.com/p/email"]`, errs[0].Field)
}

func TestValidatePropertyKeyNotURL(t *testing.T) {
	schema := validSchema()
	schema.Properties["email/"] = ir.PropertySchema{Type: ir.PropertyText}

	assert.Equal(t, []string{ErrInvalidPropertyKey}, codes(Validate(&schema)))
}

func TestValidateFloatForbidden(t *testing.T) {
	schema := validSchema()
	schema.Properties["https://example.com/p/score/"] = ir.PropertySchema{Type: "float"}

	errs := Validate(&schema)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrFloatTypeForbidden, errs[0].Code)
	assert.Contains(t, errs[0].Message, "use number")
}

func TestValidateInvalidValueType(t *testing.T) {
	schema := validSchema()
	schema.Properties["https://example.com/p/when/"] = ir.PropertySchema{Type: "date"}

	assert.Equal(t, []string{ErrInvalidValueType}, codes(Validate(&schema)))
}

func TestValidateRequiredUndeclared(t *testing.T) {
	schema := validSchema()
	schema.Required = append(schema.Required, "https://example.com/p/missing/")

	errs := Validate(&schema)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrRequiredUndeclared, errs[0].Code)
	assert.Equal(t, "required[1]", errs[0].Field)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	schema := ir.EntityTypeSchema{
		ID: "not-a-url",
		Properties: map[ir.BaseURL]ir.PropertySchema{
			"https://example.com/p/a/": {Type: "float"},
			"https://example.com/p/b":  {Type: ir.PropertyText},
		},
		Required: []ir.BaseURL{"https://example.com/p/c/"},
	}

	assert.Equal(t, []string{
		ErrInvalidTypeID,
		ErrTitleEmpty,
		ErrFloatTypeForbidden,
		ErrInvalidPropertyKey,
		ErrRequiredUndeclared,
	}, codes(Validate(&schema)))
}

func TestValidateAllDuplicateIDs(t *testing.T) {
	a := validSchema()
	b := validSchema()
	c := validSchema()
	c.ID = "https://example.com/@acme/types/entity-type/person/v/2"

	errs := ValidateAll([]ir.EntityTypeSchema{a, c, b})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateTypeID, errs[0].Code)
	assert.Equal(t, "types[2].id", errs[0].Field)
	assert.Contains(t, errs[0].Message, "also types[0]")
}

func TestValidateAllPrefixesFields(t *testing.T) {
	a := validSchema()
	b := validSchema()
	b.ID = "https://example.com/@acme/types/entity-type/company/v/1"
	b.Title = ""

	errs := ValidateAll([]ir.EntityTypeSchema{a, b})
	require.Len(t, errs, 1)
	assert.Equal(t, "types[1].title", errs[0].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "title", Message: "title is required", Code: ErrTitleEmpty}
	assert.Equal(t, "[E102] title: title is required", err.Error())

	err.Line = 7
	assert.Equal(t, "[E102] line 7: title: title is required", err.Error())
}
