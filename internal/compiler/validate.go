package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/graphrecon/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidTypeID      = "E101" // id is not a versioned URL
	ErrTitleEmpty         = "E102" // title is required
	ErrInvalidPropertyKey = "E103" // property key is not a base URL
	ErrInvalidValueType   = "E104" // unknown property value type
	ErrDuplicateTypeID    = "E105" // two types share an id
	ErrFloatTypeForbidden = "E106" // float types not allowed
	ErrRequiredUndeclared = "E107" // required key not among properties
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks one compiled entity type. All errors are returned, not
// just the first.
func Validate(schema *ir.EntityTypeSchema) []ValidationError {
	var errs []ValidationError

	if !schema.ID.Valid() {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("%q is not a versioned url (\"<base>/v/<n>\")", schema.ID),
			Code:    ErrInvalidTypeID,
		})
	}

	if strings.TrimSpace(schema.Title) == "" {
		errs = append(errs, ValidationError{
			Field:   "title",
			Message: "title is required and must be non-empty",
			Code:    ErrTitleEmpty,
		})
	}

	keys := make([]ir.BaseURL, 0, len(schema.Properties))
	for key := range schema.Properties {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		field := fmt.Sprintf("properties[%q]", key)
		if !isBaseURL(key) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "property key must be a url ending in \"/\"",
				Code:    ErrInvalidPropertyKey,
			})
		}

		t := schema.Properties[key].Type
		switch {
		case t == "float":
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "float type forbidden, use number instead",
				Code:    ErrFloatTypeForbidden,
			})
		case !t.Valid():
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("invalid property value type %q", t),
				Code:    ErrInvalidValueType,
			})
		}
	}

	for i, req := range schema.Required {
		if _, ok := schema.Properties[req]; !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("required[%d]", i),
				Message: fmt.Sprintf("required property %q is not declared", req),
				Code:    ErrRequiredUndeclared,
			})
		}
	}

	return errs
}

// ValidateAll validates each type and rejects duplicate ids. Fields are
// prefixed with the type's index.
func ValidateAll(schemas []ir.EntityTypeSchema) []ValidationError {
	var errs []ValidationError
	seen := make(map[ir.VersionedURL]int, len(schemas))

	for i := range schemas {
		prefix := fmt.Sprintf("types[%d]", i)
		for _, e := range Validate(&schemas[i]) {
			e.Field = prefix + "." + e.Field
			errs = append(errs, e)
		}

		if first, dup := seen[schemas[i].ID]; dup {
			errs = append(errs, ValidationError{
				Field:   prefix + ".id",
				Message: fmt.Sprintf("duplicate entity type id %q (also types[%d])", schemas[i].ID, first),
				Code:    ErrDuplicateTypeID,
			})
			continue
		}
		seen[schemas[i].ID] = i
	}

	return errs
}

func isBaseURL(key ir.BaseURL) bool {
	s := string(key)
	return strings.HasSuffix(s, "/") &&
		(strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://"))
}
