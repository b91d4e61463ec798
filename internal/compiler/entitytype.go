package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/graphrecon/internal/ir"
)

// CompileEntityType parses a CUE value into an EntityTypeSchema.
//
// The CUE value should be the entity type struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entityType: person: { id: "...", title: "Person" }`)
//	schema, err := CompileEntityType(v.LookupPath(cue.ParsePath("entityType.person")))
//
// Property value types may be written as CUE kinds (string, int, bool,
// {...}, [...]) or as type names ("text", "number", "boolean", "object",
// "list"). Floats are rejected.
func CompileEntityType(v cue.Value) (*ir.EntityTypeSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "entityType",
			Message: "entity type does not exist",
			Pos:     v.Pos(),
		}
	}

	schema := &ir.EntityTypeSchema{
		Properties: make(map[ir.BaseURL]ir.PropertySchema),
	}

	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return nil, &CompileError{
			Field:   "id",
			Message: "id is required",
			Pos:     v.Pos(),
		}
	}
	id, err := idVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	schema.ID = ir.VersionedURL(id)

	// Title defaults to the struct label
	schema.Title, err = optionalString(v, "title")
	if err != nil {
		return nil, err
	}
	if schema.Title == "" {
		if labels := v.Path().Selectors(); len(labels) > 0 {
			schema.Title = labels[len(labels)-1].String()
		}
	}

	schema.Description, err = optionalString(v, "description")
	if err != nil {
		return nil, err
	}

	linkVal := v.LookupPath(cue.ParsePath("link"))
	if linkVal.Exists() {
		schema.IsLink, err = linkVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}

	if err := parseProperties(v, schema); err != nil {
		return nil, err
	}

	schema.Required, err = parseRequired(v)
	if err != nil {
		return nil, err
	}

	return schema, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseProperties reads the properties struct. Labels are property base
// URLs and must be quoted in CUE.
func parseProperties(v cue.Value, schema *ir.EntityTypeSchema) error {
	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil
	}

	iter, err := propsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		key := ir.BaseURL(iter.Selector().Unquoted())
		propVal := iter.Value()

		prop := ir.PropertySchema{}
		prop.Title, err = optionalString(propVal, "title")
		if err != nil {
			return err
		}

		typeVal := propVal.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("property %q: type is required", key),
				Pos:     propVal.Pos(),
			}
		}
		prop.Type, err = extractValueType(typeVal)
		if err != nil {
			return err
		}

		schema.Properties[key] = prop
	}

	return nil
}

func parseRequired(v cue.Value) ([]ir.BaseURL, error) {
	reqVal := v.LookupPath(cue.ParsePath("required"))
	if !reqVal.Exists() {
		return nil, nil
	}

	iter, err := reqVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var required []ir.BaseURL
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		required = append(required, ir.BaseURL(s))
	}
	sort.Slice(required, func(i, j int) bool { return required[i] < required[j] })
	return required, nil
}

// extractValueType converts a CUE type or type name to a property value type.
// Floats are forbidden: property numbers are int64.
func extractValueType(v cue.Value) (ir.PropertyValueType, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		if name == "float" {
			return "", floatForbidden(v)
		}
		t := ir.PropertyValueType(name)
		if !t.Valid() {
			return "", &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("unknown property value type %q", name),
				Pos:     v.Pos(),
			}
		}
		return t, nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.PropertyText, nil
	case cue.IntKind:
		return ir.PropertyNumber, nil
	case cue.BoolKind:
		return ir.PropertyBoolean, nil
	case cue.StructKind:
		return ir.PropertyObject, nil
	case cue.ListKind:
		return ir.PropertyList, nil
	case cue.FloatKind, cue.NumberKind:
		return "", floatForbidden(v)
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported CUE kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func floatForbidden(v cue.Value) error {
	return &CompileError{
		Field:   "type",
		Message: "float type is forbidden, use int instead",
		Pos:     v.Pos(),
	}
}

// CompileError carries CUE source position for compile failures.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
