package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/graphrecon/internal/ir"
)

// Validate checks a filter is structurally well formed: no nil nodes,
// known fields with values of the right kind, no Null comparisons, and
// property keys a JSON path can address.
//
// All problems are reported, joined with errors.Join.
func Validate(f Filter) error {
	v := &validator{}
	v.validate(f, "filter")
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validate(f Filter, at string) {
	switch node := f.(type) {
	case nil:
		v.addError("%s: nil filter", at)
	case Equal:
		v.validateEqual(node, at)
	case All:
		for i, child := range node {
			v.validate(child, fmt.Sprintf("%s.all[%d]", at, i))
		}
	case Any:
		for i, child := range node {
			v.validate(child, fmt.Sprintf("%s.any[%d]", at, i))
		}
	default:
		v.addError("%s: unknown filter type %T", at, f)
	}
}

func (v *validator) validateEqual(eq Equal, at string) {
	if eq.Path.Field != "" && eq.Path.PropertyKey != "" {
		v.addError("%s: path sets both field %q and property %q", at, eq.Path.Field, eq.Path.PropertyKey)
		return
	}

	switch eq.Value.(type) {
	case nil:
		v.addError("%s: %s compared to nil value", at, eq.Path)
		return
	case ir.Null:
		v.addError("%s: %s compared to null; use an explicit value", at, eq.Path)
		return
	}

	if eq.Path.IsProperty() {
		if strings.ContainsAny(string(eq.Path.PropertyKey), `"\`) {
			v.addError("%s: property key %q contains a quote or backslash", at, eq.Path.PropertyKey)
		}
		return
	}

	kind, ok := knownFields[eq.Path.Field]
	if !ok {
		v.addError("%s: unknown field %q", at, eq.Path.Field)
		return
	}
	if !kindAccepts(kind, eq.Value) {
		v.addError("%s: field %q cannot be compared to %T", at, eq.Path.Field, eq.Value)
	}
}

func kindAccepts(kind valueKind, val ir.Value) bool {
	switch kind {
	case kindString:
		_, ok := val.(ir.String)
		return ok
	case kindInt:
		_, ok := val.(ir.Int)
		return ok
	case kindBool:
		_, ok := val.(ir.Bool)
		return ok
	}
	return false
}
