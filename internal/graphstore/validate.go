package graphstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// Validation operations understood by ValidateEntity, besides "all".
const (
	ValidationOperationProperties = "properties"
	ValidationOperationLinkData   = "linkData"
	ValidationOperationRequired   = "required"
)

// ValidateEntity checks a candidate entity against its registered type.
// Returns a *ValidationError listing every violation, or a wrapped
// ErrEntityTypeNotFound when the type is unknown.
//
// Drafts skip the required-properties check.
func (s *Store) ValidateEntity(ctx context.Context, actorID ir.AccountID, req reconcile.ValidateEntityRequest) error {
	return validateEntity(ctx, s.db, req)
}

func validateEntity(ctx context.Context, q querier, req reconcile.ValidateEntityRequest) error {
	ops, err := validationOps(req.Operations)
	if err != nil {
		return err
	}

	schema, err := entityType(ctx, q, req.EntityTypeID)
	if err != nil {
		return err
	}

	var problems []string
	if ops[ValidationOperationProperties] {
		problems = append(problems, checkProperties(&schema, req.Properties)...)
	}
	if ops[ValidationOperationRequired] && !req.Draft {
		problems = append(problems, checkRequired(&schema, req.Properties)...)
	}
	if ops[ValidationOperationLinkData] {
		linkProblems, err := checkLinkData(ctx, q, &schema, req.LinkData)
		if err != nil {
			return err
		}
		problems = append(problems, linkProblems...)
	}

	if len(problems) > 0 {
		return &ValidationError{EntityTypeID: req.EntityTypeID, Problems: problems}
	}
	return nil
}

// validationOps expands the requested operations. Empty means all.
func validationOps(requested []string) (map[string]bool, error) {
	all := map[string]bool{
		ValidationOperationProperties: true,
		ValidationOperationLinkData:   true,
		ValidationOperationRequired:   true,
	}
	if len(requested) == 0 || slices.Contains(requested, reconcile.ValidationOperationAll) {
		return all, nil
	}

	ops := make(map[string]bool, len(requested))
	for _, op := range requested {
		if !all[op] {
			return nil, fmt.Errorf("unknown validation operation %q", op)
		}
		ops[op] = true
	}
	return ops, nil
}

func checkProperties(schema *ir.EntityTypeSchema, props ir.Object) []string {
	var problems []string
	for _, key := range props.SortedKeys() {
		prop, ok := schema.Properties[ir.BaseURL(key)]
		if !ok {
			problems = append(problems, fmt.Sprintf("property %q is not declared by the type", key))
			continue
		}
		if !prop.Type.Accepts(props[key]) {
			problems = append(problems, fmt.Sprintf("property %q must be of type %s", key, prop.Type))
		}
	}
	return problems
}

func checkRequired(schema *ir.EntityTypeSchema, props ir.Object) []string {
	var problems []string
	for _, req := range schema.Required {
		if _, ok := props[string(req)]; !ok {
			problems = append(problems, fmt.Sprintf("required property %q is missing", req))
		}
	}
	return problems
}

func checkLinkData(ctx context.Context, q querier, schema *ir.EntityTypeSchema, link *ir.LinkData) ([]string, error) {
	if !schema.IsLink {
		if link != nil {
			return []string{"link data given for a non-link entity type"}, nil
		}
		return nil, nil
	}
	if link == nil {
		return []string{"link entity type requires link data"}, nil
	}

	var problems []string
	for _, end := range []struct {
		side string
		id   ir.EntityID
	}{
		{"left", link.LeftEntityID},
		{"right", link.RightEntityID},
	} {
		entity, err := getEntity(ctx, q, end.id)
		switch {
		case errors.Is(err, ErrEntityNotFound):
			problems = append(problems, fmt.Sprintf("%s entity %s does not exist", end.side, end.id))
		case err != nil:
			return nil, err
		case entity.Metadata.Archived:
			problems = append(problems, fmt.Sprintf("%s entity %s is archived", end.side, end.id))
		}
	}
	return problems, nil
}
