package filter

import "github.com/roach88/graphrecon/internal/ir"

// Match evaluates a filter against an entity in memory.
// It agrees with the SQL backend for every valid filter and is used by
// in-memory graph implementations.
func Match(f Filter, e *ir.Entity) bool {
	switch node := f.(type) {
	case Equal:
		return matchEqual(node, e)
	case All:
		for _, child := range node {
			if !Match(child, e) {
				return false
			}
		}
		return true
	case Any:
		for _, child := range node {
			if Match(child, e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchEqual(eq Equal, e *ir.Entity) bool {
	if _, isNull := eq.Value.(ir.Null); isNull || eq.Value == nil {
		return false
	}
	if eq.Path.IsProperty() {
		got, ok := e.Properties[string(eq.Path.PropertyKey)]
		return ok && ir.Equal(got, eq.Value)
	}
	got, ok := fieldValue(eq.Path.Field, e)
	return ok && ir.Equal(got, eq.Value)
}

func fieldValue(name FieldName, e *ir.Entity) (ir.Value, bool) {
	meta := &e.Metadata
	id := meta.RecordID.EntityID
	switch name {
	case FieldArchived:
		return ir.Bool(meta.Archived), true
	case FieldDraft:
		return ir.Bool(meta.Draft), true
	case FieldOwnedByID:
		return ir.String(id.OwnedByID()), true
	case FieldUUID:
		return ir.String(id.UUID()), true
	case FieldTypeVersionedURL:
		return ir.String(meta.EntityTypeID), true
	case FieldTypeBaseURL:
		return ir.String(meta.EntityTypeID.BaseURL()), true
	case FieldTypeVersion:
		return ir.Int(meta.EntityTypeID.Version()), true
	}

	if e.LinkData == nil {
		return nil, false
	}
	switch name {
	case FieldLeftEntityOwner:
		return ir.String(e.LinkData.LeftEntityID.OwnedByID()), true
	case FieldLeftEntityUUID:
		return ir.String(e.LinkData.LeftEntityID.UUID()), true
	case FieldRightEntityOwner:
		return ir.String(e.LinkData.RightEntityID.OwnedByID()), true
	case FieldRightEntityUUID:
		return ir.String(e.LinkData.RightEntityID.UUID()), true
	}
	return nil, false
}
