package filter

import (
	"strings"

	"github.com/roach88/graphrecon/internal/ir"
)

// Filter is a predicate over entities.
// This is a sealed interface - only Equal, All and Any implement it.
type Filter interface {
	filterNode()
}

// FieldName names a metadata field of an entity.
type FieldName string

// Entity metadata fields addressable by a Path.
const (
	FieldArchived         FieldName = "archived"
	FieldDraft            FieldName = "draft"
	FieldOwnedByID        FieldName = "ownedById"
	FieldUUID             FieldName = "uuid"
	FieldTypeVersionedURL FieldName = "type.versionedUrl"
	FieldTypeBaseURL      FieldName = "type.baseUrl"
	FieldTypeVersion      FieldName = "type.version"
	FieldLeftEntityOwner  FieldName = "leftEntity.ownedById"
	FieldLeftEntityUUID   FieldName = "leftEntity.uuid"
	FieldRightEntityOwner FieldName = "rightEntity.ownedById"
	FieldRightEntityUUID  FieldName = "rightEntity.uuid"
)

// knownFields lists fields with their value kind.
var knownFields = map[FieldName]valueKind{
	FieldArchived:         kindBool,
	FieldDraft:            kindBool,
	FieldOwnedByID:        kindString,
	FieldUUID:             kindString,
	FieldTypeVersionedURL: kindString,
	FieldTypeBaseURL:      kindString,
	FieldTypeVersion:      kindInt,
	FieldLeftEntityOwner:  kindString,
	FieldLeftEntityUUID:   kindString,
	FieldRightEntityOwner: kindString,
	FieldRightEntityUUID:  kindString,
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
)

// Path addresses either a metadata field or a property of an entity.
// Exactly one of Field and PropertyKey is set.
type Path struct {
	Field       FieldName
	PropertyKey ir.BaseURL
}

// Field returns a path to an entity metadata field.
func Field(name FieldName) Path {
	return Path{Field: name}
}

// Property returns a path to a property, keyed by property base URL.
func Property(key ir.BaseURL) Path {
	return Path{PropertyKey: key}
}

// IsProperty reports whether the path addresses a property.
func (p Path) IsProperty() bool {
	return p.PropertyKey != ""
}

// String renders the path in dotted form, e.g. "properties.<key>".
func (p Path) String() string {
	if p.IsProperty() {
		return "properties." + string(p.PropertyKey)
	}
	return string(p.Field)
}

// Equal matches entities whose value at Path equals Value.
type Equal struct {
	Path  Path
	Value ir.Value
}

func (Equal) filterNode() {}

// All matches entities matched by every child (logical AND).
type All []Filter

func (All) filterNode() {}

// Any matches entities matched by at least one child (logical OR).
type Any []Filter

func (Any) filterNode() {}

// MatchMode selects how VersionedURLMatch compares entity types.
type MatchMode int

const (
	// MatchExact matches only the given version of the type.
	MatchExact MatchMode = iota
	// MatchAnyVersion matches every version of the type family.
	MatchAnyVersion
)

// VersionedURLMatch builds a filter matching entities of the given type.
func VersionedURLMatch(typeID ir.VersionedURL, mode MatchMode) Filter {
	if mode == MatchAnyVersion {
		return Equal{Path: Field(FieldTypeBaseURL), Value: ir.String(typeID.BaseURL())}
	}
	return Equal{Path: Field(FieldTypeVersionedURL), Value: ir.String(typeID)}
}

// Describe renders a filter in a compact human-readable form for logs.
func Describe(f Filter) string {
	var b strings.Builder
	describe(&b, f)
	return b.String()
}

func describe(b *strings.Builder, f Filter) {
	switch node := f.(type) {
	case Equal:
		b.WriteString(node.Path.String())
		b.WriteString("=")
		data, err := ir.MarshalCanonical(node.Value)
		if err != nil {
			b.WriteString("<invalid>")
			return
		}
		b.Write(data)
	case All:
		describeList(b, "all", node)
	case Any:
		describeList(b, "any", node)
	default:
		b.WriteString("<nil>")
	}
}

func describeList(b *strings.Builder, op string, children []Filter) {
	b.WriteString(op)
	b.WriteString("[")
	for i, child := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		describe(b, child)
	}
	b.WriteString("]")
}
