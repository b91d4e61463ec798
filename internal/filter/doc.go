// Package filter provides the entity query filter IR consumed by graph
// storage backends.
//
// A filter is a tree of Equal leaves combined with All (logical AND) and
// Any (logical OR). Leaves address entity fields through a Path:
//
//	All{
//	  Equal{Path: Field(FieldArchived), Value: ir.Bool(false)},
//	  Any{
//	    Equal{Path: Property("https://example.com/property-type/name/"), Value: ir.String("Ada")},
//	  },
//	  Equal{Path: Field(FieldOwnedByID), Value: ir.String("web-1")},
//	  VersionedURLMatch("https://example.com/types/person/v/1", MatchExact),
//	}
//
// Filter is a sealed interface using the marker method pattern, so backend
// compilers can switch exhaustively over Equal, All and Any.
//
// Semantics:
//   - All with no children matches every entity
//   - Any with no children matches no entity
//   - Equal never matches Null; absent properties never match
package filter
