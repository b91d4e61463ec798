package reconcile

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/graphrecon/internal/ir"
)

// EnsureTrailingSlash appends "/" to a property key that lacks one.
func EnsureTrailingSlash(key string) string {
	if strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

// normalizeKeys returns a copy of props with every key slash-terminated.
// When both "k" and "k/" are present, the value already stored under "k/"
// is kept.
func normalizeKeys(props ir.Object) ir.Object {
	out := make(ir.Object, len(props))
	for _, key := range props.SortedKeys() {
		normalized := EnsureTrailingSlash(key)
		if _, exists := out[normalized]; exists && normalized != key {
			continue
		}
		out[normalized] = props[key]
	}
	return out
}

// NormalizeProperties returns the property bag to validate and persist for
// a proposal.
//
// Keys are slash-terminated. When the schema declares no properties the
// result is empty, and proposal.Properties is replaced with an empty object
// so callers inspecting the proposal afterwards observe the coercion.
// A nil schema only gets key normalization.
func NormalizeProperties(schema *ir.EntityTypeSchema, proposal *ir.ProposedEntity, logger *slog.Logger) ir.Object {
	if schema != nil && len(schema.Properties) == 0 {
		if logger != nil {
			logger.Info(
				fmt.Sprintf("Overwriting properties of entity with temporary id %d to an empty object, as the target type has no properties", proposal.TemporaryID),
				"temporary_id", proposal.TemporaryID,
				"entity_type_id", schema.ID,
			)
		}
		proposal.Properties = ir.Object{}
		return ir.Object{}
	}
	return normalizeKeys(proposal.Properties)
}
