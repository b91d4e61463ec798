package reconcile

import (
	"context"
	"strings"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
)

// identityKeyNames is the vocabulary of name-like property slugs treated as
// identifying an entity within its owner and type.
var identityKeyNames = map[string]bool{
	"name":           true,
	"display-name":   true,
	"legal-name":     true,
	"preferred-name": true,
	"profile-url":    true,
}

// IdentityKeys returns the normalized keys of props whose last path segment
// is in the identity vocabulary, in canonical key order.
func IdentityKeys(props ir.Object) []string {
	var keys []string
	for _, key := range props.SortedKeys() {
		if !strings.HasSuffix(key, "/") {
			continue
		}
		if identityKeyNames[ir.BaseURL(key).LastSegment()] {
			keys = append(keys, key)
		}
	}
	return keys
}

// DuplicateFilter builds the non-link duplicate query. Returns nil when the
// properties carry no identity key, in which case no query is issued.
func DuplicateFilter(ownedByID ir.OwnedByID, entityTypeID ir.VersionedURL, props ir.Object) filter.Filter {
	keys := IdentityKeys(props)
	if len(keys) == 0 {
		return nil
	}

	anyOf := make(filter.Any, 0, len(keys))
	for _, key := range keys {
		anyOf = append(anyOf, filter.Equal{
			Path:  filter.Property(ir.BaseURL(key)),
			Value: props[key],
		})
	}

	return filter.All{
		filter.Equal{Path: filter.Field(filter.FieldArchived), Value: ir.Bool(false)},
		anyOf,
		filter.Equal{Path: filter.Field(filter.FieldOwnedByID), Value: ir.String(ownedByID)},
		filter.VersionedURLMatch(entityTypeID, filter.MatchExact),
	}
}

// LinkDuplicateFilter builds the query for an existing link between the
// same left and right entities.
func LinkDuplicateFilter(link ir.LinkData) filter.Filter {
	return filter.All{
		filter.Equal{Path: filter.Field(filter.FieldArchived), Value: ir.Bool(false)},
		filter.Equal{Path: filter.Field(filter.FieldLeftEntityOwner), Value: ir.String(link.LeftEntityID.OwnedByID())},
		filter.Equal{Path: filter.Field(filter.FieldLeftEntityUUID), Value: ir.String(link.LeftEntityID.UUID())},
		filter.Equal{Path: filter.Field(filter.FieldRightEntityOwner), Value: ir.String(link.RightEntityID.OwnedByID())},
		filter.Equal{Path: filter.Field(filter.FieldRightEntityUUID), Value: ir.String(link.RightEntityID.UUID())},
	}
}

// Matcher looks up existing entities equivalent to a proposal.
type Matcher struct {
	graph   GraphAPI
	actorID ir.AccountID
}

// NewMatcher creates a matcher issuing queries as actorID.
func NewMatcher(graph GraphAPI, actorID ir.AccountID) *Matcher {
	return &Matcher{graph: graph, actorID: actorID}
}

// FindDuplicate returns the first existing entity of the same owner and
// exact type that shares any identity key value with props. Returns nil
// without querying when props has no identity key.
func (m *Matcher) FindDuplicate(ctx context.Context, ownedByID ir.OwnedByID, entityTypeID ir.VersionedURL, props ir.Object) (*ir.Entity, error) {
	f := DuplicateFilter(ownedByID, entityTypeID, props)
	if f == nil {
		return nil, nil
	}
	return m.first(ctx, f)
}

// FindDuplicateLink returns an existing, non-archived link between the same
// left and right entities.
func (m *Matcher) FindDuplicateLink(ctx context.Context, link ir.LinkData) (*ir.Entity, error) {
	return m.first(ctx, LinkDuplicateFilter(link))
}

func (m *Matcher) first(ctx context.Context, f filter.Filter) (*ir.Entity, error) {
	entities, err := m.graph.QueryEntities(ctx, m.actorID, QueryEntitiesRequest{
		Filter:        f,
		IncludeDrafts: false,
	})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

// IsMatch reports whether every proposed property is present and equal in
// the existing bag. Extra existing keys are ignored. Nested objects match as
// subsets; arrays must have equal length with element-wise matching.
func IsMatch(existing, proposed ir.Object) bool {
	for key, want := range proposed {
		got, ok := existing[key]
		if !ok || !subsetMatch(got, want) {
			return false
		}
	}
	return true
}

func subsetMatch(existing, proposed ir.Value) bool {
	switch p := proposed.(type) {
	case ir.Object:
		e, ok := existing.(ir.Object)
		return ok && IsMatch(e, p)
	case ir.Array:
		e, ok := existing.(ir.Array)
		if !ok || len(e) != len(p) {
			return false
		}
		for i := range p {
			if !subsetMatch(e[i], p[i]) {
				return false
			}
		}
		return true
	default:
		return ir.Equal(existing, proposed)
	}
}
