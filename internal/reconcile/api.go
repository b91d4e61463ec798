package reconcile

import (
	"context"
	"time"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
)

// GraphAPI is the graph storage collaborator the engine persists through.
// Implemented by graphstore.Store and by test fakes.
type GraphAPI interface {
	// ValidateEntity checks a candidate entity against its type.
	// Returns an error describing every violation.
	ValidateEntity(ctx context.Context, actorID ir.AccountID, req ValidateEntityRequest) error

	// CreateEntity persists a new entity and returns its metadata.
	CreateEntity(ctx context.Context, actorID ir.AccountID, req CreateEntityRequest) (ir.EntityMetadata, error)

	// QueryEntities returns entities matching the filter, in a stable order.
	QueryEntities(ctx context.Context, actorID ir.AccountID, req QueryEntitiesRequest) ([]ir.Entity, error)
}

// ValidationOperationAll requests every validation check.
const ValidationOperationAll = "all"

// ValidateEntityRequest is the payload of GraphAPI.ValidateEntity.
type ValidateEntityRequest struct {
	EntityTypeID ir.VersionedURL `json:"entityTypeId"`
	Properties   ir.Object       `json:"properties"`
	LinkData     *ir.LinkData    `json:"linkData,omitempty"`
	Draft        bool            `json:"draft"`
	Operations   []string        `json:"operations"`
}

// CreateEntityRequest is the payload of GraphAPI.CreateEntity.
type CreateEntityRequest struct {
	EntityTypeID  ir.VersionedURL   `json:"entityTypeId"`
	OwnedByID     ir.OwnedByID      `json:"ownedById"`
	Properties    ir.Object         `json:"properties"`
	LinkData      *ir.LinkData      `json:"linkData,omitempty"`
	Draft         bool              `json:"draft"`
	Relationships []ir.Relationship `json:"relationships"`
}

// TemporalAxes pins a query to a point in time. A nil AsOf means latest.
type TemporalAxes struct {
	AsOf *time.Time `json:"asOf,omitempty"`
}

// QueryEntitiesRequest is the payload of GraphAPI.QueryEntities.
type QueryEntitiesRequest struct {
	Filter        filter.Filter `json:"-"`
	TemporalAxes  TemporalAxes  `json:"temporalAxes"`
	IncludeDrafts bool          `json:"includeDrafts"`
}

// DefaultRelationships returns the access relationships every created
// entity carries: administrator, update and view for the owning web.
func DefaultRelationships() []ir.Relationship {
	return []ir.Relationship{
		{Relation: "setting", Subject: ir.RelationshipSubject{Kind: "setting", SubjectID: "administratorFromWeb"}},
		{Relation: "setting", Subject: ir.RelationshipSubject{Kind: "setting", SubjectID: "updateFromWeb"}},
		{Relation: "setting", Subject: ir.RelationshipSubject{Kind: "setting", SubjectID: "viewFromWeb"}},
	}
}
