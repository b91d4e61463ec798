package ir

import (
	"fmt"
	"strings"
	"time"
)

// AccountID identifies the actor performing storage calls.
type AccountID string

// OwnedByID identifies the web (owner) an entity belongs to.
type OwnedByID string

// EntityUUID is the stable unique identifier of an entity within its owner.
type EntityUUID string

// EntityID is the composite identifier "<ownedById>~<entityUuid>".
type EntityID string

// entityIDSeparator separates owner and uuid in an EntityID.
const entityIDSeparator = "~"

// NewEntityID builds a composite entity identifier.
func NewEntityID(owner OwnedByID, id EntityUUID) EntityID {
	return EntityID(string(owner) + entityIDSeparator + string(id))
}

// ParseEntityID splits a composite identifier.
func ParseEntityID(s string) (EntityID, error) {
	owner, id, ok := strings.Cut(s, entityIDSeparator)
	if !ok || owner == "" || id == "" {
		return "", fmt.Errorf("entity id %q: expected <ownedById>~<entityUuid>", s)
	}
	return EntityID(s), nil
}

// OwnedByID returns the owner part of the identifier.
func (id EntityID) OwnedByID() OwnedByID {
	owner, _, _ := strings.Cut(string(id), entityIDSeparator)
	return OwnedByID(owner)
}

// UUID returns the entity uuid part of the identifier.
func (id EntityID) UUID() EntityUUID {
	_, uuid, _ := strings.Cut(string(id), entityIDSeparator)
	return EntityUUID(uuid)
}

// EntityRecordID addresses one edition of an entity.
type EntityRecordID struct {
	EntityID  EntityID `json:"entityId"`
	EditionID string   `json:"editionId"`
}

// EntityMetadata is the persisted metadata returned by storage.
type EntityMetadata struct {
	RecordID     EntityRecordID `json:"recordId"`
	EntityTypeID VersionedURL   `json:"entityTypeId"`
	Archived     bool           `json:"archived"`
	Draft        bool           `json:"draft"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// LinkData connects a link entity to its left (source) and right (target)
// entities.
type LinkData struct {
	LeftEntityID  EntityID `json:"leftEntityId"`
	RightEntityID EntityID `json:"rightEntityId"`
}

// Entity is an already-persisted graph entity.
type Entity struct {
	Metadata   EntityMetadata `json:"metadata"`
	Properties Object         `json:"properties"`
	LinkData   *LinkData      `json:"linkData,omitempty"`
}

// EntityID is shorthand for e.Metadata.RecordID.EntityID.
func (e *Entity) EntityID() EntityID {
	return e.Metadata.RecordID.EntityID
}

// RelationshipSubject is the party a relationship grants access to.
type RelationshipSubject struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subjectId"`
}

// Relationship is an access relationship attached to a created entity.
// Policies are referenced by name only.
type Relationship struct {
	Relation string              `json:"relation"`
	Subject  RelationshipSubject `json:"subject"`
}
