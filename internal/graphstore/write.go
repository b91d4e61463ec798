package graphstore

import (
	"context"
	"fmt"

	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// CreateEntity validates and inserts a new entity with its relationships.
// Properties are stored as canonical JSON so that filters compare
// byte-for-byte. Validation runs inside the same transaction as the insert.
func (s *Store) CreateEntity(ctx context.Context, actorID ir.AccountID, req reconcile.CreateEntityRequest) (ir.EntityMetadata, error) {
	if req.OwnedByID == "" {
		return ir.EntityMetadata{}, fmt.Errorf("create entity: ownedById is required")
	}

	props := req.Properties
	if props == nil {
		props = ir.Object{}
	}
	propsJSON, err := ir.MarshalCanonical(props)
	if err != nil {
		return ir.EntityMetadata{}, fmt.Errorf("create entity: marshal properties: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.EntityMetadata{}, fmt.Errorf("create entity: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	err = validateEntity(ctx, tx, reconcile.ValidateEntityRequest{
		EntityTypeID: req.EntityTypeID,
		Properties:   props,
		LinkData:     req.LinkData,
		Draft:        req.Draft,
		Operations:   []string{reconcile.ValidationOperationAll},
	})
	if err != nil {
		return ir.EntityMetadata{}, err
	}

	meta := ir.EntityMetadata{
		RecordID: ir.EntityRecordID{
			EntityID:  ir.NewEntityID(req.OwnedByID, ir.EntityUUID(s.ids.Generate())),
			EditionID: s.ids.Generate(),
		},
		EntityTypeID: req.EntityTypeID,
		Draft:        req.Draft,
		CreatedAt:    s.now().UTC(),
	}

	var leftOwner, leftUUID, rightOwner, rightUUID any
	if req.LinkData != nil {
		leftOwner = string(req.LinkData.LeftEntityID.OwnedByID())
		leftUUID = string(req.LinkData.LeftEntityID.UUID())
		rightOwner = string(req.LinkData.RightEntityID.OwnedByID())
		rightUUID = string(req.LinkData.RightEntityID.UUID())
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities
		(owned_by_id, entity_uuid, edition_id, entity_type_id, entity_type_base_url, entity_type_version,
		 properties, left_owned_by_id, left_entity_uuid, right_owned_by_id, right_entity_uuid,
		 archived, draft, created_by_id, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`,
		string(req.OwnedByID),
		string(meta.RecordID.EntityID.UUID()),
		meta.RecordID.EditionID,
		string(req.EntityTypeID),
		string(req.EntityTypeID.BaseURL()),
		req.EntityTypeID.Version(),
		string(propsJSON),
		leftOwner, leftUUID, rightOwner, rightUUID,
		boolToInt(req.Draft),
		string(actorID),
		meta.CreatedAt.UnixNano(),
	)
	if err != nil {
		return ir.EntityMetadata{}, fmt.Errorf("create entity: %w", err)
	}

	for _, rel := range req.Relationships {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entity_relationships (owned_by_id, entity_uuid, relation, subject_kind, subject_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			string(req.OwnedByID),
			string(meta.RecordID.EntityID.UUID()),
			rel.Relation,
			rel.Subject.Kind,
			rel.Subject.SubjectID,
		)
		if err != nil {
			return ir.EntityMetadata{}, fmt.Errorf("create entity: write relationship: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ir.EntityMetadata{}, fmt.Errorf("create entity: commit: %w", err)
	}
	return meta, nil
}

// ArchiveEntity marks an entity archived. Archived entities are never
// returned by filters that require archived = false.
// Returns ErrEntityNotFound if the entity does not exist.
func (s *Store) ArchiveEntity(ctx context.Context, id ir.EntityID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE entities SET archived = 1
		WHERE owned_by_id = ? AND entity_uuid = ?
	`, string(id.OwnedByID()), string(id.UUID()))
	if err != nil {
		return fmt.Errorf("archive entity: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive entity: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("archive entity %s: %w", id, ErrEntityNotFound)
	}
	return nil
}
