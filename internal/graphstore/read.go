package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/graphrecon/internal/filtersql"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// QueryEntities returns entities matching the request filter.
// Results are ordered deterministically: ORDER BY seq ASC, entity_uuid ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryEntities(ctx context.Context, actorID ir.AccountID, req reconcile.QueryEntitiesRequest) ([]ir.Entity, error) {
	query, params, err := s.compiler.Compile(filtersql.Query{
		Filter:        req.Filter,
		AsOf:          req.TemporalAxes.AsOf,
		IncludeDrafts: req.IncludeDrafts,
	})
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []ir.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// GetEntity retrieves a single entity by id, archived or not.
// Returns ErrEntityNotFound if it does not exist.
func (s *Store) GetEntity(ctx context.Context, id ir.EntityID) (ir.Entity, error) {
	return getEntity(ctx, s.db, id)
}

func getEntity(ctx context.Context, q querier, id ir.EntityID) (ir.Entity, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+filtersql.EntityColumns+`
		FROM entities e
		WHERE e.owned_by_id = ? AND e.entity_uuid = ?
	`, string(id.OwnedByID()), string(id.UUID()))

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Entity{}, fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	return entity, err
}

// Relationships returns the access relationships of an entity, sorted.
func (s *Store) Relationships(ctx context.Context, id ir.EntityID) ([]ir.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relation, subject_kind, subject_id
		FROM entity_relationships
		WHERE owned_by_id = ? AND entity_uuid = ?
		ORDER BY relation ASC, subject_kind ASC, subject_id ASC COLLATE BINARY
	`, string(id.OwnedByID()), string(id.UUID()))
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	rels := []ir.Relationship{}
	for rows.Next() {
		var rel ir.Relationship
		if err := rows.Scan(&rel.Relation, &rel.Subject.Kind, &rel.Subject.SubjectID); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return rels, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one row in filtersql.EntityColumns order.
func scanEntity(row scanner) (ir.Entity, error) {
	var (
		ownedBy, entityUUID, editionID, typeID, propsJSON string
		leftOwner, leftUUID, rightOwner, rightUUID        sql.NullString
		archived, draft                                   int
		createdAtNs                                       int64
	)
	err := row.Scan(
		&ownedBy, &entityUUID, &editionID, &typeID, &propsJSON,
		&leftOwner, &leftUUID, &rightOwner, &rightUUID,
		&archived, &draft, &createdAtNs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Entity{}, err
		}
		return ir.Entity{}, fmt.Errorf("scan entity: %w", err)
	}

	var props ir.Object
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return ir.Entity{}, fmt.Errorf("unmarshal properties of %s~%s: %w", ownedBy, entityUUID, err)
	}

	entity := ir.Entity{
		Metadata: ir.EntityMetadata{
			RecordID: ir.EntityRecordID{
				EntityID:  ir.NewEntityID(ir.OwnedByID(ownedBy), ir.EntityUUID(entityUUID)),
				EditionID: editionID,
			},
			EntityTypeID: ir.VersionedURL(typeID),
			Archived:     archived != 0,
			Draft:        draft != 0,
			CreatedAt:    time.Unix(0, createdAtNs).UTC(),
		},
		Properties: props,
	}
	if leftUUID.Valid && rightUUID.Valid {
		entity.LinkData = &ir.LinkData{
			LeftEntityID:  ir.NewEntityID(ir.OwnedByID(leftOwner.String), ir.EntityUUID(leftUUID.String)),
			RightEntityID: ir.NewEntityID(ir.OwnedByID(rightOwner.String), ir.EntityUUID(rightUUID.String)),
		}
	}
	return entity, nil
}
