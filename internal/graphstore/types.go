package graphstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/graphrecon/internal/ir"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RegisterEntityType stores an entity type schema.
//
// Types are immutable once registered: registering the same schema again is
// a no-op, registering a different schema under the same versioned URL is
// an error.
func (s *Store) RegisterEntityType(ctx context.Context, schema ir.EntityTypeSchema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("register entity type: %w", err)
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("register entity type: marshal schema: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_types (id, base_url, version, is_link, schema)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		string(schema.ID),
		string(schema.ID.BaseURL()),
		schema.ID.Version(),
		boolToInt(schema.IsLink),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("register entity type: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("register entity type: rows affected: %w", err)
	}
	if inserted > 0 {
		return nil
	}

	var existing string
	if err := s.db.QueryRowContext(ctx, `SELECT schema FROM entity_types WHERE id = ?`, string(schema.ID)).Scan(&existing); err != nil {
		return fmt.Errorf("register entity type: read existing: %w", err)
	}
	if !bytes.Equal([]byte(existing), data) {
		return fmt.Errorf("register entity type: %s is already registered with a different schema", schema.ID)
	}
	return nil
}

// EntityType returns the registered schema for a versioned URL.
// Returns ErrEntityTypeNotFound if the type is not registered.
func (s *Store) EntityType(ctx context.Context, id ir.VersionedURL) (ir.EntityTypeSchema, error) {
	return entityType(ctx, s.db, id)
}

func entityType(ctx context.Context, q querier, id ir.VersionedURL) (ir.EntityTypeSchema, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT schema FROM entity_types WHERE id = ?`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.EntityTypeSchema{}, fmt.Errorf("%s: %w", id, ErrEntityTypeNotFound)
	}
	if err != nil {
		return ir.EntityTypeSchema{}, fmt.Errorf("read entity type %s: %w", id, err)
	}

	var schema ir.EntityTypeSchema
	if err := json.Unmarshal([]byte(data), &schema); err != nil {
		return ir.EntityTypeSchema{}, fmt.Errorf("unmarshal entity type %s: %w", id, err)
	}
	return schema, nil
}

// EntityTypes returns every registered type ordered by versioned URL.
func (s *Store) EntityTypes(ctx context.Context) ([]ir.EntityTypeSchema, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT schema FROM entity_types ORDER BY id ASC COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("query entity types: %w", err)
	}
	defer rows.Close()

	types := []ir.EntityTypeSchema{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entity type: %w", err)
		}
		var schema ir.EntityTypeSchema
		if err := json.Unmarshal([]byte(data), &schema); err != nil {
			return nil, fmt.Errorf("unmarshal entity type: %w", err)
		}
		types = append(types, schema)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity types: %w", err)
	}
	return types, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
