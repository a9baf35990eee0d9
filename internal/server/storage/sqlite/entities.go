package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/internhub/internhub/internal/models"
	"github.com/internhub/internhub/internal/server/storage"
)

// Timestamps are stored as unix microseconds so ordering survives the
// round-trip exactly (the server clock issues microsecond-granular values).

// SaveEntity inserts or replaces an entity row.
func (s *Storage) SaveEntity(ctx context.Context, entity *models.Entity) error {
	fields, err := json.Marshal(entity.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		INSERT INTO entities (entity_type, id, fields, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`

	_, err = s.db.ExecContext(ctx, query,
		string(entity.Type),
		entity.ID,
		string(fields),
		entity.UpdatedAt.UnixMicro(),
		boolToInt(entity.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// GetEntity returns a single live entity.
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	query := `
		SELECT entity_type, id, fields, updated_at, deleted
		FROM entities
		WHERE entity_type = ? AND id = ? AND deleted = 0
	`

	row := s.db.QueryRowContext(ctx, query, string(entityType), id)

	entity, err := scanEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return entity, nil
}

// ListEntities returns all live entities of a type ordered by updated_at.
func (s *Storage) ListEntities(ctx context.Context, entityType models.EntityType) ([]*models.Entity, error) {
	query := `
		SELECT entity_type, id, fields, updated_at, deleted
		FROM entities
		WHERE entity_type = ? AND deleted = 0
		ORDER BY updated_at ASC
	`

	return s.queryEntities(ctx, query, string(entityType))
}

// ListEntitiesSince returns entities with updated_at strictly after since,
// tombstones included, ordered by updated_at ascending.
func (s *Storage) ListEntitiesSince(ctx context.Context, entityType models.EntityType, since time.Time) ([]*models.Entity, error) {
	query := `
		SELECT entity_type, id, fields, updated_at, deleted
		FROM entities
		WHERE entity_type = ? AND updated_at > ?
		ORDER BY updated_at ASC
	`

	return s.queryEntities(ctx, query, string(entityType), since.UnixMicro())
}

// DeleteEntity turns a live entity into a tombstone stamped at.
func (s *Storage) DeleteEntity(ctx context.Context, entityType models.EntityType, id string, at time.Time) error {
	query := `
		UPDATE entities
		SET deleted = 1, updated_at = ?
		WHERE entity_type = ? AND id = ? AND deleted = 0
	`

	res, err := s.db.ExecContext(ctx, query, at.UnixMicro(), string(entityType), id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrEntityNotFound
	}

	return nil
}

// PurgeTombstones removes tombstones older than cutoff.
func (s *Storage) PurgeTombstones(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM entities WHERE deleted = 1 AND updated_at < ?`

	res, err := s.db.ExecContext(ctx, query, cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return int(affected), nil
}

// MaxUpdatedAt returns the largest updated_at across all rows.
func (s *Storage) MaxUpdatedAt(ctx context.Context) (time.Time, error) {
	query := `SELECT COALESCE(MAX(updated_at), 0) FROM entities`

	var micros int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&micros); err != nil {
		return time.Time{}, fmt.Errorf("failed to get max updated_at: %w", err)
	}

	if micros == 0 {
		return time.Time{}, nil
	}
	return time.UnixMicro(micros).UTC(), nil
}

func (s *Storage) queryEntities(ctx context.Context, query string, args ...any) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	return entities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var (
		entityType string
		id         string
		fieldsJSON string
		micros     int64
		deleted    int
	)

	if err := row.Scan(&entityType, &id, &fieldsJSON, &micros, &deleted); err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}

	return &models.Entity{
		ID:        id,
		Type:      models.EntityType(entityType),
		Fields:    fields,
		UpdatedAt: time.UnixMicro(micros).UTC(),
		Deleted:   deleted != 0,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
