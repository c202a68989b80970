package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jelu/lim-plugin-orr/pkg/types"
)

// CreateZone inserts a new zone.
func (s *Store) CreateZone(ctx context.Context, z *types.Zone) error {
	z.ID = uuid.New()
	z.CreatedAt = time.Now()
	z.UpdatedAt = z.CreatedAt
	const q = `
INSERT INTO zones (id, name, input_type, input_data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q, z.ID, z.Name, z.InputType, z.InputData, z.CreatedAt, z.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create zone: %w", err)
	}
	return nil
}

// GetZone fetches one zone by ID.
func (s *Store) GetZone(ctx context.Context, id uuid.UUID) (*types.Zone, error) {
	const q = `SELECT id, name, input_type, input_data, created_at, updated_at FROM zones WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	return scanZone(row)
}

// ZoneList returns every zone in the Config Store.
func (s *Store) ZoneList(ctx context.Context) ([]types.Zone, error) {
	const q = `SELECT id, name, input_type, input_data, created_at, updated_at FROM zones ORDER BY name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list zones: %w", err)
	}
	defer rows.Close()

	var out []types.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

// UpdateZone overwrites a zone's mutable fields.
func (s *Store) UpdateZone(ctx context.Context, z *types.Zone) error {
	z.UpdatedAt = time.Now()
	const q = `UPDATE zones SET name = $2, input_type = $3, input_data = $4, updated_at = $5 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, z.ID, z.Name, z.InputType, z.InputData, z.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update zone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteZone removes a zone and its cluster assignments.
func (s *Store) DeleteZone(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM zones WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: delete zone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClusterZones returns the zones assigned to a cluster.
func (s *Store) ClusterZones(ctx context.Context, clusterID uuid.UUID) ([]types.Zone, error) {
	const q = `
SELECT z.id, z.name, z.input_type, z.input_data, z.created_at, z.updated_at
FROM zones z
JOIN cluster_zone cz ON cz.zone_id = z.id
WHERE cz.cluster_id = $1
ORDER BY z.name`
	rows, err := s.pool.Query(ctx, q, clusterID)
	if err != nil {
		return nil, fmt.Errorf("store: list cluster zones: %w", err)
	}
	defer rows.Close()

	var out []types.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

// AssignZone adds a zone to a cluster's zone set.
func (s *Store) AssignZone(ctx context.Context, clusterID, zoneID uuid.UUID) error {
	const q = `INSERT INTO cluster_zone (cluster_id, zone_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := s.pool.Exec(ctx, q, clusterID, zoneID)
	if err != nil {
		return fmt.Errorf("store: assign zone to cluster: %w", err)
	}
	return nil
}

// UnassignZone removes a zone from a cluster's zone set.
func (s *Store) UnassignZone(ctx context.Context, clusterID, zoneID uuid.UUID) error {
	const q = `DELETE FROM cluster_zone WHERE cluster_id = $1 AND zone_id = $2`
	_, err := s.pool.Exec(ctx, q, clusterID, zoneID)
	if err != nil {
		return fmt.Errorf("store: unassign zone from cluster: %w", err)
	}
	return nil
}

func scanZone(row rowScanner) (*types.Zone, error) {
	var z types.Zone
	if err := row.Scan(&z.ID, &z.Name, &z.InputType, &z.InputData, &z.CreatedAt, &z.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan zone: %w", err)
	}
	return &z, nil
}
