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

// CreateHSM inserts a new HSM configuration.
func (s *Store) CreateHSM(ctx context.Context, h *types.HSM) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	const q = `INSERT INTO hsms (id, name, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, q, h.ID, h.Name, h.Data, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create hsm: %w", err)
	}
	return nil
}

// GetHSM fetches one HSM configuration by ID.
func (s *Store) GetHSM(ctx context.Context, id uuid.UUID) (*types.HSM, error) {
	const q = `SELECT id, name, data, created_at, updated_at FROM hsms WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	return scanHSM(row)
}

// HSMList returns every HSM configuration in the Config Store.
func (s *Store) HSMList(ctx context.Context) ([]types.HSM, error) {
	const q = `SELECT id, name, data, created_at, updated_at FROM hsms ORDER BY name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list hsms: %w", err)
	}
	defer rows.Close()

	var out []types.HSM
	for rows.Next() {
		h, err := scanHSM(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// UpdateHSM overwrites an HSM configuration's mutable fields.
func (s *Store) UpdateHSM(ctx context.Context, h *types.HSM) error {
	h.UpdatedAt = time.Now()
	const q = `UPDATE hsms SET name = $2, data = $3, updated_at = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, h.ID, h.Name, h.Data, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update hsm: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteHSM removes an HSM configuration and its cluster assignments.
func (s *Store) DeleteHSM(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM hsms WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: delete hsm: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClusterHSMs returns the HSM configurations assigned to a cluster.
func (s *Store) ClusterHSMs(ctx context.Context, clusterID uuid.UUID) ([]types.HSM, error) {
	const q = `
SELECT h.id, h.name, h.data, h.created_at, h.updated_at
FROM hsms h
JOIN cluster_hsm ch ON ch.hsm_id = h.id
WHERE ch.cluster_id = $1
ORDER BY h.name`
	rows, err := s.pool.Query(ctx, q, clusterID)
	if err != nil {
		return nil, fmt.Errorf("store: list cluster hsms: %w", err)
	}
	defer rows.Close()

	var out []types.HSM
	for rows.Next() {
		h, err := scanHSM(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// AssignHSM adds an HSM configuration to a cluster's HSM set.
func (s *Store) AssignHSM(ctx context.Context, clusterID, hsmID uuid.UUID) error {
	const q = `INSERT INTO cluster_hsm (cluster_id, hsm_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := s.pool.Exec(ctx, q, clusterID, hsmID)
	if err != nil {
		return fmt.Errorf("store: assign hsm to cluster: %w", err)
	}
	return nil
}

func scanHSM(row rowScanner) (*types.HSM, error) {
	var h types.HSM
	if err := row.Scan(&h.ID, &h.Name, &h.Data, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan hsm: %w", err)
	}
	return &h, nil
}
