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

// CreatePolicy inserts a new signing policy.
func (s *Store) CreatePolicy(ctx context.Context, p *types.Policy) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	const q = `INSERT INTO policies (id, name, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, q, p.ID, p.Name, p.Data, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create policy: %w", err)
	}
	return nil
}

// GetPolicy fetches one policy by ID.
func (s *Store) GetPolicy(ctx context.Context, id uuid.UUID) (*types.Policy, error) {
	const q = `SELECT id, name, data, created_at, updated_at FROM policies WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	return scanPolicy(row)
}

// PolicyList returns every policy in the Config Store.
func (s *Store) PolicyList(ctx context.Context) ([]types.Policy, error) {
	const q = `SELECT id, name, data, created_at, updated_at FROM policies ORDER BY name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list policies: %w", err)
	}
	defer rows.Close()

	var out []types.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePolicy overwrites a policy's mutable fields.
func (s *Store) UpdatePolicy(ctx context.Context, p *types.Policy) error {
	p.UpdatedAt = time.Now()
	const q = `UPDATE policies SET name = $2, data = $3, updated_at = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, p.ID, p.Name, p.Data, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePolicy removes a policy and its cluster assignments.
func (s *Store) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM policies WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClusterPolicies returns the policies assigned to a cluster.
func (s *Store) ClusterPolicies(ctx context.Context, clusterID uuid.UUID) ([]types.Policy, error) {
	const q = `
SELECT p.id, p.name, p.data, p.created_at, p.updated_at
FROM policies p
JOIN cluster_policy cp ON cp.policy_id = p.id
WHERE cp.cluster_id = $1
ORDER BY p.name`
	rows, err := s.pool.Query(ctx, q, clusterID)
	if err != nil {
		return nil, fmt.Errorf("store: list cluster policies: %w", err)
	}
	defer rows.Close()

	var out []types.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AssignPolicy adds a policy to a cluster's policy set.
func (s *Store) AssignPolicy(ctx context.Context, clusterID, policyID uuid.UUID) error {
	const q = `INSERT INTO cluster_policy (cluster_id, policy_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := s.pool.Exec(ctx, q, clusterID, policyID)
	if err != nil {
		return fmt.Errorf("store: assign policy to cluster: %w", err)
	}
	return nil
}

func scanPolicy(row rowScanner) (*types.Policy, error) {
	var p types.Policy
	if err := row.Scan(&p.ID, &p.Name, &p.Data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan policy: %w", err)
	}
	return &p, nil
}
