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

// CreateCluster inserts a new cluster.
func (s *Store) CreateCluster(ctx context.Context, c *types.Cluster) error {
	c.ID = uuid.New()
	c.State = types.ClusterStateInitializing
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	const q = `
INSERT INTO clusters (id, name, mode, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q, c.ID, c.Name, c.Mode, c.State, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create cluster: %w", err)
	}
	return nil
}

// GetCluster fetches one cluster by ID.
func (s *Store) GetCluster(ctx context.Context, id uuid.UUID) (*types.Cluster, error) {
	const q = `SELECT id, name, mode, state, last_error, created_at, updated_at FROM clusters WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	return scanCluster(row)
}

// ClusterList returns every cluster in the Config Store.
func (s *Store) ClusterList(ctx context.Context) ([]types.Cluster, error) {
	const q = `SELECT id, name, mode, state, last_error, created_at, updated_at FROM clusters ORDER BY name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list clusters: %w", err)
	}
	defer rows.Close()

	var out []types.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateClusterState persists a Cluster Manager's new state and last error
// for its cluster row, the only write the reconciliation loop itself makes
// directly to the clusters table (membership changes go through Assign*).
func (s *Store) UpdateClusterState(ctx context.Context, id uuid.UUID, state types.ClusterState, lastErr string) error {
	const q = `UPDATE clusters SET state = $2, last_error = $3, updated_at = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, state, lastErr, time.Now())
	if err != nil {
		return fmt.Errorf("store: update cluster state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCluster removes a cluster and every join-table row referencing it.
func (s *Store) DeleteCluster(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM clusters WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: delete cluster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClusterConfig loads a cluster and its full joined descriptor: nodes,
// zones, HSMs and policies assigned to it. This is issued as a handful of
// per-entity queries rather than one mega-join, matching the per-entity
// query shape the rest of this package already uses.
func (s *Store) ClusterConfig(ctx context.Context, id uuid.UUID) (*types.ClusterConfig, error) {
	cluster, err := s.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}

	nodes, err := s.ClusterNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	zones, err := s.ClusterZones(ctx, id)
	if err != nil {
		return nil, err
	}
	hsms, err := s.ClusterHSMs(ctx, id)
	if err != nil {
		return nil, err
	}
	policies, err := s.ClusterPolicies(ctx, id)
	if err != nil {
		return nil, err
	}

	return &types.ClusterConfig{
		Cluster:  *cluster,
		Nodes:    nodes,
		Zones:    zones,
		HSMs:     hsms,
		Policies: policies,
	}, nil
}

func scanCluster(row rowScanner) (*types.Cluster, error) {
	var c types.Cluster
	if err := row.Scan(&c.ID, &c.Name, &c.Mode, &c.State, &c.LastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan cluster: %w", err)
	}
	return &c, nil
}
