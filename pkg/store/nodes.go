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

// CreateNode inserts a new node, assigning it a fresh ID.
func (s *Store) CreateNode(ctx context.Context, n *types.Node) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	const q = `
INSERT INTO nodes (id, name, uri, mode, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q, n.ID, n.Name, n.URI, n.Mode, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create node: %w", err)
	}
	return nil
}

// GetNode fetches one node by ID.
func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (*types.Node, error) {
	const q = `SELECT id, name, uri, mode, created_at, updated_at FROM nodes WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	return scanNode(row)
}

// NodeList returns every node in the Config Store.
func (s *Store) NodeList(ctx context.Context) ([]types.Node, error) {
	const q = `SELECT id, name, uri, mode, created_at, updated_at FROM nodes ORDER BY name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list nodes: %w", err)
	}
	defer rows.Close()

	var out []types.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// UpdateNode overwrites a node's mutable fields.
func (s *Store) UpdateNode(ctx context.Context, n *types.Node) error {
	n.UpdatedAt = time.Now()
	const q = `UPDATE nodes SET name = $2, uri = $3, mode = $4, updated_at = $5 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, n.ID, n.Name, n.URI, n.Mode, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNode removes a node and its cluster assignments.
func (s *Store) DeleteNode(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM nodes WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: delete node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClusterNodes returns the nodes assigned to a cluster.
func (s *Store) ClusterNodes(ctx context.Context, clusterID uuid.UUID) ([]types.Node, error) {
	const q = `
SELECT n.id, n.name, n.uri, n.mode, n.created_at, n.updated_at
FROM nodes n
JOIN cluster_node cn ON cn.node_id = n.id
WHERE cn.cluster_id = $1
ORDER BY n.name`
	rows, err := s.pool.Query(ctx, q, clusterID)
	if err != nil {
		return nil, fmt.Errorf("store: list cluster nodes: %w", err)
	}
	defer rows.Close()

	var out []types.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// AssignNode adds a node to a cluster's node set.
func (s *Store) AssignNode(ctx context.Context, clusterID, nodeID uuid.UUID) error {
	const q = `INSERT INTO cluster_node (cluster_id, node_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := s.pool.Exec(ctx, q, clusterID, nodeID)
	if err != nil {
		return fmt.Errorf("store: assign node to cluster: %w", err)
	}
	return nil
}

// UnassignNode removes a node from a cluster's node set.
func (s *Store) UnassignNode(ctx context.Context, clusterID, nodeID uuid.UUID) error {
	const q = `DELETE FROM cluster_node WHERE cluster_id = $1 AND node_id = $2`
	_, err := s.pool.Exec(ctx, q, clusterID, nodeID)
	if err != nil {
		return fmt.Errorf("store: unassign node from cluster: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*types.Node, error) {
	var n types.Node
	if err := row.Scan(&n.ID, &n.Name, &n.URI, &n.Mode, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan node: %w", err)
	}
	return &n, nil
}
