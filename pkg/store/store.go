// Package store implements the Config Store: persisted nodes, zones,
// HSMs, policies and clusters, plus the join tables assigning each to a
// cluster, backed by PostgreSQL via jackc/pgx/v5, the way
// dropDatabas3-hellojohn's internal/store/v1/pg package backs its entities
// with one file per entity and raw SQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by any lookup that found no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is a handle on the Config Store's Postgres connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at dsn and returns a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
