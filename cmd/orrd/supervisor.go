package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/clustermgr"
	"github.com/jelu/lim-plugin-orr/pkg/config"
	"github.com/jelu/lim-plugin-orr/pkg/events"
	"github.com/jelu/lim-plugin-orr/pkg/log"
	"github.com/jelu/lim-plugin-orr/pkg/store"
	"github.com/jelu/lim-plugin-orr/pkg/types"
	"github.com/jelu/lim-plugin-orr/pkg/watcher"
	"github.com/jelu/lim-plugin-orr/pkg/zoneinput"
)

// supervisor owns one Cluster Manager (and the Node Watcher behind it) per
// cluster row in the Config Store, the way the teacher's Manager owns one
// Reconciler per cluster it schedules for.
type supervisor struct {
	store    *store.Store
	broker   *events.Broker
	cfg      *config.Config
	registry *zoneinput.Registry

	mu       sync.Mutex
	managers map[uuid.UUID]*clustermgr.Manager
	watchers map[uuid.UUID]*watcher.Watcher
}

func newSupervisor(st *store.Store, broker *events.Broker, cfg *config.Config) (*supervisor, error) {
	return &supervisor{
		store:    st,
		broker:   broker,
		cfg:      cfg,
		registry: zoneinput.Default(),
		managers: make(map[uuid.UUID]*clustermgr.Manager),
		watchers: make(map[uuid.UUID]*watcher.Watcher),
	}, nil
}

// reload lists every cluster in the Config Store and builds a Cluster
// Manager for any not already supervised. Clusters removed from the store
// are left running until the process restarts; orrd has no CLI surface to
// request their removal live.
func (s *supervisor) reload(ctx context.Context) error {
	clusters, err := s.store.ClusterList(ctx)
	if err != nil {
		return fmt.Errorf("list clusters: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range clusters {
		if _, ok := s.managers[c.ID]; ok {
			continue
		}
		if err := s.addLocked(ctx, c); err != nil {
			logger := log.WithComponent("supervisor").Cluster(c.ID).Logger()
			logger.Error().Err(err).Msg("failed to start cluster")
		}
	}
	return nil
}

func (s *supervisor) addLocked(ctx context.Context, c types.Cluster) error {
	cfgFull, err := s.store.ClusterConfig(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load cluster %s: %w", c.ID, err)
	}

	nodes := watcher.New(s.cfg.Watcher.Interval)
	nodes.SetClusterID(c.ID)
	mgr, err := clustermgr.New(
		*cfgFull,
		nodes,
		s.registry,
		clustermgr.WithStore(s.store),
		clustermgr.WithBroker(s.broker),
		clustermgr.WithMaxInterval(s.cfg.Cluster.MaxInterval),
	)
	if err != nil {
		return fmt.Errorf("build manager for cluster %s: %w", c.ID, err)
	}

	s.managers[c.ID] = mgr
	s.watchers[c.ID] = nodes
	return nil
}

func (s *supervisor) startAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mgr := range s.managers {
		mgr.Start()
	}
}

func (s *supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mgr := range s.managers {
		mgr.Stop()
	}
}

func (s *supervisor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.managers)
}

// snapshot returns every supervised cluster's current state, for the health
// endpoint to report without reaching into the Config Store.
func (s *supervisor) snapshot() map[uuid.UUID]types.ClusterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]types.ClusterState, len(s.managers))
	for id, mgr := range s.managers {
		state, _ := mgr.State()
		out[id] = state
	}
	return out
}
