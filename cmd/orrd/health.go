package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jelu/lim-plugin-orr/pkg/log"
	"github.com/jelu/lim-plugin-orr/pkg/metrics"
	"github.com/jelu/lim-plugin-orr/pkg/types"
)

// healthServer exposes orrd's two ambient HTTP endpoints: Prometheus
// metrics and a liveness/readiness summary per supervised cluster. It
// mirrors the teacher's HealthServer but reports cluster reconciliation
// state instead of raft/scheduler liveness, since orrd has no CLI/CRUD
// surface of its own to carry these checks.
type healthServer struct {
	sup *supervisor

	metrics *http.Server
	health  *http.Server
}

func newHealthServer(sup *supervisor, metricsAddr, healthAddr string) *healthServer {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())

	healthMux := http.NewServeMux()
	hs := &healthServer{sup: sup}
	healthMux.HandleFunc("/healthz", hs.healthzHandler)

	hs.metrics = &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	hs.health = &http.Server{
		Addr:         healthAddr,
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return hs
}

func (hs *healthServer) start(errCh chan<- error) {
	logger := log.WithComponent("healthserver").Logger()
	go func() {
		if err := hs.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		if err := hs.health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info().Msg("metrics and health servers listening")
}

func (hs *healthServer) shutdown(ctx context.Context) {
	_ = hs.metrics.Shutdown(ctx)
	_ = hs.health.Shutdown(ctx)
}

// healthzResponse reports orrd's own liveness plus every supervised
// cluster's reconciliation state, so an operator's probe can distinguish
// "the process is alive" from "a cluster has reached FAILURE" (status
// "degraded", HTTP 503).
type healthzResponse struct {
	Status   string            `json:"status"`
	Clusters map[string]string `json:"clusters"`
}

func (hs *healthServer) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	states := hs.sup.snapshot()
	clusters := make(map[string]string, len(states))
	status := "ok"
	for id, state := range states {
		clusters[id.String()] = string(state)
		if state == types.ClusterStateFailure {
			status = "degraded"
		}
	}

	resp := healthzResponse{Status: status, Clusters: clusters}

	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
