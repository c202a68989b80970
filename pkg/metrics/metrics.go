package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster Manager metrics
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orr_reconcile_duration_seconds",
			Help:    "Duration of one Cluster Manager reconciliation tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cluster"},
	)

	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orr_reconcile_total",
			Help: "Total number of reconciliation ticks by outcome",
		},
		[]string{"cluster", "outcome"},
	)

	ClusterState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orr_cluster_state",
			Help: "Cluster state indicator (1 = current state, 0 = other states)",
		},
		[]string{"cluster", "state"},
	)

	// Node Watcher / Node RPC Client metrics
	NodeState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orr_node_state",
			Help: "Node state indicator (1 = current state, 0 = other states)",
		},
		[]string{"cluster", "node", "state"},
	)

	NodeRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orr_node_rpc_duration_seconds",
			Help:    "Duration of a single Node RPC Client call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node", "method"},
	)

	NodeRPCErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orr_node_rpc_errors_total",
			Help: "Total number of failed Node RPC Client calls",
		},
		[]string{"node", "method"},
	)

	// Zone Input metrics
	ZoneFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orr_zone_fetch_errors_total",
			Help: "Total number of failed zone content fetches",
		},
		[]string{"zone"},
	)

	// Events metrics
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orr_events_dropped_total",
			Help: "Total number of events dropped because a subscriber's buffer was full",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ReconcileTotal)
	prometheus.MustRegister(ClusterState)
	prometheus.MustRegister(NodeState)
	prometheus.MustRegister(NodeRPCDuration)
	prometheus.MustRegister(NodeRPCErrors)
	prometheus.MustRegister(ZoneFetchErrors)
	prometheus.MustRegister(EventsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
