// Package metrics registers and serves the slot manager's Prometheus
// gauges, modeled on the node-level Prometheus manager convention used
// elsewhere in this codebase (one struct owning a set of registered
// collectors, constructed once and wired into the manager at startup).
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the slot manager's Prometheus collectors and, once Serve is
// called with a non-zero port, an HTTP server exposing them.
type Manager struct {
	log logger.Logger

	nodeId string
	server *http.Server

	FreeSlotCountGauge            prometheus.Gauge
	UsedIdleSlotCountGauge        prometheus.Gauge
	IdlePolicyRequestedCpuGauge   prometheus.Gauge
	AlertDisablingGaugeVec        *prometheus.GaugeVec
}

// NewManager constructs a Manager and registers its collectors. It starts no
// HTTP listener; until Serve is called with a non-zero port, metrics remain
// registered and readable in-process (e.g. from tests) only.
func NewManager(nodeId string) *Manager {
	m := &Manager{nodeId: nodeId}
	config.InitLogger(&m.log, m)

	m.FreeSlotCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "exec_node",
		Name:        "free_slot_count",
		Help:        "Number of currently unassigned execution slots.",
		ConstLabels: prometheus.Labels{"node_id": nodeId},
	})

	m.UsedIdleSlotCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "exec_node",
		Name:        "used_idle_slot_count",
		Help:        "Number of slots currently drawing CPU from the idle pool.",
		ConstLabels: prometheus.Labels{"node_id": nodeId},
	})

	m.IdlePolicyRequestedCpuGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "exec_node",
		Name:        "idle_policy_requested_cpu",
		Help:        "Total CPU currently committed from the idle pool.",
		ConstLabels: prometheus.Labels{"node_id": nodeId},
	})

	m.AlertDisablingGaugeVec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "exec_node",
		Name:      "alert_disabling",
		Help:      "1 if the named alert is currently set, 0 otherwise.",
	}, []string{"node_id", "kind"})

	for _, c := range []prometheus.Collector{
		m.FreeSlotCountGauge,
		m.UsedIdleSlotCountGauge,
		m.IdlePolicyRequestedCpuGauge,
		m.AlertDisablingGaugeVec,
	} {
		if err := prometheus.Register(c); err != nil {
			m.log.Warn("Failed to register metric: %v", err)
		}
	}

	return m
}

// Serve starts an HTTP server exposing /metrics on port. A zero port is a
// no-op. Serve does not block; call Shutdown to stop the server.
func (m *Manager) Serve(port int) {
	if port == 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	m.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Error("Metrics HTTP server exited: %v", err)
		}
	}()
}

// Shutdown stops the HTTP server started by Serve, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
