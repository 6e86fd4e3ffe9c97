package slotmanager

import (
	"github.com/scusemua/exec-node-slots/internal/alert"
)

// PublishMetrics pushes the manager's current counters into its
// Prometheus gauges (internal/metrics). It is cheap enough to call on a
// short interval from cmd/execnoded's main loop; it does not itself run
// on a timer.
func (m *Manager) PublishMetrics() {
	if m.metricsManager == nil {
		return
	}

	var freeSlotCount, usedIdleSlotCount int
	var idlePolicyRequestedCpu float64

	m.queue.Submit(func() {
		freeSlotCount = len(m.freeSlots)
		usedIdleSlotCount = m.usedIdleSlotCount
		idlePolicyRequestedCpu, _ = m.idlePolicyRequestedCpu.Float64()
	})

	m.metricsManager.FreeSlotCountGauge.Set(float64(freeSlotCount))
	m.metricsManager.UsedIdleSlotCountGauge.Set(float64(usedIdleSlotCount))
	m.metricsManager.IdlePolicyRequestedCpuGauge.Set(idlePolicyRequestedCpu)

	alertsSnapshot := m.alerts.Snapshot()
	for _, kind := range []alert.Kind{
		alert.GenericPersistentError,
		alert.TooManyConsecutiveJobAbortions,
		alert.TooManyConsecutiveGpuJobFailures,
		alert.JobProxyUnavailable,
		alert.GpuCheckFailed,
	} {
		value := 0.0
		if alertsSnapshot[kind] != nil {
			value = 1.0
		}
		m.metricsManager.AlertDisablingGaugeVec.WithLabelValues(m.nodeTag, kind.String()).Set(value)
	}
}
