package metrics_test

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/exec-node-slots/internal/metrics"
)

var _ = Describe("Manager", func() {
	It("constructs usable gauges that can be set without a running server", func() {
		m := metrics.NewManager("metrics-test-node")

		Expect(func() { m.FreeSlotCountGauge.Set(2) }).NotTo(Panic())
		Expect(func() { m.UsedIdleSlotCountGauge.Set(1) }).NotTo(Panic())
		Expect(func() { m.IdlePolicyRequestedCpuGauge.Set(0.5) }).NotTo(Panic())
		Expect(func() { m.AlertDisablingGaugeVec.WithLabelValues("metrics-test-node", "generic_persistent_error").Set(1) }).NotTo(Panic())

		gathered, err := prometheus.DefaultGatherer.Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(gathered).NotTo(BeEmpty())
	})

	It("treats Serve(0) and Shutdown without a running server as no-ops", func() {
		m := metrics.NewManager("metrics-test-node-2")
		m.Serve(0)
		Expect(m.Shutdown(context.Background())).To(Succeed())
	})
})
