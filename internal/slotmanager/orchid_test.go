package slotmanager_test

import (
	"bytes"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/exec-node-slots/internal/slotmanager"
)

var _ = Describe("BuildOrchidYson", func() {
	It("renders slot counters, an empty numa submap, and no root-volume-manager entry", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		var buf bytes.Buffer
		Expect(m.BuildOrchidYson(&buf)).To(Succeed())

		var doc map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &doc)).To(Succeed())

		Expect(doc["slot_count"]).To(Equal(2.0))
		Expect(doc["free_slot_count"]).To(Equal(2.0))
		Expect(doc["numa_node_states"]).To(BeEmpty())
		Expect(doc).NotTo(HaveKey("root_volume_manager"))
	})

	It("reflects an acquired slot and a raised alert", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		handle, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(1)})
		Expect(err).NotTo(HaveOccurred())
		defer handle.Release()

		m.Disable(errors.New("boom"))

		var buf bytes.Buffer
		Expect(m.BuildOrchidYson(&buf)).To(Succeed())

		var doc map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &doc)).To(Succeed())

		Expect(doc["free_slot_count"]).To(Equal(1.0))

		alerts, ok := doc["alerts"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(alerts).To(HaveKey("generic_persistent_error"))
	})
})

var _ = Describe("PublishMetrics", func() {
	It("runs without panicking against a live manager", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		Expect(func() { m.PublishMetrics() }).NotTo(Panic())
	})
})
