package slotmanager_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/exec-node-slots/internal/alert"
	slotconfig "github.com/scusemua/exec-node-slots/internal/config"
	"github.com/scusemua/exec-node-slots/internal/jobcontrol"
	"github.com/scusemua/exec-node-slots/internal/location"
	"github.com/scusemua/exec-node-slots/internal/slotmanager"
)

var _ = Describe("AcquireSlot / ReleaseSlot end-to-end scenarios", func() {

	It("happy acquire: returns a Common slot and used-slot-count tracks guard lifetime (§8 scenario 1)", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		handle, err := m.AcquireSlot(
			slotmanager.DiskRequest{DiskSpace: 10},
			slotmanager.CpuRequest{Cpu: cpuOf(2), AllowCpuIdlePolicy: false},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(handle.Type).To(Equal(slotmanager.Common))
		Expect(handle.Index).To(BeNumerically(">=", 0))
		Expect(handle.Index).To(BeNumerically("<", 2))
		Expect(m.GetUsedSlotCount()).To(Equal(1))

		handle.Release()
		Eventually(m.GetUsedSlotCount).Should(Equal(0))
	})

	It("medium filter: routes requests to the location matching the requested or default medium (§8 scenario 2)", func() {
		cfg := newTestConfig()
		cfg.Locations = []slotconfig.LocationConfig{
			{Path: "/data/A", MediumName: "ssd", DiskLimit: 100},
			{Path: "/data/B", MediumName: "hdd", DiskLimit: 100},
		}
		m, queue := bringUp(cfg)
		defer queue.Close()

		mediumB := 2
		handleB, err := m.AcquireSlot(
			slotmanager.DiskRequest{DiskSpace: 1, MediumIndex: &mediumB},
			slotmanager.CpuRequest{Cpu: cpuOf(1)},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(handleB.Location.ID()).To(Equal("slot1"))
		handleB.Release()

		handleDefault, err := m.AcquireSlot(
			slotmanager.DiskRequest{DiskSpace: 1},
			slotmanager.CpuRequest{Cpu: cpuOf(1)},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(handleDefault.Location.ID()).To(Equal("slot0"))
	})

	It("disk exhaustion: rejects a request that would exceed the limit, then admits one that fits (§8 scenario 3)", func() {
		cfg := newTestConfig()
		cfg.Locations = []slotconfig.LocationConfig{{Path: "/data/0", MediumName: "ssd", DiskLimit: 10}}
		m, queue := bringUp(cfg)
		defer queue.Close()

		fsLoc := m.GetLocations()[0].(*location.FsLocation)
		fsLoc.AdjustUsage(5)

		_, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 6}, slotmanager.CpuRequest{Cpu: cpuOf(1)})
		Expect(err).To(HaveOccurred())
		var notFound *slotmanager.SlotNotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(notFound.SkippedByDiskSpace).To(Equal(1))

		handle, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 5}, slotmanager.CpuRequest{Cpu: cpuOf(1)})
		Expect(err).NotTo(HaveOccurred())
		Expect(handle).NotTo(BeNil())
	})

	It("idle pool cap: admits into Idle until the ceiling is hit, then falls back to Common (§8 scenario 4)", func() {
		cfg := newTestConfig()
		cfg.TotalCpu = 4
		cfg.IdleCpuFraction = 1.0 // idle-pool-cpu-limit = 4
		m, queue := bringUp(cfg)
		defer queue.Close()

		first, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(3), AllowCpuIdlePolicy: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Type).To(Equal(slotmanager.Idle))

		second, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(3), AllowCpuIdlePolicy: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Type).To(Equal(slotmanager.Common))

		first.Release()

		third, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(3), AllowCpuIdlePolicy: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(third.Type).To(Equal(slotmanager.Idle))
	})

	It("NUMA tie-break: the ledger always reserves from the node with the most free CPU (§8 scenario 5)", func() {
		cfg := newTestConfig()
		cfg.SlotCount = 4
		cfg.EnableNumaNodeScheduling = true
		cfg.NumaNodes = []slotconfig.NumaNodeConfig{
			{Id: 0, CpuCount: 8},
			{Id: 1, CpuCount: 8},
		}
		m, queue := bringUp(cfg)
		defer queue.Close()

		first, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(3)})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.NumaId).NotTo(BeNil())

		second, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(3)})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.NumaId).NotTo(BeNil())

		Expect(*second.NumaId).NotTo(Equal(*first.NumaId))
	})

	It("reports NoFeasibleSlot with alive=0 when no location is configured (§8 boundary)", func() {
		cfg := newTestConfig()
		cfg.Locations = nil
		m, queue := bringUp(cfg)
		defer queue.Close()

		_, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(1)})
		var notFound *slotmanager.SlotNotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(notFound.Alive).To(Equal(0))
	})

	It("SlotCount=0 is never enabled and always raises NoFeasibleSlot (§8 boundary)", func() {
		cfg := newTestConfig()
		cfg.SlotCount = 0
		m, queue := bringUp(cfg)
		defer queue.Close()

		Expect(m.IsEnabled()).To(BeFalse())

		_, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(1)})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Feedback handlers", func() {
	It("raises and auto-clears TooManyConsecutiveJobAbortions after the jittered timeout (§8 scenario 6)", func() {
		cfg := newTestConfig()
		cfg.MaxConsecutiveJobAborts = 2
		cfg.DisableJobsTimeoutSeconds = 0
		m, queue := bringUp(cfg)
		defer queue.Close()

		Expect(m.IsEnabled()).To(BeTrue())

		for i := 0; i < 3; i++ {
			m.OnJobFinished(jobcontrol.Job{SchedulerJob: true, TerminalState: jobcontrol.Aborted})
		}

		Expect(m.IsEnabled()).To(BeFalse())

		Eventually(m.IsEnabled, 2*time.Second).Should(BeTrue())

		// The auto-reset must restore a full fresh window, not just clear
		// the alert: a single abort right after recovery must not
		// re-disable the manager.
		m.OnJobFinished(jobcontrol.Job{SchedulerJob: true, TerminalState: jobcontrol.Aborted})
		Expect(m.IsEnabled()).To(BeTrue())
	})

	It("resets the abort counter on any non-aborted terminal state", func() {
		cfg := newTestConfig()
		cfg.MaxConsecutiveJobAborts = 2
		m, queue := bringUp(cfg)
		defer queue.Close()

		m.OnJobFinished(jobcontrol.Job{SchedulerJob: true, TerminalState: jobcontrol.Aborted})
		m.OnJobFinished(jobcontrol.Job{SchedulerJob: true, TerminalState: jobcontrol.Completed})
		m.OnJobFinished(jobcontrol.Job{SchedulerJob: true, TerminalState: jobcontrol.Aborted})
		m.OnJobFinished(jobcontrol.Job{SchedulerJob: true, TerminalState: jobcontrol.Aborted})

		Expect(m.IsEnabled()).To(BeTrue())
	})

	It("releases a finished job's session on its location via LocationID", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		handle, err := m.AcquireSlot(slotmanager.DiskRequest{DiskSpace: 1}, slotmanager.CpuRequest{Cpu: cpuOf(1)})
		Expect(err).NotTo(HaveOccurred())

		loc := handle.Location.(*location.FsLocation)
		Expect(loc.SessionCount()).To(Equal(1))

		m.OnJobFinished(jobcontrol.Job{Id: "job-1", LocationID: loc.ID()})
		Expect(loc.SessionCount()).To(Equal(0))

		handle.Release()
	})

	It("is sticky: JobProxyReady never reverts once set, even after a later error", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		m.OnJobProxyBuildInfoUpdated(errors.New("proxy broke"), false)
		Expect(m.IsInitialized()).To(BeTrue())
		Expect(m.IsEnabled()).To(BeFalse())

		m.OnJobProxyBuildInfoUpdated(nil, false)
		Expect(m.IsEnabled()).To(BeTrue())
	})

	It("GenericPersistentError is first-write-wins", func() {
		m, queue := bringUp(newTestConfig())
		defer queue.Close()

		m.Disable(errors.New("first"))
		m.Disable(errors.New("second"))

		Expect(m.HasFatalAlert()).To(BeTrue())
		errs := m.PopulateAlerts(nil)
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Error()).To(ContainSubstring("first"))
	})

	It("ResetAlert clears a resettable alert immediately", func() {
		cfg := newTestConfig()
		cfg.DisableJobsOnGpuCheckFailure = true
		m, queue := bringUp(cfg)
		defer queue.Close()

		m.OnGpuCheckCommandFailed(errors.New("gpu check failed"))
		Expect(m.IsEnabled()).To(BeFalse())

		m.ResetAlert(alert.GpuCheckFailed)
		Expect(m.IsEnabled()).To(BeTrue())
	})
})
