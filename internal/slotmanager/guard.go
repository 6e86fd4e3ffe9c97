package slotmanager

import (
	"runtime"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/scusemua/exec-node-slots/internal/location"
)

// SlotHandle is the scoped reservation returned by a successful
// AcquireSlot (§4.2, §4.3). It is the ownership anchor for
// (slot-index, idle-cpu, numa-cpu): destroying it (Release, or letting it
// be garbage collected after a missed Release) returns every resource it
// holds. SlotHandle is move-only in spirit — callers must not call
// Release more than once; a second call is a defect the guard prevents
// with an internal once-guard rather than corrupting shared state.
type SlotHandle struct {
	manager *Manager

	Location location.Location
	Type     SlotType
	Cpu      decimal.Decimal
	Index    int
	NumaId   *int64

	releaseOnce sync.Once
	released    bool
}

func newSlotHandle(m *Manager, loc location.Location, slotType SlotType, cpu decimal.Decimal, index int, numaId *int64) *SlotHandle {
	h := &SlotHandle{
		manager:  m,
		Location: loc,
		Type:     slotType,
		Cpu:      cpu,
		Index:    index,
		NumaId:   numaId,
	}
	runtime.SetFinalizer(h, (*SlotHandle).Release)
	return h
}

// Release schedules this handle's resources to be returned. Release is
// asynchronous (§4.3): it posts the actual state mutation onto the
// job-control executor and returns immediately, guaranteeing release runs
// on the same single-threaded context as every acquire. Calling Release
// more than once is a no-op after the first call.
func (h *SlotHandle) Release() {
	h.releaseOnce.Do(func() {
		h.released = true
		h.manager.releaseSlot(h.Type, h.Index, h.Cpu, h.NumaId)
	})
}

// Released reports whether Release has already been called (or
// scheduled) on this handle.
func (h *SlotHandle) Released() bool {
	return h.released
}

// releaseSlot implements SlotGuard.ReleaseSlot (§4.3): it posts the state
// mutation to the job-control executor via Go rather than Submit, so
// callers observe release latency instead of blocking on it, while the
// release itself is still totally ordered with respect to every acquire
// (§5, "Ordering guarantees").
func (m *Manager) releaseSlot(slotType SlotType, index int, cpu decimal.Decimal, numaId *int64) {
	m.queue.Go(func() {
		if _, exists := m.freeSlots[index]; exists {
			panic("slotmanager: double release of slot index detected")
		}
		m.freeSlots[index] = struct{}{}

		if slotType == Idle {
			m.usedIdleSlotCount--
			m.idlePolicyRequestedCpu = m.idlePolicyRequestedCpu.Sub(cpu)
		}

		if numaId != nil {
			m.numaLedger.Release(*numaId, cpu)
		}
	})
}
