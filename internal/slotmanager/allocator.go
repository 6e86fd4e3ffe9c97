package slotmanager

import (
	"github.com/scusemua/exec-node-slots/internal/environment"
	"github.com/scusemua/exec-node-slots/internal/location"
)

// AcquireSlot is the primary allocator operation (§4.2). It executes
// atomically with respect to every other AcquireSlot/ReleaseSlot by
// running entirely on the job-control executor (§5): location selection,
// pool decision, NUMA reservation, and the slot-index draw all happen
// inside one Submit call.
func (m *Manager) AcquireSlot(disk DiskRequest, cpu CpuRequest) (*SlotHandle, error) {
	if !m.initialized.Load() {
		return nil, ErrNotInitialized
	}

	var (
		handle *SlotHandle
		resErr error
	)

	m.queue.Submit(func() {
		handle, resErr = m.acquireSlotLocked(disk, cpu)
	})

	return handle, resErr
}

// acquireSlotLocked runs on the job-control executor. It never mutates
// state on a failure path (§4.2 "On failure: no state mutation").
func (m *Manager) acquireSlotLocked(disk DiskRequest, cpu CpuRequest) (*SlotHandle, error) {
	alive := m.registry.Alive()

	if len(m.freeSlots) == 0 {
		return nil, &SlotNotFoundError{Alive: len(alive)}
	}

	loc, counts := m.selectLocation(alive, disk)
	if loc == nil {
		return nil, &SlotNotFoundError{
			Alive:              len(alive),
			Feasible:           counts.feasible,
			SkippedByDiskSpace: counts.skippedByDiskSpace,
			SkippedByMedium:    counts.skippedByMedium,
		}
	}

	slotType := m.decidePool(cpu)

	var numaId *int64
	if _, _, enableNuma := m.dynamic(); enableNuma && !m.numaLedger.Empty() {
		if id, ok := m.numaLedger.Reserve(cpu.Cpu); ok {
			numaId = &id
		}
	}

	index := m.doAcquireSlotIndex()

	// The location gains a session for the lifetime of this slot; the
	// feedback path (OnJobFinished) releases it by id once the job that
	// occupied the slot reports its location back (§4.5, §8 session-count
	// tie-break).
	loc.AdjustSessionCount(1)

	return newSlotHandle(m, loc, slotType, cpu.Cpu, index, numaId), nil
}

type locationCounts struct {
	feasible           int
	skippedByDiskSpace int
	skippedByMedium    int
}

// selectLocation implements §4.2 step 2: among alive locations, skip ones
// that fail the disk-space or medium filter, and among the rest pick the
// one with the minimum session count, ties broken by first-seen order.
func (m *Manager) selectLocation(alive []location.Location, disk DiskRequest) (location.Location, locationCounts) {
	defaultMedium := m.registry.DefaultMediumIndex()

	var (
		best    location.Location
		counts  locationCounts
	)

	for _, loc := range alive {
		res, err := loc.DiskResources()
		if err != nil {
			loc.Disable(err)
			continue
		}

		if res.Usage+disk.DiskSpace > res.Limit {
			counts.skippedByDiskSpace++
			continue
		}

		if disk.MediumIndex != nil {
			if res.MediumIndex != *disk.MediumIndex {
				counts.skippedByMedium++
				continue
			}
		} else if res.MediumIndex != defaultMedium {
			counts.skippedByMedium++
			continue
		}

		counts.feasible++

		if best == nil || loc.SessionCount() < best.SessionCount() {
			best = loc
		}
	}

	return best, counts
}

// decidePool implements §4.2 step 4: admit into the Idle pool when the
// caller opted in and the idle-pool CPU ceiling is not exceeded, else fall
// back to Common.
func (m *Manager) decidePool(cpu CpuRequest) SlotType {
	if !cpu.AllowCpuIdlePolicy {
		return Common
	}

	idleLimit := m.env.GetCpuLimit(environment.Idle)

	if m.idlePolicyRequestedCpu.Add(cpu.Cpu).GreaterThan(idleLimit) {
		return Common
	}

	m.idlePolicyRequestedCpu = m.idlePolicyRequestedCpu.Add(cpu.Cpu)
	m.usedIdleSlotCount++
	return Idle
}

// doAcquireSlotIndex implements SlotGuard.DoAcquireSlot (§4.3): picks an
// arbitrary free index. Map iteration order in Go is unspecified, which is
// exactly the "implementation-defined" contract the specification asks
// for; callers must not depend on which index comes back.
func (m *Manager) doAcquireSlotIndex() int {
	for index := range m.freeSlots {
		delete(m.freeSlots, index)
		return index
	}
	panic("slotmanager: doAcquireSlotIndex called with no free slots; caller must ensure feasibility first")
}
