package slotmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/scusemua/exec-node-slots/internal/alert"
	slotconfig "github.com/scusemua/exec-node-slots/internal/config"
	"github.com/scusemua/exec-node-slots/internal/location"
)

// maxConcurrentLocationInit bounds how many locations initialize at once
// during AsyncInitialize (§4.4 step 1), so a node configured with many
// locations doesn't spawn one goroutine per location unconditionally.
const maxConcurrentLocationInit = 8

// Initialize performs the specification's synchronous bring-up (§4.4): it
// seeds the free-slot pool, brings up the job environment, and — unless
// the environment reports disabled — hands off to AsyncInitialize on the
// job-control executor. Initialize must run on the job-control executor
// exactly once per Manager lifetime (§3, "Initialized ... never revert").
func (m *Manager) Initialize() error {
	if m.initialized.Load() {
		return ErrAlreadyInitialized
	}

	var initErr error
	m.queue.Submit(func() {
		if m.freeSlots != nil {
			initErr = ErrAlreadyInitialized
			return
		}
		initErr = m.initializeLocked()
	})
	return initErr
}

func (m *Manager) initializeLocked() error {
	m.freeSlots = make(map[int]struct{}, m.slotCount)
	for i := 0; i < m.slotCount; i++ {
		m.freeSlots[i] = struct{}{}
	}

	_, idleCpuFraction, _ := m.dynamic()

	// The environment's Init runs before any location is initialized
	// (asyncInitializeLocked, posted below). The locations themselves are
	// constructed earlier, in New, before the environment's Init; a
	// disabled environment does not prevent their construction.
	if err := m.env.Init(m.slotCount, decimal.NewFromFloat(m.staticConfig.TotalCpu), idleCpuFraction); err != nil {
		return fmt.Errorf("job environment initialization failed: %w", err)
	}

	if !m.env.IsEnabled() {
		m.log.Warn("Job environment reports disabled after Init; slot manager will permanently report not-enabled.")
		return nil
	}

	// Locations and the NUMA ledger were already constructed in New;
	// here we only need to kick off their asynchronous bring-up.
	m.queue.Go(m.asyncInitializeLocked)
	return nil
}

// asyncInitializeLocked implements §4.4's asynchronous bring-up: concurrent
// per-location initialization, then (for container environments) root
// volume manager construction. Initialized is set true at the end
// regardless of whether an error was escalated to Disable along the way.
func (m *Manager) asyncInitializeLocked() {
	defer m.initialized.Store(true)

	if !m.env.IsEnabled() {
		return
	}

	locations := m.registry.All()
	if err := initializeLocationsConcurrently(locations); err != nil {
		m.Disable(err)
	}

	if m.env.RequiresVolumeManager() {
		vm, err := m.volumeManagerFactory()
		if err != nil {
			m.Disable(fmt.Errorf("root volume manager construction failed: %w", err))
		} else {
			m.volumeMu.Lock()
			m.volumeManager = vm
			m.volumeMu.Unlock()
		}
	}

	// No separate alive-locations cache to refresh: location.Registry.Alive
	// recomputes from each location's current Enabled() state on every
	// call, so a stale view is never observable here.
}

// initializeLocationsConcurrently starts every location's Initialize
// concurrently, bounded by maxConcurrentLocationInit, and waits for all to
// settle before returning an aggregated error (§4.4 step 1, §7
// "AsyncInitFault"). One location failing does not stop the others from
// being attempted, mirroring the bounded-worker-pool pattern the teacher
// uses for parallel per-container migration.
func initializeLocationsConcurrently(locations []location.Location) error {
	if len(locations) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(maxConcurrentLocationInit)
	var wg sync.WaitGroup
	errs := make([]error, len(locations))

	for i, loc := range locations {
		if err := sem.Acquire(context.Background(), 1); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		go func(i int, loc location.Location) {
			defer wg.Done()
			defer sem.Release(1)

			if err := loc.Initialize(); err != nil {
				errs[i] = fmt.Errorf("location %s: %w", loc.ID(), err)
			}
		}(i, loc)
	}

	wg.Wait()

	var causes []error
	for _, err := range errs {
		if err != nil {
			causes = append(causes, err)
		}
	}

	if len(causes) == 0 {
		return nil
	}

	return &AsyncInitError{Causes: causes}
}

// OnDynamicConfigChanged installs a new dynamic-config snapshot (§4.4),
// pushes the idle-CPU fraction down into the job environment, and — if
// NUMA scheduling just transitioned from on to off — clears every slot's
// recorded CPU-set binding.
func (m *Manager) OnDynamicConfigChanged(cfg *slotconfig.DynamicConfig) {
	_, _, wasNumaEnabled := m.dynamic()

	m.dynamicConfig.Store(cfg)

	_, newIdleFraction, isNumaEnabled := m.dynamic()
	m.env.UpdateIdleCpuFraction(newIdleFraction)

	if wasNumaEnabled && !isNumaEnabled {
		m.queue.Go(func() {
			m.env.ClearSlotCpuSets(m.slotCount)
		})
	}
}

// OnJobsCpuLimitUpdated pushes a new common-pool CPU ceiling down to the
// job environment, posting the update onto the job-control executor (§5).
// AsyncInitialize does not subscribe it to any CPU-limit source; it runs
// only when a caller invokes it.
func (m *Manager) OnJobsCpuLimitUpdated(cpu decimal.Decimal) {
	m.queue.Go(func() {
		m.env.UpdateCpuLimit(cpu)
	})
}

// Disable installs err as the manager's fatal alert, but only if no fatal
// alert is already present (§4.4, §9 "GenericPersistentError first-write-
// wins"). The specification flags the original source's early-return
// comparison direction as suspicious; this implementation follows the
// documented intent (first failure wins) rather than the byte-for-byte
// source behavior.
func (m *Manager) Disable(err error) {
	m.disableLocked(fmt.Errorf("%w: %v", ErrSchedulerJobsDisabled, err))
}

func (m *Manager) disableLocked(err error) {
	m.alerts.SetIfUnset(alert.GenericPersistentError, err)
}
