package slotmanager

import (
	"github.com/scusemua/exec-node-slots/internal/location"
)

// GetSlotCount returns the immutable slot count fixed at construction
// (§4.6). Routed through the job-control executor per §5.
func (m *Manager) GetSlotCount() int {
	var n int
	m.queue.Submit(func() { n = m.slotCount })
	return n
}

// GetUsedSlotCount returns SlotCount - |FreeSlots| (§4.6, §8).
func (m *Manager) GetUsedSlotCount() int {
	var used int
	m.queue.Submit(func() { used = m.slotCount - len(m.freeSlots) })
	return used
}

// IsInitialized reports the atomic Initialized flag. Callable from any
// context (§4.6, §3).
func (m *Manager) IsInitialized() bool {
	return m.initialized.Load()
}

// IsEnabled implements §4.6's gate query: JobProxyReady AND Initialized
// AND SlotCount > 0 AND alive-locations non-empty AND environment enabled
// AND NOT has-disabling-alert.
func (m *Manager) IsEnabled() bool {
	if !m.jobProxyReady.Load() || !m.initialized.Load() {
		return false
	}

	if m.slotCount == 0 {
		return false
	}

	if !m.env.IsEnabled() {
		return false
	}

	if len(m.registry.Alive()) == 0 {
		return false
	}

	disableOnGpuCheckFailure, _, _ := m.dynamic()
	if m.alerts.HasDisablingAlert(disableOnGpuCheckFailure) {
		return false
	}

	return true
}

// HasFatalAlert reports whether GenericPersistentError is currently set
// (§4.6).
func (m *Manager) HasFatalAlert() bool {
	return m.alerts.HasFatal()
}

// PopulateAlerts appends every currently-set alert's error to out (§4.1).
func (m *Manager) PopulateAlerts(out []error) []error {
	return m.alerts.Populate(out)
}

// GetLocations returns a snapshot of the configured location registry
// (§4.6).
func (m *Manager) GetLocations() []location.Location {
	return m.registry.All()
}

// GetDiskResources aggregates per-location disk usage/limit/medium. A
// location that errors while reporting is disabled with the captured
// error and omitted from the result (§4.6).
func (m *Manager) GetDiskResources() []location.DiskResources {
	var out []location.DiskResources
	m.queue.Submit(func() {
		out = m.registry.DiskResources()
	})
	return out
}

// InitMedia resolves every location's configured medium name against
// directory, installs the resulting medium index, and resolves
// DefaultMediumIndex from the configured DefaultMediumName (§4.6). It does
// not refresh any location's disk resources. A medium with no entry in
// directory is fatal; the call rejects.
func (m *Manager) InitMedia(directory map[string]int) error {
	return m.registry.InitMedia(directory, m.staticConfig.DefaultMediumName)
}
