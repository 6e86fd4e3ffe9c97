// Package volume models the root volume manager external collaborator
// (§1): the construct responsible for container root-layer filesystems
// when the node's job environment is container-based. The slot manager
// only ever holds this behind an opaque interface, constructing one during
// AsyncInitialize and otherwise never reaching past it (§4.4, §6).
package volume

import (
	"fmt"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
)

// Manager is the capability set the slot manager needs from a root volume
// manager: enough to report itself in introspection (§6,
// BuildOrchidYson's root-volume-manager field) and nothing else. Any real
// layer-management logic lives entirely behind this interface.
type Manager interface {
	// LayerCount reports how many root layers are currently resident.
	LayerCount() int
	// CacheHitRate reports the fraction, in [0, 1], of recent layer
	// requests served from the local cache rather than fetched remotely.
	CacheHitRate() float64
}

// rootVolumeManager is a minimal in-memory Manager sufficient for a
// process- or test-hosted node. A real container runtime would replace
// this with a layer-caching implementation; this module's boundary ends
// at the Manager interface (§1, "volume manager ... opaque after
// construction").
type rootVolumeManager struct {
	log logger.Logger

	path       string
	layerCount int
	hits       int
	misses     int
}

// New constructs a Manager rooted at path. Construction fails only for an
// empty path; New does not check that path exists or is writable. A
// failure is reported via err so that AsyncInitialize can route it into
// Disable, matching the specification's AsyncInitFault escalation (§7).
func New(path string) (Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("root volume manager requires a non-empty path")
	}

	m := &rootVolumeManager{path: path}
	config.InitLogger(&m.log, m)

	return m, nil
}

func (m *rootVolumeManager) LayerCount() int {
	return m.layerCount
}

func (m *rootVolumeManager) CacheHitRate() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}
