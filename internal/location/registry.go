package location

import (
	"fmt"
	"sync"

	"github.com/scusemua/exec-node-slots/internal/hashmap"
)

// Registry is the ordered collection of a node's configured locations. Its
// location list is written exactly once, by NewRegistry when the manager is
// constructed, and thereafter read only through snapshot copies — the same
// populate-once/snapshot-by-copy discipline the teacher applies to its
// scheduling index structures. The ordered slice backs All/Alive (order
// matters for the allocator's first-seen tie-break); byID is a lock-free
// lookup table for the id-indexed path (Get), mirroring the way the
// teacher keeps a CornelkMap alongside an ordered slice for its kernel
// replica index rather than linear-scanning by id.
type Registry struct {
	mu                 sync.RWMutex
	locations          []Location
	byID               *hashmap.CornelkMap[string, Location]
	defaultMediumIndex int
	mediaAssigned      bool
}

// NewRegistry builds a Registry with one FsLocation per entry in configs,
// in order, each named "slot<i>" after its position in the list (mirroring
// the original source's location-id convention).
func NewRegistry(configs []LocationSpec) *Registry {
	locations := make([]Location, len(configs))
	byID := hashmap.NewCornelkMap[string, Location](len(configs))
	for i, c := range configs {
		loc := NewFsLocation(fmt.Sprintf("slot%v", i), c.Path, c.MediumName, c.DiskLimit)
		locations[i] = loc
		byID.Store(loc.ID(), loc)
	}

	return &Registry{locations: locations, byID: byID, defaultMediumIndex: GenericMediumIndex}
}

// Get looks up a single location by id. OnJobFinished is the production
// caller: it only knows a finished job's LocationID, not the Location
// itself, and uses Get to find the location whose session count it
// should release.
func (r *Registry) Get(id string) (Location, bool) {
	return r.byID.Load(id)
}

// LocationSpec is the subset of configuration needed to construct a
// location; kept separate from internal/config to avoid an import cycle
// between config and location.
type LocationSpec struct {
	Path       string
	MediumName string
	DiskLimit  int64
}

// All returns a copy of the full configured location list, in
// registration order.
func (r *Registry) All() []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Location, len(r.locations))
	copy(out, r.locations)
	return out
}

// Alive returns a copy of the subset of locations currently enabled,
// preserving registration order so that the allocator's first-seen
// tie-break rule is well defined.
func (r *Registry) Alive() []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Location, 0, len(r.locations))
	for _, l := range r.locations {
		if l.Enabled() {
			out = append(out, l)
		}
	}
	return out
}

// DefaultMediumIndex returns the index resolved by the most recent
// successful InitMedia call, or GenericMediumIndex if InitMedia has not
// run yet.
func (r *Registry) DefaultMediumIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultMediumIndex
}

// DiskResources aggregates a DiskResources snapshot per location. A
// location that errors while reporting is disabled with the captured
// error and omitted from the result, matching GetDiskResources's isolation
// policy: one bad location never blocks the others from reporting.
func (r *Registry) DiskResources() []DiskResources {
	r.mu.RLock()
	locations := make([]Location, len(r.locations))
	copy(locations, r.locations)
	r.mu.RUnlock()

	out := make([]DiskResources, 0, len(locations))
	for _, l := range locations {
		res, err := l.DiskResources()
		if err != nil {
			l.Disable(err)
			continue
		}
		out = append(out, res)
	}
	return out
}

// InitMedia resolves each location's configured medium name against
// directory, installs the resulting index on the location (first
// assignment only; see Location.SetMediumIndex), and resolves
// DefaultMediumIndex from defaultMediumName. A medium name with no entry in
// directory is fatal, matching the original's "failure to find a medium
// rejects the call" behavior.
func (r *Registry) InitMedia(directory map[string]int, defaultMediumName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.locations {
		fsLoc, ok := l.(*FsLocation)
		if !ok {
			continue
		}

		index, found := directory[fsLoc.MediumName()]
		if !found {
			return fmt.Errorf("unknown medium %q referenced by location %s", fsLoc.MediumName(), fsLoc.ID())
		}

		if err := l.SetMediumIndex(index); err != nil {
			return err
		}
	}

	defaultIndex, found := directory[defaultMediumName]
	if !found {
		return fmt.Errorf("unknown default medium %q", defaultMediumName)
	}

	r.defaultMediumIndex = defaultIndex
	r.mediaAssigned = true
	return nil
}

// MediaAssigned reports whether InitMedia has completed successfully.
func (r *Registry) MediaAssigned() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mediaAssigned
}
