// Package location models slot locations: the per-disk filesystem managers
// that back job sandboxes. Location itself is treated as an external
// collaborator interface (construction and disk I/O are outside this
// module's concerns); this package supplies the registry and the medium
// resolution logic that the allocator depends on, plus a concrete
// filesystem-backed implementation.
package location

import (
	"fmt"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
)

// GenericMediumIndex is the sentinel medium index meaning "not yet
// resolved". A location's medium index may be reassigned away from this
// value exactly once; any later change to a different index is rejected.
const GenericMediumIndex = -1

// DiskResources is a point-in-time snapshot of a location's disk usage.
type DiskResources struct {
	Usage       int64
	Limit       int64
	MediumIndex int
}

// Location is the capability set the allocator needs from a slot location.
// Concrete implementations (e.g. *FsLocation) own the actual filesystem
// interaction; this module never reaches past the interface.
type Location interface {
	ID() string
	Enabled() bool
	MediumIndex() int
	SetMediumIndex(index int) error
	DiskResources() (DiskResources, error)
	SessionCount() int
	AdjustSessionCount(delta int)
	Initialize() error
	Disable(err error)
}

// FsLocation is a straightforward filesystem-mountpoint Location. It is the
// only concrete implementation this module ships; a real deployment may
// swap in another implementation behind the Location interface (e.g. one
// backed by a network filesystem), which is why construction takes place
// through a registry rather than a concrete type.
type FsLocation struct {
	mu sync.Mutex
	log logger.Logger

	id         string
	path       string
	diskLimit  int64
	mediumName string

	enabled      bool
	mediumIndex  int
	diskUsage    int64
	sessionCount int
	disableErr   error
}

// NewFsLocation constructs a Location in the disabled state; Initialize
// must be called (asynchronously, per the lifecycle controller) before it
// is usable.
func NewFsLocation(id, path, mediumName string, diskLimit int64) *FsLocation {
	l := &FsLocation{
		id:          id,
		path:        path,
		mediumName:  mediumName,
		diskLimit:   diskLimit,
		mediumIndex: GenericMediumIndex,
	}
	config.InitLogger(&l.log, l)
	return l
}

func (l *FsLocation) ID() string {
	return l.id
}

// Path returns the filesystem path backing this location.
func (l *FsLocation) Path() string {
	return l.path
}

// MediumName returns the configured medium name, used by InitMedia to
// resolve this location's MediumIndex.
func (l *FsLocation) MediumName() string {
	return l.mediumName
}

func (l *FsLocation) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *FsLocation) MediumIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mediumIndex
}

// SetMediumIndex installs index as this location's medium index. Once a
// non-generic index is installed, a different index is rejected and the
// same index is accepted as a no-op, matching the "first assignment wins"
// rule InitMedia depends on.
func (l *FsLocation) SetMediumIndex(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mediumIndex != GenericMediumIndex && l.mediumIndex != index {
		return fmt.Errorf("location %s already has medium index %d, cannot reassign to %d", l.id, l.mediumIndex, index)
	}

	l.mediumIndex = index
	return nil
}

// DiskResources returns the current disk usage snapshot. A real
// implementation would stat the filesystem here; this one reports the
// bookkeeping values maintained via AdjustUsage, which is
// sufficient for a library whose boundary ends at the Location interface.
func (l *FsLocation) DiskResources() (DiskResources, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disableErr != nil {
		return DiskResources{}, l.disableErr
	}

	return DiskResources{
		Usage:       l.diskUsage,
		Limit:       l.diskLimit,
		MediumIndex: l.mediumIndex,
	}, nil
}

func (l *FsLocation) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionCount
}

// Initialize marks the location enabled. Called from AsyncInitialize,
// concurrently with every other configured location's Initialize.
func (l *FsLocation) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.enabled = true
	l.log.Debug("Location %s initialized at %s.", l.id, l.path)
	return nil
}

// Disable marks the location unusable and records why, isolating it from
// future allocator consideration without affecting any other location.
func (l *FsLocation) Disable(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disableErr != nil {
		return
	}

	l.enabled = false
	l.disableErr = err
	l.log.Warn("Location %s disabled: %v", l.id, err)
}

// AdjustUsage adds delta (which may be negative) to the tracked disk usage.
// Used by session accounting once job content writes to this location;
// this module does not itself observe job content.
func (l *FsLocation) AdjustUsage(delta int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.diskUsage += delta
}

// AdjustSessionCount adds delta to the session counter used as the
// allocator's tie-breaker.
func (l *FsLocation) AdjustSessionCount(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionCount += delta
}
