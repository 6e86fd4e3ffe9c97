// Package alert implements the slot manager's health gate: a fixed-cardinality
// table of named alerts whose OK/failed state determines whether the node
// advertises itself as willing to accept more work.
package alert

import (
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
)

// Kind identifies one of the fixed set of alerts tracked by a Board.
type Kind int

const (
	// GenericPersistentError is a fatal, sticky alert. Once set it disables
	// the manager unconditionally until an administrator resets it.
	GenericPersistentError Kind = iota
	// TooManyConsecutiveJobAbortions is raised by feedback handlers after a
	// run of aborted scheduler jobs, and recovers automatically.
	TooManyConsecutiveJobAbortions
	// TooManyConsecutiveGpuJobFailures is the GPU-job analog of
	// TooManyConsecutiveJobAbortions.
	TooManyConsecutiveGpuJobFailures
	// JobProxyUnavailable tracks whether the job proxy build-info stream is
	// currently reporting errors.
	JobProxyUnavailable
	// GpuCheckFailed is set whenever a GPU health-check command fails. It
	// only disables the manager when DisableJobsOnGpuCheckFailure is set.
	GpuCheckFailed

	numKinds
)

func (k Kind) String() string {
	switch k {
	case GenericPersistentError:
		return "generic_persistent_error"
	case TooManyConsecutiveJobAbortions:
		return "too_many_consecutive_job_abortions"
	case TooManyConsecutiveGpuJobFailures:
		return "too_many_consecutive_gpu_job_failures"
	case JobProxyUnavailable:
		return "job_proxy_unavailable"
	case GpuCheckFailed:
		return "gpu_check_failed"
	default:
		return "unknown_alert_kind"
	}
}

// resettableKinds is the subset of Kind that ResetAlert is meant to be
// called with externally; see IsResettable.
var resettableKinds = map[Kind]bool{
	GpuCheckFailed:                   true,
	TooManyConsecutiveJobAbortions:   true,
	TooManyConsecutiveGpuJobFailures: true,
}

// disablingKindsUnconditional are the alerts that, if not OK, disable the
// manager regardless of configuration.
var disablingKindsUnconditional = [...]Kind{
	GenericPersistentError,
	TooManyConsecutiveJobAbortions,
	TooManyConsecutiveGpuJobFailures,
	JobProxyUnavailable,
}

// Board is a concurrency-safe table of alerts. Readers and writers alike
// acquire the same short exclusive lock; has-disabling-alert must be
// evaluated against several alerts at once and a per-alert atomic cannot
// provide that consistency.
type Board struct {
	mu     sync.Mutex
	log    logger.Logger
	errors [numKinds]error
}

// NewBoard constructs an empty Board (every Kind initially OK).
func NewBoard() *Board {
	b := &Board{}
	config.InitLogger(&b.log, b)
	return b
}

// Set stores err under kind; a nil err clears the alert. Logging differs depending on
// whether the alert was previously OK, matching OnJobProxyBuildInfoUpdated's
// "disabling"/"re-enabling" transitions in the original source.
func (b *Board) Set(kind Kind, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unsafeSet(kind, err)
}

// unsafeSet requires b.mu to be held. It is split out so that callers that
// must update more than one alert or counter atomically (e.g. OnJobFinished)
// can do so under a single critical section.
func (b *Board) unsafeSet(kind Kind, err error) {
	wasOK := b.errors[kind] == nil

	if err != nil && wasOK {
		b.log.Warn("Alert %s set: %v", kind, err)
	} else if err == nil && !wasOK {
		b.log.Info("Alert %s cleared.", kind)
	}

	b.errors[kind] = err
}

// SetIfUnset stores err under kind only if kind is currently OK, atomically
// with the check, and reports whether it did so. Used by Disable to
// implement "GenericPersistentError first-write-wins" without a
// check-then-act race between two concurrent disablers (§4.4, §9).
func (b *Board) SetIfUnset(kind Kind, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.errors[kind] != nil {
		return false
	}

	b.unsafeSet(kind, err)
	return true
}

// Reset force-clears a single kind. Any Kind may be passed, but only kinds
// for which IsResettable is true are intended to be reset by an external
// caller (see ResetAlert in the manager API).
func (b *Board) Reset(kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errors[kind] = nil
}

// IsResettable reports whether kind is in the set of alerts that external
// callers are expected to reset via ResetAlert.
func IsResettable(kind Kind) bool {
	return resettableKinds[kind]
}

// HasFatal reports whether GenericPersistentError is currently set.
func (b *Board) HasFatal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.errors[GenericPersistentError] != nil
}

// HasDisablingAlert reports whether any unconditionally disabling alert is
// set, or whether GpuCheckFailed is set and disableOnGpuCheckFailure is true.
func (b *Board) HasDisablingAlert(disableOnGpuCheckFailure bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range disablingKindsUnconditional {
		if b.errors[kind] != nil {
			return true
		}
	}

	return disableOnGpuCheckFailure && b.errors[GpuCheckFailed] != nil
}

// Populate appends every not-OK alert's error to out, returning the
// extended slice.
func (b *Board) Populate(out []error) []error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, err := range b.errors {
		if err != nil {
			out = append(out, err)
		}
	}

	return out
}

// Snapshot returns a map from Kind to error for every currently-set alert,
// intended for introspection rendering (see slotmanager.Manager.BuildOrchidYson).
func (b *Board) Snapshot() map[Kind]error {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[Kind]error)
	for kind, err := range b.errors {
		if err != nil {
			out[Kind(kind)] = err
		}
	}

	return out
}

// WithLock runs fn while holding the board's exclusive lock, and supplies
// getter/setter callbacks so callers that must inspect and update more
// than one alert (or an alert plus an unrelated counter) as a single
// atomic step can do so without re-entering the lock.
//
// This exists because OnJobFinished must update both
// ConsecutiveAbortedSchedulerJobCount and TooManyConsecutiveJobAbortions (and
// the GPU equivalents) under one critical section, exactly as the original
// source guards both pieces of state with a single spinlock.
func (b *Board) WithLock(fn func(get func(kind Kind) error, set func(kind Kind, err error))) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(b.unsafeGet, b.unsafeSet)
}

// unsafeGet requires b.mu to be held.
func (b *Board) unsafeGet(kind Kind) error {
	return b.errors[kind]
}
