package slotmanager

import (
	"errors"
	"fmt"
)

var (
	// ErrSchedulerJobsDisabled is the cause wrapped under alert.GenericPersistentError
	// by Disable (§4.4, §7 "Fatal").
	ErrSchedulerJobsDisabled = errors.New("scheduler jobs are disabled on this node")

	// ErrNotInitialized is returned by AcquireSlot if called before
	// asynchronous initialization has finished (IsInitialized is false).
	ErrNotInitialized = errors.New("slot manager has not finished initializing")

	// ErrAlreadyInitialized guards Initialize against being invoked twice
	// (§3 "Initialized ... become true exactly once").
	ErrAlreadyInitialized = errors.New("slot manager has already been initialized")

	// ErrUnknownNumaNode is returned internally when a release names a NUMA
	// node id with no ledger entry; callers never observe it directly since
	// release silently discards the add-back (§4.3, §9).
	ErrUnknownNumaNode = errors.New("no NUMA ledger entry for the given node id")
)

// SlotNotFoundError reports that AcquireSlot could not find a feasible
// location for a request (§4.2 step 3, §7 "NoFeasibleSlot"). It carries the
// diagnostic counts the specification requires so callers can distinguish
// "no alive locations" from "exhausted by disk space" from "exhausted by
// medium filter".
type SlotNotFoundError struct {
	Alive             int
	Feasible          int
	SkippedByDiskSpace int
	SkippedByMedium    int
}

func (e *SlotNotFoundError) Error() string {
	return fmt.Sprintf(
		"no feasible slot location: alive=%d feasible=%d skipped_by_disk_space=%d skipped_by_medium=%d",
		e.Alive, e.Feasible, e.SkippedByDiskSpace, e.SkippedByMedium,
	)
}

// AsyncInitError aggregates every failure observed while bringing up
// locations and the volume manager during AsyncInitialize (§4.4 step 2,
// §7 "AsyncInitFault").
type AsyncInitError struct {
	Causes []error
}

func (e *AsyncInitError) Error() string {
	return fmt.Sprintf("asynchronous initialization failed with %d error(s): %v", len(e.Causes), errors.Join(e.Causes...))
}

func (e *AsyncInitError) Unwrap() []error {
	return e.Causes
}
