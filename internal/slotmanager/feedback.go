package slotmanager

import (
	"fmt"
	"time"

	"github.com/scusemua/exec-node-slots/internal/alert"
	"github.com/scusemua/exec-node-slots/internal/jobcontrol"
)

// ErrTooManyConsecutiveJobAbortions and ErrTooManyConsecutiveGpuJobFailures
// are the causes installed under their respective alert kinds by
// OnJobFinished (§4.5).
var (
	ErrTooManyConsecutiveJobAbortions   = func(n int) error { return fmt.Errorf("%d consecutive scheduler jobs were aborted", n) }
	ErrTooManyConsecutiveGpuJobFailures = func(n int) error { return fmt.Errorf("%d consecutive GPU jobs failed", n) }
)

// OnJobFinished implements §4.5: it updates the consecutive-abort and
// consecutive-GPU-failure counters from a finished job's terminal state,
// and raises the corresponding alert with a jittered auto-reset once a
// configured threshold is exceeded. Both counters and their alerts are
// updated under one critical section (the alert board's lock), mirroring
// the original source's single spinlock guarding both pieces of state.
func (m *Manager) OnJobFinished(job jobcontrol.Job) {
	type pendingReset struct {
		kind    alert.Kind
		counter *int
	}
	var pending []pendingReset

	m.alerts.WithLock(func(get func(alert.Kind) error, set func(kind alert.Kind, err error)) {
		if job.SchedulerJob {
			if m.updateConsecutiveCounter(
				get, set,
				job.TerminalState == jobcontrol.Aborted,
				&m.consecutiveAbortedSchedulerJobCount,
				m.staticConfig.MaxConsecutiveJobAborts,
				alert.TooManyConsecutiveJobAbortions,
				ErrTooManyConsecutiveJobAbortions,
			) {
				pending = append(pending, pendingReset{alert.TooManyConsecutiveJobAbortions, &m.consecutiveAbortedSchedulerJobCount})
			}
		}

		if job.GpuJob {
			if m.updateConsecutiveCounter(
				get, set,
				job.TerminalState == jobcontrol.Failed,
				&m.consecutiveFailedGpuJobCount,
				m.staticConfig.MaxConsecutiveGpuJobFailures,
				alert.TooManyConsecutiveGpuJobFailures,
				ErrTooManyConsecutiveGpuJobFailures,
			) {
				pending = append(pending, pendingReset{alert.TooManyConsecutiveGpuJobFailures, &m.consecutiveFailedGpuJobCount})
			}
		}
	})

	for _, p := range pending {
		m.scheduleAlertAutoReset(p.kind, p.counter)
	}

	// A finished job releases the session it held on whichever location
	// backed its sandbox, the counterpart to AcquireSlot's AdjustSessionCount(1)
	// (§8 session-count tie-break). The job controller only knows that
	// location by id, hence the registry lookup rather than a direct
	// reference.
	if job.LocationID != "" {
		if loc, ok := m.registry.Get(job.LocationID); ok {
			loc.AdjustSessionCount(-1)
		}
	}
}

// updateConsecutiveCounter is the shared shape behind both halves of
// OnJobFinished (§4.5): increment on the matching terminal state, reset to
// zero otherwise; once the counter exceeds max and the alert is currently
// OK, raise it and report that an auto-reset must be scheduled (the timer
// itself is scheduled outside the board's lock, since it touches the
// execution queue rather than alert state).
func (m *Manager) updateConsecutiveCounter(
	get func(alert.Kind) error,
	set func(kind alert.Kind, err error),
	matched bool,
	counter *int,
	max int,
	kind alert.Kind,
	mkErr func(int) error,
) bool {
	if matched {
		*counter++
	} else {
		*counter = 0
		return false
	}

	if *counter <= max {
		return false
	}

	if get(kind) != nil {
		return false
	}

	set(kind, mkErr(*counter))
	return true
}

// scheduleAlertAutoReset arranges for kind to be force-cleared, and its
// feeding consecutive-failure counter reset to 0, after DisableJobsTimeout
// plus a uniform random jitter in [0, DisableJobsTimeout) (§3 "reset to 0
// ... on timed recovery", §4.5, §9 "fleet anti-thundering-herd mechanism").
// The alert and its counter are cleared under one critical section so that
// recovery restores a full fresh window rather than re-disabling on the
// very next single abort/failure.
func (m *Manager) scheduleAlertAutoReset(kind alert.Kind, counter *int) {
	timeout := time.Duration(m.staticConfig.DisableJobsTimeoutSeconds) * time.Second

	m.queue.AfterFunc(timeout, func() {
		m.alerts.WithLock(func(_ func(alert.Kind) error, set func(kind alert.Kind, err error)) {
			set(kind, nil)
			*counter = 0
		})
	})
}

// OnJobProxyBuildInfoUpdated implements §4.5. Unless suppressed by the
// testing flag (the caller is expected to pass shouldSuppress = true only
// when Testing.SkipJobProxyUnavailableAlert is set and the node role is
// "exec"), it logs a disabling/re-enabling transition, overwrites
// JobProxyUnavailable with err (nil clears it), and then sets JobProxyReady
// unconditionally. JobProxyReady is sticky: once true it never reverts,
// even if a later update carries an error.
func (m *Manager) OnJobProxyBuildInfoUpdated(err error, shouldSuppress bool) {
	if shouldSuppress {
		m.jobProxyReady.Store(true)
		return
	}

	wasOK := m.alerts.Snapshot()[alert.JobProxyUnavailable] == nil
	if wasOK && err != nil {
		m.log.Warn("Job proxy became unavailable: %v. Disabling scheduler jobs.", err)
	} else if !wasOK && err == nil {
		m.log.Info("Job proxy became available again. Re-enabling scheduler jobs.")
	}

	m.alerts.Set(alert.JobProxyUnavailable, err)
	m.jobProxyReady.Store(true)
}

// OnGpuCheckCommandFailed implements §4.5: it unconditionally overwrites
// GpuCheckFailed with err (nil clears it).
func (m *Manager) OnGpuCheckCommandFailed(err error) {
	m.alerts.Set(alert.GpuCheckFailed, err)
}

// ResetAlert force-clears kind (§4.4, §6). Any Kind may be passed, but
// only alert.IsResettable(kind) kinds are intended to be reset by an
// external caller.
func (m *Manager) ResetAlert(kind alert.Kind) {
	m.alerts.Reset(kind)
}
