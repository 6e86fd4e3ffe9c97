// Package jobcontrol defines the event types fed into the slot manager's
// feedback handlers (§4.5) by the job controller external collaborator
// (§1). The job controller itself — scheduling, dispatch, retries — is
// out of scope; this package only carries the shapes the slot manager
// consumes.
package jobcontrol

// TerminalState is the terminal disposition of a finished job.
type TerminalState int

const (
	// Completed indicates the job ran to completion successfully.
	Completed TerminalState = iota
	// Failed indicates the job ran and exited with an error.
	Failed
	// Aborted indicates the job was torn down before it could finish,
	// e.g. by operator action or a scheduler decision.
	Aborted
)

func (s TerminalState) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Job describes the subset of a finished job's identity that
// OnJobFinished needs (§4.5): whether it was a scheduler job, whether it
// requested a GPU, how it ended, and which location backed its sandbox
// (so its session can be released from that location's session count).
type Job struct {
	Id            string
	SchedulerJob  bool
	GpuJob        bool
	TerminalState TerminalState
	LocationID    string
}

// BuildInfo is the payload of a job-proxy build-info update (§4.5,
// OnJobProxyBuildInfoUpdated). The job proxy is the out-of-process helper
// that brokers job execution; build-info updates are how it reports its
// own health.
type BuildInfo struct {
	Version string
}
