// Package numa models the per-node CPU ledger used for NUMA-aware slot
// affinity. It is consulted, and mutated, only from the job-control executor;
// callers are responsible for that serialization (see execqueue).
package numa

import (
	"github.com/shopspring/decimal"
)

// Node describes one NUMA node as configured for this host.
type Node struct {
	Id       int64
	CpuSet   string
	CpuCount decimal.Decimal
}

// State pairs a configured Node with its currently-free CPU budget.
type State struct {
	Info    Node
	FreeCpu decimal.Decimal
}

// Ledger tracks free CPU per NUMA node. It holds no lock of its own: the
// job-control executor is the sole mutator and reader, mirroring the way the
// allocator's other serial-executor-owned state (free slots, idle counters)
// carries no internal synchronization either.
type Ledger struct {
	states []*State
}

// NewLedger seeds one State per configured node, with FreeCpu equal to the
// node's full CpuCount.
func NewLedger(nodes []Node) *Ledger {
	states := make([]*State, len(nodes))
	for i, n := range nodes {
		states[i] = &State{Info: n, FreeCpu: n.CpuCount}
	}

	return &Ledger{states: states}
}

// Empty reports whether the ledger has no configured nodes, in which case
// callers must skip NUMA affinity entirely.
func (l *Ledger) Empty() bool {
	return len(l.states) == 0
}

// Reserve selects the entry with the maximum FreeCpu. If that entry's
// FreeCpu is at least cpu, it subtracts cpu from the entry and returns the
// node's id and true. Otherwise it returns (0, false) and reserves nothing.
func (l *Ledger) Reserve(cpu decimal.Decimal) (nodeId int64, ok bool) {
	if len(l.states) == 0 {
		return 0, false
	}

	best := l.states[0]
	for _, s := range l.states[1:] {
		if s.FreeCpu.GreaterThan(best.FreeCpu) {
			best = s
		}
	}

	if best.FreeCpu.LessThan(cpu) {
		return 0, false
	}

	best.FreeCpu = best.FreeCpu.Sub(cpu)
	return best.Info.Id, true
}

// Release adds cpu back to the node identified by nodeId. If no such node
// exists (the ledger may have been reconfigured since the reservation was
// made), the call is a silent no-op.
func (l *Ledger) Release(nodeId int64, cpu decimal.Decimal) {
	for _, s := range l.states {
		if s.Info.Id == nodeId {
			s.FreeCpu = s.FreeCpu.Add(cpu)
			return
		}
	}
}

// Snapshot returns a copy of the current states, safe for a caller to range
// over after the job-control executor has returned control (e.g. for
// introspection rendering).
func (l *Ledger) Snapshot() []State {
	out := make([]State, len(l.states))
	for i, s := range l.states {
		out[i] = *s
	}

	return out
}
