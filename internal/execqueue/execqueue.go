// Package execqueue implements the single-threaded "job-control executor"
// that the specification requires the allocator's mutable state to be
// confined to (§5). It is the idiomatic Go rendition of a serial task
// queue: one goroutine drains a channel of closures, so anything posted
// through Queue.Go or Queue.Submit is totally ordered with respect to
// everything else posted to the same Queue, matching the source's
// single-threaded invoker.
package execqueue

import (
	"math/rand"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
)

// task is a unit of work posted to the queue, optionally paired with a done
// channel that Submit blocks on.
type task struct {
	fn   func()
	done chan struct{}
}

// Queue is a single-goroutine serial executor. The zero value is not
// usable; construct one with New.
type Queue struct {
	log logger.Logger

	tasks  chan task
	closed chan struct{}
}

// New starts the executor goroutine and returns a ready-to-use Queue.
// backlog sizes the internal channel; a full backlog blocks callers of Go
// and Submit until the executor drains it.
func New(backlog int) *Queue {
	if backlog < 1 {
		backlog = 1
	}

	q := &Queue{
		tasks:  make(chan task, backlog),
		closed: make(chan struct{}),
	}
	config.InitLogger(&q.log, q)

	go q.run()

	return q
}

func (q *Queue) run() {
	for t := range q.tasks {
		select {
		case <-q.closed:
			return
		default:
		}

		t.fn()
		if t.done != nil {
			close(t.done)
		}
	}
}

// Go posts fn to run on the executor goroutine and returns immediately,
// without waiting for fn to run. Used for fire-and-forget work such as the
// asynchronous SlotGuard release the specification requires (§4.3): callers
// observe release latency rather than blocking on it.
func (q *Queue) Go(fn func()) {
	select {
	case q.tasks <- task{fn: fn}:
	case <-q.closed:
		q.log.Warn("Dropping task posted to a closed execution queue.")
	}
}

// Submit posts fn and blocks until it has run on the executor goroutine,
// giving the caller's own goroutine the effect of "running on the
// executor" for the duration of fn. Used by AcquireSlot and the other
// operations the specification pins to the job-control executor (§5).
func (q *Queue) Submit(fn func()) {
	done := make(chan struct{})
	select {
	case q.tasks <- task{fn: fn, done: done}:
	case <-q.closed:
		q.log.Warn("Dropping synchronous task posted to a closed execution queue.")
		return
	}

	select {
	case <-done:
	case <-q.closed:
	}
}

// AfterFunc schedules fn to be posted to the queue after d plus a uniform
// random jitter in [0, d), matching the specification's anti-thundering-
// herd requirement for alert auto-recovery (§4.5, §9). It returns the
// underlying timer so callers may Stop it (e.g. ResetAlert firing before
// the timer elapses).
func (q *Queue) AfterFunc(d time.Duration, fn func()) *time.Timer {
	jitter := time.Duration(0)
	if d > 0 {
		jitter = time.Duration(rand.Int63n(int64(d)))
	}

	return time.AfterFunc(d+jitter, func() {
		q.Go(fn)
	})
}

// Close stops accepting new tasks. Tasks already posted but not yet run
// are dropped, matching the specification's note that shutdown tears down
// the owning executor and pending releases are then acceptably lost (§5).
func (q *Queue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
