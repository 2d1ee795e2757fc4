package executor

import "time"

// Operation is a zero-argument unit of work. The executor owns the closure
// (and anything it captures) from submission until it runs, is cancelled,
// or the executor is closed.
type Operation func()

// Tag is a caller-supplied label for deferred operations. Tags are not
// required to be unique; duplicates are tracked independently.
type Tag int

// NoTag marks an operation as untagged. Execute uses it for immediate
// submissions.
const NoTag Tag = -1

// TaggedOperation pairs an operation with its tag for Schedule and
// PopFromSchedule.
type TaggedOperation struct {
	Tag Tag
	Op  Operation
}

// RunInfo describes one completed dispatch, reported to the observer hook.
type RunInfo struct {
	Tag      Tag
	Start    time.Time
	Duration time.Duration

	// Panic holds the recovered panic value if the operation panicked,
	// nil otherwise.
	Panic any
}

// Executor runs operations one at a time, in (deadline, submission) order.
//
// Implementations serialize execution per instance: at most one operation
// (from the dispatch loop or from ExecuteBlocking) runs at any instant.
// Submissions may come from any goroutine.
type Executor interface {
	// Execute enqueues op for asynchronous execution as soon as possible.
	// Zero-delay submissions run FIFO.
	Execute(op Operation)

	// ExecuteBlocking runs op synchronously on the calling goroutine,
	// under the same mutual exclusion as the dispatch loop. Executor
	// identity holds for the duration of the run. Reentrant calls (from
	// an operation of the same instance) panic rather than deadlock.
	ExecuteBlocking(op Operation)

	// Schedule enqueues op to run after delay (zero or negative means as
	// soon as possible) and returns a cancellation handle.
	Schedule(delay time.Duration, op TaggedOperation) DelayedOperation

	// IsScheduled reports whether at least one not-yet-run, not-cancelled
	// entry carries tag.
	IsScheduled(tag Tag) bool

	// PopFromSchedule removes and returns the earliest live entry, in the
	// same global order the dispatch loop consumes. ok is false when the
	// schedule is empty.
	PopFromSchedule() (op TaggedOperation, ok bool)

	// Name returns the static identity of this executor instance.
	Name() string

	// IsCurrentExecutor reports whether the calling goroutine is currently
	// inside an operation dispatched by this exact instance.
	IsCurrentExecutor() bool

	// CurrentExecutorName returns the name of whichever executor (if any)
	// is running an operation on the calling goroutine, or "" if none.
	CurrentExecutorName() string

	// Close shuts the executor down, abandoning every entry that has not
	// started. It returns promptly and never blocks on pending work.
	Close()
}
