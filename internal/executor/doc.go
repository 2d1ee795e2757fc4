// Package executor provides the serial task executor used by the sync
// engine to get deterministic execution ordering on top of ordinary
// goroutines.
//
// # Overview
//
// An Executor runs zero-argument operations one at a time, in a well-defined
// order. Work is submitted for immediate execution (Execute), for deferred
// execution after a delay (Schedule), or synchronously on the caller's
// goroutine (ExecuteBlocking). Deferred submissions return a DelayedOperation
// handle that can cancel the operation at any point before it starts.
//
// # Ordering
//
// Immediate and delayed submissions share a single schedule ordered by
// (deadline, submission sequence). An immediate submission is a delayed
// submission with delay zero, so zero-delay operations run FIFO and delayed
// operations run in deadline order, under one rule.
//
// # Cancellation
//
// Cancel only affects operations that have not started; it never interrupts
// a running one. Handles are idempotent and remain safe to use after the
// operation has run, been popped, or the executor has been closed.
//
// # Identity
//
// While an operation runs, the executing goroutine is tagged with its
// executor: IsCurrentExecutor and CurrentExecutorName answer "am I inside
// this executor right now" for the full dynamic extent of the operation,
// including nested calls.
//
// # Shutdown
//
// Close stops the dispatch loop promptly and abandons every entry that has
// not started; at most the operation already running is waited for.
package executor
