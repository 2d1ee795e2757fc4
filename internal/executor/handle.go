package executor

// DelayedOperation is a copyable cancellation handle for one scheduled
// entry. It holds the entry's shared cancellation flag rather than a live
// position in the schedule, so it stays valid after the operation has run,
// been popped, or the executor has been closed.
//
// The zero value is a no-op handle.
type DelayedOperation struct {
	s *schedule
	e *entry
}

// Cancel prevents the referenced operation from running if it has not
// started yet. It is idempotent, never fails, and is a no-op once the
// operation has run or been removed. It does not interrupt an operation
// that is already running.
func (d DelayedOperation) Cancel() {
	if d.s == nil || d.e == nil {
		return
	}
	d.s.remove(d.e)
}
