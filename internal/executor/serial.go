package executor

import (
	"sync"
	"time"

	"syncexec/pkg/logx"
)

// Option configures a Serial executor.
type Option func(*Serial)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logx.Logger) Option {
	return func(e *Serial) { e.log = log }
}

// WithObserver installs a hook called after every dispatched run (not for
// ExecuteBlocking). The hook runs on the dispatch goroutine with identity
// already cleared; it must be fast and must not panic.
func WithObserver(fn func(RunInfo)) Option {
	return func(e *Serial) { e.observe = fn }
}

// Serial is an Executor backed by a single dispatch goroutine.
//
// The dispatch loop sleeps until the earliest deadline, re-arming whenever
// an insertion becomes the new earliest entry, and runs due entries one at
// a time. A mutex shared with ExecuteBlocking guarantees that at most one
// operation of this instance runs at any instant.
type Serial struct {
	name    string
	log     logx.Logger
	failLog logx.Logger // rate-limited; a hot panicking op must not flood sinks
	observe func(RunInfo)

	sched *schedule

	// runMu serializes operation execution (dispatch loop vs.
	// ExecuteBlocking). It is distinct from the schedule lock, which only
	// covers structural mutation.
	runMu sync.Mutex

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

var _ Executor = (*Serial)(nil)

// NewSerial creates a named serial executor and starts its dispatch loop.
func NewSerial(name string, opts ...Option) *Serial {
	e := &Serial{
		name:   name,
		log:    logx.Nop(),
		sched:  newSchedule(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.failLog = e.log.Throttled(1)

	go e.dispatchLoop()
	return e
}

func (e *Serial) Name() string { return e.name }

func (e *Serial) IsCurrentExecutor() bool {
	return currentExecutor() == Executor(e)
}

func (e *Serial) CurrentExecutorName() string {
	return CurrentExecutorName()
}

func (e *Serial) Execute(op Operation) {
	e.Schedule(0, TaggedOperation{Tag: NoTag, Op: op})
}

func (e *Serial) Schedule(delay time.Duration, op TaggedOperation) DelayedOperation {
	select {
	case <-e.stopCh:
		e.log.Debug("submission after close dropped",
			logx.String("executor", e.name), logx.Int("tag", int(op.Tag)))
		return DelayedOperation{}
	default:
	}

	en := e.sched.insert(op, time.Now().Add(delay))
	return DelayedOperation{s: e.sched, e: en}
}

// ExecuteBlocking runs op inline on the caller's goroutine, excluded
// against the dispatch loop. A panic in op propagates to the caller;
// identity is restored first.
//
// Calling it from inside one of this executor's own operations would
// self-deadlock on the run lock, so it panics instead. Operations that need
// to submit follow-up work use Execute or Schedule.
func (e *Serial) ExecuteBlocking(op Operation) {
	if e.IsCurrentExecutor() {
		panic("executor: ExecuteBlocking called from an operation on " + e.name)
	}
	e.runMu.Lock()
	defer e.runMu.Unlock()

	restore := enter(e)
	defer restore()

	op()
}

func (e *Serial) IsScheduled(tag Tag) bool {
	return e.sched.isScheduled(tag)
}

func (e *Serial) PopFromSchedule() (TaggedOperation, bool) {
	en, ok := e.sched.pop()
	if !ok {
		return TaggedOperation{}, false
	}
	return en.op, true
}

// ScheduledCount returns the number of pending entries.
func (e *Serial) ScheduledCount() int { return e.sched.len() }

// Close stops the dispatch loop and abandons every entry that has not
// started, due or not; it never blocks on pending work. It waits for the
// loop goroutine to exit (so it may wait for the one operation currently
// running), except when called from inside one of this executor's own
// operations, where it only signals.
func (e *Serial) Close() {
	e.closeOnce.Do(func() {
		close(e.stopCh)
		if n := e.sched.len(); n > 0 {
			e.log.Debug("closing with pending entries abandoned",
				logx.String("executor", e.name), logx.Int("pending", n))
		}
	})

	if e.IsCurrentExecutor() {
		return
	}
	<-e.doneCh
}

func (e *Serial) dispatchLoop() {
	defer close(e.doneCh)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		// Shutdown wins over due work: anything not yet started is
		// abandoned, so Close never blocks on a backlog.
		select {
		case <-e.stopCh:
			return
		default:
		}

		en, wait := e.sched.next(time.Now())
		if en != nil {
			e.invoke(en)
			continue
		}

		if wait == 0 {
			// Empty schedule: sleep until an insertion or shutdown.
			select {
			case <-e.stopCh:
				return
			case <-e.sched.wake:
			}
			continue
		}

		// Earliest entry is in the future: sleep until its deadline or
		// until a new earlier insertion re-arms the wait.
		timer.Reset(wait)
		select {
		case <-e.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		case <-e.sched.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// invoke runs one popped entry with identity set, containing panics so one
// failing operation cannot abort the loop or corrupt the schedule.
func (e *Serial) invoke(en *entry) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	// Cancelled between pop and acquisition of the run lock.
	if en.cancelled.Load() {
		return
	}

	start := time.Now()
	var panicked any

	restore := enter(e)
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = r
				e.failLog.Error("operation panicked",
					logx.String("executor", e.name),
					logx.Int("tag", int(en.op.Tag)),
					logx.Any("panic", r),
					logx.StackTrace())
			}
		}()
		en.op.Op()
	}()
	restore()

	if e.observe != nil {
		e.observe(RunInfo{
			Tag:      en.op.Tag,
			Start:    start,
			Duration: time.Since(start),
			Panic:    panicked,
		})
	}
}
