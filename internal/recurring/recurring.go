// Package recurring arms repeating jobs on a serial executor.
//
// # Overview
//
// A Runner turns schedule strings (cron expressions, durations, HH:MM
// intervals) into tagged deferred operations on one executor: each job is
// scheduled for its next occurrence and re-armed after every run.
// robfig/cron is used purely as a deadline calculator; dispatch, ordering
// and cancellation belong to the executor.
//
// Jobs are registered under a logical name. Names are stable and human
// readable so jobs can be replaced (upserted) and removed deterministically.
package recurring

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"syncexec/internal/executor"
	"syncexec/internal/history"
	"syncexec/pkg/logx"
)

// Config controls the runner.
type Config struct {
	// DefaultTimeout applies to jobs that do not set their own. 0 disables.
	DefaultTimeout time.Duration
}

// Job is one recurring job definition.
type Job struct {
	Name     string
	Schedule string        // cron / duration / HH:MM
	Timeout  time.Duration // 0 means Config.DefaultTimeout
	Run      func(ctx context.Context) error
}

type jobState struct {
	def     Job
	sched   Schedule
	tag     executor.Tag
	handle  executor.DelayedOperation
	removed bool
}

// Runner schedules recurring jobs on a single executor.
type Runner struct {
	log   logx.Logger
	cfg   Config
	exec  executor.Executor
	store history.Store // may be nil

	parser cron.Parser

	mu      sync.Mutex
	nextTag executor.Tag
	jobs    map[string]*jobState
	stopped bool
}

// New creates a runner bound to exec. store may be nil to skip journaling.
func New(cfg Config, exec executor.Executor, store history.Store, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		log:     log,
		cfg:     cfg,
		exec:    exec,
		store:   store,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		nextTag: 1,
		jobs:    make(map[string]*jobState),
	}
}

// Add registers job and arms its first occurrence. Re-adding an existing
// name replaces the previous definition (upsert).
func (r *Runner) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job name required")
	}
	if job.Run == nil {
		return errors.New("job run func required")
	}
	sched, err := parseSchedule(r.parser, job.Schedule)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errors.New("runner stopped")
	}

	// Upsert by name: disarm the previous definition to prevent duplicate
	// firings across hot-reloads or repeated registrations.
	if old, ok := r.jobs[job.Name]; ok {
		old.removed = true
		old.handle.Cancel()
	}

	st := &jobState{def: job, sched: sched, tag: r.nextTag}
	r.nextTag++
	r.jobs[job.Name] = st
	r.armLocked(st, time.Now())

	r.log.Debug("job registered",
		logx.String("job", job.Name),
		logx.String("schedule", job.Schedule),
		logx.Int("tag", int(st.tag)))
	return nil
}

// Remove disarms and forgets the named job. Unknown names are a no-op.
func (r *Runner) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[name]
	if !ok {
		return
	}
	st.removed = true
	st.handle.Cancel()
	delete(r.jobs, name)
}

// IsArmed reports whether the named job currently has a pending occurrence
// on the executor's schedule.
func (r *Runner) IsArmed(name string) bool {
	r.mu.Lock()
	st, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.exec.IsScheduled(st.tag)
}

// Names returns the registered job names.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		out = append(out, name)
	}
	return out
}

// Stop disarms all jobs. Runs already started on the executor finish
// normally; nothing re-arms afterwards.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	for _, st := range r.jobs {
		st.handle.Cancel()
	}
}

func (r *Runner) armLocked(st *jobState, now time.Time) {
	next := st.sched.Next(now)
	st.handle = r.exec.Schedule(next.Sub(now), executor.TaggedOperation{
		Tag: st.tag,
		Op:  func() { r.fire(st) },
	})
}

// fire runs on the executor: the job body executes inside the executor's
// serialized context, then the next occurrence is armed.
func (r *Runner) fire(st *jobState) {
	r.mu.Lock()
	if r.stopped || st.removed {
		r.mu.Unlock()
		return
	}
	def := st.def
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	r.mu.Unlock()

	start := time.Now()
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	err := def.Run(ctx)
	if cancel != nil {
		cancel()
	}
	took := time.Since(start)

	if err != nil {
		r.log.Warn("job failed", logx.String("job", def.Name), logx.Duration("took", took), logx.Err(err))
	} else {
		r.log.Debug("job ok", logx.String("job", def.Name), logx.Duration("took", took))
	}

	if r.store != nil {
		rec := history.Record{At: start, Job: def.Name, Duration: took}
		if err != nil {
			rec.Error = err.Error()
		}
		hctx, hcancel := context.WithTimeout(context.Background(), time.Second)
		if aerr := r.store.Append(hctx, rec); aerr != nil {
			r.log.Debug("history append failed", logx.String("job", def.Name), logx.Err(aerr))
		}
		hcancel()
	}

	r.mu.Lock()
	if !r.stopped && !st.removed {
		r.armLocked(st, time.Now())
	}
	r.mu.Unlock()
}
