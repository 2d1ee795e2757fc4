package recurring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"syncexec/internal/executor"
	"syncexec/internal/history"
	"syncexec/pkg/logx"
)

type memStore struct {
	mu   sync.Mutex
	recs []history.Record
}

func (m *memStore) Append(_ context.Context, r history.Record) error {
	m.mu.Lock()
	m.recs = append(m.recs, r)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Recent(_ context.Context, limit int) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Record(nil), m.recs...), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func TestRunnerReArmsIntervalJobs(t *testing.T) {
	t.Parallel()
	ex := executor.NewSerial("recurring")
	defer ex.Close()

	store := &memStore{}
	r := New(Config{}, ex, store, logx.Nop())
	defer r.Stop()

	var runs atomic.Int64
	err := r.Add(Job{
		Name:     "tick",
		Schedule: "10ms",
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := runs.Load(); got < 3 {
		t.Fatalf("job ran %d times, want at least 3", got)
	}
	if store.count() < 3 {
		t.Fatalf("history recorded %d runs, want at least 3", store.count())
	}
	if !r.IsArmed("tick") {
		// The job may be mid-run; give the re-arm a moment.
		time.Sleep(50 * time.Millisecond)
		if !r.IsArmed("tick") {
			t.Fatal("IsArmed = false for a live interval job")
		}
	}
}

func TestRunnerRecordsFailures(t *testing.T) {
	t.Parallel()
	ex := executor.NewSerial("recurring")
	defer ex.Close()

	store := &memStore{}
	r := New(Config{}, ex, store, logx.Nop())
	defer r.Stop()

	var runs atomic.Int64
	if err := r.Add(Job{
		Name:     "flaky",
		Schedule: "10ms",
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("remote unreachable")
		},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.recs) == 0 {
		t.Fatal("no history records for a failing job")
	}
	if store.recs[0].Error != "remote unreachable" {
		t.Fatalf("record error = %q, want %q", store.recs[0].Error, "remote unreachable")
	}
}

func TestRunnerRemoveDisarms(t *testing.T) {
	t.Parallel()
	ex := executor.NewSerial("recurring")
	defer ex.Close()

	r := New(Config{}, ex, nil, logx.Nop())
	defer r.Stop()

	if err := r.Add(Job{Name: "gone", Schedule: "1h", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !r.IsArmed("gone") {
		t.Fatal("IsArmed = false after Add")
	}

	r.Remove("gone")
	if r.IsArmed("gone") {
		t.Fatal("IsArmed = true after Remove")
	}
	// Unknown names are a no-op.
	r.Remove("never-existed")
}

func TestRunnerUpsertReplacesJob(t *testing.T) {
	t.Parallel()
	ex := executor.NewSerial("recurring")
	defer ex.Close()

	r := New(Config{}, ex, nil, logx.Nop())
	defer r.Stop()

	var first, second atomic.Int64
	if err := r.Add(Job{Name: "sync", Schedule: "1h", Run: func(context.Context) error {
		first.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(Job{Name: "sync", Schedule: "10ms", Run: func(context.Context) error {
		second.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("re-Add: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for second.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if second.Load() < 1 {
		t.Fatal("replacement job never ran")
	}
	if first.Load() != 0 {
		t.Fatal("replaced job still ran")
	}
	if got := len(r.Names()); got != 1 {
		t.Fatalf("Names reported %d jobs, want 1", got)
	}
}

func TestRunnerStopPreventsFurtherRuns(t *testing.T) {
	t.Parallel()
	ex := executor.NewSerial("recurring")
	defer ex.Close()

	r := New(Config{}, ex, nil, logx.Nop())

	var runs atomic.Int64
	if err := r.Add(Job{Name: "tick", Schedule: "10ms", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	r.Stop()
	settled := runs.Load()
	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got > settled+1 {
		t.Fatalf("job kept running after Stop: %d -> %d", settled, got)
	}

	if err := r.Add(Job{Name: "late", Schedule: "10ms", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("Add after Stop succeeded")
	}
}

func TestRunnerTimeoutCancelsContext(t *testing.T) {
	t.Parallel()
	ex := executor.NewSerial("recurring")
	defer ex.Close()

	r := New(Config{DefaultTimeout: 20 * time.Millisecond}, ex, nil, logx.Nop())
	defer r.Stop()

	expired := make(chan struct{})
	var once sync.Once
	if err := r.Add(Job{Name: "slow", Schedule: "10ms", Run: func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			once.Do(func() { close(expired) })
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("job context never expired under DefaultTimeout")
	}
}
