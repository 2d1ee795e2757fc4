package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"syncexec/pkg/logx"
)

func TestWaitReturnsAfterGoroutinesExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	ran := make(chan struct{})
	s.Go0("worker", func(ctx context.Context) {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestFirstErrorIsKept(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))

	first := errors.New("boom")
	s.Go("a", func(ctx context.Context) error { return first })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, first) {
		t.Fatalf("Wait = %v, want wrapped %v", err, first)
	}

	s.Go("b", func(ctx context.Context) error { return errors.New("later") })
	if err := s.Err(); !errors.Is(err, first) {
		t.Fatalf("Err = %v, want the first error kept", err)
	}
}

func TestCancelOnErrorCancelsContext(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go("failing", func(ctx context.Context) error { return errors.New("boom") })

	select {
	case <-s.Context().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled after goroutine error")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go0("panicky", func(ctx context.Context) { panic("kaboom") })

	select {
	case <-s.Context().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled after panic")
	}
	if err := s.Err(); err == nil {
		t.Fatal("Err = nil after panic")
	}
}

func TestContextCancelledIsCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop = %v, want nil for context.Canceled exits", err)
	}
}
