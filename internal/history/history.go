// Package history persists a journal of executed job runs.
//
// The backing store is SQLite (modernc.org/sqlite, pure Go). When no path
// is configured the package degrades to a no-op store so callers never have
// to nil-check.
package history

import (
	"context"
	"strings"
	"time"

	"syncexec/pkg/logx"
)

// Config configures the history store. An empty Path disables persistence.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default

	// MaxRows bounds the journal; older rows are pruned opportunistically.
	// 0 means keep everything.
	MaxRows int
}

// Record is one completed run.
// Keep it compact and schema-stable.
type Record struct {
	At       time.Time
	Job      string
	Duration time.Duration
	Error    string
}

// Store is the minimal persistence API used by the recurring runner and the
// daemon.
type Store interface {
	Append(ctx context.Context, r Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open initializes the configured store. It returns a no-op store when
// persistence is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nopStore{}, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}

type nopStore struct{}

func (nopStore) Append(context.Context, Record) error          { return nil }
func (nopStore) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (nopStore) Close() error                                  { return nil }
