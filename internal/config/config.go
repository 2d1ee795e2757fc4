// Package config loads and watches syncexecd's configuration.
//
// Config files are JSON or YAML (YAML is coerced to JSON so both formats go
// through the same strict decoder). Unknown fields are rejected. All
// durations are Go duration strings (e.g. "500ms", "10s", "1m").
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`
	History HistoryConfig `json:"history,omitempty"`
	Queues  []QueueConfig `json:"queues,omitempty"`
	Jobs    []JobConfig   `json:"jobs"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HistoryConfig controls the optional run journal.
//
// Example:
//
//	"history": { "path": "./syncexec.db", "max_rows": 5000 }
type HistoryConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
	MaxRows     int    `json:"max_rows,omitempty"`
}

// QueueConfig declares one serial executor. Jobs reference queues by name;
// a "default" queue always exists.
type QueueConfig struct {
	Name string `json:"name"`

	// DefaultTimeout applies to jobs on this queue that do not set their
	// own. "0s" disables.
	DefaultTimeout string `json:"default_timeout,omitempty"`
}

// JobConfig declares one recurring job: a shell command run on a queue.
type JobConfig struct {
	Name     string `json:"name"`
	Queue    string `json:"queue,omitempty"` // default: "default"
	Schedule string `json:"schedule"`        // cron / duration / HH:MM
	Command  string `json:"command"`
	Timeout  string `json:"timeout,omitempty"` // Go duration string
}

// Validate checks cross-field consistency that the decoder cannot.
func (c *Config) Validate() error {
	queues := map[string]bool{"default": true}
	for i, q := range c.Queues {
		name := strings.TrimSpace(q.Name)
		if name == "" {
			return fmt.Errorf("queues[%d]: name required", i)
		}
		if queues[name] && name != "default" {
			return fmt.Errorf("queues[%d]: duplicate queue %q", i, name)
		}
		queues[name] = true
		if _, err := ParseDurationField(fmt.Sprintf("queues[%d].default_timeout", i), q.DefaultTimeout); err != nil {
			return err
		}
	}

	names := map[string]bool{}
	for i, j := range c.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("jobs[%d]: name required", i)
		}
		if names[name] {
			return fmt.Errorf("jobs[%d]: duplicate job %q", i, name)
		}
		names[name] = true
		if strings.TrimSpace(j.Schedule) == "" {
			return fmt.Errorf("jobs[%d]: schedule required", i)
		}
		if strings.TrimSpace(j.Command) == "" {
			return fmt.Errorf("jobs[%d]: command required", i)
		}
		if q := strings.TrimSpace(j.Queue); q != "" && !queues[q] {
			return fmt.Errorf("jobs[%d]: unknown queue %q", i, q)
		}
		if _, err := ParseDurationField(fmt.Sprintf("jobs[%d].timeout", i), j.Timeout); err != nil {
			return err
		}
	}

	if _, err := ParseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
		return err
	}
	return nil
}

// ParseDurationField parses an optional duration string; empty means 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
