package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
history:
  path: ./syncexec.db
  busy_timeout: 2s
  max_rows: 1000
queues:
  - name: sync
    default_timeout: 30s
jobs:
  - name: pull
    queue: sync
    schedule: "*/5 * * * *"
    command: "sync-engine pull"
  - name: compact
    schedule: 1h
    command: "sync-engine compact"
    timeout: 10m
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.History.Path != "./syncexec.db" || cfg.History.MaxRows != 1000 {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}
	if len(cfg.Queues) != 1 || cfg.Queues[0].Name != "sync" {
		t.Fatalf("unexpected queues: %+v", cfg.Queues)
	}
	if len(cfg.Jobs) != 2 || cfg.Jobs[0].Queue != "sync" || cfg.Jobs[1].Queue != "" {
		t.Fatalf("unexpected jobs: %+v", cfg.Jobs)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed snapshot")
	}

	d, err := ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
	if err != nil || d != 2*time.Second {
		t.Fatalf("ParseDurationField = (%v, %v)", d, err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},"jobs":[],"surprise":1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"jobs":[]}{"jobs":[]}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty", cfg: Config{}},
		{
			name: "ok",
			cfg: Config{
				Queues: []QueueConfig{{Name: "sync"}},
				Jobs:   []JobConfig{{Name: "pull", Queue: "sync", Schedule: "5m", Command: "true"}},
			},
		},
		{
			name:    "job without command",
			cfg:     Config{Jobs: []JobConfig{{Name: "pull", Schedule: "5m"}}},
			wantErr: true,
		},
		{
			name:    "job without schedule",
			cfg:     Config{Jobs: []JobConfig{{Name: "pull", Command: "true"}}},
			wantErr: true,
		},
		{
			name:    "unknown queue",
			cfg:     Config{Jobs: []JobConfig{{Name: "pull", Queue: "nope", Schedule: "5m", Command: "true"}}},
			wantErr: true,
		},
		{
			name: "duplicate job",
			cfg: Config{Jobs: []JobConfig{
				{Name: "pull", Schedule: "5m", Command: "true"},
				{Name: "pull", Schedule: "6m", Command: "true"},
			}},
			wantErr: true,
		},
		{
			name:    "bad timeout",
			cfg:     Config{Jobs: []JobConfig{{Name: "pull", Schedule: "5m", Command: "true", Timeout: "soon"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"jobs":[]}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("subscriber received a different snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the published config")
	}
}
