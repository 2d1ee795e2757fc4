// Package app wires the daemon together: config manager, logging service,
// run history store, one serial execution queue per configured queue, and a
// recurring-job runner on top of each queue.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"syncexec/internal/config"
	"syncexec/internal/executor"
	"syncexec/internal/history"
	"syncexec/internal/recurring"
	"syncexec/internal/runtime/supervisor"
	"syncexec/pkg/logx"
)

type App struct {
	cfgm  *config.Manager
	logs  *logx.Service
	log   logx.Logger
	store history.Store

	sup *supervisor.Supervisor

	mu      sync.Mutex
	queues  map[string]*executor.Serial
	runners map[string]*recurring.Runner
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(loggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busy, err := config.ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	store, err := history.Open(history.Config{
		Path:        cfg.History.Path,
		BusyTimeout: busy,
		MaxRows:     cfg.History.MaxRows,
	}, log.With(logx.String("comp", "history")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
		store:   store,
		queues:  map[string]*executor.Serial{},
		runners: map[string]*recurring.Runner{},
	}
	if err := a.applyConfig(cfg); err != nil {
		a.teardown()
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// applyConfig reconciles queues and jobs with the given snapshot. Queues are
// created on first reference and kept for the process lifetime; jobs are
// upserted and stale ones removed.
func (a *App) applyConfig(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	timeouts := map[string]time.Duration{"default": 0}
	for _, q := range cfg.Queues {
		d, err := config.ParseDurationField("queues."+q.Name+".default_timeout", q.DefaultTimeout)
		if err != nil {
			return err
		}
		timeouts[q.Name] = d
	}
	for name, dt := range timeouts {
		if _, ok := a.runners[name]; ok {
			continue
		}
		qlog := a.log.With(logx.String("queue", name))
		ex := executor.NewSerial(name, executor.WithLogger(qlog))
		a.queues[name] = ex
		a.runners[name] = recurring.New(recurring.Config{DefaultTimeout: dt}, ex, a.store, qlog)
	}

	desired := map[string]map[string]config.JobConfig{}
	for _, j := range cfg.Jobs {
		q := j.Queue
		if q == "" {
			q = "default"
		}
		if desired[q] == nil {
			desired[q] = map[string]config.JobConfig{}
		}
		desired[q][j.Name] = j
	}

	var firstErr error
	for qname, r := range a.runners {
		want := desired[qname]
		for _, name := range r.Names() {
			if _, ok := want[name]; !ok {
				r.Remove(name)
			}
		}
		for _, jc := range want {
			timeout, err := config.ParseDurationField("jobs."+jc.Name+".timeout", jc.Timeout)
			if err == nil {
				err = r.Add(recurring.Job{
					Name:     jc.Name,
					Schedule: jc.Schedule,
					Timeout:  timeout,
					Run:      commandJob(jc.Command),
				})
			}
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("job %q: %w", jc.Name, err)
			}
		}
	}
	return firstErr
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest snapshot.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.logs.Apply(loggingConfig(cfg))
				if err := a.applyConfig(cfg); err != nil {
					a.log.Warn("config apply: job registration failed", logx.Err(err))
				}
				a.log.Info("config applied",
					logx.Int("queues", len(cfg.Queues)+1),
					logx.Int("jobs", len(cfg.Jobs)))
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.mu.Lock()
	nq := len(a.queues)
	a.mu.Unlock()
	a.log.Info("started", logx.Int("queues", nq))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	if a.sup != nil {
		a.sup.Cancel()
		if err := a.sup.Wait(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("background goroutine error", logx.Err(err))
		}
	}
	a.teardown()
	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) teardown() {
	a.mu.Lock()
	runners := a.runners
	queues := a.queues
	a.runners = map[string]*recurring.Runner{}
	a.queues = map[string]*executor.Serial{}
	a.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
	for name, ex := range queues {
		if n := ex.ScheduledCount(); n > 0 {
			a.log.Debug("abandoning scheduled operations",
				logx.String("queue", name), logx.Int("pending", n))
		}
		ex.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("history close failed", logx.Err(err))
	}
}
