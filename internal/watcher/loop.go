package watcher

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kingrea/latticed/internal/registry"
	"github.com/kingrea/latticed/internal/state"
	"github.com/kingrea/latticed/internal/task"
	"github.com/kingrea/latticed/internal/vcs"
)

const defaultInterval = 5 * time.Second

// RegistryLoader rebuilds the task registry from current configuration.
type RegistryLoader func() (*registry.Registry, error)

// Options wires a Loop.
type Options struct {
	Branch   vcs.BranchReader
	Load     RegistryLoader
	Store    state.Store
	Process  task.Process
	Spawner  task.Spawner
	Trigger  string
	Interval time.Duration
	// Nudge, when set, wakes the loop before the interval elapses.
	Nudge  <-chan struct{}
	Logger *log.Logger
}

// Loop is the watcher task body.
type Loop struct {
	opts Options
}

// New creates a Loop, filling in the default trigger and interval.
func New(opts Options) *Loop {
	if opts.Trigger == "" {
		opts.Trigger = task.DefaultTrigger
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Loop{opts: opts}
}

// Interval returns the time between ticks.
func (l *Loop) Interval() time.Duration {
	return l.opts.Interval
}

// Run ticks until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.opts.Logger.Info("watching", "trigger", l.opts.Trigger, "interval", l.opts.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-l.opts.Nudge:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			l.opts.Logger.Debug("HEAD changed, ticking early")
		}
		l.Tick(ctx)
		timer.Reset(l.opts.Interval)
	}
}

// TickReport summarizes one tick.
type TickReport struct {
	Branch    string
	Triggered []string
	// Skipped lists tasks that were up to date or not idle.
	Skipped []string
	// Deferred maps a task to the dependencies that held it back.
	Deferred map[string][]string
	Err      error
}

// Tick performs one evaluation pass.
func (l *Loop) Tick(ctx context.Context) TickReport {
	logger := l.opts.Logger
	report := TickReport{}

	branch, err := l.opts.Branch.Branch(ctx)
	if err != nil {
		logger.Error("could not read branch", "err", err)
		report.Err = err
		return report
	}
	report.Branch = branch

	reg, err := l.opts.Load()
	if err != nil {
		logger.Error("could not load tasks", "err", err)
		report.Err = err
		return report
	}

	triggered := map[string]bool{}
	for _, def := range reg.Tasks() {
		if def.Kind != task.KindCommand || def.Trigger != l.opts.Trigger {
			continue
		}
		m := task.NewManager(def, l.opts.Store, l.opts.Process)
		rec := m.Record()
		if rec.Branch() == branch || rec.EffectiveStatus() != state.StatusIdle {
			report.Skipped = append(report.Skipped, def.Name)
			continue
		}

		if blockers := l.blockers(reg, def, branch, triggered); len(blockers) > 0 {
			logger.Info("waiting for dependencies", "task", def.Name, "blocked_by", blockers)
			if report.Deferred == nil {
				report.Deferred = map[string][]string{}
			}
			report.Deferred[def.Name] = blockers
			continue
		}

		previous := rec.Branch()
		if _, err := l.opts.Store.Update(def.Name, func(r *state.Record) { r.SetBranch(branch) }); err != nil {
			logger.Error("could not record branch", "task", def.Name, "err", err)
			continue
		}
		logger.Info("branch changed, running task", "task", def.Name, "branch", branch)
		if err := l.opts.Spawner.Spawn(def); err != nil {
			logger.Error("could not spawn task", "task", def.Name, "err", err)
			if _, err := l.opts.Store.Update(def.Name, func(r *state.Record) { r.SetBranch(previous) }); err != nil {
				logger.Error("could not restore branch", "task", def.Name, "err", err)
			}
			continue
		}
		triggered[def.Name] = true
		report.Triggered = append(report.Triggered, def.Name)
	}
	return report
}

// blockers lists dependencies that are busy, behind branch, or were
// themselves triggered earlier in this tick.
func (l *Loop) blockers(reg *registry.Registry, def task.Definition, branch string, triggered map[string]bool) []string {
	var out []string
	for _, name := range def.Dependencies {
		dep, err := reg.Lookup(name)
		if err != nil {
			out = append(out, name)
			continue
		}
		if triggered[dep.Name] {
			out = append(out, dep.Name)
			continue
		}
		m := task.NewManager(dep, l.opts.Store, l.opts.Process)
		if m.Status().Busy() || m.Record().Branch() != branch {
			out = append(out, dep.Name)
		}
	}
	sort.Strings(out)
	return out
}
