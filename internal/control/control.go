// Package control is the front end shared by the CLI and the dashboard. It
// binds a registry to the state store and turns task names into state
// machine operations.
package control

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/latticed/internal/registry"
	"github.com/kingrea/latticed/internal/state"
	"github.com/kingrea/latticed/internal/task"
)

// statusConcurrency bounds how many records are probed at once.
const statusConcurrency = 8

// Controller runs start, stop and status against registered tasks.
type Controller struct {
	reg     *registry.Registry
	store   state.Store
	proc    task.Process
	spawner task.Spawner
}

// New creates a Controller.
func New(reg *registry.Registry, store state.Store, proc task.Process, spawner task.Spawner) *Controller {
	return &Controller{reg: reg, store: store, proc: proc, spawner: spawner}
}

// Registry returns the registry the controller was built with.
func (c *Controller) Registry() *registry.Registry {
	return c.reg
}

func (c *Controller) manager(name string) (*task.Manager, error) {
	def, err := c.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return task.NewManager(def, c.store, c.proc), nil
}

// Start arms the named task, spawning it when it is the watcher.
func (c *Controller) Start(name string) (task.Definition, task.StartResult, error) {
	m, err := c.manager(name)
	if err != nil {
		return task.Definition{}, "", err
	}
	res, err := m.Start(c.spawner)
	return m.Definition(), res, err
}

// Stop terminates the named task's process, if any, and forgets its state.
func (c *Controller) Stop(name string) (task.Definition, task.StopResult, error) {
	m, err := c.manager(name)
	if err != nil {
		return task.Definition{}, "", err
	}
	res, err := m.Stop()
	return m.Definition(), res, err
}

// TaskStatus is one row of a status report.
type TaskStatus struct {
	Definition task.Definition
	Status     state.Status
	PID        int
	Branch     string
}

// Status probes every task in registry order. Stale records are repaired as
// a side effect.
func (c *Controller) Status(ctx context.Context) ([]TaskStatus, error) {
	defs := c.reg.Tasks()
	out := make([]TaskStatus, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m := task.NewManager(def, c.store, c.proc)
			row := TaskStatus{Definition: def, Status: m.Status()}
			rec := m.Record()
			if rec.HasPID() {
				row.PID = *rec.PID
			}
			row.Branch = rec.Branch()
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
