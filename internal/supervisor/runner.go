package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/kingrea/latticed/internal/state"
	"github.com/kingrea/latticed/internal/task"
)

// Execution is one run of a task body.
type Execution struct {
	Task  task.Definition
	RunID string
}

// Body is the work a supervised process performs for a task kind.
type Body interface {
	Run(ctx context.Context, exec Execution) error
}

// BodyFunc adapts a function to Body.
type BodyFunc func(ctx context.Context, exec Execution) error

// Run calls f.
func (f BodyFunc) Run(ctx context.Context, exec Execution) error {
	return f(ctx, exec)
}

// Runner is the child side of the supervisor.
type Runner struct {
	store  state.Store
	bodies map[task.Kind]Body
	logger *log.Logger
	pid    int
}

// NewRunner creates a Runner dispatching on task kind.
func NewRunner(store state.Store, bodies map[task.Kind]Body, logger *log.Logger) *Runner {
	return &Runner{store: store, bodies: bodies, logger: logger, pid: os.Getpid()}
}

// Run records this process as running, executes the body, and returns the
// task to idle. A failing body is logged and otherwise ignored. When ctx is
// canceled (the process was told to terminate) state is left untouched
// because stop has already removed the record.
func (r *Runner) Run(ctx context.Context, def task.Definition) error {
	body, ok := r.bodies[def.Kind]
	if !ok {
		return fmt.Errorf("supervisor: no body for %s tasks", def.Kind)
	}
	if _, err := r.store.Update(def.Name, func(rec *state.Record) {
		rec.Status = state.StatusRunning
		rec.SetPID(r.pid)
	}); err != nil {
		return err
	}

	exec := Execution{Task: def, RunID: uuid.NewString()}
	logger := r.logger.With("task", def.Name, "run", exec.RunID)
	logger.Info("running", "pid", r.pid)

	err := body.Run(ctx, exec)
	if ctx.Err() != nil {
		logger.Info("terminated")
		return nil
	}
	if err != nil {
		logger.Error("finished with error", "err", err)
	} else {
		logger.Info("finished")
	}

	return r.finish(def.Name)
}

// finish returns the task to idle. A missing record means stop ran while the
// body was winding down, so nothing is written back.
func (r *Runner) finish(name string) error {
	rec, err := r.store.Load(name)
	if errors.Is(err, state.ErrNotFound) {
		r.logger.Info("record removed while finishing, leaving it stopped", "task", name)
		return nil
	}
	if err != nil {
		return err
	}
	rec.Status = state.StatusIdle
	rec.PID = nil
	return r.store.Save(name, rec)
}
