package task

import (
	"errors"

	"github.com/kingrea/latticed/internal/state"
)

// ErrProcessGone is returned by Process.Terminate when the pid no longer exists.
var ErrProcessGone = errors.New("task: process not found")

// Process probes and signals operating system processes.
type Process interface {
	// Alive reports whether pid refers to an existing process.
	Alive(pid int) bool
	// Terminate asks pid to exit. It returns ErrProcessGone when the process
	// does not exist.
	Terminate(pid int) error
}

// Spawner detaches a process that runs the task body.
type Spawner interface {
	Spawn(def Definition) error
}

// StartResult describes what Start did.
type StartResult string

const (
	StartArmed         StartResult = "armed"
	StartSpawned       StartResult = "spawned"
	StartAlreadyActive StartResult = "already-active"
)

// StopResult describes what Stop did.
type StopResult string

const (
	StopSignaled   StopResult = "signaled"
	StopNotRunning StopResult = "not-running"
)

// Manager applies the task state machine to one definition.
type Manager struct {
	def   Definition
	store state.Store
	proc  Process
}

// NewManager binds a definition to its persisted state.
func NewManager(def Definition, store state.Store, proc Process) *Manager {
	return &Manager{def: def, store: store, proc: proc}
}

// Definition returns the managed task definition.
func (m *Manager) Definition() Definition {
	return m.def
}

// Record returns the stored record without probing. A missing or unreadable
// record is returned as the zero value (stopped).
func (m *Manager) Record() state.Record {
	rec, err := m.store.Load(m.def.Name)
	if err != nil {
		return state.Record{}
	}
	return rec
}

// Status returns the task's current status, repairing a record whose pid
// points at a process that no longer exists.
func (m *Manager) Status() state.Status {
	rec, err := m.store.Load(m.def.Name)
	if err != nil {
		return state.StatusStopped
	}
	if rec.HasPID() && !m.proc.Alive(*rec.PID) {
		_, _ = m.store.Update(m.def.Name, func(r *state.Record) {
			r.Status = state.StatusStopped
			r.PID = nil
		})
		return state.StatusStopped
	}
	return rec.EffectiveStatus()
}

// Start arms the task. Command tasks only become idle and wait for the
// watcher; the watcher itself is spawned right away.
func (m *Manager) Start(spawner Spawner) (StartResult, error) {
	status := m.Status()
	if m.def.Kind == KindWatcher {
		if status.Busy() {
			return StartAlreadyActive, nil
		}
		if err := spawner.Spawn(m.def); err != nil {
			return "", err
		}
		return StartSpawned, nil
	}
	if status.Armed() {
		return StartAlreadyActive, nil
	}
	if _, err := m.store.Update(m.def.Name, func(r *state.Record) {
		r.Status = state.StatusIdle
		r.PID = nil
	}); err != nil {
		return "", err
	}
	return StartArmed, nil
}

// Stop signals the recorded process, if any, and deletes the record whatever
// the outcome of the signal. A signal failure other than a missing process is
// returned after the record is gone.
func (m *Manager) Stop() (StopResult, error) {
	result := StopNotRunning
	var signalErr error
	if rec, err := m.store.Load(m.def.Name); err == nil && rec.HasPID() {
		switch err := m.proc.Terminate(*rec.PID); {
		case err == nil:
			result = StopSignaled
		case errors.Is(err, ErrProcessGone):
		default:
			signalErr = err
		}
	}
	if err := m.store.Delete(m.def.Name); err != nil {
		return result, err
	}
	return result, signalErr
}
