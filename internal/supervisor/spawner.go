package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"

	"github.com/kingrea/latticed/internal/logbook"
	"github.com/kingrea/latticed/internal/state"
	"github.com/kingrea/latticed/internal/task"
)

// ErrUnsupported is returned on platforms without sessions and process groups.
var ErrUnsupported = errors.New("supervisor: detached processes are not supported on this platform")

// RunCommand is the hidden CLI subcommand that hosts a task body.
const RunCommand = "run"

// SpawnConfig describes how to re-execute the current binary.
type SpawnConfig struct {
	// Executable is the latticed binary to run.
	Executable string
	// Args precede `run <task>`, typically the resolved --scratch/--config flags.
	Args []string
	// Dir is the working directory of the child.
	Dir string
	// LogPath maps a task name to its log file.
	LogPath func(name string) string
}

// Spawner launches detached task processes.
type Spawner struct {
	store  state.Store
	cfg    SpawnConfig
	logger *log.Logger
}

// NewSpawner creates a Spawner that writes through store.
func NewSpawner(store state.Store, cfg SpawnConfig, logger *log.Logger) *Spawner {
	return &Spawner{store: store, cfg: cfg, logger: logger}
}

// Spawn marks def as starting and detaches `latticed run <name>`. If the
// process cannot be started the record is put back to idle. Once it has
// started, the record carries the child's pid so a child that dies before
// reporting in is healed by the usual liveness probe.
func (s *Spawner) Spawn(def task.Definition) error {
	if !platformSupported {
		return ErrUnsupported
	}
	if _, err := s.store.Update(def.Name, func(r *state.Record) {
		r.Status = state.StatusStarting
		r.PID = nil
	}); err != nil {
		return err
	}
	cmd, err := s.launch(def)
	if err != nil {
		if _, revertErr := s.store.Update(def.Name, func(r *state.Record) {
			r.Status = state.StatusIdle
			r.PID = nil
		}); revertErr != nil {
			s.logger.Warn("could not revert state after failed spawn", "task", def.Name, "err", revertErr)
		}
		return err
	}
	pid := cmd.Process.Pid
	s.logger.Debug("spawned", "task", def.Name, "pid", pid)
	s.claim(def.Name, pid)
	go s.reap(def.Name, cmd)
	return nil
}

// claim records pid while the record is still the starting placeholder. A
// child that already reported in, or finished, is left alone.
func (s *Spawner) claim(name string, pid int) {
	rec, err := s.store.Load(name)
	if err != nil || rec.Status != state.StatusStarting || rec.HasPID() {
		return
	}
	rec.Status = state.StatusRunning
	rec.SetPID(pid)
	if err := s.store.Save(name, rec); err != nil {
		s.logger.Warn("could not record child pid", "task", name, "pid", pid, "err", err)
	}
}

// reap waits for the child when this process outlives it (the watcher does)
// and re-arms a task whose child exited without clearing its pid.
func (s *Spawner) reap(name string, cmd *exec.Cmd) {
	_ = cmd.Wait()
	pid := cmd.Process.Pid
	rec, err := s.store.Load(name)
	if err != nil || !rec.HasPID() || *rec.PID != pid {
		return
	}
	rec.Status = state.StatusIdle
	rec.PID = nil
	if err := s.store.Save(name, rec); err != nil {
		s.logger.Warn("could not re-arm task after child exit", "task", name, "err", err)
		return
	}
	s.logger.Warn("child exited without reporting", "task", name, "pid", pid)
}

func (s *Spawner) launch(def task.Definition) (*exec.Cmd, error) {
	logFile, err := logbook.New(s.cfg.LogPath(def.Name)).OpenAppend()
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	defer logFile.Close()

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	args := append(append([]string(nil), s.cfg.Args...), RunCommand, def.Name)
	cmd := exec.Command(s.cfg.Executable, args...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdin = devNull
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: start %s: %w", def.Name, err)
	}
	return cmd, nil
}
