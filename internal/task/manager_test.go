package task

import (
	"errors"
	"testing"

	"github.com/kingrea/latticed/internal/state"
)

type fakeProcess struct {
	alive      map[int]bool
	terminated []int
	termErr    error
}

func (p *fakeProcess) Alive(pid int) bool { return p.alive[pid] }

func (p *fakeProcess) Terminate(pid int) error {
	p.terminated = append(p.terminated, pid)
	if p.termErr != nil {
		return p.termErr
	}
	if !p.alive[pid] {
		return ErrProcessGone
	}
	delete(p.alive, pid)
	return nil
}

type recordingSpawner struct {
	spawned []string
	err     error
}

func (s *recordingSpawner) Spawn(def Definition) error {
	if s.err != nil {
		return s.err
	}
	s.spawned = append(s.spawned, def.Name)
	return nil
}

func newTestManager(t *testing.T, def Definition) (*Manager, *state.FileStore, *fakeProcess) {
	t.Helper()
	store := state.NewFileStore(t.TempDir())
	proc := &fakeProcess{alive: map[int]bool{}}
	return NewManager(def, store, proc), store, proc
}

func saveRecord(t *testing.T, store state.Store, name string, status state.Status, pid int, branch string) {
	t.Helper()
	rec := state.Record{Status: status}
	rec.SetPID(pid)
	rec.SetBranch(branch)
	if err := store.Save(name, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestStatusWithoutRecordIsStopped(t *testing.T) {
	m, _, _ := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	if got := m.Status(); got != state.StatusStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
}

func TestStatusSelfHealsDeadPID(t *testing.T) {
	m, store, _ := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	saveRecord(t, store, "bundle", state.StatusRunning, 31337, "main")
	if got := m.Status(); got != state.StatusStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
	rec, err := store.Load("bundle")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.HasPID() {
		t.Fatalf("expected pid cleared, got %d", *rec.PID)
	}
	if rec.Status != state.StatusStopped {
		t.Fatalf("expected persisted stopped, got %s", rec.Status)
	}
	if rec.Branch() != "main" {
		t.Fatalf("expected last_branch preserved, got %q", rec.Branch())
	}
}

func TestStatusKeepsLiveRunningRecord(t *testing.T) {
	m, store, proc := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	proc.alive[77] = true
	saveRecord(t, store, "bundle", state.StatusRunning, 77, "")
	if got := m.Status(); got != state.StatusRunning {
		t.Fatalf("expected running, got %s", got)
	}
	rec, _ := store.Load("bundle")
	if !rec.HasPID() || *rec.PID != 77 {
		t.Fatalf("expected pid untouched, got %+v", rec)
	}
}

func TestStartArmsStoppedCommandTask(t *testing.T) {
	m, store, _ := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	spawner := &recordingSpawner{}
	res, err := m.Start(spawner)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res != StartArmed {
		t.Fatalf("expected armed, got %s", res)
	}
	if len(spawner.spawned) != 0 {
		t.Fatalf("command tasks must not spawn on start, got %v", spawner.spawned)
	}
	rec, err := store.Load("bundle")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Status != state.StatusIdle || rec.HasPID() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestStartPreservesLastBranchAfterSelfHeal(t *testing.T) {
	m, store, _ := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	saveRecord(t, store, "bundle", state.StatusRunning, 555, "develop")
	if _, err := m.Start(&recordingSpawner{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec, _ := store.Load("bundle")
	if rec.Status != state.StatusIdle || rec.Branch() != "develop" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestStartIsIdempotentForArmedStatuses(t *testing.T) {
	for _, status := range []state.Status{state.StatusIdle, state.StatusStarting, state.StatusRunning} {
		m, store, proc := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
		pid := 0
		if status == state.StatusRunning {
			pid = 1234
			proc.alive[pid] = true
		}
		saveRecord(t, store, "bundle", status, pid, "main")
		res, err := m.Start(&recordingSpawner{})
		if err != nil {
			t.Fatalf("%s: start: %v", status, err)
		}
		if res != StartAlreadyActive {
			t.Fatalf("%s: expected already-active, got %s", status, res)
		}
		rec, _ := store.Load("bundle")
		if rec.Status != status {
			t.Fatalf("%s: status changed to %s", status, rec.Status)
		}
		if (pid == 0 && rec.HasPID()) || (pid != 0 && *rec.PID != pid) {
			t.Fatalf("%s: pid changed: %+v", status, rec)
		}
	}
}

func TestStartWatcherSpawnsUnlessBusy(t *testing.T) {
	m, store, proc := newTestManager(t, Watcher())
	spawner := &recordingSpawner{}
	res, err := m.Start(spawner)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res != StartSpawned || len(spawner.spawned) != 1 || spawner.spawned[0] != WatcherName {
		t.Fatalf("expected watcher spawn, got %s %v", res, spawner.spawned)
	}

	proc.alive[900] = true
	saveRecord(t, store, WatcherName, state.StatusRunning, 900, "")
	res, err = m.Start(spawner)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res != StartAlreadyActive || len(spawner.spawned) != 1 {
		t.Fatalf("expected no second spawn, got %s %v", res, spawner.spawned)
	}
}

func TestStartWatcherPropagatesSpawnError(t *testing.T) {
	m, _, _ := newTestManager(t, Watcher())
	boom := errors.New("exec failed")
	if _, err := m.Start(&recordingSpawner{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected spawn error, got %v", err)
	}
}

func TestStopDeletesRecordAndSignals(t *testing.T) {
	m, store, proc := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	proc.alive[42] = true
	saveRecord(t, store, "bundle", state.StatusRunning, 42, "main")
	res, err := m.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res != StopSignaled {
		t.Fatalf("expected signaled, got %s", res)
	}
	if len(proc.terminated) != 1 || proc.terminated[0] != 42 {
		t.Fatalf("expected SIGTERM to 42, got %v", proc.terminated)
	}
	if _, err := store.Load("bundle"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected record deleted, got %v", err)
	}
	if got := m.Status(); got != state.StatusStopped {
		t.Fatalf("expected stopped after stop, got %s", got)
	}
}

func TestStopWithDeadPIDStillDeletes(t *testing.T) {
	m, store, _ := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	saveRecord(t, store, "bundle", state.StatusRunning, 8080, "")
	res, err := m.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res != StopNotRunning {
		t.Fatalf("expected not-running, got %s", res)
	}
	if _, err := store.Load("bundle"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected record deleted, got %v", err)
	}
}

func TestStopDeletesEvenWhenSignalFails(t *testing.T) {
	m, store, proc := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	proc.alive[1] = true
	proc.termErr = errors.New("operation not permitted")
	saveRecord(t, store, "bundle", state.StatusRunning, 1, "")
	if _, err := m.Stop(); err == nil {
		t.Fatalf("expected signal error to be reported")
	}
	if _, err := store.Load("bundle"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected record deleted, got %v", err)
	}
}

func TestStopIdleTaskWithoutPID(t *testing.T) {
	m, store, proc := newTestManager(t, NewCommand("bundle", "true", DefaultTrigger, nil))
	saveRecord(t, store, "bundle", state.StatusIdle, 0, "main")
	res, err := m.Stop()
	if err != nil || res != StopNotRunning {
		t.Fatalf("unexpected stop outcome %s %v", res, err)
	}
	if len(proc.terminated) != 0 {
		t.Fatalf("no signal expected, got %v", proc.terminated)
	}
}
