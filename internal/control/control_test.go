package control

import (
	"context"
	"errors"
	"testing"

	"github.com/kingrea/latticed/internal/registry"
	"github.com/kingrea/latticed/internal/state"
	"github.com/kingrea/latticed/internal/task"
)

type fakeProcess struct {
	alive map[int]bool
}

func (p *fakeProcess) Alive(pid int) bool { return p.alive[pid] }

func (p *fakeProcess) Terminate(pid int) error {
	if !p.alive[pid] {
		return task.ErrProcessGone
	}
	delete(p.alive, pid)
	return nil
}

type nopSpawner struct{ spawned []string }

func (s *nopSpawner) Spawn(def task.Definition) error {
	s.spawned = append(s.spawned, def.Name)
	return nil
}

func newController(t *testing.T, proc *fakeProcess) (*Controller, *state.FileStore, *nopSpawner) {
	t.Helper()
	reg, err := registry.Build(nil, []task.Definition{
		task.NewCommand("BuildAssets", "make assets", task.DefaultTrigger, nil),
		task.NewCommand("run_specs", "make test", task.DefaultTrigger, []string{"build-assets"}),
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	store := state.NewFileStore(t.TempDir())
	spawner := &nopSpawner{}
	return New(reg, store, proc, spawner), store, spawner
}

func TestStartNormalizesName(t *testing.T) {
	c, store, spawner := newController(t, &fakeProcess{})

	def, res, err := c.Start("BuildAssets")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if def.Name != "build-assets" || res != task.StartArmed {
		t.Fatalf("start = %s %s", def.Name, res)
	}
	rec, err := store.Load("build-assets")
	if err != nil || rec.Status != state.StatusIdle {
		t.Fatalf("record = %+v, %v", rec, err)
	}
	if len(spawner.spawned) != 0 {
		t.Fatalf("command task spawned: %v", spawner.spawned)
	}

	if _, _, err := c.Start("watcher"); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	if len(spawner.spawned) != 1 || spawner.spawned[0] != task.WatcherName {
		t.Fatalf("spawned = %v", spawner.spawned)
	}
}

func TestUnknownTask(t *testing.T) {
	c, _, _ := newController(t, &fakeProcess{})
	if _, _, err := c.Start("nope"); !errors.Is(err, registry.ErrUnknownTask) {
		t.Fatalf("start err = %v", err)
	}
	if _, _, err := c.Stop("nope"); !errors.Is(err, registry.ErrUnknownTask) {
		t.Fatalf("stop err = %v", err)
	}
}

func TestStatusReportsAndHeals(t *testing.T) {
	proc := &fakeProcess{alive: map[int]bool{42: true}}
	c, store, _ := newController(t, proc)

	live := state.Record{Status: state.StatusRunning}
	live.SetPID(42)
	live.SetBranch("main")
	if err := store.Save("build-assets", live); err != nil {
		t.Fatalf("save: %v", err)
	}
	stale := state.Record{Status: state.StatusRunning}
	stale.SetPID(99)
	if err := store.Save("run-specs", stale); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Definition.Name != task.WatcherName || rows[0].Status != state.StatusStopped {
		t.Fatalf("watcher row = %+v", rows[0])
	}
	if rows[1].Status != state.StatusRunning || rows[1].PID != 42 || rows[1].Branch != "main" {
		t.Fatalf("build-assets row = %+v", rows[1])
	}
	if rows[2].Status != state.StatusStopped || rows[2].PID != 0 {
		t.Fatalf("run-specs row = %+v", rows[2])
	}
}

func TestStopSignalsAndForgets(t *testing.T) {
	proc := &fakeProcess{alive: map[int]bool{7: true}}
	c, store, _ := newController(t, proc)
	rec := state.Record{Status: state.StatusRunning}
	rec.SetPID(7)
	if err := store.Save("run-specs", rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, res, err := c.Stop("run_specs")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res != task.StopSignaled {
		t.Fatalf("result = %s", res)
	}
	if _, err := store.Load("run-specs"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("record survived stop: %v", err)
	}
}
