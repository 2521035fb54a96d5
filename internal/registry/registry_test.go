package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/kingrea/latticed/internal/task"
)

func TestBuildPutsWatcherFirst(t *testing.T) {
	reg, err := Build(nil, []task.Definition{
		task.NewCommand("bundle", "bundle install", task.DefaultTrigger, nil),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != task.WatcherName || names[1] != "bundle" {
		t.Fatalf("unexpected order %v", names)
	}
}

func TestBuildWithNoTasksStillHasWatcher(t *testing.T) {
	reg, err := Build(nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	def, err := reg.Lookup("watcher")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if def.Kind != task.KindWatcher {
		t.Fatalf("expected watcher kind, got %s", def.Kind)
	}
}

func TestConfiguredOverridesBuiltinInPlace(t *testing.T) {
	builtins := []task.Definition{
		task.NewCommand("bundle", "bundle install", task.DefaultTrigger, nil),
		task.NewCommand("yarn", "yarn install", task.DefaultTrigger, nil),
	}
	configured := []task.Definition{
		task.NewCommand("Bundle", "bundle install --jobs 4", task.DefaultTrigger, nil),
		task.NewCommand("migrate", "rails db:migrate", task.DefaultTrigger, []string{"bundle"}),
	}
	reg, err := Build(builtins, configured)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"watcher", "bundle", "yarn", "migrate"}
	if got := reg.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	def, _ := reg.Lookup("bundle")
	if def.Command != "bundle install --jobs 4" {
		t.Fatalf("config did not win: %q", def.Command)
	}
}

func TestWatcherNameIsReserved(t *testing.T) {
	_, err := Build(nil, []task.Definition{task.NewCommand("Watcher", "echo hi", task.DefaultTrigger, nil)})
	if !errors.Is(err, ErrReservedName) {
		t.Fatalf("expected reserved name error, got %v", err)
	}
}

func TestDuplicateConfiguredNamesRejected(t *testing.T) {
	_, err := Build(nil, []task.Definition{
		task.NewCommand("bundle", "bundle install", task.DefaultTrigger, nil),
		task.NewCommand("bundle", "bundle update", task.DefaultTrigger, nil),
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUnknownDependencyRejected(t *testing.T) {
	_, err := Build(nil, []task.Definition{
		task.NewCommand("migrate", "rails db:migrate", task.DefaultTrigger, []string{"bundle"}),
	})
	if err == nil || !strings.Contains(err.Error(), "unknown task bundle") {
		t.Fatalf("expected unknown dependency error, got %v", err)
	}
}

func TestDependencyCycleRejected(t *testing.T) {
	_, err := Build(nil, []task.Definition{
		task.NewCommand("a", "true", task.DefaultTrigger, []string{"b"}),
		task.NewCommand("b", "true", task.DefaultTrigger, []string{"c"}),
		task.NewCommand("c", "true", task.DefaultTrigger, []string{"a"}),
	})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestInvalidDefinitionRejected(t *testing.T) {
	_, err := Build(nil, []task.Definition{{Name: "bundle", Kind: task.KindCommand}})
	if err == nil || !strings.Contains(err.Error(), "command is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupNormalizesAndReportsUnknown(t *testing.T) {
	reg, err := Build(nil, []task.Definition{task.NewCommand("run_specs", "rspec", task.DefaultTrigger, nil)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := reg.Lookup("RunSpecs"); err != nil {
		t.Fatalf("lookup normalized: %v", err)
	}
	_, err = reg.Lookup("nope")
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}
