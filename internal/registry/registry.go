// Package registry assembles the full task set for one invocation: the
// watcher first, then built-in tasks, then configured tasks. It is rebuilt
// from scratch every time so definition edits apply without restarts.
package registry

import (
	"errors"
	"fmt"

	"github.com/kingrea/latticed/internal/task"
)

var (
	// ErrUnknownTask is returned by Lookup for names that are not registered.
	ErrUnknownTask = errors.New("registry: unknown task")
	// ErrReservedName is returned when a definition tries to use the watcher's name.
	ErrReservedName = errors.New("registry: reserved task name")
)

// Registry is an ordered, name-unique set of task definitions.
type Registry struct {
	tasks map[string]task.Definition
	order []string
}

// Build merges built-in and configured definitions behind the watcher.
// Configured tasks replace built-ins of the same name in place; duplicate
// names inside the configured layer are rejected.
func Build(builtins, configured []task.Definition) (*Registry, error) {
	r := &Registry{tasks: map[string]task.Definition{}}
	r.put(task.Watcher())

	for _, def := range builtins {
		def = def.Normalized()
		if err := r.admit(def); err != nil {
			return nil, fmt.Errorf("registry: builtin: %w", err)
		}
		r.put(def)
	}

	seen := map[string]struct{}{}
	for idx, def := range configured {
		def = def.Normalized()
		if err := r.admit(def); err != nil {
			return nil, fmt.Errorf("registry: tasks[%d]: %w", idx, err)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("registry: tasks[%d]: duplicate task name %s", idx, def.Name)
		}
		seen[def.Name] = struct{}{}
		r.put(def)
	}

	if err := r.validateDependencies(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) admit(def task.Definition) error {
	if def.Name == task.WatcherName || def.Kind == task.KindWatcher {
		return fmt.Errorf("%w: %s", ErrReservedName, def.Name)
	}
	return def.Validate()
}

func (r *Registry) put(def task.Definition) {
	if _, exists := r.tasks[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.tasks[def.Name] = def
}

func (r *Registry) validateDependencies() error {
	for _, name := range r.order {
		for _, dep := range r.tasks[name].Dependencies {
			if _, ok := r.tasks[dep]; !ok {
				return fmt.Errorf("registry: task %s depends on unknown task %s", name, dep)
			}
		}
	}
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(r.order))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("registry: dependency cycle %v", append(path, name))
		}
		marks[name] = visiting
		for _, dep := range r.tasks[name].Dependencies {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		marks[name] = done
		return nil
	}
	for _, name := range r.order {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// Lookup resolves a task by name. The name is normalized first.
func (r *Registry) Lookup(name string) (task.Definition, error) {
	key := task.NormalizeName(name)
	def, ok := r.tasks[key]
	if !ok {
		return task.Definition{}, fmt.Errorf("%w %s", ErrUnknownTask, key)
	}
	return def, nil
}

// Names returns task names in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Tasks returns definitions in registry order.
func (r *Registry) Tasks() []task.Definition {
	out := make([]task.Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Len returns the number of registered tasks, watcher included.
func (r *Registry) Len() int {
	return len(r.order)
}
