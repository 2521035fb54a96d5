// Package task defines the supervised unit of work and its state machine.
//
// A Definition is immutable and rebuilt from configuration on every
// invocation. Its mutable lifecycle lives in the state store and is driven by
// Manager, which never trusts a stored pid without probing it first.
package task

import (
	"fmt"
	"strings"
	"unicode"
)

// WatcherName is reserved for the built-in watcher task.
const WatcherName = "watcher"

// DefaultTrigger is the trigger tag fired by branch changes.
const DefaultTrigger = "git-checkout"

// Kind selects the body a supervised process executes.
type Kind string

const (
	// KindCommand runs Definition.Command through the shell.
	KindCommand Kind = "command"
	// KindWatcher runs the branch polling loop.
	KindWatcher Kind = "watcher"
)

// Definition describes a task. Names and dependencies are normalized.
type Definition struct {
	Name         string
	Command      string
	Trigger      string
	Dependencies []string
	Kind         Kind
}

// Watcher returns the built-in watcher definition.
func Watcher() Definition {
	return Definition{
		Name:    WatcherName,
		Trigger: DefaultTrigger,
		Kind:    KindWatcher,
	}
}

// NewCommand builds a command task with normalized identifiers.
func NewCommand(name, command, trigger string, dependencies []string) Definition {
	def := Definition{
		Name:    name,
		Command: command,
		Trigger: trigger,
		Kind:    KindCommand,
	}
	if len(dependencies) > 0 {
		def.Dependencies = append([]string(nil), dependencies...)
	}
	return def.Normalized()
}

// Normalized returns a copy with canonical names and trimmed fields.
func (d Definition) Normalized() Definition {
	out := d
	out.Name = NormalizeName(d.Name)
	out.Command = strings.TrimSpace(d.Command)
	out.Trigger = strings.TrimSpace(d.Trigger)
	if out.Kind == "" {
		out.Kind = KindCommand
	}
	out.Dependencies = nil
	for _, dep := range d.Dependencies {
		if n := NormalizeName(dep); n != "" {
			out.Dependencies = append(out.Dependencies, n)
		}
	}
	return out
}

// Validate reports structural problems with the definition.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("task: name is required")
	}
	if strings.ContainsAny(d.Name, `/\`) || d.Name == "." || d.Name == ".." {
		return fmt.Errorf("task %q: name must not contain path separators", d.Name)
	}
	switch d.Kind {
	case KindCommand:
		if d.Command == "" {
			return fmt.Errorf("task %s: command is required", d.Name)
		}
	case KindWatcher:
	default:
		return fmt.Errorf("task %s: unknown kind %q", d.Name, d.Kind)
	}
	for _, dep := range d.Dependencies {
		if dep == d.Name {
			return fmt.Errorf("task %s: cannot depend on itself", d.Name)
		}
	}
	return nil
}

// NormalizeName converts a task name to its lowercase hyphenated form:
// "BuildAssets" and "build_assets" both become "build-assets".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune('-')
		}
		if r == '_' {
			b.WriteRune('-')
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
