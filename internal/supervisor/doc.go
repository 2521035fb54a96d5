// Package supervisor turns a task into a detached operating system process.
//
// The parent side (Spawner) marks the task as starting, re-executes the
// latticed binary in a new session with output redirected to the task log,
// and returns immediately. The child side (Runner) records its own pid as
// its first action, runs the task body synchronously, and returns the task
// to idle when the body finishes. Once exec succeeds the child depends on
// nothing from its parent; only the state store connects them.
package supervisor
