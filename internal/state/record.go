// Package state persists one status record per task inside the scratch
// directory. Records are the only channel shared between the CLI, the
// watcher, and detached task processes, so every write replaces the whole
// file and no locks are taken.
package state

// Status enumerates the persisted lifecycle phases of a task.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
)

// Armed reports whether the task has been started and not stopped since.
func (s Status) Armed() bool {
	switch s {
	case StatusIdle, StatusStarting, StatusRunning:
		return true
	default:
		return false
	}
}

// Busy reports whether a process is (or is about to be) executing the task.
func (s Status) Busy() bool {
	return s == StatusStarting || s == StatusRunning
}

// Record is the on-disk shape of a task's state.
type Record struct {
	PID        *int    `json:"pid"`
	Status     Status  `json:"status"`
	LastBranch *string `json:"last_branch"`
}

// EffectiveStatus treats an empty status as stopped.
func (r Record) EffectiveStatus() Status {
	if r.Status == "" {
		return StatusStopped
	}
	return r.Status
}

// Branch returns the last processed branch or "" when none is recorded.
func (r Record) Branch() string {
	if r.LastBranch == nil {
		return ""
	}
	return *r.LastBranch
}

// HasPID reports whether a process id is recorded.
func (r Record) HasPID() bool {
	return r.PID != nil && *r.PID > 0
}

// SetPID stores pid, or clears it when pid <= 0.
func (r *Record) SetPID(pid int) {
	if pid <= 0 {
		r.PID = nil
		return
	}
	r.PID = &pid
}

// SetBranch stores the branch name, or clears it when branch is empty.
func (r *Record) SetBranch(branch string) {
	if branch == "" {
		r.LastBranch = nil
		return
	}
	r.LastBranch = &branch
}
