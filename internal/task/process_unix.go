//go:build unix

package task

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// OSProcess implements Process with kill(2).
type OSProcess struct{}

// Alive sends signal 0. EPERM means the process exists but belongs to
// someone else.
func (OSProcess) Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Terminate sends SIGTERM.
func (OSProcess) Terminate(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrProcessGone
		}
		return fmt.Errorf("task: signal %d: %w", pid, err)
	}
	return nil
}
