//go:build !unix

package task

import (
	"fmt"
	"os"
)

// OSProcess implements Process with os.FindProcess. Liveness cannot be probed
// without signals, so every recorded pid is treated as gone.
type OSProcess struct{}

func (OSProcess) Alive(int) bool { return false }

func (OSProcess) Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return ErrProcessGone
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("task: kill %d: %w", pid, err)
	}
	return nil
}
