//go:build !unix

package supervisor

import (
	"os"
	"syscall"
)

const platformSupported = false

func detachedAttr() *syscall.SysProcAttr { return nil }

func groupAttr() *syscall.SysProcAttr { return nil }

func terminateGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
