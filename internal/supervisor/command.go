package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"
)

const (
	defaultShell    = "/bin/sh"
	commandWaitStop = 10 * time.Second
)

// CommandBody runs a task's command through the shell in its own process
// group so termination reaches every process the command started.
type CommandBody struct {
	Shell  string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the command and waits for it.
func (b CommandBody) Run(ctx context.Context, run Execution) error {
	shell := b.Shell
	if shell == "" {
		shell = defaultShell
	}
	cmd := exec.CommandContext(ctx, shell, "-c", run.Task.Command)
	cmd.Dir = b.Dir
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	cmd.Env = append(os.Environ(),
		"LATTICED_TASK="+run.Task.Name,
		"LATTICED_RUN_ID="+run.RunID,
	)
	cmd.SysProcAttr = groupAttr()
	cmd.Cancel = func() error { return terminateGroup(cmd.Process) }
	cmd.WaitDelay = commandWaitStop
	return cmd.Run()
}
