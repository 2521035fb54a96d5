package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kingrea/latticed/internal/registry"
	"github.com/kingrea/latticed/internal/supervisor"
	"github.com/kingrea/latticed/internal/task"
	"github.com/kingrea/latticed/internal/vcs"
	"github.com/kingrea/latticed/internal/watcher"
)

// runCmd is the detached side of the supervisor. Its stdout and stderr are
// the task's log file.
var runCmd = &cobra.Command{
	Use:    supervisor.RunCommand + " <task>",
	Short:  "Run a task body in the foreground",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, os.Interrupt)
	defer stop()

	e, err := loadEnv(os.Stderr, "runner")
	if err != nil {
		return err
	}
	def, err := e.reg.Lookup(args[0])
	if err != nil {
		return err
	}

	bodies := map[task.Kind]supervisor.Body{
		task.KindCommand: supervisor.CommandBody{
			Dir:    e.cfg.ProjectDir,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		},
		task.KindWatcher: supervisor.BodyFunc(func(ctx context.Context, _ supervisor.Execution) error {
			return watch(ctx, e)
		}),
	}
	return supervisor.NewRunner(e.store, bodies, e.logger).Run(ctx, def)
}

// watch runs the watcher loop until ctx is canceled. The registry is rebuilt
// from the task files on every tick.
func watch(ctx context.Context, e *env) error {
	logger := e.logger.WithPrefix(task.WatcherName)
	opts := watcher.Options{
		Branch: vcs.Git{Dir: e.cfg.ProjectDir},
		Load: func() (*registry.Registry, error) {
			cfg, err := e.cfg.Reload()
			if err != nil {
				return nil, err
			}
			return buildRegistry(cfg)
		},
		Store:    e.store,
		Process:  task.OSProcess{},
		Spawner:  e.spawner,
		Trigger:  e.cfg.Trigger(),
		Interval: e.cfg.PollInterval(),
		Logger:   logger,
	}
	if e.cfg.WatchHead() {
		if notifier := headNotifier(e.cfg.ProjectDir, logger); notifier != nil {
			defer notifier.Close()
			opts.Nudge = notifier.C()
		}
	}
	return watcher.New(opts).Run(ctx)
}

func headNotifier(projectDir string, logger *log.Logger) *vcs.HeadNotifier {
	gitDir, err := vcs.GitDir(projectDir)
	if err != nil {
		logger.Warn("HEAD notifications disabled", "err", err)
		return nil
	}
	notifier, err := vcs.NewHeadNotifier(gitDir, logger)
	if err != nil {
		logger.Warn("HEAD notifications disabled", "err", err)
		return nil
	}
	return notifier
}
