package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/latticed/internal/logbook"
	"github.com/kingrea/latticed/internal/registry"
	"github.com/kingrea/latticed/internal/task"
	"github.com/kingrea/latticed/internal/tui"
)

const (
	allTasks  = "all"
	tailLines = 200
	usageLine = "usage: latticed [start|stop|status|tail|dash] [task|all]"
)

var startCmd = &cobra.Command{
	Use:   "start [task|all]",
	Short: "Arm a task so the watcher re-runs it on checkout",
	Long: `Start arms a task: it becomes idle and the watcher re-runs it the next
time the branch changes. Starting the watcher launches the watcher process.
"all" starts every task, the watcher first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop [task|all]",
	Short: "Terminate a task and forget its state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of every task",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var tailCmd = &cobra.Command{
	Use:   "tail <task>",
	Short: "Print a task's log and follow it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTail,
}

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open the live task dashboard",
	Args:  cobra.NoArgs,
	RunE:  runDash,
}

func runStart(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr(), "latticed")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		printUsage(out, e.reg)
		return nil
	}
	for _, name := range selectTasks(e.reg, args[0]) {
		def, res, err := e.ctl.Start(name)
		if err != nil {
			return err
		}
		switch res {
		case task.StartAlreadyActive:
			fmt.Fprintf(out, "%s is already running\n", def.Name)
		case task.StartSpawned:
			fmt.Fprintf(out, "%s started\n", def.Name)
		default:
			fmt.Fprintf(out, "%s armed\n", def.Name)
		}
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr(), "latticed")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		printUsage(out, e.reg)
		return nil
	}
	names := selectTasks(e.reg, args[0])
	lines := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			def, res, err := e.ctl.Stop(name)
			if err != nil {
				return err
			}
			if res == task.StopSignaled {
				lines[i] = fmt.Sprintf("%s stopped", def.Name)
			} else {
				lines[i] = fmt.Sprintf("%s was not running", def.Name)
			}
			return nil
		})
	}
	err = g.Wait()
	for _, line := range lines {
		if line != "" {
			fmt.Fprintln(out, line)
		}
	}
	return err
}

func runStatus(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd.ErrOrStderr(), "latticed")
	if err != nil {
		return err
	}
	rows, err := e.ctl.Status(commandContext(cmd))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, usageLine)
	for _, row := range rows {
		fmt.Fprintf(out, "%s: %s\n", row.Definition.Name, tui.RenderStatus(row.Status))
	}
	return nil
}

func runTail(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr(), "latticed")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		printUsage(out, e.reg)
		return nil
	}
	def, err := e.reg.Lookup(args[0])
	if err != nil {
		return err
	}

	book := logbook.New(e.cfg.LogPath(def.Name))
	lines, offset, err := book.Tail(tailLines)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return book.Follow(ctx, out, offset)
}

func runDash(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(io.Discard, "latticed")
	if err != nil {
		return err
	}
	return tui.Run(e.ctl, e.cfg.LogPath)
}

// selectTasks expands "all" into every registered task in registry order.
func selectTasks(reg *registry.Registry, arg string) []string {
	if strings.EqualFold(strings.TrimSpace(arg), allTasks) {
		return reg.Names()
	}
	return []string{arg}
}

func printUsage(w io.Writer, reg *registry.Registry) {
	fmt.Fprintln(w, usageLine)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "tasks:")
	for _, name := range reg.Names() {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

// commandContext returns cmd's context, or a background context when cobra
// was invoked without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
