// cmd/latticed/main.go
//
// Entry point for latticed, a per-project task supervisor. Tasks are shell
// commands that re-run whenever the checked-out git branch changes. Each
// running task is its own detached process; the only shared state is one JSON
// record per task in the scratch directory.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingrea/latticed/internal/config"
)

var (
	flagConfig  string
	flagScratch string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "latticed",
	Short: "Re-run project tasks when the git branch changes",
	Long: `latticed supervises long-running project tasks such as dependency
installs and asset builds. Start the watcher and arm the tasks you care
about; after every checkout the watcher re-runs them, waiting for each
task's dependencies to catch up with the new branch first.

Running latticed with no command prints the status of every task.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStatus,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "task file (default: first of latticed.json, latticed.yaml, latticed.yml, latticed.toml)")
	flags.StringVar(&flagScratch, "scratch", config.DefaultScratchDir, "directory holding task state and logs")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(dashCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "latticed: %v\n", err)
		os.Exit(1)
	}
}
