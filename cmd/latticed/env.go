package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/kingrea/latticed/internal/config"
	"github.com/kingrea/latticed/internal/control"
	"github.com/kingrea/latticed/internal/logging"
	"github.com/kingrea/latticed/internal/registry"
	"github.com/kingrea/latticed/internal/state"
	"github.com/kingrea/latticed/internal/supervisor"
	"github.com/kingrea/latticed/internal/task"
)

// env is everything one invocation needs, built from flags and the working
// directory.
type env struct {
	cfg     *config.Config
	reg     *registry.Registry
	store   *state.FileStore
	spawner *supervisor.Spawner
	ctl     *control.Controller
	logger  *log.Logger
}

func loadEnv(logOut io.Writer, prefix string) (*env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	cfg, err := config.Load(cwd, config.Options{
		ScratchDir: flagScratch,
		ConfigPath: flagConfig,
	})
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	logger := logging.New(logOut, prefix, flagVerbose)
	store := state.NewFileStore(cfg.ScratchDir)
	spawner := supervisor.NewSpawner(store, supervisor.SpawnConfig{
		Executable: executable,
		Args:       childArgs(cfg),
		Dir:        cfg.ProjectDir,
		LogPath:    cfg.LogPath,
	}, logger)

	return &env{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		spawner: spawner,
		ctl:     control.New(reg, store, task.OSProcess{}, spawner),
		logger:  logger,
	}, nil
}

func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	return registry.Build(cfg.GlobalDefinitions(), cfg.Definitions())
}

// childArgs pins the spawned process to the files this invocation resolved,
// so it does not depend on its own working directory lookups.
func childArgs(cfg *config.Config) []string {
	args := []string{"--scratch", cfg.ScratchDir}
	if cfg.ConfigPath != "" {
		args = append(args, "--config", cfg.ConfigPath)
	}
	if flagVerbose {
		args = append(args, "--verbose")
	}
	return args
}
