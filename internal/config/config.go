// Package config resolves where latticed keeps its scratch state and loads
// task definitions from the project's task file.
//
// A task file is JSON, YAML, or TOML. JSON and YAML may be a bare list of
// task records or a mapping with `watcher` settings and a `tasks` list; TOML
// must use the mapping form with [[tasks]] tables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/latticed/internal/task"
)

const (
	// DefaultScratchDir is where task state and logs live, relative to the
	// working directory.
	DefaultScratchDir = "tmp"

	defaultPollInterval = 5 * time.Second

	// GlobalConfigEnv overrides the location of the user-wide task file.
	GlobalConfigEnv = "LATTICED_GLOBAL_CONFIG"
)

// ErrScratchMissing is returned when the scratch directory does not exist.
var ErrScratchMissing = errors.New("config: cannot find scratch directory")

// DefaultConfigNames lists the project task files probed in order when no
// explicit path is given.
var DefaultConfigNames = []string{"latticed.json", "latticed.yaml", "latticed.yml", "latticed.toml"}

// TaskConfig is one task record as written in a task file.
type TaskConfig struct {
	Name         string   `yaml:"name" toml:"name"`
	Command      string   `yaml:"command" toml:"command"`
	Trigger      string   `yaml:"trigger" toml:"trigger"`
	Dependencies []string `yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
}

// WatcherConfig tunes the watcher loop.
type WatcherConfig struct {
	// Interval is a Go duration string such as "5s".
	Interval string `yaml:"interval,omitempty" toml:"interval,omitempty"`
	Trigger  string `yaml:"trigger,omitempty" toml:"trigger,omitempty"`
	// WatchHead wakes the watcher early when .git/HEAD changes.
	WatchHead bool `yaml:"watch_head,omitempty" toml:"watch_head,omitempty"`

	pollInterval time.Duration
}

// ProjectConfig models a task file.
type ProjectConfig struct {
	Version int           `yaml:"version" toml:"version"`
	Watcher WatcherConfig `yaml:"watcher" toml:"watcher"`
	Tasks   []TaskConfig  `yaml:"tasks" toml:"tasks"`
}

// Config is the resolved runtime configuration for one invocation.
type Config struct {
	// ProjectDir is the directory latticed was invoked from.
	ProjectDir string
	// ScratchDir holds <task>.json state records and <task>.log files.
	ScratchDir string
	// ConfigPath is the project task file, or "" when none exists.
	ConfigPath string
	// GlobalPath is the user-wide task file, or "" when none exists.
	GlobalPath string

	Project ProjectConfig
	Global  ProjectConfig
}

// Options selects files explicitly. Empty fields fall back to defaults.
type Options struct {
	ScratchDir string
	ConfigPath string
	GlobalPath string
}

// Load resolves paths relative to projectDir, checks the scratch directory,
// and parses the global and project task files.
func Load(projectDir string, opts Options) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		Project:    defaultProjectConfig(),
		Global:     defaultProjectConfig(),
	}
	scratch := opts.ScratchDir
	if strings.TrimSpace(scratch) == "" {
		scratch = DefaultScratchDir
	}
	cfg.ScratchDir = resolvePath(projectDir, scratch)
	if err := RequireScratchDir(cfg.ScratchDir); err != nil {
		return nil, err
	}

	projectPath, err := findProjectConfig(projectDir, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = projectPath

	globalPath, err := findGlobalConfig(opts.GlobalPath)
	if err != nil {
		return nil, err
	}
	cfg.GlobalPath = globalPath

	if cfg.GlobalPath != "" {
		global, err := loadProjectConfig(cfg.GlobalPath)
		if err != nil {
			return nil, err
		}
		cfg.Global = global
	}
	if cfg.ConfigPath != "" {
		project, err := loadProjectConfig(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Project = project
	}
	return cfg, nil
}

// Reload re-reads the same files. The watcher calls it on every tick.
func (c *Config) Reload() (*Config, error) {
	return Load(c.ProjectDir, Options{
		ScratchDir: c.ScratchDir,
		ConfigPath: c.ConfigPath,
		GlobalPath: c.GlobalPath,
	})
}

// RequireScratchDir fails unless dir exists and is a directory.
func RequireScratchDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w %s", ErrScratchMissing, dir)
		}
		return fmt.Errorf("config: stat scratch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w %s (not a directory)", ErrScratchMissing, dir)
	}
	return nil
}

// Definitions converts the project's task records to task definitions.
func (c *Config) Definitions() []task.Definition {
	return c.Project.definitions()
}

// GlobalDefinitions converts the user-wide task records to task definitions.
func (c *Config) GlobalDefinitions() []task.Definition {
	return c.Global.definitions()
}

// PollInterval returns the watcher tick interval.
func (c *Config) PollInterval() time.Duration {
	if d := c.Project.Watcher.pollInterval; d > 0 {
		return d
	}
	if d := c.Global.Watcher.pollInterval; d > 0 {
		return d
	}
	return defaultPollInterval
}

// Trigger returns the tag the watcher fires on branch changes.
func (c *Config) Trigger() string {
	if t := c.Project.Watcher.Trigger; t != "" {
		return t
	}
	if t := c.Global.Watcher.Trigger; t != "" {
		return t
	}
	return task.DefaultTrigger
}

// WatchHead reports whether .git/HEAD notifications are enabled.
func (c *Config) WatchHead() bool {
	return c.Project.Watcher.WatchHead || c.Global.Watcher.WatchHead
}

// LogPath returns the log file for a task.
func (c *Config) LogPath(name string) string {
	return filepath.Join(c.ScratchDir, name+".log")
}

func (pc ProjectConfig) definitions() []task.Definition {
	if len(pc.Tasks) == 0 {
		return nil
	}
	defs := make([]task.Definition, 0, len(pc.Tasks))
	for _, tc := range pc.Tasks {
		defs = append(defs, task.NewCommand(tc.Name, tc.Command, tc.Trigger, tc.Dependencies))
	}
	return defs
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{Version: 1}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
}

func (pc *ProjectConfig) normalize() error {
	pc.Watcher.Trigger = strings.TrimSpace(pc.Watcher.Trigger)
	pc.Watcher.Interval = strings.TrimSpace(pc.Watcher.Interval)
	if pc.Watcher.Interval != "" {
		d, err := time.ParseDuration(pc.Watcher.Interval)
		if err != nil {
			return fmt.Errorf("watcher.interval: %w", err)
		}
		pc.Watcher.pollInterval = d
	}
	for i := range pc.Tasks {
		pc.Tasks[i].normalize()
	}
	return nil
}

func (pc *ProjectConfig) validate() error {
	if pc.Version != 1 {
		return fmt.Errorf("unsupported config version %d", pc.Version)
	}
	if pc.Watcher.Interval != "" && pc.Watcher.pollInterval <= 0 {
		return fmt.Errorf("watcher.interval must be positive")
	}
	for i := range pc.Tasks {
		if err := pc.Tasks[i].validate(); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}
	return nil
}

func (tc *TaskConfig) normalize() {
	tc.Name = strings.TrimSpace(tc.Name)
	tc.Command = strings.TrimSpace(tc.Command)
	tc.Trigger = strings.TrimSpace(tc.Trigger)
	deps := tc.Dependencies[:0]
	for _, dep := range tc.Dependencies {
		if dep = strings.TrimSpace(dep); dep != "" {
			deps = append(deps, dep)
		}
	}
	tc.Dependencies = deps
}

func (tc TaskConfig) validate() error {
	if tc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if tc.Command == "" {
		return fmt.Errorf("command is required for %s", tc.Name)
	}
	if tc.Trigger == "" {
		return fmt.Errorf("trigger is required for %s", tc.Name)
	}
	return task.NewCommand(tc.Name, tc.Command, tc.Trigger, tc.Dependencies).Validate()
}

func findProjectConfig(projectDir, explicit string) (string, error) {
	if path := strings.TrimSpace(explicit); path != "" {
		resolved := resolvePath(projectDir, path)
		if _, err := os.Stat(resolved); err != nil {
			return "", fmt.Errorf("config: task file %s: %w", resolved, err)
		}
		return resolved, nil
	}
	for _, name := range DefaultConfigNames {
		candidate := filepath.Join(projectDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config: stat %s: %w", candidate, err)
		}
	}
	return "", nil
}

func findGlobalConfig(explicit string) (string, error) {
	path := strings.TrimSpace(explicit)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(GlobalConfigEnv))
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", nil
			}
			return "", fmt.Errorf("config: global task file %s: %w", path, err)
		}
		return filepath.Abs(path)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", nil
	}
	for _, name := range []string{"tasks.json", "tasks.yaml", "tasks.yml", "tasks.toml"} {
		candidate := filepath.Join(dir, "latticed", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
