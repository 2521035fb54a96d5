// Package vcs reads the current git branch and reports when it may have
// changed.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BranchReader returns the name of the checked-out branch.
type BranchReader interface {
	Branch(ctx context.Context) (string, error)
}

// Git shells out to git in Dir.
type Git struct {
	Dir string
}

// Branch runs `git rev-parse --abbrev-ref HEAD`.
func (g Git) Branch(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = g.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("vcs: git rev-parse failed in %s: %w", g.Dir, err)
		}
		return "", fmt.Errorf("vcs: git rev-parse failed in %s: %w: %s", g.Dir, err, msg)
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" {
		return "", fmt.Errorf("vcs: empty branch name in %s", g.Dir)
	}
	return branch, nil
}

// GitDir locates the repository metadata directory for projectDir. It
// follows the `gitdir:` pointer that worktrees and submodules use.
func GitDir(projectDir string) (string, error) {
	candidate := filepath.Join(projectDir, ".git")
	info, err := os.Stat(candidate)
	if err != nil {
		return "", fmt.Errorf("vcs: %w", err)
	}
	if info.IsDir() {
		return candidate, nil
	}
	data, err := os.ReadFile(candidate)
	if err != nil {
		return "", fmt.Errorf("vcs: %w", err)
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("vcs: %s is not a gitdir pointer", candidate)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(projectDir, target)
	}
	return filepath.Clean(target), nil
}
