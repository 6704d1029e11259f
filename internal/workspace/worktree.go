// Package workspace covers the destructive side of maintenance: tree
// cleanliness checks, removal planning, deployment retraction, and
// environment diagnosis.
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"briefmill/internal/proc"
)

// ErrDirtyWorktree blocks destructive modes unless the operator
// overrides with the dirty-tree flag.
var ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

const gitProbeTimeout = 30 * time.Second

type WorktreeStatus struct {
	Clean      bool     `json:"clean"`
	DirtyFiles []string `json:"dirty_files,omitempty"`
}

// CheckWorktree asks git for the porcelain status of dir.
func CheckWorktree(gitCmd, dir string) (WorktreeStatus, error) {
	if strings.TrimSpace(gitCmd) == "" {
		gitCmd = "git"
	}
	var stdout, stderr bytes.Buffer
	res, err := proc.Run(proc.Spec{
		Argv:    []string{gitCmd, "status", "--porcelain"},
		Dir:     dir,
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: gitProbeTimeout,
	})
	if err != nil {
		return WorktreeStatus{}, fmt.Errorf("inspect working tree: %w", err)
	}
	if res.TimedOut || res.ExitCode != 0 {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = fmt.Sprintf("git exited with code %d", res.ExitCode)
		}
		return WorktreeStatus{}, fmt.Errorf("inspect working tree: %s", detail)
	}

	var dirty []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			dirty = append(dirty, strings.TrimSpace(line))
		}
	}
	return WorktreeStatus{Clean: len(dirty) == 0, DirtyFiles: dirty}, nil
}

// EnsureCleanWorktree returns the status and fails with ErrDirtyWorktree
// when the tree is dirty and allowDirty is not set.
func EnsureCleanWorktree(gitCmd, dir string, allowDirty bool) (WorktreeStatus, error) {
	status, err := CheckWorktree(gitCmd, dir)
	if err != nil {
		return status, err
	}
	if status.Clean || allowDirty {
		return status, nil
	}
	return status, fmt.Errorf("%w: %d file(s) pending, commit or stash them or rerun with --allow-dirty", ErrDirtyWorktree, len(status.DirtyFiles))
}
