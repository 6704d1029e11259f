// Package proc runs external commands under a hard deadline. Commands
// start in their own process group so a timeout can take down the whole
// tree, not just the direct child.
package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

type Spec struct {
	Argv    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration // zero means no deadline
}

type Result struct {
	ExitCode  int
	TimedOut  bool
	StartedAt time.Time
	Duration  time.Duration
}

// Run starts the command and waits for it to finish or hit the
// deadline. A non-zero exit is reported through Result, not the error;
// the error covers failures to start or wait at all.
func Run(spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, fmt.Errorf("empty command")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	setProcessGroup(cmd)

	res := Result{StartedAt: time.Now()}
	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("start %s: %w", spec.Argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		select {
		case waitErr = <-done:
		case <-timer.C:
			res.TimedOut = true
			killProcessGroup(cmd)
			waitErr = <-done
		}
	} else {
		waitErr = <-done
	}
	res.Duration = time.Since(res.StartedAt)

	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return res, fmt.Errorf("wait for %s: %w", spec.Argv[0], waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = 0
	return res, nil
}
