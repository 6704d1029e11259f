// Package gentool wraps the text generation CLI that produces brief
// artifacts. The binary is configurable; the default setup drives the
// gemini CLI in non-interactive approval mode.
package gentool

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"briefmill/internal/proc"
)

const (
	approvalModeEnvVar = "GEMINI_APPROVAL_MODE"
	versionProbeLimit  = 5 * time.Second
	limiterWaitLimit   = 60 * time.Second
	stderrKeepBytes    = 4096
)

type Client struct {
	Command      string
	Model        string
	ApprovalMode string
	Timeout      time.Duration
	Limiter      *Limiter
}

type GenerateOptions struct {
	Instruction string
	Context     string // appended to the instruction after a blank line
	Dir         string
}

type GenerateResult struct {
	Body     []byte // tool stdout, the artifact body
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Stderr   string
}

type DependencyReport struct {
	GeneratorFound bool   `json:"generator_found"`
	GeneratorPath  string `json:"generator_path,omitempty"`
	Version        string `json:"version,omitempty"`
}

// Generate runs one brief through the tool. Non-zero exits and
// timeouts come back in the result so the caller can classify them;
// the error covers invocations that never produced a process.
func (c Client) Generate(opts GenerateOptions) (GenerateResult, error) {
	instruction := strings.TrimSpace(opts.Instruction)
	if instruction == "" {
		return GenerateResult{}, fmt.Errorf("instruction is required")
	}
	if err := c.Limiter.Wait(limiterWaitLimit); err != nil {
		return GenerateResult{}, err
	}

	prompt := instruction
	if strings.TrimSpace(opts.Context) != "" {
		prompt = instruction + "\n\n" + opts.Context
	}

	argv := []string{c.command()}
	if strings.TrimSpace(c.Model) != "" {
		argv = append(argv, "--model", c.Model)
	}
	argv = append(argv, prompt)

	var env []string
	if strings.TrimSpace(c.ApprovalMode) != "" {
		env = append(env, approvalModeEnvVar+"="+c.ApprovalMode)
	}

	var stdout, stderr bytes.Buffer
	res, err := proc.Run(proc.Spec{
		Argv:    argv,
		Dir:     opts.Dir,
		Env:     env,
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: c.Timeout,
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{
		Body:     stdout.Bytes(),
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
		Stderr:   truncateOutput(stderr.String(), stderrKeepBytes),
	}, nil
}

func (c Client) command() string {
	if strings.TrimSpace(c.Command) == "" {
		return "gemini"
	}
	return c.Command
}

// DependencyStatus reports whether the generation tool is reachable.
func DependencyStatus(command string) DependencyReport {
	report := DependencyReport{}
	path, err := exec.LookPath(command)
	if err != nil {
		return report
	}
	report.GeneratorFound = true
	report.GeneratorPath = path
	if v, err := ToolVersion(command); err == nil {
		report.Version = v
	}
	return report
}

func CheckDependencies(command string) error {
	if !DependencyStatus(command).GeneratorFound {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", command)
	}
	return nil
}

// ToolVersion probes `<command> --version` with a short deadline.
func ToolVersion(command string) (string, error) {
	var stdout bytes.Buffer
	res, err := proc.Run(proc.Spec{
		Argv:    []string{command, "--version"},
		Stdout:  &stdout,
		Timeout: versionProbeLimit,
	})
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return "", fmt.Errorf("%s --version timed out", command)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s --version exited with code %d", command, res.ExitCode)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func truncateOutput(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
