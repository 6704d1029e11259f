package workspace

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"briefmill/internal/proc"
)

const publishToolTimeout = 60 * time.Second

var deploymentIDPattern = regexp.MustCompile(`\b[a-f0-9]{32}\b`)

// Publisher talks to the deployment tool for retraction. Everything
// here is best-effort: an unconfigured or failing publisher never fails
// the surrounding cleanup.
type Publisher struct {
	Command       string
	Project       string
	CredentialEnv string
	Credential    string
	Dir           string
}

func (p Publisher) Configured() bool {
	return strings.TrimSpace(p.Command) != "" &&
		strings.TrimSpace(p.Project) != "" &&
		strings.TrimSpace(p.Credential) != ""
}

// LatestDeploymentID lists deployments for the project and picks the
// newest active one. Returns "" when nothing is found.
func (p Publisher) LatestDeploymentID() (string, error) {
	if !p.Configured() {
		return "", nil
	}
	var stdout, stderr bytes.Buffer
	res, err := proc.Run(proc.Spec{
		Argv:    []string{p.Command, "deployments", "list", "--project", p.Project},
		Dir:     p.Dir,
		Env:     p.credentialEnv(),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: publishToolTimeout,
	})
	if err != nil {
		return "", err
	}
	if res.TimedOut || res.ExitCode != 0 {
		return "", fmt.Errorf("list deployments: %s", firstNonEmptyLine(stderr.String(), fmt.Sprintf("exit code %d", res.ExitCode)))
	}
	return parseDeploymentList(stdout.String()), nil
}

// Retract deletes one deployment by id.
func (p Publisher) Retract(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("deployment id is required")
	}
	var stderr bytes.Buffer
	res, err := proc.Run(proc.Spec{
		Argv:    []string{p.Command, "deployment", "delete", id, "--project", p.Project},
		Dir:     p.Dir,
		Env:     p.credentialEnv(),
		Stderr:  &stderr,
		Timeout: publishToolTimeout,
	})
	if err != nil {
		return err
	}
	if res.TimedOut || res.ExitCode != 0 {
		return fmt.Errorf("delete deployment %s: %s", id, firstNonEmptyLine(stderr.String(), fmt.Sprintf("exit code %d", res.ExitCode)))
	}
	return nil
}

func (p Publisher) credentialEnv() []string {
	if strings.TrimSpace(p.CredentialEnv) == "" || strings.TrimSpace(p.Credential) == "" {
		return nil
	}
	return []string{p.CredentialEnv + "=" + p.Credential}
}

// parseDeploymentList scans pipe-delimited table output for the first
// deployment marked active or successful, falling back to the first
// 32-hex token on any line.
func parseDeploymentList(out string) string {
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 4 && parts[0] != "" {
			state := strings.ToLower(parts[3])
			if strings.Contains(state, "active") || strings.Contains(state, "success") {
				return parts[0]
			}
		}
		if m := deploymentIDPattern.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

func firstNonEmptyLine(s, fallback string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return fallback
}
