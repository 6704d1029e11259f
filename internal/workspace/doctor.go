package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"briefmill/internal/config"
	"briefmill/internal/gentool"
	"briefmill/internal/runstore"
)

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type DoctorReport struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

// Doctor inspects the environment the pipeline needs: tool binaries,
// writable workspace directories, the manifest, and lock health.
func Doctor(cfg config.Config) DoctorReport {
	paths := runstore.Paths{Root: cfg.Workspace}
	checks := make([]DoctorCheck, 0, 9)

	dep := gentool.DependencyStatus(cfg.Generator.Command)
	msg := cfg.Generator.Command + " not found on PATH"
	if dep.GeneratorFound {
		msg = cfg.Generator.Command + " found at " + dep.GeneratorPath
		if dep.Version != "" {
			msg += " (" + dep.Version + ")"
		}
	}
	checks = append(checks, DoctorCheck{Name: "dependency:generator", OK: dep.GeneratorFound, Message: msg})

	checks = append(checks, binaryCheck("dependency:git", cfg.Maintenance.GitCommand))

	if strings.TrimSpace(cfg.Publish.Command) == "" {
		checks = append(checks, DoctorCheck{Name: "dependency:publisher", OK: true, Message: "not configured"})
	} else {
		checks = append(checks, binaryCheck("dependency:publisher", cfg.Publish.Command))
		if strings.TrimSpace(cfg.Publish.Credential) == "" {
			checks = append(checks, DoctorCheck{Name: "credential:publisher", OK: false, Message: cfg.Publish.CredentialEnv + " not set"})
		} else {
			checks = append(checks, DoctorCheck{Name: "credential:publisher", OK: true, Message: cfg.Publish.CredentialEnv + " set"})
		}
	}

	for _, dir := range []struct{ name, path string }{
		{"directory:data", paths.DataDir()},
		{"directory:state", paths.StateDir()},
		{"directory:logs", paths.LogsDir()},
	} {
		ok, msg := ensureWritableDir(dir.path)
		checks = append(checks, DoctorCheck{Name: dir.name, OK: ok, Message: msg})
	}

	checks = append(checks, manifestCheck(cfg))
	checks = append(checks, lockCheck(paths.LockPath()))

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorReport{OK: ok, Checks: checks}
}

func binaryCheck(name, command string) DoctorCheck {
	if strings.TrimSpace(command) == "" {
		return DoctorCheck{Name: name, OK: false, Message: "no command configured"}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return DoctorCheck{Name: name, OK: false, Message: command + " not found on PATH"}
	}
	return DoctorCheck{Name: name, OK: true, Message: command + " found at " + path}
}

func manifestCheck(cfg config.Config) DoctorCheck {
	path := cfg.ManifestPath()
	if _, err := os.Stat(path); err != nil {
		return DoctorCheck{Name: "manifest:jobs", OK: false, Message: fmt.Sprintf("%s backend: %s missing", cfg.Manifest.Backend, path)}
	}
	return DoctorCheck{Name: "manifest:jobs", OK: true, Message: fmt.Sprintf("%s backend: %s", cfg.Manifest.Backend, path)}
}

func lockCheck(path string) DoctorCheck {
	owner, held, alive, err := runstore.LockStatus(path)
	switch {
	case err != nil:
		return DoctorCheck{Name: "lock:pipeline", OK: false, Message: err.Error()}
	case !held:
		return DoctorCheck{Name: "lock:pipeline", OK: true, Message: "free"}
	case alive:
		return DoctorCheck{Name: "lock:pipeline", OK: true, Message: fmt.Sprintf("held by running pid %d since %s", owner.PID, owner.AcquiredAt)}
	default:
		return DoctorCheck{Name: "lock:pipeline", OK: false, Message: fmt.Sprintf("stale lock from pid %d, next run will reclaim it", owner.PID)}
	}
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "briefmill-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
