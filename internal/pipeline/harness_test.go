package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"briefmill/internal/config"
)

// installFakeBinary writes an executable script and returns its path.
// Tests point Client.Command, git, or the step commands at it.
func installFakeBinary(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

const fakeCleanGit = "#!/usr/bin/env bash\nexit 0\n"

const fakeDirtyGit = "#!/usr/bin/env bash\necho ' M config/jobs.tsv'\necho '?? notes.txt'\nexit 0\n"

// testConfig builds a workspace-rooted config with the generator and
// git pointed at fakes and background noise (rate limit, notify) off.
func testConfig(t *testing.T, workspace, generator, git string) config.Config {
	t.Helper()
	cfg := config.Default(workspace)
	cfg.Generator.Command = generator
	cfg.Generator.JobTimeoutSec = 30
	cfg.Generator.RateLimit.Enabled = false
	cfg.Maintenance.GitCommand = git
	cfg.RunDate = "2026-03-14"
	cfg.Operator = "tester"
	return cfg
}

const manifestHeader = "domain\tcategory\tinstruction\tpriority\tenabled\n"

func writeTestManifest(t *testing.T, cfg config.Config, rows string) {
	t.Helper()
	path := cfg.ManifestPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir manifest dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(manifestHeader+rows), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
