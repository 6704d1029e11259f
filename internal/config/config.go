// Package config builds the single explicit configuration struct the rest
// of the pipeline receives. Sources are merged in the loader, later wins:
// built-in defaults, the workspace YAML file, BRIEFMILL_* environment
// overrides, then command-line flags applied by the CLI layer. No other
// package reads the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGeneratorCommand = "gemini"
	DefaultGeneratorModel   = "gemini-2.5-pro"
	DefaultMaxParallel      = 4
	DefaultJobTimeoutSec    = 120
	DefaultGitCommand       = "git"

	MaxParallelCeiling = 16

	BackendTSV    = "tsv"
	BackendSQLite = "sqlite"
)

type Config struct {
	Workspace   string      `yaml:"workspace"`
	Generator   Generator   `yaml:"generator"`
	Manifest    Manifest    `yaml:"manifest"`
	Render      Render      `yaml:"render"`
	Publish     Publish     `yaml:"publish"`
	Notify      Notify      `yaml:"notify"`
	Maintenance Maintenance `yaml:"maintenance"`

	// Resolved at startup, never persisted.
	RunDate  string `yaml:"-"`
	Operator string `yaml:"-"`
}

type Generator struct {
	Command       string    `yaml:"command"`
	Model         string    `yaml:"model"`
	ApprovalMode  string    `yaml:"approval_mode"`
	MaxParallel   int       `yaml:"max_parallel"`
	JobTimeoutSec int       `yaml:"job_timeout_sec"`
	RateLimit     RateLimit `yaml:"rate_limit"`
}

func (g Generator) JobTimeout() time.Duration {
	return time.Duration(g.JobTimeoutSec) * time.Second
}

type RateLimit struct {
	Enabled      bool    `yaml:"enabled"`
	Capacity     int     `yaml:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
}

type Manifest struct {
	Backend    string `yaml:"backend"`
	TSVPath    string `yaml:"tsv_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Render struct {
	Command string `yaml:"command"`
}

type Publish struct {
	Command       string `yaml:"command"`
	Project       string `yaml:"project"`
	CredentialEnv string `yaml:"credential_env"`

	// Credential holds the resolved value of CredentialEnv; captured once
	// by the loader so downstream code never touches the environment.
	Credential string `yaml:"-"`
}

type Notify struct {
	OnSuccess     bool   `yaml:"on_success"`
	OnFailure     bool   `yaml:"on_failure"`
	SuccessScript string `yaml:"success_script"`
	FailureScript string `yaml:"failure_script"`
}

type Maintenance struct {
	RequireCleanTree bool   `yaml:"require_clean_tree"`
	GitCommand       string `yaml:"git_command"`
}

const defaultConfigYAML = `# briefmill workspace configuration
workspace: .

generator:
  command: gemini
  model: gemini-2.5-pro
  approval_mode: yolo
  max_parallel: 4
  job_timeout_sec: 120
  rate_limit:
    enabled: true
    capacity: 4
    refill_per_sec: 0.5

manifest:
  backend: tsv
  tsv_path: config/jobs.tsv
  sqlite_path: config/jobs.db

render:
  # Aggregation/report renderer, invoked with the run date. Empty skips it.
  command: ""

publish:
  # Publisher tool, invoked with the run date. Empty skips publishing.
  # Retraction uses "<command> deployments list --project <project>" and
  # "<command> deployment delete <id> --project <project>".
  command: ""
  project: ""
  credential_env: PUBLISH_API_TOKEN

notify:
  on_success: false
  on_failure: false
  success_script: scripts/notify_success.sh
  failure_script: scripts/notify_failure.sh

maintenance:
  require_clean_tree: true
  git_command: git
`

func Default(workspace string) Config {
	cfg := Config{
		Workspace: firstNonEmpty(strings.TrimSpace(workspace), "."),
		Generator: Generator{
			Command:       DefaultGeneratorCommand,
			Model:         DefaultGeneratorModel,
			ApprovalMode:  "yolo",
			MaxParallel:   DefaultMaxParallel,
			JobTimeoutSec: DefaultJobTimeoutSec,
			RateLimit: RateLimit{
				Enabled:      true,
				Capacity:     4,
				RefillPerSec: 0.5,
			},
		},
		Manifest: Manifest{
			Backend:    BackendTSV,
			TSVPath:    filepath.Join("config", "jobs.tsv"),
			SQLitePath: filepath.Join("config", "jobs.db"),
		},
		Publish: Publish{
			CredentialEnv: "PUBLISH_API_TOKEN",
		},
		Notify: Notify{
			SuccessScript: filepath.Join("scripts", "notify_success.sh"),
			FailureScript: filepath.Join("scripts", "notify_failure.sh"),
		},
		Maintenance: Maintenance{
			RequireCleanTree: true,
			GitCommand:       DefaultGitCommand,
		},
		RunDate:  time.Now().Format("2006-01-02"),
		Operator: operatorName(),
	}
	return cfg
}

// Path returns the well-known config file location inside a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, "config", "briefmill.yaml")
}

// Load merges defaults, the workspace YAML file (if present), and
// BRIEFMILL_* environment overrides into one Config.
func Load(workspace string) (Config, error) {
	cfg := Default(workspace)

	path := Path(cfg.Workspace)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults stand.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.normalize(workspace)
	cfg.Publish.Credential = os.Getenv(cfg.Publish.CredentialEnv)
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := lookup("BRIEFMILL_WORKSPACE"); ok {
		c.Workspace = v
	}
	if v, ok := lookup("BRIEFMILL_GENERATOR_COMMAND"); ok {
		c.Generator.Command = v
	}
	if v, ok := lookup("BRIEFMILL_GENERATOR_MODEL"); ok {
		c.Generator.Model = v
	}
	if v, ok := lookup("BRIEFMILL_MAX_PARALLEL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generator.MaxParallel = n
		}
	}
	if v, ok := lookup("BRIEFMILL_JOB_TIMEOUT_SEC"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generator.JobTimeoutSec = n
		}
	}
	if v, ok := lookup("BRIEFMILL_RATE_LIMIT"); ok {
		c.Generator.RateLimit.Enabled = truthy(v)
	}
	if v, ok := lookup("BRIEFMILL_MANIFEST_BACKEND"); ok {
		c.Manifest.Backend = v
	}
	if v, ok := lookup("BRIEFMILL_MANIFEST_TSV"); ok {
		c.Manifest.TSVPath = v
	}
	if v, ok := lookup("BRIEFMILL_MANIFEST_SQLITE"); ok {
		c.Manifest.SQLitePath = v
	}
	if v, ok := lookup("BRIEFMILL_RENDER_COMMAND"); ok {
		c.Render.Command = v
	}
	if v, ok := lookup("BRIEFMILL_PUBLISH_COMMAND"); ok {
		c.Publish.Command = v
	}
	if v, ok := lookup("BRIEFMILL_PUBLISH_PROJECT"); ok {
		c.Publish.Project = v
	}
	if v, ok := lookup("BRIEFMILL_REQUIRE_CLEAN_TREE"); ok {
		c.Maintenance.RequireCleanTree = truthy(v)
	}
	if v, ok := lookup("BRIEFMILL_NOTIFY_SUCCESS"); ok {
		c.Notify.OnSuccess = truthy(v)
	}
	if v, ok := lookup("BRIEFMILL_NOTIFY_FAILURE"); ok {
		c.Notify.OnFailure = truthy(v)
	}
}

func (c *Config) normalize(workspaceOverride string) {
	if v := strings.TrimSpace(workspaceOverride); v != "" {
		c.Workspace = v
	}
	c.Workspace = firstNonEmpty(strings.TrimSpace(c.Workspace), ".")

	c.Generator.Command = firstNonEmpty(strings.TrimSpace(c.Generator.Command), DefaultGeneratorCommand)
	c.Generator.Model = firstNonEmpty(strings.TrimSpace(c.Generator.Model), DefaultGeneratorModel)
	if c.Generator.MaxParallel <= 0 {
		c.Generator.MaxParallel = DefaultMaxParallel
	}
	if c.Generator.MaxParallel > MaxParallelCeiling {
		c.Generator.MaxParallel = MaxParallelCeiling
	}
	if c.Generator.JobTimeoutSec <= 0 {
		c.Generator.JobTimeoutSec = DefaultJobTimeoutSec
	}
	c.Manifest.Backend = normalizeBackend(c.Manifest.Backend)
	c.Maintenance.GitCommand = firstNonEmpty(strings.TrimSpace(c.Maintenance.GitCommand), DefaultGitCommand)
	if c.RunDate == "" {
		c.RunDate = time.Now().Format("2006-01-02")
	}
	if c.Operator == "" {
		c.Operator = operatorName()
	}
}

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", BackendTSV:
		return BackendTSV
	case BackendSQLite:
		return BackendSQLite
	default:
		return BackendTSV
	}
}

// ManifestPath returns the active manifest location for the configured
// backend, resolved against the workspace root.
func (c Config) ManifestPath() string {
	if c.Manifest.Backend == BackendSQLite {
		return c.SQLiteManifestPath()
	}
	return c.TSVManifestPath()
}

// TSVManifestPath and SQLiteManifestPath resolve both backend locations
// regardless of which one is active; registry import reads one and
// writes the other.
func (c Config) TSVManifestPath() string {
	return c.resolve(c.Manifest.TSVPath)
}

func (c Config) SQLiteManifestPath() string {
	return c.resolve(c.Manifest.SQLitePath)
}

func (c Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Workspace, path)
}

// WriteSample writes the commented sample configuration. Refuses to
// overwrite an existing file unless force is set.
func WriteSample(workspace string, force bool) (string, error) {
	path := Path(workspace)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return path, nil
}

func operatorName() string {
	if v := strings.TrimSpace(os.Getenv("USER")); v != "" {
		return v
	}
	return "unknown"
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
