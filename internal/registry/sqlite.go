package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"briefmill/internal/model"
)

const schemaVersion = 1

// SQLite stores the manifest in a database instead of a flat file. The
// jobs table keeps an explicit position column so load order matches
// the manifest order the jobs were imported in.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open registry %s: %w", path, err)
	}
	s := &SQLite{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS jobs (
		domain      TEXT PRIMARY KEY,
		category    TEXT NOT NULL,
		instruction TEXT NOT NULL,
		priority    TEXT NOT NULL,
		enabled     INTEGER NOT NULL,
		position    INTEGER NOT NULL,
		created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_category ON jobs(category);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	var v int
	err := s.db.QueryRow(`SELECT version FROM schema_version WHERE version = ?`, schemaVersion).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	}
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *SQLite) Load() ([]model.Job, error) {
	rows, err := s.db.Query(`
SELECT domain, category, instruction, priority, enabled
FROM jobs
ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var enabled int
		if err := rows.Scan(&j.Domain, &j.Category, &j.Instruction, &j.Priority, &enabled); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		j.Enabled = enabled != 0
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Save replaces the stored manifest wholesale inside one transaction.
func (s *SQLite) Save(jobs []model.Job) error {
	if dup := firstDuplicate(jobs); dup != "" {
		return fmt.Errorf("duplicate domain %q in manifest", dup)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin registry save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM jobs`); err != nil {
		return fmt.Errorf("clear registry: %w", err)
	}
	for i, j := range jobs {
		enabled := 0
		if j.Enabled {
			enabled = 1
		}
		_, err := tx.Exec(`
INSERT INTO jobs (domain, category, instruction, priority, enabled, position)
VALUES (?, ?, ?, ?, ?, ?)`,
			j.Domain, j.Category, j.Instruction, j.Priority, enabled, i)
		if err != nil {
			return fmt.Errorf("insert job %s: %w", j.Domain, err)
		}
	}
	return tx.Commit()
}

// GetByDomain returns the job whose slug matches, or nil.
func (s *SQLite) GetByDomain(domain string) (*model.Job, error) {
	jobs, err := s.Load()
	if err != nil {
		return nil, err
	}
	want := model.Job{Domain: domain}.Slug()
	for _, j := range jobs {
		if j.Slug() == want {
			out := j
			return &out, nil
		}
	}
	return nil, nil
}

func (s *SQLite) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registry jobs: %w", err)
	}
	return n, nil
}

func firstDuplicate(jobs []model.Job) string {
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		slug := j.Slug()
		if seen[slug] {
			return j.Domain
		}
		seen[slug] = true
	}
	return ""
}

// ImportTSV loads the tab-separated manifest and writes it into the
// SQLite registry, returning the number of jobs migrated.
func ImportTSV(tsvPath, dbPath string) (int, error) {
	jobs, err := NewTSV(tsvPath).Load()
	if err != nil {
		return 0, err
	}
	if problems := Validate(jobs); len(problems) > 0 {
		return 0, fmt.Errorf("manifest invalid: %s", strings.Join(problems, "; "))
	}
	s, err := OpenSQLite(dbPath)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	if err := s.Save(jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}
