// Package resultstore provides persistent storage for analysis runs and
// their results using SQLite.
package resultstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run describes one completed analysis run.
type Run struct {
	ID           string    `json:"run_id"`
	QueryPath    string    `json:"query_path"`
	DatabasePath string    `json:"database_path"`
	ModelName    string    `json:"model_name"`
	BaselineName string    `json:"baseline_name"`
	OutputDir    string    `json:"output_dir"`
	NQueries     int       `json:"n_queries"`
	NDatabase    int       `json:"n_database"`
	CreatedAt    time.Time `json:"created_at"`
}

// Classification is one query cell's stored result.
type Classification struct {
	QueryID      string  `json:"query_id"`
	Group        string  `json:"group"`
	Cohort       string  `json:"cohort"`
	Predicted    string  `json:"predicted"`
	MeanTop      float64 `json:"mean_top_distance"`
	TargetACount int     `json:"target_a_count"`
	TargetBCount int     `json:"target_b_count"`
}

// ContingencyRow is one label column of a stored contingency table.
type ContingencyRow struct {
	Label        string  `json:"label"`
	ControlCount float64 `json:"control_count"`
	DiseaseCount float64 `json:"disease_count"`
	PValue       float64 `json:"p_value"`
	ZeroFiltered bool    `json:"zero_filtered"`
}

// Store provides persistent storage for analysis runs using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (creating if needed) a SQLite-backed run store.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		query_path TEXT NOT NULL,
		database_path TEXT NOT NULL,
		model_name TEXT NOT NULL,
		baseline_name TEXT DEFAULT '',
		output_dir TEXT NOT NULL,
		n_queries INTEGER DEFAULT 0,
		n_database INTEGER DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS classifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		query_id TEXT NOT NULL,
		grp TEXT NOT NULL,
		cohort TEXT NOT NULL,
		predicted TEXT NOT NULL,
		mean_top REAL NOT NULL,
		target_a_count INTEGER NOT NULL,
		target_b_count INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_classifications_run ON classifications(run_id);
	CREATE INDEX IF NOT EXISTS idx_classifications_run_grp ON classifications(run_id, grp);

	CREATE TABLE IF NOT EXISTS contingency (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		label TEXT NOT NULL,
		control_count REAL NOT NULL,
		disease_count REAL NOT NULL,
		p_value REAL NOT NULL,
		zero_filtered INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_contingency_run ON contingency(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// CreateRun inserts a new run record.
func (s *Store) CreateRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, query_path, database_path, model_name, baseline_name, output_dir, n_queries, n_database, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.QueryPath,
		run.DatabasePath,
		run.ModelName,
		run.BaselineName,
		run.OutputDir,
		run.NQueries,
		run.NDatabase,
		run.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// GetRun retrieves a run by ID; a missing run returns nil without error.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, query_path, database_path, model_name, baseline_name, output_dir, n_queries, n_database, created_at
		FROM runs WHERE run_id = ?
	`, runID)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, query_path, database_path, model_name, baseline_name, output_dir, n_queries, n_database, created_at
		FROM runs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scan func(...any) error) (*Run, error) {
	var run Run
	var createdAtStr string
	err := scan(
		&run.ID,
		&run.QueryPath,
		&run.DatabasePath,
		&run.ModelName,
		&run.BaselineName,
		&run.OutputDir,
		&run.NQueries,
		&run.NDatabase,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	return &run, nil
}

// InsertClassifications inserts a run's per-query results in one transaction.
func (s *Store) InsertClassifications(runID string, results []Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO classifications (run_id, query_id, grp, cohort, predicted, mean_top, target_a_count, target_b_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.Exec(
			runID, r.QueryID, r.Group, r.Cohort,
			r.Predicted, r.MeanTop, r.TargetACount, r.TargetBCount,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Classifications returns a run's per-query results in insertion order.
func (s *Store) Classifications(runID string) ([]Classification, error) {
	rows, err := s.db.Query(`
		SELECT query_id, grp, cohort, predicted, mean_top, target_a_count, target_b_count
		FROM classifications
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Classification
	for rows.Next() {
		var r Classification
		err := rows.Scan(
			&r.QueryID, &r.Group, &r.Cohort,
			&r.Predicted, &r.MeanTop, &r.TargetACount, &r.TargetBCount,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InsertContingency inserts the rows of both contingency passes in one
// transaction; zeroFiltered marks the second pass.
func (s *Store) InsertContingency(runID string, rows []ContingencyRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO contingency (run_id, label, control_count, disease_count, p_value, zero_filtered)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(runID, r.Label, r.ControlCount, r.DiseaseCount, r.PValue, r.ZeroFiltered)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Contingency returns a run's contingency rows.
func (s *Store) Contingency(runID string) ([]ContingencyRow, error) {
	rows, err := s.db.Query(`
		SELECT label, control_count, disease_count, p_value, zero_filtered
		FROM contingency
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ContingencyRow
	for rows.Next() {
		var r ContingencyRow
		if err := rows.Scan(&r.Label, &r.ControlCount, &r.DiseaseCount, &r.PValue, &r.ZeroFiltered); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRun deletes a run and its stored results.
func (s *Store) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM classifications WHERE run_id = ?", runID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM contingency WHERE run_id = ?", runID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM runs WHERE run_id = ?", runID)
	return err
}
