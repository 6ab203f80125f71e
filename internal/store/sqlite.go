// Package store persists transform runs and their augmented cohorts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/primis-cohort/internal/domain"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements domain.RunRepository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	migrator *migrate.Migrate
	logger   *logrus.Logger
}

// NewSQLiteStore opens the database at dbPath, creating the file if needed
// and migrating the schema to the latest version.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	m, err := newMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrateUp(m, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath, migrator: m, logger: logger}, nil
}

// NewWithDB wraps an open database whose schema already exists.
func NewWithDB(db *sql.DB, logger *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteStore) SchemaVersion() (version uint, dirty bool, err error) {
	if s.migrator == nil {
		return 0, false, errors.New("store was not opened with migrations")
	}
	return s.migrator.Version()
}

// SaveRun stores a run and its cohort in one transaction. An empty run ID is
// assigned a new UUID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run, cohort *domain.Cohort) (err error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.RecordsOut = cohort.Len()
	run.Filtered = cohort.Filtered
	run.Groups = cohort.Groups

	products, err := json.Marshal(run.Products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}
	groups, err := json.Marshal(run.Groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, source, evaluator, products,
			records_in, records_out, filtered, group_names
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.CreatedAt, run.Source, run.Evaluator, string(products),
		run.RecordsIn, run.RecordsOut, run.Filtered, string(groups),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO cohort_records (run_id, seq, patient_id, wave, record) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range cohort.Records {
		data, jerr := json.Marshal(p)
		if jerr != nil {
			err = fmt.Errorf("failed to encode patient %s: %w", p.PatientID, jerr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, run.ID, i, p.PatientID, p.Wave, string(data)); err != nil {
			return fmt.Errorf("failed to insert patient %s: %w", p.PatientID, err)
		}
	}

	for g, n := range cohort.GroupCounts() {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO group_counts (run_id, group_name, selected) VALUES (?, ?, ?)",
			run.ID, g, n,
		); err != nil {
			return fmt.Errorf("failed to insert group count: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"records": run.RecordsOut,
	}).Info("Saved run")
	return nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*domain.Run, error) {
	run := &domain.Run{}
	var products, groups string
	err := sc.Scan(
		&run.ID, &run.CreatedAt, &run.Source, &run.Evaluator, &products,
		&run.RecordsIn, &run.RecordsOut, &run.Filtered, &groups,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(products), &run.Products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	if err := json.Unmarshal([]byte(groups), &run.Groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return run, nil
}

const runColumns = `id, created_at, source, evaluator, products,
	records_in, records_out, filtered, group_names`

// GetRun returns one run, or ErrRunNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// LoadCohort rebuilds the cohort of a run in its original order.
func (s *SQLiteStore) LoadCohort(ctx context.Context, id string) (*domain.Cohort, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT record FROM cohort_records WHERE run_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	cohort := &domain.Cohort{Groups: run.Groups, Filtered: run.Filtered}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		p := &domain.PatientRecord{}
		if err := json.Unmarshal([]byte(data), p); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		cohort.Records = append(cohort.Records, p)
	}
	return cohort, rows.Err()
}

// GroupCounts returns the number of selected patients per group for a run.
func (s *SQLiteStore) GroupCounts(ctx context.Context, id string) (map[string]int, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_name, selected FROM group_counts WHERE run_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var g string
		var n int
		if err := rows.Scan(&g, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[g] = n
	}
	return counts, rows.Err()
}

// RunExport is the JSON export of one run.
type RunExport struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Run        *domain.Run    `json:"run"`
	Counts     map[string]int `json:"group_counts"`
	Cohort     *domain.Cohort `json:"cohort"`
}

// ExportJSON writes a run and its cohort as indented JSON.
func (s *SQLiteStore) ExportJSON(ctx context.Context, id string, writer io.Writer) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	cohort, err := s.LoadCohort(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load cohort: %w", err)
	}
	counts, err := s.GroupCounts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load group counts: %w", err)
	}

	export := &RunExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Run:        run,
		Counts:     counts,
		Cohort:     cohort,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
