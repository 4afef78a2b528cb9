package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/reconcile"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; operators must delete the journal database afterwards.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Run is one recorded reconciliation run.
type Run struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	SourceStudyPK int64
	DefaultStudy  string
	DryRun        bool
	Processed     int
}

// ImageRow is one image-level decision recorded for a run.
type ImageRow struct {
	Position     int
	ImageTag     string
	ImageID      string
	ImagePK      int64
	BiopsyID     string
	Decision     string
	Action       string
	ErrorMessage string
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal path must be set")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the journal database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordRun stores a finished report and its per-image decisions.
func (s *Store) RecordRun(ctx context.Context, report *reconcile.Report) error {
	if report == nil {
		return errors.New("report must not be nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dryRun := 0
	if report.DryRun {
		dryRun = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            run_id, started_at, finished_at, source_study_pk,
            default_study, dry_run, processed
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		report.SourceStudyPK,
		report.DefaultStudy,
		dryRun,
		len(report.Outcomes),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	for i, outcome := range report.Outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_images (
                run_id, position, image_tag, image_id, image_pk,
                biopsy_id, decision, action, error_message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID,
			i,
			outcome.ImageTag,
			outcome.ImageID,
			outcome.ImagePK,
			outcome.BiopsyID,
			outcome.Decision.String(),
			outcome.Action,
			outcome.Slide.ErrorMessage,
		)
		if err != nil {
			return fmt.Errorf("insert run image %s: %w", outcome.ImageTag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, source_study_pk,
                default_study, dry_run, processed
           FROM runs
          ORDER BY started_at DESC
          LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt string
			dryRun     int
		)
		if err := rows.Scan(&run.RunID, &startedAt, &finishedAt, &run.SourceStudyPK,
			&run.DefaultStudy, &dryRun, &run.Processed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", run.RunID, err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at for %s: %w", run.RunID, err)
		}
		run.DryRun = dryRun != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunImages returns the decisions recorded for one run, in processing order.
func (s *Store) RunImages(ctx context.Context, runID string) ([]ImageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, image_tag, image_id, image_pk,
                biopsy_id, decision, action, error_message
           FROM run_images
          WHERE run_id = ?
          ORDER BY position ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run images: %w", err)
	}
	defer rows.Close()

	var images []ImageRow
	for rows.Next() {
		var row ImageRow
		if err := rows.Scan(&row.Position, &row.ImageTag, &row.ImageID, &row.ImagePK,
			&row.BiopsyID, &row.Decision, &row.Action, &row.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan run image: %w", err)
		}
		images = append(images, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run images: %w", err)
	}
	return images, nil
}
