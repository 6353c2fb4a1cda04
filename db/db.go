package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const OutcomeOK = "ok"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is the operational record of one pipeline invocation. It never holds
// transcript or summary text.
type Run struct {
	ID              string        `json:"id"`
	VideoID         string        `json:"video_id"`
	Outcome         string        `json:"outcome"`
	Error           string        `json:"error,omitempty"`
	Model           string        `json:"model,omitempty"`
	TranscriptChars int           `json:"transcript_chars"`
	SummaryChars    int           `json:"summary_chars"`
	Duration        time.Duration `json:"duration"`
	CreatedAt       time.Time     `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies pending migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logger := logrus.WithField("db_path", dbPath)
	logger.Info("Initializing database")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "create directory for database")
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := migrateUp(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB, logger *logrus.Entry) error {
	dbInstance, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "create migrate driver")
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "open embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", dbInstance)
	if err != nil {
		return errors.Wrap(err, "create migrate instance")
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No migrations to apply")
			return nil
		}
		return errors.Wrap(err, "apply migrations")
	}

	if version, dirty, err := m.Version(); err == nil {
		logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Database migrated")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts run, assigning an ID and timestamp when they are unset.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pipeline_runs
        (id, video_id, outcome, error, model, transcript_chars, summary_chars, duration_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		run.ID,
		run.VideoID,
		run.Outcome,
		run.Error,
		run.Model,
		run.TranscriptChars,
		run.SummaryChars,
		run.Duration.Milliseconds(),
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "insert run")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, video_id, outcome, error, model,
        transcript_chars, summary_chars, duration_ms, created_at
        FROM pipeline_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var durationMS, createdMS int64
		if err := rows.Scan(
			&run.ID,
			&run.VideoID,
			&run.Outcome,
			&run.Error,
			&run.Model,
			&run.TranscriptChars,
			&run.SummaryChars,
			&durationMS,
			&createdMS,
		); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.CreatedAt = time.UnixMilli(createdMS).UTC()
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// PruneBefore deletes runs created before cutoff and reports how many.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pipeline_runs WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "delete runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}
