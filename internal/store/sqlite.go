// Package store provides storage backends for Clario assessment state.
//
// This file implements the SQLite-backed store, the default for single-node
// deployments.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/clarioapp/clario/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists assessment state in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options. The DSN
// is the database file path; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetAssessment returns the user's assessment state, creating the default
// record on first access. INSERT OR IGNORE on the primary key guarantees
// at-most-one creation even under concurrent first access.
func (s *SQLiteStore) GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error) {
	if userID == "" {
		return models.AssessmentState{}, models.ErrEmptyUserID
	}
	def := models.NewAssessmentState(userID)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_assessments
			(user_id, answers, pending_answers, current_question_index, status, language, created_at, updated_at)
		VALUES (?, '{}', '{}', 0, ?, ?, ?, ?)`,
		userID, string(models.StatusInProgress), models.DefaultLanguage, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore GetAssessment insert failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to ensure assessment for %s: %w", userID, err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, answers, pending_answers, current_question_index, status, language, created_at, updated_at
		FROM user_assessments WHERE user_id = ?`, userID)
	state, err := scanAssessmentRow(row)
	if err != nil {
		slog.Error("SQLiteStore GetAssessment scan failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to read assessment for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore GetAssessment succeeded", "userID", userID, "index", state.CurrentQuestionIndex, "status", state.Status)
	return state, nil
}

// UpdateAssessment merges only the supplied fields into the stored record.
func (s *SQLiteStore) UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	clauses, args, err := buildSQLUpdate(update, func(int) string { return "?" })
	if err != nil {
		return err
	}
	args = append(args, time.Now().UTC())
	clauses = append(clauses, "updated_at = ?")
	args = append(args, userID)

	query := "UPDATE user_assessments SET " + strings.Join(clauses, ", ") + " WHERE user_id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore UpdateAssessment failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update assessment for %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result for %s: %w", userID, err)
	}
	if affected == 0 {
		slog.Warn("SQLiteStore UpdateAssessment no record", "userID", userID)
		return models.ErrAssessmentNotFound
	}
	slog.Debug("SQLiteStore UpdateAssessment succeeded", "userID", userID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAssessmentRow scans one user_assessments row into an AssessmentState.
func scanAssessmentRow(row rowScanner) (models.AssessmentState, error) {
	var state models.AssessmentState
	var answersJSON, pendingJSON, status string
	err := row.Scan(&state.UserID, &answersJSON, &pendingJSON,
		&state.CurrentQuestionIndex, &status, &state.Language,
		&state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return state, err
	}
	state.Status = models.AssessmentStatus(status)
	if state.Answers, err = unmarshalAnswers(answersJSON); err != nil {
		return state, err
	}
	if state.PendingAnswers, err = unmarshalAnswers(pendingJSON); err != nil {
		return state, err
	}
	return state, nil
}
