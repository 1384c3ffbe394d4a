// Package store provides storage backends for Clario assessment state.
//
// This file implements the PostgreSQL-backed store for multi-node deployments.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/clarioapp/clario/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists assessment state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store with the given options. The
// DSN is a standard libpq connection string or URL.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetAssessment returns the user's assessment state, creating the default
// record on first access. ON CONFLICT DO NOTHING on the primary key
// guarantees at-most-one creation under concurrent first access.
func (s *PostgresStore) GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error) {
	if userID == "" {
		return models.AssessmentState{}, models.ErrEmptyUserID
	}
	def := models.NewAssessmentState(userID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_assessments
			(user_id, answers, pending_answers, current_question_index, status, language, created_at, updated_at)
		VALUES ($1, '{}'::jsonb, '{}'::jsonb, 0, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, string(models.StatusInProgress), models.DefaultLanguage, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore GetAssessment insert failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to ensure assessment for %s: %w", userID, err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, answers, pending_answers, current_question_index, status, language, created_at, updated_at
		FROM user_assessments WHERE user_id = $1`, userID)
	state, err := scanAssessmentRow(row)
	if err != nil {
		slog.Error("PostgresStore GetAssessment scan failed", "error", err, "userID", userID)
		return models.AssessmentState{}, fmt.Errorf("failed to read assessment for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore GetAssessment succeeded", "userID", userID, "index", state.CurrentQuestionIndex, "status", state.Status)
	return state, nil
}

// UpdateAssessment merges only the supplied fields into the stored record.
func (s *PostgresStore) UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	clauses, args, err := buildSQLUpdate(update, func(n int) string { return fmt.Sprintf("$%d", n) })
	if err != nil {
		return err
	}
	args = append(args, time.Now().UTC())
	clauses = append(clauses, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, userID)

	query := "UPDATE user_assessments SET " + strings.Join(clauses, ", ") +
		fmt.Sprintf(" WHERE user_id = $%d", len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore UpdateAssessment failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update assessment for %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result for %s: %w", userID, err)
	}
	if affected == 0 {
		slog.Warn("PostgresStore UpdateAssessment no record", "userID", userID)
		return models.ErrAssessmentNotFound
	}
	slog.Debug("PostgresStore UpdateAssessment succeeded", "userID", userID)
	return nil
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres connection pool")
	return s.db.Close()
}
