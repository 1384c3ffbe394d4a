// Package store provides storage backends for Clario assessment state.
//
// Every backend implements the same contract: atomic get-or-create of the
// per-user assessment record and atomic partial updates scoped by user id.
// Concurrent first access by the same user must never create two divergent
// default records.
package store

import (
	"context"

	"github.com/clarioapp/clario/internal/models"
)

// Store is the assessment state persistence contract. The turn processor is
// the sole writer; reads and writes are always scoped by user id.
type Store interface {
	// GetAssessment returns the user's assessment state, atomically creating
	// the default state on first access.
	GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error)
	// UpdateAssessment merges only the supplied fields into the stored record.
	// Returns models.ErrAssessmentNotFound if no record exists.
	UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the backend connection string: a file path for SQLite, a
	// connection URL for Postgres/Mongo/Redis.
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithDSN sets the backend connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
