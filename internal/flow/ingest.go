// Package flow implements the conversational assessment engine.
//
// This file ingests uploaded document text into the server-held pending
// answer map under the same per-user lock as conversational turns.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clarioapp/clario/internal/models"
)

// IngestDocument extracts candidate answers from document text for the
// user's unanswered questions and merges them into the persisted pending
// map. A later upload wins on key collisions. The returned map is the full
// merged pending view after this upload.
func (p *TurnProcessor) IngestDocument(ctx context.Context, userID, documentText string) (map[string]string, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}

	release := p.locks.Acquire(userID)
	defer release()

	state, err := p.store.GetAssessment(ctx, userID)
	if err != nil {
		slog.Error("TurnProcessor.IngestDocument: failed to load state", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load assessment state: %w", err)
	}

	remaining := p.catalog.Remaining(state.CurrentQuestionIndex)
	candidates, err := p.extraction.Extract(ctx, documentText, remaining)
	if err != nil {
		return nil, err
	}

	merged := Merge(state.PendingAnswers, candidates)
	if err := p.store.UpdateAssessment(ctx, userID, models.AssessmentUpdate{PendingAnswers: merged}); err != nil {
		slog.Error("TurnProcessor.IngestDocument: failed to persist pending answers", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to persist pending answers: %w", err)
	}

	slog.Info("TurnProcessor.IngestDocument: document ingested",
		"userID", userID, "candidates", len(candidates), "pendingTotal", len(merged))
	return merged, nil
}
