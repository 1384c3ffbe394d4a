// Package flow implements the conversational assessment engine.
//
// This file handles turns that arrive after the questionnaire completed:
// the user can amend any recorded answer or just chat about the results.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/clarioapp/clario/internal/genai"
	"github.com/clarioapp/clario/internal/models"
)

// processReviewTurn handles a turn for a completed assessment. The
// collaborator decides whether the message amends a recorded answer; only the
// answers map is ever touched, status and question index stay frozen.
func (p *TurnProcessor) processReviewTurn(ctx context.Context, state models.AssessmentState, input TurnInput) (*composition, error) {
	result := p.classifyReview(ctx, state, input.Message)

	if result.IsUpdate {
		q, ok := p.catalog.ByID(result.QuestionID)
		if !ok {
			// Collaborator pointed at a question that does not exist. Treat as
			// a non-update rather than failing the turn.
			slog.Warn("TurnProcessor.processReviewTurn: update targets unknown question",
				"userID", input.UserID, "questionID", result.QuestionID)
			return p.reviewReply(state, input, result.ResponseMessage), nil
		}
		if result.NewAnswer == "" {
			slog.Warn("TurnProcessor.processReviewTurn: update carries no answer text",
				"userID", input.UserID, "questionID", result.QuestionID)
			return p.reviewReply(state, input, result.ResponseMessage), nil
		}

		answers := Merge(state.Answers, map[string]string{q.ID: result.NewAnswer})
		if err := p.store.UpdateAssessment(ctx, input.UserID, models.AssessmentUpdate{Answers: answers}); err != nil {
			slog.Error("TurnProcessor.processReviewTurn: failed to persist amendment", "error", err, "userID", input.UserID, "questionID", q.ID)
			return nil, fmt.Errorf("failed to persist amendment: %w", err)
		}
		state.Answers = answers
		slog.Info("TurnProcessor.processReviewTurn: answer amended", "userID", input.UserID, "questionID", q.ID)
	}

	return p.reviewReply(state, input, result.ResponseMessage), nil
}

// classifyReview asks the collaborator to interpret a post-completion
// message. Failures and garbage degrade to a plain acknowledgement that
// mutates nothing.
func (p *TurnProcessor) classifyReview(ctx context.Context, state models.AssessmentState, message string) models.ReviewResult {
	prompt := buildReviewPrompt(state)

	raw, err := p.client.GeneratePrompt(ctx, prompt, message)
	if err != nil {
		slog.Warn("TurnProcessor.classifyReview: collaborator unavailable, applying fallback", "error", err)
		return fallbackReviewResult(message)
	}
	result, err := decodeReviewResult(raw)
	if err != nil {
		slog.Warn("TurnProcessor.classifyReview: unparsable collaborator output, applying fallback", "error", err)
		return fallbackReviewResult(message)
	}
	return result
}

// buildReviewPrompt renders the review-mode system prompt with the full
// answer transcript so the collaborator can match edits to question ids.
func buildReviewPrompt(state models.AssessmentState) string {
	answersJSON, _ := json.Marshal(state.Answers)
	return fmt.Sprintf(`The user has completed a business assessment and is reviewing their answers.
Language: %s.
Their recorded answers, keyed by question id:
%s

Decide whether the user's message asks to change or add an answer.
If it does, return JSON:
{"isUpdate": true, "questionId": "qN", "newAnswer": "...", "responseMessage": "confirmation for the user"}
If it does not, return:
{"isUpdate": false, "responseMessage": "a helpful reply about their assessment"}
Return raw JSON only, no markdown fences.`, state.Language, answersJSON)
}

// decodeReviewResult parses collaborator output into a ReviewResult.
func decodeReviewResult(raw string) (models.ReviewResult, error) {
	var result models.ReviewResult
	clean := genai.StripJSONFences(raw)
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return models.ReviewResult{}, fmt.Errorf("failed to decode review result: %w", err)
	}
	if result.ResponseMessage == "" {
		return models.ReviewResult{}, fmt.Errorf("review result carries no response message")
	}
	return result, nil
}

// fallbackReviewResult is the deterministic no-mutation reply used when the
// collaborator cannot be consulted in review mode.
func fallbackReviewResult(message string) models.ReviewResult {
	return models.ReviewResult{
		IsUpdate: false,
		ResponseMessage: fmt.Sprintf(
			"Your assessment is complete. I couldn't process %q just now; to change an answer, tell me which question and the new answer.", message),
	}
}

// reviewReply wraps a review response message as a static composition. The
// collaborator already produced final user-facing text; a second generation
// pass would only add latency and drift.
func (p *TurnProcessor) reviewReply(state models.AssessmentState, input TurnInput, message string) *composition {
	return &composition{
		control: maybeExtractionControl(input, Merge(state.PendingAnswers, input.PendingContext)),
		static:  message,
	}
}
