// Package flow implements the conversational assessment engine: a turn-based
// state machine that walks a user through the ordered question catalog,
// classifies free-form replies via the reasoning collaborator, persists
// progress atomically, and composes streamed replies.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clarioapp/clario/internal/catalog"
	"github.com/clarioapp/clario/internal/genai"
	"github.com/clarioapp/clario/internal/models"
	"github.com/clarioapp/clario/internal/store"
)

// Milestone question ids. Answering these attaches a celebratory note to the
// outbound message; nothing is persisted.
const (
	midpointQuestionID  = "q12"
	nearFinalQuestionID = "q19"

	midpointMessage  = "You're halfway there! 🚀"
	nearFinalMessage = "You're almost done! 🔥"
)

// Config carries engine settings that are not generation settings.
type Config struct {
	// MaxDocumentChars caps document text forwarded per extraction.
	// Non-positive selects DefaultMaxDocumentChars.
	MaxDocumentChars int
}

// TurnInput is everything one conversational turn needs from the caller.
type TurnInput struct {
	UserID      string
	DisplayName string
	Message     string
	History     []models.ChatMessage
	// PendingContext is the caller-held map of extraction candidates. It is
	// merged (right-biased) over the server-held pending answers for this
	// turn; the caller resubmits it until consumed.
	PendingContext map[string]string
}

// TurnReply is the streamed outcome of one turn. Events arrive in order and
// the channel closes after the terminal done frame; the stream is not
// restartable.
type TurnReply struct {
	Events <-chan models.Event
}

// TurnProcessor is the core state machine and the sole writer of assessment
// state. Turns for the same user are serialized internally; turns for
// different users run fully in parallel.
type TurnProcessor struct {
	store      store.Store
	catalog    *catalog.Catalog
	client     genai.ClientInterface
	extraction *ExtractionEngine
	locks      *userLocks
}

// NewTurnProcessor creates a turn processor with its dependencies.
func NewTurnProcessor(st store.Store, cat *catalog.Catalog, client genai.ClientInterface, cfg Config) *TurnProcessor {
	slog.Debug("flow.NewTurnProcessor: creating processor", "catalogLen", cat.Len(), "maxDocumentChars", cfg.MaxDocumentChars)
	return &TurnProcessor{
		store:      st,
		catalog:    cat,
		client:     client,
		extraction: NewExtractionEngine(client, cfg.MaxDocumentChars),
		locks:      newUserLocks(),
	}
}

// Extraction returns the processor's extraction merge engine.
func (p *TurnProcessor) Extraction() *ExtractionEngine {
	return p.extraction
}

// ProcessTurn runs one conversational turn. State reads and writes happen
// under the per-user lock; reply streaming starts only after any state commit
// has fully landed, so cancelling the stream never rolls back a commit.
func (p *TurnProcessor) ProcessTurn(ctx context.Context, input TurnInput) (*TurnReply, error) {
	if input.UserID == "" {
		return nil, models.ErrEmptyUserID
	}
	if input.Message == "" {
		return nil, models.ErrEmptyMessage
	}
	if len(input.Message) > models.MaxMessageLength {
		return nil, models.ErrMessageTooLong
	}

	release := p.locks.Acquire(input.UserID)
	reply, err := p.processTurnLocked(ctx, input)
	release()
	if err != nil {
		return nil, err
	}
	return p.stream(ctx, reply), nil
}

// processTurnLocked performs the state transition for one turn and returns
// the reply composition. Caller holds the user's turn lock.
func (p *TurnProcessor) processTurnLocked(ctx context.Context, input TurnInput) (*composition, error) {
	state, err := p.store.GetAssessment(ctx, input.UserID)
	if err != nil {
		// Store failures are fatal to the turn: no partial write, safe retry.
		slog.Error("TurnProcessor.ProcessTurn: failed to load state", "error", err, "userID", input.UserID)
		return nil, fmt.Errorf("failed to load assessment state: %w", err)
	}

	if state.Status == models.StatusCompleted || state.CurrentQuestionIndex >= p.catalog.Len() {
		return p.processReviewTurn(ctx, state, input)
	}
	return p.processQuestionTurn(ctx, state, input)
}

// processQuestionTurn handles a turn while the questionnaire is in progress.
func (p *TurnProcessor) processQuestionTurn(ctx context.Context, state models.AssessmentState, input TurnInput) (*composition, error) {
	index := state.CurrentQuestionIndex
	currentQ, err := p.catalog.At(index)
	if err != nil {
		return nil, err
	}

	// The caller-held context is merged over the server-held pending answers
	// for this turn only; it is persisted together with an answer commit.
	pending := Merge(state.PendingAnswers, input.PendingContext)
	pendingAnswer := pending[currentQ.ID]

	result := p.classifyTurn(ctx, currentQ, pendingAnswer, input.Message)

	switch {
	case result.SwitchLanguage != "":
		// Language changes persist alone; the index never advances on a
		// language-switch turn.
		lang := result.SwitchLanguage
		if err := p.store.UpdateAssessment(ctx, input.UserID, models.AssessmentUpdate{Language: &lang}); err != nil {
			slog.Error("TurnProcessor.ProcessTurn: failed to persist language", "error", err, "userID", input.UserID)
			return nil, fmt.Errorf("failed to persist language: %w", err)
		}
		state.Language = lang
		slog.Info("TurnProcessor.ProcessTurn: language switched", "userID", input.UserID, "language", lang)
		return p.composeQuestionPrompt(state, input, currentQ, pending, ""), nil

	case result.IsAnswer:
		return p.commitAnswer(ctx, state, input, currentQ, pending, result.ExtractedText)

	default:
		// Not an answer: no state mutation; re-present the current question
		// together with whatever clarification the message implied.
		slog.Debug("TurnProcessor.ProcessTurn: message not an answer, re-presenting question",
			"userID", input.UserID, "questionID", currentQ.ID)
		return p.composeClarification(state, input, currentQ, pending), nil
	}
}

// commitAnswer records the accepted answer, advances the question pointer,
// and persists everything in a single atomic partial update.
func (p *TurnProcessor) commitAnswer(ctx context.Context, state models.AssessmentState, input TurnInput, currentQ models.Question, pending map[string]string, answer string) (*composition, error) {
	answers := Merge(state.Answers, map[string]string{currentQ.ID: answer})
	newIndex := state.CurrentQuestionIndex + 1

	status := models.StatusInProgress
	if newIndex >= p.catalog.Len() {
		status = models.StatusCompleted
	}

	// The committed answer consumes its pending candidate; remaining
	// candidates are persisted server-side for later questions.
	remainingPending := Merge(pending, nil)
	delete(remainingPending, currentQ.ID)

	update := models.AssessmentUpdate{
		Answers:              answers,
		PendingAnswers:       remainingPending,
		CurrentQuestionIndex: &newIndex,
		Status:               &status,
	}
	if err := p.store.UpdateAssessment(ctx, input.UserID, update); err != nil {
		slog.Error("TurnProcessor.ProcessTurn: failed to commit answer", "error", err, "userID", input.UserID, "questionID", currentQ.ID)
		return nil, fmt.Errorf("failed to commit answer: %w", err)
	}

	slog.Info("TurnProcessor.ProcessTurn: answer committed",
		"userID", input.UserID, "questionID", currentQ.ID, "newIndex", newIndex, "status", status)

	var milestone string
	switch currentQ.ID {
	case midpointQuestionID:
		milestone = midpointMessage
	case nearFinalQuestionID:
		milestone = nearFinalMessage
	}

	state.Answers = answers
	state.PendingAnswers = remainingPending
	state.CurrentQuestionIndex = newIndex
	state.Status = status

	if status == models.StatusCompleted {
		return p.composeCompletionSummary(state, input, answer), nil
	}

	nextQ, err := p.catalog.At(newIndex)
	if err != nil {
		return nil, err
	}
	return p.composeAcknowledgement(state, input, nextQ, remainingPending, answer, milestone), nil
}
