// Package models defines state structures for assessment progress.
package models

import "time"

// AssessmentStatus represents the overall lifecycle of an assessment.
type AssessmentStatus string

const (
	// StatusInProgress means the questionnaire still has unanswered questions.
	StatusInProgress AssessmentStatus = "in_progress"
	// StatusCompleted means every question has been answered; further turns amend answers.
	StatusCompleted AssessmentStatus = "completed"
)

// DefaultLanguage is the language assigned to freshly created assessments.
const DefaultLanguage = "en"

// AssessmentState is the durable per-user assessment record.
//
// Invariants maintained by the turn processor:
//   - CurrentQuestionIndex never decreases.
//   - Status is StatusCompleted iff CurrentQuestionIndex >= catalog length.
//   - Answers are overwritten in review mode but never deleted.
type AssessmentState struct {
	UserID               string            `json:"user_id"`
	Answers              map[string]string `json:"answers"`
	PendingAnswers       map[string]string `json:"pending_answers,omitempty"` // extraction candidates awaiting confirmation
	CurrentQuestionIndex int               `json:"current_question_index"`
	Status               AssessmentStatus  `json:"status"`
	Language             string            `json:"language"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// NewAssessmentState returns the default state created on first access.
func NewAssessmentState(userID string) AssessmentState {
	now := time.Now().UTC()
	return AssessmentState{
		UserID:               userID,
		Answers:              make(map[string]string),
		CurrentQuestionIndex: 0,
		Status:               StatusInProgress,
		Language:             DefaultLanguage,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// AssessmentUpdate carries a partial update to an assessment record. Nil
// fields are left untouched by the store.
type AssessmentUpdate struct {
	Answers              map[string]string `json:"answers,omitempty"`
	PendingAnswers       map[string]string `json:"pending_answers,omitempty"`
	CurrentQuestionIndex *int              `json:"current_question_index,omitempty"`
	Status               *AssessmentStatus `json:"status,omitempty"`
	Language             *string           `json:"language,omitempty"`
}

// Apply merges the update into the given state in place and refreshes UpdatedAt.
func (u AssessmentUpdate) Apply(state *AssessmentState) {
	if u.Answers != nil {
		state.Answers = u.Answers
	}
	if u.PendingAnswers != nil {
		state.PendingAnswers = u.PendingAnswers
	}
	if u.CurrentQuestionIndex != nil {
		state.CurrentQuestionIndex = *u.CurrentQuestionIndex
	}
	if u.Status != nil {
		state.Status = *u.Status
	}
	if u.Language != nil {
		state.Language = *u.Language
	}
	state.UpdatedAt = time.Now().UTC()
}
