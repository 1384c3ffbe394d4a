// Package models defines the core data structures for Clario.
//
// It includes the question catalog types, per-user assessment state, turn
// classification results, and the API response envelope shared across modules.
package models

import (
	"errors"
)

// QuestionType defines the expected answer shape for a question.
type QuestionType string

const (
	// QuestionTypeText expects a free-form text answer.
	QuestionTypeText QuestionType = "text"
	// QuestionTypeSelect expects one (or more) of a fixed set of options.
	QuestionTypeSelect QuestionType = "select"
)

// Question is a single entry in the assessment catalog. Questions are
// immutable and their catalog ordering defines assessment progression.
type Question struct {
	ID               string       `json:"id"`
	Text             string       `json:"text"`
	Section          string       `json:"section"`
	Type             QuestionType `json:"type"`
	Required         bool         `json:"required"`
	Options          []string     `json:"options,omitempty"`
	AllowMultiSelect bool         `json:"allowMultiSelect,omitempty"`
}

// Validation constants for input validation.
const (
	// MaxMessageLength defines the maximum allowed length for a single user message.
	MaxMessageLength = 8192
	// MinAnswerLength is the fallback threshold: raw messages at or below this
	// length are never treated as answers when classification degrades.
	MinAnswerLength = 1
)

// Error variables for better error handling and testability.
var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrEmptyDocument      = errors.New("document is empty or could not be read")
	ErrUnauthenticated    = errors.New("missing or invalid credentials")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful API request.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for non-streamed endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
