// Package flow implements the conversational assessment engine.
//
// This file holds the extraction merge engine: turning uploaded document
// text into candidate answers and merging candidate maps.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clarioapp/clario/internal/genai"
	"github.com/clarioapp/clario/internal/models"
)

// DefaultMaxDocumentChars bounds how much document text is forwarded to the
// reasoning collaborator per extraction. The cap exists to respect upstream
// context limits; truncation is deliberate and logged, never silent.
const DefaultMaxDocumentChars = 50000

// ExtractionEngine derives candidate answers from document text for the
// questions a user has not answered yet.
type ExtractionEngine struct {
	client           genai.ClientInterface
	maxDocumentChars int
}

// NewExtractionEngine creates an extraction engine. A non-positive
// maxDocumentChars selects the default cap.
func NewExtractionEngine(client genai.ClientInterface, maxDocumentChars int) *ExtractionEngine {
	if maxDocumentChars <= 0 {
		maxDocumentChars = DefaultMaxDocumentChars
	}
	return &ExtractionEngine{client: client, maxDocumentChars: maxDocumentChars}
}

// extractionQuestion is the reduced question shape sent to the collaborator.
type extractionQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Extract asks the reasoning collaborator for answers present in the
// document. The instruction is explicit: only include a key when the answer
// is stated or strongly implied; uncertain keys are omitted, never filled
// with placeholders. Unparsable collaborator output degrades to an empty
// candidate map so an upload never blocks the conversation.
func (e *ExtractionEngine) Extract(ctx context.Context, documentText string, remaining []models.Question) (map[string]string, error) {
	if len(remaining) == 0 {
		return map[string]string{}, nil
	}

	truncated := truncateRunes(documentText, e.maxDocumentChars)
	if len(truncated) < len(documentText) {
		slog.Info("ExtractionEngine.Extract: document truncated for upstream context limit",
			"originalChars", len(documentText), "cap", e.maxDocumentChars)
	}

	qs := make([]extractionQuestion, 0, len(remaining))
	for _, q := range remaining {
		qs = append(qs, extractionQuestion{ID: q.ID, Text: q.Text})
	}
	questionsJSON, err := json.Marshal(qs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal questions for extraction: %w", err)
	}

	prompt := fmt.Sprintf(`You are an expert business analyst.
Analyze the following document content and extract answers for the following questions.
Only extract answers if they are explicitly present or strongly implied in the document.
Do not guess.

Questions to answer:
%s

Return the result as a valid JSON object where keys are question IDs (e.g., "q1") and values are the extracted answer strings.
Example: { "q1": "Acme Corp", "q3": "SaaS" }
If you are unsure about a question, do not include its key.
Do not include markdown formatting like `+"```json"+`. Just raw JSON.

Document Content:
%s`, questionsJSON, truncated)

	raw, err := e.client.GeneratePrompt(ctx, prompt, "")
	if err != nil {
		slog.Error("ExtractionEngine.Extract: collaborator call failed", "error", err)
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	candidates := make(map[string]string)
	if err := json.Unmarshal([]byte(genai.StripJSONFences(raw)), &candidates); err != nil {
		// Lenient degrade: the user simply continues answering by hand.
		slog.Warn("ExtractionEngine.Extract: unparsable collaborator output, returning empty candidates", "error", err)
		return map[string]string{}, nil
	}

	// Drop keys for questions we did not ask about and empty values the
	// collaborator should not have produced.
	asked := make(map[string]bool, len(remaining))
	for _, q := range remaining {
		asked[q.ID] = true
	}
	for id, answer := range candidates {
		if !asked[id] || strings.TrimSpace(answer) == "" {
			delete(candidates, id)
		}
	}

	slog.Info("ExtractionEngine.Extract: extraction complete", "candidates", len(candidates), "questions", len(remaining))
	return candidates, nil
}

// Merge returns a new map equal to existing with every key of incoming
// overwritten (right-biased union). Pure function: inputs are never mutated,
// so it is safe to call repeatedly with partial results from successive
// uploads.
func Merge(existing, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// truncateRunes bounds s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
