// Package flow implements the conversational assessment engine.
//
// This file classifies user messages against the current question via the
// reasoning collaborator, with a total decoder that can never stall a turn.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/clarioapp/clario/internal/genai"
	"github.com/clarioapp/clario/internal/models"
)

// classifyTurn asks the collaborator whether the user's message answers the
// current question, requests a language switch, or needs clarification. Any
// upstream failure or unparsable output degrades through FallbackTurnResult,
// so this function always produces a usable result.
func (p *TurnProcessor) classifyTurn(ctx context.Context, question models.Question, pendingAnswer, message string) models.TurnResult {
	prompt := buildClassificationPrompt(question, pendingAnswer)

	raw, err := p.client.GeneratePrompt(ctx, prompt, message)
	if err != nil {
		slog.Warn("TurnProcessor.classifyTurn: collaborator unavailable, applying fallback", "error", err, "questionID", question.ID)
		return FallbackTurnResult(message)
	}
	result, err := decodeTurnResult(raw)
	if err != nil {
		slog.Warn("TurnProcessor.classifyTurn: unparsable collaborator output, applying fallback", "error", err, "questionID", question.ID)
		return FallbackTurnResult(message)
	}

	slog.Debug("TurnProcessor.classifyTurn: classified message",
		"questionID", question.ID, "isAnswer", result.IsAnswer, "switchLanguage", result.SwitchLanguage)
	return result
}

// buildClassificationPrompt renders the system prompt for one classification
// request. The pending-answer hint changes the rules: an affirmative reply
// confirms the candidate instead of being an answer in its own right.
func buildClassificationPrompt(question models.Question, pendingAnswer string) string {
	prompt := fmt.Sprintf(`Analyze the user's message in the context of this assessment question: %q.`, question.Text)
	if len(question.Options) > 0 {
		optionsJSON, _ := json.Marshal(question.Options)
		prompt += fmt.Sprintf("\nSelectable options: %s", optionsJSON)
	}
	if pendingAnswer != "" {
		prompt += fmt.Sprintf(`
A candidate answer extracted from an uploaded document is awaiting confirmation: %q.
If the user's reply is affirmative ("yes", "correct", "sure"), return {"isAnswer": true, "extractedText": %q}.
If the user supplies a different substantive reply, use that reply as extractedText instead.
If the user declines the candidate, return {"isAnswer": false}.`, pendingAnswer, pendingAnswer)
	}
	prompt += `
Is the message a valid answer?
If yes, return JSON: {"isAnswer": true, "extractedText": "..."}
If it is a command to switch language, return {"switchLanguage": "es/fr/etc"}
If it is a question or not an answer, return {"isAnswer": false}
Return raw JSON only, no markdown fences.`
	return prompt
}

// decodeTurnResult parses collaborator output into a TurnResult. It tolerates
// markdown fences but rejects anything that is not a JSON object.
func decodeTurnResult(raw string) (models.TurnResult, error) {
	var result models.TurnResult
	clean := genai.StripJSONFences(raw)
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return models.TurnResult{}, fmt.Errorf("failed to decode turn result: %w", err)
	}
	if result.IsAnswer && result.ExtractedText == "" {
		return models.TurnResult{}, fmt.Errorf("turn result marked as answer but carries no text")
	}
	return result, nil
}

// FallbackTurnResult implements the lenient-degrade policy: when the
// collaborator is unavailable or returns garbage, any message longer than one
// character is treated as the answer verbatim so the conversation never
// stalls on a malformed upstream response.
func FallbackTurnResult(message string) models.TurnResult {
	if utf8.RuneCountInString(message) > models.MinAnswerLength {
		return models.TurnResult{IsAnswer: true, ExtractedText: message}
	}
	return models.TurnResult{IsAnswer: false}
}
