package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioapp/clario/internal/models"
)

func TestDecodeTurnResult(t *testing.T) {
	result, err := decodeTurnResult(`{"isAnswer": true, "extractedText": "Acme Corp"}`)
	require.NoError(t, err)
	assert.True(t, result.IsAnswer)
	assert.Equal(t, "Acme Corp", result.ExtractedText)

	result, err = decodeTurnResult("```json\n{\"switchLanguage\": \"fr\"}\n```")
	require.NoError(t, err)
	assert.False(t, result.IsAnswer)
	assert.Equal(t, "fr", result.SwitchLanguage)

	_, err = decodeTurnResult(`{"isAnswer": true}`)
	assert.Error(t, err, "answer without extracted text is malformed")

	_, err = decodeTurnResult("I think the user answered yes")
	assert.Error(t, err)
}

func TestFallbackTurnResult(t *testing.T) {
	result := FallbackTurnResult("my business is called Acme")
	assert.True(t, result.IsAnswer)
	assert.Equal(t, "my business is called Acme", result.ExtractedText)

	assert.False(t, FallbackTurnResult("y").IsAnswer)
	assert.False(t, FallbackTurnResult("").IsAnswer)

	// Rune count, not byte count: one multibyte character is still too short.
	assert.False(t, FallbackTurnResult("é").IsAnswer)
	assert.True(t, FallbackTurnResult("éé").IsAnswer)
}

func TestBuildClassificationPrompt(t *testing.T) {
	q := models.Question{
		ID:      "q7",
		Text:    "What stage is your business at?",
		Type:    models.QuestionTypeSelect,
		Options: []string{"Just an idea", "Launched"},
	}

	prompt := buildClassificationPrompt(q, "")
	assert.Contains(t, prompt, q.Text)
	assert.Contains(t, prompt, "Just an idea")
	assert.NotContains(t, prompt, "awaiting confirmation")

	prompt = buildClassificationPrompt(q, "Launched")
	assert.Contains(t, prompt, "awaiting confirmation")
	assert.Contains(t, prompt, `"Launched"`)
}
