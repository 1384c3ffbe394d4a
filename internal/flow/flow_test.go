package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioapp/clario/internal/catalog"
	"github.com/clarioapp/clario/internal/models"
	"github.com/clarioapp/clario/internal/store"
)

func newTestProcessor(t *testing.T, client *mockClient) (*TurnProcessor, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewTurnProcessor(st, catalog.Default(), client, Config{}), st
}

// seedState primes the store with a state shaped by mutate.
func seedState(t *testing.T, st *store.InMemoryStore, userID string, mutate func(*models.AssessmentState)) {
	t.Helper()
	_, err := st.GetAssessment(context.Background(), userID)
	require.NoError(t, err)
	if mutate == nil {
		return
	}
	state := models.NewAssessmentState(userID)
	mutate(&state)
	update := models.AssessmentUpdate{
		Answers:              state.Answers,
		PendingAnswers:       state.PendingAnswers,
		CurrentQuestionIndex: &state.CurrentQuestionIndex,
		Status:               &state.Status,
		Language:             &state.Language,
	}
	require.NoError(t, st.UpdateAssessment(context.Background(), userID, update))
}

func TestProcessTurnValidation(t *testing.T) {
	p, _ := newTestProcessor(t, &mockClient{})

	_, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "", Message: "hi"})
	assert.ErrorIs(t, err, models.ErrEmptyUserID)

	_, err = p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: ""})
	assert.ErrorIs(t, err, models.ErrEmptyMessage)

	_, err = p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: strings.Repeat("a", models.MaxMessageLength+1)})
	assert.ErrorIs(t, err, models.ErrMessageTooLong)
}

func TestProcessTurnAnswerAdvances(t *testing.T) {
	client := &mockClient{
		responses:    []string{`{"isAnswer": true, "extractedText": "Acme Corp"}`},
		streamChunks: []string{"Thanks! ", "Next question..."},
	}
	p, st := newTestProcessor(t, client)

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "We're called Acme Corp"})
	require.NoError(t, err)

	events := collectEvents(reply)
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventDone, events[len(events)-1].Type)
	assert.Equal(t, "Thanks! Next question...", eventText(events))

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentQuestionIndex)
	assert.Equal(t, "Acme Corp", state.Answers["q1"])
	assert.Equal(t, models.StatusInProgress, state.Status)
}

func TestProcessTurnNonAnswerMutatesNothing(t *testing.T) {
	client := &mockClient{
		responses:    []string{`{"isAnswer": false}`},
		streamChunks: []string{"Good question! The first thing I need is your business name."},
	}
	p, st := newTestProcessor(t, client)

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "why do you need this?"})
	require.NoError(t, err)
	collectEvents(reply)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.CurrentQuestionIndex)
	assert.Empty(t, state.Answers)
}

func TestProcessTurnLanguageSwitch(t *testing.T) {
	client := &mockClient{
		responses:    []string{`{"isAnswer": false, "switchLanguage": "es"}`},
		streamChunks: []string{"¡Claro! ¿Cómo se llama tu negocio?"},
	}
	p, st := newTestProcessor(t, client)

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "hablemos en español"})
	require.NoError(t, err)
	collectEvents(reply)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "es", state.Language)
	assert.Equal(t, 0, state.CurrentQuestionIndex, "language switch must not advance the question pointer")
	assert.Empty(t, state.Answers)
}

func TestProcessTurnClassifierFallbackTreatsMessageAsAnswer(t *testing.T) {
	client := &mockClient{
		generateErr:  errors.New("upstream down"),
		streamChunks: []string{"recorded"},
	}
	p, st := newTestProcessor(t, client)

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "Acme Corp"})
	require.NoError(t, err)
	collectEvents(reply)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", state.Answers["q1"], "lenient degrade records the raw message")
	assert.Equal(t, 1, state.CurrentQuestionIndex)
}

func TestProcessTurnClassifierFallbackShortMessage(t *testing.T) {
	client := &mockClient{
		generateErr:  errors.New("upstream down"),
		streamChunks: []string{"could you elaborate?"},
	}
	p, st := newTestProcessor(t, client)

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "y"})
	require.NoError(t, err)
	collectEvents(reply)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, state.Answers, "single-rune messages are never auto-recorded")
	assert.Equal(t, 0, state.CurrentQuestionIndex)
}

func TestProcessTurnMilestoneFallbackText(t *testing.T) {
	cat := catalog.Default()
	midIndex, ok := cat.IndexOf(midpointQuestionID)
	require.True(t, ok)

	client := &mockClient{
		responses: []string{`{"isAnswer": true, "extractedText": "word of mouth"}`},
		streamErr: errors.New("stream unavailable"),
	}
	p, st := newTestProcessor(t, client)
	seedState(t, st, "u1", func(s *models.AssessmentState) {
		s.CurrentQuestionIndex = midIndex
	})

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", DisplayName: "Maya", Message: "mostly word of mouth"})
	require.NoError(t, err)
	events := collectEvents(reply)

	text := eventText(events)
	assert.Contains(t, text, "Thanks, Maya! I've recorded that ✅")
	assert.Contains(t, text, midpointMessage)
	assert.Equal(t, models.EventDone, events[len(events)-1].Type)
}

func TestProcessTurnCompletion(t *testing.T) {
	cat := catalog.Default()
	lastIndex := cat.Len() - 1

	client := &mockClient{
		responses: []string{`{"isAnswer": true, "extractedText": "yes, monthly check-ins"}`},
		streamErr: errors.New("stream unavailable"),
	}
	p, st := newTestProcessor(t, client)
	seedState(t, st, "u1", func(s *models.AssessmentState) {
		s.CurrentQuestionIndex = lastIndex
		s.Answers = map[string]string{
			"q6":  "A meal-kit subscription",
			"q7":  "Just an idea",
			"q8":  "Busy professionals",
			"q10": "HelloFresh",
			"q17": "Validate demand",
			"q20": "100 paying subscribers",
		}
	})

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "yes, monthly check-ins please"})
	require.NoError(t, err)
	events := collectEvents(reply)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, state.Status)
	assert.Equal(t, cat.Len(), state.CurrentQuestionIndex)

	text := eventText(events)
	assert.Contains(t, text, "completed your business assessment")
	assert.Contains(t, text, "HelloFresh")
}

func TestProcessTurnPendingConfirmation(t *testing.T) {
	client := &mockClient{
		responses:    []string{`{"isAnswer": true, "extractedText": "Acme Corp"}`},
		streamChunks: []string{"Great, recorded."},
	}
	p, st := newTestProcessor(t, client)
	seedState(t, st, "u1", func(s *models.AssessmentState) {
		s.PendingAnswers = map[string]string{"q1": "Acme Corp", "q3": "SaaS"}
	})

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "yes"})
	require.NoError(t, err)
	collectEvents(reply)

	// The classification prompt must surface the candidate for confirmation.
	require.NotEmpty(t, client.generateCalls)
	assert.Contains(t, client.generateCalls[0].system, "Acme Corp")

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", state.Answers["q1"])
	_, stillPending := state.PendingAnswers["q1"]
	assert.False(t, stillPending, "committed answer consumes its pending candidate")
	assert.Equal(t, "SaaS", state.PendingAnswers["q3"], "other candidates survive the commit")
}

func TestProcessTurnCallerContextNotPersistedOnNonAnswer(t *testing.T) {
	client := &mockClient{
		responses:    []string{`{"isAnswer": false}`},
		streamChunks: []string{"Let me repeat the question."},
	}
	p, st := newTestProcessor(t, client)

	reply, err := p.ProcessTurn(context.Background(), TurnInput{
		UserID:         "u1",
		Message:        "what do you mean?",
		PendingContext: map[string]string{"q2": "Toronto"},
	})
	require.NoError(t, err)
	events := collectEvents(reply)

	// The merged pending view is echoed as a control frame.
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventExtraction, events[0].Type)
	assert.Equal(t, "Toronto", events[0].Answers["q2"])

	// But nothing was persisted: the turn mutated no state.
	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, state.PendingAnswers)
}

func TestProcessTurnStoreFailureIsFatal(t *testing.T) {
	p := NewTurnProcessor(failingStore{}, catalog.Default(), &mockClient{}, Config{})

	_, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "hello"})
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error) {
	return models.AssessmentState{}, errors.New("backend unavailable")
}

func (failingStore) UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error {
	return errors.New("backend unavailable")
}

func (failingStore) Close() error { return nil }
