package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioapp/clario/internal/catalog"
	"github.com/clarioapp/clario/internal/models"
	"github.com/clarioapp/clario/internal/store"
)

func seedCompleted(t *testing.T, st *store.InMemoryStore, userID string) {
	t.Helper()
	seedState(t, st, userID, func(s *models.AssessmentState) {
		s.CurrentQuestionIndex = catalog.Default().Len()
		s.Status = models.StatusCompleted
		s.Answers = map[string]string{"q1": "Acme Corp", "q3": "SaaS"}
	})
}

func TestReviewTurnAmendsAnswer(t *testing.T) {
	client := &mockClient{
		responses: []string{`{"isUpdate": true, "questionId": "q1", "newAnswer": "Acme Inc", "responseMessage": "Done, your business name is now Acme Inc."}`},
	}
	p, st := newTestProcessor(t, client)
	seedCompleted(t, st, "u1")

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "actually we renamed to Acme Inc"})
	require.NoError(t, err)
	events := collectEvents(reply)

	assert.Equal(t, "Done, your business name is now Acme Inc.", eventText(events))
	assert.Equal(t, models.EventDone, events[len(events)-1].Type)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", state.Answers["q1"])
	assert.Equal(t, "SaaS", state.Answers["q3"])
	assert.Equal(t, models.StatusCompleted, state.Status, "amendments never reopen the assessment")
	assert.Equal(t, catalog.Default().Len(), state.CurrentQuestionIndex)
}

func TestReviewTurnNonUpdate(t *testing.T) {
	client := &mockClient{
		responses: []string{`{"isUpdate": false, "responseMessage": "Your assessment looks great!"}`},
	}
	p, st := newTestProcessor(t, client)
	seedCompleted(t, st, "u1")

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "how did I do?"})
	require.NoError(t, err)
	events := collectEvents(reply)

	assert.Equal(t, "Your assessment looks great!", eventText(events))

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", state.Answers["q1"])
}

func TestReviewTurnUnknownQuestionIgnored(t *testing.T) {
	client := &mockClient{
		responses: []string{`{"isUpdate": true, "questionId": "q99", "newAnswer": "whatever", "responseMessage": "Noted."}`},
	}
	p, st := newTestProcessor(t, client)
	seedCompleted(t, st, "u1")

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "change q99"})
	require.NoError(t, err)
	collectEvents(reply)

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotContains(t, state.Answers, "q99")
}

func TestReviewTurnFallbackOnCollaboratorFailure(t *testing.T) {
	client := &mockClient{generateErr: errors.New("upstream down")}
	p, st := newTestProcessor(t, client)
	seedCompleted(t, st, "u1")

	reply, err := p.ProcessTurn(context.Background(), TurnInput{UserID: "u1", Message: "change my answer"})
	require.NoError(t, err)
	events := collectEvents(reply)

	assert.Contains(t, eventText(events), "Your assessment is complete")

	state, err := st.GetAssessment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", state.Answers["q1"], "fallback must not mutate answers")
}

func TestDecodeReviewResult(t *testing.T) {
	result, err := decodeReviewResult("```json\n{\"isUpdate\": false, \"responseMessage\": \"hi\"}\n```")
	require.NoError(t, err)
	assert.False(t, result.IsUpdate)
	assert.Equal(t, "hi", result.ResponseMessage)

	_, err = decodeReviewResult(`{"isUpdate": true}`)
	assert.Error(t, err, "missing response message is rejected")

	_, err = decodeReviewResult("not json")
	assert.Error(t, err)
}
