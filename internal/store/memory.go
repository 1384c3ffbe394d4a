package store

import (
	"context"
	"sync"

	"github.com/clarioapp/clario/internal/models"
)

// InMemoryStore is a mutex-guarded map-backed store. It is used by tests and
// by ephemeral single-process deployments; it satisfies the same atomicity
// contract as the durable backends.
type InMemoryStore struct {
	mu     sync.Mutex
	states map[string]models.AssessmentState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.AssessmentState)}
}

// GetAssessment returns the user's state, creating the default record on
// first access. The whole operation holds the store mutex, so concurrent
// first access cannot create divergent records.
func (s *InMemoryStore) GetAssessment(ctx context.Context, userID string) (models.AssessmentState, error) {
	if userID == "" {
		return models.AssessmentState{}, models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[userID]; ok {
		return cloneState(state), nil
	}
	state := models.NewAssessmentState(userID)
	s.states[userID] = cloneState(state)
	return state, nil
}

// UpdateAssessment merges the supplied fields into the stored record.
func (s *InMemoryStore) UpdateAssessment(ctx context.Context, userID string, update models.AssessmentUpdate) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return models.ErrAssessmentNotFound
	}
	update.Apply(&state)
	s.states[userID] = cloneState(state)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// cloneState deep-copies the answer maps so callers never share map storage
// with the store.
func cloneState(state models.AssessmentState) models.AssessmentState {
	out := state
	out.Answers = cloneMap(state.Answers)
	out.PendingAnswers = cloneMap(state.PendingAnswers)
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
