// Package catalog provides the immutable, ordered assessment question catalog.
//
// The catalog is loaded once at process start from an embedded definition and
// is the canonical source of question ordering: the turn processor never
// reorders or skips questions on its own.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/clarioapp/clario/internal/models"
)

//go:embed questions.json
var defaultQuestionsJSON []byte

// Catalog is a read-only ordered sequence of questions.
type Catalog struct {
	questions []models.Question
	byID      map[string]int
}

// New builds a catalog from the given question sequence. Question IDs must be
// unique and non-empty.
func New(questions []models.Question) (*Catalog, error) {
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question at index %d has empty id", i)
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		byID[q.ID] = i
	}
	// Copy so callers cannot mutate catalog ordering after construction.
	qs := make([]models.Question, len(questions))
	copy(qs, questions)
	return &Catalog{questions: qs, byID: byID}, nil
}

// Load parses a catalog from JSON.
func Load(data []byte) (*Catalog, error) {
	var questions []models.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse question catalog: %w", err)
	}
	return New(questions)
}

// Default returns the embedded shipped catalog (23 questions).
func Default() *Catalog {
	c, err := Load(defaultQuestionsJSON)
	if err != nil {
		// The embedded catalog is validated by tests; a failure here means a
		// broken build, not a runtime condition.
		panic(fmt.Sprintf("embedded question catalog is invalid: %v", err))
	}
	slog.Debug("catalog.Default: loaded embedded catalog", "questions", c.Len())
	return c
}

// Len returns the number of questions in the catalog.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// At returns the question at the given 0-based index.
func (c *Catalog) At(index int) (models.Question, error) {
	if index < 0 || index >= len(c.questions) {
		return models.Question{}, fmt.Errorf("%w: index %d, catalog length %d", models.ErrQuestionOutOfRange, index, len(c.questions))
	}
	return c.questions[index], nil
}

// ByID returns the question with the given id.
func (c *Catalog) ByID(id string) (models.Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Question{}, false
	}
	return c.questions[i], true
}

// IndexOf returns the catalog position of the given question id.
func (c *Catalog) IndexOf(id string) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

// Remaining returns the questions at or after the given index, in catalog
// order. An index at or past the end yields an empty slice.
func (c *Catalog) Remaining(index int) []models.Question {
	if index < 0 {
		index = 0
	}
	if index >= len(c.questions) {
		return nil
	}
	out := make([]models.Question, len(c.questions)-index)
	copy(out, c.questions[index:])
	return out
}

// All returns a copy of the full ordered question sequence.
func (c *Catalog) All() []models.Question {
	out := make([]models.Question, len(c.questions))
	copy(out, c.questions)
	return out
}
