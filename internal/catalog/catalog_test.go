package catalog

import (
	"errors"
	"testing"

	"github.com/clarioapp/clario/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 23 {
		t.Fatalf("expected 23 questions, got %d", c.Len())
	}

	first, err := c.At(0)
	if err != nil {
		t.Fatalf("At(0) failed: %v", err)
	}
	if first.ID != "q1" {
		t.Errorf("expected first question q1, got %s", first.ID)
	}

	last, err := c.At(c.Len() - 1)
	if err != nil {
		t.Fatalf("At(%d) failed: %v", c.Len()-1, err)
	}
	if last.ID != "q23" {
		t.Errorf("expected last question q23, got %s", last.ID)
	}
}

func TestDefaultCatalogOrdering(t *testing.T) {
	c := Default()
	for i, q := range c.All() {
		idx, ok := c.IndexOf(q.ID)
		if !ok || idx != i {
			t.Errorf("question %s: IndexOf returned (%d, %v), want (%d, true)", q.ID, idx, ok, i)
		}
	}
}

func TestAtOutOfRange(t *testing.T) {
	c := Default()
	if _, err := c.At(-1); !errors.Is(err, models.ErrQuestionOutOfRange) {
		t.Errorf("At(-1): expected ErrQuestionOutOfRange, got %v", err)
	}
	if _, err := c.At(c.Len()); !errors.Is(err, models.ErrQuestionOutOfRange) {
		t.Errorf("At(len): expected ErrQuestionOutOfRange, got %v", err)
	}
}

func TestByID(t *testing.T) {
	c := Default()
	q, ok := c.ByID("q7")
	if !ok {
		t.Fatal("expected q7 to exist")
	}
	if q.Type != models.QuestionTypeSelect {
		t.Errorf("expected q7 to be a select question, got %s", q.Type)
	}
	if len(q.Options) == 0 {
		t.Error("expected q7 to carry options")
	}

	if _, ok := c.ByID("q99"); ok {
		t.Error("expected q99 to be absent")
	}
}

func TestRemaining(t *testing.T) {
	c := Default()

	if got := len(c.Remaining(0)); got != c.Len() {
		t.Errorf("Remaining(0): expected %d, got %d", c.Len(), got)
	}
	if got := len(c.Remaining(20)); got != 3 {
		t.Errorf("Remaining(20): expected 3, got %d", got)
	}
	if got := c.Remaining(c.Len()); got != nil {
		t.Errorf("Remaining(len): expected nil, got %v", got)
	}
	if got := len(c.Remaining(-5)); got != c.Len() {
		t.Errorf("Remaining(-5): expected full catalog, got %d", got)
	}
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	if _, err := New([]models.Question{{ID: ""}}); err == nil {
		t.Error("expected error for empty question id")
	}
	if _, err := New([]models.Question{{ID: "q1"}, {ID: "q1"}}); err == nil {
		t.Error("expected error for duplicate question id")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	if _, err := Load([]byte("not json")); err == nil {
		t.Error("expected error for malformed catalog JSON")
	}
}
