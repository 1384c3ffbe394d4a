package store

import (
	"encoding/json"
	"fmt"

	"github.com/clarioapp/clario/internal/models"
)

// marshalAnswers encodes an answer map as JSON text for SQL columns. Nil maps
// encode as the empty object so columns never hold SQL NULL.
func marshalAnswers(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal answers: %w", err)
	}
	return string(data), nil
}

// unmarshalAnswers decodes a JSON answer column. Empty text yields an empty map.
func unmarshalAnswers(data string) (map[string]string, error) {
	m := make(map[string]string)
	if data == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	return m, nil
}

// buildSQLUpdate renders the SET clause fragments and arguments for a partial
// assessment update. The placeholder function adapts between SQLite ("?") and
// Postgres ("$n") parameter styles. updated_at is always included.
func buildSQLUpdate(update models.AssessmentUpdate, placeholder func(n int) string) (clauses []string, args []interface{}, err error) {
	if update.Answers != nil {
		answersJSON, merr := marshalAnswers(update.Answers)
		if merr != nil {
			return nil, nil, merr
		}
		args = append(args, answersJSON)
		clauses = append(clauses, "answers = "+placeholder(len(args)))
	}
	if update.PendingAnswers != nil {
		pendingJSON, merr := marshalAnswers(update.PendingAnswers)
		if merr != nil {
			return nil, nil, merr
		}
		args = append(args, pendingJSON)
		clauses = append(clauses, "pending_answers = "+placeholder(len(args)))
	}
	if update.CurrentQuestionIndex != nil {
		args = append(args, *update.CurrentQuestionIndex)
		clauses = append(clauses, "current_question_index = "+placeholder(len(args)))
	}
	if update.Status != nil {
		args = append(args, string(*update.Status))
		clauses = append(clauses, "status = "+placeholder(len(args)))
	}
	if update.Language != nil {
		args = append(args, *update.Language)
		clauses = append(clauses, "language = "+placeholder(len(args)))
	}
	return clauses, args, nil
}
