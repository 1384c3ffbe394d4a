// Package models defines turn classification and reply stream structures.
package models

// TurnResult is the decoded outcome of classifying one user message against
// the current question. It is transient and consumed immediately by the turn
// processor.
type TurnResult struct {
	IsAnswer       bool   `json:"isAnswer"`
	ExtractedText  string `json:"extractedText"`
	SwitchLanguage string `json:"switchLanguage,omitempty"`
}

// ReviewResult is the decoded outcome of classifying a post-completion
// message as a possible answer amendment.
type ReviewResult struct {
	IsUpdate        bool   `json:"isUpdate"`
	QuestionID      string `json:"questionId"`
	NewAnswer       string `json:"newAnswer"`
	ResponseMessage string `json:"responseMessage"`
}

// EventType distinguishes frames in the streamed turn reply.
type EventType string

const (
	// EventText carries a chunk of human-readable reply text.
	EventText EventType = "text"
	// EventExtraction carries newly merged extraction candidates as control data.
	EventExtraction EventType = "extraction"
	// EventDone marks the end of the reply stream.
	EventDone EventType = "done"
)

// Event is one frame of a turn reply stream. Text and control data travel as
// separate typed frames so clients never have to scan prose for delimiters.
type Event struct {
	Type    EventType         `json:"type"`
	Text    string            `json:"text,omitempty"`
	Answers map[string]string `json:"answers,omitempty"`
}

// TextEvent creates a text frame.
func TextEvent(text string) Event {
	return Event{Type: EventText, Text: text}
}

// ExtractionEvent creates an extraction control frame.
func ExtractionEvent(answers map[string]string) Event {
	return Event{Type: EventExtraction, Answers: answers}
}

// DoneEvent creates the terminal frame.
func DoneEvent() Event {
	return Event{Type: EventDone}
}

// ChatMessage is one entry of the caller-supplied conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
