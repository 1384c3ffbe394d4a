package flow

import (
	"context"
	"errors"

	"github.com/openai/openai-go"

	"github.com/clarioapp/clario/internal/models"
)

// mockClient is a scriptable collaborator for engine tests. GeneratePrompt
// consumes scripted responses in order; the stream replays fixed chunks.
type mockClient struct {
	// responses are returned by GeneratePrompt in order; the last one repeats.
	responses []string
	// generateErr makes every GeneratePrompt call fail.
	generateErr error
	// streamChunks are emitted by StreamWithMessages.
	streamChunks []string
	// streamErr makes StreamWithMessages fail after emitting streamChunks.
	streamErr error

	generateCalls []generateCall
	streamCalls   int
}

type generateCall struct {
	system string
	user   string
}

func (m *mockClient) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.generateCalls = append(m.generateCalls, generateCall{system: systemPrompt, user: userPrompt})
	if m.generateErr != nil {
		return "", m.generateErr
	}
	if len(m.responses) == 0 {
		return "", errors.New("mockClient: no scripted response")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *mockClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return m.GeneratePrompt(ctx, "", "")
}

func (m *mockClient) StreamWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, emit func(chunk string) error) error {
	m.streamCalls++
	for _, chunk := range m.streamChunks {
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return m.streamErr
}

// collectEvents drains a reply stream into a slice. The channel must close.
func collectEvents(reply *TurnReply) []models.Event {
	var events []models.Event
	for ev := range reply.Events {
		events = append(events, ev)
	}
	return events
}

// eventText concatenates all text frames of a collected event slice.
func eventText(events []models.Event) string {
	var out string
	for _, ev := range events {
		if ev.Type == models.EventText {
			out += ev.Text
		}
	}
	return out
}
