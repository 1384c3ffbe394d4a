// Package flow implements the conversational assessment engine.
//
// This file composes the outbound reply for a turn as a lazy, ordered stream
// of typed event frames. Human-readable text and control data travel as
// separate frame types, so clients never parse prose for delimiters.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clarioapp/clario/internal/models"
	"github.com/openai/openai-go"
)

// maxHistoryMessages limits conversation history sent upstream to prevent
// token overflow.
const maxHistoryMessages = 30

// composition is a fully decided reply awaiting streaming. State is already
// committed by the time one exists; streaming it has no side effects.
type composition struct {
	control  []models.Event                          // control frames emitted before any text
	messages []openai.ChatCompletionMessageParamUnion // generation request; nil means static-only
	fallback string                                   // deterministic text when generation degrades
	static   string                                   // verbatim text reply, bypasses generation
}

// stream turns a composition into the reply event channel. Frames are
// emitted strictly in order: control, text chunks left to right, done.
func (p *TurnProcessor) stream(ctx context.Context, c *composition) *TurnReply {
	events := make(chan models.Event)

	go func() {
		defer close(events)

		send := func(ev models.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, ev := range c.control {
			if !send(ev) {
				return
			}
		}

		if c.static != "" {
			if !send(models.TextEvent(c.static)) {
				return
			}
			send(models.DoneEvent())
			return
		}

		emitted := false
		err := p.client.StreamWithMessages(ctx, c.messages, func(chunk string) error {
			if !send(models.TextEvent(chunk)) {
				return context.Canceled
			}
			emitted = true
			return nil
		})
		if err != nil && !emitted {
			// Upstream degrade: the user still gets a plain best-effort reply,
			// never an error page. State already committed either way.
			slog.Warn("TurnProcessor.stream: generation failed, sending fallback text", "error", err)
			if !send(models.TextEvent(c.fallback)) {
				return
			}
		} else if err != nil {
			slog.Warn("TurnProcessor.stream: generation aborted mid-stream", "error", err)
		}
		send(models.DoneEvent())
	}()

	return &TurnReply{Events: events}
}

// maybeExtractionControl advertises the merged pending-answer map back to the
// client whenever this turn folded a caller-supplied context into it.
func maybeExtractionControl(input TurnInput, pending map[string]string) []models.Event {
	if len(input.PendingContext) == 0 || len(pending) == 0 {
		return nil
	}
	return []models.Event{models.ExtractionEvent(pending)}
}

// historyMessages converts caller-supplied history into collaborator messages.
func historyMessages(history []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range history {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	return messages
}

// questionBlock renders a question with its options and, when a pending
// candidate exists for it, the confirmation instruction.
func questionBlock(label string, q models.Question, pending map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %q\nType: %s", label, q.Text, q.Type)
	if len(q.Options) > 0 {
		fmt.Fprintf(&b, "\nOptions: %s", strings.Join(q.Options, ", "))
	}
	if candidate, ok := pending[q.ID]; ok && candidate != "" {
		fmt.Fprintf(&b, "\nA candidate answer was extracted from the user's uploaded document: %q."+
			"\nPresent this candidate and ask the user to confirm it instead of asking the bare question.", candidate)
	}
	return b.String()
}

// displayName falls back to a neutral form of address.
func displayName(input TurnInput) string {
	if input.DisplayName != "" {
		return input.DisplayName
	}
	return "there"
}

// composeAcknowledgement builds the reply for an accepted answer: thanks,
// optional milestone note, then the next question.
func (p *TurnProcessor) composeAcknowledgement(state models.AssessmentState, input TurnInput, nextQ models.Question, pending map[string]string, answer, milestone string) *composition {
	system := fmt.Sprintf(`You are a friendly business assessment bot.
Language: %s.

The user just answered the previous question.
Answer recorded: %q.
Acknowledge it: "Thanks, %s! I've recorded that ✅".
%s
Then ask the Next Question.

%s

Rules:
- One question at a time.
- Be encouraging.`, state.Language, answer, displayName(input), milestone, questionBlock("Next Question", nextQ, pending))

	fallback := fmt.Sprintf("Thanks, %s! I've recorded that ✅", displayName(input))
	if milestone != "" {
		fallback += "\n" + milestone
	}
	fallback += "\n\n" + nextQ.Text
	if candidate, ok := pending[nextQ.ID]; ok && candidate != "" {
		fallback += fmt.Sprintf("\n\nFrom your document I found a possible answer: %q. Is this correct?", candidate)
	}

	return &composition{
		control:  maybeExtractionControl(input, pending),
		messages: append(historyMessages(input.History), openai.SystemMessage(system)),
		fallback: fallback,
	}
}

// composeClarification builds the reply for a non-answer turn: address the
// user's message, then repeat the current question. No state changed.
func (p *TurnProcessor) composeClarification(state models.AssessmentState, input TurnInput, currentQ models.Question, pending map[string]string) *composition {
	system := fmt.Sprintf(`You are a friendly business assessment bot.
Language: %s.

The user asked a question or gave invalid input.
Address it, then kindly repeat the Current Question.

%s

Rules:
- One question at a time.
- Be encouraging.`, state.Language, questionBlock("Current Question", currentQ, pending))

	messages := append(historyMessages(input.History), openai.SystemMessage(system))
	messages = append(messages, openai.UserMessage(input.Message))

	return &composition{
		control:  maybeExtractionControl(input, pending),
		messages: messages,
		fallback: currentQ.Text,
	}
}

// composeQuestionPrompt re-presents the current question, used after a
// language switch so the next prompt arrives in the new language.
func (p *TurnProcessor) composeQuestionPrompt(state models.AssessmentState, input TurnInput, currentQ models.Question, pending map[string]string, note string) *composition {
	system := fmt.Sprintf(`You are a friendly business assessment bot.
Language: %s.
%s
Ask the Current Question in the configured language.

%s

Rules:
- One question at a time.
- Be encouraging.`, state.Language, note, questionBlock("Current Question", currentQ, pending))

	return &composition{
		control:  maybeExtractionControl(input, pending),
		messages: append(historyMessages(input.History), openai.SystemMessage(system)),
		fallback: currentQ.Text,
	}
}

// summaryQuestionIDs are the answers snapshotted in the completion summary.
var summaryQuestionIDs = []struct {
	id    string
	label string
}{
	{"q6", "Your product"},
	{"q7", "Stage"},
	{"q8", "Market"},
	{"q10", "Competitors"},
	{"q17", "Immediate focus"},
	{"q20", "Success vision"},
}

// composeCompletionSummary builds the completion reply emitted when the last
// answer lands: a celebratory summary instead of a next-question prompt.
func (p *TurnProcessor) composeCompletionSummary(state models.AssessmentState, input TurnInput, lastAnswer string) *composition {
	var answerLines strings.Builder
	for id, answer := range state.Answers {
		fmt.Fprintf(&answerLines, "%s: %s\n", id, answer)
	}

	system := fmt.Sprintf(`The user has completed the assessment.
Language: %s.
Generate the completion summary in exactly this shape:
"Awesome — you've completed your business assessment! ✅🎉
Here's a quick snapshot of your answers:
- Your product: [summarize from q6]
- Stage: [summarize from q7]
- Market: [summarize from q8]
- Competitors: [summarize from q10]
- Immediate focus: [summarize from q17]
- Success vision: [summarize from q20]

If you'd like to edit or add anything, just tell me..."

Answers:
%s
Last Answer: %q`, state.Language, answerLines.String(), lastAnswer)

	var fallback strings.Builder
	fallback.WriteString("Awesome — you've completed your business assessment! ✅🎉\nHere's a quick snapshot of your answers:\n")
	for _, entry := range summaryQuestionIDs {
		if answer, ok := state.Answers[entry.id]; ok {
			fmt.Fprintf(&fallback, "- %s: %s\n", entry.label, answer)
		}
	}
	fallback.WriteString("\nIf you'd like to edit or add anything, just tell me...")

	return &composition{
		control:  maybeExtractionControl(input, state.PendingAnswers),
		messages: append(historyMessages(input.History), openai.SystemMessage(system)),
		fallback: fallback.String(),
	}
}
