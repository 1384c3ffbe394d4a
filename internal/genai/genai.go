// Package genai wraps the OpenAI API for classification, extraction, and
// response generation.
//
// The engine treats this collaborator as best-effort: callers must be
// prepared for timeouts and malformed output, and recover via their own
// fallback rules. Nothing in this package retries.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default generation settings. Deterministic output (temperature 0) keeps
// classification stable across retries of the same turn.
const (
	DefaultModel       = string(openai.ChatModelGPT4oMini)
	DefaultTemperature = 0.0
	DefaultTimeout     = 60 * time.Second
)

// Config holds generation settings passed in at construction instead of
// living as package-level mutable state.
type Config struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Opts holds construction options for the client.
type Opts struct {
	APIKey string
	Config Config
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Config.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Config.Temperature = t }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Config.Timeout = d }
}

// ClientInterface defines the operations the engine needs from the reasoning
// collaborator. Implementations must honor context cancellation.
type ClientInterface interface {
	// GeneratePrompt runs a single system+user exchange and returns the text.
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateWithMessages runs a chat completion over an arbitrary message sequence.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// StreamWithMessages streams a chat completion, invoking emit for each
	// text delta in order. emit errors abort the stream.
	StreamWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, emit func(chunk string) error) error
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	config Config
}

// NewClient initializes a GenAI client. Falls back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	o := Opts{Config: Config{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	slog.Debug("genai.NewClient: creating client", "model", o.Config.Model, "temperature", o.Config.Temperature, "timeout", o.Config.Timeout)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(o.APIKey)),
		config: o.Config,
	}, nil
}

// ConfigSnapshot returns the client's generation settings.
func (c *Client) ConfigSnapshot() Config {
	return c.config
}

// GeneratePrompt generates a response for a system+user prompt pair.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if userPrompt != "" {
		messages = append(messages, openai.UserMessage(userPrompt))
	}
	return c.GenerateWithMessages(ctx, messages)
}

// GenerateWithMessages runs a chat completion over the given messages.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	slog.Debug("genai.GenerateWithMessages: calling chat completion", "model", c.config.Model, "messageCount", len(messages))
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.config.Model),
		Messages:    messages,
		Temperature: openai.Float(c.config.Temperature),
	})
	if err != nil {
		slog.Error("genai.GenerateWithMessages: chat completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		slog.Error("genai.GenerateWithMessages: no choices returned")
		return "", fmt.Errorf("no choices returned")
	}
	content := completion.Choices[0].Message.Content
	slog.Debug("genai.GenerateWithMessages: completion succeeded", "responseLength", len(content))
	return content, nil
}

// StreamWithMessages streams a chat completion, invoking emit for each text
// delta in arrival order. Chunks are emitted strictly left to right with no
// interleaving.
func (c *Client) StreamWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, emit func(chunk string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	slog.Debug("genai.StreamWithMessages: starting streamed completion", "model", c.config.Model, "messageCount", len(messages))
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.config.Model),
		Messages:    messages,
		Temperature: openai.Float(c.config.Temperature),
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			slog.Debug("genai.StreamWithMessages: emit aborted stream", "error", err)
			return err
		}
	}
	if err := stream.Err(); err != nil {
		slog.Error("genai.StreamWithMessages: stream failed", "error", err)
		return fmt.Errorf("streamed completion failed: %w", err)
	}
	slog.Debug("genai.StreamWithMessages: stream completed")
	return nil
}
