// Package llm wraps an OpenAI-compatible chat-completions endpoint for
// the two model calls the pipeline makes: query formulation and answer
// synthesis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nordeim/context7-agent-v2-sub001/internal/history"
)

// Chunk is one streamed completion delta. A terminal chunk has Done or
// Err set; no chunks follow it.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

// Completer is the model surface the orchestrator depends on. The
// production implementation is *Client; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, system string, turns []history.Turn, user string) (string, error)
	Stream(ctx context.Context, system string, turns []history.Turn, user string) (<-chan Chunk, error)
}

// Client talks to the configured OpenAI-compatible endpoint.
type Client struct {
	api   *openai.Client
	model string
}

// New builds a client. BaseURL may point at any compatible server.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

func buildMessages(system string, turns []history.Turn, user string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == history.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})
	return msgs
}

// Complete performs a one-shot completion.
func (c *Client) Complete(ctx context.Context, system string, turns []history.Turn, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: buildMessages(system, turns, user),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream performs a streaming completion, relaying deltas on the
// returned channel until a terminal chunk.
func (c *Client) Stream(ctx context.Context, system string, turns []history.Turn, user string) (<-chan Chunk, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: buildMessages(system, turns, user),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- Chunk{Done: true}
				return
			}
			if err != nil {
				out <- Chunk{Err: fmt.Errorf("stream error: %w", err)}
				return
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				out <- Chunk{Content: resp.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}
