package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"go-triage/internal/config"
)

var (
	ErrEmptyResponse  = errors.New("llm returned no choices")
	ErrEmptyEmbedding = errors.New("llm returned an empty embedding")
)

// Client talks to an OpenAI-compatible endpoint. Every call is routed
// through the queue manager, which also applies the circuit breaker.
type Client struct {
	api            *openai.Client
	manager        *Manager
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
}

// NewClient builds a client from the llm config section. The manager may be
// shared between clients; pass nil to get a private one.
func NewClient(c config.LLMConfig, manager *Manager) *Client {
	oc := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(c.BaseURL, "/")
	}
	if manager == nil {
		manager = NewManager(QueueConfigFrom(c), BreakerFrom(c))
	}
	return &Client{
		api:            openai.NewClientWithConfig(oc),
		manager:        manager,
		model:          c.Model,
		embeddingModel: c.EmbeddingModel,
		temperature:    c.Temperature,
		maxTokens:      c.MaxTokens,
	}
}

// Manager exposes the queue for metrics and shutdown.
func (c *Client) Manager() *Manager { return c.manager }

// Model returns the configured chat model.
func (c *Client) Model() string { return c.model }

// Chat sends the conversation with the given tools offered as functions and
// returns either a text answer or the first tool call the model asked for.
func (c *Client) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	var resp openai.ChatCompletionResponse
	err := c.manager.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	reply := &Reply{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		if len(choice.Message.ToolCalls) > 1 {
			log.Printf("[LLM] Model requested %d tool calls, using the first (%s)", len(choice.Message.ToolCalls), tc.Function.Name)
		}
		args, err := parseArguments(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %s: %w", tc.Function.Name, err)
		}
		reply.ToolCall = &ToolCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			Arguments:    args,
			RawArguments: tc.Function.Arguments,
		}
	}
	return reply, nil
}

// Complete sends prompt as a single user message with no tools.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// Embed returns the embedding of a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := c.manager.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// ListModels asks the endpoint which models it serves.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var list openai.ModelsList
	err := c.manager.Do(WithPriority(ctx, PriorityBackground), func(ctx context.Context) error {
		var err error
		list, err = c.api.ListModels(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelInfo{
			Name:    m.ID,
			Object:  m.Object,
			Created: m.CreatedAt,
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args := tc.RawArguments
			if args == "" {
				raw, _ := json.Marshal(tc.Arguments)
				args = string(raw)
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// parseArguments decodes the model's JSON argument string. An empty string
// means no arguments.
func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments %q: %w", raw, err)
	}
	return args, nil
}
