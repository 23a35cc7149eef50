package llm

import (
	"context"
	"time"
)

// Priority levels (just 2)
type Priority int

const (
	PriorityCritical   Priority = 0 // Interactive chat turns
	PriorityBackground Priority = 1 // Knowledge ingestion, discovery
)

func (p Priority) String() string {
	if p == PriorityCritical {
		return "critical"
	}
	return "background"
}

type priorityKey struct{}

// WithPriority tags ctx so calls made with it are queued at p.
func WithPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFrom returns the priority attached to ctx, critical by default.
func PriorityFrom(ctx context.Context) Priority {
	if p, ok := ctx.Value(priorityKey{}).(Priority); ok {
		return p
	}
	return PriorityCritical
}

// Request encapsulates one unit of LLM work waiting for a slot
type Request struct {
	ID       string
	Priority Priority
	Context  context.Context
	Run      func(ctx context.Context) error

	// Receives exactly one value: the result of Run or the reason it never ran
	Done chan error

	SubmitTime time.Time
	Timeout    time.Duration
}

// Metrics tracks queue performance
type Metrics struct {
	CriticalEnqueued    int64            `json:"critical_enqueued"`
	CriticalProcessed   int64            `json:"critical_processed"`
	CriticalDropped     int64            `json:"critical_dropped"`
	BackgroundEnqueued  int64            `json:"background_enqueued"`
	BackgroundProcessed int64            `json:"background_processed"`
	BackgroundDropped   int64            `json:"background_dropped"`
	CurrentQueueDepth   map[Priority]int `json:"current_queue_depth"`
}

// Role values accepted by the chat endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one chat message in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolSpec describes a callable function offered to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"-"`
}

// Reply is the model's answer: plain content or a tool call.
type Reply struct {
	Content      string    `json:"content,omitempty"`
	ToolCall     *ToolCall `json:"tool_call,omitempty"`
	FinishReason string    `json:"finish_reason,omitempty"`
}

// IsToolCall reports whether the model asked for a tool.
func (r *Reply) IsToolCall() bool {
	return r != nil && r.ToolCall != nil
}

// ModelInfo represents information about a discovered model
type ModelInfo struct {
	Name    string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
