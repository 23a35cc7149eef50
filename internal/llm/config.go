package llm

import (
	"time"

	"go-triage/internal/config"
)

// QueueConfig controls queue behavior
type QueueConfig struct {
	// Concurrency control
	MaxConcurrent int // Total concurrent LLM requests

	// Queue sizes
	CriticalQueueSize   int // Chat turns (small, rarely queues)
	BackgroundQueueSize int // Ingestion and discovery (larger buffer)

	// Per-request timeout applied on top of the caller's context
	Timeout time.Duration
}

// DefaultQueueConfig returns sensible defaults
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxConcurrent:       2,
		CriticalQueueSize:   20,
		BackgroundQueueSize: 100,
		Timeout:             120 * time.Second,
	}
}

// QueueConfigFrom derives the queue settings from the llm config section,
// keeping defaults for unset values.
func QueueConfigFrom(c config.LLMConfig) *QueueConfig {
	q := DefaultQueueConfig()
	if c.MaxConcurrent > 0 {
		q.MaxConcurrent = c.MaxConcurrent
	}
	if c.CriticalQueueSize > 0 {
		q.CriticalQueueSize = c.CriticalQueueSize
	}
	if c.BackgroundQueueSize > 0 {
		q.BackgroundQueueSize = c.BackgroundQueueSize
	}
	if c.TimeoutSeconds > 0 {
		q.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	return q
}
