package agent

import (
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Conversation is a capped, concurrency-safe list of turns.
type Conversation struct {
	mu       sync.Mutex
	turns    []Turn
	maxTurns int
	now      func() time.Time
}

func NewConversation(maxTurns int) *Conversation {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &Conversation{maxTurns: maxTurns, now: time.Now}
}

// Append records a turn, dropping the oldest beyond the cap.
func (c *Conversation) Append(query, response string) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Turn{Timestamp: c.now().Format(timestampLayout), Query: query, Response: response}
	c.turns = append(c.turns, t)
	if len(c.turns) > c.maxTurns {
		c.turns = append([]Turn(nil), c.turns[len(c.turns)-c.maxTurns:]...)
	}
	return t
}

// Load replaces the history, keeping at most the newest maxTurns.
func (c *Conversation) Load(turns []Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(turns) > c.maxTurns {
		turns = turns[len(turns)-c.maxTurns:]
	}
	c.turns = append([]Turn(nil), turns...)
}

// History returns a copy of all turns, oldest first.
func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn{}, c.turns...)
}

// Recent returns a copy of the newest n turns.
func (c *Conversation) Recent(n int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.turns) {
		n = len(c.turns)
	}
	if n < 0 {
		n = 0
	}
	return append([]Turn{}, c.turns[len(c.turns)-n:]...)
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
