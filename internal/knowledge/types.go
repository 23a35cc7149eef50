// Package knowledge is the vector knowledge base of known problems and
// their fixes, searched by embedding similarity.
package knowledge

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Entry is one piece of stored knowledge.
type Entry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Result is an entry returned by a similarity search.
type Result struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Store persists entries with their vectors and answers nearest-neighbour
// queries by inner product.
type Store interface {
	Add(ctx context.Context, entry Entry, vector []float32) error
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Record is the gorm row behind FlatStore.
type Record struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Metadata  datatypes.JSON `json:"metadata"`
	Embedding datatypes.JSON `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Record) TableName() string { return "knowledge_entries" }
