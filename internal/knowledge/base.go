package knowledge

import (
	"context"
	"fmt"
	"log"
	"time"

	"go-triage/internal/config"

	"gorm.io/gorm"
)

// Base ties an embedder to a store.
type Base struct {
	store    Store
	embedder Embedder
	now      func() time.Time
}

func NewBase(store Store, embedder Embedder) *Base {
	return &Base{store: store, embedder: embedder, now: time.Now}
}

// Open builds the store selected by cfg.Knowledge.Backend. db is only used
// by the flat backend.
func Open(cfg *config.Config, db *gorm.DB, embedder Embedder) (*Base, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Knowledge.Backend {
	case "qdrant":
		q := cfg.Knowledge.Qdrant
		store, err = NewQdrantStore(q.URL, q.Collection, q.APIKey, cfg.LLM.VectorDim)
	default:
		if db == nil {
			return nil, fmt.Errorf("flat knowledge backend needs a database")
		}
		store, err = NewFlatStore(db, cfg.LLM.VectorDim)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[Knowledge] Using %s backend", cfg.Knowledge.Backend)
	return NewBase(store, embedder), nil
}

func (b *Base) Store() Store { return b.store }

// Add embeds content and stores it. Nil metadata becomes
// {source: manual, timestamp: now}.
func (b *Base) Add(ctx context.Context, content string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{
			"source":    "manual",
			"timestamp": b.now().Format(time.RFC3339),
		}
	}
	vec, err := b.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed knowledge: %w", err)
	}
	if err := b.store.Add(ctx, Entry{Content: content, Metadata: metadata}, vec); err != nil {
		return err
	}
	return nil
}

// Search returns up to k entries most similar to query. An empty base
// returns an empty slice without calling the embedder.
func (b *Base) Search(ctx context.Context, query string, k int) ([]Result, error) {
	total, err := b.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count knowledge: %w", err)
	}
	if total == 0 || k <= 0 {
		return []Result{}, nil
	}
	if k > total {
		k = total
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return b.store.Search(ctx, vec, k)
}

func (b *Base) Count(ctx context.Context) (int, error) {
	return b.store.Count(ctx)
}

func (b *Base) List(ctx context.Context, limit int) ([]Entry, error) {
	return b.store.List(ctx, limit)
}

// Seed adds entries only when the base is empty. It reports how many were
// added.
func (b *Base) Seed(ctx context.Context, entries []SeedEntry) (int, error) {
	total, err := b.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count knowledge: %w", err)
	}
	if total > 0 {
		log.Printf("[Knowledge] Base already holds %d entries, skipping seed", total)
		return 0, nil
	}
	for i, e := range entries {
		if err := b.Add(ctx, e.Content, e.metadata()); err != nil {
			return i, fmt.Errorf("seed entry %d: %w", i, err)
		}
	}
	log.Printf("[Knowledge] Seeded %d entries", len(entries))
	return len(entries), nil
}
