package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type flatItem struct {
	entry  Entry
	vector []float32
}

// FlatStore keeps every vector in memory and scans them all on search.
// Rows live in the knowledge_entries table so the index survives restarts.
type FlatStore struct {
	db  *gorm.DB
	dim int

	mu    sync.RWMutex
	items []flatItem
}

// NewFlatStore loads all stored entries. Rows whose vector does not match
// dim are skipped with a warning.
func NewFlatStore(db *gorm.DB, dim int) (*FlatStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dim)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate knowledge table: %w", err)
	}

	var rows []Record
	if err := db.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load knowledge entries: %w", err)
	}

	s := &FlatStore{db: db, dim: dim}
	for _, row := range rows {
		var vec []float32
		if err := json.Unmarshal(row.Embedding, &vec); err != nil || len(vec) != dim {
			log.Printf("[Knowledge] Skipping entry %s: bad embedding (len %d, want %d)", row.ID, len(vec), dim)
			continue
		}
		var meta map[string]any
		if len(row.Metadata) > 0 {
			_ = json.Unmarshal(row.Metadata, &meta)
		}
		s.items = append(s.items, flatItem{
			entry:  Entry{ID: row.ID, Content: row.Content, Metadata: meta},
			vector: vec,
		})
	}
	log.Printf("[Knowledge] Flat store loaded %d entries (dim %d)", len(s.items), dim)
	return s, nil
}

func (s *FlatStore) Add(ctx context.Context, entry Entry, vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dim)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	vec, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row := Record{ID: entry.ID, Content: entry.Content, Metadata: meta, Embedding: vec}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}
	s.items = append(s.items, flatItem{entry: entry, vector: append([]float32(nil), vector...)})
	return nil
}

// Search returns the k entries with the highest inner product, best first.
func (s *FlatStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dim)
	}

	s.mu.RLock()
	scored := make([]Result, 0, len(s.items))
	for _, it := range s.items {
		scored = append(scored, Result{
			Content:  it.entry.Content,
			Metadata: it.entry.Metadata,
			Score:    dot(vector, it.vector),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *FlatStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// List returns entries in insertion order, at most limit when limit > 0.
func (s *FlatStore) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for _, it := range s.items[:n] {
		out = append(out, it.entry)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
