package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDim = 4

// keywordEmbedder scores text on a few fixed topics so similarity is
// predictable.
type keywordEmbedder struct {
	calls atomic.Int32
	fail  error
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.fail != nil {
		return nil, e.fail
	}
	text = strings.ToLower(text)
	vec := make([]float32, testDim)
	for i, kw := range []string{"database", "memory", "redis"} {
		if strings.Contains(text, kw) {
			vec[i] = 1
		}
	}
	vec[3] = 0.1
	return vec, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestBase(t *testing.T) (*Base, *keywordEmbedder, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	store, err := NewFlatStore(db, testDim)
	if err != nil {
		t.Fatalf("NewFlatStore: %v", err)
	}
	emb := &keywordEmbedder{}
	return NewBase(store, emb), emb, db
}

func TestSearch_EmptyBaseSkipsEmbedding(t *testing.T) {
	base, emb, _ := newTestBase(t)

	results, err := base.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", results)
	}
	if emb.calls.Load() != 0 {
		t.Errorf("embedder should not be called for an empty base")
	}
}

func TestSearch_RanksByInnerProduct(t *testing.T) {
	base, _, _ := newTestBase(t)
	ctx := context.Background()

	if _, err := base.Seed(ctx, BuiltinSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	results, err := base.Search(ctx, "the database pool is full", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Metadata["category"] != "performance" && results[0].Metadata["category"] != "database" {
		t.Errorf("top hit should mention the database, got %+v", results[0])
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not in descending score order: %v then %v", results[0].Score, results[1].Score)
	}

	// k larger than the base is capped at the entry count
	all, err := base.Search(ctx, "redis", 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != len(BuiltinSeed()) {
		t.Errorf("expected %d results, got %d", len(BuiltinSeed()), len(all))
	}
	if all[0].Metadata["category"] != "redis" {
		t.Errorf("redis entry should rank first, got %+v", all[0])
	}
}

func TestAdd_DefaultMetadata(t *testing.T) {
	base, _, _ := newTestBase(t)
	fixed := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	base.now = func() time.Time { return fixed }
	ctx := context.Background()

	if err := base.Add(ctx, "Disk full on the memory cache host", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	entries, err := base.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := map[string]any{"source": "manual", "timestamp": "2024-03-02T08:00:00Z"}
	if diff := cmp.Diff(want, entries[0].Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestAdd_EmbedErrorPropagates(t *testing.T) {
	base, emb, _ := newTestBase(t)
	emb.fail = errors.New("endpoint down")

	err := base.Add(context.Background(), "x", nil)
	if err == nil || !strings.Contains(err.Error(), "endpoint down") {
		t.Fatalf("expected embed error, got %v", err)
	}
	if n, _ := base.Count(context.Background()); n != 0 {
		t.Errorf("nothing should be stored, count=%d", n)
	}
}

func TestSeed_OnlyWhenEmpty(t *testing.T) {
	base, _, _ := newTestBase(t)
	ctx := context.Background()

	n, err := base.Seed(ctx, BuiltinSeed())
	if err != nil || n != 4 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}
	n, err = base.Seed(ctx, BuiltinSeed())
	if err != nil || n != 0 {
		t.Fatalf("second seed should be a no-op: n=%d err=%v", n, err)
	}
	if total, _ := base.Count(ctx); total != 4 {
		t.Errorf("expected 4 entries, got %d", total)
	}
}

func TestFlatStore_ReloadsFromDatabase(t *testing.T) {
	base, _, db := newTestBase(t)
	ctx := context.Background()
	if err := base.Add(ctx, "redis timeouts under load", map[string]any{"category": "redis"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFlatStore(db, testDim)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entries, _ := reopened.List(ctx, 0)
	if len(entries) != 1 || entries[0].Content != "redis timeouts under load" {
		t.Fatalf("entry not reloaded: %+v", entries)
	}
	if entries[0].Metadata["category"] != "redis" {
		t.Errorf("metadata not reloaded: %+v", entries[0].Metadata)
	}

	// a store opened with a different dimension skips the old rows
	other, err := NewFlatStore(db, testDim+1)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := other.Count(ctx); n != 0 {
		t.Errorf("rows with the wrong dimension should be skipped, got %d", n)
	}
}

func TestFlatStore_DimensionMismatch(t *testing.T) {
	store, err := NewFlatStore(openTestDB(t), testDim)
	if err != nil {
		t.Fatal(err)
	}
	err = store.Add(context.Background(), Entry{Content: "x"}, []float32{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	_, err = store.Search(context.Background(), []float32{1}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()

	listPath := filepath.Join(dir, "list.yaml")
	os.WriteFile(listPath, []byte(`
- content: Kafka consumer lag grows when partitions are unbalanced
  category: messaging
  tags: [kafka, lag]
- content: ""
`), 0644)
	entries, err := LoadSeedFile(listPath)
	if err != nil {
		t.Fatalf("load list: %v", err)
	}
	want := []SeedEntry{{
		Content:  "Kafka consumer lag grows when partitions are unbalanced",
		Category: "messaging",
		Tags:     []string{"kafka", "lag"},
	}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	wrappedPath := filepath.Join(dir, "wrapped.yaml")
	os.WriteFile(wrappedPath, []byte("entries:\n  - content: Nginx 502 means the upstream closed the connection\n"), 0644)
	entries, err = LoadSeedFile(wrappedPath)
	if err != nil || len(entries) != 1 {
		t.Fatalf("load wrapped: %v %+v", err, entries)
	}

	emptyPath := filepath.Join(dir, "empty.yaml")
	os.WriteFile(emptyPath, []byte("entries: []\n"), 0644)
	if _, err := LoadSeedFile(emptyPath); err == nil {
		t.Error("expected error for a seed file without entries")
	}
}
