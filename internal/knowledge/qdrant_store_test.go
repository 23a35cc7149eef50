package knowledge

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestQdrantEndpoint(t *testing.T) {
	tests := []struct {
		url      string
		wantHost string
		wantPort int
		wantTLS  bool
	}{
		{"localhost", "localhost", 6334, false},
		{"http://qdrant:6334", "qdrant", 6334, false},
		{"http://qdrant.internal:7334", "qdrant.internal", 7334, false},
		{"https://cloud.example.com", "cloud.example.com", 6334, true},
		{"https://cloud.example.com:443", "cloud.example.com", 443, true},
		{"qdrant:9000", "qdrant", 9000, false},
	}
	for _, tt := range tests {
		host, port, useTLS, err := qdrantEndpoint(tt.url)
		if err != nil {
			t.Errorf("qdrantEndpoint(%q): %v", tt.url, err)
			continue
		}
		if host != tt.wantHost || port != tt.wantPort || useTLS != tt.wantTLS {
			t.Errorf("qdrantEndpoint(%q) = %s, %d, %v; want %s, %d, %v",
				tt.url, host, port, useTLS, tt.wantHost, tt.wantPort, tt.wantTLS)
		}
	}

	for _, bad := range []string{"ftp://qdrant:6334", "http://:6334", "http://qdrant:port"} {
		if _, _, _, err := qdrantEndpoint(bad); err == nil {
			t.Errorf("qdrantEndpoint(%q) should fail", bad)
		}
	}
}

// Runs against a real server only when TRIAGE_TEST_QDRANT_URL is set.
func TestQdrantStore_Live(t *testing.T) {
	qdrantURL := os.Getenv("TRIAGE_TEST_QDRANT_URL")
	if qdrantURL == "" {
		t.Skip("set TRIAGE_TEST_QDRANT_URL to run qdrant store test")
	}
	collection := "triage_test_" + uuid.New().String()[:8]
	s, err := NewQdrantStore(qdrantURL, collection, os.Getenv("TRIAGE_TEST_QDRANT_API_KEY"), testDim)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ctx := context.Background()
	defer s.Client.DeleteCollection(ctx, collection)

	if err := s.Add(ctx, Entry{Content: "pool exhausted", Metadata: map[string]any{"category": "database"}}, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, Entry{Content: "heap growing"}, []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, Entry{Content: "short"}, []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("count = %d, %v; want 2", n, err)
	}
	results, err := s.Search(ctx, []float32{0.9, 0.1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "pool exhausted" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Metadata["category"] != "database" {
		t.Errorf("metadata not round-tripped: %+v", results[0].Metadata)
	}
	entries, err := s.List(ctx, 10)
	if err != nil || len(entries) != 2 {
		t.Errorf("list = %d entries, %v; want 2", len(entries), err)
	}
}
