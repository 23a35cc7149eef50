package knowledge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore keeps knowledge in a qdrant collection scored by dot product.
type QdrantStore struct {
	Client         *qdrant.Client
	CollectionName string
	dim            int
}

const defaultQdrantPort = 6334

// qdrantEndpoint splits a configured qdrant URL into the gRPC host and
// port. https turns TLS on; a missing port means the default gRPC port.
func qdrantEndpoint(rawURL string) (host string, port int, useTLS bool, err error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant url: %w", err)
	}
	switch u.Scheme {
	case "http":
	case "https":
		useTLS = true
	default:
		return "", 0, false, fmt.Errorf("invalid qdrant url: unsupported scheme %q", u.Scheme)
	}
	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant url: missing host")
	}
	port = defaultQdrantPort
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
	}
	return host, port, useTLS, nil
}

// NewQdrantStore connects over gRPC and creates the collection if missing.
func NewQdrantStore(qdrantURL, collectionName, apiKey string, dim int) (*QdrantStore, error) {
	host, port, useTLS, err := qdrantEndpoint(qdrantURL)
	if err != nil {
		return nil, err
	}
	if apiKey != "" && !useTLS {
		log.Printf("[Knowledge] WARNING: qdrant API key sent without TLS to %s:%d", host, port)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	s := &QdrantStore{Client: client, CollectionName: collectionName, dim: dim}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.Client.CollectionExists(ctx, s.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	log.Printf("[Knowledge] Creating qdrant collection %s (dim %d)", s.CollectionName, s.dim)
	err = s.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *QdrantStore) Add(ctx context.Context, entry Entry, vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dim)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	payload := map[string]*qdrant.Value{
		"content":  qdrant.NewValueString(entry.Content),
		"entry_id": qdrant.NewValueString(entry.ID),
		"metadata": {Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: metadataToPayload(entry.Metadata)}}},
	}

	_, err := s.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.CollectionName,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(entry.ID),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert knowledge entry: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dim)
	}
	points, err := s.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, Result{
			Content:  getStringFromPayload(p.Payload, "content"),
			Metadata: getMetadataFromPayload(p.Payload, "metadata"),
			Score:    float64(p.Score),
		})
	}
	return results, nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.Client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.CollectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(n), nil
}

func (s *QdrantStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	points, err := s.Client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.CollectionName,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll knowledge: %w", err)
	}

	entries := make([]Entry, 0, len(points))
	for _, p := range points {
		entries = append(entries, Entry{
			ID:       getStringFromPayload(p.Payload, "entry_id"),
			Content:  getStringFromPayload(p.Payload, "content"),
			Metadata: getMetadataFromPayload(p.Payload, "metadata"),
		})
	}
	return entries, nil
}

func metadataToPayload(meta map[string]any) map[string]*qdrant.Value {
	fields := make(map[string]*qdrant.Value, len(meta))
	for k, v := range meta {
		if val := toValue(v); val != nil {
			fields[k] = val
		}
	}
	return fields
}

func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case bool:
		return qdrant.NewValueBool(val)
	case []string:
		items := make([]*qdrant.Value, len(val))
		for i, s := range val {
			items[i] = qdrant.NewValueString(s)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: items}}}
	case []any:
		items := make([]*qdrant.Value, 0, len(val))
		for _, item := range val {
			if iv := toValue(item); iv != nil {
				items = append(items, iv)
			}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: items}}}
	case map[string]any:
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: metadataToPayload(val)}}}
	}
	return nil
}

func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return int(k.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, fromValue(item))
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for fk, fv := range k.StructValue.GetFields() {
			out[fk] = fromValue(fv)
		}
		return out
	}
	return nil
}

func getStringFromPayload(payload map[string]*qdrant.Value, key string) string {
	if val, ok := payload[key]; ok {
		return val.GetStringValue()
	}
	return ""
}

func getMetadataFromPayload(payload map[string]*qdrant.Value, key string) map[string]any {
	result := make(map[string]any)
	val, ok := payload[key]
	if !ok || val.GetStructValue() == nil {
		return result
	}
	for k, v := range val.GetStructValue().GetFields() {
		result[k] = fromValue(v)
	}
	return result
}
