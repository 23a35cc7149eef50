package llm

import (
	"context"
	"log"
	"sync"
	"time"
)

// ModelLister is the part of Client the discovery cache needs.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// DiscoveryService caches the endpoint's model list for a while so the
// /models route doesn't hit the provider on every request.
type DiscoveryService struct {
	lister ModelLister
	ttl    time.Duration

	mutex       sync.RWMutex
	models      []ModelInfo
	lastUpdated time.Time
	isOnline    bool
	errorCount  int

	now func() time.Time
}

// EndpointStatus is a snapshot of what discovery knows about the endpoint.
type EndpointStatus struct {
	Models      []ModelInfo `json:"models"`
	LastUpdated time.Time   `json:"last_updated"`
	IsOnline    bool        `json:"is_online"`
	ErrorCount  int         `json:"error_count"`
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(lister ModelLister, ttl time.Duration) *DiscoveryService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DiscoveryService{lister: lister, ttl: ttl, now: time.Now}
}

// Refresh fetches the model list unconditionally.
func (d *DiscoveryService) Refresh(ctx context.Context) error {
	models, err := d.lister.ListModels(ctx)

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err != nil {
		d.isOnline = false
		d.errorCount++
		return err
	}
	d.models = models
	d.lastUpdated = d.now()
	d.isOnline = true
	d.errorCount = 0
	log.Printf("[Discovery] Found %d models", len(models))
	return nil
}

// GetModels returns cached models, refreshing when empty or stale. A failed
// refresh falls back to stale data when there is any.
func (d *DiscoveryService) GetModels(ctx context.Context) ([]ModelInfo, error) {
	d.mutex.RLock()
	models := d.models
	fresh := len(models) > 0 && d.now().Sub(d.lastUpdated) <= d.ttl
	d.mutex.RUnlock()

	if fresh {
		return models, nil
	}
	if err := d.Refresh(ctx); err != nil {
		if len(models) > 0 {
			log.Printf("[Discovery] Using stale models due to refresh error: %v", err)
			return models, nil
		}
		return nil, err
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.models, nil
}

// HasModel reports whether the named model is in the cached list.
func (d *DiscoveryService) HasModel(ctx context.Context, name string) bool {
	models, err := d.GetModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Status returns a copy of the current endpoint state.
func (d *DiscoveryService) Status() EndpointStatus {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return EndpointStatus{
		Models:      append([]ModelInfo{}, d.models...),
		LastUpdated: d.lastUpdated,
		IsOnline:    d.isOnline,
		ErrorCount:  d.errorCount,
	}
}
