package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	ErrQueueFull      = errors.New("llm queue full")
	ErrManagerStopped = errors.New("llm queue stopped")
)

// Manager coordinates all LLM requests
type Manager struct {
	criticalQueue   chan *Request
	backgroundQueue chan *Request

	maxConcurrent int
	semaphore     chan struct{} // Limit concurrent requests

	breaker *CircuitBreaker

	mu      sync.RWMutex
	metrics Metrics
	stopped bool

	stopCh chan struct{}
	wg     sync.WaitGroup

	config *QueueConfig
}

// NewManager creates a new queue manager and starts its dispatcher
func NewManager(config *QueueConfig, breaker *CircuitBreaker) *Manager {
	m := newManager(config, breaker)
	m.wg.Add(1)
	go m.dispatcher()

	log.Printf("[LLM Queue] Started with %d concurrent slots", m.maxConcurrent)
	return m
}

func newManager(config *QueueConfig, breaker *CircuitBreaker) *Manager {
	if config == nil {
		config = DefaultQueueConfig()
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	m := &Manager{
		criticalQueue:   make(chan *Request, config.CriticalQueueSize),
		backgroundQueue: make(chan *Request, config.BackgroundQueueSize),
		maxConcurrent:   config.MaxConcurrent,
		semaphore:       make(chan struct{}, config.MaxConcurrent),
		breaker:         breaker,
		metrics: Metrics{
			CurrentQueueDepth: map[Priority]int{
				PriorityCritical:   0,
				PriorityBackground: 0,
			},
		},
		stopCh: make(chan struct{}),
		config: config,
	}
	return m
}

// Do queues fn at the priority carried by ctx and waits for its result.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	priority := PriorityFrom(ctx)
	req := &Request{
		ID:         fmt.Sprintf("%s_%d", priority, time.Now().UnixNano()),
		Priority:   priority,
		Context:    ctx,
		Run:        fn,
		Done:       make(chan error, 1),
		SubmitTime: time.Now(),
		Timeout:    m.config.Timeout,
	}
	if err := m.Submit(req); err != nil {
		return err
	}
	select {
	case err := <-req.Done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit adds a request to the queue (non-blocking with drop behavior)
func (m *Manager) Submit(req *Request) error {
	if req.Done == nil {
		req.Done = make(chan error, 1)
	}

	// Held across the non-blocking send so Stop can't drain between the
	// stopped check and the enqueue.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrManagerStopped
	}
	queue := m.backgroundQueue
	if req.Priority == PriorityCritical {
		queue = m.criticalQueue
	}

	select {
	case queue <- req:
		if req.Priority == PriorityCritical {
			m.metrics.CriticalEnqueued++
		} else {
			m.metrics.BackgroundEnqueued++
		}
		m.metrics.CurrentQueueDepth[req.Priority] = len(queue)
		return nil
	default:
		if req.Priority == PriorityCritical {
			m.metrics.CriticalDropped++
		} else {
			m.metrics.BackgroundDropped++
		}
		log.Printf("[LLM Queue] WARNING: %s queue full, dropping request %s", req.Priority, req.ID)
		return ErrQueueFull
	}
}

// dispatcher selects next request (critical first, then background)
func (m *Manager) dispatcher() {
	defer m.wg.Done()

	for {
		// Take a slot before choosing, so whatever queued while we waited
		// is ranked by priority.
		select {
		case <-m.stopCh:
			return
		case m.semaphore <- struct{}{}:
		}
		// Both cases above may be ready at once; never start work after Stop.
		select {
		case <-m.stopCh:
			<-m.semaphore
			return
		default:
		}

		var req *Request
		select {
		case req = <-m.criticalQueue:
		default:
			select {
			case <-m.stopCh:
				<-m.semaphore
				return
			case req = <-m.criticalQueue:
			case req = <-m.backgroundQueue:
			}
		}

		m.wg.Add(1)
		go m.processRequest(req)
	}
}

// processRequest executes the queued work
func (m *Manager) processRequest(req *Request) {
	defer func() {
		<-m.semaphore
		m.wg.Done()

		m.mu.Lock()
		if req.Priority == PriorityCritical {
			m.metrics.CriticalProcessed++
		} else {
			m.metrics.BackgroundProcessed++
		}
		m.mu.Unlock()
	}()

	startTime := time.Now()

	if err := req.Context.Err(); err != nil {
		req.Done <- err
		return
	}

	ctx := req.Context
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context, req.Timeout)
		defer cancel()
	}

	var err error
	if m.breaker != nil {
		err = m.breaker.Call(func() error { return req.Run(ctx) })
	} else {
		err = req.Run(ctx)
	}

	if err != nil {
		log.Printf("[LLM Queue] Request %s failed after %s: %v", req.ID, time.Since(startTime), err)
	} else {
		log.Printf("[LLM Queue] Request %s completed in %s (waited %s)",
			req.ID, time.Since(startTime), startTime.Sub(req.SubmitTime))
	}
	req.Done <- err
}

// GetMetrics returns current queue statistics
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := m.metrics
	metrics.CurrentQueueDepth = map[Priority]int{
		PriorityCritical:   len(m.criticalQueue),
		PriorityBackground: len(m.backgroundQueue),
	}
	return metrics
}

// Stop gracefully shuts down the queue. Requests still queued are failed
// with ErrManagerStopped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	for _, q := range []chan *Request{m.criticalQueue, m.backgroundQueue} {
		for {
			select {
			case req := <-q:
				req.Done <- ErrManagerStopped
				continue
			default:
			}
			break
		}
	}
	log.Printf("[LLM Queue] Stopped")
}
