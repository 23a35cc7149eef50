package llm

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"go-triage/internal/config"
)

// Circuit breaker errors
var (
	ErrCircuitOpen     = errors.New("llm circuit breaker open")
	ErrTooManyRequests = errors.New("too many probe requests in half-open state")
)

// CircuitState represents the state of the circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"    // Normal operation
	StateOpen     CircuitState = "open"      // Provider failing, reject calls
	StateHalfOpen CircuitState = "half-open" // Probing whether the provider recovered
)

// CircuitBreaker stops hammering an LLM provider that keeps failing.
type CircuitBreaker struct {
	mu                   sync.RWMutex
	state                CircuitState
	failureCount         int
	consecutiveSuccesses int
	probesInFlight       int
	lastFailureTime      time.Time
	lastStateChange      time.Time

	failureThreshold int           // Failures before opening
	successThreshold int           // Successes to close from half-open
	cooldown         time.Duration // How long to stay open
	halfOpenMax      int           // Max concurrent probes in half-open

	totalRequests   int64
	totalSuccesses  int64
	totalFailures   int64
	totalRejections int64
}

// NewCircuitBreaker creates a circuit breaker with the given configuration
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	cb := &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: 2,
		cooldown:         cooldown,
		halfOpenMax:      1,
		lastStateChange:  time.Now(),
	}

	log.Printf("[CircuitBreaker] Initialized: threshold=%d failures, cooldown=%s", failureThreshold, cooldown)
	return cb
}

// BreakerFrom builds a breaker from the llm config section.
func BreakerFrom(c config.LLMConfig) *CircuitBreaker {
	return NewCircuitBreaker(c.BreakerThreshold, time.Duration(c.BreakerCooldownSecs)*time.Second)
}

// Call attempts to execute a function through the circuit breaker
func (cb *CircuitBreaker) Call(fn func() error) error {
	probe, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = fn()
	cb.afterRequest(probe, err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) <= cb.cooldown {
			cb.totalRejections++
			return false, ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.consecutiveSuccesses = 0
		cb.probesInFlight = 0
		fallthrough
	case StateHalfOpen:
		if cb.probesInFlight >= cb.halfOpenMax {
			cb.totalRejections++
			return false, ErrTooManyRequests
		}
		cb.probesInFlight++
		return true, nil
	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) afterRequest(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.probesInFlight > 0 {
		cb.probesInFlight--
	}

	// Caller cancellations say nothing about provider health.
	if errors.Is(err, context.Canceled) {
		return
	}

	if err != nil {
		cb.totalFailures++
		cb.failureCount++
		cb.consecutiveSuccesses = 0
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case StateClosed:
			if cb.failureCount >= cb.failureThreshold {
				cb.setState(StateOpen)
				log.Printf("[CircuitBreaker] Opened after %d consecutive failures", cb.failureCount)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
		}
		return
	}

	cb.totalSuccesses++
	cb.consecutiveSuccesses++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		if cb.consecutiveSuccesses >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
		}
	}
}

// setState changes the circuit breaker state; caller holds mu
func (cb *CircuitBreaker) setState(newState CircuitState) {
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()

	if oldState != newState {
		log.Printf("[CircuitBreaker] State transition: %s -> %s", oldState, newState)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// IsOpen returns true if the circuit is open
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Stats returns current statistics
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	successRate := 0.0
	if cb.totalRequests > 0 {
		successRate = float64(cb.totalSuccesses) / float64(cb.totalRequests)
	}

	return map[string]interface{}{
		"state":            string(cb.state),
		"total_requests":   cb.totalRequests,
		"total_successes":  cb.totalSuccesses,
		"total_failures":   cb.totalFailures,
		"total_rejections": cb.totalRejections,
		"success_rate":     successRate,
		"failure_count":    cb.failureCount,
		"time_in_state":    time.Since(cb.lastStateChange).String(),
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.consecutiveSuccesses = 0
	cb.probesInFlight = 0
}
