package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "triage:session:"
	sessionKeyFmt    = sessionKeyPrefix + "%d"

	// SessionIdleTimeout is how long a session survives without requests.
	SessionIdleTimeout = 30 * time.Minute
)

var ErrNoSession = errors.New("session not found")

// SessionStore maps a user to the token of their current login.
type SessionStore interface {
	Set(ctx context.Context, userID uint, token string, ttl time.Duration) error
	Get(ctx context.Context, userID uint) (string, error)
	Delete(ctx context.Context, userID uint) error
	OnlineCount(ctx context.Context) (int, error)
}

// NewSessionStore keeps sessions in redis when rdb is set, otherwise in
// process memory.
func NewSessionStore(rdb *redis.Client) SessionStore {
	if rdb == nil {
		log.Printf("[Auth] No redis configured, keeping sessions in memory")
		return NewMemorySessions()
	}
	return &RedisSessions{rdb: rdb}
}

type RedisSessions struct {
	rdb *redis.Client
}

func (s *RedisSessions) Set(ctx context.Context, userID uint, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, fmt.Sprintf(sessionKeyFmt, userID), token, ttl).Err()
}

func (s *RedisSessions) Get(ctx context.Context, userID uint) (string, error) {
	token, err := s.rdb.Get(ctx, fmt.Sprintf(sessionKeyFmt, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	return token, err
}

func (s *RedisSessions) Delete(ctx context.Context, userID uint) error {
	return s.rdb.Del(ctx, fmt.Sprintf(sessionKeyFmt, userID)).Err()
}

// OnlineCount returns the number of unique users with active sessions.
func (s *RedisSessions) OnlineCount(ctx context.Context) (int, error) {
	var cursor uint64
	userIDs := make(map[string]struct{})
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			if id := strings.TrimPrefix(key, sessionKeyPrefix); id != "" && id != key {
				userIDs[id] = struct{}{}
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return len(userIDs), nil
}

type memorySession struct {
	token   string
	expires time.Time
}

// MemorySessions is a single-process SessionStore.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[uint]memorySession
	now      func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: map[uint]memorySession{}, now: time.Now}
}

func (s *MemorySessions) Set(ctx context.Context, userID uint, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = memorySession{token: token, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessions) Get(ctx context.Context, userID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return "", ErrNoSession
	}
	if !s.now().Before(sess.expires) {
		delete(s.sessions, userID)
		return "", ErrNoSession
	}
	return sess.token, nil
}

func (s *MemorySessions) Delete(ctx context.Context, userID uint) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessions) OnlineCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if now.Before(sess.expires) {
			n++
		} else {
			delete(s.sessions, id)
		}
	}
	return n, nil
}
