package idempotency

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Response is a cached HTTP response replayed on key re-use.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string][]string
}

// Backend is the durable cache behind the store; RedisCache satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Store caches responses to idempotency-keyed requests. With no backend it
// falls back to ephemeral in-process memory.
type Store struct {
	backend Backend
	cache   sync.Map
}

type entry struct {
	Resp      Response
	Timestamp time.Time
}

const resultTTL = 24 * time.Hour

// NewStore creates a Store; backend may be nil for memory-only operation.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Get returns the cached response for key, if any.
func (s *Store) Get(ctx context.Context, key string) (Response, bool) {
	if s.backend != nil {
		val, err := s.backend.Get(ctx, key)
		if err != nil {
			log.Printf("Idempotency: backend error getting %s: %v", key, err)
			return Response{}, false
		}
		if val == "" {
			return Response{}, false
		}
		var e entry
		if err := json.Unmarshal([]byte(val), &e); err != nil {
			return Response{}, false
		}
		return e.Resp, true
	}

	val, ok := s.cache.Load(key)
	if !ok {
		return Response{}, false
	}
	e := val.(entry)
	if time.Since(e.Timestamp) > resultTTL {
		s.cache.Delete(key)
		return Response{}, false
	}
	return e.Resp, true
}

// Set stores the response under key.
func (s *Store) Set(ctx context.Context, key string, resp Response) {
	e := entry{Resp: resp, Timestamp: time.Now()}
	if s.backend != nil {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		if err := s.backend.Set(ctx, key, string(data), resultTTL); err != nil {
			log.Printf("Idempotency: backend error setting %s: %v", key, err)
		}
		return
	}
	s.cache.Store(key, e)
}
