package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultMemorySize is the entry limit used when NewMemoryStore is given a
// non-positive size.
const DefaultMemorySize = 1024

// MemoryStore is a process-local prediction cache bounded by entry count.
// It is safe for concurrent use by multiple goroutines.
//
// Entries are evicted least-recently-used once the size limit is reached.
// If a TTL is configured, entries older than the TTL are treated as missing
// and removed lazily on lookup. For multi-instance deployments use RedisStore
// so replicas share one cache.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, Entry]
	ttl   time.Duration
	clock clockwork.Clock
}

// NewMemoryStore creates an LRU store holding up to size entries. A zero ttl
// keeps entries until they are evicted.
func NewMemoryStore(size int, ttl time.Duration) (*MemoryStore, error) {
	return NewMemoryStoreWithClock(size, ttl, clockwork.NewRealClock())
}

// NewMemoryStoreWithClock is NewMemoryStore with an explicit clock, used by
// tests to drive expiry.
func NewMemoryStoreWithClock(size int, ttl time.Duration, clock clockwork.Clock) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl must be >= 0, got %s", ttl)
	}

	cache, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}

	return &MemoryStore{
		cache: cache,
		ttl:   ttl,
		clock: clock,
	}, nil
}

// Put stores an entry, replacing any existing one for key. A zero CreatedAt
// is set to the store clock's current time.
func (s *MemoryStore) Put(ctx context.Context, key string, entry Entry) error {
	if key == "" {
		return ErrEmptyKey
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Add(key, entry)
	return nil
}

// Get returns the entry for key. Expired entries are removed and reported as
// not found.
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	select {
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.cache.Get(key)
	if !found {
		return Entry{}, false, nil
	}

	if s.ttl > 0 && s.clock.Since(entry.CreatedAt) > s.ttl {
		s.cache.Remove(key)
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// size returns the number of entries currently held, including expired
// entries that have not been looked up since they expired.
func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
