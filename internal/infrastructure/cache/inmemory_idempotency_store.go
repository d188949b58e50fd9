package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// DefaultCleanupInterval is how often expired payment references are swept
const DefaultCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore remembers processed payment references in a map.
// State is local to the process; the payments table remains the source of
// truth when several instances run.
type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]time.Time // key -> expiry
	capacity int
	now      func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a store holding at most capacity keys.
// A non-positive capacity means unbounded.
func NewInMemoryIdempotencyStore(capacity int) *InMemoryIdempotencyStore {
	return newInMemoryIdempotencyStore(capacity, DefaultCleanupInterval, time.Now)
}

func newInMemoryIdempotencyStore(capacity int, cleanupEvery time.Duration, now func() time.Time) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries:  make(map[string]time.Time),
		capacity: capacity,
		now:      now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop(cleanupEvery)
	return s
}

// MarkProcessed records key until ttl elapses. It returns false when the key
// is already recorded and still live.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}

	if s.capacity > 0 && len(s.entries) >= s.capacity {
		s.removeExpired(now)
		if len(s.entries) >= s.capacity {
			s.evictSoonestExpiring()
		}
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key is recorded and not expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.entries[key]
	return ok && s.now().Before(expiresAt), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of stored keys, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryIdempotencyStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.removeExpired(s.now())
			s.mu.Unlock()
		}
	}
}

// removeExpired must be called with mu held
func (s *InMemoryIdempotencyStore) removeExpired(now time.Time) {
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

// evictSoonestExpiring must be called with mu held. Losing a key only costs a
// database lookup on the next duplicate.
func (s *InMemoryIdempotencyStore) evictSoonestExpiring() {
	var (
		victim string
		oldest time.Time
	)
	for key, expiresAt := range s.entries {
		if victim == "" || expiresAt.Before(oldest) {
			victim, oldest = key, expiresAt
		}
	}
	delete(s.entries, victim)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
