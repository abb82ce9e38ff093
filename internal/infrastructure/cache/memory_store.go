package cache

import (
	"context"
	"sync"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/google/uuid"
)

// entry is a stored value with its expiry
type entry struct {
	value     string
	session   *domain.ConnectSession
	expiresAt time.Time
}

// MemoryStore keeps authorization sessions, run locks and webhook markers in a map.
// It is suitable for single-instance deployments and tests.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	lockTTL   time.Duration
	seenTTL   time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryStore creates a memory store and starts its cleanup goroutine
func NewMemoryStore(lockTTL, seenTTL time.Duration) *MemoryStore {
	store := &MemoryStore{
		entries:  make(map[string]entry),
		lockTTL:  lockTTL,
		seenTTL:  seenTTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Put stores a session until ttl elapses
func (s *MemoryStore) Put(ctx context.Context, session *domain.ConnectSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.entries[sessionKey(session.State)] = entry{session: &copied, expiresAt: s.now().Add(ttl)}
	return nil
}

// Take returns and removes a session in one step
func (s *MemoryStore) Take(ctx context.Context, state string) (*domain.ConnectSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(state)
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	delete(s.entries, key)
	if !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	return e.session, nil
}

// TryAcquire takes the lock for key unless another holder has it
func (s *MemoryStore) TryAcquire(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey(key)
	if e, ok := s.entries[k]; ok && s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.entries[k] = entry{value: token, expiresAt: s.now().Add(s.lockTTL)}
	return token, true, nil
}

// Release frees the lock if token still owns it
func (s *MemoryStore) Release(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey(key)
	if e, ok := s.entries[k]; ok && e.value == token {
		delete(s.entries, k)
	}
	return nil
}

// Extend pushes the lock expiry out by the lock TTL if token still owns it
func (s *MemoryStore) Extend(ctx context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey(key)
	e, ok := s.entries[k]
	if !ok || e.value != token || !s.now().Before(e.expiresAt) {
		return false, nil
	}
	e.expiresAt = s.now().Add(s.lockTTL)
	s.entries[k] = e
	return true, nil
}

// MarkProcessed returns true the first time key is seen within the retention window
func (s *MemoryStore) MarkProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := seenKey(key)
	if e, ok := s.entries[k]; ok && s.now().Before(e.expiresAt) {
		return false, nil
	}
	s.entries[k] = entry{value: "1", expiresAt: s.now().Add(s.seenTTL)}
	return true, nil
}

// Forget removes a processed marker
func (s *MemoryStore) Forget(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, seenKey(key))
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of entries in the store
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

func sessionKey(state string) string { return "session:" + state }
func lockKey(key string) string      { return "lock:" + key }
func seenKey(key string) string      { return "seen:" + key }

var (
	_ ports.ConnectSessionStore = (*MemoryStore)(nil)
	_ ports.RunGuard            = (*MemoryStore)(nil)
	_ ports.IdempotencyStore    = (*MemoryStore)(nil)
)
