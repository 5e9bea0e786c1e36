package store

import (
	"context"
	"sync"
	"time"

	"github.com/openclaw/interview-server-go/internal/model"
)

type memoryEntry struct {
	session   *model.InterviewSession
	expiresAt time.Time
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns a process-local store. A zero ttl keeps sessions
// until they are removed.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, session *model.InterviewSession) error {
	entry := memoryEntry{session: session.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.sessions[session.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, session *model.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok || s.expired(current) {
		return ErrSessionNotFound
	}
	entry := memoryEntry{session: session.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.sessions[session.ID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok || s.expired(entry) {
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (s *MemoryStore) Remove(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// DeleteExpired drops sessions whose ttl has elapsed.
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, entry := range s.sessions {
		if s.expired(entry) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}
