package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oralmate/backend/internal/model/session"
)

type memoryEntry struct {
	ids       []string
	expiresAt time.Time
}

// MemoryStore 进程内会话列表存储，语义与 Redis 实现一致。
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// NewMemoryStore 创建进程内会话存储。
func NewMemoryStore(ttl time.Duration, maxSessions int) *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]*memoryEntry),
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

func sessionKey(userID, goalID string) string {
	if goalID == "" {
		goalID = session.DefaultGoal
	}
	return userID + ":" + goalID
}

// StartOrResume 复用最近会话或创建新会话。
func (s *MemoryStore) StartOrResume(_ context.Context, userID, goalID string, forceNew bool) (string, bool, error) {
	if userID == "" {
		return "", false, ErrUserRequired
	}

	key := sessionKey(userID, goalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveEntry(key)
	if !forceNew && entry != nil && len(entry.ids) > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
		return entry.ids[0], true, nil
	}

	id := uuid.NewString()
	if entry == nil {
		entry = &memoryEntry{}
		s.entries[key] = entry
	}

	// Prepend and truncate to the retention bound, newest first.
	entry.ids = append([]string{id}, entry.ids...)
	if len(entry.ids) > s.maxSessions {
		entry.ids = entry.ids[:s.maxSessions]
	}
	entry.expiresAt = s.now().Add(s.ttl)

	return id, false, nil
}

// ListActive 返回当前会话列表，最近创建的在前。
func (s *MemoryStore) ListActive(_ context.Context, userID, goalID string) ([]string, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.liveEntry(sessionKey(userID, goalID))
	if entry == nil {
		return []string{}, nil
	}

	ids := make([]string, len(entry.ids))
	copy(ids, entry.ids)
	return ids, nil
}

// liveEntry 返回未过期的条目，过期则删除。调用方需持有锁。
func (s *MemoryStore) liveEntry(key string) *memoryEntry {
	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return entry
}
