package historystore

import (
	"context"
	"sync"
	"time"

	"github.com/oralmate/backend/internal/model/history"
)

type memoryLog struct {
	entries   []history.Entry
	expiresAt time.Time
}

// MemoryStore 进程内历史存储，语义与 Redis 实现一致。
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string]*memoryLog
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore 创建进程内历史存储。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		logs: make(map[string]*memoryLog),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Append 追加一条历史记录并刷新过期时间。
func (s *MemoryStore) Append(_ context.Context, sessionID string, entry history.Entry) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.liveLog(sessionID)
	if log == nil {
		log = &memoryLog{}
		s.logs[sessionID] = log
	}

	log.entries = append(log.entries, entry)
	log.expiresAt = s.now().Add(s.ttl)
	return nil
}

// ReadAll 按插入顺序返回全部历史记录。
func (s *MemoryStore) ReadAll(_ context.Context, sessionID string) ([]history.Entry, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.liveLog(sessionID)
	if log == nil {
		return []history.Entry{}, nil
	}

	entries := make([]history.Entry, len(log.entries))
	copy(entries, log.entries)
	return entries, nil
}

// liveLog 返回未过期的日志，过期则删除。调用方需持有锁。
func (s *MemoryStore) liveLog(sessionID string) *memoryLog {
	log, ok := s.logs[sessionID]
	if !ok {
		return nil
	}
	if s.now().After(log.expiresAt) {
		delete(s.logs, sessionID)
		return nil
	}
	return log
}
