package historystore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oralmate/backend/internal/model/history"
)

// RedisStore 基于 Redis 列表的历史存储。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 历史存储。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func historyKey(sessionID string) string {
	return "history:" + sessionID
}

// Append 追加一条历史记录；RPUSH 与 EXPIRE 在同一个 MULTI/EXEC 中执行。
func (s *RedisStore) Append(ctx context.Context, sessionID string, entry history.Entry) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	key := historyKey(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ReadAll 按插入顺序返回全部历史记录。
func (s *RedisStore) ReadAll(ctx context.Context, sessionID string) ([]history.Entry, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	raw, err := s.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	entries := make([]history.Entry, 0, len(raw))
	for _, item := range raw {
		var entry history.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
