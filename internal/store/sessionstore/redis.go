package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oralmate/backend/internal/model/session"
)

// RedisStore 基于 Redis 列表的会话存储。
type RedisStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxSessions int
}

// NewRedisStore 创建 Redis 会话存储。
func NewRedisStore(client *redis.Client, ttl time.Duration, maxSessions int) *RedisStore {
	return &RedisStore{
		client:      client,
		ttl:         ttl,
		maxSessions: maxSessions,
	}
}

func redisSessionKey(userID, goalID string) string {
	if goalID == "" {
		goalID = session.DefaultGoal
	}
	return "sessions:" + userID + ":" + goalID
}

// StartOrResume 复用最近会话或创建新会话。
// LPUSH+LTRIM+EXPIRE 在同一个 MULTI/EXEC 中执行，保证前插与截断原子生效。
func (s *RedisStore) StartOrResume(ctx context.Context, userID, goalID string, forceNew bool) (string, bool, error) {
	if userID == "" {
		return "", false, ErrUserRequired
	}

	key := redisSessionKey(userID, goalID)

	if !forceNew {
		existing, err := s.client.LIndex(ctx, key, 0).Result()
		if err == nil && existing != "" {
			if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
				return "", false, fmt.Errorf("%w: refresh ttl: %v", ErrUnavailable, err)
			}
			return existing, true, nil
		}
		if err != nil && err != redis.Nil {
			return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	id := uuid.NewString()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, id)
		pipe.LTrim(ctx, key, 0, int64(s.maxSessions-1))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return id, false, nil
}

// ListActive 返回当前会话列表，最近创建的在前。
func (s *RedisStore) ListActive(ctx context.Context, userID, goalID string) ([]string, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	ids, err := s.client.LRange(ctx, redisSessionKey(userID, goalID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
