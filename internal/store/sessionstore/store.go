// Package sessionstore maps a (user, goal) pair to a bounded, most-recent-first
// list of session identifiers with a sliding expiry.
package sessionstore

import (
	"context"
	"errors"
)

var (
	ErrUserRequired = errors.New("user id is required")
	// ErrUnavailable marks transport-level store failures; callers must not
	// confuse it with an empty result.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store 定义会话列表存储接口。
type Store interface {
	// StartOrResume returns the most recent live session id for (user, goal),
	// refreshing its TTL, or creates a new one. forceNew always creates.
	StartOrResume(ctx context.Context, userID, goalID string, forceNew bool) (string, bool, error)

	// ListActive returns the current session ids, most recent first. An empty
	// list is a valid outcome, not an error.
	ListActive(ctx context.Context, userID, goalID string) ([]string, error)
}
