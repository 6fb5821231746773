// Package historystore keeps an append-only, expiring log of conversation
// turns per session. Content validation is the caller's responsibility: the
// store persists whatever it is given, empty or not.
package historystore

import (
	"context"
	"errors"

	"github.com/oralmate/backend/internal/model/history"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	// ErrUnavailable marks transport-level store failures; callers must not
	// confuse it with an empty log.
	ErrUnavailable = errors.New("history store unavailable")
)

// Store 定义会话历史存储接口。
type Store interface {
	// Append adds an entry to the end of the session log and refreshes the
	// log's TTL.
	Append(ctx context.Context, sessionID string, entry history.Entry) error

	// ReadAll returns all entries in insertion order, or an empty slice when
	// the log is absent or expired.
	ReadAll(ctx context.Context, sessionID string) ([]history.Entry, error)
}
