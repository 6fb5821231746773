package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// External 连接远程处理管线。
type External struct {
	// URL 形如 ws://ai-service:8082/stream。
	URL              string
	HandshakeTimeout time.Duration
}

// NewExternal 创建远程管线拨号器。
func NewExternal(rawURL string, handshakeTimeout time.Duration) *External {
	return &External{URL: rawURL, HandshakeTimeout: handshakeTimeout}
}

// Dial 建立到上游管线的 WebSocket 连接，会话与用户标识通过查询参数传递。
func (e *External) Dial(ctx context.Context, sessionID, userID string) (Conn, error) {
	u, err := url.Parse(e.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline url %q: %w", e.URL, err)
	}

	q := u.Query()
	q.Set("sessionId", sessionID)
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	dialer := &websocket.Dialer{
		HandshakeTimeout: e.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("pipeline dial failed: %w", err)
	}

	return conn, nil
}
