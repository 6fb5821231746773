// Package pipeline abstracts the speech/response processing backend the relay
// forwards to. Exactly two variants exist: External dials a remote service
// over WebSocket, Local runs a mock tutor in-process.
package pipeline

import (
	"context"
	"errors"
)

// ErrClosed is returned by reads and writes on a closed pipeline connection.
var ErrClosed = errors.New("pipeline connection closed")

// Conn 是通往管线一侧的双工连接，与 gorilla 的消息接口保持一致。
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer 为每个桥接实例建立一条全新的管线连接，连接从不跨桥共享。
type Dialer interface {
	Dial(ctx context.Context, sessionID, userID string) (Conn, error)
}
