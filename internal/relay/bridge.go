// Package relay bridges one authenticated client WebSocket with one pipeline
// connection and pumps frames between them until either side closes.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oralmate/backend/internal/pipeline"
)

// State 描述桥接的生命周期阶段，只能单向推进。
type State int32

const (
	StateConnecting State = iota
	StateBridging
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateBridging:
		return "bridging"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const closeWriteTimeout = 5 * time.Second

// Bridge 在单个客户端连接与单条管线连接之间双向转发帧。
// 每个实例独占它的两条连接，任何一侧结束都会对称地拆除另一侧。
type Bridge struct {
	client      *websocket.Conn
	dialer      pipeline.Dialer
	dialTimeout time.Duration
	sessionID   string
	userID      string

	upstream pipeline.Conn
	state    atomic.Int32

	clientOnce   sync.Once
	upstreamOnce sync.Once
}

// New 创建一个桥接实例。客户端连接必须已通过鉴权。
func New(client *websocket.Conn, dialer pipeline.Dialer, dialTimeout time.Duration, sessionID, userID string) *Bridge {
	b := &Bridge{
		client:      client,
		dialer:      dialer,
		dialTimeout: dialTimeout,
		sessionID:   sessionID,
		userID:      userID,
	}
	b.state.Store(int32(StateConnecting))
	return b
}

// State 返回当前状态。
func (b *Bridge) State() State {
	return State(b.state.Load())
}

type pumpResult struct {
	side string
	err  error
}

// Run 建立上游连接并转发帧直到任一侧关闭，返回时两侧连接均已关闭。
func (b *Bridge) Run(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, b.dialTimeout)
	upstream, err := b.dialer.Dial(dialCtx, b.sessionID, b.userID)
	cancel()
	if err != nil {
		log.Printf("[relay] pipeline dial failed session=%s: %v", b.sessionID, err)
		b.state.Store(int32(StateClosed))
		b.closeClient(websocket.CloseInternalServerErr, "upstream unavailable")
		return fmt.Errorf("pipeline dial failed: %w", err)
	}
	b.upstream = upstream
	b.state.Store(int32(StateBridging))

	log.Printf("[relay] bridging session=%s user=%s", b.sessionID, b.userID)

	// 欢迎帧在泵启动前写出，保证它是客户端收到的第一帧。
	welcome, _ := json.Marshal(map[string]any{
		"type":      "info",
		"message":   "connected to conversation pipeline",
		"sessionId": b.sessionID,
	})
	if err := b.client.WriteMessage(websocket.TextMessage, welcome); err != nil {
		b.teardown(pumpResult{side: "client", err: err})
		return fmt.Errorf("write welcome failed: %w", err)
	}

	results := make(chan pumpResult, 2)
	go func() {
		results <- pumpResult{side: "client", err: b.pumpClientToUpstream()}
	}()
	go func() {
		results <- pumpResult{side: "upstream", err: b.pumpUpstreamToClient()}
	}()

	first := <-results
	b.teardown(first)

	// Closing both legs unblocks the second pump's pending read.
	<-results

	b.state.Store(int32(StateClosed))
	log.Printf("[relay] closed session=%s (%s side ended: %v)", b.sessionID, first.side, first.err)
	return nil
}

// pumpClientToUpstream 将客户端帧原样转发给管线，保留二进制/文本帧型。
// 客户端载荷在这一层不做任何解析。
func (b *Bridge) pumpClientToUpstream() error {
	for {
		messageType, data, err := b.client.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if err := b.upstream.WriteMessage(messageType, data); err != nil {
			return err
		}
	}
}

// pumpUpstreamToClient 对每个管线帧独立分类后转发：能解析为完整 JSON
// 的作为文本控制帧，否则作为二进制媒体帧。二进制音频恰好构成合法 JSON
// 时会被误判，这是对既有线上协议的兼容，保留不改。
func (b *Bridge) pumpUpstreamToClient() error {
	for {
		_, data, err := b.upstream.ReadMessage()
		if err != nil {
			return err
		}

		messageType := websocket.BinaryMessage
		if json.Valid(data) {
			messageType = websocket.TextMessage
		}
		if err := b.client.WriteMessage(messageType, data); err != nil {
			return err
		}
	}
}

// teardown 对称关闭两侧连接，可重复调用。
func (b *Bridge) teardown(cause pumpResult) {
	b.state.CompareAndSwap(int32(StateBridging), int32(StateClosing))

	if cause.side == "upstream" {
		b.closeClient(websocket.CloseInternalServerErr, "upstream connection closed")
	} else {
		b.closeClient(websocket.CloseNormalClosure, "")
	}
	b.closeUpstream()
}

// closeClient 发送关闭帧并关闭客户端连接，幂等。
func (b *Bridge) closeClient(code int, reason string) {
	b.clientOnce.Do(func() {
		message := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(closeWriteTimeout)
		if err := b.client.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
			log.Printf("[relay] write close failed session=%s: %v", b.sessionID, err)
		}
		_ = b.client.Close()
	})
}

// closeUpstream 关闭管线连接，幂等。
func (b *Bridge) closeUpstream() {
	b.upstreamOnce.Do(func() {
		if b.upstream != nil {
			_ = b.upstream.Close()
		}
	})
}
