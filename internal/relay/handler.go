package relay

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oralmate/backend/internal/auth"
	"github.com/oralmate/backend/internal/pipeline"
)

var errSessionRequired = errors.New("sessionId is required")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 浏览器端无法自定义 WS 握手头，跨域校验交给部署层。
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler 暴露实时语音对话的 WebSocket 入口。
type Handler struct {
	gate        *auth.Gate
	dialer      pipeline.Dialer
	dialTimeout time.Duration
}

// NewHandler 创建 WebSocket 处理器。
func NewHandler(gate *auth.Gate, dialer pipeline.Dialer, dialTimeout time.Duration) *Handler {
	return &Handler{gate: gate, dialer: dialer, dialTimeout: dialTimeout}
}

// Serve 处理一次 WebSocket 会话：升级、鉴权、桥接，直到连接结束。
// 鉴权放在升级之后，这样拒绝原因能通过关闭帧送达客户端；
// 鉴权失败时绝不触达上游管线。
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] websocket upgrade failed: %v", err)
		return
	}

	identity, err := h.gate.Verify(r.URL.Query().Get("token"))
	if err != nil {
		log.Printf("[relay] connection rejected: %v", err)
		rejectClient(conn, err)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		rejectClient(conn, errSessionRequired)
		return
	}

	bridge := New(conn, h.dialer, h.dialTimeout, sessionID, identity.UserID)
	if err := bridge.Run(r.Context()); err != nil {
		log.Printf("[relay] bridge ended session=%s: %v", sessionID, err)
	}
}

// rejectClient 用 1008 关闭帧回绝未通过准入的连接。
func rejectClient(conn *websocket.Conn, cause error) {
	reason := "authentication failed"
	switch {
	case errors.Is(cause, auth.ErrTokenMissing):
		reason = "token is required"
	case errors.Is(cause, auth.ErrTokenExpired):
		reason = "token expired"
	case errors.Is(cause, errSessionRequired):
		reason = errSessionRequired.Error()
	}

	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	deadline := time.Now().Add(closeWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, message, deadline)
	_ = conn.Close()
}
