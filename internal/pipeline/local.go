package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/websocket"

	"github.com/oralmate/backend/internal/model/history"
	"github.com/oralmate/backend/internal/store/historystore"
)

const tutorSystemPrompt = "You are a friendly English oral tutor. Keep replies short, " +
	"conversational and encouraging, and gently correct the learner's mistakes."

// historyContextLimit 限制带入模型的历史轮数。
const historyContextLimit = 10

// Local 在进程内模拟处理管线，用于联调与无上游部署。
// 配置了 Ark 模型时由大模型生成回复，否则返回固定应答。
type Local struct {
	histories historystore.Store
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewLocal 创建本地管线。chatModel 可以为 nil。
func NewLocal(ctx context.Context, histories historystore.Store, chatModel model.ChatModel) (*Local, error) {
	l := &Local{histories: histories}

	if chatModel != nil {
		promptTemplate := prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		)

		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(promptTemplate)
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compile tutor chain: %w", err)
		}
		l.chain = runnable
	}

	return l, nil
}

// Dial 为一个桥接实例创建独立的管线会话。
func (l *Local) Dial(_ context.Context, sessionID, userID string) (Conn, error) {
	conn := &localConn{
		pipeline:  l,
		sessionID: sessionID,
		userID:    userID,
		in:        make(chan localFrame, 64),
		out:       make(chan localFrame, 64),
		done:      make(chan struct{}),
	}
	go conn.serve()
	return conn, nil
}

type localFrame struct {
	messageType int
	data        []byte
}

// localConn 是一条进程内的管线连接，每个桥接实例独享一条。
type localConn struct {
	pipeline  *Local
	sessionID string
	userID    string

	in   chan localFrame
	out  chan localFrame
	done chan struct{}

	audioBytes int
}

func (c *localConn) ReadMessage() (int, []byte, error) {
	select {
	case frame, ok := <-c.out:
		if !ok {
			return 0, nil, ErrClosed
		}
		return frame.messageType, frame.data, nil
	case <-c.done:
		// Drain anything already produced before reporting closure.
		select {
		case frame, ok := <-c.out:
			if ok {
				return frame.messageType, frame.data, nil
			}
		default:
		}
		return 0, nil, ErrClosed
	}
}

func (c *localConn) WriteMessage(messageType int, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case <-c.done:
		return ErrClosed
	case c.in <- localFrame{messageType: messageType, data: buf}:
		return nil
	}
}

func (c *localConn) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

// serve 顺序消费入站帧，保证单方向内的处理顺序。
func (c *localConn) serve() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.in:
			switch frame.messageType {
			case websocket.BinaryMessage:
				c.audioBytes += len(frame.data)
			case websocket.TextMessage:
				c.handleControl(frame.data)
			}
		}
	}
}

type controlEnvelope struct {
	Type    string `json:"type"`
	Payload struct {
		Text string `json:"text"`
	} `json:"payload"`
}

func (c *localConn) handleControl(data []byte) {
	var msg controlEnvelope
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendJSON(map[string]any{
			"type":    "error",
			"payload": map[string]string{"message": "invalid message format"},
		})
		return
	}

	switch msg.Type {
	case "text_message":
		if msg.Payload.Text == "" {
			return
		}
		c.respond(msg.Payload.Text)
	case "user_audio_ended":
		if c.audioBytes == 0 {
			return
		}
		// 没有真实 ASR，用占位转写描述收到的音频量。
		transcript := fmt.Sprintf("(spoke for about %.1f seconds)", float64(c.audioBytes)/2/16000)
		c.audioBytes = 0
		c.sendJSON(map[string]any{"type": "transcription", "text": transcript})
		c.respond(transcript)
	case "ping":
		c.sendJSON(map[string]any{"type": "pong"})
	default:
		c.sendJSON(map[string]any{
			"type":    "error",
			"payload": map[string]string{"message": "unknown message type"},
		})
	}
}

// respond 生成一轮回复：文本控制帧 + 一段 PCM 音频帧，并维护会话历史。
func (c *localConn) respond(userText string) {
	ctx := context.Background()

	past := c.loadContext(ctx)
	reply := c.generateReply(ctx, past, userText)

	c.appendHistory(ctx, history.RoleUser, userText)
	c.appendHistory(ctx, history.RoleAssistant, reply)

	c.sendJSON(map[string]any{"type": "text_response", "payload": reply})

	// 没有真实 TTS，回放 100ms 的静音帧维持音频通路。
	c.send(websocket.BinaryMessage, make([]byte, 3200))
}

// loadContext 读取会话历史作为模型上下文，存储故障时降级为空上下文。
func (c *localConn) loadContext(ctx context.Context) []history.Entry {
	if c.pipeline.histories == nil {
		return nil
	}
	entries, err := c.pipeline.histories.ReadAll(ctx, c.sessionID)
	if err != nil {
		log.Printf("[pipeline] history read failed, using empty context: %v", err)
		return nil
	}
	return entries
}

func (c *localConn) generateReply(ctx context.Context, past []history.Entry, userText string) string {
	if c.pipeline.chain == nil {
		return fmt.Sprintf("I heard you say: %s. This is a mock response.", userText)
	}

	response, err := c.pipeline.chain.Invoke(ctx, map[string]any{
		"system":  tutorSystemPrompt,
		"history": buildHistoryMessages(past),
		"query":   userText,
	})
	if err != nil {
		log.Printf("[pipeline] tutor chain failed: %v", err)
		return "Sorry, I had trouble thinking of a reply. Could you say that again?"
	}
	return response.Content
}

// appendHistory 持久化一轮发言，空白内容不落库。
func (c *localConn) appendHistory(ctx context.Context, role history.Role, content string) {
	if c.pipeline.histories == nil || strings.TrimSpace(content) == "" {
		return
	}
	entry := history.Entry{Role: role, Content: content, Timestamp: time.Now().UTC()}
	if err := c.pipeline.histories.Append(ctx, c.sessionID, entry); err != nil {
		log.Printf("[pipeline] history append failed session=%s: %v", c.sessionID, err)
	}
}

func buildHistoryMessages(entries []history.Entry) []*schema.Message {
	if len(entries) == 0 {
		return nil
	}

	startIdx := 0
	if len(entries) > historyContextLimit {
		startIdx = len(entries) - historyContextLimit
	}

	messages := make([]*schema.Message, 0, len(entries)-startIdx)
	for _, entry := range entries[startIdx:] {
		switch entry.Role {
		case history.RoleUser:
			messages = append(messages, schema.UserMessage(entry.Content))
		case history.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}
	return messages
}

func (c *localConn) sendJSON(payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[pipeline] marshal reply failed: %v", err)
		return
	}
	c.send(websocket.TextMessage, data)
}

func (c *localConn) send(messageType int, data []byte) {
	select {
	case <-c.done:
	case c.out <- localFrame{messageType: messageType, data: data}:
	}
}
