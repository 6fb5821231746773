// Package history 提供会话历史的 REST 接口。
package history

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oralmate/backend/internal/auth"
	historyModel "github.com/oralmate/backend/internal/model/history"
	"github.com/oralmate/backend/internal/store/historystore"
	"github.com/oralmate/backend/pkg/utils"
)

// Handler 历史服务的HTTP处理器
type Handler struct {
	histories historystore.Store
}

// New 创建历史处理器
func New(histories historystore.Store) *Handler {
	return &Handler{histories: histories}
}

// RegisterRoutes 注册历史相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history/session/{sessionID}", h.handleReadSession)
	r.Post("/history/messages", h.handleAppendMessage)
}

// handleReadSession 按插入顺序返回一个会话的全部发言。
func (h *Handler) handleReadSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	entries, err := h.histories.ReadAll(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	if entries == nil {
		entries = []historyModel.Entry{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"entries":   entries,
	})
}

// handleAppendMessage 追加一条发言。空白内容在这一层过滤，
// 不会进入存储。
func (h *Handler) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		SessionID string `json:"sessionId"`
		Role      string `json:"role"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	role := historyModel.Role(payload.Role)
	if !role.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "role must be user, assistant or system")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	entry := historyModel.Entry{
		Role:      role,
		Content:   payload.Content,
		Timestamp: time.Now().UTC(),
	}
	if err := h.histories.Append(r.Context(), payload.SessionID, entry); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "stored"})
}
