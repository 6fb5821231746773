// Package conversation 提供会话发起与查询的 REST 接口。
package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oralmate/backend/internal/auth"
	"github.com/oralmate/backend/internal/model/session"
	"github.com/oralmate/backend/internal/store/sessionstore"
	"github.com/oralmate/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	sessions sessionstore.Store
}

// New 创建会话处理器
func New(sessions sessionstore.Store) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversation/start", h.handleStart)
	r.Get("/conversation/sessions", h.handleListSessions)
}

// handleStart 开始或恢复一次对话
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		GoalID   string `json:"goalId"`
		ForceNew bool   `json:"forceNew"`
	}
	// 空请求体等价于默认目标、不强制新建。
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, resumed, err := h.sessions.StartOrResume(r.Context(), identity.UserID, payload.GoalID, payload.ForceNew)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	goalID := payload.GoalID
	if goalID == "" {
		goalID = session.DefaultGoal
	}
	sess := session.Session{
		ID:     sessionID,
		UserID: identity.UserID,
		GoalID: goalID,
	}
	// 恢复的会话创建时间不在响应里重报。
	if !resumed {
		sess.CreatedAt = time.Now().UTC()
	}

	utils.RespondJSON(w, http.StatusOK, struct {
		session.Session
		Resumed bool `json:"resumed"`
	}{Session: sess, Resumed: resumed})
}

// handleListSessions 列出当前活跃的会话，最近的排在最前。
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionIDs, err := h.sessions.ListActive(r.Context(), identity.UserID, r.URL.Query().Get("goalId"))
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	if sessionIDs == nil {
		sessionIDs = []string{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessionIds": sessionIDs})
}
