// Package handler wires HTTP routes to core services.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oralmate/backend/internal/auth"
	"github.com/oralmate/backend/internal/handler/conversation"
	historyHandler "github.com/oralmate/backend/internal/handler/history"
	middlewarePkg "github.com/oralmate/backend/internal/middleware"
	"github.com/oralmate/backend/internal/relay"
	"github.com/oralmate/backend/internal/store/historystore"
	"github.com/oralmate/backend/internal/store/sessionstore"
	"github.com/oralmate/backend/pkg/utils"
)

const serviceName = "oralmate-backend"

// NewRouter wires HTTP routes to core services.
func NewRouter(gate *auth.Gate, sessions sessionstore.Store, histories historystore.Store, relayHandler *relay.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", handleHealth)

	conversationHandler := conversation.New(sessions)
	historiesHandler := historyHandler.New(histories)

	r.Route("/api", func(api chi.Router) {
		// WebSocket 入口自带查询参数鉴权，不走 Bearer 中间件。
		api.Get("/ws", relayHandler.Serve)

		api.Group(func(protected chi.Router) {
			protected.Use(gate.Middleware)
			conversationHandler.RegisterRoutes(protected)
			historiesHandler.RegisterRoutes(protected)
		})
	})

	return r
}

// handleHealth 健康检查
func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
