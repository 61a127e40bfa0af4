package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yaori/paotuan/backend/internal/engine"
	messageHandler "github.com/yaori/paotuan/backend/internal/handler/message"
	playerHandler "github.com/yaori/paotuan/backend/internal/handler/player"
	sessionHandler "github.com/yaori/paotuan/backend/internal/handler/session"
	middlewarePkg "github.com/yaori/paotuan/backend/internal/middleware"
	"github.com/yaori/paotuan/backend/internal/messaging"
	"github.com/yaori/paotuan/backend/internal/storage"
	"github.com/yaori/paotuan/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(store storage.Store, orchestrator *engine.Orchestrator, hub *messaging.Hub, rules playerHandler.Rules) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	sessions := sessionHandler.New(store, orchestrator)
	players := playerHandler.New(store, rules)
	messages := messageHandler.New(store, orchestrator)

	r.Route("/api", func(api chi.Router) {
		sessions.RegisterRoutes(api)
		players.RegisterRoutes(api)
		messages.RegisterRoutes(api)

		// 推送通道：客户端订阅会话后收到 DM 叙述和插画
		api.Get("/sessions/{sessionID}/ws", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			if _, err := store.GetSession(r.Context(), sessionID); err != nil {
				utils.RespondError(w, http.StatusNotFound, "session not found")
				return
			}
			if err := hub.Subscribe(w, r, sessionID); err != nil {
				log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
			}
		})
	})

	return r
}
