package message

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yaori/paotuan/backend/internal/engine"
	"github.com/yaori/paotuan/backend/internal/model/game"
	"github.com/yaori/paotuan/backend/internal/storage"
	"github.com/yaori/paotuan/backend/pkg/utils"
)

// Handler 接收玩家消息并异步交给编排器处理。
type Handler struct {
	store        storage.Store
	orchestrator *engine.Orchestrator
}

// New 创建消息处理器
func New(store storage.Store, orchestrator *engine.Orchestrator) *Handler {
	return &Handler{store: store, orchestrator: orchestrator}
}

// RegisterRoutes 注册消息相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/messages", h.handlePost)
}

// handlePost 校验会话后立即返回 202，回合处理在后台进行，
// 结果通过 websocket 推送。
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var payload struct {
		UserID  string `json:"userId"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" || payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId and content are required")
		return
	}

	session, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !session.IsActive() {
		utils.RespondError(w, http.StatusConflict, "session is not active")
		return
	}

	// 没有配置生成器时只把消息记入历史
	if h.orchestrator == nil {
		session.AddHistory(game.EntryPlayer, payload.Content, payload.UserID, "")
		if err := h.store.SaveSession(r.Context(), session); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		if err := h.orchestrator.HandleMessage(ctx, sessionID, payload.UserID, payload.Content); err != nil {
			log.Printf("[message] handle message for %s: %v", sessionID, err)
		}
	}()

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
