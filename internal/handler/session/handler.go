package session

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

// Handler 会话生命周期的HTTP处理器
type Handler struct {
	store        storage.Store
	orchestrator *engine.Orchestrator
}

// New 创建会话处理器。orchestrator 可以为 nil，此时不生成开场白。
func New(store storage.Store, orchestrator *engine.Orchestrator) *Handler {
	return &Handler{store: store, orchestrator: orchestrator}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Post("/sessions/{sessionID}/pause", h.handlePause)
	r.Post("/sessions/{sessionID}/resume", h.handleResume)
	r.Post("/sessions/{sessionID}/end", h.handleEnd)
	r.Post("/sessions/{sessionID}/npcs", h.handleAddNPC)
	r.Post("/sessions/{sessionID}/lore", h.handleAddLore)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		WorldName string `json:"worldName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" || payload.WorldName == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId and worldName are required")
		return
	}

	session, err := h.store.CreateSession(r.Context(), payload.SessionID, payload.WorldName)
	if err != nil {
		if errors.Is(err, storage.ErrSessionExists) {
			utils.RespondError(w, http.StatusConflict, "session already exists")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.orchestrator != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := h.orchestrator.OpeningNarration(ctx, session.ID); err != nil {
				log.Printf("[session] opening narration: %v", err)
			}
		}()
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, game.StatusPaused)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, game.StatusActive)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.store.EndSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *Handler) handleAddNPC(w http.ResponseWriter, r *http.Request) {
	var npc game.NPCState
	if err := json.NewDecoder(r.Body).Decode(&npc); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if npc.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	session.AddNPC(npc)
	if err := h.store.SaveSession(r.Context(), session); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session.NPCs[npc.Name])
}

func (h *Handler) handleAddLore(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Entry string `json:"entry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Entry == "" {
		utils.RespondError(w, http.StatusBadRequest, "entry is required")
		return
	}

	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	session.Lore = append(session.Lore, payload.Entry)
	if err := h.store.SaveSession(r.Context(), session); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]int{"loreCount": len(session.Lore)})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status game.Status) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	session.Status = status
	if err := h.store.SaveSession(r.Context(), session); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
		} else {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return session, true
}
