package player

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yaori/paotuan/backend/internal/model/game"
	"github.com/yaori/paotuan/backend/internal/storage"
	"github.com/yaori/paotuan/backend/pkg/utils"
)

// Rules 是角色数值的边界配置。
type Rules struct {
	FreePoints   int
	MinAttribute int
	MaxAttribute int
}

// DefaultRules 使用模型层默认值。
func DefaultRules() Rules {
	return Rules{
		FreePoints:   game.DefaultFreePoints,
		MinAttribute: game.DefaultMinAttribute,
		MaxAttribute: game.DefaultMaxAttribute,
	}
}

// Handler 玩家角色的HTTP处理器
type Handler struct {
	store storage.Store
	rules Rules
}

// New 创建玩家处理器
func New(store storage.Store, rules Rules) *Handler {
	return &Handler{store: store, rules: rules}
}

// RegisterRoutes 注册玩家相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/players", h.handleJoin)
	r.Get("/sessions/{sessionID}/players", h.handleList)
	r.Get("/sessions/{sessionID}/players/{userID}", h.handleSheet)
	r.Delete("/sessions/{sessionID}/players/{userID}", h.handleLeave)
	r.Post("/sessions/{sessionID}/players/{userID}/allocate", h.handleAllocate)
	r.Post("/sessions/{sessionID}/players/{userID}/lock", h.handleLock)
	r.Post("/sessions/{sessionID}/players/{userID}/unlock", h.handleUnlock)
	r.Post("/sessions/{sessionID}/players/{userID}/reset", h.handleReset)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var payload struct {
		UserID        string `json:"userId"`
		CharacterName string `json:"characterName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if existing, err := h.store.GetPlayer(r.Context(), sessionID, payload.UserID); err == nil {
		utils.RespondJSON(w, http.StatusOK, existing)
		return
	}

	created, err := h.store.CreatePlayer(r.Context(), sessionID, payload.UserID, payload.CharacterName)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.rules.FreePoints > 0 && created.FreePoints != h.rules.FreePoints {
		created.FreePoints = h.rules.FreePoints
		if err := h.store.SavePlayer(r.Context(), created); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	players, err := h.store.GetPlayersInSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, players)
}

func (h *Handler) handleSheet(w http.ResponseWriter, r *http.Request) {
	player, ok := h.loadPlayer(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, player)
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := chi.URLParam(r, "userID")
	if err := h.store.DeletePlayer(r.Context(), sessionID, userID); err != nil {
		if errors.Is(err, storage.ErrPlayerNotFound) {
			utils.RespondError(w, http.StatusNotFound, "player not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Attribute string `json:"attribute"`
		Points    int    `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	player, ok := h.loadPlayer(w, r)
	if !ok {
		return
	}
	if err := player.AllocatePoints(payload.Attribute, payload.Points, h.rules.MinAttribute, h.rules.MaxAttribute); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, game.ErrCharacterLocked) {
			status = http.StatusConflict
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	if err := h.store.SavePlayer(r.Context(), player); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, player)
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	player, ok := h.loadPlayer(w, r)
	if !ok {
		return
	}
	if err := player.Lock(); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	if err := h.store.SavePlayer(r.Context(), player); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, player)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	player, ok := h.loadPlayer(w, r)
	if !ok {
		return
	}
	if err := player.Unlock(); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	if err := h.store.SavePlayer(r.Context(), player); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, player)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	player, ok := h.loadPlayer(w, r)
	if !ok {
		return
	}
	refunded, err := player.ResetPoints()
	if err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	if err := h.store.SavePlayer(r.Context(), player); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"refunded": refunded, "player": player})
}

func (h *Handler) loadPlayer(w http.ResponseWriter, r *http.Request) (*game.Player, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := chi.URLParam(r, "userID")
	player, err := h.store.GetPlayer(r.Context(), sessionID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrPlayerNotFound) {
			utils.RespondError(w, http.StatusNotFound, "player not found")
		} else {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return player, true
}
