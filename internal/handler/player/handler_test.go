package player

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/yaori/paotuan/backend/internal/model/game"
	"github.com/yaori/paotuan/backend/internal/storage"
)

func setupRouter(t *testing.T) (*chi.Mux, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileStore err: %v", err)
	}
	if _, err := store.CreateSession(context.Background(), "chat-1", "世界"); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	handler := New(store, DefaultRules())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestJoinCreatesPlayer(t *testing.T) {
	r, store := setupRouter(t)

	resp := postJSON(t, r, "/sessions/chat-1/players", map[string]string{
		"userId": "u1", "characterName": "爱丽丝",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	player, err := store.GetPlayer(context.Background(), "chat-1", "u1")
	if err != nil {
		t.Fatalf("GetPlayer err: %v", err)
	}
	if player.FreePoints != game.DefaultFreePoints {
		t.Fatalf("free points: got %d", player.FreePoints)
	}
}

func TestJoinTwiceReturnsExisting(t *testing.T) {
	r, _ := setupRouter(t)
	postJSON(t, r, "/sessions/chat-1/players", map[string]string{"userId": "u1", "characterName": "爱丽丝"})

	resp := postJSON(t, r, "/sessions/chat-1/players", map[string]string{"userId": "u1", "characterName": "别名"})
	if resp.Code != http.StatusOK {
		t.Fatalf("rejoin: expected 200, got %d", resp.Code)
	}
	var player game.Player
	if err := json.Unmarshal(resp.Body.Bytes(), &player); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if player.CharacterName != "爱丽丝" {
		t.Fatalf("rejoin must not rename the character: %q", player.CharacterName)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)
	resp := postJSON(t, r, "/sessions/missing/players", map[string]string{"userId": "u1"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAllocateAndReset(t *testing.T) {
	r, store := setupRouter(t)
	postJSON(t, r, "/sessions/chat-1/players", map[string]string{"userId": "u1", "characterName": "爱丽丝"})

	resp := postJSON(t, r, "/sessions/chat-1/players/u1/allocate", map[string]any{
		"attribute": "力量", "points": 5,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("allocate: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	player, _ := store.GetPlayer(context.Background(), "chat-1", "u1")
	if player.Attributes.Strength != game.DefaultBaseAttribute+5 {
		t.Fatalf("strength after allocate: got %d", player.Attributes.Strength)
	}

	resp = postJSON(t, r, "/sessions/chat-1/players/u1/reset", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", resp.Code)
	}
	player, _ = store.GetPlayer(context.Background(), "chat-1", "u1")
	if player.Attributes.Strength != game.DefaultBaseAttribute || player.FreePoints != game.DefaultFreePoints {
		t.Fatalf("reset should restore defaults: %+v", player.Attributes)
	}
}

func TestAllocateBeyondMaxRejected(t *testing.T) {
	r, _ := setupRouter(t)
	postJSON(t, r, "/sessions/chat-1/players", map[string]string{"userId": "u1", "characterName": "爱丽丝"})

	resp := postJSON(t, r, "/sessions/chat-1/players/u1/allocate", map[string]any{
		"attribute": "力量", "points": 20,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLockBlocksAllocation(t *testing.T) {
	r, _ := setupRouter(t)
	postJSON(t, r, "/sessions/chat-1/players", map[string]string{"userId": "u1", "characterName": "爱丽丝"})

	if resp := postJSON(t, r, "/sessions/chat-1/players/u1/lock", nil); resp.Code != http.StatusOK {
		t.Fatalf("lock: expected 200, got %d", resp.Code)
	}
	resp := postJSON(t, r, "/sessions/chat-1/players/u1/allocate", map[string]any{
		"attribute": "力量", "points": 1,
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("locked allocate: expected 409, got %d", resp.Code)
	}

	if resp := postJSON(t, r, "/sessions/chat-1/players/u1/unlock", nil); resp.Code != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d", resp.Code)
	}
	resp = postJSON(t, r, "/sessions/chat-1/players/u1/allocate", map[string]any{
		"attribute": "力量", "points": 1,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("allocate after unlock: expected 200, got %d", resp.Code)
	}
}

func TestLeaveRemovesPlayer(t *testing.T) {
	r, store := setupRouter(t)
	postJSON(t, r, "/sessions/chat-1/players", map[string]string{"userId": "u1", "characterName": "爱丽丝"})

	req := httptest.NewRequest(http.MethodDelete, "/sessions/chat-1/players/u1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("leave: expected 200, got %d", resp.Code)
	}

	session, _ := store.GetSession(context.Background(), "chat-1")
	if session.HasPlayer("u1") {
		t.Fatal("roster should not contain u1 after leave")
	}
}
