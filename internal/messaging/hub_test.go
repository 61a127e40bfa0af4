package messaging

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Subscribe(w, r, sessionID); err != nil {
			t.Errorf("Subscribe err: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read err: %v", err)
	}
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return frame
}

func TestHubBroadcastsText(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "chat-1")

	waitForSubscriber(t, hub, "chat-1")
	hub.SendText("chat-1", "夜幕降临")

	frame := readFrame(t, conn)
	if frame.Type != "text" || frame.Content != "夜幕降临" || frame.SessionID != "chat-1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestHubBroadcastsImage(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "chat-1")

	waitForSubscriber(t, hub, "chat-1")
	hub.SendImage("chat-1", "aGVsbG8=")

	frame := readFrame(t, conn)
	if frame.Type != "image" || frame.Content != "aGVsbG8=" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestHubScopesBySession(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "chat-1")

	waitForSubscriber(t, hub, "chat-1")
	hub.SendText("chat-2", "别的会话")
	hub.SendText("chat-1", "这个会话")

	frame := readFrame(t, conn)
	if frame.Content != "这个会话" {
		t.Fatalf("should only receive own session frames: %+v", frame)
	}
}

func TestHubUnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "chat-1")
	waitForSubscriber(t, hub, "chat-1")

	conn.Close()
	deadline := time.After(2 * time.Second)
	for hub.SubscriberCount("chat-1") != 0 {
		select {
		case <-deadline:
			t.Fatal("disconnected client should be unregistered")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForSubscriber(t *testing.T, hub *Hub, sessionID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for hub.SubscriberCount(sessionID) == 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
