// Package messaging 负责把 DM 输出实时推送给订阅了会话的客户端。
package messaging

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Frame 是推送给客户端的一条消息。
type Frame struct {
	Type      string    `json:"type"` // text | image
	SessionID string    `json:"sessionId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	clientBuffer   = 16
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	send      chan Frame
}

// Hub 维护每个会话的订阅者集合并负责广播。
// 发送缓冲写满的客户端被视为掉队，直接断开。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*client // sessionID -> clientID -> client
}

// NewHub 创建一个空的推送中心。
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[string]*client)}
}

// Subscribe 把一个 HTTP 请求升级为 websocket 并订阅指定会话，
// 连接断开时自动退订。
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan Frame, clientBuffer),
	}
	h.register(c)
	log.Printf("[hub] client %s subscribed to session %s", c.id, sessionID)

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

// SendText 向会话的所有订阅者广播一段文本。
func (h *Hub) SendText(sessionID, text string) {
	h.broadcast(sessionID, Frame{
		Type:      "text",
		SessionID: sessionID,
		Content:   text,
		Timestamp: time.Now().UTC(),
	})
}

// SendImage 向会话的所有订阅者广播一张 base64 编码的图片。
func (h *Hub) SendImage(sessionID, imageBase64 string) {
	h.broadcast(sessionID, Frame{
		Type:      "image",
		SessionID: sessionID,
		Content:   imageBase64,
		Timestamp: time.Now().UTC(),
	})
}

// SubscriberCount 返回会话当前的订阅者数量。
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) broadcast(sessionID string, frame Frame) {
	h.mu.RLock()
	var stale []*client
	for _, c := range h.clients[sessionID] {
		select {
		case c.send <- frame:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		log.Printf("[hub] client %s too slow, dropping", c.id)
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.sessionID] == nil {
		h.clients[c.sessionID] = make(map[string]*client)
	}
	h.clients[c.sessionID][c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	session, ok := h.clients[c.sessionID]
	if ok {
		if _, present := session[c.id]; present {
			delete(session, c.id)
			if len(session) == 0 {
				delete(h.clients, c.sessionID)
			}
			close(c.send)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("[hub] marshal frame: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 只消费控制帧并探测断连，客户端的游戏输入走 HTTP 接口。
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		log.Printf("[hub] client %s disconnected from session %s", c.id, c.sessionID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
