package main

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/services"
	"github.com/kimhsiao/recordkit/internal/verify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Only allow connections from localhost
		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			host = r.Host
		}
		return host == "localhost" || host == "127.0.0.1" || host == "::1"
	},
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu            sync.Mutex
	subscriptions map[string]bool
}

// wants reports whether the client should receive messageType. A client
// without subscriptions receives everything.
func (c *WSClient) wants(messageType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[messageType]
}

type outbound struct {
	messageType string
	payload     []byte
}

// WSHub maintains active client connections and broadcasts messages.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan outbound
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

const (
	EventVerifyStarted   = "verify.started"
	EventVerifyFile      = "verify.file"
	EventVerifyCompleted = "verify.completed"
	EventVerifyFailed    = "verify.failed"

	EventNormalizeStarted   = "normalize.started"
	EventNormalizeCompleted = "normalize.completed"
	EventNormalizeFailed    = "normalize.failed"

	EventAccessLogsStarted   = "accesslogs.started"
	EventAccessLogsFile      = "accesslogs.file"
	EventAccessLogsCompleted = "accesslogs.completed"
	EventAccessLogsFailed    = "accesslogs.failed"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("websocket client connected", map[string]interface{}{"client": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("websocket client disconnected", map[string]interface{}{"client": client.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				if !client.wants(msg.messageType) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// send buffer full, drop the client
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all subscribed clients.
func (h *WSHub) Broadcast(messageType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("failed to marshal websocket message", err, map[string]interface{}{"type": messageType})
		return
	}

	h.broadcast <- outbound{messageType: messageType, payload: bytes}
}

// =====================================================
// Verification events
// =====================================================

func (h *WSHub) BroadcastVerifyStarted(folder string) {
	h.Broadcast(EventVerifyStarted, map[string]interface{}{"folder": folder})
}

// BroadcastVerifyFile reports one checked file with the running count.
func (h *WSHub) BroadcastVerifyFile(done, total int, f models.FileReport) {
	h.Broadcast(EventVerifyFile, map[string]interface{}{
		"done":           done,
		"total":          total,
		"progress":       verify.Progress(done, total),
		"name":           f.Name,
		"classification": f.Classification,
	})
}

func (h *WSHub) BroadcastVerifyCompleted(r *models.VerificationReport) {
	h.Broadcast(EventVerifyCompleted, map[string]interface{}{
		"run_id":     r.RunID,
		"folder":     r.Folder,
		"verified":   r.VerifiedFiles(),
		"collisions": r.Collisions(),
		"hashes":     r.HashesCount,
	})
}

func (h *WSHub) BroadcastVerifyFailed(folder string, err error) {
	h.Broadcast(EventVerifyFailed, map[string]interface{}{"folder": folder, "error": err.Error()})
}

// =====================================================
// Normalization and access-log events
// =====================================================

// WatchNormalize forwards the service notifications to the clients.
func (h *WSHub) WatchNormalize(svc *services.NormalizeService) {
	svc.SetEventCallbacks(
		func(root string) {
			h.Broadcast(EventNormalizeStarted, map[string]interface{}{"root": root})
		},
		func(root string, s *services.NormalizeSummary) {
			h.Broadcast(EventNormalizeCompleted, map[string]interface{}{
				"root":      root,
				"converted": s.Converted,
				"skipped":   s.Skipped,
				"moved":     s.Moved,
			})
		},
		func(root string, err error) {
			h.Broadcast(EventNormalizeFailed, map[string]interface{}{"root": root, "error": err.Error()})
		},
	)
}

// WatchAccessLogs forwards the service notifications to the clients.
func (h *WSHub) WatchAccessLogs(svc *services.AccessLogService) {
	svc.SetEventCallbacks(
		func(root string) {
			h.Broadcast(EventAccessLogsStarted, map[string]interface{}{"root": root})
		},
		func(path, sheetPath string, err error) {
			data := map[string]interface{}{"file": path, "sheet": sheetPath}
			if err != nil {
				data["error"] = err.Error()
			}
			h.Broadcast(EventAccessLogsFile, data)
		},
		func(root string, s *services.AccessLogSummary) {
			h.Broadcast(EventAccessLogsCompleted, map[string]interface{}{
				"root":     root,
				"files":    s.Files,
				"sheets":   len(s.Sheets),
				"failures": s.Failures,
			})
		},
		func(root string, err error) {
			h.Broadcast(EventAccessLogsFailed, map[string]interface{}{"root": root, "error": err.Error()})
		},
	)
}

// readPump pumps messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket read failed", map[string]interface{}{"client": c.id, "error": err.Error()})
			}
			break
		}

		var msg struct {
			Action string   `json:"action"`
			Events []string `json:"events"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			logging.Debug("invalid websocket message", map[string]interface{}{"client": c.id})
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})

		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()

		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a control message for this client only.
func (c *WSClient) reply(envelope map[string]interface{}) {
	envelope["timestamp"] = time.Now().Unix()
	bytes, _ := json.Marshal(envelope)

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- bytes:
	default:
	}
}

// HandleWebSocket handles WebSocket connections.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:            time.Now().Format("20060102150405.000000") + "-" + r.RemoteAddr,
			conn:          conn,
			send:          make(chan []byte, 256),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
