// Package transport fans spectrum frames out to websocket clients.
package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xon-patrick/SongApp/pkg/logger"
)

// Transport sends values to whoever is listening. Implementations are thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// WebSocketHub is an http.Handler that upgrades requests and broadcasts every Send
// to all connected clients as JSON. Messages are dropped when the queue is full.
type WebSocketHub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	log       *logger.Logger
}

func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	if log == nil {
		log = logger.GetLogger()
	}
	hub := &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
		log:       log,
	}
	go hub.handleBroadcasts()
	return hub
}

func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.clientsMu.Unlock()
	h.log.Debugf("websocket client connected, total: %d", total)

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	total := len(h.clients)
	h.clientsMu.Unlock()
	h.log.Debugf("websocket client disconnected, total: %d", total)
}

func (h *WebSocketHub) handleBroadcasts() {
	for {
		select {
		case <-h.done:
			return
		case data := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(data); err != nil {
					h.log.Debugf("websocket send: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *WebSocketHub) Send(data any) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	select {
	case h.broadcast <- data:
	default:
	}
	return nil
}

// Close disconnects every client and stops the broadcaster.
func (h *WebSocketHub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.clientsMu.Lock()
		for client := range h.clients {
			client.Close()
		}
		h.clients = make(map[*websocket.Conn]bool)
		h.clientsMu.Unlock()
	})
	return nil
}

var _ Transport = (*WebSocketHub)(nil)
