package websocket

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labmaze/labmaze/game/session"
	"github.com/labmaze/labmaze/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Per-client outbound buffer; a client that falls this far behind is
	// dropped rather than allowed to stall broadcasts.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Hub tracks the live connections of every session and fans server frames
// out to them. Session state lives in the session package; the hub only
// maps (token, connection id) pairs to sockets.
type Hub struct {
	directory *session.Directory

	mu    sync.RWMutex
	conns map[string]map[string]*Client // token -> connection id -> client
}

// NewHub creates a hub backed by the given session directory.
func NewHub(directory *session.Directory) *Hub {
	return &Hub{
		directory: directory,
		conns:     make(map[string]map[string]*Client),
	}
}

// ServeWS upgrades an HTTP request into a session-bound websocket
// connection and starts its read/write pumps. The connection id is minted
// here and lives exactly as long as the socket; a reconnecting client gets
// a fresh one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, token string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for session %s: %v", token, err)
		return
	}

	sess := h.directory.GetOrCreate(token)

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		token:  token,
		connID: uuid.NewString(),
		sess:   sess,
	}

	h.register(client)

	go client.writePump()
	go client.readPump()
}

// SendTo delivers one frame to one connection. Unknown connections are
// ignored (the client may have just dropped).
func (h *Hub) SendTo(token, connectionID string, frame any) {
	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("Failed to encode frame for %s: %v", connectionID, err)
		return
	}

	h.mu.RLock()
	client := h.conns[token][connectionID]
	h.mu.RUnlock()

	if client != nil {
		client.enqueue(data)
	}
}

// Broadcast delivers one frame to each listed connection. The recipient
// list is a snapshot taken by the caller from the session; delivery
// happens entirely outside any session lock.
func (h *Hub) Broadcast(token string, connectionIDs []string, frame any) {
	if len(connectionIDs) == 0 {
		return
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("Failed to encode broadcast frame: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(connectionIDs))
	for _, id := range connectionIDs {
		if c := h.conns[token][id]; c != nil {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}

// ConnectionCount returns the number of live sockets for a session.
func (h *Hub) ConnectionCount(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[token])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.conns[c.token] == nil {
		h.conns[c.token] = make(map[string]*Client)
	}
	h.conns[c.token][c.connID] = c
	total := len(h.conns[c.token])
	h.mu.Unlock()

	log.Printf("Connection %s joined session %s (connections: %d)", c.connID, c.token, total)
}

// unregister removes a client and closes its send channel. Safe to call
// more than once for the same client.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.conns[c.token]
	if !ok {
		return
	}
	if _, ok := clients[c.connID]; !ok {
		return
	}
	delete(clients, c.connID)
	c.markClosed()
	close(c.send)

	if len(clients) == 0 {
		delete(h.conns, c.token)
	}

	log.Printf("Connection %s left session %s (remaining: %d)", c.connID, c.token, len(clients))
}
