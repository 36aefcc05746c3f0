package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labmaze/labmaze/game/session"
	"github.com/labmaze/labmaze/protocol"
)

// Client is one live connection bound to one session. The read pump is the
// connection handler: it decodes inbound frames in arrival order and
// drives the session state machine; everything session-related for this
// connection happens on that single goroutine.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	token  string
	connID string
	sess   *session.Session

	// joined flips once the connection is bound to session state; only the
	// read pump touches it.
	joined bool

	mu     sync.Mutex
	closed bool
}

// enqueue queues an outbound frame without blocking. A client whose buffer
// is full is disconnected so it cannot stall the rest of the session.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		log.Printf("Connection %s send buffer full, dropping connection", c.connID)
		c.conn.Close()
	}
}

// markClosed stops future enqueues; the hub calls it right before closing
// the send channel.
func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// readPump processes inbound frames until the connection drops, then runs
// the close path (leave-lobby or archive-for-reconnect) as an ordinary
// session mutation.
func (c *Client) readPump() {
	defer func() {
		c.handleClose()
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on %s: %v", c.connID, err)
			}
			return
		}

		msg, err := protocol.DecodeClient(data)
		if err != nil {
			// Protocol error: log and drop the frame, keep the connection.
			log.Printf("Dropping malformed frame from %s: %v", c.connID, err)
			continue
		}

		// Message traffic counts as session activity for expiry purposes.
		c.hub.directory.Touch(c.token)

		c.dispatch(msg)
	}
}

// dispatch routes one decoded frame. Frames that do not apply to the
// current phase are silent no-ops per the protocol's error taxonomy.
func (c *Client) dispatch(msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypeJoinLobby:
		c.handleJoinLobby(msg.PersistentID)
	case protocol.TypeSetReady:
		c.handleSetReady(msg.IsReady)
	case protocol.TypeSetName:
		if c.joined && !c.sess.Started() {
			roster := c.sess.SetName(c.connID, msg.Name)
			c.broadcastLobby(roster)
		}
	case protocol.TypeSetColor:
		if c.joined && !c.sess.Started() {
			roster := c.sess.SetColor(c.connID, msg.Color)
			c.broadcastLobby(roster)
		}
	case protocol.TypeMove:
		c.handleMove(msg.DX, msg.DY)
	default:
		log.Printf("Dropping frame with unknown type %q from %s", msg.Type, c.connID)
	}
}

// handleJoinLobby binds the connection to the session: a normal lobby join
// before the game starts, the reconnect path for identities that belong to
// a running game, and refusal for everyone else.
func (c *Client) handleJoinLobby(persistentID string) {
	if c.joined || persistentID == "" {
		return
	}

	res, err := c.sess.JoinLobby(c.connID, persistentID)
	switch err {
	case nil:
		c.joined = true
		log.Printf("Connection %s joined lobby of %s as %s", c.connID, c.token, res.Role)
		c.hub.SendTo(c.token, c.connID, protocol.NewLobbyJoined(c.connID, res.Role, res.Roster))
		c.hub.Broadcast(c.token, c.sess.LobbyConnectionIDs(), protocol.NewLobbyUpdated(res.Roster))

	case session.ErrReconnectRequired:
		c.handleReconnect(persistentID)

	case session.ErrGameInProgress:
		log.Printf("Refusing unknown identity on running session %s", c.token)
		c.refuse("game in progress")

	default:
		log.Printf("Lobby join failed on %s: %v", c.token, err)
	}
}

// handleReconnect restores a durable identity onto this connection.
func (c *Client) handleReconnect(persistentID string) {
	p, role, err := c.sess.Reconnect(c.connID, persistentID)
	if err != nil {
		log.Printf("Reconnect refused on %s: %v", c.token, err)
		c.refuse("unknown identity")
		return
	}

	c.joined = true
	log.Printf("Connection %s reconnected to %s as %s at (%d,%d)", c.connID, c.token, role, p.X, p.Y)

	others := c.sess.OtherParticipants(c.connID)
	maze := c.sess.Grid().Definition()
	c.hub.SendTo(c.token, c.connID, protocol.NewGameStarted(c.connID, p.X, p.Y, others, maze, role))

	// The controller never appears in participant announcements.
	if role == session.RoleSubject {
		audience := exclude(c.sess.ActiveConnectionIDs(), c.connID)
		c.hub.Broadcast(c.token, audience, protocol.NewPlayerJoined(p))
	}
}

// handleSetReady updates readiness and starts the game once the lobby is
// non-empty and unanimous.
func (c *Client) handleSetReady(ready bool) {
	if !c.joined || c.sess.Started() {
		return
	}

	roster := c.sess.SetReady(c.connID, ready)
	c.broadcastLobby(roster)

	if ready && c.sess.AllReady() {
		c.startGame()
	}
}

// startGame runs the lobby -> active transition and tells every entrant
// its fate individually.
func (c *Client) startGame() {
	placements, starved, err := c.sess.Start()
	if err != nil {
		// A concurrent ready message won the transition; nothing to do.
		if err != session.ErrAlreadyStarted {
			log.Printf("Start failed on %s: %v", c.token, err)
		}
		return
	}

	log.Printf("Session %s started: %d placed, %d without spawn", c.token, len(placements), len(starved))

	maze := c.sess.Grid().Definition()
	for connID, placement := range placements {
		c.hub.SendTo(c.token, connID, protocol.NewGameStarting(placement.Role))
		others := c.sess.OtherParticipants(connID)
		c.hub.SendTo(c.token, connID, protocol.NewGameStarted(connID, placement.X, placement.Y, others, maze, placement.Role))
	}

	// Capacity failure is scoped to the starved connections alone.
	for _, connID := range starved {
		c.hub.SendTo(c.token, connID, protocol.NewSpawnFull())
	}
}

// handleMove validates and applies a movement request, confirming accepted
// moves to the whole active roster.
func (c *Client) handleMove(dx, dy int) {
	if !c.joined {
		return
	}

	p, ok := c.sess.Move(c.connID, dx, dy)
	if !ok {
		return
	}

	c.hub.Broadcast(c.token, c.sess.ActiveConnectionIDs(), protocol.NewPlayerMoved(c.connID, p.X, p.Y))
}

// handleClose runs when the connection drops, cleanly or not. Before the
// game starts the entrant simply leaves the lobby; afterwards the
// participant is archived for reconnection.
func (c *Client) handleClose() {
	if !c.joined {
		return
	}

	if !c.sess.Started() {
		roster := c.sess.LeaveLobby(c.connID)
		c.broadcastLobby(roster)
		return
	}

	persistentID, wasController, found := c.sess.Disconnect(c.connID)
	if !found {
		return
	}
	log.Printf("Participant %s disconnected from %s (identity %s archived=%v)",
		c.connID, c.token, persistentID, !wasController)

	// player-left is never emitted for the controller identity.
	if !wasController {
		c.hub.Broadcast(c.token, c.sess.ActiveConnectionIDs(), protocol.NewPlayerLeft(c.connID))
	}
}

// broadcastLobby sends the roster snapshot to every connection currently
// in the lobby.
func (c *Client) broadcastLobby(roster []session.LobbyEntrant) {
	c.hub.Broadcast(c.token, c.sess.LobbyConnectionIDs(), protocol.NewLobbyUpdated(roster))
}

// refuse sends a close frame and tears the connection down without having
// mutated any session state.
func (c *Client) refuse(reason string) {
	deadline := time.Now().Add(writeWait)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	c.conn.Close()
}

// writePump pushes queued frames to the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func exclude(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
