package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labmaze/labmaze/game/grid"
	"github.com/labmaze/labmaze/game/session"
)

// newTestServer wires a hub to a fresh directory (builtin maze) behind an
// httptest server that routes ?token= to ServeWS.
func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	directory := session.NewDirectory(grid.NewManager(t.TempDir()), time.Minute)
	hub := NewHub(directory)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("token"))
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func dialSession(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Frame is not a JSON object: %v", err)
	}
	return frame
}

// readUntil discards frames until one with the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if frame["type"] == wantType {
			return frame
		}
	}
	t.Fatalf("No %q frame arrived", wantType)
	return nil
}

// joinLobby sends join-lobby and returns the connection id from the
// lobby-joined confirmation.
func joinLobby(t *testing.T, conn *websocket.Conn, persistentID string) (connID, role string) {
	t.Helper()

	sendFrame(t, conn, `{"type":"join-lobby","persistentId":"`+persistentID+`"}`)
	frame := readUntil(t, conn, "lobby-joined")
	connID, _ = frame["connectionId"].(string)
	role, _ = frame["role"].(string)
	if connID == "" {
		t.Fatal("lobby-joined missing connectionId")
	}
	return connID, role
}

func TestConnectionRegistry(t *testing.T) {
	hub := NewHub(session.NewDirectory(mustManager(t), time.Minute))

	c1 := &Client{hub: hub, token: "tok", connID: "a", send: make(chan []byte, 1)}
	c2 := &Client{hub: hub, token: "tok", connID: "b", send: make(chan []byte, 1)}

	hub.register(c1)
	hub.register(c2)
	if got := hub.ConnectionCount("tok"); got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}

	hub.unregister(c1)
	if got := hub.ConnectionCount("tok"); got != 1 {
		t.Errorf("ConnectionCount after unregister = %d, want 1", got)
	}

	// A second unregister of the same client is a no-op.
	hub.unregister(c1)
	if got := hub.ConnectionCount("tok"); got != 1 {
		t.Errorf("ConnectionCount after double unregister = %d, want 1", got)
	}

	hub.unregister(c2)
	if got := hub.ConnectionCount("tok"); got != 0 {
		t.Errorf("ConnectionCount after last unregister = %d, want 0", got)
	}
	if _, ok := hub.conns["tok"]; ok {
		t.Error("Empty token entry was not cleaned up")
	}
}

func mustManager(t *testing.T) *grid.Manager {
	t.Helper()
	return grid.NewManager(t.TempDir())
}

func TestBroadcastTargetsOnlyListedConnections(t *testing.T) {
	hub := NewHub(session.NewDirectory(mustManager(t), time.Minute))

	c1 := &Client{hub: hub, token: "tok", connID: "a", send: make(chan []byte, 4)}
	c2 := &Client{hub: hub, token: "tok", connID: "b", send: make(chan []byte, 4)}
	hub.register(c1)
	hub.register(c2)

	hub.Broadcast("tok", []string{"a"}, map[string]string{"type": "probe"})

	select {
	case <-c1.send:
	case <-time.After(100 * time.Millisecond):
		t.Error("Listed connection received nothing")
	}
	select {
	case data := <-c2.send:
		t.Errorf("Unlisted connection received %s", data)
	default:
	}
}

func TestLobbyJoinFlow(t *testing.T) {
	_, server := newTestServer(t)

	c1 := dialSession(t, server, "HappyBlueWhaleStorm")
	_, role1 := joinLobby(t, c1, "id-one")
	if role1 != "controller" {
		t.Errorf("First joiner role = %q, want controller", role1)
	}

	c2 := dialSession(t, server, "HappyBlueWhaleStorm")
	_, role2 := joinLobby(t, c2, "id-two")
	if role2 != "subject" {
		t.Errorf("Second joiner role = %q, want subject", role2)
	}

	// The first connection sees the grown roster.
	frame := readUntil(t, c1, "lobby-updated")
	roster, _ := frame["roster"].([]any)
	for len(roster) < 2 {
		frame = readUntil(t, c1, "lobby-updated")
		roster, _ = frame["roster"].([]any)
	}
	if len(roster) != 2 {
		t.Errorf("Roster size = %d, want 2", len(roster))
	}
}

func TestGameStartFlow(t *testing.T) {
	_, server := newTestServer(t)
	token := "CalmRedFoxRiver"

	ctrl := dialSession(t, server, token)
	joinLobby(t, ctrl, "p-ctrl")
	sub := dialSession(t, server, token)
	joinLobby(t, sub, "p-sub")

	sendFrame(t, ctrl, `{"type":"set-ready","isReady":true}`)
	sendFrame(t, sub, `{"type":"set-ready","isReady":true}`)

	ctrlStarted := readUntil(t, ctrl, "game-started")
	if ctrlStarted["role"] != "controller" {
		t.Errorf("Controller game-started role = %v", ctrlStarted["role"])
	}
	if ctrlStarted["x"].(float64) != 0 || ctrlStarted["y"].(float64) != 0 {
		t.Errorf("Controller placed at (%v,%v), want (0,0)", ctrlStarted["x"], ctrlStarted["y"])
	}
	others, _ := ctrlStarted["otherParticipants"].([]any)
	if len(others) != 1 {
		t.Errorf("Controller sees %d other participants, want 1", len(others))
	}

	subStarted := readUntil(t, sub, "game-started")
	if subStarted["role"] != "subject" {
		t.Errorf("Subject game-started role = %v", subStarted["role"])
	}
	// First spawn cell of the builtin maze, row-major.
	if subStarted["x"].(float64) != 1 || subStarted["y"].(float64) != 1 {
		t.Errorf("Subject placed at (%v,%v), want (1,1)", subStarted["x"], subStarted["y"])
	}
	if _, ok := subStarted["maze"].(map[string]any); !ok {
		t.Error("game-started missing maze definition")
	}
	subOthers, _ := subStarted["otherParticipants"].([]any)
	if len(subOthers) != 0 {
		t.Errorf("Subject sees %d other participants, want 0 (controller hidden)", len(subOthers))
	}
}

func TestMoveBroadcast(t *testing.T) {
	_, server := newTestServer(t)
	token := "QuickGreenOwlCloud"

	ctrl := dialSession(t, server, token)
	joinLobby(t, ctrl, "p-ctrl")
	sub := dialSession(t, server, token)
	subID, _ := joinLobby(t, sub, "p-sub")

	sendFrame(t, ctrl, `{"type":"set-ready","isReady":true}`)
	sendFrame(t, sub, `{"type":"set-ready","isReady":true}`)
	readUntil(t, ctrl, "game-started")
	readUntil(t, sub, "game-started")

	// Into the wall above the spawn first: silently rejected, no frame.
	sendFrame(t, sub, `{"type":"move","dx":0,"dy":-1}`)
	// Then one open cell to the right.
	sendFrame(t, sub, `{"type":"move","dx":1,"dy":0}`)

	for _, conn := range []*websocket.Conn{ctrl, sub} {
		moved := readUntil(t, conn, "player-moved")
		if moved["connectionId"] != subID {
			t.Errorf("player-moved for %v, want %s", moved["connectionId"], subID)
		}
		if moved["x"].(float64) != 2 || moved["y"].(float64) != 1 {
			t.Errorf("player-moved to (%v,%v), want (2,1)", moved["x"], moved["y"])
		}
	}
}

func TestReconnectRestoresPosition(t *testing.T) {
	_, server := newTestServer(t)
	token := "WiseGoldBearStone"

	ctrl := dialSession(t, server, token)
	joinLobby(t, ctrl, "p-ctrl")
	sub := dialSession(t, server, token)
	subID, _ := joinLobby(t, sub, "p-sub")

	sendFrame(t, ctrl, `{"type":"set-ready","isReady":true}`)
	sendFrame(t, sub, `{"type":"set-ready","isReady":true}`)
	readUntil(t, ctrl, "game-started")
	readUntil(t, sub, "game-started")

	sendFrame(t, sub, `{"type":"move","dx":1,"dy":0}`)
	readUntil(t, sub, "player-moved")

	sub.Close()
	left := readUntil(t, ctrl, "player-left")
	if left["connectionId"] != subID {
		t.Errorf("player-left for %v, want %s", left["connectionId"], subID)
	}

	// Same durable identity on a fresh socket resumes at (2,1).
	again := dialSession(t, server, token)
	sendFrame(t, again, `{"type":"join-lobby","persistentId":"p-sub"}`)
	started := readUntil(t, again, "game-started")
	if started["x"].(float64) != 2 || started["y"].(float64) != 1 {
		t.Errorf("Reconnected at (%v,%v), want (2,1)", started["x"], started["y"])
	}
	if started["role"] != "subject" {
		t.Errorf("Reconnected role = %v, want subject", started["role"])
	}

	joined := readUntil(t, ctrl, "player-joined")
	participant, _ := joined["participant"].(map[string]any)
	if participant == nil {
		t.Fatal("player-joined missing participant")
	}
	if participant["connectionId"] == subID {
		t.Error("Reconnected participant kept the old connection id")
	}
}

func TestUnknownIdentityRefusedAfterStart(t *testing.T) {
	_, server := newTestServer(t)
	token := "BoldTealHawkValley"

	ctrl := dialSession(t, server, token)
	joinLobby(t, ctrl, "p-ctrl")
	sendFrame(t, ctrl, `{"type":"set-ready","isReady":true}`)
	readUntil(t, ctrl, "game-started")

	stranger := dialSession(t, server, token)
	sendFrame(t, stranger, `{"type":"join-lobby","persistentId":"p-stranger"}`)

	stranger.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := stranger.ReadMessage()
	if err == nil {
		t.Fatal("Expected the connection to be closed")
	}
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("Close error = %v, want policy violation", err)
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	_, server := newTestServer(t)
	token := "KeenPinkWolfMeadow"

	conn := dialSession(t, server, token)
	sendFrame(t, conn, `this is not json`)
	sendFrame(t, conn, `{"dx":1}`)

	// The connection survives both bad frames and still accepts a join.
	_, role := joinLobby(t, conn, "p-one")
	if role != "controller" {
		t.Errorf("Role after bad frames = %q, want controller", role)
	}
}

func TestLobbyLeaveBroadcast(t *testing.T) {
	_, server := newTestServer(t)
	token := "SoftGrayDeerBrook"

	c1 := dialSession(t, server, token)
	joinLobby(t, c1, "p-one")
	c2 := dialSession(t, server, token)
	joinLobby(t, c2, "p-two")

	c2.Close()

	// Eventually the remaining connection sees a one-entry roster again.
	deadline := time.Now().Add(2 * time.Second)
	for {
		frame := readUntil(t, c1, "lobby-updated")
		roster, _ := frame["roster"].([]any)
		if len(roster) == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Roster never shrank, last size %d", len(roster))
		}
	}
}
