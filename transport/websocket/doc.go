// Package websocket provides the realtime transport for maze game
// sessions.
//
// The websocket package implements:
//   - Session-aware WebSocket connections keyed by session token
//   - The connection handler that drives lobby and game messages
//   - Targeted sends and roster-scoped broadcasts
//   - Connection lifecycle management (join, disconnect, reconnect)
//
// Architecture:
//
// A central Hub maps (token, connection id) pairs to live sockets. Each
// connection gets two goroutines: a read pump that decodes inbound frames
// and drives the session state machine, and a write pump that drains a
// buffered outbound channel and keeps the socket alive with pings.
//
// The hub never touches session state. Handlers call into the session
// package, get back a result plus a snapshot of the recipient roster, and
// hand both to the hub for delivery. No session lock is ever held while
// writing to a socket.
//
// Connection Identity:
//
// Each socket is assigned a fresh connection id on upgrade. The durable
// identity a client presents in its join-lobby frame lives in the session
// package; the hub only ever routes by connection id.
//
// Connection Lifecycle:
//
// 1. Client connects to /ws/{token}; an absent session is created
// 2. Client sends join-lobby with its durable identity
// 3. Lobby frames flow until the start transition, then game frames
// 4. Disconnection archives in-game participants for later reconnection
//
// Usage:
//
//	hub := websocket.NewHub(directory)
//	router.HandleFunc("/ws/{token}", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, mux.Vars(r)["token"])
//	})
package websocket
