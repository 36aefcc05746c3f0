// Package api provides the HTTP REST surface for the maze session server.
//
// The api package implements:
//   - Session management endpoints over the session directory
//   - Maze library listing
//   - Share-link QR code rendering
//   - WebSocket upgrade routing with token validation
//   - Static file serving
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session (optionally with a chosen token)
//   - GET /api/sessions - List live sessions
//   - GET /api/sessions/{token} - Summary of one session
//   - DELETE /api/sessions/{token} - Remove a session
//   - GET /api/sessions/{token}/qr - Join link as a PNG QR code
//
// Maze Library:
//   - GET /api/mazes - List available mazes
//
// Realtime:
//   - GET /ws/{token} - WebSocket upgrade into the session
//
// Request/Response Format:
//
// All JSON endpoints accept and return JSON. Errors are returned as JSON
// with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
//
// Tokens:
//
// Session tokens are case-sensitive and must match the word-list format
// (for example "HappyBlueWhaleStorm"). A malformed token on the websocket
// path is rejected with 400 before any session is created; a well-formed
// but unknown token creates the session, which is the join-by-link flow.
//
// Usage:
//
//	server := api.NewServer(directory, mazes, hub, publicURL)
//	http.ListenAndServe(addr, server)
package api
