// Package mcp provides a Model Context Protocol surface for the maze
// session server.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for session management and observation
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - create_session: Create a session, optionally with a chosen token
//   - list_sessions: List all live sessions
//   - session_status: Phase, roster counts, and spawn pressure
//   - list_mazes: List the mazes available to new sessions
//
// Architecture:
//
// The client is a thin proxy: every tool call is translated into a REST
// request against the API server, so the MCP surface never holds session
// state of its own and always reflects what the HTTP surface would
// return. Realtime gameplay stays on the websocket; MCP covers the
// management plane only.
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: POST /mcp endpoint on the main server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
