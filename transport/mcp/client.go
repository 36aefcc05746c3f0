package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/labmaze/labmaze/game/grid"
	"github.com/labmaze/labmaze/game/session"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Maze Session Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Maze Session Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The server hosts realtime multiplayer maze sessions. Each session is
identified by a word-list token (for example "HappyBlueWhaleStorm") and
moves through two phases: a lobby where players gather and mark
themselves ready, and an active game where subjects walk the maze while
a single controller observes.

AVAILABLE TOOLS:
- create_session: Create a session, optionally with a chosen token
- list_sessions: List all live sessions with occupancy
- session_status: Phase, roster counts, and spawn pressure for one session
- list_mazes: List the mazes available to new sessions

Gameplay itself happens over the websocket at /ws/{token}; these tools
cover session management and observation only.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new maze session, optionally with a chosen token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Session token to use (optional; one is minted when omitted)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all live maze sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "session_status",
		Description: "Get phase, roster counts, and spawn pressure for one session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Session token to inspect",
				},
			},
			Required: []string{"token"},
		},
	}, c.handleSessionStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_mazes",
		Description: "List the mazes available to new sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMazes)
}

// GetMCPServer returns the underlying MCP server for serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	token, _ := args["token"].(string)

	body := map[string]string{}
	if token != "" {
		body["token"] = token
	}

	var info session.Info
	err := c.apiCall("POST", "/api/sessions", body, &info)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nMaze: %s\nJoin via websocket: /ws/%s\n",
		info.Token, info.Maze, info.Token)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int            `json:"count"`
		Sessions []session.Info `json:"sessions"`
	}

	err := c.apiCall("GET", "/api/sessions", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (%s, maze %s, lobby %d, active %d, created %s)\n",
			s.Token, s.Phase, s.Maze, s.LobbyCount, s.ActiveCount,
			s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	token, _ := args["token"].(string)

	var info session.Info
	err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s", token), nil, &info)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleListMazes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int             `json:"count"`
		Mazes []grid.MazeInfo `json:"mazes"`
	}

	err := c.apiCall("GET", "/api/mazes", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Available Mazes (%d):\n\n", response.Count)
	for _, m := range response.Mazes {
		result += fmt.Sprintf("• %s (%s)\n  %dx%d, %d spawn cells\n\n",
			m.ID, m.Name, m.Width, m.Height, m.SpawnCells)
	}

	return mcp.NewToolResultText(result), nil
}

// Formatting helpers

func formatSessionInfo(info *session.Info) string {
	return fmt.Sprintf(`Session: %s
Maze: %s
Phase: %s
Lobby: %d waiting
Active: %d playing (%d archived for reconnect)
Spawns: %d/%d claimed
Created: %s`,
		info.Token, info.Maze, info.Phase,
		info.LobbyCount,
		info.ActiveCount, info.Archived,
		info.SpawnUsed, info.SpawnTotal,
		info.CreatedAt.Format("2006-01-02 15:04:05"))
}
