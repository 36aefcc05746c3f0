package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labmaze/labmaze/game/session"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.mcpServer == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	expected := session.Info{
		Token:       "HappyBlueWhaleStorm",
		Maze:        "builtin",
		Phase:       "lobby",
		LobbyCount:  2,
		ActiveCount: 0,
		CreatedAt:   time.Now().UTC(),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/HappyBlueWhaleStorm" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expected)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var info session.Info
	err := client.apiCall("GET", "/api/sessions/HappyBlueWhaleStorm", nil, &info)
	if err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}

	if info.Token != expected.Token {
		t.Errorf("Expected token %s, got %s", expected.Token, info.Token)
	}
	if info.LobbyCount != 2 {
		t.Errorf("Expected lobby count 2, got %d", info.LobbyCount)
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	err := client.apiCall("GET", "/api/sessions", nil, nil)
	if err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall("GET", "/api/sessions/BoldTealHawkValley", nil, nil)
	if err == nil {
		t.Fatal("Expected error for HTTP 404 response")
	}
	if err.Error() != "session not found" {
		t.Errorf("Expected the API error message, got %q", err.Error())
	}
}

func TestClient_apiCall_SendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		if body["token"] != "CalmRedFoxRiver" {
			t.Errorf("Expected token in body, got %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(session.Info{Token: body["token"]})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var info session.Info
	err := client.apiCall("POST", "/api/sessions", map[string]string{"token": "CalmRedFoxRiver"}, &info)
	if err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if info.Token != "CalmRedFoxRiver" {
		t.Errorf("Expected echoed token, got %q", info.Token)
	}
}

func TestFormatSessionInfo(t *testing.T) {
	info := &session.Info{
		Token:       "HappyBlueWhaleStorm",
		Maze:        "builtin",
		Phase:       "active",
		LobbyCount:  0,
		ActiveCount: 3,
		Archived:    1,
		SpawnUsed:   3,
		SpawnTotal:  4,
	}

	got := formatSessionInfo(info)
	for _, want := range []string{"HappyBlueWhaleStorm", "active", "3/4"} {
		if !strings.Contains(got, want) {
			t.Errorf("Formatted info missing %q:\n%s", want, got)
		}
	}
}
