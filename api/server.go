package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/labmaze/labmaze/game/grid"
	"github.com/labmaze/labmaze/game/session"
	"github.com/labmaze/labmaze/identity"
	"github.com/labmaze/labmaze/transport/websocket"
)

// Server is the REST surface for session and maze management.
type Server struct {
	directory *session.Directory
	mazes     *grid.Manager
	hub       *websocket.Hub
	router    *mux.Router

	// publicURL is the externally reachable base URL used in share links
	// and QR codes. Empty means derive it from the request host.
	publicURL string
}

// NewServer creates a new API server.
func NewServer(directory *session.Directory, mazes *grid.Manager, hub *websocket.Hub, publicURL string) *Server {
	s := &Server{
		directory: directory,
		mazes:     mazes,
		hub:       hub,
		router:    mux.NewRouter(),
		publicURL: publicURL,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{token}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{token}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{token}/qr", s.handleSessionQR).Methods("GET")

	// Maze library
	api.HandleFunc("/mazes", s.handleListMazes).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws/{token}", s.handleWebSocket)

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	var sess *session.Session
	if req.Token != "" {
		// Client-chosen token, same path the join link takes.
		if !identity.IsWellFormed(req.Token) {
			respondError(w, http.StatusBadRequest, "malformed session token")
			return
		}
		sess = s.directory.GetOrCreate(req.Token)
	} else {
		sess = s.directory.Create()
	}

	respondJSON(w, http.StatusCreated, session.InfoFor(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := make([]session.Info, 0, s.directory.Count())
	for _, token := range s.directory.Tokens() {
		sess, err := s.directory.Get(token)
		if err != nil {
			continue
		}
		infos = append(infos, session.InfoFor(sess))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	// Apply limit if specified
	query := r.URL.Query()
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(infos) {
			infos = infos[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(infos),
		"sessions": infos,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	sess, err := s.directory.Get(token)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, session.InfoFor(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := s.directory.Delete(token); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", token),
	})
}

// handleSessionQR renders the session's join link as a PNG QR code for
// handing a phone into the lobby.
func (s *Server) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if _, err := s.directory.Get(token); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	size := 256
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		if n, err := strconv.Atoi(sizeStr); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}

	png, err := qrcode.Encode(s.joinURL(r, token), qrcode.Medium, size)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) joinURL(r *http.Request, token string) string {
	base := s.publicURL
	if base == "" {
		base = "http://" + r.Host
	}
	return base + "/?session=" + token
}

// Maze Handlers

func (s *Server) handleListMazes(w http.ResponseWriter, r *http.Request) {
	mazes := s.mazes.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(mazes),
		"mazes": mazes,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if !identity.IsWellFormed(token) {
		http.Error(w, "malformed session token", http.StatusBadRequest)
		return
	}

	s.hub.ServeWS(w, r, token)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
