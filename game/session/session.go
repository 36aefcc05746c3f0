package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/labmaze/labmaze/game/grid"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrEmptyLobby        = errors.New("lobby is empty")
	ErrGameInProgress    = errors.New("game in progress; unknown identities cannot join")
	ErrReconnectRequired = errors.New("identity belongs to this game; use the reconnect path")
)

// Role is a participant's session role.
type Role string

const (
	RoleController Role = "controller"
	RoleSubject    Role = "subject"
)

// Phase is the session's lifecycle phase. A session starts in PhaseLobby
// and flips to PhaseActive exactly once.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseActive
)

// String implements fmt.Stringer for logging and API responses.
func (p Phase) String() string {
	if p == PhaseActive {
		return "active"
	}
	return "lobby"
}

// LobbyEntrant is a connection waiting in the lobby.
type LobbyEntrant struct {
	ConnectionID string `json:"connectionId"`
	PersistentID string `json:"persistentId"`
	Role         Role   `json:"role"`
	IsReady      bool   `json:"isReady"`
	Name         string `json:"name,omitempty"`
	Color        string `json:"color,omitempty"`

	joined int
}

// Participant is an in-game player. PersistentID is the durable identity
// key and never goes on the wire; ConnectionID is the transient handle
// other clients see.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	PersistentID string `json:"-"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	RenderX      int    `json:"renderX"`
	RenderY      int    `json:"renderY"`
	Name         string `json:"name,omitempty"`
	Color        string `json:"color,omitempty"`

	joined int
}

// Placement is a participant's starting assignment from Start.
type Placement struct {
	Role Role
	X    int
	Y    int
}

// Session is one independent game instance: a maze, a lobby roster, an
// active roster, and an archive of disconnected participants keyed by
// persistent id.
//
// All mutating methods serialize on an internal mutex and return plain
// snapshots; callers broadcast from those snapshots without holding any
// session state, so a stalled connection can never block the session.
type Session struct {
	token     string
	grid      *grid.Grid
	createdAt time.Time

	mu         sync.Mutex
	phase      Phase
	lobby      map[string]*LobbyEntrant
	active     map[string]*Participant
	archived   map[string]Participant
	usedSpawns map[grid.Position]bool
	joinSeq    int

	// Set once at Start and fixed for the session's active lifetime.
	controllerPersistentID string
	controllerConnectionID string
}

// New creates an empty session in the lobby phase.
func New(token string, g *grid.Grid) *Session {
	return &Session{
		token:      token,
		grid:       g,
		createdAt:  time.Now(),
		phase:      PhaseLobby,
		lobby:      make(map[string]*LobbyEntrant),
		active:     make(map[string]*Participant),
		archived:   make(map[string]Participant),
		usedSpawns: make(map[grid.Position]bool),
	}
}

// Token returns the session's token.
func (s *Session) Token() string { return s.token }

// Grid returns the session's maze.
func (s *Session) Grid() *grid.Grid { return s.grid }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Started reports whether the session has entered the active phase.
func (s *Session) Started() bool {
	return s.Phase() == PhaseActive
}

// JoinResult is the outcome of a successful lobby join.
type JoinResult struct {
	Role   Role
	Roster []LobbyEntrant
}

// JoinLobby admits a connection to the lobby. The first entrant to join
// while no one holds the controller slot becomes the controller; everyone
// else is a subject. Entrants start not-ready.
//
// If the game has already started, JoinLobby refuses: ErrReconnectRequired
// when the persistent id matches the controller or an archived participant
// (the caller must route to Reconnect), ErrGameInProgress for any other
// identity.
func (s *Session) JoinLobby(connectionID, persistentID string) (JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseActive {
		if persistentID == s.controllerPersistentID {
			return JoinResult{}, ErrReconnectRequired
		}
		if _, ok := s.archived[persistentID]; ok {
			return JoinResult{}, ErrReconnectRequired
		}
		return JoinResult{}, ErrGameInProgress
	}

	role := RoleSubject
	if !s.controllerSlotHeld() {
		role = RoleController
	}

	s.joinSeq++
	s.lobby[connectionID] = &LobbyEntrant{
		ConnectionID: connectionID,
		PersistentID: persistentID,
		Role:         role,
		IsReady:      false,
		joined:       s.joinSeq,
	}

	return JoinResult{Role: role, Roster: s.lobbyRosterLocked()}, nil
}

// SetReady updates an entrant's readiness. Unknown connection ids are a
// no-op; the current roster snapshot is returned either way.
func (s *Session) SetReady(connectionID string, ready bool) []LobbyEntrant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lobby[connectionID]; ok {
		e.IsReady = ready
	}
	return s.lobbyRosterLocked()
}

// SetName updates an entrant's display name. Unknown connection ids are a
// no-op.
func (s *Session) SetName(connectionID, name string) []LobbyEntrant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lobby[connectionID]; ok {
		e.Name = name
	}
	return s.lobbyRosterLocked()
}

// SetColor updates an entrant's display color. Unknown connection ids are
// a no-op.
func (s *Session) SetColor(connectionID, color string) []LobbyEntrant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lobby[connectionID]; ok {
		e.Color = color
	}
	return s.lobbyRosterLocked()
}

// LeaveLobby removes an entrant. If the entrant held the controller slot,
// the slot becomes available to the next joiner; existing subjects are not
// promoted.
func (s *Session) LeaveLobby(connectionID string) []LobbyEntrant {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lobby, connectionID)
	return s.lobbyRosterLocked()
}

// AllReady reports whether the lobby is non-empty and every entrant is
// ready. An empty lobby never auto-starts.
func (s *Session) AllReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lobby) == 0 {
		return false
	}
	for _, e := range s.lobby {
		if !e.IsReady {
			return false
		}
	}
	return true
}

// Start transitions the session to the active phase, placing every lobby
// entrant. The controller is placed at (0,0) without consuming a spawn
// cell; subjects claim spawn cells in row-major grid order by lobby join
// order. Subjects left without a free spawn cell are returned in starved
// and get no active-roster entry; the caller must tell them separately.
//
// Start may be called once; the lobby is drained, so a second call fails
// with ErrAlreadyStarted and allocates nothing.
func (s *Session) Start() (map[string]Placement, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseActive {
		return nil, nil, ErrAlreadyStarted
	}
	if len(s.lobby) == 0 {
		return nil, nil, ErrEmptyLobby
	}

	entrants := make([]*LobbyEntrant, 0, len(s.lobby))
	for _, e := range s.lobby {
		entrants = append(entrants, e)
	}
	sort.Slice(entrants, func(i, j int) bool { return entrants[i].joined < entrants[j].joined })

	placements := make(map[string]Placement, len(entrants))
	var starved []string

	for _, e := range entrants {
		if e.Role == RoleController {
			s.controllerPersistentID = e.PersistentID
			s.controllerConnectionID = e.ConnectionID
			s.active[e.ConnectionID] = &Participant{
				ConnectionID: e.ConnectionID,
				PersistentID: e.PersistentID,
				Name:         e.Name,
				Color:        e.Color,
				joined:       e.joined,
			}
			placements[e.ConnectionID] = Placement{Role: RoleController}
			continue
		}

		pos, ok := s.claimSpawnLocked()
		if !ok {
			starved = append(starved, e.ConnectionID)
			continue
		}
		s.active[e.ConnectionID] = &Participant{
			ConnectionID: e.ConnectionID,
			PersistentID: e.PersistentID,
			X:            pos.X,
			Y:            pos.Y,
			RenderX:      pos.X,
			RenderY:      pos.Y,
			Name:         e.Name,
			Color:        e.Color,
			joined:       e.joined,
		}
		placements[e.ConnectionID] = Placement{Role: RoleSubject, X: pos.X, Y: pos.Y}
	}

	s.lobby = make(map[string]*LobbyEntrant)
	s.phase = PhaseActive

	return placements, starved, nil
}

// Move attempts to shift a participant by (dx,dy). The target is derived
// from the participant's current position and validated against the grid;
// unknown connections, out-of-bounds targets, and wall cells are rejected
// with no state change. dx/dy magnitudes are not assumed: a (2,0) request
// is validated like any other target.
func (s *Session) Move(connectionID string, dx, dy int) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.active[connectionID]
	if !ok {
		return Participant{}, false
	}

	targetX, targetY := p.X+dx, p.Y+dy
	kind, inBounds := s.grid.CellAt(targetX, targetY)
	if !inBounds || kind == grid.Wall {
		return Participant{}, false
	}

	p.X, p.Y = targetX, targetY
	p.RenderX, p.RenderY = targetX, targetY

	return *p, true
}

// Disconnect removes a participant from the active roster. Subjects are
// archived under their persistent id for later reconnection; their spawn
// cell stays claimed so the exact position can be restored. The controller
// is simply removed; its reconnect path runs off the fixed controller
// identity, not the archive.
func (s *Session) Disconnect(connectionID string) (persistentID string, wasController, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.active[connectionID]
	if !ok {
		return "", false, false
	}
	delete(s.active, connectionID)

	if connectionID == s.controllerConnectionID {
		return p.PersistentID, true, true
	}

	snapshot := *p
	snapshot.ConnectionID = ""
	s.archived[p.PersistentID] = snapshot
	return p.PersistentID, false, true
}

// Reconnect re-admits a durable identity on a fresh connection during an
// active game. The controller identity comes back as controller at (0,0);
// an archived subject comes back at its archived coordinates, consuming
// the archive entry. Anything else is refused with ErrGameInProgress.
//
// After Reconnect at most one active-roster entry carries persistentID.
func (s *Session) Reconnect(newConnectionID, persistentID string) (Participant, Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return Participant{}, "", ErrGameInProgress
	}

	if persistentID == s.controllerPersistentID {
		s.dropActiveByPersistentIDLocked(persistentID)
		s.controllerConnectionID = newConnectionID
		s.joinSeq++
		p := &Participant{
			ConnectionID: newConnectionID,
			PersistentID: persistentID,
			joined:       s.joinSeq,
		}
		s.active[newConnectionID] = p
		return *p, RoleController, nil
	}

	snapshot, ok := s.archived[persistentID]
	if !ok {
		return Participant{}, "", ErrGameInProgress
	}
	delete(s.archived, persistentID)
	s.dropActiveByPersistentIDLocked(persistentID)

	s.joinSeq++
	p := snapshot
	p.ConnectionID = newConnectionID
	p.joined = s.joinSeq
	s.active[newConnectionID] = &p
	return p, RoleSubject, nil
}

// LobbyRoster returns a join-ordered snapshot of the lobby.
func (s *Session) LobbyRoster() []LobbyEntrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobbyRosterLocked()
}

// LobbyConnectionIDs returns the connection ids of every lobby entrant.
func (s *Session) LobbyConnectionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.lobby))
	for id := range s.lobby {
		ids = append(ids, id)
	}
	return ids
}

// ActiveConnectionIDs returns the connection ids of every active
// participant, controller included. This is the broadcast audience for
// in-game messages.
func (s *Session) ActiveConnectionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// Participants returns the visible participants (the controller never
// appears in participant lists) in join order.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleParticipantsLocked("")
}

// OtherParticipants returns the visible participants excluding the given
// connection, for game-started payloads.
func (s *Session) OtherParticipants(excludeConnectionID string) []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleParticipantsLocked(excludeConnectionID)
}

// ActiveCount returns the number of active participants, controller
// included. The directory reaps a session only when this is zero.
func (s *Session) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ArchivedCount returns the number of disconnected participants awaiting
// reconnection.
func (s *Session) ArchivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.archived)
}

// LobbyCount returns the number of lobby entrants.
func (s *Session) LobbyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobby)
}

// SpawnPressure returns claimed and total spawn-cell counts. Spawn cells
// are deliberately never released on disconnect (the claim preserves the
// archived position), so a long-lived session can exhaust them; operators
// should watch used approaching total.
func (s *Session) SpawnPressure() (used, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.usedSpawns), s.grid.SpawnCount()
}

// IsController reports whether the connection currently holds the in-game
// controller binding.
func (s *Session) IsController(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return connectionID != "" && connectionID == s.controllerConnectionID
}

// controllerSlotHeld reports whether any lobby entrant holds the
// controller role. Callers must hold s.mu.
func (s *Session) controllerSlotHeld() bool {
	for _, e := range s.lobby {
		if e.Role == RoleController {
			return true
		}
	}
	return false
}

// claimSpawnLocked claims the first unused spawn cell in row-major order.
// Callers must hold s.mu.
func (s *Session) claimSpawnLocked() (grid.Position, bool) {
	for pos := range s.grid.SpawnCells() {
		if !s.usedSpawns[pos] {
			s.usedSpawns[pos] = true
			return pos, true
		}
	}
	return grid.Position{}, false
}

// isVisibleLocked is the single visibility predicate for participant
// lists: the controller is excluded everywhere. Callers must hold s.mu.
func (s *Session) isVisibleLocked(connectionID string) bool {
	return connectionID != s.controllerConnectionID
}

func (s *Session) lobbyRosterLocked() []LobbyEntrant {
	roster := make([]LobbyEntrant, 0, len(s.lobby))
	for _, e := range s.lobby {
		roster = append(roster, *e)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].joined < roster[j].joined })
	return roster
}

func (s *Session) visibleParticipantsLocked(excludeConnectionID string) []Participant {
	out := make([]Participant, 0, len(s.active))
	for id, p := range s.active {
		if id == excludeConnectionID || !s.isVisibleLocked(id) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joined < out[j].joined })
	return out
}

// dropActiveByPersistentIDLocked removes any active entry carrying the
// persistent id, keeping the at-most-one-active-per-identity invariant
// when a reconnect races a half-dead connection. Callers must hold s.mu.
func (s *Session) dropActiveByPersistentIDLocked(persistentID string) {
	for id, p := range s.active {
		if p.PersistentID == persistentID {
			delete(s.active, id)
		}
	}
}
