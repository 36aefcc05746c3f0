// Package protocol defines the JSON message set exchanged with clients
// over the session websocket.
//
// Every frame is a JSON object with a "type" discriminator. Client frames
// decode into the single ClientMessage union; server frames are built from
// the typed constructors so the discriminator can never drift from the
// payload shape.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/labmaze/labmaze/game/grid"
	"github.com/labmaze/labmaze/game/session"
)

// Type discriminates message payloads.
type Type string

// Client -> server.
const (
	TypeJoinLobby Type = "join-lobby"
	TypeSetReady  Type = "set-ready"
	TypeSetName   Type = "set-name"
	TypeSetColor  Type = "set-color"
	TypeMove      Type = "move"
)

// Server -> client.
const (
	TypeLobbyJoined  Type = "lobby-joined"
	TypeLobbyUpdated Type = "lobby-updated"
	TypeGameStarting Type = "game-starting"
	TypeGameStarted  Type = "game-started"
	TypeSpawnFull    Type = "spawn-full"
	TypePlayerJoined Type = "player-joined"
	TypePlayerMoved  Type = "player-moved"
	TypePlayerLeft   Type = "player-left"
)

// ClientMessage is the union of all inbound messages. Only the fields for
// the given Type are meaningful.
type ClientMessage struct {
	Type         Type   `json:"type"`
	PersistentID string `json:"persistentId,omitempty"` // join-lobby
	IsReady      bool   `json:"isReady,omitempty"`      // set-ready
	Name         string `json:"name,omitempty"`         // set-name
	Color        string `json:"color,omitempty"`        // set-color
	DX           int    `json:"dx,omitempty"`           // move
	DY           int    `json:"dy,omitempty"`           // move
}

// DecodeClient parses one inbound frame.
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed client message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("client message missing type")
	}
	return msg, nil
}

// LobbyJoined confirms a lobby join to the joining connection.
type LobbyJoined struct {
	Type         Type                   `json:"type"`
	ConnectionID string                 `json:"connectionId"`
	Role         session.Role           `json:"role"`
	Roster       []session.LobbyEntrant `json:"roster"`
}

// NewLobbyJoined builds a lobby-joined frame.
func NewLobbyJoined(connectionID string, role session.Role, roster []session.LobbyEntrant) LobbyJoined {
	return LobbyJoined{Type: TypeLobbyJoined, ConnectionID: connectionID, Role: role, Roster: roster}
}

// LobbyUpdated carries the full roster to everyone in the lobby.
type LobbyUpdated struct {
	Type   Type                   `json:"type"`
	Roster []session.LobbyEntrant `json:"roster"`
}

// NewLobbyUpdated builds a lobby-updated frame.
func NewLobbyUpdated(roster []session.LobbyEntrant) LobbyUpdated {
	return LobbyUpdated{Type: TypeLobbyUpdated, Roster: roster}
}

// GameStarting tells an entrant the game is about to begin and which role
// it will hold.
type GameStarting struct {
	Type Type         `json:"type"`
	Role session.Role `json:"role"`
}

// NewGameStarting builds a game-starting frame.
func NewGameStarting(role session.Role) GameStarting {
	return GameStarting{Type: TypeGameStarting, Role: role}
}

// GameStarted is sent individually to each newly-active connection with
// its own spawn coordinates and the other visible participants.
type GameStarted struct {
	Type         Type                  `json:"type"`
	ConnectionID string                `json:"connectionId"`
	X            int                   `json:"x"`
	Y            int                   `json:"y"`
	Others       []session.Participant `json:"otherParticipants"`
	Maze         grid.Definition       `json:"maze"`
	Role         session.Role          `json:"role"`
}

// NewGameStarted builds a game-started frame.
func NewGameStarted(connectionID string, x, y int, others []session.Participant, maze grid.Definition, role session.Role) GameStarted {
	return GameStarted{
		Type:         TypeGameStarted,
		ConnectionID: connectionID,
		X:            x,
		Y:            y,
		Others:       others,
		Maze:         maze,
		Role:         role,
	}
}

// SpawnFull tells a single connection that no spawn cell was available.
type SpawnFull struct {
	Type Type `json:"type"`
}

// NewSpawnFull builds a spawn-full frame.
func NewSpawnFull() SpawnFull {
	return SpawnFull{Type: TypeSpawnFull}
}

// PlayerJoined announces a (re)joined participant to the active roster.
type PlayerJoined struct {
	Type        Type                `json:"type"`
	Participant session.Participant `json:"participant"`
}

// NewPlayerJoined builds a player-joined frame.
func NewPlayerJoined(p session.Participant) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, Participant: p}
}

// PlayerMoved confirms an accepted move to the active roster.
type PlayerMoved struct {
	Type         Type   `json:"type"`
	ConnectionID string `json:"connectionId"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

// NewPlayerMoved builds a player-moved frame.
func NewPlayerMoved(connectionID string, x, y int) PlayerMoved {
	return PlayerMoved{Type: TypePlayerMoved, ConnectionID: connectionID, X: x, Y: y}
}

// PlayerLeft announces a departed participant to the active roster.
type PlayerLeft struct {
	Type         Type   `json:"type"`
	ConnectionID string `json:"connectionId"`
}

// NewPlayerLeft builds a player-left frame.
func NewPlayerLeft(connectionID string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, ConnectionID: connectionID}
}

// Encode marshals a server frame for the wire.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}
