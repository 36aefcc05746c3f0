package session

import (
	"log"
	"sync"
	"time"

	"github.com/labmaze/labmaze/game/grid"
	"github.com/labmaze/labmaze/identity"
)

// DefaultInactivityTimeout is how long a session may go without any access
// before it becomes a reap candidate.
const DefaultInactivityTimeout = 30 * time.Minute

// Directory owns the token -> Session mapping. Sessions are created on
// demand (tokens may be minted here or chosen by the first client to
// reference them) and expire after an inactivity timeout, but only once
// they hold zero active participants.
//
// The directory's lock covers only map insert/lookup/delete; it is never
// held during per-session work.
type Directory struct {
	mazes   *grid.Manager
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	timers   map[string]*time.Timer
}

// NewDirectory creates a directory whose sessions use the maze manager's
// default maze. A non-positive timeout falls back to
// DefaultInactivityTimeout.
func NewDirectory(mazes *grid.Manager, timeout time.Duration) *Directory {
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return &Directory{
		mazes:    mazes,
		timeout:  timeout,
		sessions: make(map[string]*Session),
		timers:   make(map[string]*time.Timer),
	}
}

// Create mints a fresh token and constructs a session for it.
func (d *Directory) Create() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	token := identity.Generate()
	for _, exists := d.sessions[token]; exists; _, exists = d.sessions[token] {
		token = identity.Generate()
	}

	s := New(token, d.mazes.Default())
	d.sessions[token] = s
	d.resetTimerLocked(token)
	log.Printf("Created session %s (maze %q)", token, s.Grid().Name())
	return s
}

// Get returns the session for token, refreshing its inactivity timer.
func (d *Directory) Get(token string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	d.resetTimerLocked(token)
	return s, nil
}

// Touch refreshes the inactivity timer for token without returning the
// session. Message traffic on a connection counts as access.
func (d *Directory) Touch(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[token]; ok {
		d.resetTimerLocked(token)
	}
}

// GetOrCreate returns the session for token, constructing one bound to
// that exact token if none exists. Tokens are case-sensitive. This is the
// join-by-link path: the first client to reference an unknown token causes
// its creation.
func (d *Directory) GetOrCreate(token string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[token]
	if !ok {
		s = New(token, d.mazes.Default())
		d.sessions[token] = s
		log.Printf("Created session %s on first reference (maze %q)", token, s.Grid().Name())
	}
	d.resetTimerLocked(token)
	return s
}

// Delete removes a session unconditionally.
func (d *Directory) Delete(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	d.removeLocked(token)
	return nil
}

// Tokens returns the tokens of every live session.
func (d *Directory) Tokens() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tokens := make([]string, 0, len(d.sessions))
	for token := range d.sessions {
		tokens = append(tokens, token)
	}
	return tokens
}

// Count returns the number of live sessions.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// resetTimerLocked (re)arms the inactivity timer for token. When it fires,
// the session is reaped only if it holds no active participants; an idle
// lobby or an emptied game goes away, a session with connected players
// survives regardless of elapsed time. Callers must hold d.mu.
func (d *Directory) resetTimerLocked(token string) {
	if t, ok := d.timers[token]; ok {
		t.Stop()
	}
	d.timers[token] = time.AfterFunc(d.timeout, func() {
		d.expire(token)
	})
}

// expire runs when an inactivity timer fires.
func (d *Directory) expire(token string) {
	d.mu.Lock()
	s, ok := d.sessions[token]
	d.mu.Unlock()
	if !ok {
		return
	}

	// Check occupancy outside the directory lock; the session has its own.
	if s.ActiveCount() > 0 {
		d.mu.Lock()
		// Still occupied: give it another window rather than leaving it
		// timer-less.
		if _, ok := d.sessions[token]; ok {
			d.resetTimerLocked(token)
		}
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[token]; !ok {
		return
	}
	d.removeLocked(token)
	log.Printf("Expired idle session %s", token)
}

// removeLocked deletes the session and stops its timer. Callers must hold
// d.mu.
func (d *Directory) removeLocked(token string) {
	if t, ok := d.timers[token]; ok {
		t.Stop()
		delete(d.timers, token)
	}
	delete(d.sessions, token)
}

// Info is a read-only summary of one session for the REST and MCP
// surfaces.
type Info struct {
	Token       string    `json:"token"`
	Maze        string    `json:"maze"`
	Phase       string    `json:"phase"`
	LobbyCount  int       `json:"lobby_count"`
	ActiveCount int       `json:"active_count"`
	Archived    int       `json:"archived_count"`
	SpawnUsed   int       `json:"spawn_used"`
	SpawnTotal  int       `json:"spawn_total"`
	CreatedAt   time.Time `json:"created_at"`
}

// InfoFor builds the summary for one session.
func InfoFor(s *Session) Info {
	used, total := s.SpawnPressure()
	return Info{
		Token:       s.Token(),
		Maze:        s.Grid().Name(),
		Phase:       s.Phase().String(),
		LobbyCount:  s.LobbyCount(),
		ActiveCount: s.ActiveCount(),
		Archived:    s.ArchivedCount(),
		SpawnUsed:   used,
		SpawnTotal:  total,
		CreatedAt:   s.CreatedAt(),
	}
}
