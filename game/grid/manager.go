package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrMazeNotFound = errors.New("maze not found")
	ErrInvalidMaze  = errors.New("invalid maze")
)

// Manager loads and caches maze files from a directory. Maze files are
// JSON documents matching Definition; the file name (minus .json) is the
// maze's lookup key.
type Manager struct {
	mazeDir     string
	defaultMaze *Grid
	mazes       map[string]*Grid
	mu          sync.RWMutex
}

// MazeInfo summarizes an available maze for listings.
type MazeInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SpawnCells int    `json:"spawn_cells"`
}

// NewManager creates a maze manager rooted at mazeDir. A missing or empty
// directory is not an error; the built-in default maze is always available.
func NewManager(mazeDir string) *Manager {
	m := &Manager{
		mazeDir: mazeDir,
		mazes:   make(map[string]*Grid),
	}
	m.defaultMaze = m.loadDefault()
	return m
}

// Load returns the maze with the given id, reading it from disk on first
// use.
func (m *Manager) Load(id string) (*Grid, error) {
	m.mu.RLock()
	if g, ok := m.mazes[id]; ok {
		m.mu.RUnlock()
		return g, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check after acquiring the write lock.
	if g, ok := m.mazes[id]; ok {
		return g, nil
	}

	filename := id
	if !strings.HasSuffix(filename, ".json") {
		filename = id + ".json"
	}

	data, err := os.ReadFile(filepath.Join(m.mazeDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMazeNotFound
		}
		return nil, fmt.Errorf("failed to read maze file: %w", err)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMaze, err)
	}

	g, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMaze, err)
	}

	m.mazes[id] = g
	return g, nil
}

// List returns information about every maze file in the directory, plus
// the built-in default. Unreadable or invalid files are skipped.
func (m *Manager) List() []MazeInfo {
	infos := []MazeInfo{infoFor("default", m.defaultMaze)}

	entries, err := os.ReadDir(m.mazeDir)
	if err != nil {
		return infos
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		g, err := m.Load(id)
		if err != nil {
			continue
		}
		infos = append(infos, infoFor(id, g))
	}

	return infos
}

// Default returns the maze used for sessions that do not name one.
func (m *Manager) Default() *Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultMaze
}

// SetDefault switches the default maze to the named one.
func (m *Manager) SetDefault(id string) error {
	g, err := m.Load(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMaze = g
	return nil
}

func infoFor(id string, g *Grid) MazeInfo {
	w, h := g.Dimensions()
	return MazeInfo{
		ID:         id,
		Name:       g.Name(),
		Width:      w,
		Height:     h,
		SpawnCells: g.SpawnCount(),
	}
}

// loadDefault prefers a maze file named "default", then the first valid
// file in the directory, then the built-in maze.
func (m *Manager) loadDefault() *Grid {
	if g, err := m.Load("default"); err == nil {
		return g
	}

	entries, err := os.ReadDir(m.mazeDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			if g, err := m.Load(strings.TrimSuffix(entry.Name(), ".json")); err == nil {
				return g
			}
		}
	}

	return builtinMaze()
}

// builtinMaze is the fallback when no maze files are available: a bordered
// 9x9 room with four spawn cells near the corners.
func builtinMaze() *Grid {
	g, err := New(Definition{
		Name: "builtin",
		Tiles: []string{
			"#########",
			"#S.....S#",
			"#.#.#.#.#",
			"#.......#",
			"#.#.#.#.#",
			"#.......#",
			"#.#.#.#.#",
			"#S.....S#",
			"#########",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("builtin maze invalid: %v", err))
	}
	return g
}
