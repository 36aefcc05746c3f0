package grid

import (
	"errors"
	"fmt"
	"iter"
)

// CellKind classifies a single maze cell.
type CellKind string

const (
	Wall  CellKind = "wall"
	Open  CellKind = "open"
	Spawn CellKind = "spawn"
)

// Tile runes used in maze files and on the wire.
const (
	TileWall  = '#'
	TileOpen  = '.'
	TileSpawn = 'S'
)

var (
	ErrEmptyMaze  = errors.New("maze has no rows")
	ErrRaggedMaze = errors.New("maze rows have inconsistent widths")
)

// Position is an x,y grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Definition mirrors the maze JSON schema shared with clients.
type Definition struct {
	Name   string   `json:"name"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Tiles  []string `json:"tiles"`
}

// Grid is an immutable maze. All methods are read-only, so concurrent use
// from any number of goroutines is safe without locking.
type Grid struct {
	name   string
	width  int
	height int
	cells  [][]CellKind
}

// New builds a Grid from a Definition. Rows must be non-empty and of equal
// width; the Width/Height fields of the definition are advisory and the
// tile data wins.
func New(def Definition) (*Grid, error) {
	if len(def.Tiles) == 0 {
		return nil, ErrEmptyMaze
	}

	width := len(def.Tiles[0])
	if width == 0 {
		return nil, ErrEmptyMaze
	}

	cells := make([][]CellKind, len(def.Tiles))
	for y, row := range def.Tiles {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, expected %d", ErrRaggedMaze, y, len(row), width)
		}
		cells[y] = make([]CellKind, width)
		for x, r := range []byte(row) {
			switch r {
			case TileWall:
				cells[y][x] = Wall
			case TileSpawn:
				cells[y][x] = Spawn
			default:
				cells[y][x] = Open
			}
		}
	}

	return &Grid{
		name:   def.Name,
		width:  width,
		height: len(cells),
		cells:  cells,
	}, nil
}

// Name returns the maze's display name.
func (g *Grid) Name() string { return g.name }

// Dimensions returns (width, height).
func (g *Grid) Dimensions() (int, int) { return g.width, g.height }

// InBounds reports whether (x,y) is a valid coordinate.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// CellAt returns the kind of the cell at (x,y). The second return is false
// outside the grid bounds.
func (g *Grid) CellAt(x, y int) (CellKind, bool) {
	if !g.InBounds(x, y) {
		return "", false
	}
	return g.cells[y][x], true
}

// SpawnCells yields every spawn cell in row-major order. The sequence is
// finite and restartable; ranging over it twice visits the same cells in
// the same order.
func (g *Grid) SpawnCells() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		for y := 0; y < g.height; y++ {
			for x := 0; x < g.width; x++ {
				if g.cells[y][x] == Spawn {
					if !yield(Position{X: x, Y: y}) {
						return
					}
				}
			}
		}
	}
}

// SpawnCount returns the total number of spawn cells.
func (g *Grid) SpawnCount() int {
	n := 0
	for range g.SpawnCells() {
		n++
	}
	return n
}

// Definition re-serializes the grid into its wire form, suitable for
// sending to clients in game-started messages.
func (g *Grid) Definition() Definition {
	tiles := make([]string, g.height)
	for y := 0; y < g.height; y++ {
		row := make([]byte, g.width)
		for x := 0; x < g.width; x++ {
			switch g.cells[y][x] {
			case Wall:
				row[x] = TileWall
			case Spawn:
				row[x] = TileSpawn
			default:
				row[x] = TileOpen
			}
		}
		tiles[y] = string(row)
	}
	return Definition{
		Name:   g.name,
		Width:  g.width,
		Height: g.height,
		Tiles:  tiles,
	}
}
