// Command mazecheck prints quick, human-readable diagnostics about maze
// files in a maze directory. It summarizes dimensions and spawn counts,
// flags malformed files, and highlights spawn cells that are walled off
// from the rest of the maze.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/labmaze/labmaze/game/grid"
)

func main() {
	dir := "mazes"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", dir, err)
		os.Exit(1)
	}

	checked := 0
	problems := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		checked++
		fmt.Printf("\n=== Checking %s ===\n", entry.Name())
		if !checkMaze(filepath.Join(dir, entry.Name())) {
			problems++
		}
	}

	if checked == 0 {
		fmt.Printf("No maze files found in %s\n", dir)
		return
	}
	fmt.Printf("\n%d maze(s) checked, %d with problems\n", checked, problems)
	if problems > 0 {
		os.Exit(1)
	}
}

// checkMaze reports on one maze file and returns false if it has any
// problem that would affect play.
func checkMaze(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return false
	}

	var def grid.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		return false
	}

	g, err := grid.New(def)
	if err != nil {
		fmt.Printf("Invalid maze: %v\n", err)
		return false
	}

	width, height := g.Dimensions()
	fmt.Printf("Name: %s\n", g.Name())
	fmt.Printf("Size: %d x %d\n", width, height)
	fmt.Printf("Spawn cells: %d\n", g.SpawnCount())

	ok := true
	if g.SpawnCount() == 0 {
		fmt.Println("PROBLEM: no spawn cells; nobody can be placed when a game starts")
		ok = false
	}

	for p := range g.SpawnCells() {
		if isolated(g, p) {
			fmt.Printf("PROBLEM: spawn (%d,%d) is walled in; a player placed there cannot move\n", p.X, p.Y)
			ok = false
		}
	}

	open, walls := 0, 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			kind, _ := g.CellAt(x, y)
			if kind == grid.Wall {
				walls++
			} else {
				open++
			}
		}
	}
	fmt.Printf("Open cells: %d, walls: %d\n", open, walls)

	if ok {
		fmt.Println("OK")
	}
	return ok
}

// isolated reports whether no orthogonal neighbor of p is walkable.
func isolated(g *grid.Grid, p grid.Position) bool {
	deltas := [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
	for _, d := range deltas {
		kind, in := g.CellAt(p.X+d[0], p.Y+d[1])
		if in && kind != grid.Wall {
			return false
		}
	}
	return true
}
