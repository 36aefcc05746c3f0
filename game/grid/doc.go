// Package grid provides the immutable maze resource used by game sessions.
//
// A Grid is built once from a Definition (the JSON shape shared with
// clients: name plus rows of '#', '.', and 'S' runes) and never mutated
// afterwards, so every query is safe under concurrent access from any
// number of session workers.
//
// Cell Kinds:
//
// Wall cells block movement, Open cells are walkable, and Spawn cells are
// walkable cells additionally eligible as initial placements for subjects.
// Spawn cells are enumerated in row-major order by SpawnCells, which is
// what makes the session's spawn-slot allocation deterministic.
//
// Maze Files:
//
// Manager loads maze definitions from a directory of JSON files, caches
// them, and falls back to a built-in maze when the directory is missing or
// empty. The file name without extension is the maze id.
package grid
