package grid

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeMazeFile(t *testing.T, dir, id string, def Definition) {
	t.Helper()
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("Failed to marshal maze: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0644); err != nil {
		t.Fatalf("Failed to write maze file: %v", err)
	}
}

func TestManager_Load(t *testing.T) {
	dir := t.TempDir()
	writeMazeFile(t, dir, "small", testDefinition())

	manager := NewManager(dir)

	t.Run("load existing maze", func(t *testing.T) {
		g, err := manager.Load("small")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if g.Name() != "test" {
			t.Errorf("Expected maze name 'test', got %q", g.Name())
		}
	})

	t.Run("cached load returns same grid", func(t *testing.T) {
		g1, _ := manager.Load("small")
		g2, _ := manager.Load("small")
		if g1 != g2 {
			t.Error("Expected cached grid to be reused")
		}
	})

	t.Run("missing maze", func(t *testing.T) {
		if _, err := manager.Load("missing"); err != ErrMazeNotFound {
			t.Errorf("Expected ErrMazeNotFound, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := manager.Load("broken"); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})

	t.Run("structurally invalid maze", func(t *testing.T) {
		writeMazeFile(t, dir, "ragged", Definition{Name: "ragged", Tiles: []string{"###", "#"}})
		if _, err := manager.Load("ragged"); err == nil {
			t.Error("Expected error for ragged maze")
		}
	})
}

func TestManager_Default(t *testing.T) {
	t.Run("missing directory falls back to builtin", func(t *testing.T) {
		manager := NewManager(filepath.Join(t.TempDir(), "nope"))
		g := manager.Default()
		if g == nil {
			t.Fatal("Default() returned nil")
		}
		if g.Name() != "builtin" {
			t.Errorf("Expected builtin maze, got %q", g.Name())
		}
		if g.SpawnCount() == 0 {
			t.Error("Builtin maze must have spawn cells")
		}
	})

	t.Run("default.json wins", func(t *testing.T) {
		dir := t.TempDir()
		def := testDefinition()
		def.Name = "the-default"
		writeMazeFile(t, dir, "default", def)

		manager := NewManager(dir)
		if manager.Default().Name() != "the-default" {
			t.Errorf("Expected default.json maze, got %q", manager.Default().Name())
		}
	})

	t.Run("set default", func(t *testing.T) {
		dir := t.TempDir()
		writeMazeFile(t, dir, "other", testDefinition())

		manager := NewManager(dir)
		if err := manager.SetDefault("other"); err != nil {
			t.Fatalf("SetDefault failed: %v", err)
		}
		if manager.Default().Name() != "test" {
			t.Errorf("Expected switched default, got %q", manager.Default().Name())
		}

		if err := manager.SetDefault("missing"); err != ErrMazeNotFound {
			t.Errorf("Expected ErrMazeNotFound, got %v", err)
		}
	})
}

func TestManager_List(t *testing.T) {
	dir := t.TempDir()
	writeMazeFile(t, dir, "a", testDefinition())
	writeMazeFile(t, dir, "b", testDefinition())
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(dir)
	infos := manager.List()

	ids := make(map[string]MazeInfo)
	for _, info := range infos {
		ids[info.ID] = info
	}

	if _, ok := ids["default"]; !ok {
		t.Error("Expected builtin default in listing")
	}
	for _, id := range []string{"a", "b"} {
		info, ok := ids[id]
		if !ok {
			t.Fatalf("Expected maze %q in listing", id)
		}
		if info.Width != 5 || info.Height != 5 || info.SpawnCells != 2 {
			t.Errorf("Maze %q info = %+v", id, info)
		}
	}
	if _, ok := ids["notes"]; ok {
		t.Error("Non-JSON files must not be listed")
	}
}
