package data

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
sprites: [mnt1, wmn3]
directions: [fr, bk, lf, rt]
base_tiles: [18]
structure_tile_min: 1
structure_tile_max: 8
landmark_tile: 30
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.SpriteCount() != 2 {
		t.Fatalf("sprite count = %d, want 2", c.SpriteCount())
	}
	if c.LandmarkTile != 30 {
		t.Fatalf("landmark tile = %d, want 30", c.LandmarkTile)
	}
}

func TestLoadCatalogRejectsEmptyPools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("sprites: []\nbase_tiles: [18]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected an error for an empty sprite pool")
	}
}

func TestCatalogRandomDraws(t *testing.T) {
	c := DefaultCatalog()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		tile := c.RandomStructureTile(rng)
		if tile < c.StructureTileMin || tile > c.StructureTileMax {
			t.Fatalf("structure tile %d outside [%d,%d]", tile, c.StructureTileMin, c.StructureTileMax)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[c.RandomDirection(rng)] = true
	}
	for _, d := range c.Directions {
		if !seen[d] {
			t.Fatalf("direction %q never drawn", d)
		}
	}
}
