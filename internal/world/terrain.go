package world

import "github.com/gridvale/server/internal/data"

// Tile is one static terrain cell. The base layer is generated once at world
// creation and never mutated; structures are entities, not tiles.
type Tile struct {
	BaseLayer int `json:"baseLayer"`
}

// GetTile returns the terrain tile at a cell.
func (w *World) GetTile(x, y int) (Tile, bool) {
	if !w.InBounds(x, y) {
		return Tile{}, false
	}
	return w.tiles[y*w.Width+x], true
}

// generateTerrain fills the base layer with random tiles from the catalog.
func (w *World) generateTerrain(cat *data.Catalog) {
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			w.tiles[y*w.Width+x] = Tile{BaseLayer: cat.RandomBaseTile(w.rng)}
		}
	}
}
