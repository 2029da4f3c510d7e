package data

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds the sprite and tile pools used when generating a world.
// Loaded from YAML so art changes never require a recompile.
type Catalog struct {
	Sprites          []string `yaml:"sprites"`
	Directions       []string `yaml:"directions"`
	BaseTiles        []int    `yaml:"base_tiles"`
	StructureTileMin int      `yaml:"structure_tile_min"`
	StructureTileMax int      `yaml:"structure_tile_max"`
	LandmarkTile     int      `yaml:"landmark_tile"`
}

// LoadCatalog reads a catalog from the given YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c := &Catalog{}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// DefaultCatalog returns the built-in pools used when no catalog file is
// present (and by tests).
func DefaultCatalog() *Catalog {
	return &Catalog{
		Sprites: []string{
			"mnt1", "wmn3", "amg2", "man4", "wmg3", "npc1", "bmg1", "nja3",
			"dvl1", "npc3", "scr1", "pdn4", "pdn2", "nja1", "ftr2", "knt4",
			"ygr1", "wnv3", "thf3", "wnv2",
		},
		Directions:       []string{"fr", "bk", "lf", "rt"},
		BaseTiles:        []int{18},
		StructureTileMin: 1,
		StructureTileMax: 8,
		LandmarkTile:     30,
	}
}

func (c *Catalog) validate() error {
	if len(c.Sprites) == 0 {
		return fmt.Errorf("no sprites defined")
	}
	if len(c.BaseTiles) == 0 {
		return fmt.Errorf("no base tiles defined")
	}
	if c.StructureTileMax < c.StructureTileMin {
		return fmt.Errorf("structure tile range inverted (%d > %d)", c.StructureTileMin, c.StructureTileMax)
	}
	if len(c.Directions) == 0 {
		c.Directions = []string{"fr", "bk", "lf", "rt"}
	}
	return nil
}

// SpriteCount reports the number of sprites in the pool.
func (c *Catalog) SpriteCount() int { return len(c.Sprites) }

func (c *Catalog) RandomSprite(rng *rand.Rand) string {
	return c.Sprites[rng.Intn(len(c.Sprites))]
}

func (c *Catalog) RandomDirection(rng *rand.Rand) string {
	return c.Directions[rng.Intn(len(c.Directions))]
}

func (c *Catalog) RandomBaseTile(rng *rand.Rand) int {
	return c.BaseTiles[rng.Intn(len(c.BaseTiles))]
}

func (c *Catalog) RandomStructureTile(rng *rand.Rand) int {
	span := c.StructureTileMax - c.StructureTileMin + 1
	return c.StructureTileMin + rng.Intn(span)
}
