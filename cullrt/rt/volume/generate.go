package volume

import (
	"math/rand"
)

const (
	DefaultDensity = 0.1
	// DefaultSeed matches the default seed of a Mersenne Twister, which is
	// what the first worlds were generated with.
	DefaultSeed int64 = 5489
)

// Generator fills a freshly allocated chunk.
type Generator interface {
	Fill(c *Chunk)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(c *Chunk)

func (f GeneratorFunc) Fill(c *Chunk) { f(c) }

// Generate allocates a chunk at coord and runs gen over it.
func Generate(coord Coord, gen Generator) *Chunk {
	c := NewChunk(coord)
	if gen != nil {
		gen.Fill(c)
	}
	return c
}

// Random marks each cell solid with probability Density. The sequence only
// depends on Seed, so the same seed yields the same chunk regardless of
// its coordinate.
type Random struct {
	Density float64
	Seed    int64
	Value   uint32
}

func (g Random) Fill(c *Chunk) {
	value := g.Value
	if value == Empty {
		value = 1
	}
	r := rand.New(rand.NewSource(g.Seed))
	for i := range c.Cells {
		if r.Float64() < g.Density {
			c.Cells[i] = value
		} else {
			c.Cells[i] = Empty
		}
	}
}

// Solid fills every cell with Value.
type Solid struct {
	Value uint32
}

func (g Solid) Fill(c *Chunk) {
	for i := range c.Cells {
		c.Cells[i] = g.Value
	}
}

// Single sets exactly one cell.
type Single struct {
	X, Y, Z int
	Value   uint32
}

func (g Single) Fill(c *Chunk) {
	v := g.Value
	if v == Empty {
		v = 1
	}
	c.Set(g.X, g.Y, g.Z, v)
}

// Box fills the half-open local box [Min, Max).
type Box struct {
	Min, Max [3]int
	Value    uint32
}

func (g Box) Fill(c *Chunk) {
	v := g.Value
	if v == Empty {
		v = 1
	}
	for z := g.Min[2]; z < g.Max[2]; z++ {
		for y := g.Min[1]; y < g.Max[1]; y++ {
			for x := g.Min[0]; x < g.Max[0]; x++ {
				c.Set(x, y, z, v)
			}
		}
	}
}
