package volume

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIndexMath(t *testing.T) {
	for i := 0; i < ChunkVoxelCount; i++ {
		x, y, z := Coords(i)
		require.True(t, InBounds(x, y, z))
		require.Equal(t, i, Index(x, y, z))
	}

	assert.Equal(t, 1, Index(1, 0, 0))
	assert.Equal(t, ChunkWidth, Index(0, 1, 0))
	assert.Equal(t, ChunkWidth*ChunkHeight, Index(0, 0, 1))
}

func TestChunkOrigin(t *testing.T) {
	c := NewChunk(Coord{X: -2, Y: 0, Z: 1})
	assert.Equal(t, mgl32.Vec3{-32, 0, 16}, c.Origin())

	// x=3, y=2, z=1
	i := Index(3, 2, 1)
	assert.Equal(t, mgl32.Vec3{-29, 2, 17}, c.CellOrigin(i))

	aabb := c.WorldAABB()
	assert.Equal(t, mgl32.Vec3{-32, 0, 16}, aabb[0])
	assert.Equal(t, mgl32.Vec3{-16, 16, 32}, aabb[1])
}

func TestChunkSetOutOfBoundsPanics(t *testing.T) {
	c := NewChunk(Coord{})
	assert.Panics(t, func() { c.Set(16, 0, 0, 1) })
	assert.Panics(t, func() { c.Set(0, -1, 0, 1) })
	assert.Equal(t, Empty, c.Get(-1, 0, 0))
}

func TestChunkValidate(t *testing.T) {
	c := NewChunk(Coord{})
	require.NoError(t, c.Validate())

	c.Cells = c.Cells[:10]
	assert.Error(t, c.Validate())
}

func TestGenerateRandomIsDeterministic(t *testing.T) {
	gen := Random{Density: DefaultDensity, Seed: DefaultSeed}
	a := Generate(Coord{0, 0, 0}, gen)
	b := Generate(Coord{1, 0, 0}, gen)

	assert.Equal(t, a.Cells, b.Cells)

	solid := a.SolidCount()
	// ~10% of 4096 with a generous margin
	assert.Greater(t, solid, 250)
	assert.Less(t, solid, 570)

	other := Generate(Coord{}, Random{Density: DefaultDensity, Seed: 42})
	assert.NotEqual(t, a.Cells, other.Cells)
}

func TestGenerators(t *testing.T) {
	tests := []struct {
		name  string
		gen   Generator
		solid int
	}{
		{name: "nil", gen: nil, solid: 0},
		{name: "single", gen: Single{X: 0, Y: 0, Z: 0}, solid: 1},
		{name: "box", gen: Box{Min: [3]int{0, 0, 0}, Max: [3]int{2, 3, 4}}, solid: 24},
		{name: "solid", gen: Solid{Value: 7}, solid: ChunkVoxelCount},
		{name: "random zero density", gen: Random{Density: 0, Seed: 1}, solid: 0},
		{name: "random full density", gen: Random{Density: 1, Seed: 1}, solid: ChunkVoxelCount},
		{name: "func", gen: GeneratorFunc(func(c *Chunk) { c.Set(15, 15, 15, 3) }), solid: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Generate(Coord{}, tc.gen)
			assert.Equal(t, tc.solid, c.SolidCount())
		})
	}
}
