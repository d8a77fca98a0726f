package mesh

import (
	"testing"

	"github.com/gekko3d/chunkcull/cullrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SingleCell(t *testing.T) {
	c := volume.Generate(volume.Coord{}, volume.Single{X: 0, Y: 0, Z: 0})
	m := Build(c)

	require.NoError(t, m.Validate())
	assert.Len(t, m.Positions, 24)
	assert.Len(t, m.Normals, 24)
	assert.Empty(t, m.Texcoords)
	assert.Len(t, m.Opaque, 36)
	assert.Empty(t, m.Transparent)

	// First face is front, then back.
	assert.Equal(t, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}, m.Positions[0:4])
	assert.Equal(t, []mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}}, m.Positions[4:8])
	assert.Equal(t, []uint16{0, 1, 2, 2, 1, 3, 4, 5, 6, 6, 5, 7}, m.Opaque[0:12])
}

func TestBuild_FaceOffsetsAndNormals(t *testing.T) {
	c := volume.Generate(volume.Coord{X: 1, Y: -1, Z: 0}, volume.Single{X: 2, Y: 3, Z: 4})
	m := Build(c)
	origin := mgl32.Vec3{16 + 2, -16 + 3, 4}

	expected := []struct {
		offsets [4]mgl32.Vec3
		normal  mgl32.Vec3
	}{
		{[4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}, mgl32.Vec3{0, 0, 1}},
		{[4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}}, mgl32.Vec3{0, 0, -1}},
		{[4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1}}, mgl32.Vec3{0, 1, 0}},
		{[4]mgl32.Vec3{{0, 1, 0}, {1, 1, 0}, {0, 1, 1}, {1, 1, 1}}, mgl32.Vec3{0, -1, 0}},
		{[4]mgl32.Vec3{{0, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, 1, 1}}, mgl32.Vec3{1, 0, 0}},
		{[4]mgl32.Vec3{{1, 0, 0}, {1, 1, 0}, {1, 0, 1}, {1, 1, 1}}, mgl32.Vec3{-1, 0, 0}},
	}

	require.Len(t, m.Positions, 24)
	for f, exp := range expected {
		for v := 0; v < 4; v++ {
			assert.Equal(t, origin.Add(exp.offsets[v]), m.Positions[f*4+v], "face %s vertex %d", faces[f].name, v)
			assert.Equal(t, exp.normal, m.Normals[f*4+v], "face %s vertex %d", faces[f].name, v)
		}
	}
}

func TestBuild_EmptyChunk(t *testing.T) {
	m := Build(volume.NewChunk(volume.Coord{}))

	require.NoError(t, m.Validate())
	assert.Empty(t, m.Positions)
	assert.Empty(t, m.Opaque)
	assert.Empty(t, m.Transparent)
	assert.Empty(t, m.IndexBytes(Opaque))
}

func TestBuild_CountsMatchSolidCells(t *testing.T) {
	for _, seed := range []int64{volume.DefaultSeed, 1, 2, 3} {
		c := volume.Generate(volume.Coord{X: int32(seed)}, volume.Random{Density: volume.DefaultDensity, Seed: seed})
		solid := c.SolidCount()
		m := Build(c)

		require.NoError(t, m.Validate())
		assert.Equal(t, 4*6*solid, len(m.Positions))
		assert.Equal(t, 6*6*solid, len(m.Opaque)+len(m.Transparent))
		for _, idx := range m.Opaque {
			assert.Less(t, int(idx), len(m.Positions))
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	c := volume.Generate(volume.Coord{X: -1, Z: 1}, volume.Random{Density: 0.2, Seed: 9})

	a := Build(c)
	b := Build(c)

	assert.Equal(t, a.PositionBytes(), b.PositionBytes())
	assert.Equal(t, a.NormalBytes(), b.NormalBytes())
	assert.Equal(t, a.IndexBytes(Opaque), b.IndexBytes(Opaque))
	assert.Equal(t, a.IndexBytes(Transparent), b.IndexBytes(Transparent))
}

func TestBuild_ClassifierRoutesWholeCells(t *testing.T) {
	c := volume.NewChunk(volume.Coord{})
	c.Set(0, 0, 0, 1)
	c.Set(5, 0, 0, 2)
	c.Set(7, 7, 7, 1)

	b := &Builder{Classify: func(code uint32) OpacityClass {
		if code == 2 {
			return Transparent
		}
		return Opaque
	}}
	m := b.Build(c)

	require.NoError(t, m.Validate())
	assert.Len(t, m.Opaque, 2*36)
	assert.Len(t, m.Transparent, 36)
	assert.Equal(t, 12, m.QuadCount(Opaque))
	assert.Equal(t, 6, m.QuadCount(Transparent))
}

func TestBuild_TooManySolidCellsPanics(t *testing.T) {
	full := volume.Generate(volume.Coord{}, volume.Solid{Value: 1})
	assert.Panics(t, func() { Build(full) })

	limit := volume.NewChunk(volume.Coord{})
	for i := 0; i < MaxSolidCells; i++ {
		limit.Cells[i] = 1
	}
	m := Build(limit)
	assert.LessOrEqual(t, len(m.Positions), MaxVertices)
	require.NoError(t, m.Validate())
}

func TestBuild_MalformedChunkPanics(t *testing.T) {
	c := &volume.Chunk{Cells: make([]uint32, 8)}
	assert.Panics(t, func() { Build(c) })
}
