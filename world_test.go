package chunkcull

import (
	"testing"

	"github.com/gekko3d/chunkcull/cullrt/rt/core"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu/soft"
	"github.com/gekko3d/chunkcull/cullrt/rt/mesh"
	"github.com/gekko3d/chunkcull/cullrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// narrowViewProj looks down -Z at chunk (0,0,0) with a 10 degree field of
// view, so only the x = 0 column of the grid can be in view.
func narrowViewProj() mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(10), 1, 0.1, 500)
	view := mgl32.LookAtV(mgl32.Vec3{8, 8, 60}, mgl32.Vec3{8, 8, 8}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func newTestWorld(t *testing.T, cfg Config) (*World, *soft.Device) {
	t.Helper()
	dev := soft.NewDevice(2)
	w := NewWorld(dev, cfg, nil)
	t.Cleanup(w.Release)
	return w, dev
}

func renderFrame(t *testing.T, dev *soft.Device, w *World, vp mgl32.Mat4) WorldStats {
	t.Helper()
	f, err := dev.BeginFrame(gpu.FrameParams{ViewProj: vp})
	require.NoError(t, err)
	w.Render(f, vp)
	require.NoError(t, f.Submit())
	return w.Stats()
}

func TestWorld_LoadGrid(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	require.NoError(t, w.LoadGrid(2))

	coords := w.Chunks()
	require.Len(t, coords, 16)
	assert.Equal(t, volume.Coord{X: -2, Y: 0, Z: -2}, coords[0])
	assert.Equal(t, volume.Coord{X: 1, Y: 0, Z: 1}, coords[15])
	for i := 1; i < len(coords); i++ {
		assert.True(t, coords[i-1].Less(coords[i]))
		assert.Zero(t, coords[i].Y)
	}

	// Every chunk is generated from the same seed.
	a, _ := w.Chunk(coords[0])
	b, _ := w.Chunk(coords[7])
	assert.Equal(t, a.Chunk.Cells, b.Chunk.Cells)
	assert.Positive(t, a.Quads)

	assert.Panics(t, func() { _ = w.LoadGrid(-1) })
}

func TestWorld_LoadChunkReplaces(t *testing.T) {
	w, dev := newTestWorld(t, DefaultConfig())
	coord := volume.Coord{X: 3, Y: 1, Z: -4}

	require.NoError(t, w.LoadChunk(coord, volume.Single{X: 1, Y: 2, Z: 3, Value: 1}))
	first, _ := w.Chunk(coord)
	oldPositions := first.Buffers.Positions

	require.NoError(t, w.LoadChunk(coord, volume.Box{Max: [3]int{4, 4, 4}}))
	assert.Len(t, w.Chunks(), 1)

	_, err := dev.ReadBuffer(oldPositions)
	assert.ErrorIs(t, err, gpu.ErrReleased)
}

func TestWorld_LoadChunkRejectsOversizeChunk(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	coord := volume.Coord{X: 1}
	require.NoError(t, w.LoadChunk(coord, volume.Single{Value: 1}))
	before, _ := w.Chunk(coord)

	var err error
	assert.NotPanics(t, func() { err = w.LoadChunk(coord, volume.Solid{Value: 1}) })
	assert.ErrorContains(t, err, "16-bit index")

	after, ok := w.Chunk(coord)
	require.True(t, ok)
	assert.Same(t, before, after)
}

func TestWorld_LoadGridAtMaxDensity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Density = MaxDensity
	cfg.GridRadius = 1
	require.NoError(t, cfg.Validate())

	w, _ := newTestWorld(t, cfg)
	assert.NotPanics(t, func() { require.NoError(t, w.LoadGrid(cfg.GridRadius)) })
	lc, _ := w.Chunk(volume.Coord{})
	assert.LessOrEqual(t, lc.Chunk.SolidCount(), mesh.MaxSolidCells)
}

func TestWorld_UnloadChunk(t *testing.T) {
	w, dev := newTestWorld(t, DefaultConfig())
	coord := volume.Coord{}
	require.NoError(t, w.LoadChunk(coord, volume.Random{Density: volume.DefaultDensity, Seed: 1}))

	lc, ok := w.Chunk(coord)
	require.True(t, ok)
	indices := lc.Buffers.Opaque.Indices

	assert.True(t, w.UnloadChunk(coord))
	assert.False(t, w.UnloadChunk(coord))
	assert.Empty(t, w.Chunks())

	_, err := dev.ReadBuffer(indices)
	assert.ErrorIs(t, err, gpu.ErrReleased)
}

func TestWorld_RenderRejectsChunksOutsideFrustum(t *testing.T) {
	w, dev := newTestWorld(t, DefaultConfig())
	require.NoError(t, w.LoadGrid(2))
	vp := narrowViewProj()

	st := renderFrame(t, dev, w, vp)
	assert.Equal(t, 16, st.Chunks)
	assert.Less(t, st.VisibleChunks, 16)
	assert.Positive(t, st.VisibleChunks)
	assert.Equal(t, st.VisibleChunks, st.Dispatches)
	assert.Equal(t, st.VisibleChunks, st.IndirectDraws)
	assert.Zero(t, st.DirectDraws)
	assert.Len(t, dev.Draws(), st.VisibleChunks)

	planes := core.ExtractFrustum(vp)
	want := 0
	for _, c := range w.Chunks() {
		lc, _ := w.Chunk(c)
		if core.AABBInFrustum(lc.Chunk.WorldAABB(), planes) {
			want++
		}
		if c.X == -2 {
			assert.False(t, core.AABBInFrustum(lc.Chunk.WorldAABB(), planes), "%s", c)
		}
	}
	assert.Equal(t, want, st.VisibleChunks)

	near, _ := w.Chunk(volume.Coord{X: 0, Y: 0, Z: 1})
	assert.True(t, core.AABBInFrustum(near.Chunk.WorldAABB(), planes))
}

func TestWorld_RenderWithoutFilteringDrawsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FilteringEnabled = false
	w, dev := newTestWorld(t, cfg)
	require.NoError(t, w.LoadGrid(2))

	st := renderFrame(t, dev, w, narrowViewProj())
	assert.Equal(t, 16, st.VisibleChunks)
	assert.Equal(t, 16, st.DirectDraws)
	assert.Zero(t, st.Dispatches)
	assert.Zero(t, dev.Dispatches())

	lc, _ := w.Chunk(volume.Coord{})
	assert.Equal(t, 16*lc.Quads, st.Quads)
}

func TestWorld_FrozenReusesVisibleSet(t *testing.T) {
	w, dev := newTestWorld(t, DefaultConfig())
	require.NoError(t, w.LoadGrid(2))

	before := renderFrame(t, dev, w, narrowViewProj())
	dispatches := dev.Dispatches()

	w.Renderer().ToggleFrozen()
	// Looking the other way would reject every chunk if the set were rebuilt.
	away := mgl32.Perspective(mgl32.DegToRad(10), 1, 0.1, 500).
		Mul4(mgl32.LookAtV(mgl32.Vec3{8, 8, 60}, mgl32.Vec3{8, 8, 200}, mgl32.Vec3{0, 1, 0}))
	frozen := renderFrame(t, dev, w, away)

	assert.Equal(t, before.VisibleChunks, frozen.VisibleChunks)
	assert.Zero(t, frozen.Dispatches)
	assert.Equal(t, dispatches, dev.Dispatches())
	assert.Equal(t, before.VisibleChunks, frozen.IndirectDraws)

	w.Renderer().ToggleFrozen()
	thawed := renderFrame(t, dev, w, away)
	assert.Zero(t, thawed.VisibleChunks)
}

func TestWorld_EmptyChunkIsVisibleButDrawsNothing(t *testing.T) {
	w, dev := newTestWorld(t, DefaultConfig())
	require.NoError(t, w.LoadChunk(volume.Coord{}, nil))

	st := renderFrame(t, dev, w, narrowViewProj())
	assert.Equal(t, 1, st.VisibleChunks)
	assert.Zero(t, st.Quads)
	assert.Zero(t, st.Dispatches)
	assert.Empty(t, dev.Draws())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.GridRadius = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Density = 1.5
	assert.Error(t, cfg.Validate())

	// Dense enough that random chunks overflow 16-bit indices.
	cfg = DefaultConfig()
	cfg.Density = 0.8
	assert.Error(t, cfg.Validate())

	cfg.Density = MaxDensity
	assert.NoError(t, cfg.Validate())
	assert.Less(t, MaxDensity*volume.ChunkVoxelCount, float64(mesh.MaxSolidCells))
}
