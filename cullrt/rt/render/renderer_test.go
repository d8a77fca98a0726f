package render

import (
	"testing"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu/soft"
	"github.com/gekko3d/chunkcull/cullrt/rt/mesh"
	"github.com/gekko3d/chunkcull/cullrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op      string
	indices gpu.Buffer
	count   uint32
}

// recordingFrame captures the command sequence without executing it.
type recordingFrame struct {
	calls []call
}

func (f *recordingFrame) DispatchCull(d *gpu.CullDispatch) {
	f.calls = append(f.calls, call{op: "cull", indices: d.Source, count: d.QuadCount})
}

func (f *recordingFrame) DrawIndexed(_ gpu.VertexInput, indices gpu.Buffer, count uint32) {
	f.calls = append(f.calls, call{op: "draw", indices: indices, count: count})
}

func (f *recordingFrame) DrawIndexedBlended(_ gpu.VertexInput, indices gpu.Buffer, count uint32) {
	f.calls = append(f.calls, call{op: "blend", indices: indices, count: count})
}

func (f *recordingFrame) DrawIndexedIndirect(_ gpu.VertexInput, indices gpu.Buffer, _ gpu.Buffer) {
	f.calls = append(f.calls, call{op: "indirect", indices: indices})
}

func (f *recordingFrame) DrawOverlay([]gpu.OverlayVertex) {}
func (f *recordingFrame) Submit() error                    { return nil }

func ops(calls []call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.op
	}
	return out
}

func viewProj(eye mgl32.Vec3) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, 200.0)
	view := mgl32.LookAtV(eye, mgl32.Vec3{8, 8, 8}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func upload(t *testing.T, dev gpu.Device, m *mesh.MeshData) *gpu.ChunkBuffers {
	t.Helper()
	cb, err := gpu.UploadChunk(dev, "chunk", m)
	require.NoError(t, err)
	t.Cleanup(cb.Release)
	return cb
}

func randomMesh(seed int64) *mesh.MeshData {
	return mesh.Build(volume.Generate(volume.Coord{}, volume.Random{Density: volume.DefaultDensity, Seed: seed}))
}

// mixedMesh routes odd cell codes to the transparent class.
func mixedMesh() *mesh.MeshData {
	c := volume.NewChunk(volume.Coord{})
	c.Set(0, 0, 0, 1)
	c.Set(3, 0, 0, 2)
	c.Set(5, 5, 5, 3)
	b := mesh.Builder{Classify: func(code uint32) mesh.OpacityClass {
		if code%2 == 1 {
			return mesh.Transparent
		}
		return mesh.Opaque
	}}
	return b.Build(c)
}

func TestRenderChunk_Order(t *testing.T) {
	dev := soft.NewDevice(1)
	cb := upload(t, dev, mixedMesh())

	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{name: "filtering", cfg: Config{FilteringEnabled: true}, want: []string{"cull", "indirect", "blend"}},
		{name: "frozen", cfg: Config{FilteringEnabled: true, Frozen: true}, want: []string{"indirect", "blend"}},
		{name: "unfiltered", cfg: Config{}, want: []string{"draw", "blend"}},
		{name: "unfiltered frozen", cfg: Config{Frozen: true}, want: []string{"draw", "blend"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewChunkRenderer(tc.cfg, nil)
			f := &recordingFrame{}
			r.RenderChunk(f, cb, viewProj(mgl32.Vec3{8, 8, 60}))
			assert.Equal(t, tc.want, ops(f.calls))

			// Transparent geometry always comes from the full buffer.
			last := f.calls[len(f.calls)-1]
			assert.Equal(t, cb.Transparent.Indices, last.indices)
			assert.Equal(t, cb.Transparent.Count, last.count)
		})
	}
}

func TestRenderChunk_TransparentClassIsBlended(t *testing.T) {
	dev := soft.NewDevice(1)
	m := mixedMesh()
	cb := upload(t, dev, m)

	for _, cfg := range []Config{{FilteringEnabled: true}, {}} {
		r := NewChunkRenderer(cfg, nil)
		f, err := dev.BeginFrame(gpu.FrameParams{})
		require.NoError(t, err)
		r.RenderChunk(f, cb, viewProj(mgl32.Vec3{8, 8, 60}))
		require.NoError(t, f.Submit())

		draws := dev.Draws()
		require.Len(t, draws, 2, "%+v", cfg)
		assert.False(t, draws[0].Blended)
		assert.True(t, draws[1].Blended)
		assert.Equal(t, m.Transparent, draws[1].Indices)
		assert.Equal(t, 1, r.Stats().BlendedDraws)
	}
}

func TestRenderChunk_EmptyChunkIssuesNothing(t *testing.T) {
	dev := soft.NewDevice(1)
	cb := upload(t, dev, mesh.Build(volume.NewChunk(volume.Coord{})))

	for _, cfg := range []Config{{FilteringEnabled: true}, {}, {FilteringEnabled: true, Frozen: true}} {
		r := NewChunkRenderer(cfg, nil)
		f := &recordingFrame{}
		r.RenderChunk(f, cb, viewProj(mgl32.Vec3{8, 8, 60}))
		assert.Empty(t, f.calls, "%+v", cfg)
		assert.Equal(t, Stats{Chunks: 1}, r.Stats())
	}
}

func TestRenderChunk_FilteringDisabledDrawsFullBuffer(t *testing.T) {
	dev := soft.NewDevice(2)
	m := randomMesh(volume.DefaultSeed)
	cb := upload(t, dev, m)
	r := NewChunkRenderer(Config{FilteringEnabled: false}, nil)

	for _, eye := range []mgl32.Vec3{{8, 8, 60}, {8, 8, -60}} {
		f, err := dev.BeginFrame(gpu.FrameParams{})
		require.NoError(t, err)
		r.BeginFrame()
		r.RenderChunk(f, cb, viewProj(eye))
		require.NoError(t, f.Submit())

		draws := dev.Draws()
		require.Len(t, draws, 1)
		assert.False(t, draws[0].Indirect)
		assert.Equal(t, m.Opaque, draws[0].Indices)
		assert.Equal(t, Stats{Chunks: 1, DirectDraws: 1}, r.Stats())
	}
	assert.Zero(t, dev.Dispatches())
}

func TestRenderChunk_FrozenKeepsLastResult(t *testing.T) {
	dev := soft.NewDevice(4)
	cb := upload(t, dev, randomMesh(9))
	r := NewChunkRenderer(DefaultConfig(), nil)

	render := func(eye mgl32.Vec3) ([]byte, []byte) {
		t.Helper()
		f, err := dev.BeginFrame(gpu.FrameParams{})
		require.NoError(t, err)
		r.RenderChunk(f, cb, viewProj(eye))
		require.NoError(t, f.Submit())
		args, err := dev.ReadBuffer(cb.Opaque.DrawArgs)
		require.NoError(t, err)
		compacted, err := dev.ReadBuffer(cb.Opaque.Compacted)
		require.NoError(t, err)
		return args, compacted
	}

	args0, compacted0 := render(mgl32.Vec3{4, 4, 30})
	require.Equal(t, 1, dev.Dispatches())

	r.ToggleFrozen()
	args1, compacted1 := render(mgl32.Vec3{30, 4, 4})
	args2, compacted2 := render(mgl32.Vec3{8, 60, 8})

	assert.Equal(t, 1, dev.Dispatches(), "no dispatch while frozen")
	assert.Equal(t, args0, args1)
	assert.Equal(t, args1, args2)
	assert.Equal(t, compacted0, compacted1)
	assert.Equal(t, compacted1, compacted2)

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.True(t, draws[0].Indirect)

	r.ToggleFrozen()
	render(mgl32.Vec3{30, 4, 4})
	assert.Equal(t, 2, dev.Dispatches())
}

func TestRenderChunk_IndirectDrawUsesCompactedCount(t *testing.T) {
	dev := soft.NewDevice(4)
	m := randomMesh(21)
	cb := upload(t, dev, m)
	r := NewChunkRenderer(DefaultConfig(), nil)

	// Close enough that part of the chunk falls outside the frustum.
	vp := viewProj(mgl32.Vec3{8, 8, 18})
	f, err := dev.BeginFrame(gpu.FrameParams{})
	require.NoError(t, err)
	r.RenderChunk(f, cb, vp)
	require.NoError(t, f.Submit())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.True(t, draws[0].Indirect)
	assert.Equal(t, uint32(len(draws[0].Indices)), draws[0].Args.Count)
	assert.LessOrEqual(t, len(draws[0].Indices), len(m.Opaque))
	assert.Zero(t, len(draws[0].Indices)%mesh.IndicesPerQuad)
	assert.Equal(t, Stats{Chunks: 1, Dispatches: 1, IndirectDraws: 1}, r.Stats())
}

func TestChunkRenderer_IndependentInstances(t *testing.T) {
	a := NewChunkRenderer(DefaultConfig(), nil)
	b := NewChunkRenderer(DefaultConfig(), nil)

	assert.False(t, a.ToggleFiltering())
	assert.True(t, a.ToggleFrozen())

	assert.Equal(t, Config{FilteringEnabled: false, Frozen: true}, a.Config())
	assert.Equal(t, DefaultConfig(), b.Config())
}
