package chunkcull

import (
	"fmt"
	"slices"

	"github.com/gekko3d/chunkcull/cullrt/rt/core"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/mesh"
	"github.com/gekko3d/chunkcull/cullrt/rt/render"
	"github.com/gekko3d/chunkcull/cullrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
)

// LoadedChunk pairs a chunk's cells with its uploaded mesh.
type LoadedChunk struct {
	Chunk   *volume.Chunk
	Buffers *gpu.ChunkBuffers
	Quads   int
}

// WorldStats reports the most recent Render.
type WorldStats struct {
	Chunks        int
	VisibleChunks int
	// Quads is the number of quads submitted for drawing before the GPU
	// filter runs.
	Quads int
	render.Stats
}

// World owns the loaded chunk set and renders it through one
// ChunkRenderer. It must be used from the goroutine that owns the device.
type World struct {
	dev      gpu.Device
	builder  mesh.Builder
	renderer *render.ChunkRenderer
	log      Logger
	cfg      Config

	chunks map[volume.Coord]*LoadedChunk
	// visible is the chunk set drawn by the last unfrozen frame.
	visible []volume.Coord
	stats   WorldStats
}

func NewWorld(dev gpu.Device, cfg Config, log Logger) *World {
	if log == nil {
		log = NewNopLogger()
	}
	log = log.Named("world")
	return &World{
		dev:      dev,
		renderer: render.NewChunkRenderer(cfg.RenderConfig(), log.Named("render")),
		log:      log,
		cfg:      cfg,
		chunks:   make(map[volume.Coord]*LoadedChunk),
	}
}

// SetClassifier replaces the opacity classifier used for chunks loaded
// from now on.
func (w *World) SetClassifier(fn mesh.Classifier) {
	w.builder.Classify = fn
}

func (w *World) Renderer() *render.ChunkRenderer { return w.renderer }

func (w *World) Stats() WorldStats { return w.stats }

// LoadChunk generates, meshes and uploads the chunk at coord, replacing
// any chunk already loaded there. A chunk too dense for 16-bit indices is
// rejected before meshing and leaves the loaded set unchanged.
func (w *World) LoadChunk(coord volume.Coord, gen volume.Generator) error {
	c := volume.Generate(coord, gen)
	if n := c.SolidCount(); n > mesh.MaxSolidCells {
		return fmt.Errorf("load chunk %s: %d solid cells, at most %d fit a 16-bit index", coord, n, mesh.MaxSolidCells)
	}
	m := w.builder.Build(c)

	bufs, err := gpu.UploadChunk(w.dev, "chunk"+coord.String(), m)
	if err != nil {
		return fmt.Errorf("load chunk %s: %w", coord, err)
	}

	if old, ok := w.chunks[coord]; ok {
		old.Buffers.Release()
	}
	w.chunks[coord] = &LoadedChunk{
		Chunk:   c,
		Buffers: bufs,
		Quads:   m.QuadCount(mesh.Opaque) + m.QuadCount(mesh.Transparent),
	}
	w.log.Debugf("loaded chunk %s: %d solid cells, %d opaque quads, %d transparent quads",
		coord, c.SolidCount(), m.QuadCount(mesh.Opaque), m.QuadCount(mesh.Transparent))
	return nil
}

// LoadGrid loads chunks at x, z in [-radius, radius) on the y = 0 layer,
// all filled by the configured random generator.
func (w *World) LoadGrid(radius int) error {
	if radius < 0 {
		panic(fmt.Sprintf("chunkcull: negative grid radius %d", radius))
	}
	gen := volume.Random{Density: w.cfg.Density, Seed: w.cfg.Seed}
	for x := -radius; x < radius; x++ {
		for z := -radius; z < radius; z++ {
			if err := w.LoadChunk(volume.Coord{X: int32(x), Y: 0, Z: int32(z)}, gen); err != nil {
				return err
			}
		}
	}
	w.log.Infof("loaded %d chunks", len(w.chunks))
	return nil
}

// UnloadChunk releases the chunk at coord. It reports whether one was loaded.
func (w *World) UnloadChunk(coord volume.Coord) bool {
	lc, ok := w.chunks[coord]
	if !ok {
		return false
	}
	lc.Buffers.Release()
	delete(w.chunks, coord)
	return true
}

func (w *World) Chunk(coord volume.Coord) (*LoadedChunk, bool) {
	lc, ok := w.chunks[coord]
	return lc, ok
}

// Chunks returns the loaded coordinates in ascending order.
func (w *World) Chunks() []volume.Coord {
	out := make([]volume.Coord, 0, len(w.chunks))
	for c := range w.chunks {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b volume.Coord) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// visibleChunks picks the chunks to hand to the renderer this frame.
func (w *World) visibleChunks(viewProj mgl32.Mat4) []volume.Coord {
	all := w.Chunks()
	rc := w.renderer.Config()
	if !w.cfg.ChunkFrustumCulling || !rc.FilteringEnabled {
		return all
	}
	if rc.Frozen && w.visible != nil {
		return w.visible
	}

	planes := core.ExtractFrustum(viewProj)
	vis := make([]volume.Coord, 0, len(all))
	for _, c := range all {
		if core.AABBInFrustum(w.chunks[c].Chunk.WorldAABB(), planes) {
			vis = append(vis, c)
		}
	}
	w.visible = vis
	return vis
}

// Render records every visible chunk into f. viewProj maps chunk
// positions to clip space.
func (w *World) Render(f gpu.Frame, viewProj mgl32.Mat4) {
	w.renderer.BeginFrame()
	st := WorldStats{Chunks: len(w.chunks)}

	for _, c := range w.visibleChunks(viewProj) {
		lc, ok := w.chunks[c]
		if !ok {
			continue
		}
		w.renderer.RenderChunk(f, lc.Buffers, viewProj)
		st.VisibleChunks++
		st.Quads += lc.Quads
	}

	st.Stats = w.renderer.Stats()
	w.stats = st
}

// Release frees every loaded chunk.
func (w *World) Release() {
	for c, lc := range w.chunks {
		lc.Buffers.Release()
		delete(w.chunks, c)
	}
	w.visible = nil
}
