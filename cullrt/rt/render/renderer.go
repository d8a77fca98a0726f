package render

import (
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Logger is the subset of the engine logger the renderer uses.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Config holds the two per-renderer flags that steer the cull pass.
type Config struct {
	// FilteringEnabled routes the opaque class through the cull pass and
	// an indirect draw. When false the full index buffer is drawn directly.
	FilteringEnabled bool
	// Frozen keeps drawing the last compacted result without dispatching
	// the cull pass again.
	Frozen bool
}

func DefaultConfig() Config {
	return Config{FilteringEnabled: true}
}

// Stats counts the work issued since the last BeginFrame.
type Stats struct {
	Chunks        int
	Dispatches    int
	IndirectDraws int
	DirectDraws   int
	BlendedDraws  int
}

type ChunkRenderer struct {
	config Config
	log    Logger
	stats  Stats
}

func NewChunkRenderer(cfg Config, log Logger) *ChunkRenderer {
	if log == nil {
		log = nopLogger{}
	}
	return &ChunkRenderer{config: cfg, log: log}
}

func (r *ChunkRenderer) Config() Config { return r.config }

func (r *ChunkRenderer) SetConfig(cfg Config) { r.config = cfg }

func (r *ChunkRenderer) ToggleFiltering() bool {
	r.config.FilteringEnabled = !r.config.FilteringEnabled
	r.log.Debugf("chunk filtering enabled: %v", r.config.FilteringEnabled)
	return r.config.FilteringEnabled
}

func (r *ChunkRenderer) ToggleFrozen() bool {
	r.config.Frozen = !r.config.Frozen
	r.log.Debugf("chunk culling frozen: %v", r.config.Frozen)
	return r.config.Frozen
}

// BeginFrame resets the per-frame counters.
func (r *ChunkRenderer) BeginFrame() {
	r.stats = Stats{}
}

func (r *ChunkRenderer) Stats() Stats { return r.stats }

// RenderChunk records one chunk's work into f, in order:
//  1. the cull pass over the opaque class, if filtering is on and not frozen
//  2. the opaque draw, indirect from the compacted buffer when filtering,
//     otherwise direct from the full buffer
//  3. the transparent draw, always direct, blended and in source order
//
// Empty classes issue nothing.
func (r *ChunkRenderer) RenderChunk(f gpu.Frame, c *gpu.ChunkBuffers, viewProj mgl32.Mat4) {
	r.stats.Chunks++
	cfg := r.config

	if cfg.FilteringEnabled && !cfg.Frozen && c.Opaque.QuadCount() > 0 {
		f.DispatchCull(c.CullDispatch(viewProj))
		r.stats.Dispatches++
	}

	if c.Opaque.Count > 0 {
		if cfg.FilteringEnabled {
			f.DrawIndexedIndirect(c.Input, c.Opaque.Compacted, c.Opaque.DrawArgs)
			r.stats.IndirectDraws++
		} else {
			f.DrawIndexed(c.Input, c.Opaque.Indices, c.Opaque.Count)
			r.stats.DirectDraws++
		}
	}

	if c.Transparent.Count > 0 {
		f.DrawIndexedBlended(c.Input, c.Transparent.Indices, c.Transparent.Count)
		r.stats.BlendedDraws++
	}
}
