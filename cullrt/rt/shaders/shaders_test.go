package shaders

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"github.com/stretchr/testify/assert"
)

func TestEmbedded(t *testing.T) {
	for name, src := range map[string]string{
		"cull.wgsl":    CullWGSL,
		"chunk.wgsl":   ChunkWGSL,
		"overlay.wgsl": OverlayWGSL,
		"cull.comp":    CullComp,
		"chunk.vert":   ChunkVert,
		"chunk.frag":   ChunkFrag,
		"overlay.vert": OverlayVert,
		"overlay.frag": OverlayFrag,
	} {
		assert.NotEmpty(t, strings.TrimSpace(src), name)
	}
}

func TestCullBindings(t *testing.T) {
	assert.Contains(t, CullWGSL, "@workgroup_size(64)")
	assert.Contains(t, CullComp, "local_size_x = 64")
	for slot := 0; slot < 6; slot++ {
		assert.Contains(t, CullWGSL, fmt.Sprintf("@binding(%d)", slot))
	}
	for slot := 0; slot < 4; slot++ {
		assert.Contains(t, CullComp, fmt.Sprintf("binding = %d", slot))
	}
	assert.Contains(t, CullComp, "layout(location = 0) uniform uint quad_count")
	assert.Contains(t, CullComp, "layout(location = 1) uniform mat4 view_proj")
}

func TestChunkTransparentVariant(t *testing.T) {
	assert.Contains(t, ChunkWGSL, "fn fs_main(")
	assert.Contains(t, ChunkWGSL, "fn fs_transparent(")
	assert.Contains(t, ChunkWGSL, fmt.Sprintf("vec4<f32>(shade(in.normal), %g)", gpu.TransparentAlpha))
	assert.Contains(t, ChunkFrag, "layout(location = 1) uniform float alpha")
}
