package shaders

import (
	_ "embed"
)

//go:embed cull.wgsl
var CullWGSL string

//go:embed chunk.wgsl
var ChunkWGSL string

//go:embed overlay.wgsl
var OverlayWGSL string

//go:embed cull.comp
var CullComp string

//go:embed chunk.vert
var ChunkVert string

//go:embed chunk.frag
var ChunkFrag string

//go:embed overlay.vert
var OverlayVert string

//go:embed overlay.frag
var OverlayFrag string
