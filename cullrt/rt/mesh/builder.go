package mesh

import (
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxSolidCells is the largest number of solid cells a chunk can hold
// before its vertices stop fitting in a 16-bit index.
const MaxSolidCells = MaxVertices / (VerticesPerQuad * QuadsPerCell)

type face struct {
	name    string
	offsets [4]mgl32.Vec3
	normal  mgl32.Vec3
}

// Face corners are unit cube corners relative to the cell's min corner.
// The normals are part of the vertex format as shipped and are not
// derived from the winding.
var faces = [QuadsPerCell]face{
	{
		name:    "front",
		offsets: [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		normal:  mgl32.Vec3{0, 0, 1},
	},
	{
		name:    "back",
		offsets: [4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}},
		normal:  mgl32.Vec3{0, 0, -1},
	},
	{
		name:    "bottom",
		offsets: [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1}},
		normal:  mgl32.Vec3{0, 1, 0},
	},
	{
		name:    "top",
		offsets: [4]mgl32.Vec3{{0, 1, 0}, {1, 1, 0}, {0, 1, 1}, {1, 1, 1}},
		normal:  mgl32.Vec3{0, -1, 0},
	},
	{
		name:    "left",
		offsets: [4]mgl32.Vec3{{0, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, 1, 1}},
		normal:  mgl32.Vec3{1, 0, 0},
	},
	{
		name:    "right",
		offsets: [4]mgl32.Vec3{{1, 0, 0}, {1, 1, 0}, {1, 0, 1}, {1, 1, 1}},
		normal:  mgl32.Vec3{-1, 0, 0},
	},
}

// quadIndices is the two-triangle pattern relative to a face's first vertex.
var quadIndices = [IndicesPerQuad]uint16{0, 1, 2, 2, 1, 3}

// Classifier maps a cell's opacity code to the index list its faces go to.
type Classifier func(code uint32) OpacityClass

// AlwaysOpaque is the current policy: nothing is semi-transparent yet.
func AlwaysOpaque(uint32) OpacityClass { return Opaque }

// Builder turns a chunk into MeshData. The zero value is ready to use.
type Builder struct {
	Classify Classifier
}

// Build is Builder{}.Build.
func Build(c *volume.Chunk) *MeshData {
	return (&Builder{}).Build(c)
}

// Build emits six quads for every solid cell, whether or not a neighbour
// hides them. Build panics if the chunk is malformed or has more than
// MaxSolidCells solid cells.
func (b *Builder) Build(c *volume.Chunk) *MeshData {
	if err := c.Validate(); err != nil {
		panic(err.Error())
	}
	solid := c.SolidCount()
	if solid > MaxSolidCells {
		panic(fmt.Sprintf("mesh: chunk %s has %d solid cells, at most %d fit a 16-bit index", c.Coord, solid, MaxSolidCells))
	}

	classify := b.Classify
	if classify == nil {
		classify = AlwaysOpaque
	}

	vertexCount := solid * QuadsPerCell * VerticesPerQuad
	m := &MeshData{
		Positions: make([]mgl32.Vec3, 0, vertexCount),
		Normals:   make([]mgl32.Vec3, 0, vertexCount),
	}

	for i, code := range c.Cells {
		if code == volume.Empty {
			continue
		}
		pos := c.CellOrigin(i)

		indices := &m.Opaque
		if classify(code) == Transparent {
			indices = &m.Transparent
		}

		for f := range faces {
			base := uint16(len(m.Positions))
			for _, off := range faces[f].offsets {
				m.Positions = append(m.Positions, pos.Add(off))
				m.Normals = append(m.Normals, faces[f].normal)
			}
			for _, qi := range quadIndices {
				*indices = append(*indices, base+qi)
			}
		}
	}

	return m
}
