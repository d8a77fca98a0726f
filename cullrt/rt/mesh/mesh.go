package mesh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxVertices is the number of vertices addressable by a 16-bit index.
	MaxVertices = 1 << 16

	VerticesPerQuad = 4
	IndicesPerQuad  = 6
	QuadsPerCell    = 6
)

// OpacityClass selects the index list a cell's faces are routed into.
type OpacityClass int

const (
	Opaque OpacityClass = iota
	Transparent
)

func (c OpacityClass) String() string {
	switch c {
	case Opaque:
		return "opaque"
	case Transparent:
		return "transparent"
	default:
		return fmt.Sprintf("OpacityClass(%d)", int(c))
	}
}

// MeshData is the CPU-side geometry of one chunk.
//
// Positions, Normals and (when present) Texcoords are parallel. Index lists
// hold 16-bit vertex indices, grouped as two triangles per quad; the GPU
// cull pass treats each run of 6 indices as one work item.
type MeshData struct {
	Positions   []mgl32.Vec3
	Normals     []mgl32.Vec3
	Texcoords   []mgl32.Vec2
	Opaque      []uint16
	Transparent []uint16
}

func (m *MeshData) VertexCount() int {
	return len(m.Positions)
}

func (m *MeshData) Indices(class OpacityClass) []uint16 {
	if class == Transparent {
		return m.Transparent
	}
	return m.Opaque
}

func (m *MeshData) QuadCount(class OpacityClass) int {
	return len(m.Indices(class)) / IndicesPerQuad
}

// Validate checks the layout invariants the upload and the cull pass
// rely on.
func (m *MeshData) Validate() error {
	n := len(m.Positions)
	if n > MaxVertices {
		return fmt.Errorf("mesh: %d vertices exceed the 16-bit index space", n)
	}
	if len(m.Normals) != n {
		return fmt.Errorf("mesh: %d normals for %d positions", len(m.Normals), n)
	}
	if len(m.Texcoords) != 0 && len(m.Texcoords) != n {
		return fmt.Errorf("mesh: %d texcoords for %d positions", len(m.Texcoords), n)
	}
	for _, class := range []OpacityClass{Opaque, Transparent} {
		indices := m.Indices(class)
		if len(indices)%IndicesPerQuad != 0 {
			return fmt.Errorf("mesh: %s index count %d is not a multiple of %d", class, len(indices), IndicesPerQuad)
		}
		for i, idx := range indices {
			if int(idx) >= n {
				return fmt.Errorf("mesh: %s index %d at %d out of range (%d vertices)", class, idx, i, n)
			}
		}
	}
	return nil
}

// PositionBytes packs positions as tightly packed little-endian float32
// triples, the layout the cull shader reads as a flat float array.
func (m *MeshData) PositionBytes() []byte {
	return vec3Bytes(m.Positions)
}

func (m *MeshData) NormalBytes() []byte {
	return vec3Bytes(m.Normals)
}

func (m *MeshData) TexcoordBytes() []byte {
	buf := make([]byte, len(m.Texcoords)*8)
	for i, t := range m.Texcoords {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(t[0]))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(t[1]))
	}
	return buf
}

// IndexBytes packs an index list as little-endian uint16. Read as 32-bit
// words, quad q occupies words 3q..3q+2.
func (m *MeshData) IndexBytes(class OpacityClass) []byte {
	indices := m.Indices(class)
	buf := make([]byte, len(indices)*2)
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(buf[i*2:], idx)
	}
	return buf
}

func vec3Bytes(vs []mgl32.Vec3) []byte {
	buf := make([]byte, len(vs)*12)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*12:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[i*12+4:], math.Float32bits(v[1]))
		binary.LittleEndian.PutUint32(buf[i*12+8:], math.Float32bits(v[2]))
	}
	return buf
}
