package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// The cull program's calling convention. The shader sources are external
// assets compiled against these slots, so they are fixed.
const (
	CullWorkgroupSize = 64

	CullBindingSourceIndices    = 0 // read
	CullBindingCompactedIndices = 1 // write
	CullBindingPositions        = 2 // read
	CullBindingDrawArgs         = 3 // read-modify-write on Count

	CullUniformQuadCount = 0
	CullUniformViewProj  = 1

	// WebGPU has no loose uniforms; each one gets its own binding after
	// the storage buffers.
	CullBindingQuadCountUniform = 4
	CullBindingViewProjUniform  = 5

	// Each quad is 6 uint16 indices, read by the shader as 3 uint32 words.
	WordsPerQuad = 3
)

// CullWorkgroups is the dispatch size for quads work items.
func CullWorkgroups(quads uint32) uint32 {
	return (quads + CullWorkgroupSize - 1) / CullWorkgroupSize
}

// CullDispatch is one invocation of the visibility filter over a chunk's
// opaque index buffer.
type CullDispatch struct {
	QuadCount uint32
	ViewProj  mgl32.Mat4

	Source    Buffer
	Compacted Buffer
	Positions Buffer
	DrawArgs  Buffer
}

func (d *CullDispatch) Workgroups() uint32 {
	return CullWorkgroups(d.QuadCount)
}

// Bindings returns the storage buffers in binding-slot order.
func (d *CullDispatch) Bindings() [4]Buffer {
	return [4]Buffer{
		CullBindingSourceIndices:    d.Source,
		CullBindingCompactedIndices: d.Compacted,
		CullBindingPositions:        d.Positions,
		CullBindingDrawArgs:         d.DrawArgs,
	}
}

// QuadCountUniformBytes encodes the quad count padded to 16 bytes.
func QuadCountUniformBytes(quads uint32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, quads)
	return buf
}

// MatrixBytes encodes a mat4 column-major, as both WGSL and GLSL read it.
func MatrixBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// UnpackQuadWords splits a quad's 3 index words into its 6 indices in
// buffer order.
func UnpackQuadWords(words [WordsPerQuad]uint32) [6]uint16 {
	var out [6]uint16
	for i, w := range words {
		out[i*2] = uint16(w & 0xffff)
		out[i*2+1] = uint16(w >> 16)
	}
	return out
}

// QuadVisible is the visibility test of the cull pass. A quad is rejected
// only when every one of its vertices is outside the same clip plane, so
// nothing that reaches the screen is ever dropped.
//
// The test runs in homogeneous clip space without dividing by w, which
// keeps vertices behind the eye correct. Depth uses -w <= z <= w, which
// also admits everything inside WebGPU's 0 <= z <= w.
func QuadVisible(viewProj mgl32.Mat4, pts [6]mgl32.Vec3) bool {
	var outside [6]int
	for _, p := range pts {
		c := viewProj.Mul4x1(p.Vec4(1))
		w := c.W()
		if c.X() < -w {
			outside[0]++
		}
		if c.X() > w {
			outside[1]++
		}
		if c.Y() < -w {
			outside[2]++
		}
		if c.Y() > w {
			outside[3]++
		}
		if c.Z() < -w {
			outside[4]++
		}
		if c.Z() > w {
			outside[5]++
		}
	}
	for _, n := range outside {
		if n == len(pts) {
			return false
		}
	}
	return true
}
