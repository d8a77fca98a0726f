package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrReleased = errors.New("gpu: buffer already released")

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageUniform
	BufferUsageCopyDst
)

func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag != 0
}

// UpdateHint tells the backend how often a buffer's contents change.
type UpdateHint int

const (
	// StaticDraw buffers are written once at upload.
	StaticDraw UpdateHint = iota
	// DynamicDraw buffers are rewritten every frame by the GPU.
	DynamicDraw
)

type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
	Hint  UpdateHint
	// Contents, when set, is copied into the start of the buffer.
	Contents []byte
}

type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	Release()
}

// Vertex attribute slots shared by every draw program.
const (
	AttribPosition = 0
	AttribTexcoord = 1
	AttribNormal   = 2
)

// VertexLayout names the per-attribute buffers of a mesh. Positions and
// normals are float32x3, texcoords float32x2, all tightly packed.
type VertexLayout struct {
	Positions Buffer
	Texcoords Buffer
	Normals   Buffer
}

// VertexInput is a backend's bound vertex layout (a VAO on OpenGL).
type VertexInput interface {
	Release()
}

// TransparentAlpha is the coverage the transparent class is blended with.
const TransparentAlpha float32 = 0.5

// FrameParams are the per-frame inputs of the draw program.
type FrameParams struct {
	ViewProj   mgl32.Mat4
	ClearColor [4]float64
}

// OverlayVertex is a screen-space textured vertex for the debug overlay.
type OverlayVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

// Device is the slice of a graphics API the chunk pipeline needs.
// All calls happen on the submission goroutine.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte)
	CreateVertexInput(layout VertexLayout) (VertexInput, error)
	// SetOverlayAtlas uploads an 8-bit alpha glyph atlas for DrawOverlay.
	SetOverlayAtlas(pix []byte, width, height int) error
	BeginFrame(params FrameParams) (Frame, error)
}

// Frame records the GPU work of one frame. Commands execute in the order
// they are recorded; a draw observes the results of every dispatch
// recorded before it.
type Frame interface {
	DispatchCull(d *CullDispatch)
	DrawIndexed(input VertexInput, indices Buffer, count uint32)
	// DrawIndexedBlended draws like DrawIndexed with source-over alpha
	// blending at TransparentAlpha. Depth is still tested and written.
	DrawIndexedBlended(input VertexInput, indices Buffer, count uint32)
	DrawIndexedIndirect(input VertexInput, indices Buffer, args Buffer)
	DrawOverlay(vertices []OverlayVertex)
	Submit() error
}
