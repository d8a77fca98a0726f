package gpu

import (
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/mesh"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// IndexClass holds one opacity class's index buffers.
type IndexClass struct {
	Indices   Buffer
	Compacted Buffer
	DrawArgs  Buffer
	Count     uint32
}

func (c *IndexClass) QuadCount() uint32 {
	return c.Count / mesh.IndicesPerQuad
}

// ChunkBuffers is the GPU-resident copy of one chunk's mesh. The chunk owns
// every buffer in it exclusively; Release frees them all.
type ChunkBuffers struct {
	ID    uuid.UUID
	Label string

	Positions Buffer
	Texcoords Buffer
	Normals   Buffer
	Input     VertexInput

	Opaque      IndexClass
	Transparent IndexClass

	VertexCount int
}

func (c *ChunkBuffers) Class(class mesh.OpacityClass) *IndexClass {
	if class == mesh.Transparent {
		return &c.Transparent
	}
	return &c.Opaque
}

// CullDispatch builds the filter invocation for the opaque class.
func (c *ChunkBuffers) CullDispatch(viewProj mgl32.Mat4) *CullDispatch {
	return &CullDispatch{
		QuadCount: c.Opaque.QuadCount(),
		ViewProj:  viewProj,
		Source:    c.Opaque.Indices,
		Compacted: c.Opaque.Compacted,
		Positions: c.Positions,
		DrawArgs:  c.Opaque.DrawArgs,
	}
}

func (c *ChunkBuffers) Release() {
	for _, b := range []Buffer{
		c.Positions, c.Texcoords, c.Normals,
		c.Opaque.Indices, c.Opaque.Compacted, c.Opaque.DrawArgs,
		c.Transparent.Indices, c.Transparent.Compacted, c.Transparent.DrawArgs,
	} {
		if b != nil {
			b.Release()
		}
	}
	if c.Input != nil {
		c.Input.Release()
	}
	*c = ChunkBuffers{ID: c.ID, Label: c.Label}
}

// alignedSize rounds n up to 4 bytes with a minimum of 4, since empty
// or unaligned storage bindings are rejected by the backends.
func alignedSize(n int) uint64 {
	size := uint64(n)
	if size%4 != 0 {
		size += 4 - (size % 4)
	}
	if size == 0 {
		size = 4
	}
	return size
}

// UploadChunk copies m into GPU buffers and allocates the per-class
// compacted index buffer and draw-argument record. It panics if m breaks
// the MeshData invariants; allocation failures are returned.
func UploadChunk(dev Device, label string, m *mesh.MeshData) (*ChunkBuffers, error) {
	if err := m.Validate(); err != nil {
		panic(fmt.Sprintf("gpu: upload %s: %v", label, err))
	}

	cb := &ChunkBuffers{
		ID:          uuid.New(),
		VertexCount: m.VertexCount(),
	}
	cb.Label = fmt.Sprintf("%s %s", label, cb.ID)

	ok := false
	defer func() {
		if !ok {
			cb.Release()
		}
	}()

	var err error
	create := func(name string, data []byte, size uint64, usage BufferUsage, hint UpdateHint) (Buffer, error) {
		buf, err := dev.CreateBuffer(&BufferDescriptor{
			Label:    cb.Label + " " + name,
			Size:     size,
			Usage:    usage | BufferUsageCopyDst,
			Hint:     hint,
			Contents: data,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s buffer: %w", name, err)
		}
		return buf, nil
	}

	posBytes := m.PositionBytes()
	if cb.Positions, err = create("positions", posBytes, alignedSize(len(posBytes)), BufferUsageVertex|BufferUsageStorage, StaticDraw); err != nil {
		return nil, err
	}

	// The texcoord slot stays bound even though nothing writes texcoords
	// yet, so it is sized for every vertex and left zeroed.
	texBytes := m.TexcoordBytes()
	texSize := alignedSize(max(len(texBytes), m.VertexCount()*8))
	if cb.Texcoords, err = create("texcoords", texBytes, texSize, BufferUsageVertex, StaticDraw); err != nil {
		return nil, err
	}

	nrmBytes := m.NormalBytes()
	if cb.Normals, err = create("normals", nrmBytes, alignedSize(len(nrmBytes)), BufferUsageVertex, StaticDraw); err != nil {
		return nil, err
	}

	for _, class := range []mesh.OpacityClass{mesh.Opaque, mesh.Transparent} {
		ic := cb.Class(class)
		idxBytes := m.IndexBytes(class)
		size := alignedSize(len(idxBytes))
		ic.Count = uint32(len(m.Indices(class)))

		if ic.Indices, err = create(class.String()+" indices", idxBytes, size, BufferUsageIndex|BufferUsageStorage, StaticDraw); err != nil {
			return nil, err
		}
		// Worst case the cull pass keeps every quad.
		if ic.Compacted, err = create(class.String()+" compacted indices", nil, size, BufferUsageIndex|BufferUsageStorage, DynamicDraw); err != nil {
			return nil, err
		}
		if ic.DrawArgs, err = create(class.String()+" draw args", make([]byte, DrawArgsSize), DrawArgsSize, BufferUsageIndirect|BufferUsageStorage, DynamicDraw); err != nil {
			return nil, err
		}
	}

	cb.Input, err = dev.CreateVertexInput(VertexLayout{
		Positions: cb.Positions,
		Texcoords: cb.Texcoords,
		Normals:   cb.Normals,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex input: %w", err)
	}

	ok = true
	return cb, nil
}
