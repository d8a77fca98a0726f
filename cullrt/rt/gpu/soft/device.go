// Package soft is a CPU implementation of gpu.Device. It runs the cull
// pass with the same buffer layouts and calling convention as the shader
// backends and records draws instead of rasterizing them.
package soft

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
)

type Buffer struct {
	label    string
	usage    gpu.BufferUsage
	data     []byte
	released bool
}

func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Size() uint64           { return uint64(len(b.data)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

func (b *Buffer) Release() {
	b.released = true
	b.data = nil
}

type vertexInput struct {
	layout   gpu.VertexLayout
	released bool
}

func (v *vertexInput) Release() { v.released = true }

// DrawCall is one executed draw with its index range resolved.
type DrawCall struct {
	Indirect bool
	Blended  bool
	Input    gpu.VertexInput
	Indices  []uint16
	// Args is the record an indirect draw consumed.
	Args gpu.DrawElementsIndirectCommand
}

var _ gpu.Device = (*Device)(nil)

// Device executes recorded frames at Submit. Cull workgroups fan out on a
// worker pool; everything else runs on the submitting goroutine.
type Device struct {
	pool worker.DynamicWorkerPool

	mu              sync.Mutex
	frames          int
	dispatches      int
	draws           []DrawCall
	overlayVertices int
	atlasW, atlasH  int
}

// NewDevice creates a device with the given number of cull workers;
// workers <= 0 uses one per spare CPU.
func NewDevice(workers int) *Device {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	return &Device{
		pool: worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if uint64(len(desc.Contents)) > desc.Size {
		return nil, fmt.Errorf("soft: buffer %q: %d bytes of contents exceed size %d", desc.Label, len(desc.Contents), desc.Size)
	}
	b := &Buffer{
		label: desc.Label,
		usage: desc.Usage,
		data:  make([]byte, desc.Size),
	}
	copy(b.data, desc.Contents)
	return b, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) {
	b, err := asBuffer(buf)
	if err != nil {
		panic(err)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		panic(fmt.Sprintf("soft: write of %d bytes at %d overflows buffer %q (%d bytes)", len(data), offset, b.label, len(b.data)))
	}
	copy(b.data[offset:], data)
}

func (d *Device) CreateVertexInput(layout gpu.VertexLayout) (gpu.VertexInput, error) {
	for _, buf := range []gpu.Buffer{layout.Positions, layout.Texcoords, layout.Normals} {
		if _, err := asBuffer(buf); err != nil {
			return nil, err
		}
	}
	return &vertexInput{layout: layout}, nil
}

func (d *Device) SetOverlayAtlas(pix []byte, width, height int) error {
	if len(pix) != width*height {
		return fmt.Errorf("soft: atlas has %d bytes for %dx%d", len(pix), width, height)
	}
	d.mu.Lock()
	d.atlasW, d.atlasH = width, height
	d.mu.Unlock()
	return nil
}

func (d *Device) BeginFrame(params gpu.FrameParams) (gpu.Frame, error) {
	return &frame{dev: d}, nil
}

// ReadBuffer returns a copy of a buffer's current contents.
func (d *Device) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	b, err := asBuffer(buf)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b.data...), nil
}

func (d *Device) ReadDrawArgs(buf gpu.Buffer) (gpu.DrawElementsIndirectCommand, error) {
	data, err := d.ReadBuffer(buf)
	if err != nil {
		return gpu.DrawElementsIndirectCommand{}, err
	}
	return gpu.ParseDrawArgs(data)
}

// ReadIndices reads the first count uint16 indices of buf.
func (d *Device) ReadIndices(buf gpu.Buffer, count uint32) ([]uint16, error) {
	b, err := asBuffer(buf)
	if err != nil {
		return nil, err
	}
	return readIndices(b, count)
}

// Draws returns the draws executed by the most recent Submit.
func (d *Device) Draws() []DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawCall(nil), d.draws...)
}

func (d *Device) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Dispatches is the total number of cull passes executed.
func (d *Device) Dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatches
}

func (d *Device) OverlayVertices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlayVertices
}

func asBuffer(buf gpu.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("soft: %T is not a soft buffer", buf)
	}
	if b.released {
		return nil, fmt.Errorf("soft: %q: %w", b.label, gpu.ErrReleased)
	}
	return b, nil
}

func readIndices(b *Buffer, count uint32) ([]uint16, error) {
	if uint64(count)*2 > uint64(len(b.data)) {
		return nil, fmt.Errorf("soft: %d indices overrun buffer %q (%d bytes)", count, b.label, len(b.data))
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b.data[i*2:])
	}
	return out, nil
}
