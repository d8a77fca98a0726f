package webgpu

import (
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

type buffer struct {
	dev   *Device
	buf   *wgpu.Buffer
	label string
	size  uint64
	usage gpu.BufferUsage
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Size() uint64           { return b.size }
func (b *buffer) Usage() gpu.BufferUsage { return b.usage }

func (b *buffer) Release() {
	if b.buf == nil {
		return
	}
	b.dev.forgetCull(b)
	b.buf.Release()
	b.buf = nil
}

type vertexInput struct {
	positions, texcoords, normals *buffer
}

// Release is a no-op; WebGPU binds vertex buffers per draw and the
// buffers are owned by the chunk.
func (v *vertexInput) Release() {}

func toWGPUUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(gpu.BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(gpu.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Has(gpu.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(gpu.BufferUsageIndirect) {
		out |= wgpu.BufferUsageIndirect
	}
	if u.Has(gpu.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(gpu.BufferUsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

// CreateBuffer ignores desc.Hint; WebGPU has no usage hints.
func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	size := alignedSize(desc.Size)
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             size,
		Usage:            toWGPUUsage(desc.Usage) | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", desc.Label, err)
	}
	if len(desc.Contents) > 0 {
		data := desc.Contents
		// Queue writes must be a multiple of 4 bytes.
		if pad := len(data) % 4; pad != 0 {
			data = append(append([]byte(nil), data...), make([]byte, 4-pad)...)
		}
		d.Queue.WriteBuffer(buf, 0, data)
	}
	return &buffer{dev: d, buf: buf, label: desc.Label, size: size, usage: desc.Usage}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) {
	b := mustBuffer(buf)
	d.Queue.WriteBuffer(b.buf, offset, data)
}

func (d *Device) CreateVertexInput(layout gpu.VertexLayout) (gpu.VertexInput, error) {
	return &vertexInput{
		positions: mustBuffer(layout.Positions),
		texcoords: mustBuffer(layout.Texcoords),
		normals:   mustBuffer(layout.Normals),
	}, nil
}

func mustBuffer(buf gpu.Buffer) *buffer {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		panic(fmt.Sprintf("webgpu: %T is not a webgpu buffer", buf))
	}
	if b.buf == nil {
		panic(fmt.Sprintf("webgpu: %q: %v", b.label, gpu.ErrReleased))
	}
	return b
}

// cullBindGroup returns the cached bind group for a dispatch, creating it
// on first use. Each chunk gets its own uniform buffers so dispatches
// recorded in the same frame do not overwrite each other's parameters.
func (d *Device) cullBindGroup(disp *gpu.CullDispatch) (*cullBinding, error) {
	args := mustBuffer(disp.DrawArgs)
	if cb, ok := d.cullBindings[args]; ok {
		d.Queue.WriteBuffer(cb.params, 0, gpu.QuadCountUniformBytes(disp.QuadCount))
		d.Queue.WriteBuffer(cb.viewProj, 0, gpu.MatrixBytes(disp.ViewProj))
		return cb, nil
	}

	params, err := d.createInitBuffer(args.label+" cull params", gpu.QuadCountUniformBytes(disp.QuadCount), wgpu.BufferUsageUniform)
	if err != nil {
		return nil, err
	}
	viewProj, err := d.createInitBuffer(args.label+" cull view proj", gpu.MatrixBytes(disp.ViewProj), wgpu.BufferUsageUniform)
	if err != nil {
		params.Release()
		return nil, err
	}

	bindings := disp.Bindings()
	entries := make([]wgpu.BindGroupEntry, 0, 6)
	for slot, buf := range bindings {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(slot), Buffer: mustBuffer(buf).buf, Size: wgpu.WholeSize})
	}
	entries = append(entries,
		wgpu.BindGroupEntry{Binding: gpu.CullBindingQuadCountUniform, Buffer: params, Size: wgpu.WholeSize},
		wgpu.BindGroupEntry{Binding: gpu.CullBindingViewProjUniform, Buffer: viewProj, Size: wgpu.WholeSize},
	)

	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   args.label + " cull",
		Layout:  d.CullPipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		params.Release()
		viewProj.Release()
		return nil, fmt.Errorf("failed to create cull bind group: %w", err)
	}

	cb := &cullBinding{params: params, viewProj: viewProj, bindGroup: bg}
	d.cullBindings[args] = cb
	return cb, nil
}

func (d *Device) forgetCull(args *buffer) {
	if cb, ok := d.cullBindings[args]; ok {
		cb.release()
		delete(d.cullBindings, args)
	}
}
