package webgpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

type cmdKind int

const (
	cmdCull cmdKind = iota
	cmdDraw
	cmdDrawBlended
	cmdDrawIndirect
)

type command struct {
	kind    cmdKind
	cull    gpu.CullDispatch
	input   *vertexInput
	indices *buffer
	args    *buffer
	count   uint32
}

type frame struct {
	dev       *Device
	params    gpu.FrameParams
	cmds      []command
	overlay   []gpu.OverlayVertex
	submitted bool
}

// BeginFrame writes the frame's camera with ClipCorrection applied for the
// draw program. Cull dispatches keep the uncorrected matrix, since the cull
// shader tests the -w..w depth range like the other backends.
func (d *Device) BeginFrame(params gpu.FrameParams) (gpu.Frame, error) {
	params.ViewProj = ClipCorrection.Mul4(params.ViewProj)
	d.Queue.WriteBuffer(d.CameraBuf, 0, gpu.MatrixBytes(params.ViewProj))
	return &frame{dev: d, params: params}, nil
}

func (f *frame) DispatchCull(disp *gpu.CullDispatch) {
	f.cmds = append(f.cmds, command{kind: cmdCull, cull: *disp})
}

func (f *frame) DrawIndexed(input gpu.VertexInput, indices gpu.Buffer, count uint32) {
	if count == 0 {
		return
	}
	f.cmds = append(f.cmds, command{kind: cmdDraw, input: input.(*vertexInput), indices: mustBuffer(indices), count: count})
}

func (f *frame) DrawIndexedBlended(input gpu.VertexInput, indices gpu.Buffer, count uint32) {
	if count == 0 {
		return
	}
	f.cmds = append(f.cmds, command{kind: cmdDrawBlended, input: input.(*vertexInput), indices: mustBuffer(indices), count: count})
}

func (f *frame) DrawIndexedIndirect(input gpu.VertexInput, indices gpu.Buffer, args gpu.Buffer) {
	f.cmds = append(f.cmds, command{kind: cmdDrawIndirect, input: input.(*vertexInput), indices: mustBuffer(indices), args: mustBuffer(args)})
}

func (f *frame) DrawOverlay(vertices []gpu.OverlayVertex) {
	f.overlay = append(f.overlay, vertices...)
}

// Submit encodes the frame and presents it. Every cull dispatch gets its
// own compute pass preceded by an args reset copy; consecutive draws share
// a render pass. WebGPU orders passes within an encoder, so a draw sees the
// args and compacted indices written by any earlier dispatch.
func (f *frame) Submit() error {
	if f.submitted {
		return errors.New("webgpu: frame already submitted")
	}
	f.submitted = true
	d := f.dev

	nextTexture, err := d.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("GetCurrentTexture failed: %w", err)
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("CreateView failed: %w", err)
	}
	defer view.Release()

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("CreateCommandEncoder failed: %w", err)
	}
	defer encoder.Release()

	var rPass *wgpu.RenderPassEncoder
	var bound *wgpu.RenderPipeline
	cleared := false
	endRender := func() error {
		if rPass == nil {
			return nil
		}
		err := rPass.End()
		rPass.Release()
		rPass = nil
		bound = nil
		if err != nil {
			return fmt.Errorf("render pass End failed: %w", err)
		}
		return nil
	}
	beginRender := func() {
		if rPass != nil {
			return
		}
		colorLoad, depthLoad := wgpu.LoadOpLoad, wgpu.LoadOpLoad
		if !cleared {
			colorLoad, depthLoad = wgpu.LoadOpClear, wgpu.LoadOpClear
			cleared = true
		}
		cc := f.params.ClearColor
		rPass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       view,
				LoadOp:     colorLoad,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]},
			}},
			DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
				View:            d.DepthView,
				DepthLoadOp:     depthLoad,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			},
		})
	}
	usePipeline := func(p *wgpu.RenderPipeline, camera *wgpu.BindGroup) {
		if bound == p {
			return
		}
		rPass.SetPipeline(p)
		rPass.SetBindGroup(0, camera, nil)
		bound = p
	}

	for i := range f.cmds {
		c := &f.cmds[i]
		switch c.kind {
		case cmdCull:
			if err := endRender(); err != nil {
				return err
			}
			if err := f.encodeCull(encoder, &c.cull); err != nil {
				return err
			}
		case cmdDraw, cmdDrawBlended, cmdDrawIndirect:
			beginRender()
			if c.kind == cmdDrawBlended {
				usePipeline(d.ChunkBlendPipeline, d.CameraBlendBG)
			} else {
				usePipeline(d.ChunkPipeline, d.CameraBG)
			}
			rPass.SetVertexBuffer(gpu.AttribPosition, c.input.positions.buf, 0, wgpu.WholeSize)
			rPass.SetVertexBuffer(gpu.AttribTexcoord, c.input.texcoords.buf, 0, wgpu.WholeSize)
			rPass.SetVertexBuffer(gpu.AttribNormal, c.input.normals.buf, 0, wgpu.WholeSize)
			rPass.SetIndexBuffer(c.indices.buf, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
			if c.kind == cmdDrawIndirect {
				rPass.DrawIndexedIndirect(c.args.buf, 0)
			} else {
				rPass.DrawIndexed(c.count, 1, 0, 0, 0)
			}
		}
	}

	// Clear the target even when nothing was drawn.
	beginRender()
	if n := d.uploadOverlay(f.overlay); n > 0 {
		usePipeline(d.OverlayPipeline, d.OverlayBG)
		rPass.SetVertexBuffer(0, d.OverlayVertexBuf, 0, d.OverlayVertexBuf.GetSize())
		rPass.Draw(n, 1, 0, 0)
	}
	if err := endRender(); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder Finish failed: %w", err)
	}
	defer cmd.Release()
	d.Queue.Submit(cmd)
	d.Surface.Present()
	return nil
}

func (f *frame) encodeCull(encoder *wgpu.CommandEncoder, disp *gpu.CullDispatch) error {
	d := f.dev
	args := mustBuffer(disp.DrawArgs)

	// Reset on the command stream so it is ordered after any earlier draw
	// that consumed these args.
	if err := encoder.CopyBufferToBuffer(d.ResetArgsBuf, 0, args.buf, 0, gpu.DrawArgsSize); err != nil {
		return fmt.Errorf("reset draw args: %w", err)
	}
	if disp.QuadCount == 0 {
		return nil
	}

	cb, err := d.cullBindGroup(disp)
	if err != nil {
		return err
	}

	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(d.CullPipeline)
	cPass.SetBindGroup(0, cb.bindGroup, nil)
	cPass.DispatchWorkgroups(disp.Workgroups(), 1, 1)
	err = cPass.End()
	cPass.Release()
	if err != nil {
		return fmt.Errorf("cull pass End failed: %w", err)
	}
	return nil
}
