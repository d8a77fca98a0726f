package opengl

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"github.com/go-gl/gl/all-core/gl"
)

// cullBarriers makes the compute writes visible to the indirect draw that
// reads the args and the index fetch that reads the compacted buffer.
const cullBarriers = gl.COMMAND_BARRIER_BIT | gl.ELEMENT_ARRAY_BARRIER_BIT | gl.SHADER_STORAGE_BARRIER_BIT

var resetArgs = gpu.CulledDrawArgs(0).Bytes()

// frame issues GL commands as they are recorded; the context's command
// stream keeps them in order.
type frame struct {
	dev       *Device
	params    gpu.FrameParams
	overlay   []gpu.OverlayVertex
	submitted bool
}

func (d *Device) BeginFrame(params gpu.FrameParams) (gpu.Frame, error) {
	w, h := d.Window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(w), int32(h))
	cc := params.ClearColor
	gl.ClearColor(float32(cc[0]), float32(cc[1]), float32(cc[2]), float32(cc[3]))
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Disable(gl.CULL_FACE)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return &frame{dev: d, params: params}, nil
}

func (f *frame) DispatchCull(disp *gpu.CullDispatch) {
	args := mustBuffer(disp.DrawArgs)

	// The count must start at zero on the command stream, ahead of the
	// dispatch, rather than from inside the shader.
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, args.id)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(resetArgs), gl.Ptr(resetArgs))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if disp.QuadCount == 0 {
		return
	}

	gl.UseProgram(f.dev.CullProgram)
	gl.Uniform1ui(gpu.CullUniformQuadCount, disp.QuadCount)
	vp := disp.ViewProj
	gl.UniformMatrix4fv(gpu.CullUniformViewProj, 1, false, &vp[0])
	for slot, buf := range disp.Bindings() {
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, uint32(slot), mustBuffer(buf).id)
	}
	gl.DispatchCompute(disp.Workgroups(), 1, 1)
	gl.MemoryBarrier(cullBarriers)
}

func (f *frame) bindDraw(input gpu.VertexInput, indices gpu.Buffer, alpha float32) {
	gl.UseProgram(f.dev.ChunkProgram)
	vp := f.params.ViewProj
	gl.UniformMatrix4fv(chunkUniformViewProj, 1, false, &vp[0])
	gl.Uniform1f(chunkUniformAlpha, alpha)
	gl.BindVertexArray(input.(*vertexInput).vao)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, mustBuffer(indices).id)
}

func (f *frame) DrawIndexed(input gpu.VertexInput, indices gpu.Buffer, count uint32) {
	if count == 0 {
		return
	}
	f.bindDraw(input, indices, 1)
	gl.DrawElements(gl.TRIANGLES, int32(count), gl.UNSIGNED_SHORT, gl.PtrOffset(0))
	gl.BindVertexArray(0)
}

// DrawIndexedBlended keeps depth writes on; blending leaves destination
// alpha untouched.
func (f *frame) DrawIndexedBlended(input gpu.VertexInput, indices gpu.Buffer, count uint32) {
	if count == 0 {
		return
	}
	gl.Enable(gl.BLEND)
	gl.BlendEquation(gl.FUNC_ADD)
	gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ZERO, gl.ONE)
	f.bindDraw(input, indices, gpu.TransparentAlpha)
	gl.DrawElements(gl.TRIANGLES, int32(count), gl.UNSIGNED_SHORT, gl.PtrOffset(0))
	gl.BindVertexArray(0)
	gl.Disable(gl.BLEND)
}

func (f *frame) DrawIndexedIndirect(input gpu.VertexInput, indices gpu.Buffer, args gpu.Buffer) {
	f.bindDraw(input, indices, 1)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, mustBuffer(args).id)
	gl.DrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_SHORT, gl.PtrOffset(0))
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, 0)
	gl.BindVertexArray(0)
}

func (f *frame) DrawOverlay(vertices []gpu.OverlayVertex) {
	f.overlay = append(f.overlay, vertices...)
}

func (f *frame) drawOverlay() {
	d := f.dev
	if len(f.overlay) == 0 || d.AtlasTexture == 0 {
		return
	}
	size := len(f.overlay) * int(unsafe.Sizeof(gpu.OverlayVertex{}))

	gl.BindBuffer(gl.ARRAY_BUFFER, d.OverlayVBO)
	if size > d.overlayVBSize {
		gl.BufferData(gl.ARRAY_BUFFER, size, gl.Ptr(f.overlay), gl.DYNAMIC_DRAW)
		d.overlayVBSize = size
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, size, gl.Ptr(f.overlay))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.UseProgram(d.OverlayProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, d.AtlasTexture)
	gl.BindVertexArray(d.OverlayVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(f.overlay)))
	gl.BindVertexArray(0)
	gl.Disable(gl.BLEND)
	gl.Enable(gl.DEPTH_TEST)
}

// Submit draws the overlay, swaps buffers and reports the first GL error
// raised during the frame.
func (f *frame) Submit() error {
	if f.submitted {
		return errors.New("opengl: frame already submitted")
	}
	f.submitted = true

	f.drawOverlay()
	f.dev.Window.SwapBuffers()
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("opengl: frame finished with gl error 0x%x", e)
	}
	return nil
}
