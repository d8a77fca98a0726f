// Package opengl implements gpu.Device on an OpenGL 4.3 core context.
// Every call must happen on the goroutine that owns the context.
package opengl

import (
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/shaders"

	"github.com/go-gl/gl/all-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Uniform locations of the chunk draw program.
const (
	chunkUniformViewProj = 0
	chunkUniformAlpha    = 1
)

var _ gpu.Device = (*Device)(nil)

type Device struct {
	Window *glfw.Window

	CullProgram    uint32
	ChunkProgram   uint32
	OverlayProgram uint32

	AtlasTexture  uint32
	OverlayVAO    uint32
	OverlayVBO    uint32
	overlayVBSize int
}

type buffer struct {
	id    uint32
	label string
	size  uint64
	usage gpu.BufferUsage
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Size() uint64           { return b.size }
func (b *buffer) Usage() gpu.BufferUsage { return b.usage }

func (b *buffer) Release() {
	if b.id == 0 {
		return
	}
	gl.DeleteBuffers(1, &b.id)
	b.id = 0
}

type vertexInput struct {
	vao uint32
}

func (v *vertexInput) Release() {
	if v.vao == 0 {
		return
	}
	gl.DeleteVertexArrays(1, &v.vao)
	v.vao = 0
}

// New makes window's context current and builds the programs. The window
// must have been created with a 4.3 core profile hint.
func New(window *glfw.Window) (*Device, error) {
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}

	d := &Device{Window: window}

	var err error
	d.CullProgram, err = linkProgram("cull", map[uint32]string{
		gl.COMPUTE_SHADER: shaders.CullComp,
	})
	if err != nil {
		return nil, err
	}
	d.ChunkProgram, err = linkProgram("chunk", map[uint32]string{
		gl.VERTEX_SHADER:   shaders.ChunkVert,
		gl.FRAGMENT_SHADER: shaders.ChunkFrag,
	})
	if err != nil {
		return nil, err
	}
	d.OverlayProgram, err = linkProgram("overlay", map[uint32]string{
		gl.VERTEX_SHADER:   shaders.OverlayVert,
		gl.FRAGMENT_SHADER: shaders.OverlayFrag,
	})
	if err != nil {
		return nil, err
	}

	gl.GenVertexArrays(1, &d.OverlayVAO)
	gl.GenBuffers(1, &d.OverlayVBO)
	gl.BindVertexArray(d.OverlayVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.OverlayVBO)
	const stride = int32(8 * 4)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, stride, gl.PtrOffset(8))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 4, gl.FLOAT, false, stride, gl.PtrOffset(16))
	gl.EnableVertexAttribArray(2)
	gl.BindVertexArray(0)

	return d, nil
}

func hintToGL(h gpu.UpdateHint) uint32 {
	if h == gpu.DynamicDraw {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if uint64(len(desc.Contents)) > desc.Size {
		return nil, fmt.Errorf("opengl: buffer %q: %d bytes of contents exceed size %d", desc.Label, len(desc.Contents), desc.Size)
	}
	b := &buffer{label: desc.Label, size: desc.Size, usage: desc.Usage}
	gl.GenBuffers(1, &b.id)
	if b.id == 0 {
		return nil, fmt.Errorf("failed to create %s buffer: glGenBuffers returned 0", desc.Label)
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, int(desc.Size), nil, hintToGL(desc.Hint))
	if len(desc.Contents) > 0 {
		gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(desc.Contents), gl.Ptr(desc.Contents))
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if e := gl.GetError(); e != gl.NO_ERROR {
		b.Release()
		return nil, fmt.Errorf("failed to create %s buffer: gl error 0x%x", desc.Label, e)
	}
	return b, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	b := mustBuffer(buf)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, int(offset), len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
}

func (d *Device) CreateVertexInput(layout gpu.VertexLayout) (gpu.VertexInput, error) {
	v := &vertexInput{}
	gl.GenVertexArrays(1, &v.vao)
	gl.BindVertexArray(v.vao)
	for _, a := range []struct {
		loc  uint32
		buf  gpu.Buffer
		size int32
	}{
		{gpu.AttribPosition, layout.Positions, 3},
		{gpu.AttribTexcoord, layout.Texcoords, 2},
		{gpu.AttribNormal, layout.Normals, 3},
	} {
		gl.BindBuffer(gl.ARRAY_BUFFER, mustBuffer(a.buf).id)
		gl.VertexAttribPointer(a.loc, a.size, gl.FLOAT, false, a.size*4, gl.PtrOffset(0))
		gl.EnableVertexAttribArray(a.loc)
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return v, nil
}

func (d *Device) SetOverlayAtlas(pix []byte, width, height int) error {
	if len(pix) != width*height {
		return fmt.Errorf("opengl: atlas has %d bytes for %dx%d", len(pix), width, height)
	}
	if d.AtlasTexture == 0 {
		gl.GenTextures(1, &d.AtlasTexture)
	}
	gl.BindTexture(gl.TEXTURE_2D, d.AtlasTexture)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R8, int32(width), int32(height), 0, gl.RED, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}

// Release deletes the device's programs and overlay resources.
func (d *Device) Release() {
	gl.DeleteProgram(d.CullProgram)
	gl.DeleteProgram(d.ChunkProgram)
	gl.DeleteProgram(d.OverlayProgram)
	gl.DeleteVertexArrays(1, &d.OverlayVAO)
	gl.DeleteBuffers(1, &d.OverlayVBO)
	if d.AtlasTexture != 0 {
		gl.DeleteTextures(1, &d.AtlasTexture)
	}
}

func mustBuffer(buf gpu.Buffer) *buffer {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		panic(fmt.Sprintf("opengl: %T is not an opengl buffer", buf))
	}
	if b.id == 0 {
		panic(fmt.Sprintf("opengl: %q: %v", b.label, gpu.ErrReleased))
	}
	return b
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(src + "\x00")
	defer free()
	gl.ShaderSource(shader, 1, csources, nil)
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("shader compile: %s", string(log))
	}
	return shader, nil
}

func linkProgram(name string, stages map[uint32]string) (uint32, error) {
	program := gl.CreateProgram()
	var attached []uint32
	defer func() {
		for _, s := range attached {
			gl.DeleteShader(s)
		}
	}()

	for kind, src := range stages {
		s, err := compileShader(src, kind)
		if err != nil {
			gl.DeleteProgram(program)
			return 0, fmt.Errorf("%s program: %w", name, err)
		}
		gl.AttachShader(program, s)
		attached = append(attached, s)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("%s program link: %s", name, string(log))
	}
	return program, nil
}
