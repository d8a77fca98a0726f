// Package webgpu implements gpu.Device on WebGPU.
package webgpu

import (
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// ClipCorrection maps OpenGL clip depth (-w..w) to WebGPU's (0..w) for
// the draw program.
var ClipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

var _ gpu.Device = (*Device)(nil)

type Device struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	DepthTexture *wgpu.Texture
	DepthView    *wgpu.TextureView

	CullPipeline       *wgpu.ComputePipeline
	ChunkPipeline      *wgpu.RenderPipeline
	ChunkBlendPipeline *wgpu.RenderPipeline
	OverlayPipeline    *wgpu.RenderPipeline

	CameraBuf *wgpu.Buffer
	// Auto layouts are per pipeline, so each chunk pipeline gets its own
	// camera bind group over the same buffer.
	CameraBG      *wgpu.BindGroup
	CameraBlendBG *wgpu.BindGroup
	ResetArgsBuf *wgpu.Buffer

	Sampler          *wgpu.Sampler
	AtlasTexture     *wgpu.Texture
	AtlasView        *wgpu.TextureView
	OverlayBG        *wgpu.BindGroup
	OverlayVertexBuf *wgpu.Buffer

	// Per-chunk cull bind groups keyed by the draw args buffer.
	cullBindings map[*buffer]*cullBinding
}

type cullBinding struct {
	params    *wgpu.Buffer
	viewProj  *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

func (c *cullBinding) release() {
	c.bindGroup.Release()
	c.params.Release()
	c.viewProj.Release()
}

// New creates a device rendering to window. The window must have been
// created with glfw.ClientAPI set to glfw.NoAPI.
func New(window *glfw.Window) (*Device, error) {
	d := &Device{
		Window:       window,
		cullBindings: make(map[*buffer]*cullBinding),
	}

	d.Instance = wgpu.CreateInstance(nil)
	d.Surface = d.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := d.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.Adapter = adapter

	d.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.Queue = d.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := d.Surface.GetCapabilities(adapter)
	d.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.Surface.Configure(adapter, d.Device, d.Config)

	if err := d.setupDepth(width, height); err != nil {
		return nil, err
	}
	if err := d.setupCull(); err != nil {
		return nil, err
	}
	if err := d.setupChunkPipeline(); err != nil {
		return nil, err
	}
	if err := d.setupOverlayPipeline(); err != nil {
		return nil, err
	}
	return d, nil
}

// Resize reconfigures the surface and depth buffer after a framebuffer
// size change.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	d.Config.Width = uint32(width)
	d.Config.Height = uint32(height)
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
	return d.setupDepth(width, height)
}

func (d *Device) setupDepth(width, height int) error {
	if d.DepthView != nil {
		d.DepthView.Release()
	}
	if d.DepthTexture != nil {
		d.DepthTexture.Release()
	}

	var err error
	d.DepthTexture, err = d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth texture: %w", err)
	}
	d.DepthView, err = d.DepthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create depth view: %w", err)
	}
	return nil
}

func (d *Device) setupCull() error {
	mod, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Cull CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.CullWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create cull shader module: %w", err)
	}
	defer mod.Release()

	d.CullPipeline, err = d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Cull Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     mod,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create cull pipeline: %w", err)
	}

	d.ResetArgsBuf, err = d.createInitBuffer("Reset Args", gpu.CulledDrawArgs(0).Bytes(), wgpu.BufferUsageCopySrc)
	if err != nil {
		return err
	}
	return nil
}

func (d *Device) setupChunkPipeline() error {
	mod, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Chunk VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ChunkWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create chunk shader module: %w", err)
	}
	defer mod.Release()

	d.ChunkPipeline, err = d.createChunkPipeline(mod, "Chunk Pipeline", "fs_main", nil)
	if err != nil {
		return err
	}
	// Matches the GL path: source-over color, destination alpha kept.
	d.ChunkBlendPipeline, err = d.createChunkPipeline(mod, "Chunk Blend Pipeline", "fs_transparent", &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorZero,
			DstFactor: wgpu.BlendFactorOne,
			Operation: wgpu.BlendOperationAdd,
		},
	})
	if err != nil {
		return err
	}

	d.CameraBuf, err = d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera UB",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create camera buffer: %w", err)
	}

	if d.CameraBG, err = d.cameraBindGroup(d.ChunkPipeline); err != nil {
		return err
	}
	if d.CameraBlendBG, err = d.cameraBindGroup(d.ChunkBlendPipeline); err != nil {
		return err
	}
	return nil
}

func (d *Device) createChunkPipeline(mod *wgpu.ShaderModule, label, fragEntry string, blend *wgpu.BlendState) (*wgpu.RenderPipeline, error) {
	attrib := func(format wgpu.VertexFormat, stride uint64, location uint32) wgpu.VertexBufferLayout {
		return wgpu.VertexBufferLayout{
			ArrayStride: stride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  []wgpu.VertexAttribute{{Format: format, Offset: 0, ShaderLocation: location}},
		}
	}

	p, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: label,
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				attrib(wgpu.VertexFormatFloat32x3, 12, gpu.AttribPosition),
				attrib(wgpu.VertexFormatFloat32x2, 8, gpu.AttribTexcoord),
				attrib(wgpu.VertexFormatFloat32x3, 12, gpu.AttribNormal),
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: fragEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    d.Config.Format,
				Blend:     blend,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			// Face winding is not consistent with the face normals.
			CullMode: wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	return p, nil
}

func (d *Device) cameraBindGroup(p *wgpu.RenderPipeline) (*wgpu.BindGroup, error) {
	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: p.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: d.CameraBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create camera bind group: %w", err)
	}
	return bg, nil
}

func (d *Device) createInitBuffer(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := alignedSize(uint64(len(data)))
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", label, err)
	}
	if len(data) > 0 {
		d.Queue.WriteBuffer(buf, 0, data)
	}
	return buf, nil
}

func alignedSize(n uint64) uint64 {
	if n%4 != 0 {
		n += 4 - (n % 4)
	}
	if n == 0 {
		n = 4
	}
	return n
}

// Release frees every device-owned resource. Chunk buffers must be
// released by their owners first.
func (d *Device) Release() {
	for _, cb := range d.cullBindings {
		cb.release()
	}
	d.cullBindings = nil

	release(d.OverlayBG)
	release(d.OverlayVertexBuf)
	release(d.AtlasView)
	release(d.AtlasTexture)
	release(d.Sampler)
	release(d.CameraBlendBG)
	release(d.CameraBG)
	release(d.CameraBuf)
	release(d.ResetArgsBuf)
	release(d.OverlayPipeline)
	release(d.ChunkBlendPipeline)
	release(d.ChunkPipeline)
	release(d.CullPipeline)
	release(d.DepthView)
	release(d.DepthTexture)
	release(d.Device)
	release(d.Surface)
	release(d.Adapter)
	release(d.Instance)
}

func release[T any, P interface {
	*T
	Release()
}](p P) {
	if p != nil {
		p.Release()
	}
}
