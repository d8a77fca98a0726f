package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

func (d *Device) setupOverlayPipeline() error {
	mod, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Overlay Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.OverlayWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create overlay shader module: %w", err)
	}
	defer mod.Release()

	d.OverlayPipeline, err = d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Overlay Pipeline",
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(gpu.OverlayVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: d.Config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		// The overlay draws inside the chunk pass, so it must declare the
		// same depth attachment even though it ignores depth.
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: false,
			DepthCompare:      wgpu.CompareFunctionAlways,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create overlay pipeline: %w", err)
	}

	d.Sampler, err = d.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}
	return nil
}

func (d *Device) SetOverlayAtlas(pix []byte, width, height int) error {
	if len(pix) != width*height {
		return fmt.Errorf("webgpu: atlas has %d bytes for %dx%d", len(pix), width, height)
	}

	release(d.OverlayBG)
	release(d.AtlasView)
	release(d.AtlasTexture)

	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Overlay Atlas",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create atlas texture: %w", err)
	}
	d.AtlasTexture = tex

	d.Queue.WriteTexture(tex.AsImageCopy(), pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(width),
		RowsPerImage: uint32(height),
	}, &wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1})

	d.AtlasView, err = tex.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create atlas view: %w", err)
	}

	d.OverlayBG, err = d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: d.OverlayPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: d.AtlasView},
			{Binding: 1, Sampler: d.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create overlay bind group: %w", err)
	}
	return nil
}

// uploadOverlay grows the overlay vertex buffer as needed and returns the
// vertex count to draw.
func (d *Device) uploadOverlay(vertices []gpu.OverlayVertex) uint32 {
	if len(vertices) == 0 || d.OverlayBG == nil {
		return 0
	}
	vSize := uint64(len(vertices) * int(unsafe.Sizeof(gpu.OverlayVertex{})))
	if d.OverlayVertexBuf == nil || d.OverlayVertexBuf.GetSize() < vSize {
		release(d.OverlayVertexBuf)
		var err error
		d.OverlayVertexBuf, err = d.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Overlay VB",
			Size:  vSize,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
	}
	d.Queue.WriteBuffer(d.OverlayVertexBuf, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), vSize))
	return uint32(len(vertices))
}
