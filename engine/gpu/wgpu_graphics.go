package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/common"
	"github.com/Carmen-Shannon/oxy-surface/engine/shader"
)

// clearColor is the background the surface is drawn over.
var clearColor = wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0}

// wgpuGraphics implements GraphicsContext. Until a compute context is linked it only holds the surface;
// linking supplies the adapter, device and queue shared by both halves.
type wgpuGraphics struct {
	log *zap.Logger

	surface     *wgpu.Surface
	presentMode wgpu.PresentMode
	width       int
	height      int

	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	format  wgpu.TextureFormat

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	buffers      []*wgpuBuffer
	programs     []*wgpuProgram
	vertexArrays []*wgpuVertexArray
}

var _ GraphicsContext = &wgpuGraphics{}

func (g *wgpuGraphics) Live() bool   { return g.surface != nil }
func (g *wgpuGraphics) Linked() bool { return g.device != nil }

// link attaches the device created for the compute context and configures the surface for it.
func (g *wgpuGraphics) link(adapter *wgpu.Adapter, device *wgpu.Device, queue *wgpu.Queue) error {
	caps := g.surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 {
		return errors.New("surface is not compatible with the selected adapter")
	}
	g.adapter = adapter
	g.device = device
	g.queue = queue
	g.format = caps.Formats[0]
	return g.configure()
}

func (g *wgpuGraphics) Resize(width, height int) error {
	g.width, g.height = width, height
	if !g.Linked() {
		return nil
	}
	return g.configure()
}

// configure (re)configures the swapchain and the Depth24Plus depth target at the current size.
// A zero-sized (minimized) window keeps the previous configuration.
func (g *wgpuGraphics) configure() error {
	if g.width <= 0 || g.height <= 0 {
		return nil
	}
	caps := g.surface.GetCapabilities(g.adapter)
	g.surface.Configure(g.adapter, g.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      g.format,
		Width:       uint32(g.width),
		Height:      uint32(g.height),
		PresentMode: g.presentMode,
		AlphaMode:   caps.AlphaModes[0],
	})

	g.releaseDepth()
	depthTexture, err := g.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Surface Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(g.width),
			Height:             uint32(g.height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth texture: %w", err)
	}
	depthView, err := depthTexture.CreateView(nil)
	if err != nil {
		depthTexture.Release()
		return fmt.Errorf("failed to create depth view: %w", err)
	}
	g.depthTexture = depthTexture
	g.depthView = depthView
	g.log.Debug("surface configured", zap.Int("width", g.width), zap.Int("height", g.height))
	return nil
}

func (g *wgpuGraphics) releaseDepth() {
	if g.depthView != nil {
		g.depthView.Release()
		g.depthView = nil
	}
	if g.depthTexture != nil {
		g.depthTexture.Release()
		g.depthTexture = nil
	}
}

func (g *wgpuGraphics) CreateBuffer(label string, size uint64) (GraphicsBuffer, error) {
	if !g.Linked() {
		return nil, errors.New("graphics context is not linked to a device")
	}
	buf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", label, err)
	}
	b := &wgpuBuffer{label: label, size: size, buffer: buf, shareable: true}
	g.buffers = append(g.buffers, b)
	return b, nil
}

func (g *wgpuGraphics) BuildProgram(label, vertexSource, fragmentSource string) (GraphicsProgram, error) {
	if !g.Linked() {
		return nil, errors.New("graphics context is not linked to a device")
	}
	for _, src := range []struct{ stage, code string }{{"vertex", vertexSource}, {"fragment", fragmentSource}} {
		if diag, err := shader.Validate(src.code); err != nil {
			return nil, fmt.Errorf("%s %s stage: %s", label, src.stage, diag)
		}
	}

	vs := shader.Parse(label+".vert", vertexSource)
	fs := shader.Parse(label+".frag", fragmentSource)
	vEntry, ok := vs.FirstEntryPoint(shader.StageVertex)
	if !ok {
		return nil, fmt.Errorf("%s: vertex stage has no @vertex entry point", label)
	}
	fEntry, ok := fs.FirstEntryPoint(shader.StageFragment)
	if !ok {
		return nil, fmt.Errorf("%s: fragment stage has no @fragment entry point", label)
	}

	vModule, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          vs.Label(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: vertexSource},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", vs.Label(), err)
	}
	fModule, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          fs.Label(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fragmentSource},
	})
	if err != nil {
		vModule.Release()
		return nil, fmt.Errorf("failed to compile %s: %w", fs.Label(), err)
	}

	p := &wgpuProgram{
		label:    label,
		vertex:   vs,
		fragment: fs,
		vEntry:   vEntry.Name,
		fEntry:   fEntry.Name,
		vModule:  vModule,
		fModule:  fModule,
		uniforms: map[uint32]*uniformBlock{},
	}
	for _, b := range vs.Bindings() {
		if b.Group != 0 || b.AddressSpace != "uniform" {
			continue
		}
		size := common.RoundUp16(vs.BindingSize(b))
		buf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label + " " + b.Name,
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			p.release()
			return nil, fmt.Errorf("failed to create uniform buffer %s: %w", b.Name, err)
		}
		p.uniforms[b.Binding] = &uniformBlock{buffer: buf, data: make([]byte, size), dirty: true}
	}
	g.programs = append(g.programs, p)
	return p, nil
}

func (g *wgpuGraphics) CreateVertexArray(program GraphicsProgram, buffer GraphicsBuffer, attr VertexAttribute) (VertexArray, error) {
	p, ok := program.(*wgpuProgram)
	if !ok {
		return nil, errors.New("program was not built by this context")
	}
	b, ok := buffer.(*wgpuBuffer)
	if !ok {
		return nil, errors.New("buffer was not created by this context")
	}
	format, err := floatVertexFormat(attr.Components)
	if err != nil {
		return nil, err
	}

	entries, err := p.vertex.BindGroupLayoutEntries(0, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	if err != nil {
		return nil, err
	}
	v := &wgpuVertexArray{attr: attr, program: p, buffer: b}
	v.bindGroupLayout, err = g.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   p.label + " Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout: %w", err)
	}
	v.pipelineLayout, err = g.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{v.bindGroupLayout},
	})
	if err != nil {
		v.release()
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	v.pipeline, err = g.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.label + " Render Pipeline",
		Layout: v.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.vModule,
			EntryPoint: p.vEntry,
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: attr.Stride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{{
					Format:         format,
					Offset:         attr.Offset,
					ShaderLocation: attr.Location,
				}},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.fModule,
			EntryPoint: p.fEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    g.format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyPointList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		v.release()
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}

	bgEntries := make([]wgpu.BindGroupEntry, 0, len(p.uniforms))
	for _, e := range entries {
		block, ok := p.uniforms[e.Binding]
		if !ok {
			v.release()
			return nil, fmt.Errorf("binding %d of %s is not a uniform block", e.Binding, p.label)
		}
		bgEntries = append(bgEntries, wgpu.BindGroupEntry{
			Binding: e.Binding,
			Buffer:  block.buffer,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	v.bindGroup, err = g.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label + " Bind Group",
		Layout:  v.bindGroupLayout,
		Entries: bgEntries,
	})
	if err != nil {
		v.release()
		return nil, fmt.Errorf("failed to create bind group: %w", err)
	}

	g.vertexArrays = append(g.vertexArrays, v)
	return v, nil
}

func (g *wgpuGraphics) DrawPoints(vao VertexArray, count uint32) error {
	v, ok := vao.(*wgpuVertexArray)
	if !ok {
		return errors.New("vertex array was not created by this context")
	}
	if g.depthView == nil {
		return errors.New("surface is not configured")
	}

	for _, block := range v.program.uniforms {
		if !block.dirty {
			continue
		}
		if err := g.queue.WriteBuffer(block.buffer, 0, block.data); err != nil {
			return fmt.Errorf("failed to upload uniforms of %s: %w", v.program.label, err)
		}
		block.dirty = false
	}

	surfaceTexture, err := g.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create surface view: %w", err)
	}
	defer view.Release()

	encoder, err := g.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clearColor,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            g.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	pass.SetPipeline(v.pipeline)
	pass.SetBindGroup(0, v.bindGroup, nil)
	pass.SetVertexBuffer(0, v.buffer.buffer, 0, wgpu.WholeSize)
	pass.Draw(count, 1, 0, 0)
	if err := pass.End(); err != nil {
		return fmt.Errorf("failed to end render pass: %w", err)
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish frame: %w", err)
	}
	g.queue.Submit(commandBuffer)
	commandBuffer.Release()

	g.surface.Present()
	return nil
}

func (g *wgpuGraphics) Release() {
	for _, v := range g.vertexArrays {
		v.release()
	}
	for _, p := range g.programs {
		p.release()
	}
	for _, b := range g.buffers {
		b.buffer.Release()
	}
	g.vertexArrays, g.programs, g.buffers = nil, nil, nil

	g.releaseDepth()
	if g.surface != nil {
		g.surface.Release()
		g.surface = nil
	}
	if g.queue != nil {
		g.queue.Release()
		g.queue = nil
	}
	if g.device != nil {
		g.device.Release()
		g.device = nil
	}
	if g.adapter != nil {
		g.adapter.Release()
		g.adapter = nil
	}
}

// wgpuBuffer implements GraphicsBuffer.
type wgpuBuffer struct {
	label     string
	size      uint64
	buffer    *wgpu.Buffer
	shareable bool
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }

// uniformBlock is the CPU staging copy of one uniform binding.
type uniformBlock struct {
	buffer *wgpu.Buffer
	data   []byte
	dirty  bool
}

// wgpuProgram implements GraphicsProgram.
type wgpuProgram struct {
	label    string
	vertex   *shader.Module
	fragment *shader.Module
	vEntry   string
	fEntry   string
	vModule  *wgpu.ShaderModule
	fModule  *wgpu.ShaderModule
	uniforms map[uint32]*uniformBlock
}

func (p *wgpuProgram) AttributeLocation(name string) (uint32, bool) {
	in, ok := p.vertex.VertexInput(name)
	return in.Location, ok
}

func (p *wgpuProgram) SetUniformMatrix(name string, m [16]float32) error {
	b, f, ok := p.vertex.UniformMember(name)
	if !ok {
		return fmt.Errorf("uniform %s is not declared by %s", name, p.vertex.Label())
	}
	block, ok := p.uniforms[b.Binding]
	if !ok || f.Offset+64 > uint64(len(block.data)) {
		return fmt.Errorf("uniform %s does not fit its block", name)
	}
	copy(block.data[f.Offset:], common.AppendFloat32s(nil, m[:]...))
	block.dirty = true
	return nil
}

func (p *wgpuProgram) release() {
	for _, block := range p.uniforms {
		block.buffer.Release()
	}
	p.uniforms = nil
	p.vModule.Release()
	p.fModule.Release()
}

// wgpuVertexArray implements VertexArray as a render pipeline plus the buffer it reads.
type wgpuVertexArray struct {
	attr      VertexAttribute
	program   *wgpuProgram
	buffer    *wgpuBuffer
	pipeline  *wgpu.RenderPipeline
	bindGroup *wgpu.BindGroup

	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
}

func (v *wgpuVertexArray) Attribute() VertexAttribute { return v.attr }

func (v *wgpuVertexArray) release() {
	if v.bindGroup != nil {
		v.bindGroup.Release()
		v.bindGroup = nil
	}
	if v.pipeline != nil {
		v.pipeline.Release()
		v.pipeline = nil
	}
	if v.pipelineLayout != nil {
		v.pipelineLayout.Release()
		v.pipelineLayout = nil
	}
	if v.bindGroupLayout != nil {
		v.bindGroupLayout.Release()
		v.bindGroupLayout = nil
	}
}

func floatVertexFormat(components int) (wgpu.VertexFormat, error) {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32, nil
	case 2:
		return wgpu.VertexFormatFloat32x2, nil
	case 3:
		return wgpu.VertexFormatFloat32x3, nil
	case 4:
		return wgpu.VertexFormatFloat32x4, nil
	}
	return 0, fmt.Errorf("unsupported attribute component count %d", components)
}
