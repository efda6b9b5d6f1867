// Package fakegpu is an in-memory gpu.Driver. It reflects real WGSL through the shader package, so
// link and entry-point failures behave like the real driver, and it records every queue and draw
// operation so tests can assert on ordering and buffer ownership.
package fakegpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/shader"
)

// Operation names recorded in Driver.Ops and accepted as Driver.FailOn keys.
const (
	OpCreateBuffer  = "create_buffer"
	OpShareBuffer   = "share_buffer"
	OpAcquire       = "acquire"
	OpRelease       = "release"
	OpWrite         = "write"
	OpDispatch      = "dispatch"
	OpDraw          = "draw"
	OpBuildCompute  = "build_compute"
	OpBuildGraphics = "build_graphics"
	OpCreateQueue   = "create_queue"
	OpCreateContext = "create_context"
	OpResize        = "resize"
)

// Platform returns a platform with one GPU device.
func Platform() gpu.Platform {
	return gpu.Platform{
		Name:    "Fake Platform",
		Vendor:  "oxy",
		Version: "1.0",
		Devices: []gpu.Device{{Name: "Fake GPU", Vendor: "oxy", Driver: "fake", Type: gpu.DeviceTypeGPU}},
	}
}

// Surface is a window stand-in with no native surface.
type Surface struct {
	W, H int
}

var _ gpu.Surface = Surface{}

func (s Surface) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (s Surface) Width() int                                 { return s.W }
func (s Surface) Height() int                                { return s.H }

// Driver is the fake gpu.Driver. Set fields before bring-up to shape the run.
type Driver struct {
	// PlatformList is returned from Platforms.
	PlatformList []gpu.Platform
	// FailOn makes the named operation return the mapped error.
	FailOn map[string]error

	// Ops lists every recorded operation in order.
	Ops []string

	Graphics *GraphicsContext
	Compute  *ComputeContext
	Queue    *Queue
	Buffers  []*Buffer
	Released bool

	// Teardown lists the contexts in the order they were released, "compute" or "graphics".
	Teardown []string
}

var _ gpu.Driver = &Driver{}

// NewDriver creates a fake driver exposing the given platforms.
func NewDriver(platforms ...gpu.Platform) *Driver {
	return &Driver{PlatformList: platforms, FailOn: map[string]error{}}
}

func (d *Driver) fail(op string) error {
	d.Ops = append(d.Ops, op)
	if err, ok := d.FailOn[op]; ok {
		return err
	}
	return nil
}

// Count returns how many times op was recorded.
func (d *Driver) Count(op string) int {
	n := 0
	for _, o := range d.Ops {
		if o == op {
			n++
		}
	}
	return n
}

func (d *Driver) CreateGraphicsContext(surface gpu.Surface, mode gpu.PresentMode) (gpu.GraphicsContext, error) {
	if surface == nil {
		return nil, errors.New("nil surface")
	}
	d.Graphics = &GraphicsContext{driver: d, Width: surface.Width(), Height: surface.Height(), Mode: mode, live: true}
	return d.Graphics, nil
}

func (d *Driver) Platforms() ([]gpu.Platform, error) {
	return d.PlatformList, d.FailOn["platforms"]
}

func (d *Driver) CreateContext(gc gpu.GraphicsContext, platform gpu.Platform, device gpu.Device) (gpu.ComputeContext, error) {
	if err := d.fail(OpCreateContext); err != nil {
		return nil, err
	}
	g, ok := gc.(*GraphicsContext)
	if !ok || g.driver != d {
		return nil, errors.New("graphics context belongs to another driver")
	}
	g.linked = true
	d.Compute = &ComputeContext{driver: d, Platform: platform, Device: device}
	return d.Compute, nil
}

func (d *Driver) Release() {
	d.Released = true
}

// GraphicsContext is the fake gpu.GraphicsContext.
type GraphicsContext struct {
	driver *Driver
	live   bool
	linked bool

	Width, Height int
	Mode          gpu.PresentMode
	Draws         []Draw
}

// Draw records one DrawPoints call.
type Draw struct {
	Attribute gpu.VertexAttribute
	Count     uint32
	Uniforms  map[string][16]float32
}

var _ gpu.GraphicsContext = &GraphicsContext{}

// Kill makes the context report it is no longer live.
func (g *GraphicsContext) Kill() { g.live = false }

func (g *GraphicsContext) Live() bool   { return g.live }
func (g *GraphicsContext) Linked() bool { return g.linked }

func (g *GraphicsContext) Resize(width, height int) error {
	if err := g.driver.fail(OpResize); err != nil {
		return err
	}
	g.Width, g.Height = width, height
	return nil
}

func (g *GraphicsContext) CreateBuffer(label string, size uint64) (gpu.GraphicsBuffer, error) {
	if err := g.driver.fail(OpCreateBuffer); err != nil {
		return nil, err
	}
	if !g.linked {
		return nil, errors.New("graphics context is not linked")
	}
	b := &Buffer{label: label, Data: make([]byte, size)}
	g.driver.Buffers = append(g.driver.Buffers, b)
	return b, nil
}

func (g *GraphicsContext) BuildProgram(label, vertexSource, fragmentSource string) (gpu.GraphicsProgram, error) {
	if err := g.driver.fail(OpBuildGraphics); err != nil {
		return nil, err
	}
	vs := shader.Parse(label+".vert", vertexSource)
	fs := shader.Parse(label+".frag", fragmentSource)
	if _, ok := vs.FirstEntryPoint(shader.StageVertex); !ok {
		return nil, fmt.Errorf("%s: no @vertex entry point", label)
	}
	if _, ok := fs.FirstEntryPoint(shader.StageFragment); !ok {
		return nil, fmt.Errorf("%s: no @fragment entry point", label)
	}
	return &Program{vertex: vs, Uniforms: map[string][16]float32{}}, nil
}

func (g *GraphicsContext) CreateVertexArray(program gpu.GraphicsProgram, buffer gpu.GraphicsBuffer, attr gpu.VertexAttribute) (gpu.VertexArray, error) {
	p, ok := program.(*Program)
	if !ok {
		return nil, errors.New("foreign program")
	}
	b, ok := buffer.(*Buffer)
	if !ok {
		return nil, errors.New("foreign buffer")
	}
	return &VertexArray{program: p, buffer: b, attr: attr}, nil
}

func (g *GraphicsContext) DrawPoints(vao gpu.VertexArray, count uint32) error {
	if err := g.driver.fail(OpDraw); err != nil {
		return err
	}
	v, ok := vao.(*VertexArray)
	if !ok {
		return errors.New("foreign vertex array")
	}
	if q := g.driver.Queue; q != nil && q.acquired[v.buffer] {
		return errors.New("draw reads a buffer still acquired by compute")
	}
	uniforms := make(map[string][16]float32, len(v.program.Uniforms))
	for k, m := range v.program.Uniforms {
		uniforms[k] = m
	}
	g.Draws = append(g.Draws, Draw{Attribute: v.attr, Count: count, Uniforms: uniforms})
	return nil
}

// Release frees every buffer created through the context, like the real driver does with the
// device it owns.
func (g *GraphicsContext) Release() {
	g.live = false
	for _, b := range g.driver.Buffers {
		b.Released = true
	}
	g.driver.Teardown = append(g.driver.Teardown, "graphics")
}

// Buffer is the fake graphics and shared buffer.
type Buffer struct {
	label    string
	Data     []byte
	Released bool
}

var (
	_ gpu.GraphicsBuffer = &Buffer{}
	_ gpu.SharedBuffer   = &Buffer{}
)

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.Data)) }

// Program is the fake gpu.GraphicsProgram.
type Program struct {
	vertex   *shader.Module
	Uniforms map[string][16]float32
}

func (p *Program) AttributeLocation(name string) (uint32, bool) {
	in, ok := p.vertex.VertexInput(name)
	return in.Location, ok
}

func (p *Program) SetUniformMatrix(name string, m [16]float32) error {
	if _, _, ok := p.vertex.UniformMember(name); !ok {
		return fmt.Errorf("uniform %s not declared", name)
	}
	p.Uniforms[name] = m
	return nil
}

// VertexArray is the fake gpu.VertexArray.
type VertexArray struct {
	program *Program
	buffer  *Buffer
	attr    gpu.VertexAttribute
}

func (v *VertexArray) Attribute() gpu.VertexAttribute { return v.attr }

// ComputeContext is the fake gpu.ComputeContext.
type ComputeContext struct {
	driver   *Driver
	Platform gpu.Platform
	Device   gpu.Device
	Released bool
}

var _ gpu.ComputeContext = &ComputeContext{}

func (c *ComputeContext) CreateQueue(props gpu.QueueProperties) (gpu.CommandQueue, error) {
	if err := c.driver.fail(OpCreateQueue); err != nil {
		return nil, err
	}
	c.driver.Queue = &Queue{driver: c.driver, profiling: props.Profiling, acquired: map[*Buffer]bool{}}
	return c.driver.Queue, nil
}

func (c *ComputeContext) ShareBuffer(buffer gpu.GraphicsBuffer) (gpu.SharedBuffer, error) {
	if err := c.driver.fail(OpShareBuffer); err != nil {
		return nil, err
	}
	b, ok := buffer.(*Buffer)
	if !ok {
		return nil, errors.New("foreign buffer")
	}
	return b, nil
}

func (c *ComputeContext) BuildProgram(label, source string) (gpu.ComputeProgram, error) {
	if err := c.driver.fail(OpBuildCompute); err != nil {
		return nil, err
	}
	m := shader.Parse(label, source)
	if len(m.EntryPointNames(shader.StageCompute)) == 0 {
		return nil, fmt.Errorf("%s: no @compute entry point", label)
	}
	return &ComputeProgram{module: m}, nil
}

func (c *ComputeContext) Release() {
	c.Released = true
	c.driver.Teardown = append(c.driver.Teardown, "compute")
}

// ComputeProgram is the fake gpu.ComputeProgram.
type ComputeProgram struct {
	module *shader.Module
}

func (p *ComputeProgram) EntryPoints() []string {
	return p.module.EntryPointNames(shader.StageCompute)
}

func (p *ComputeProgram) CreateKernel(name string) (gpu.Kernel, error) {
	ep, ok := p.module.EntryPoint(name)
	if !ok || ep.Stage != shader.StageCompute {
		return nil, fmt.Errorf("kernel %s not found", name)
	}
	args, err := p.module.KernelArgs()
	if err != nil {
		return nil, err
	}
	return &Kernel{entry: ep, abi: args, Args: make([]any, len(args))}, nil
}

// Kernel is the fake gpu.Kernel. Args holds the last value set per position.
type Kernel struct {
	entry shader.EntryPoint
	abi   []shader.KernelArg
	Args  []any
}

func (k *Kernel) Name() string              { return k.entry.Name }
func (k *Kernel) WorkgroupSize() [3]uint32 { return k.entry.WorkgroupSize }

func (k *Kernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.abi) {
		return fmt.Errorf("kernel %s has no argument %d", k.entry.Name, index)
	}
	arg := k.abi[index]
	switch arg.Kind {
	case shader.ArgBuffer:
		if _, ok := value.(*Buffer); !ok {
			return fmt.Errorf("argument %d (%s) expects a shared buffer, got %T", index, arg.Name, value)
		}
	case shader.ArgScalar:
		var ok bool
		switch arg.Type {
		case "f32":
			_, ok = value.(float32)
		case "u32":
			_, ok = value.(uint32)
		case "i32":
			_, ok = value.(int32)
		}
		if !ok {
			return fmt.Errorf("argument %d (%s) expects %s, got %T", index, arg.Name, arg.Type, value)
		}
	}
	k.Args[index] = value
	return nil
}

// Dispatch records one EnqueueKernel call.
type Dispatch struct {
	Kernel string
	Global [2]uint32
	Local  [2]uint32
	Args   []any
}

// Queue is the fake gpu.CommandQueue. It refuses to dispatch onto buffers it has not acquired,
// which mirrors what a real interop driver reports.
type Queue struct {
	driver     *Driver
	profiling  bool
	acquired   map[*Buffer]bool
	Dispatches []Dispatch

	// KernelDuration is reported by LastKernelDuration once a kernel has been enqueued.
	KernelDuration time.Duration
}

var (
	_ gpu.CommandQueue = &Queue{}
	_ gpu.KernelTimer  = &Queue{}
)

func (q *Queue) LastKernelDuration() time.Duration {
	if len(q.Dispatches) == 0 {
		return 0
	}
	return q.KernelDuration
}

// Acquired reports whether the queue currently holds b.
func (q *Queue) Acquired(b *Buffer) bool { return q.acquired[b] }

func (q *Queue) Profiling() bool { return q.profiling }

func (q *Queue) AcquireShared(buffers ...gpu.SharedBuffer) error {
	if err := q.driver.fail(OpAcquire); err != nil {
		return err
	}
	for _, sb := range buffers {
		q.acquired[sb.(*Buffer)] = true
	}
	return nil
}

func (q *Queue) ReleaseShared(buffers ...gpu.SharedBuffer) error {
	if err := q.driver.fail(OpRelease); err != nil {
		return err
	}
	for _, sb := range buffers {
		delete(q.acquired, sb.(*Buffer))
	}
	return nil
}

func (q *Queue) WriteBuffer(buffer gpu.SharedBuffer, offset uint64, data []byte) error {
	if err := q.driver.fail(OpWrite); err != nil {
		return err
	}
	b := buffer.(*Buffer)
	if !q.acquired[b] {
		return errors.New("write to a buffer not acquired by compute")
	}
	if offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.Size())
	}
	copy(b.Data[offset:], data)
	return nil
}

func (q *Queue) EnqueueKernel(kernel gpu.Kernel, global, local [2]uint32) error {
	if err := q.driver.fail(OpDispatch); err != nil {
		return err
	}
	k, ok := kernel.(*Kernel)
	if !ok {
		return errors.New("foreign kernel")
	}
	for i, a := range k.Args {
		if a == nil {
			return fmt.Errorf("argument %d of %s not set", i, k.Name())
		}
		if b, ok := a.(*Buffer); ok && !q.acquired[b] {
			return errors.New("kernel argument buffer not acquired by compute")
		}
	}
	q.Dispatches = append(q.Dispatches, Dispatch{
		Kernel: k.Name(),
		Global: global,
		Local:  local,
		Args:   append([]any(nil), k.Args...),
	})
	return nil
}
