package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/common"
	"github.com/Carmen-Shannon/oxy-surface/engine/shader"
)

// wgpuCompute implements ComputeContext on the device of its linked graphics context.
type wgpuCompute struct {
	graphics *wgpuGraphics
	log      *zap.Logger
	programs []*wgpuComputeProgram
}

var _ ComputeContext = &wgpuCompute{}

func (c *wgpuCompute) CreateQueue(props QueueProperties) (CommandQueue, error) {
	if !c.graphics.Linked() {
		return nil, errors.New("compute context has no device")
	}
	return &wgpuQueue{device: c.graphics.device, queue: c.graphics.queue, profiling: props.Profiling, log: c.log}, nil
}

func (c *wgpuCompute) ShareBuffer(buffer GraphicsBuffer) (SharedBuffer, error) {
	b, ok := buffer.(*wgpuBuffer)
	if !ok {
		return nil, errors.New("buffer was not created by the linked graphics context")
	}
	if !b.shareable {
		return nil, fmt.Errorf("buffer %s was not created with storage usage", b.label)
	}
	return b, nil
}

func (c *wgpuCompute) BuildProgram(label, source string) (ComputeProgram, error) {
	if diag, err := shader.Validate(source); err != nil {
		return nil, fmt.Errorf("%s: %s", label, diag)
	}
	m := shader.Parse(label, source)
	args, err := m.KernelArgs()
	if err != nil {
		return nil, err
	}
	module, err := c.graphics.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", label, err)
	}
	p := &wgpuComputeProgram{device: c.graphics.device, reflection: m, module: module, args: args}
	c.programs = append(c.programs, p)
	return p, nil
}

func (c *wgpuCompute) Release() {
	for _, p := range c.programs {
		p.release()
	}
	c.programs = nil
}

// wgpuComputeProgram implements ComputeProgram.
type wgpuComputeProgram struct {
	device     *wgpu.Device
	reflection *shader.Module
	module     *wgpu.ShaderModule
	args       []shader.KernelArg
	kernels    []*wgpuKernel
}

func (p *wgpuComputeProgram) release() {
	for _, k := range p.kernels {
		k.release()
	}
	p.kernels = nil
	p.module.Release()
}

func (p *wgpuComputeProgram) EntryPoints() []string {
	return p.reflection.EntryPointNames(shader.StageCompute)
}

func (p *wgpuComputeProgram) CreateKernel(name string) (Kernel, error) {
	ep, ok := p.reflection.EntryPoint(name)
	if !ok || ep.Stage != shader.StageCompute {
		return nil, fmt.Errorf("%s has no compute entry point %s", p.reflection.Label(), name)
	}

	entries, err := p.reflection.BindGroupLayoutEntries(0, wgpu.ShaderStageCompute)
	if err != nil {
		return nil, err
	}
	bgl, err := p.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   name + " Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout: %w", err)
	}
	k := &wgpuKernel{
		entry:   ep,
		args:    p.args,
		values:  make([]any, len(p.args)),
		layout:  bgl,
		buffers: map[uint32]*wgpuBuffer{},
	}
	k.pipelineLayout, err = p.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            name,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		k.release()
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}
	k.pipeline, err = p.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  name + " Compute Pipeline",
		Layout: k.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     p.module,
			EntryPoint: name,
		},
	})
	if err != nil {
		k.release()
		return nil, fmt.Errorf("failed to create compute pipeline %s: %w", name, err)
	}

	if b, size, ok := p.reflection.ParamsBinding(); ok {
		size = common.RoundUp16(size)
		params, err := p.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name + " " + b.Name,
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			k.release()
			return nil, fmt.Errorf("failed to create parameter buffer: %w", err)
		}
		k.params = params
		k.paramsBinding = b.Binding
		k.paramsData = make([]byte, size)
	}
	p.kernels = append(p.kernels, k)
	return k, nil
}

// wgpuKernel implements Kernel. Scalar arguments are staged into the parameter uniform and uploaded
// at dispatch; buffer arguments rebuild the bind group on the next dispatch.
type wgpuKernel struct {
	entry    shader.EntryPoint
	args     []shader.KernelArg
	values   []any
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout

	pipelineLayout *wgpu.PipelineLayout

	buffers   map[uint32]*wgpuBuffer
	bindGroup *wgpu.BindGroup
	stale     bool

	params        *wgpu.Buffer
	paramsBinding uint32
	paramsData    []byte
}

var _ Kernel = &wgpuKernel{}

// release frees the kernel's own objects. The storage buffers it binds are owned by the graphics side.
func (k *wgpuKernel) release() {
	if k.bindGroup != nil {
		k.bindGroup.Release()
		k.bindGroup = nil
	}
	if k.params != nil {
		k.params.Release()
		k.params = nil
	}
	if k.pipeline != nil {
		k.pipeline.Release()
		k.pipeline = nil
	}
	if k.pipelineLayout != nil {
		k.pipelineLayout.Release()
		k.pipelineLayout = nil
	}
	if k.layout != nil {
		k.layout.Release()
		k.layout = nil
	}
}

func (k *wgpuKernel) Name() string              { return k.entry.Name }
func (k *wgpuKernel) WorkgroupSize() [3]uint32 { return k.entry.WorkgroupSize }

func (k *wgpuKernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("kernel %s has no argument %d", k.entry.Name, index)
	}
	arg := k.args[index]
	if arg.Kind == shader.ArgBuffer {
		b, ok := value.(*wgpuBuffer)
		if !ok {
			return fmt.Errorf("argument %d (%s) expects a shared buffer, got %T", index, arg.Name, value)
		}
		if k.buffers[arg.Binding] != b {
			k.buffers[arg.Binding] = b
			k.stale = true
		}
		k.values[index] = value
		return nil
	}

	var bits uint32
	switch v := value.(type) {
	case float32:
		if arg.Type != "f32" {
			return fmt.Errorf("argument %d (%s) expects %s, got float32", index, arg.Name, arg.Type)
		}
		bits = math.Float32bits(v)
	case uint32:
		if arg.Type != "u32" {
			return fmt.Errorf("argument %d (%s) expects %s, got uint32", index, arg.Name, arg.Type)
		}
		bits = v
	case int32:
		if arg.Type != "i32" {
			return fmt.Errorf("argument %d (%s) expects %s, got int32", index, arg.Name, arg.Type)
		}
		bits = uint32(v)
	default:
		return fmt.Errorf("argument %d (%s) expects %s, got %T", index, arg.Name, arg.Type, value)
	}
	binary.LittleEndian.PutUint32(k.paramsData[arg.Offset:], bits)
	k.values[index] = value
	return nil
}

func (k *wgpuKernel) bind(device *wgpu.Device) error {
	for i, v := range k.values {
		if v == nil {
			return fmt.Errorf("argument %d (%s) of %s not set", i, k.args[i].Name, k.entry.Name)
		}
	}
	if k.bindGroup != nil && !k.stale {
		return nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(k.buffers)+1)
	for binding, b := range k.buffers {
		entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Buffer: b.buffer, Offset: 0, Size: wgpu.WholeSize})
	}
	if k.params != nil {
		entries = append(entries, wgpu.BindGroupEntry{Binding: k.paramsBinding, Buffer: k.params, Offset: 0, Size: wgpu.WholeSize})
	}
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.entry.Name + " Bind Group",
		Layout:  k.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group: %w", err)
	}
	if k.bindGroup != nil {
		k.bindGroup.Release()
	}
	k.bindGroup = bg
	k.stale = false
	return nil
}

// wgpuQueue implements CommandQueue on the shared device queue. Graphics and compute submit to the
// same queue, so acquire and release reduce to waiting for the device to drain.
type wgpuQueue struct {
	device    *wgpu.Device
	queue     *wgpu.Queue
	profiling bool
	log       *zap.Logger

	lastKernel time.Duration
}

var (
	_ CommandQueue = &wgpuQueue{}
	_ KernelTimer  = &wgpuQueue{}
)

func (q *wgpuQueue) Profiling() bool { return q.profiling }

func (q *wgpuQueue) LastKernelDuration() time.Duration { return q.lastKernel }

func (q *wgpuQueue) AcquireShared(buffers ...SharedBuffer) error {
	if err := checkShared(buffers); err != nil {
		return err
	}
	q.device.Poll(true, nil)
	return nil
}

func (q *wgpuQueue) ReleaseShared(buffers ...SharedBuffer) error {
	if err := checkShared(buffers); err != nil {
		return err
	}
	q.device.Poll(true, nil)
	return nil
}

func (q *wgpuQueue) WriteBuffer(buffer SharedBuffer, offset uint64, data []byte) error {
	b, ok := buffer.(*wgpuBuffer)
	if !ok {
		return errors.New("buffer was not shared by this context")
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.size)
	}
	if err := q.queue.WriteBuffer(b.buffer, offset, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.label, err)
	}

	// an empty submission flushes the staged write so the poll below covers it
	encoder, err := q.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()
	cb, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to flush write: %w", err)
	}
	q.queue.Submit(cb)
	cb.Release()
	q.device.Poll(true, nil)
	return nil
}

func (q *wgpuQueue) EnqueueKernel(kernel Kernel, global, local [2]uint32) error {
	k, ok := kernel.(*wgpuKernel)
	if !ok {
		return errors.New("kernel was not created by this context")
	}
	ws := k.entry.WorkgroupSize
	if local[0] != ws[0] || local[1] != ws[1] {
		return fmt.Errorf("local size %v does not match %s workgroup size %v", local, k.entry.Name, ws)
	}
	if local[0] == 0 || local[1] == 0 || global[0]%local[0] != 0 || global[1]%local[1] != 0 {
		return fmt.Errorf("global size %v is not a multiple of local size %v", global, local)
	}
	if err := k.bind(q.device); err != nil {
		return err
	}
	if k.params != nil {
		if err := q.queue.WriteBuffer(k.params, 0, k.paramsData); err != nil {
			return fmt.Errorf("failed to upload arguments of %s: %w", k.entry.Name, err)
		}
	}

	start := time.Now()
	encoder, err := q.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, k.bindGroup, nil)
	pass.DispatchWorkgroups(global[0]/local[0], global[1]/local[1], 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("failed to end compute pass of %s: %w", k.entry.Name, err)
	}

	cb, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish dispatch of %s: %w", k.entry.Name, err)
	}
	q.queue.Submit(cb)
	cb.Release()

	if q.profiling {
		q.device.Poll(true, nil)
		q.lastKernel = time.Since(start)
		q.log.Debug("kernel completed", zap.String("kernel", k.entry.Name), zap.Duration("duration", q.lastKernel))
	}
	return nil
}

func checkShared(buffers []SharedBuffer) error {
	for _, sb := range buffers {
		if _, ok := sb.(*wgpuBuffer); !ok {
			return errors.New("buffer was not shared by this context")
		}
	}
	return nil
}
