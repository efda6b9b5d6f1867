package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Carmen-Shannon/oxy-surface/common"
	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu/fakegpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/interop"
	"github.com/Carmen-Shannon/oxy-surface/engine/programs"
)

const side = 64

type fixture struct {
	driver   *fakegpu.Driver
	graphics gpu.GraphicsContext
	compute  gpu.ComputeContext
	queue    gpu.CommandQueue
	buffer   *interop.Buffer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	d := fakegpu.NewDriver(fakegpu.Platform())
	gc, err := d.CreateGraphicsContext(fakegpu.Surface{W: 500, H: 500}, gpu.PresentModeImmediate)
	require.NoError(t, err)
	ctx, err := d.CreateContext(gc, d.PlatformList[0], d.PlatformList[0].Devices[0])
	require.NoError(t, err)
	q, err := ctx.CreateQueue(gpu.QueueProperties{Profiling: true})
	require.NoError(t, err)
	handle, err := gc.CreateBuffer("grid", interop.BufferSize(side))
	require.NoError(t, err)
	buf, err := interop.NewBuffer(ctx, q, handle)
	require.NoError(t, err)
	return fixture{driver: d, graphics: gc, compute: ctx, queue: q, buffer: buf}
}

func TestCheckLaunch(t *testing.T) {
	tests := []struct {
		name    string
		side    uint32
		local   [2]uint32
		wantErr bool
	}{
		{"default", 64, [2]uint32{8, 8}, false},
		{"uneven groups", 64, [2]uint32{16, 4}, false},
		{"not divisible", 60, [2]uint32{8, 8}, true},
		{"not divisible in y", 64, [2]uint32{8, 5}, true},
		{"zero side", 0, [2]uint32{8, 8}, true},
		{"zero local", 64, [2]uint32{0, 8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLaunch(tt.side, tt.local)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewKernelPipeline(t *testing.T) {
	f := newFixture(t)
	k, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, DefaultEntryPoint, k.EntryPoint())
	assert.Equal(t, [2]uint32{64, 64}, k.GlobalSize())
	assert.Equal(t, [2]uint32{8, 8}, k.LocalSize())
}

func TestNewKernelPipelineIndivisibleGrid(t *testing.T) {
	f := newFixture(t)
	_, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel, WithGridSide(60))
	assert.ErrorIs(t, err, fault.ErrInitialization)
	assert.Zero(t, f.driver.Count(fakegpu.OpBuildCompute))
}

func TestNewKernelPipelineLocalSizeMismatch(t *testing.T) {
	f := newFixture(t)
	_, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel, WithLocalSize([2]uint32{16, 16}))
	assert.ErrorIs(t, err, fault.ErrInitialization)
}

func TestNewKernelPipelineMissingEntryPoint(t *testing.T) {
	f := newFixture(t)
	_, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel, WithEntryPoint("compute_nothing"))
	assert.ErrorIs(t, err, fault.ErrInitialization)
	assert.NotErrorIs(t, err, fault.ErrBuild)
}

func TestNewKernelPipelineBuildFailure(t *testing.T) {
	f := newFixture(t)
	f.driver.FailOn[fakegpu.OpBuildCompute] = errors.New("surface.wgsl:3:5 error: expected ';'")

	_, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel)
	require.ErrorIs(t, err, fault.ErrBuild)
	assert.Contains(t, fault.DiagnosticsOf(err), "expected ';'")
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	k, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel)
	require.NoError(t, err)

	require.NoError(t, f.buffer.Acquire())
	require.NoError(t, k.Dispatch(f.buffer, 0.25))
	require.NoError(t, f.buffer.Release())

	q := f.driver.Queue
	require.Len(t, q.Dispatches, 1)
	d := q.Dispatches[0]
	assert.Equal(t, DefaultEntryPoint, d.Kernel)
	assert.Equal(t, [2]uint32{64, 64}, d.Global)
	assert.Equal(t, [2]uint32{8, 8}, d.Local)
	require.Len(t, d.Args, 3)
	assert.Same(t, f.buffer.Shared(), d.Args[ArgVertices])
	assert.Equal(t, float32(0.25), d.Args[ArgTime])
	assert.Equal(t, uint32(64), d.Args[ArgGridSide])
}

func TestDispatchRequiresComputeOwnership(t *testing.T) {
	f := newFixture(t)
	k, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel)
	require.NoError(t, err)

	err = k.Dispatch(f.buffer, 0)
	assert.ErrorIs(t, err, fault.ErrProtocolViolation)
	assert.Zero(t, f.driver.Count(fakegpu.OpDispatch))
}

func TestDispatchEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	k, err := NewKernelPipeline(f.compute, f.queue, programs.Embedded().Kernel)
	require.NoError(t, err)
	f.driver.FailOn[fakegpu.OpDispatch] = errors.New("out of resources")

	require.NoError(t, f.buffer.Acquire())
	err = k.Dispatch(f.buffer, 0)
	assert.ErrorIs(t, err, fault.ErrRuntimeDispatch)
}

func newShaderPipeline(t *testing.T, f fixture, options ...ShaderPipelineBuilderOption) *ShaderPipeline {
	t.Helper()
	src := programs.Embedded()
	p, err := NewShaderPipeline(f.graphics, src.Vertex, src.Fragment, options...)
	require.NoError(t, err)
	return p
}

func TestShaderPipelineBindAndDraw(t *testing.T) {
	f := newFixture(t)
	p := newShaderPipeline(t, f, WithShaderLogger(zaptest.NewLogger(t)))
	require.NoError(t, p.Bind(f.buffer))
	assert.Equal(t, uint32(side*side), p.Count())

	view := common.IdentityMatrix()
	view[12] = 3
	require.NoError(t, p.SetMatrices(common.IdentityMatrix(), view, common.IdentityMatrix()))
	require.NoError(t, p.Draw())

	g := f.driver.Graphics
	require.Len(t, g.Draws, 1)
	draw := g.Draws[0]
	assert.Equal(t, uint32(4096), draw.Count)
	assert.Equal(t, gpu.VertexAttribute{Name: DefaultAttribute, Location: 0, Components: 4, Stride: 16, Offset: 0}, draw.Attribute)
	assert.Equal(t, view, draw.Uniforms[UniformView])
	assert.Equal(t, common.IdentityMatrix(), draw.Uniforms[UniformModel])
}

func TestShaderPipelineBindParameterInput(t *testing.T) {
	f := newFixture(t)
	vertex := `
struct Matrices { m_matrix: mat4x4<f32>, v_matrix: mat4x4<f32>, p_matrix: mat4x4<f32>, }
@group(0) @binding(0) var<uniform> matrices: Matrices;

@vertex
fn vs_main(@location(0) vertex_coord: vec4f) -> @builtin(position) vec4f {
    return matrices.p_matrix * matrices.v_matrix * matrices.m_matrix * vertex_coord;
}
`
	p, err := NewShaderPipeline(f.graphics, vertex, programs.Embedded().Fragment)
	require.NoError(t, err)
	require.NoError(t, p.Bind(f.buffer))
	require.NoError(t, p.SetMatrices(common.IdentityMatrix(), common.IdentityMatrix(), common.IdentityMatrix()))
	require.NoError(t, p.Draw())
	assert.Equal(t, uint32(0), f.driver.Graphics.Draws[0].Attribute.Location)
}

func TestShaderPipelineBindTwice(t *testing.T) {
	f := newFixture(t)
	p := newShaderPipeline(t, f)
	require.NoError(t, p.Bind(f.buffer))
	assert.ErrorIs(t, p.Bind(f.buffer), fault.ErrProtocolViolation)
}

func TestShaderPipelineMissingAttribute(t *testing.T) {
	f := newFixture(t)
	p := newShaderPipeline(t, f, WithAttribute("position"))
	assert.ErrorIs(t, p.Bind(f.buffer), fault.ErrLink)
}

func TestShaderPipelineMissingUniform(t *testing.T) {
	f := newFixture(t)
	src := programs.Embedded()
	vertex := strings.ReplaceAll(src.Vertex, "p_matrix", "projection")

	p, err := NewShaderPipeline(f.graphics, vertex, src.Fragment)
	require.NoError(t, err)
	err = p.SetMatrices(common.IdentityMatrix(), common.IdentityMatrix(), common.IdentityMatrix())
	assert.ErrorIs(t, err, fault.ErrLink)
}

func TestShaderPipelineLinkFailure(t *testing.T) {
	f := newFixture(t)
	_, err := NewShaderPipeline(f.graphics, "fn helper() {}", programs.Embedded().Fragment)
	require.ErrorIs(t, err, fault.ErrLink)
	assert.Contains(t, fault.DiagnosticsOf(err), "@vertex")
}

func TestDrawWhileComputeOwned(t *testing.T) {
	f := newFixture(t)
	p := newShaderPipeline(t, f)
	require.NoError(t, p.Bind(f.buffer))

	require.NoError(t, f.buffer.Acquire())
	assert.ErrorIs(t, p.Draw(), fault.ErrProtocolViolation)
	assert.Empty(t, f.driver.Graphics.Draws)
}

func TestDrawBeforeBind(t *testing.T) {
	f := newFixture(t)
	p := newShaderPipeline(t, f)
	assert.ErrorIs(t, p.Draw(), fault.ErrProtocolViolation)
}

func TestDrawFailure(t *testing.T) {
	f := newFixture(t)
	p := newShaderPipeline(t, f)
	require.NoError(t, p.Bind(f.buffer))
	f.driver.FailOn[fakegpu.OpDraw] = errors.New("surface lost")
	assert.ErrorIs(t, p.Draw(), fault.ErrRuntimeDispatch)
}
