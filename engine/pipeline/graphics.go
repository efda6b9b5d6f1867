// Package pipeline builds the two programs of the surface: the graphics program that draws the shared
// buffer as points, and the compute kernel that rewrites it every frame.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/interop"
)

// Uniform names the graphics program must declare.
const (
	UniformModel      = "m_matrix"
	UniformView       = "v_matrix"
	UniformProjection = "p_matrix"
)

// DefaultAttribute is the vertex input the shared buffer is bound to.
const DefaultAttribute = "vertex_coord"

// ShaderPipeline is the linked graphics program and its binding to the shared buffer.
type ShaderPipeline struct {
	log       *zap.Logger
	label     string
	attribute string

	graphics gpu.GraphicsContext
	program  gpu.GraphicsProgram

	buffer *interop.Buffer
	vao    gpu.VertexArray
	count  uint32
}

// NewShaderPipeline compiles and links the vertex and fragment sources.
//
// Parameters:
//   - graphics: the linked graphics context
//   - vertexSource: WGSL source with a @vertex entry point
//   - fragmentSource: WGSL source with a @fragment entry point
//   - options: functional options to configure the pipeline
//
// Returns:
//   - *ShaderPipeline: the linked pipeline, not yet bound to a buffer
//   - error: a fault.KindLink error carrying diagnostics if the program does not build
func NewShaderPipeline(graphics gpu.GraphicsContext, vertexSource, fragmentSource string, options ...ShaderPipelineBuilderOption) (*ShaderPipeline, error) {
	p := &ShaderPipeline{
		log:       zap.NewNop(),
		label:     "surface",
		attribute: DefaultAttribute,
		graphics:  graphics,
	}
	for _, option := range options {
		option(p)
	}

	program, err := graphics.BuildProgram(p.label, vertexSource, fragmentSource)
	if err != nil {
		return nil, fault.Link("build graphics program", err.Error(), err)
	}
	p.program = program
	p.log.Debug("graphics program linked", zap.String("label", p.label))
	return p, nil
}

// Bind records the vertex array that feeds the program's position attribute from buf: four float32
// components per point, tightly packed, drawn as a point list. It must be called once before Draw.
//
// Parameters:
//   - buf: the shared buffer
//
// Returns:
//   - error: a fault.KindLink error if the attribute is missing, a fault.KindProtocol error if already bound
func (p *ShaderPipeline) Bind(buf *interop.Buffer) error {
	if p.vao != nil {
		return fault.Protocol("bind", "pipeline is already bound to a buffer")
	}
	location, ok := p.program.AttributeLocation(p.attribute)
	if !ok {
		return fault.Link("resolve attribute", "", fmt.Errorf("attribute %s is not a vertex input", p.attribute))
	}

	attr := gpu.VertexAttribute{
		Name:       p.attribute,
		Location:   location,
		Components: 4,
		Stride:     interop.PointSize,
		Offset:     0,
	}
	vao, err := p.graphics.CreateVertexArray(p.program, buf.Handle(), attr)
	if err != nil {
		return fault.Link("bind attribute "+p.attribute, err.Error(), err)
	}
	p.buffer = buf
	p.vao = vao
	p.count = uint32(buf.Size() / interop.PointSize)
	return nil
}

// SetMatrices stages the model, view and projection uniforms for the next Draw.
func (p *ShaderPipeline) SetMatrices(model, view, projection [16]float32) error {
	for _, u := range []struct {
		name string
		m    [16]float32
	}{{UniformModel, model}, {UniformView, view}, {UniformProjection, projection}} {
		if err := p.program.SetUniformMatrix(u.name, u.m); err != nil {
			return fault.Link("set uniform "+u.name, "", err)
		}
	}
	return nil
}

// Draw clears color and depth, draws every point of the bound buffer and presents the frame.
// The buffer must be graphics-owned.
func (p *ShaderPipeline) Draw() error {
	if p.vao == nil {
		return fault.Protocol("draw", "pipeline is not bound to a buffer")
	}
	if p.buffer.State() != interop.GraphicsOwned {
		return fault.Protocol("draw", "buffer is "+p.buffer.State().String())
	}
	if err := p.graphics.DrawPoints(p.vao, p.count); err != nil {
		return fault.Dispatch("draw", err)
	}
	return nil
}

// Count returns how many points Draw issues.
func (p *ShaderPipeline) Count() uint32 { return p.count }
