package pipeline

import "go.uber.org/zap"

// ShaderPipelineBuilderOption is a functional option used to configure a ShaderPipeline during construction.
type ShaderPipelineBuilderOption func(*ShaderPipeline)

// WithShaderLabel sets the label the graphics program is built under.
//
// Parameters:
//   - label: the program label used in diagnostics
//
// Returns:
//   - ShaderPipelineBuilderOption: a function that sets the label
func WithShaderLabel(label string) ShaderPipelineBuilderOption {
	return func(p *ShaderPipeline) {
		p.label = label
	}
}

// WithAttribute sets the vertex input bound to the shared buffer. Defaults to DefaultAttribute.
//
// Parameters:
//   - name: the vertex input name
//
// Returns:
//   - ShaderPipelineBuilderOption: a function that sets the attribute name
func WithAttribute(name string) ShaderPipelineBuilderOption {
	return func(p *ShaderPipeline) {
		p.attribute = name
	}
}

// WithShaderLogger sets the logger of the graphics pipeline.
func WithShaderLogger(log *zap.Logger) ShaderPipelineBuilderOption {
	return func(p *ShaderPipeline) {
		if log != nil {
			p.log = log.Named("shader")
		}
	}
}

// KernelPipelineBuilderOption is a functional option used to configure a KernelPipeline during construction.
type KernelPipelineBuilderOption func(*KernelPipeline)

// WithEntryPoint sets the kernel entry point to resolve. Defaults to DefaultEntryPoint.
//
// Parameters:
//   - name: the entry point name
//
// Returns:
//   - KernelPipelineBuilderOption: a function that sets the entry point
func WithEntryPoint(name string) KernelPipelineBuilderOption {
	return func(k *KernelPipeline) {
		k.entryPoint = name
	}
}

// WithGridSide sets the side of the square launch grid. Defaults to 64.
//
// Parameters:
//   - n: points per grid side
//
// Returns:
//   - KernelPipelineBuilderOption: a function that sets the grid side
func WithGridSide(n uint32) KernelPipelineBuilderOption {
	return func(k *KernelPipeline) {
		k.gridSide = n
	}
}

// WithLocalSize sets the work-group size. It must match the kernel's @workgroup_size. Defaults to 8×8.
//
// Parameters:
//   - local: the work-group size in x and y
//
// Returns:
//   - KernelPipelineBuilderOption: a function that sets the local size
func WithLocalSize(local [2]uint32) KernelPipelineBuilderOption {
	return func(k *KernelPipeline) {
		k.localSize = local
	}
}

// WithLogger sets the logger of the kernel pipeline.
func WithLogger(log *zap.Logger) KernelPipelineBuilderOption {
	return func(k *KernelPipeline) {
		if log != nil {
			k.log = log.Named("kernel")
		}
	}
}
