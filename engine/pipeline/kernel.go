package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/interop"
)

// DefaultEntryPoint is the kernel entry point resolved when none is configured.
const DefaultEntryPoint = "compute_surface"

// Positional kernel arguments.
const (
	ArgVertices = iota
	ArgTime
	ArgGridSide
)

// KernelPipeline is the compiled surface kernel with its fixed launch geometry.
type KernelPipeline struct {
	log        *zap.Logger
	label      string
	entryPoint string
	gridSide   uint32
	localSize  [2]uint32

	queue  gpu.CommandQueue
	kernel gpu.Kernel
}

// NewKernelPipeline builds the kernel program and resolves its entry point.
//
// Parameters:
//   - ctx: the compute context
//   - queue: the queue dispatches are enqueued on
//   - source: WGSL source of the kernel
//   - options: functional options to configure the pipeline
//
// Returns:
//   - *KernelPipeline: the ready pipeline
//   - error: a fault.KindBuild error carrying diagnostics if the program does not build, a
//     fault.KindInitialization error if the entry point or launch geometry is invalid
func NewKernelPipeline(ctx gpu.ComputeContext, queue gpu.CommandQueue, source string, options ...KernelPipelineBuilderOption) (*KernelPipeline, error) {
	k := &KernelPipeline{
		log:        zap.NewNop(),
		label:      "surface kernel",
		entryPoint: DefaultEntryPoint,
		gridSide:   64,
		localSize:  [2]uint32{8, 8},
		queue:      queue,
	}
	for _, option := range options {
		option(k)
	}

	if err := CheckLaunch(k.gridSide, k.localSize); err != nil {
		return nil, fault.Initialization("validate launch", err)
	}

	program, err := ctx.BuildProgram(k.label, source)
	if err != nil {
		return nil, fault.Build("build kernel program", err.Error(), err)
	}
	if !slices.Contains(program.EntryPoints(), k.entryPoint) {
		return nil, fault.Initialization("resolve kernel", fmt.Errorf("entry point %s not found in %v", k.entryPoint, program.EntryPoints()))
	}
	kernel, err := program.CreateKernel(k.entryPoint)
	if err != nil {
		return nil, fault.Initialization("resolve kernel "+k.entryPoint, err)
	}
	ws := kernel.WorkgroupSize()
	if ws[0] != k.localSize[0] || ws[1] != k.localSize[1] || ws[2] != 1 {
		return nil, fault.Initialization("resolve kernel "+k.entryPoint,
			fmt.Errorf("workgroup size %v does not match local size %v", ws, k.localSize))
	}
	k.kernel = kernel
	k.log.Debug("kernel resolved",
		zap.String("entry_point", k.entryPoint),
		zap.Uint32("grid_side", k.gridSide),
		zap.Uint32s("local_size", k.localSize[:]),
	)
	return k, nil
}

// CheckLaunch reports whether a gridSide×gridSide launch divides evenly into local-size groups.
func CheckLaunch(gridSide uint32, local [2]uint32) error {
	if gridSide == 0 {
		return errors.New("grid side must be positive")
	}
	if local[0] == 0 || local[1] == 0 {
		return fmt.Errorf("local size %v must be positive", local)
	}
	if gridSide%local[0] != 0 || gridSide%local[1] != 0 {
		return fmt.Errorf("global size (%d, %d) is not divisible by local size %v", gridSide, gridSide, local)
	}
	return nil
}

// Dispatch sets the kernel arguments and enqueues one launch over the whole grid. The buffer must be
// compute-owned; completion is guaranteed by the Release that follows.
//
// Parameters:
//   - buf: the shared buffer the kernel writes
//   - t: the animation time
//
// Returns:
//   - error: a fault.KindProtocol error if buf is not compute-owned, a fault.KindRuntimeDispatch
//     error if setting an argument or enqueueing fails
func (k *KernelPipeline) Dispatch(buf *interop.Buffer, t float32) error {
	if buf.State() != interop.ComputeOwned {
		return fault.Protocol("dispatch", "buffer is "+buf.State().String())
	}
	if err := k.kernel.SetArg(ArgVertices, buf.Shared()); err != nil {
		return fault.Dispatch("set kernel argument", err)
	}
	if err := k.kernel.SetArg(ArgTime, t); err != nil {
		return fault.Dispatch("set kernel argument", err)
	}
	if err := k.kernel.SetArg(ArgGridSide, k.gridSide); err != nil {
		return fault.Dispatch("set kernel argument", err)
	}
	if err := k.queue.EnqueueKernel(k.kernel, k.GlobalSize(), k.localSize); err != nil {
		return fault.Dispatch("enqueue kernel", err)
	}
	return nil
}

// GlobalSize returns the launch size in work items.
func (k *KernelPipeline) GlobalSize() [2]uint32 {
	return [2]uint32{k.gridSide, k.gridSide}
}

// LocalSize returns the work-group size.
func (k *KernelPipeline) LocalSize() [2]uint32 { return k.localSize }

// EntryPoint returns the resolved entry point name.
func (k *KernelPipeline) EntryPoint() string { return k.entryPoint }
