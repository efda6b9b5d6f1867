// Package gpu is the seam between the surface engine and the GPU API. The engine only talks to the
// interfaces declared here; NewWGPUDriver provides the WebGPU implementation and the fakegpu
// subpackage an in-memory one for tests.
//
// Bring-up is two-phase: a GraphicsContext is created from a window first, and only then can a
// Driver link a ComputeContext to it.
package gpu

import (
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceType classifies a compute device.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeCPU:
		return "CPU"
	default:
		return "unknown"
	}
}

// Device describes one compute device of a Platform.
type Device struct {
	Name   string
	Vendor string
	Driver string
	Type   DeviceType

	// Handle is the driver specific device object.
	Handle any
}

// Platform groups the devices exposed by one backend, in discovery order.
type Platform struct {
	Name    string
	Vendor  string
	Version string
	Devices []Device
}

// String renders the platform the way it is listed at startup.
func (p Platform) String() string {
	return fmt.Sprintf("%s, %s (%s)", p.Name, p.Version, p.Vendor)
}

// QueueProperties configures a command queue.
type QueueProperties struct {
	// Profiling enables timing capture on the queue.
	Profiling bool
}

// PresentMode selects how frames are handed to the compositor.
type PresentMode int

const (
	// PresentModeImmediate presents without waiting for vertical blank.
	PresentModeImmediate PresentMode = iota
	PresentModeFifo
	PresentModeMailbox
)

// ParsePresentMode maps a config string onto a PresentMode, defaulting to immediate.
func ParsePresentMode(s string) PresentMode {
	switch s {
	case "fifo":
		return PresentModeFifo
	case "mailbox":
		return PresentModeMailbox
	default:
		return PresentModeImmediate
	}
}

// VertexAttribute describes how one shader attribute reads from a buffer.
type VertexAttribute struct {
	Name       string
	Location   uint32
	Components int
	Stride     uint64
	Offset     uint64
}

// Surface is the window-side source of a graphics context.
type Surface interface {
	// SurfaceDescriptor returns the native surface descriptor, or nil when the window has none.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// Driver enumerates compute platforms and links compute contexts to graphics contexts.
type Driver interface {
	// CreateGraphicsContext performs the first bring-up phase from a live window surface.
	//
	// Parameters:
	//   - surface: the window surface to render into
	//
	// Returns:
	//   - GraphicsContext: the graphics context, not yet linked to a device
	//   - error: error if the surface cannot be created
	CreateGraphicsContext(surface Surface, mode PresentMode) (GraphicsContext, error)

	// Platforms lists the compute platforms, in discovery order.
	//
	// Returns:
	//   - []Platform: the platforms, possibly empty
	//   - error: error if enumeration itself failed
	Platforms() ([]Platform, error)

	// CreateContext performs the second bring-up phase, linking a compute context on device to gc.
	//
	// Parameters:
	//   - gc: the already created graphics context
	//   - platform: the selected platform
	//   - device: the selected device of platform
	//
	// Returns:
	//   - ComputeContext: the linked compute context
	//   - error: error if the context cannot be created
	CreateContext(gc GraphicsContext, platform Platform, device Device) (ComputeContext, error)

	// Release frees the driver's instance-level resources.
	Release()
}

// GraphicsContext is the graphics half of a linked context pair.
type GraphicsContext interface {
	// Live reports whether the context still has a surface to render into.
	Live() bool

	// Linked reports whether a compute context has been linked and device resources can be created.
	Linked() bool

	// Resize reconfigures the presentation surface.
	Resize(width, height int) error

	// CreateBuffer allocates an uninitialised vertex buffer of size bytes that a compute context can share.
	CreateBuffer(label string, size uint64) (GraphicsBuffer, error)

	// BuildProgram compiles and links a vertex+fragment program.
	BuildProgram(label, vertexSource, fragmentSource string) (GraphicsProgram, error)

	// CreateVertexArray records the binding of attr in program to buffer for point-list drawing.
	CreateVertexArray(program GraphicsProgram, buffer GraphicsBuffer, attr VertexAttribute) (VertexArray, error)

	// DrawPoints clears color and depth, draws count points from vao and presents the frame.
	DrawPoints(vao VertexArray, count uint32) error

	// Release frees the buffers, programs and vertex arrays created through the context, then the
	// surface and the device. The device is shared with the linked compute context, so the compute
	// context must be released first.
	Release()
}

// GraphicsBuffer is a graphics-allocated buffer.
type GraphicsBuffer interface {
	Label() string
	Size() uint64
}

// GraphicsProgram is a linked vertex+fragment program.
type GraphicsProgram interface {
	// AttributeLocation resolves a vertex input by name.
	AttributeLocation(name string) (uint32, bool)

	// SetUniformMatrix stages a 4x4 uniform by name; staged values are uploaded at the next draw.
	SetUniformMatrix(name string, m [16]float32) error
}

// VertexArray is a recorded attribute-to-buffer binding.
type VertexArray interface {
	Attribute() VertexAttribute
}

// ComputeContext is the compute half of a linked context pair.
type ComputeContext interface {
	// CreateQueue creates a command queue.
	CreateQueue(props QueueProperties) (CommandQueue, error)

	// ShareBuffer registers a graphics buffer for compute access.
	ShareBuffer(buffer GraphicsBuffer) (SharedBuffer, error)

	// BuildProgram compiles a compute program. Errors carry compiler diagnostics in their text.
	BuildProgram(label, source string) (ComputeProgram, error)

	// Release frees the programs and kernels built through the context. Shared buffers and the
	// device belong to the graphics context and stay alive.
	Release()
}

// SharedBuffer is the compute-side view of a GraphicsBuffer.
type SharedBuffer interface {
	Size() uint64
}

// ComputeProgram is a compiled compute program.
type ComputeProgram interface {
	// EntryPoints lists the compute entry points of the program.
	EntryPoints() []string

	// CreateKernel resolves a named entry point.
	CreateKernel(name string) (Kernel, error)
}

// Kernel is a resolved entry point with positional arguments.
type Kernel interface {
	Name() string

	// WorkgroupSize returns the local size the kernel was compiled with.
	WorkgroupSize() [3]uint32

	// SetArg sets positional argument index. Buffer arguments take a SharedBuffer, scalar
	// arguments take float32, uint32 or int32 matching the declared type.
	SetArg(index int, value any) error
}

// CommandQueue is the compute command queue. Acquire, release and writes complete before returning;
// kernel enqueues may still be executing when EnqueueKernel returns.
type CommandQueue interface {
	AcquireShared(buffers ...SharedBuffer) error
	ReleaseShared(buffers ...SharedBuffer) error
	WriteBuffer(buffer SharedBuffer, offset uint64, data []byte) error
	EnqueueKernel(kernel Kernel, global, local [2]uint32) error
	Profiling() bool
}

// KernelTimer is implemented by profiling queues that can report how long the last kernel ran.
type KernelTimer interface {
	LastKernelDuration() time.Duration
}
