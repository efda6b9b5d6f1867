// Package interop shares one graphics-allocated buffer with the compute side. Ownership of the buffer
// alternates strictly between the two domains: compute must acquire it before writing or dispatching
// onto it, and must release it before graphics reads it again.
package interop

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
)

// State is the current owner of a Buffer.
type State int

const (
	// GraphicsOwned means graphics may read the buffer and compute must not touch it.
	GraphicsOwned State = iota
	// ComputeOwned means compute may write the buffer and graphics must not read it.
	ComputeOwned
)

func (s State) String() string {
	if s == ComputeOwned {
		return "compute-owned"
	}
	return "graphics-owned"
}

// Buffer is a graphics buffer registered for compute access. It is not safe for concurrent use;
// the ownership state is the only exclusion mechanism.
type Buffer struct {
	queue  gpu.CommandQueue
	handle gpu.GraphicsBuffer
	shared gpu.SharedBuffer

	state       State
	seeded      bool
	transitions uint64
}

// NewBuffer registers handle with ctx. The buffer starts graphics-owned.
//
// Parameters:
//   - ctx: the compute context linked to the graphics context that allocated handle
//   - queue: the queue ownership transfers and writes are issued on
//   - handle: the graphics buffer
//
// Returns:
//   - *Buffer: the shared buffer
//   - error: a fault.KindInitialization error if registration fails
func NewBuffer(ctx gpu.ComputeContext, queue gpu.CommandQueue, handle gpu.GraphicsBuffer) (*Buffer, error) {
	if handle == nil {
		return nil, fault.Initialization("share buffer", errors.New("no graphics buffer"))
	}
	shared, err := ctx.ShareBuffer(handle)
	if err != nil {
		return nil, fault.Initialization("share buffer "+handle.Label(), err)
	}
	return &Buffer{queue: queue, handle: handle, shared: shared, state: GraphicsOwned}, nil
}

// Acquire transfers ownership to compute and blocks until the transfer completes.
func (b *Buffer) Acquire() error {
	if b.state == ComputeOwned {
		return fault.Protocol("acquire", "buffer is already compute-owned")
	}
	if err := b.queue.AcquireShared(b.shared); err != nil {
		return fault.Dispatch("acquire", err)
	}
	b.state = ComputeOwned
	b.transitions++
	return nil
}

// Release returns ownership to graphics and blocks until every command enqueued on the buffer has completed.
func (b *Buffer) Release() error {
	if b.state == GraphicsOwned {
		return fault.Protocol("release", "buffer is already graphics-owned")
	}
	if err := b.queue.ReleaseShared(b.shared); err != nil {
		return fault.Dispatch("release", err)
	}
	b.state = GraphicsOwned
	b.transitions++
	return nil
}

// Seed uploads the initial dataset in one synchronous write bracketed by Acquire and Release.
// It may be called once, with exactly Size bytes worth of points.
//
// Parameters:
//   - points: the full dataset in row-major order
//
// Returns:
//   - error: a fault.KindProtocol error on a second call, a fault.KindInitialization error
//     on a size mismatch or a failed write
func (b *Buffer) Seed(points []Point) error {
	if b.seeded {
		return fault.Protocol("seed", "buffer has already been seeded")
	}
	data := PointsBytes(points)
	if uint64(len(data)) != b.Size() {
		return fault.Initialization("seed", fmt.Errorf("dataset is %d bytes, buffer is %d", len(data), b.Size()))
	}

	if err := b.Acquire(); err != nil {
		return err
	}
	if err := b.queue.WriteBuffer(b.shared, 0, data); err != nil {
		return fault.Initialization("seed", err)
	}
	if err := b.Release(); err != nil {
		return err
	}
	b.seeded = true
	return nil
}

// State returns the current owner.
func (b *Buffer) State() State { return b.state }

// Handle returns the graphics side of the buffer.
func (b *Buffer) Handle() gpu.GraphicsBuffer { return b.handle }

// Shared returns the compute side of the buffer.
func (b *Buffer) Shared() gpu.SharedBuffer { return b.shared }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.handle.Size() }

// Transitions returns how many ownership transfers have completed.
func (b *Buffer) Transitions() uint64 { return b.transitions }
