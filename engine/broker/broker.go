// Package broker performs the second phase of GPU bring-up: it discovers compute platforms, picks the
// first GPU of the first platform, links a compute context to an already-live graphics context and
// creates the single command queue the engine uses for the rest of the session.
package broker

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
)

// Broker owns the linked compute context and its command queue.
type Broker struct {
	log       *zap.Logger
	profiling bool

	platform gpu.Platform
	device   gpu.Device
	context  gpu.ComputeContext
	queue    gpu.CommandQueue
}

// Open links a compute context to graphics. The graphics context must already exist and be live;
// linking before the graphics side is up is an ordering error.
//
// Parameters:
//   - driver: the GPU driver
//   - graphics: the live graphics context from the first bring-up phase
//   - options: functional options to configure the broker
//
// Returns:
//   - *Broker: the broker holding context and queue
//   - error: a fault.KindInitialization error if any step fails
func Open(driver gpu.Driver, graphics gpu.GraphicsContext, options ...BrokerBuilderOption) (*Broker, error) {
	b := &Broker{
		log:       zap.NewNop(),
		profiling: true,
	}
	for _, option := range options {
		option(b)
	}

	if graphics == nil || !graphics.Live() {
		return nil, fault.Initialization("link compute context", errors.New("graphics context must be live before compute bring-up"))
	}

	platforms, err := driver.Platforms()
	if err != nil {
		return nil, fault.Initialization("enumerate platforms", err)
	}
	if len(platforms) == 0 {
		return nil, fault.Initialization("enumerate platforms", errors.New("no compute platforms found"))
	}
	b.logPlatforms(platforms)

	platform := platforms[0]
	device, ok := firstGPU(platform)
	if !ok {
		return nil, fault.Initialization("select device", fmt.Errorf("no GPU device on platform %s", platform.Name))
	}
	b.log.Info("Using first GPU on first platform found...",
		zap.String("platform", platform.Name),
		zap.String("device", device.Name),
	)

	ctx, err := driver.CreateContext(graphics, platform, device)
	if err != nil {
		return nil, fault.Initialization("create compute context", err)
	}
	queue, err := ctx.CreateQueue(gpu.QueueProperties{Profiling: b.profiling})
	if err != nil {
		ctx.Release()
		return nil, fault.Initialization("create command queue", err)
	}

	b.platform = platform
	b.device = device
	b.context = ctx
	b.queue = queue
	return b, nil
}

// Platform returns the selected platform.
func (b *Broker) Platform() gpu.Platform { return b.platform }

// Device returns the selected device.
func (b *Broker) Device() gpu.Device { return b.device }

// Context returns the linked compute context.
func (b *Broker) Context() gpu.ComputeContext { return b.context }

// Queue returns the command queue.
func (b *Broker) Queue() gpu.CommandQueue { return b.queue }

// Close releases the compute context.
func (b *Broker) Close() {
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
}

func (b *Broker) logPlatforms(platforms []gpu.Platform) {
	for i, p := range platforms {
		b.log.Info("platform", zap.Int("index", i), zap.Stringer("platform", p))
		for j, d := range p.Devices {
			b.log.Debug("device",
				zap.Int("platform", i),
				zap.Int("index", j),
				zap.String("name", d.Name),
				zap.String("vendor", d.Vendor),
				zap.Stringer("type", d.Type),
			)
		}
	}
}

func firstGPU(p gpu.Platform) (gpu.Device, bool) {
	for _, d := range p.Devices {
		if d.Type == gpu.DeviceTypeGPU {
			return d, true
		}
	}
	return gpu.Device{}, false
}
