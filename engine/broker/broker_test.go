package broker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu/fakegpu"
)

func newGraphics(t *testing.T, d *fakegpu.Driver) gpu.GraphicsContext {
	t.Helper()
	gc, err := d.CreateGraphicsContext(fakegpu.Surface{W: 500, H: 500}, gpu.PresentModeImmediate)
	require.NoError(t, err)
	return gc
}

func TestOpenSelectsFirstGPUOnFirstPlatform(t *testing.T) {
	first := gpu.Platform{
		Name: "first",
		Devices: []gpu.Device{
			{Name: "cpu", Type: gpu.DeviceTypeCPU},
			{Name: "gpu-a", Type: gpu.DeviceTypeGPU},
			{Name: "gpu-b", Type: gpu.DeviceTypeGPU},
		},
	}
	second := fakegpu.Platform()
	d := fakegpu.NewDriver(first, second)
	gc := newGraphics(t, d)

	b, err := Open(d, gc, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "first", b.Platform().Name)
	assert.Equal(t, "gpu-a", b.Device().Name)
	assert.Same(t, d.Compute, b.Context())
	assert.Same(t, d.Queue, b.Queue())
	assert.True(t, gc.Linked())
	assert.True(t, b.Queue().Profiling())
}

func TestOpenWithoutProfiling(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	b, err := Open(d, newGraphics(t, d), WithProfiling(false))
	require.NoError(t, err)
	assert.False(t, b.Queue().Profiling())
}

func TestOpenFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(d *fakegpu.Driver, gc *fakegpu.GraphicsContext)
	}{
		{
			name:  "no platforms",
			setup: func(d *fakegpu.Driver, _ *fakegpu.GraphicsContext) { d.PlatformList = nil },
		},
		{
			name:  "enumeration fails",
			setup: func(d *fakegpu.Driver, _ *fakegpu.GraphicsContext) { d.FailOn["platforms"] = boom },
		},
		{
			name: "no GPU on first platform",
			setup: func(d *fakegpu.Driver, _ *fakegpu.GraphicsContext) {
				// a GPU on a later platform is not considered
				d.PlatformList = []gpu.Platform{
					{Name: "cpu only", Devices: []gpu.Device{{Name: "cpu", Type: gpu.DeviceTypeCPU}}},
					fakegpu.Platform(),
				}
			},
		},
		{
			name:  "context creation fails",
			setup: func(d *fakegpu.Driver, _ *fakegpu.GraphicsContext) { d.FailOn[fakegpu.OpCreateContext] = boom },
		},
		{
			name:  "queue creation fails",
			setup: func(d *fakegpu.Driver, _ *fakegpu.GraphicsContext) { d.FailOn[fakegpu.OpCreateQueue] = boom },
		},
		{
			name:  "graphics context not live",
			setup: func(_ *fakegpu.Driver, gc *fakegpu.GraphicsContext) { gc.Kill() },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fakegpu.NewDriver(fakegpu.Platform())
			gc := newGraphics(t, d).(*fakegpu.GraphicsContext)
			tt.setup(d, gc)

			b, err := Open(d, gc)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, fault.ErrInitialization)
			assert.Empty(t, d.Buffers)
		})
	}
}

func TestOpenRequiresGraphicsContext(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	_, err := Open(d, nil)
	assert.ErrorIs(t, err, fault.ErrInitialization)
	assert.Zero(t, d.Count(fakegpu.OpCreateContext))
}

func TestClose(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	b, err := Open(d, newGraphics(t, d))
	require.NoError(t, err)

	b.Close()
	assert.True(t, d.Compute.Released)
	assert.Nil(t, b.Context())
	b.Close()
}
