package profiler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Carmen-Shannon/oxy-surface/engine/pump"
)

func TestTickUpdatesCollectors(t *testing.T) {
	p := NewProfiler()

	p.Tick(pump.TickStats{T: 0.5, Elapsed: 2 * time.Millisecond})
	p.Tick(pump.TickStats{T: 0.75, Elapsed: 3 * time.Millisecond})

	assert.Equal(t, 2.0, testutil.ToFloat64(p.ticks))
	assert.Equal(t, 0.75, testutil.ToFloat64(p.animationTime))
	assert.Equal(t, uint64(2), sampleCount(t, p, "surface_frame_seconds"))
}

func sampleCount(t *testing.T, p *Profiler, name string) uint64 {
	t.Helper()
	families, err := p.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestRecordDispatch(t *testing.T) {
	p := NewProfiler()
	p.RecordDispatch(0)
	p.RecordDispatch(300 * time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.dispatches))

	assert.Equal(t, uint64(1), sampleCount(t, p, "surface_kernel_seconds"))
}

func TestSetTransitionsAddsDelta(t *testing.T) {
	p := NewProfiler()
	p.SetTransitions(4)
	p.SetTransitions(10)
	p.SetTransitions(10)

	assert.Equal(t, 10.0, testutil.ToFloat64(p.transitions))
}

func TestSummaryInterval(t *testing.T) {
	now := time.Unix(100, 0)
	core, logs := observer.New(zap.InfoLevel)
	p := NewProfiler(
		WithLogger(zap.New(core)),
		WithInterval(time.Second),
		WithNow(func() time.Time { return now }),
	)

	for i := 0; i < 59; i++ {
		now = now.Add(16 * time.Millisecond)
		assert.False(t, p.Tick(pump.TickStats{Elapsed: time.Millisecond}))
	}
	now = now.Add(100 * time.Millisecond)
	assert.True(t, p.Tick(pump.TickStats{T: 1.5, Elapsed: time.Millisecond}))

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.InDelta(t, 60.0/1.044, fields["fps"], 0.01)
	assert.Equal(t, float32(1.5), fields["t"])
}

func TestRegistryIsPrivate(t *testing.T) {
	a := NewProfiler()
	b := NewProfiler()
	assert.NotSame(t, a.Registry(), b.Registry())

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
