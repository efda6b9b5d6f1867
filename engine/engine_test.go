package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Carmen-Shannon/oxy-surface/common"
	"github.com/Carmen-Shannon/oxy-surface/engine/config"
	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu/fakegpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/interop"
	"github.com/Carmen-Shannon/oxy-surface/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-surface/engine/programs"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func newEngine(t *testing.T, d *fakegpu.Driver, options ...EngineBuilderOption) *Engine {
	t.Helper()
	options = append([]EngineBuilderOption{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(&fakeClock{now: time.Unix(0, 0)}),
		WithSources(programs.Embedded()),
	}, options...)
	return NewEngine(d, fakegpu.Surface{W: 500, H: 500}, options...)
}

func TestScenarioFirstFrameAndHundredTicks(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	e := newEngine(t, d)
	require.NoError(t, e.Start())
	defer e.Close()

	// seeded exactly once, before any frame
	raw := d.Buffers[0]
	require.Len(t, d.Buffers, 1)
	assert.Equal(t, interop.PointsBytes(interop.SeedGrid(64)), raw.Data)
	assert.Equal(t, 1, d.Count(fakegpu.OpWrite))
	setupOps := len(d.Ops)

	require.NoError(t, e.Tick())
	assert.Equal(t, []string{fakegpu.OpAcquire, fakegpu.OpDispatch, fakegpu.OpRelease, fakegpu.OpDraw}, d.Ops[setupOps:])

	q := d.Queue
	require.Len(t, q.Dispatches, 1)
	assert.Equal(t, float32(0), q.Dispatches[0].Args[pipeline.ArgTime])
	assert.Equal(t, [2]uint32{64, 64}, q.Dispatches[0].Global)
	assert.Equal(t, [2]uint32{8, 8}, q.Dispatches[0].Local)

	g := d.Graphics
	require.Len(t, g.Draws, 1)
	assert.Equal(t, uint32(4096), g.Draws[0].Count)
	assert.Equal(t, common.IdentityMatrix(), g.Draws[0].Uniforms[pipeline.UniformModel])

	for i := 0; i < 100; i++ {
		require.NoError(t, e.Tick())
		assert.Equal(t, interop.GraphicsOwned, e.Buffer().State())
	}

	frames := d.Ops[setupOps:]
	require.Len(t, frames, 101*4)
	for i := 0; i < len(frames); i += 4 {
		assert.Equal(t, []string{fakegpu.OpAcquire, fakegpu.OpDispatch, fakegpu.OpRelease, fakegpu.OpDraw}, frames[i:i+4], "frame %d", i/4)
	}
	assert.Equal(t, 1, d.Count(fakegpu.OpWrite))
	assert.Equal(t, uint64(2+101*2), e.Buffer().Transitions())

	// time advances by one step per tick
	var want float32
	for i, dispatch := range q.Dispatches {
		assert.Equal(t, want, dispatch.Args[pipeline.ArgTime], "dispatch %d", i)
		want += 0.0002
	}

	// the view keeps rotating, so consecutive frames see different view matrices
	assert.NotEqual(t, g.Draws[0].Uniforms[pipeline.UniformView], g.Draws[100].Uniforms[pipeline.UniformView])
}

func TestScenarioNoPlatforms(t *testing.T) {
	d := fakegpu.NewDriver()
	e := newEngine(t, d)

	err := e.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrInitialization)
	assert.Equal(t, fault.KindInitialization, fault.KindOf(err))
	assert.Empty(t, d.Buffers)
	assert.Zero(t, d.Count(fakegpu.OpCreateBuffer))
	assert.True(t, d.Released)
	assert.Nil(t, e.Pump())
}

func TestStartBuildFailure(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	d.FailOn[fakegpu.OpBuildCompute] = errors.New("surface.wgsl:1:1 error: unexpected token")
	e := newEngine(t, d)

	err := e.Start()
	assert.ErrorIs(t, err, fault.ErrBuild)
	assert.Contains(t, fault.DiagnosticsOf(err), "unexpected token")
}

func TestStartLinkFailure(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	src := programs.Embedded()
	src.Fragment = "fn nothing() {}"
	e := newEngine(t, d, WithSources(src))

	assert.ErrorIs(t, e.Start(), fault.ErrLink)
}

func TestFrameFailureIsFatal(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	e := newEngine(t, d)
	require.NoError(t, e.Start())

	d.FailOn[fakegpu.OpDispatch] = errors.New("device lost")
	err := e.Run(context.Background())
	assert.ErrorIs(t, err, fault.ErrRuntimeDispatch)
	assert.Empty(t, d.Graphics.Draws)
}

func TestRunStopsWhenPollReturnsFalse(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	polls := 0
	e := newEngine(t, d, WithPoll(func() bool {
		polls++
		return polls <= 50
	}))
	require.NoError(t, e.Start())

	require.NoError(t, e.Run(context.Background()))
	assert.NotEmpty(t, d.Graphics.Draws)
	assert.Equal(t, uint64(len(d.Graphics.Draws)), e.Pump().Ticks())
}

func TestResize(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	e := newEngine(t, d)
	require.NoError(t, e.Start())

	require.NoError(t, e.Resize(1000, 500))
	assert.Equal(t, float32(2), e.Camera().Aspect())
	assert.Equal(t, 1000, d.Graphics.Width)

	d.FailOn[fakegpu.OpResize] = errors.New("surface lost")
	assert.ErrorIs(t, e.Resize(800, 800), fault.ErrRuntimeDispatch)
	assert.ErrorIs(t, e.Tick(), fault.ErrRuntimeDispatch)
}

func TestProfilerObservesFrames(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	e := newEngine(t, d)
	require.NoError(t, e.Start())
	require.NotNil(t, e.Profiler())

	for range 5 {
		require.NoError(t, e.Tick())
	}
	expected := `
# HELP surface_ticks_total Completed frame ticks.
# TYPE surface_ticks_total counter
surface_ticks_total 5
`
	assert.NoError(t, testutil.GatherAndCompare(e.Profiler().Registry(), strings.NewReader(expected), "surface_ticks_total"))
}

func TestCloseReleasesComputeBeforeGraphics(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	e := newEngine(t, d)
	require.NoError(t, e.Start())
	require.NoError(t, e.Tick())
	require.NotEmpty(t, d.Buffers)

	e.Close()
	assert.Equal(t, []string{"compute", "graphics"}, d.Teardown)
	for _, b := range d.Buffers {
		assert.True(t, b.Released, b.Label())
	}
	assert.True(t, d.Released)
}

func TestFailedStartReleasesContexts(t *testing.T) {
	d := fakegpu.NewDriver(fakegpu.Platform())
	d.FailOn[fakegpu.OpBuildCompute] = errors.New("bad kernel")
	e := newEngine(t, d)

	require.Error(t, e.Start())
	assert.Equal(t, []string{"compute", "graphics"}, d.Teardown)
	assert.True(t, d.Released)
}

func TestProfilerDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Profiler.Enabled = false
	e := newEngine(t, fakegpu.NewDriver(fakegpu.Platform()), WithConfig(cfg))
	require.NoError(t, e.Start())
	assert.Nil(t, e.Profiler())
	require.NoError(t, e.Tick())
}

func TestTickBeforeStart(t *testing.T) {
	e := newEngine(t, fakegpu.NewDriver(fakegpu.Platform()))
	assert.ErrorIs(t, e.Tick(), fault.ErrProtocolViolation)
	assert.ErrorIs(t, e.Run(context.Background()), fault.ErrProtocolViolation)
}

func TestPresentModeFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.GPU.PresentMode = "fifo"
	d := fakegpu.NewDriver(fakegpu.Platform())
	e := newEngine(t, d, WithConfig(cfg))
	require.NoError(t, e.Start())
	assert.Equal(t, gpu.PresentModeFifo, d.Graphics.Mode)
}
