package pump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
)

// fakeClock advances only when slept on or when a test moves it.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		name            string
		budget, elapsed time.Duration
		want            time.Duration
	}{
		{"under budget", 16 * time.Millisecond, 4 * time.Millisecond, 12 * time.Millisecond},
		{"exact", 16 * time.Millisecond, 16 * time.Millisecond, 0},
		{"over budget clamps to zero", 16 * time.Millisecond, 40 * time.Millisecond, 0},
		{"zero budget", 0, time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDelay(tt.budget, tt.elapsed))
		})
	}
}

func TestFrameClockWrap(t *testing.T) {
	fc := DefaultFrameClock()
	crossings := 0
	for i := 0; i < 30000; i++ {
		before := fc.T
		fc.Advance()
		assert.LessOrEqual(t, fc.T, fc.UpperBound)
		if fc.T < before {
			crossings++
			assert.Equal(t, before+fc.Step-fc.Period, fc.T)
		}
	}
	assert.GreaterOrEqual(t, crossings, 3)
	assert.Greater(t, fc.T, fc.UpperBound-fc.Period)
}

func TestTickRendersThenAdvances(t *testing.T) {
	clock := newFakeClock()
	var order []string
	var rendered []float32

	p := New(func(t float32) error {
		order = append(order, "render")
		rendered = append(rendered, t)
		clock.now = clock.now.Add(5 * time.Millisecond)
		return nil
	},
		WithClock(clock),
		WithFrameBudget(16*time.Millisecond),
		WithAdvance(func() { order = append(order, "advance") }),
	)
	assert.Equal(t, Idle, p.State())

	delay, err := p.Tick()
	require.NoError(t, err)
	assert.Equal(t, 11*time.Millisecond, delay)
	assert.Equal(t, Scheduled, p.State())

	_, err = p.Tick()
	require.NoError(t, err)

	assert.Equal(t, []string{"render", "advance", "render", "advance"}, order)
	assert.Equal(t, []float32{0, 0.0002}, rendered)
	assert.Equal(t, float32(0.0002)+float32(0.0002), p.T())
	assert.Equal(t, uint64(2), p.Ticks())
}

func TestTickOverBudgetSchedulesImmediately(t *testing.T) {
	clock := newFakeClock()
	p := New(func(float32) error {
		clock.now = clock.now.Add(50 * time.Millisecond)
		return nil
	}, WithClock(clock))

	delay, err := p.Tick()
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestTickIsNotReentrant(t *testing.T) {
	var p *Pump
	var inner error
	p = New(func(float32) error {
		assert.Equal(t, Running, p.State())
		_, inner = p.Tick()
		return nil
	}, WithClock(newFakeClock()))

	_, err := p.Tick()
	require.NoError(t, err)
	assert.ErrorIs(t, inner, fault.ErrProtocolViolation)
	assert.Equal(t, uint64(1), p.Ticks())
}

func TestTickRenderError(t *testing.T) {
	boom := fault.Dispatch("draw", errors.New("surface lost"))
	advanced := false
	p := New(func(float32) error { return boom }, WithClock(newFakeClock()), WithAdvance(func() { advanced = true }))

	_, err := p.Tick()
	assert.Same(t, boom, err)
	assert.False(t, advanced)
	assert.Equal(t, Idle, p.State())
	assert.Zero(t, p.T())
}

func TestObserver(t *testing.T) {
	clock := newFakeClock()
	var stats []TickStats
	p := New(func(float32) error {
		clock.now = clock.now.Add(time.Millisecond)
		return nil
	}, WithClock(clock), WithFrameBudget(10*time.Millisecond), WithObserver(func(s TickStats) { stats = append(stats, s) }))

	for range 3 {
		_, err := p.Tick()
		require.NoError(t, err)
	}
	require.Len(t, stats, 3)
	assert.Equal(t, TickStats{T: 0, Elapsed: time.Millisecond, Delay: 9 * time.Millisecond}, stats[0])
	assert.Equal(t, float32(0.0002), stats[1].T)
}

func TestRunPacesTicks(t *testing.T) {
	clock := newFakeClock()
	var starts []time.Time
	p := New(func(float32) error {
		starts = append(starts, clock.Now())
		clock.now = clock.now.Add(2 * time.Millisecond)
		return nil
	},
		WithClock(clock),
		WithFrameBudget(10*time.Millisecond),
		WithPollInterval(3*time.Millisecond),
		WithPoll(func() bool { return len(starts) < 5 }),
	)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, starts, 5)
	for i := 1; i < len(starts); i++ {
		assert.Equal(t, 10*time.Millisecond, starts[i].Sub(starts[i-1]), "tick %d", i)
	}
	for _, s := range clock.sleeps {
		assert.LessOrEqual(t, s, 3*time.Millisecond)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	p := New(func(float32) error {
		ticks++
		if ticks == 3 {
			cancel()
		}
		return nil
	}, WithClock(newFakeClock()), WithFrameBudget(0))

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 3, ticks)
}

func TestRunReturnsTickError(t *testing.T) {
	boom := errors.New("boom")
	p := New(func(float32) error { return boom }, WithClock(newFakeClock()))
	assert.ErrorIs(t, p.Run(context.Background()), boom)
}
