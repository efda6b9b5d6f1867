// Package pump drives the frame loop. A Pump owns one recurring task: each tick renders a frame at the
// current animation time, advances the camera and the time, and schedules the next tick so that ticks
// start no more often than once per frame budget.
package pump

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
)

// State is the scheduling state of a Pump.
type State int

const (
	Idle State = iota
	Scheduled
	Running
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// RenderFunc renders one frame at animation time t.
type RenderFunc func(t float32) error

// TickStats describes one completed tick.
type TickStats struct {
	// T is the animation time the frame was rendered at.
	T       float32
	Elapsed time.Duration
	Delay   time.Duration
}

// DefaultFrameBudget is the target interval between tick starts.
const DefaultFrameBudget = time.Second / 60

// DefaultPollInterval bounds how long Run sleeps between servicing the poll hook.
const DefaultPollInterval = time.Millisecond

// Pump is the self-rescheduling frame task. It is not safe for concurrent use.
type Pump struct {
	render   RenderFunc
	advance  func()
	poll     func() bool
	observer func(TickStats)

	clock        Clock
	frame        FrameClock
	budget       time.Duration
	pollInterval time.Duration

	state    State
	deadline time.Time
	ticks    uint64
}

// New creates an idle pump around render.
//
// Parameters:
//   - render: renders one frame
//   - options: functional options to configure the pump
//
// Returns:
//   - *Pump: the idle pump
func New(render RenderFunc, options ...PumpBuilderOption) *Pump {
	p := &Pump{
		render:       render,
		clock:        SystemClock(),
		frame:        DefaultFrameClock(),
		budget:       DefaultFrameBudget,
		pollInterval: DefaultPollInterval,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// NextDelay returns how long to wait before the next tick: the unused part of the budget, never negative.
func NextDelay(budget, elapsed time.Duration) time.Duration {
	return max(budget-elapsed, 0)
}

// Tick runs one frame: render at the current time, advance the camera, advance the time, then re-arm.
//
// Returns:
//   - time.Duration: the delay until the next tick should start
//   - error: a fault.KindProtocol error if called from inside a running tick, or the render error
func (p *Pump) Tick() (time.Duration, error) {
	if p.state == Running {
		return 0, fault.Protocol("tick", "frame task is already running")
	}
	p.state = Running
	start := p.clock.Now()
	t := p.frame.T

	if err := p.render(t); err != nil {
		p.state = Idle
		return 0, err
	}
	if p.advance != nil {
		p.advance()
	}
	p.frame.Advance()

	now := p.clock.Now()
	elapsed := now.Sub(start)
	delay := NextDelay(p.budget, elapsed)
	p.deadline = now.Add(delay)
	p.state = Scheduled
	p.ticks++

	if p.observer != nil {
		p.observer(TickStats{T: t, Elapsed: elapsed, Delay: delay})
	}
	return delay, nil
}

// Run ticks on the calling goroutine until ctx is done, the poll hook reports false, or a tick fails.
// Between ticks it services the poll hook at least every poll interval.
//
// Parameters:
//   - ctx: cancels the loop
//
// Returns:
//   - error: the first tick error, nil on cancellation or when polling stops the loop
func (p *Pump) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if p.poll != nil && !p.poll() {
			return nil
		}

		now := p.clock.Now()
		if p.state != Scheduled || !now.Before(p.deadline) {
			if _, err := p.Tick(); err != nil {
				return err
			}
			continue
		}
		p.clock.Sleep(min(p.deadline.Sub(now), p.pollInterval))
	}
}

// T returns the current animation time.
func (p *Pump) T() float32 { return p.frame.T }

// State returns the scheduling state.
func (p *Pump) State() State { return p.state }

// Ticks returns how many ticks have completed.
func (p *Pump) Ticks() uint64 { return p.ticks }
