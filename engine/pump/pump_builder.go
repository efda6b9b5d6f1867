package pump

import "time"

// PumpBuilderOption is a functional option used to configure a Pump during construction.
type PumpBuilderOption func(*Pump)

// WithAdvance sets the hook run after each render, used to step the camera.
//
// Parameters:
//   - advance: the hook
//
// Returns:
//   - PumpBuilderOption: a function that sets the advance hook
func WithAdvance(advance func()) PumpBuilderOption {
	return func(p *Pump) {
		p.advance = advance
	}
}

// WithPoll sets the hook Run services between ticks. Returning false stops Run.
//
// Parameters:
//   - poll: the hook, typically processing window events
//
// Returns:
//   - PumpBuilderOption: a function that sets the poll hook
func WithPoll(poll func() bool) PumpBuilderOption {
	return func(p *Pump) {
		p.poll = poll
	}
}

// WithObserver sets a callback receiving the stats of every completed tick.
func WithObserver(observer func(TickStats)) PumpBuilderOption {
	return func(p *Pump) {
		p.observer = observer
	}
}

// WithFrameBudget sets the target interval between tick starts. Defaults to DefaultFrameBudget.
//
// Parameters:
//   - budget: the frame budget
//
// Returns:
//   - PumpBuilderOption: a function that sets the frame budget
func WithFrameBudget(budget time.Duration) PumpBuilderOption {
	return func(p *Pump) {
		p.budget = budget
	}
}

// WithPollInterval sets the longest Run sleeps without servicing the poll hook.
func WithPollInterval(interval time.Duration) PumpBuilderOption {
	return func(p *Pump) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// WithFrameClock replaces the animation time parameters.
//
// Parameters:
//   - fc: the initial time and its step and wrap parameters
//
// Returns:
//   - PumpBuilderOption: a function that sets the frame clock
func WithFrameClock(fc FrameClock) PumpBuilderOption {
	return func(p *Pump) {
		p.frame = fc
	}
}

// WithClock sets the time source. Defaults to SystemClock.
func WithClock(clock Clock) PumpBuilderOption {
	return func(p *Pump) {
		p.clock = clock
	}
}
