package engine

import (
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine/config"
	"github.com/Carmen-Shannon/oxy-surface/engine/programs"
	"github.com/Carmen-Shannon/oxy-surface/engine/pump"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*Engine)

// WithConfig replaces the default configuration.
//
// Parameters:
//   - cfg: a validated configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger handed to every component.
//
// Parameters:
//   - log: the logger, nil keeps the no-op default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(log *zap.Logger) EngineBuilderOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithSources uses the given program sources instead of loading them from the configured location.
func WithSources(s programs.Sources) EngineBuilderOption {
	return func(e *Engine) {
		e.sources = &s
	}
}

// WithPoll sets the hook Run services between frames, typically the window's event poll.
// Returning false stops Run.
//
// Parameters:
//   - poll: the hook
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPoll(poll func() bool) EngineBuilderOption {
	return func(e *Engine) {
		e.poll = poll
	}
}

// WithClock sets the time source of the frame pump and profiler.
func WithClock(clock pump.Clock) EngineBuilderOption {
	return func(e *Engine) {
		e.clock = clock
	}
}
