package broker

import "go.uber.org/zap"

type BrokerBuilderOption func(*Broker)

// WithLogger sets the logger the broker reports platform discovery to.
//
// Parameters:
//   - log: the logger, nil keeps the no-op default
//
// Returns:
//   - BrokerBuilderOption: a function that sets the logger
func WithLogger(log *zap.Logger) BrokerBuilderOption {
	return func(b *Broker) {
		if log != nil {
			b.log = log.Named("broker")
		}
	}
}

// WithProfiling sets whether the command queue is created with profiling enabled. Defaults to true.
func WithProfiling(enabled bool) BrokerBuilderOption {
	return func(b *Broker) {
		b.profiling = enabled
	}
}
