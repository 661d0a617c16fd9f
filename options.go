package digest

import (
	"context"
	"log/slog"
	"time"

	"github.com/zoobzio/pipz"
)

// Option configures a pipeline.
type Option func(*settings)

type settings struct {
	temperature float32
	strict      bool
	wrappers    []func(pipz.Chainable[*Run]) pipz.Chainable[*Run]
}

func newSettings(opts []Option) settings {
	s := settings{temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// wrap applies the pipeline wrappers in the order the options were given.
func (s settings) wrap(pipeline pipz.Chainable[*Run]) pipz.Chainable[*Run] {
	for _, w := range s.wrappers {
		pipeline = w(pipeline)
	}
	return pipeline
}

// WithTemperature sets the sampling temperature sent with every call.
// Zero or TemperatureUnset keeps DefaultTemperature.
func WithTemperature(t float32) Option {
	return func(s *settings) {
		s.temperature = resolveTemperature(t)
	}
}

// WithStrictErrors makes the single-stage pipeline return call failures as
// errors instead of turning them into the output text.
func WithStrictErrors() Option {
	return func(s *settings) {
		s.strict = true
	}
}

// WithTimeout bounds the whole run. Operations exceeding this duration are
// canceled and the run fails.
func WithTimeout(duration time.Duration) Option {
	return func(s *settings) {
		s.wrappers = append(s.wrappers, func(pipeline pipz.Chainable[*Run]) pipz.Chainable[*Run] {
			return pipz.NewTimeout("timeout", pipeline, duration)
		})
	}
}

// WithCircuitBreaker stops calling the provider after failures consecutive
// failed runs and lets one run through again after recovery.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(s *settings) {
		s.wrappers = append(s.wrappers, func(pipeline pipz.Chainable[*Run]) pipz.Chainable[*Run] {
			return pipz.NewCircuitBreaker("circuit-breaker", pipeline, failures, recovery)
		})
	}
}

// WithRateLimit throttles runs through a limiter owned by the pipeline being
// built. Runs of one pipeline share it; separate pipelines do not.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *settings) {
		limiter := pipz.NewRateLimiter[*Run]("rate-limit", rps, burst)
		s.wrappers = append(s.wrappers, func(pipeline pipz.Chainable[*Run]) pipz.Chainable[*Run] {
			return pipz.NewSequence("rate-limited", limiter, pipeline)
		})
	}
}

// WithErrorHandler passes pipeline failures to handler for logging or alerting.
// The failure is still returned to the caller.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*Run]]) Option {
	return func(s *settings) {
		s.wrappers = append(s.wrappers, func(pipeline pipz.Chainable[*Run]) pipz.Chainable[*Run] {
			return pipz.NewHandle("error-handler", pipeline, handler)
		})
	}
}

// WithDebug logs the request before the run and every state field after it.
func WithDebug(logger *slog.Logger) Option {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s *settings) {
		s.wrappers = append(s.wrappers, func(pipeline pipz.Chainable[*Run]) pipz.Chainable[*Run] {
			return pipz.Apply("debug", func(ctx context.Context, run *Run) (*Run, error) {
				logger.DebugContext(ctx, "digest run input",
					"run_id", run.ID,
					"variant", run.Variant,
					"style", run.Request.Style,
					"text", run.Request.Text,
				)

				processed, err := pipeline.Process(ctx, run)
				if err != nil {
					logger.DebugContext(ctx, "digest run error", "run_id", run.ID, "error", err)
					return processed, err
				}

				for _, key := range run.State.Keys() {
					value, _ := run.State.Get(key)
					logger.DebugContext(ctx, "digest run field", "run_id", run.ID, "field", key, "value", value)
				}
				return processed, nil
			})
		})
	}
}
