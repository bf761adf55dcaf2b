package builder

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/easyhttp/handle"
)

// Option defines optional settings for both builders.
//
// WithLogger injects a custom logger, used for the builder's own
// messages and handed to the handle it creates.
// WithTracer sets the tracer the handle records transfers with.
// WithHandleOptions passes extra options through to [handle.New].
type Option func(*options) error
type options struct {
	logger     *slog.Logger
	handleOpts []handle.Option
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		o.handleOpts = append(o.handleOpts, handle.WithLogger(logger))
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.handleOpts = append(o.handleOpts, handle.WithTracer(tracer))
		return nil
	}
}

func WithHandleOptions(opts ...handle.Option) Option {
	return func(o *options) error {
		o.handleOpts = append(o.handleOpts, opts...)
		return nil
	}
}

// collect applies opts in order, returning every error they report.
func collect(opts []Option) (options, []error) {
	o := options{logger: slog.Default()}

	var errs []error
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			errs = append(errs, err)
		}
	}

	return o, errs
}
