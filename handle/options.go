package handle

import (
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring an [Easy] via [New].
type Option func(*options) error
type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	stdout io.Writer
	stdin  io.Reader
}

// WithLogger injects a custom [slog.Logger] into the handle.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used to record a span per transfer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithStdout replaces the destination of received data when no write
// callback is installed. It defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(o *options) error {
		if w == nil {
			return errors.New("stdout writer must not be nil")
		}
		o.stdout = w
		return nil
	}
}

// WithStdin replaces the source of upload data when no read callback is
// installed. It defaults to os.Stdin.
func WithStdin(r io.Reader) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("stdin reader must not be nil")
		}
		o.stdin = r
		return nil
	}
}
