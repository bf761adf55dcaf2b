package easyhttp

import (
	"errors"
	"log/slog"
)

// DoOption defines optional settings for Do.
//
// WithDestination enables capturing the response body with the
// given struct template. bodyTemplate MUST be a pointer.
// WithJSONNumb tells the decoder to use decoder.UseNumber().
// WithLogger sets the logger cleanup failures are reported to.
type DoOption func(options *doOpts) error

type doOpts struct {
	responseBody any
	useJSONNum   bool
	logger       *slog.Logger
}

func WithDestination[T any](bodyTemplate *T) DoOption {
	return func(opts *doOpts) error {
		if bodyTemplate == nil {
			return errors.New("destination must not be nil")
		}
		opts.responseBody = bodyTemplate

		return nil
	}
}

func WithJSONNumb() DoOption {
	return func(opts *doOpts) error {
		opts.useJSONNum = true

		return nil
	}
}

func WithLogger(logger *slog.Logger) DoOption {
	return func(opts *doOpts) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = logger

		return nil
	}
}
