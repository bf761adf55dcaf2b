package builder

import (
	"log/slog"

	"github.com/adamwoolhether/easyhttp/handle"
)

// EasyBuilder owns a fresh [handle.Easy] and forwards every chain method
// to the matching setter. It is not safe for concurrent use.
type EasyBuilder struct {
	easy   *handle.Easy
	logger *slog.Logger
	errs   []error
	closed bool
}

// NewEasy creates a builder around a new handle. Errors from opts or
// from creating the handle are recorded like any other failed step, and
// the chain methods that follow become no-ops.
func NewEasy(opts ...Option) *EasyBuilder {
	o, errs := collect(opts)
	b := &EasyBuilder{logger: o.logger, errs: errs}

	h, err := handle.New(o.handleOpts...)
	if err != nil {
		b.record("new", err)
		return b
	}
	b.easy = h

	return b
}

// set forwards v to setter, recording the error it returns.
func set[T any](b *EasyBuilder, name string, setter func(*handle.Easy, T) error, v T) *EasyBuilder {
	if b.easy == nil {
		return b
	}
	if err := setter(b.easy, v); err != nil {
		b.record(name, err)
	}
	return b
}

func (b *EasyBuilder) record(name string, err error) {
	b.logger.Debug("option rejected", "option", name, "error", err)
	b.errs = append(b.errs, err)
}

// HasErrors reports whether any step of the chain failed so far.
func (b *EasyBuilder) HasErrors() bool {
	return len(b.errs) > 0
}

// Errors returns a copy of the recorded errors in the order they happened.
func (b *EasyBuilder) Errors() []error {
	return append([]error(nil), b.errs...)
}

// Result returns the configured handle. If any step failed, it returns
// a [*BuildError] listing every failure instead, and the handle is closed.
// Result may be called more than once.
func (b *EasyBuilder) Result() (*handle.Easy, error) {
	if b.closed {
		return nil, &BuildError{Errs: append(b.Errors(), ErrClosed)}
	}
	if !b.HasErrors() {
		return b.easy, nil
	}

	if b.easy != nil {
		if err := b.easy.Close(); err != nil {
			b.logger.Error("closing discarded handle", "error", err)
		}
		b.easy = nil
	}

	return nil, &BuildError{Errs: b.Errors()}
}

// Close closes the builder's handle, including one already handed out
// by Result. Closing twice is a no-op.
func (b *EasyBuilder) Close() error {
	b.closed = true
	if b.easy == nil {
		return nil
	}

	err := b.easy.Close()
	b.easy = nil

	return err
}

// WriteFunction installs the handle's write callback.
func (b *EasyBuilder) WriteFunction(f handle.WriteFunc) *EasyBuilder {
	return set(b, "write_function", (*handle.Easy).SetWriteFunction, f)
}

// ReadFunction installs the handle's read callback.
func (b *EasyBuilder) ReadFunction(f handle.ReadFunc) *EasyBuilder {
	return set(b, "read_function", (*handle.Easy).SetReadFunction, f)
}

// SeekFunction installs the handle's seek callback.
func (b *EasyBuilder) SeekFunction(f handle.SeekFunc) *EasyBuilder {
	return set(b, "seek_function", (*handle.Easy).SetSeekFunction, f)
}

// ProgressFunction installs the handle's progress callback.
func (b *EasyBuilder) ProgressFunction(f handle.ProgressFunc) *EasyBuilder {
	return set(b, "progress_function", (*handle.Easy).SetProgressFunction, f)
}

// DebugFunction installs the handle's debug callback.
func (b *EasyBuilder) DebugFunction(f handle.DebugFunc) *EasyBuilder {
	return set(b, "debug_function", (*handle.Easy).SetDebugFunction, f)
}

// HeaderFunction installs the handle's header callback.
func (b *EasyBuilder) HeaderFunction(f handle.HeaderFunc) *EasyBuilder {
	return set(b, "header_function", (*handle.Easy).SetHeaderFunction, f)
}
