package builder

import (
	"log/slog"

	"github.com/adamwoolhether/easyhttp/handle"
)

// TransferBuilder collects callbacks for a [handle.Transfer]. The
// callbacks are installed when Result binds the transfer, and are used
// only by that transfer's performs.
type TransferBuilder struct {
	easy   *handle.Easy
	logger *slog.Logger
	errs   []error

	write    handle.WriteFunc
	read     handle.ReadFunc
	seek     handle.SeekFunc
	progress handle.ProgressFunc
	debug    handle.DebugFunc
	header   handle.HeaderFunc
}

// NewTransfer creates a builder for a transfer on h. Only [WithLogger]
// has an effect on a TransferBuilder. A nil h is recorded as
// [ErrNoSession].
func NewTransfer(h *handle.Easy, opts ...Option) *TransferBuilder {
	o, errs := collect(opts)
	b := &TransferBuilder{easy: h, logger: o.logger, errs: errs}
	if h == nil {
		b.logger.Debug("option rejected", "option", "session", "error", ErrNoSession)
		b.errs = append(b.errs, ErrNoSession)
	}

	return b
}

// WriteFunction sets the callback receiving the transfer's response data.
func (b *TransferBuilder) WriteFunction(f handle.WriteFunc) *TransferBuilder {
	b.write = f
	return b
}

// ReadFunction sets the callback supplying upload data.
func (b *TransferBuilder) ReadFunction(f handle.ReadFunc) *TransferBuilder {
	b.read = f
	return b
}

// SeekFunction sets the callback rewinding the upload for a resend.
func (b *TransferBuilder) SeekFunction(f handle.SeekFunc) *TransferBuilder {
	b.seek = f
	return b
}

// ProgressFunction sets the progress callback. Progress must also be on
// for the session.
func (b *TransferBuilder) ProgressFunction(f handle.ProgressFunc) *TransferBuilder {
	b.progress = f
	return b
}

// DebugFunction sets the callback receiving verbose transfer events.
func (b *TransferBuilder) DebugFunction(f handle.DebugFunc) *TransferBuilder {
	b.debug = f
	return b
}

// HeaderFunction sets the callback receiving each response header line.
func (b *TransferBuilder) HeaderFunction(f handle.HeaderFunc) *TransferBuilder {
	b.header = f
	return b
}

// HasErrors reports whether the builder's options failed.
func (b *TransferBuilder) HasErrors() bool {
	return len(b.errs) > 0
}

// Errors returns a copy of the recorded errors in the order they happened.
func (b *TransferBuilder) Errors() []error {
	return append([]error(nil), b.errs...)
}

// Result binds a new transfer to the session and installs every
// registered callback on it. Callbacks left unregistered fall back to the
// session's own. Failures to bind or install are accumulated and returned
// together as a [*BuildError].
func (b *TransferBuilder) Result() (*handle.Transfer, error) {
	errs := b.Errors()
	fail := func(name string, err error) {
		b.logger.Debug("option rejected", "option", name, "error", err)
		errs = append(errs, err)
	}

	if b.easy == nil {
		return nil, &BuildError{Errs: errs}
	}

	t, err := b.easy.Transfer()
	if err != nil {
		fail("transfer", err)
		return nil, &BuildError{Errs: errs}
	}

	install := []struct {
		name string
		set  bool
		fn   func() error
	}{
		{"write_function", b.write != nil, func() error { return t.SetWriteFunction(b.write) }},
		{"read_function", b.read != nil, func() error { return t.SetReadFunction(b.read) }},
		{"seek_function", b.seek != nil, func() error { return t.SetSeekFunction(b.seek) }},
		{"progress_function", b.progress != nil, func() error { return t.SetProgressFunction(b.progress) }},
		{"debug_function", b.debug != nil, func() error { return t.SetDebugFunction(b.debug) }},
		{"header_function", b.header != nil, func() error { return t.SetHeaderFunction(b.header) }},
	}
	for _, cb := range install {
		if !cb.set {
			continue
		}
		if err := cb.fn(); err != nil {
			fail(cb.name, err)
		}
	}

	if len(errs) > 0 {
		return nil, &BuildError{Errs: errs}
	}

	return t, nil
}
