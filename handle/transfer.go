package handle

import (
	"context"
)

// Transfer is a handle bound to a set of callbacks that only apply to
// its own performs. Callbacks the transfer leaves unset fall back to the
// ones installed on the handle. A Transfer is created with [Easy.Transfer].
type Transfer struct {
	easy *Easy
	cbs  callbacks
}

// Easy returns the session the transfer is bound to.
func (t *Transfer) Easy() *Easy { return t.easy }

// Perform runs the bound handle with the transfer's callbacks.
func (t *Transfer) Perform(ctx context.Context) error {
	return t.easy.perform(ctx, t.easy.cbs.merge(t.cbs))
}

func (t *Transfer) set(op string, fn func()) error {
	return t.easy.set(op, func() error {
		fn()
		return nil
	})
}

// SetWriteFunction installs the callback receiving downloaded data.
func (t *Transfer) SetWriteFunction(f WriteFunc) error {
	return t.set("write_function", func() { t.cbs.write = f })
}

// SetReadFunction installs the callback supplying upload data.
func (t *Transfer) SetReadFunction(f ReadFunc) error {
	return t.set("read_function", func() { t.cbs.read = f })
}

// SetSeekFunction installs the callback rewinding upload data.
func (t *Transfer) SetSeekFunction(f SeekFunc) error {
	return t.set("seek_function", func() { t.cbs.seek = f })
}

// SetProgressFunction installs the progress callback.
func (t *Transfer) SetProgressFunction(f ProgressFunc) error {
	return t.set("progress_function", func() { t.cbs.progress = f })
}

// SetDebugFunction installs the debug callback.
func (t *Transfer) SetDebugFunction(f DebugFunc) error {
	return t.set("debug_function", func() { t.cbs.debug = f })
}

// SetHeaderFunction installs the callback receiving response header lines.
func (t *Transfer) SetHeaderFunction(f HeaderFunc) error {
	return t.set("header_function", func() { t.cbs.header = f })
}
