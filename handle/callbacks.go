package handle

// WriteFunc receives body data (and headers when show_header is on). It
// must return len(data) to continue; a short count or an error aborts
// the transfer with [ErrWriteError].
type WriteFunc func(data []byte) (int, error)

// ReadFunc fills buf with upload data and returns the number of bytes
// written into it. Returning 0 signals the end of the upload, an error
// aborts the transfer with [ErrAbortedByCallback].
type ReadFunc func(buf []byte) (int, error)

// SeekFunc repositions the upload source, whence being one of the io.Seek*
// constants. It is used to rewind the body when a redirect requires the
// request to be sent again.
type SeekFunc func(offset int64, whence int) SeekResult

// ProgressFunc is called with the expected and current byte counts while
// progress is enabled. Returning false aborts the transfer with
// [ErrAbortedByCallback].
type ProgressFunc func(dltotal, dlnow, ultotal, ulnow float64) bool

// DebugFunc receives connection details, headers and raw data while
// verbose is enabled.
type DebugFunc func(kind InfoType, data []byte)

// HeaderFunc receives each response header line, status line first and
// the terminating blank line last. Returning false aborts the transfer
// with [ErrWriteError].
type HeaderFunc func(line []byte) bool

type callbacks struct {
	write    WriteFunc
	read     ReadFunc
	seek     SeekFunc
	progress ProgressFunc
	debug    DebugFunc
	header   HeaderFunc
}

// merge returns c with every callback set in over replacing its own.
func (c callbacks) merge(over callbacks) callbacks {
	if over.write != nil {
		c.write = over.write
	}
	if over.read != nil {
		c.read = over.read
	}
	if over.seek != nil {
		c.seek = over.seek
	}
	if over.progress != nil {
		c.progress = over.progress
	}
	if over.debug != nil {
		c.debug = over.debug
	}
	if over.header != nil {
		c.header = over.header
	}

	return c
}

// SetWriteFunction installs the callback receiving downloaded data.
func (e *Easy) SetWriteFunction(f WriteFunc) error {
	return e.set("write_function", func() error {
		e.cbs.write = f
		return nil
	})
}

// SetReadFunction installs the callback supplying upload data.
func (e *Easy) SetReadFunction(f ReadFunc) error {
	return e.set("read_function", func() error {
		e.cbs.read = f
		return nil
	})
}

// SetSeekFunction installs the callback rewinding upload data.
func (e *Easy) SetSeekFunction(f SeekFunc) error {
	return e.set("seek_function", func() error {
		e.cbs.seek = f
		return nil
	})
}

// SetProgressFunction installs the progress callback. It is only called
// while progress is enabled via [Easy.SetProgress].
func (e *Easy) SetProgressFunction(f ProgressFunc) error {
	return e.set("progress_function", func() error {
		e.cbs.progress = f
		return nil
	})
}

// SetDebugFunction installs the debug callback. It is only called while
// verbose is enabled via [Easy.SetVerbose].
func (e *Easy) SetDebugFunction(f DebugFunc) error {
	return e.set("debug_function", func() error {
		e.cbs.debug = f
		return nil
	})
}

// SetHeaderFunction installs the callback receiving response header lines.
func (e *Easy) SetHeaderFunction(f HeaderFunc) error {
	return e.set("header_function", func() error {
		e.cbs.header = f
		return nil
	})
}
