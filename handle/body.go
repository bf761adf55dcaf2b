package handle

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adamwoolhether/easyhttp/handle/throttle"
)

// receive streams the response body to the write callback in chunks of
// at most the buffer size.
func (r *run) receive(ctx context.Context, resp *http.Response) error {
	var body io.Reader = resp.Body

	if r.opts.maxRecvSpeed > 0 {
		tr, err := throttle.NewReader(ctx, body, r.opts.maxRecvSpeed, func() *slog.Logger { return r.log })
		if err != nil {
			return fmt.Errorf("configuring receive throttle: %w", err)
		}
		body = tr
	}

	body = &countingReader{r: body, n: &r.bytes}

	body, err := r.decode(resp, body)
	if err != nil {
		return err
	}

	buf := make([]byte, r.opts.bufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			now := r.dlNow.Add(int64(n))
			if r.opts.maxFilesize > 0 && now > r.opts.maxFilesize {
				return fail(ErrFileSizeExceeded, "more than %d bytes received", r.opts.maxFilesize)
			}

			r.debug(InfoDataIn, buf[:n])
			if err := r.write(buf[:n]); err != nil {
				return err
			}
			if err := r.progress(false); err != nil {
				return err
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var herr *Error
			if errors.As(err, &herr) {
				return herr
			}
			if errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) || errors.Is(err, zlib.ErrChecksum) {
				return &Error{Err: ErrBadContentEncoding, Cause: err}
			}
			return err
		}
	}
}

// decode undoes the Content-Encoding of the response when decoding was
// requested with an accepted encoding.
func (r *run) decode(resp *http.Response, body io.Reader) (io.Reader, error) {
	if r.opts.acceptEncoding == nil || !r.opts.contentDecoding {
		return body, nil
	}

	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		br := bufio.NewReader(body)
		if _, err := br.Peek(1); errors.Is(err, io.EOF) {
			return br, nil
		}
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &Error{Err: ErrBadContentEncoding, Detail: enc, Cause: err}
		}
		return zr, nil
	case "deflate":
		br := bufio.NewReader(body)
		hdr, err := br.Peek(2)
		if errors.Is(err, io.EOF) && len(hdr) == 0 {
			return br, nil
		}
		// Servers send both zlib wrapped and raw deflate streams.
		if len(hdr) == 2 && hdr[0]&0x0f == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0 {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, &Error{Err: ErrBadContentEncoding, Detail: enc, Cause: err}
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	}

	return nil, fail(ErrBadContentEncoding, "unsupported content encoding %q", enc)
}

// write delivers data to the write callback, or the handle's stdout.
func (r *run) write(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	var err error
	if fn := r.cbs.write; fn != nil {
		n, err = fn(data)
	} else {
		n, err = r.e.stdout.Write(data)
	}

	if err != nil {
		return &Error{Err: ErrWriteError, Cause: err}
	}
	if n != len(data) {
		return fail(ErrWriteError, "wrote %d of %d bytes", n, len(data))
	}

	return nil
}

// progress reports the transfer counters while progress is on. Without
// a progress callback the meter logs them.
func (r *run) progress(done bool) error {
	if !r.opts.progress {
		return nil
	}

	dlTotal, dlNow := r.dlTotal.Load(), r.dlNow.Load()
	ulTotal, ulNow := r.ulTotal.Load(), r.ulNow.Load()

	r.mu.Lock()
	defer r.mu.Unlock()

	if fn := r.cbs.progress; fn != nil {
		if !fn(float64(dlTotal), float64(dlNow), float64(ulTotal), float64(ulNow)) {
			return fail(ErrAbortedByCallback, "progress callback")
		}
		return nil
	}

	r.meter.update(dlTotal, dlNow, ulTotal, ulNow, done)

	return nil
}

// progressMeter logs transfer progress at most once per second.
type progressMeter struct {
	logger    *slog.Logger
	startTime time.Time
	lastLog   time.Time
}

func (m *progressMeter) update(dlTotal, dlNow, ulTotal, ulNow int64, done bool) {
	switch {
	case done:
		m.log("transfer complete", dlTotal, dlNow, ulTotal, ulNow)
	case time.Since(m.lastLog) >= time.Second:
		m.lastLog = time.Now()
		m.log("transferring", dlTotal, dlNow, ulTotal, ulNow)
	}
}

func (m *progressMeter) log(msg string, dlTotal, dlNow, ulTotal, ulNow int64) {
	elapsed := time.Since(m.startTime)
	attrs := []any{
		"download", percent(dlNow, dlTotal),
		"downloaded", dlNow,
		"upload", percent(ulNow, ulTotal),
		"uploaded", ulNow,
		"elapsed", elapsed.Round(time.Millisecond),
		"mbps", fmt.Sprintf("%.2f", float64(dlNow+ulNow)/elapsed.Seconds()/(1024*1024)),
	}
	m.logger.Info(msg, attrs...)
}

func percent(now, total int64) string {
	if total <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f%%", float64(now)/float64(total)*100)
}

// /////////////////////////////////////////////////////////////////
// Upload

// requestBody returns the upload body of the request, its length (-1 if
// unknown) and the function rewinding it for a redirect.
func (r *run) requestBody(ctx context.Context) (io.ReadCloser, int64, func() (io.ReadCloser, error), error) {
	switch r.opts.method() {
	case methodPost:
		if data := r.opts.postFields; data != nil {
			if s := r.opts.postFieldSize; s >= 0 && s < int64(len(data)) {
				data = data[:s]
			}
			body, err := r.sendBody(ctx, bytes.NewReader(data))
			if err != nil {
				return nil, 0, nil, err
			}
			rewind := func() (io.ReadCloser, error) {
				if !r.followsRedirect() {
					return http.NoBody, nil
				}
				r.ulNow.Store(0)
				return r.sendBody(ctx, bytes.NewReader(data))
			}
			return body, int64(len(data)), rewind, nil
		}
		return r.callbackBody(ctx, r.opts.postFieldSize)
	case methodPut:
		return r.callbackBody(ctx, r.opts.inFilesize)
	}

	return nil, 0, nil, nil
}

func (r *run) callbackBody(ctx context.Context, size int64) (io.ReadCloser, int64, func() (io.ReadCloser, error), error) {
	var src io.Reader = r.e.stdin
	if fn := r.cbs.read; fn != nil {
		src = readFuncReader{r: r, fn: fn}
	}

	body, err := r.sendBody(ctx, src)
	if err != nil {
		return nil, 0, nil, err
	}

	// The transport asks for the body of a 307 or 308 before the redirect
	// policy runs, so an unfollowed redirect must leave the stream alone.
	rewind := func() (io.ReadCloser, error) {
		if !r.followsRedirect() {
			return http.NoBody, nil
		}

		seek := r.cbs.seek
		if seek == nil {
			return nil, r.abortWith(fail(ErrSendFailRewind, "no seek callback"))
		}

		r.mu.Lock()
		res := seek(0, io.SeekStart)
		r.mu.Unlock()

		if res != SeekOK {
			return nil, r.abortWith(fail(ErrSendFailRewind, "seek callback returned %d", res))
		}

		r.ulNow.Store(0)
		return r.sendBody(ctx, src)
	}

	return body, size, rewind, nil
}

// followsRedirect reports whether the redirect answering the latest
// request will be followed.
func (r *run) followsRedirect() bool {
	if !r.opts.followLocation {
		return false
	}
	return r.opts.maxRedirs < 0 || r.hops.Load() <= int64(r.opts.maxRedirs)
}

// sendBody wraps an upload source with the send throttle and the
// upload counters.
func (r *run) sendBody(ctx context.Context, src io.Reader) (io.ReadCloser, error) {
	if r.opts.maxSendSpeed > 0 {
		tr, err := throttle.NewReader(ctx, src, r.opts.maxSendSpeed, func() *slog.Logger { return r.log })
		if err != nil {
			return nil, fmt.Errorf("configuring send throttle: %w", err)
		}
		src = tr
	}

	return io.NopCloser(&sendReader{r: r, src: src}), nil
}

type sendReader struct {
	r   *run
	src io.Reader
}

func (s *sendReader) Read(p []byte) (int, error) {
	n, err := s.src.Read(p)
	if n > 0 {
		s.r.ulNow.Add(int64(n))
		s.r.bytes.Add(int64(n))
		s.r.debug(InfoDataOut, p[:n])
		if perr := s.r.progress(false); perr != nil {
			var herr *Error
			if !errors.As(perr, &herr) {
				herr = &Error{Err: ErrAbortedByCallback, Detail: "progress callback", Cause: perr}
			}
			return n, s.r.abortWith(herr)
		}
	}

	var herr *Error
	if errors.As(err, &herr) {
		return n, s.r.abortWith(herr)
	}

	return n, err
}

// readFuncReader adapts a read callback to an io.Reader.
type readFuncReader struct {
	r  *run
	fn ReadFunc
}

func (rf readFuncReader) Read(p []byte) (int, error) {
	rf.r.mu.Lock()
	n, err := rf.fn(p)
	rf.r.mu.Unlock()

	switch {
	case err != nil:
		return 0, &Error{Err: ErrAbortedByCallback, Detail: "read callback", Cause: err}
	case n < 0 || n > len(p):
		return 0, fail(ErrReadError, "read callback returned %d for a %d byte buffer", n, len(p))
	case n == 0:
		return 0, io.EOF
	}

	return n, nil
}

// countingReader counts the bytes read for the low speed watchdog.
type countingReader struct {
	r io.Reader
	n interface{ Add(int64) int64 }
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
