package handle

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errLowSpeed = errors.New("transfer below low speed limit")

// run is the state of a single perform.
type run struct {
	e    *Easy
	opts settings
	cbs  callbacks
	log  *slog.Logger
	info *Info

	// mu serializes callbacks; uploads run on a transport goroutine.
	mu    sync.Mutex
	meter *progressMeter

	dlTotal atomic.Int64
	dlNow   atomic.Int64
	ulTotal atomic.Int64
	ulNow   atomic.Int64
	bytes   atomic.Int64
	hops    atomic.Int64

	aborted atomic.Pointer[Error]
}

// abortWith records the first error raised inside the transport, where
// it could otherwise be replaced by a generic one.
func (r *run) abortWith(err *Error) *Error {
	r.aborted.CompareAndSwap(nil, err)
	return err
}

// Perform runs the transfer described by the handle's options with the
// callbacks installed on the handle. It blocks until the transfer is
// complete, failed or ctx is done.
func (e *Easy) Perform(ctx context.Context) error {
	return e.perform(ctx, e.cbs)
}

func (e *Easy) perform(ctx context.Context, cbs callbacks) (err error) {
	if !e.busy.CompareAndSwap(false, true) {
		return &Error{Op: "perform", Err: ErrRecursiveAPICall}
	}
	defer e.busy.Store(false)

	if e.opts.url == nil {
		return &Error{Op: "perform", Err: ErrURLMalformat, Detail: "no URL set"}
	}

	id := uuid.NewString()
	e.info = Info{}
	r := &run{
		e:    e,
		opts: e.opts,
		cbs:  cbs,
		log:  e.logger.With("transfer", id),
		info: &e.info,
	}
	r.meter = &progressMeter{logger: r.log, startTime: time.Now()}

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "easyhttp.perform",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("transfer.id", id),
			attribute.String("url.full", e.opts.url.Redacted()),
			attribute.String("http.request.method", r.method()),
		),
	)
	defer func() {
		e.info.TotalTime = time.Since(start)
		e.info.DownloadSize = r.dlNow.Load()
		e.info.UploadSize = r.ulNow.Load()

		if e.info.ResponseCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", e.info.ResponseCode))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		r.log.Debug("transfer finished",
			"url", e.opts.url.Redacted(),
			"status", e.info.ResponseCode,
			"downloaded", e.info.DownloadSize,
			"uploaded", e.info.UploadSize,
			"elapsed", e.info.TotalTime.Round(time.Millisecond),
			"error", err,
		)
	}()

	if e.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	ctx = withRun(ctx, r)

	if err := e.loadCookieFiles(); err != nil {
		return withOp("perform", err)
	}

	if e.opts.connectOnly {
		err = e.connectOnly(ctx, r)
	} else {
		err = r.do(ctx, cancel)
	}
	if err != nil {
		return withOp("perform", r.classify(ctx, err))
	}

	return nil
}

func withOp(op string, err error) error {
	var herr *Error
	if errors.As(err, &herr) && herr.Op == "" {
		herr.Op = op
	}
	return err
}

func (r *run) method() string {
	if r.opts.customRequest != "" {
		return r.opts.customRequest
	}

	switch r.opts.method() {
	case methodPost:
		return http.MethodPost
	case methodPut:
		return http.MethodPut
	case methodHead:
		return http.MethodHead
	}

	return http.MethodGet
}

// compile returns the transport built from the current options, reusing
// the previous one when no option affecting it changed.
func (e *Easy) compile() (*http.Transport, *dialer, error) {
	if e.transport != nil {
		return e.transport, e.dialer, nil
	}

	d := newDialer(e.opts, e.dns)

	cfg, err := tlsConfig(e.opts.tls, e.sessions)
	if err != nil {
		return nil, nil, err
	}

	maxConns := e.opts.maxConnects
	if maxConns == 0 {
		maxConns = defaultMaxConnects
	}

	e.transport = &http.Transport{
		Proxy:               d.transportProxy,
		DialContext:         d.DialContext,
		TLSClientConfig:     cfg,
		TLSHandshakeTimeout: e.opts.connectTimeout,
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
		ReadBufferSize:      e.opts.bufferSize,
		WriteBufferSize:     e.opts.bufferSize,
	}
	e.dialer = d

	return e.transport, d, nil
}

func (r *run) do(ctx context.Context, cancel context.CancelCauseFunc) error {
	tr, _, err := r.e.compile()
	if err != nil {
		return err
	}
	if r.opts.freshConnect {
		tr.CloseIdleConnections()
	}

	req, err := r.newRequest(ctx)
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport:     observeTransport{r: r, base: tr},
		CheckRedirect: r.checkRedirect,
	}
	if r.e.jar != nil {
		client.Jar = r.e.jar
	}

	stop := r.watchSpeed(ctx, cancel)
	defer stop()

	if err := r.progress(false); err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				r.log.Error("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			r.log.Error("failed to close response body", "error", err)
		}
	}()

	r.info.ResponseCode = resp.StatusCode
	r.info.EffectiveURL = resp.Request.URL.String()
	r.info.ContentType = resp.Header.Get("Content-Type")
	if resp.TLS != nil && r.opts.tls.certInfo {
		r.info.CertInfo = resp.TLS.PeerCertificates
	}
	if r.opts.fetchFiletime {
		if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
			r.info.Filetime = t
		}
	}

	if r.opts.failOnError && resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Err: ErrHTTPReturnedError}
	}

	if r.conditionUnmet(resp) {
		r.info.ConditionUnmet = true
		r.infof("The requested document does not meet the time condition")
		return r.progress(true)
	}

	if r.opts.resumeFrom > 0 && resp.StatusCode == http.StatusOK {
		discardBody = false
		return fail(ErrRangeError, "server does not support byte ranges, cannot resume")
	}

	total := resp.ContentLength
	if r.opts.ignoreCL {
		total = -1
	}
	if total > 0 {
		r.dlTotal.Store(total)
	}
	if r.opts.maxFilesize > 0 && total > r.opts.maxFilesize {
		discardBody = false
		return fail(ErrFileSizeExceeded, "content length %d exceeds %d", total, r.opts.maxFilesize)
	}

	if r.opts.method() != methodHead {
		if err := r.receive(ctx, resp); err != nil {
			discardBody = false
			return err
		}
	}

	return r.progress(true)
}

func (r *run) newRequest(ctx context.Context) (*http.Request, error) {
	u := *r.opts.url
	if r.opts.port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(r.opts.port))
	}

	body, length, rewind, err := r.requestBody(ctx)
	if err != nil {
		return nil, err
	}

	ctx = httptrace.WithClientTrace(ctx, r.clientTrace())
	req, err := http.NewRequestWithContext(ctx, r.method(), u.String(), nil)
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Cause: err}
	}

	if body != nil {
		req.Body = body
		req.GetBody = rewind
		switch {
		case length == 0:
			req.Body = http.NoBody
			req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		case length > 0:
			req.ContentLength = length
			r.ulTotal.Store(length)
		}
	}

	r.setHeaders(req)
	req.Close = r.opts.forbidReuse

	return req, nil
}

func (r *run) setHeaders(req *http.Request) {
	h := req.Header

	if ua := r.opts.userAgent; ua != "" {
		h.Set("User-Agent", ua)
	} else {
		// An empty value keeps the transport from adding its own.
		h["User-Agent"] = []string{""}
	}
	h.Set("Accept", "*/*")

	if r.opts.referer != "" {
		h.Set("Referer", r.opts.referer)
	}
	if enc := r.opts.acceptEncoding; enc != nil {
		v := *enc
		if v == "" {
			v = "gzip, deflate"
		}
		h.Set("Accept-Encoding", v)
	}
	if r.opts.cookie != "" {
		h.Set("Cookie", r.opts.cookie)
	}

	switch {
	case r.opts.rangeSpec != "":
		h.Set("Range", "bytes="+r.opts.rangeSpec)
	case r.opts.resumeFrom > 0:
		h.Set("Range", fmt.Sprintf("bytes=%d-", r.opts.resumeFrom))
	}

	if name := r.opts.timeCondition.header(); name != "" && r.opts.timeValue != 0 {
		h.Set(name, time.Unix(r.opts.timeValue, 0).UTC().Format(http.TimeFormat))
	}

	if r.opts.username != "" || r.opts.password != "" {
		req.SetBasicAuth(r.opts.username, r.opts.password)
	}

	if r.opts.method() == methodPost {
		h.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	replaced := make(map[string]bool)
	for _, line := range r.opts.headers {
		name, value, err := parseHeaderLine(line)
		if err != nil {
			continue
		}
		name = http.CanonicalHeaderKey(name)

		switch {
		case value == nil:
			h.Del(name)
		case name == "Host":
			req.Host = *value
		case replaced[name]:
			h.Add(name, *value)
		default:
			h.Set(name, *value)
			replaced[name] = true
		}
	}
}

func (r *run) checkRedirect(req *http.Request, via []*http.Request) error {
	if !r.opts.followLocation {
		return http.ErrUseLastResponse
	}
	if r.opts.maxRedirs >= 0 && len(via) > r.opts.maxRedirs {
		return fail(ErrTooManyRedirects, "maximum (%d) redirects followed", r.opts.maxRedirs)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fail(ErrUnsupportedProtocol, "redirect to %q", req.URL.Scheme)
	}

	r.info.RedirectCount = len(via)
	r.infof("Issue another request to this URL: '%s'", req.URL.Redacted())

	switch {
	case r.opts.autoReferer:
		prev := *via[len(via)-1].URL
		prev.User = nil
		prev.Fragment = ""
		req.Header.Set("Referer", prev.String())
	case r.opts.referer != "":
		req.Header.Set("Referer", r.opts.referer)
	default:
		req.Header.Del("Referer")
	}

	if r.opts.unrestrictedAuth && (r.opts.username != "" || r.opts.password != "") {
		req.SetBasicAuth(r.opts.username, r.opts.password)
	}

	return nil
}

// conditionUnmet reports whether the response shows the document did not
// meet the time condition.
func (r *run) conditionUnmet(resp *http.Response) bool {
	if r.opts.timeCondition == TimeConditionNone || r.opts.timeValue == 0 {
		return false
	}
	if resp.StatusCode == http.StatusNotModified {
		return true
	}

	lm, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		return false
	}

	tv := time.Unix(r.opts.timeValue, 0)
	switch r.opts.timeCondition {
	case TimeConditionIfModifiedSince:
		return !lm.After(tv)
	case TimeConditionIfUnmodifiedSince:
		return lm.After(tv)
	}

	return false
}

// watchSpeed aborts the transfer with errLowSpeed once it stays below the
// low speed limit for the low speed time. stop ends the watchdog.
func (r *run) watchSpeed(ctx context.Context, cancel context.CancelCauseFunc) (stop func()) {
	limit, window := r.opts.lowSpeedLimit, r.opts.lowSpeedTime
	if limit <= 0 || window <= 0 {
		return func() {}
	}

	interval := min(time.Second, window)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := r.bytes.Load()
		var slowSince time.Time
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cur := r.bytes.Load()
				speed := float64(cur-last) / interval.Seconds()
				last = cur

				if speed >= float64(limit) {
					slowSince = time.Time{}
					continue
				}
				if slowSince.IsZero() {
					slowSince = now.Add(-interval)
				}
				if now.Sub(slowSince) >= window {
					r.log.Debug("transfer below low speed limit", "limit", limit, "window", window)
					cancel(errLowSpeed)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// classify maps the error of a transfer onto the package sentinels.
func (r *run) classify(ctx context.Context, err error) error {
	if aborted := r.aborted.Load(); aborted != nil {
		return aborted
	}
	if errors.Is(context.Cause(ctx), errLowSpeed) {
		return &Error{
			Err:    ErrOperationTimedout,
			Detail: fmt.Sprintf("operation too slow, less than %d bytes/sec transferred the last %s", r.opts.lowSpeedLimit, r.opts.lowSpeedTime),
			Cause:  err,
		}
	}
	if ctx.Err() != nil && errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		out := &Error{Err: ErrOperationTimedout, Cause: err}
		if r.opts.timeout > 0 {
			out.Detail = fmt.Sprintf("transfer exceeded %s", r.opts.timeout)
		}
		return out
	}

	return classify(err, "")
}

// classify maps a transport error onto the package sentinels. Errors
// already carrying a sentinel are returned unchanged.
func classify(err error, detail string) error {
	var (
		herr *Error
		serr *StatusError
	)
	switch {
	case errors.As(err, &herr):
		return herr
	case errors.As(err, &serr):
		return serr
	}

	var (
		netErr      net.Error
		dnsErr      *net.DNSError
		opErr       *net.OpError
		verifyErr   *tls.CertificateVerificationError
		authorityEr x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
	)

	out := &Error{Err: ErrRecvError, Detail: detail, Cause: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		out.Err = ErrOperationTimedout
	case errors.Is(err, context.Canceled):
		out.Err = ErrTransferCancelled
	case errors.As(err, &verifyErr), errors.As(err, &authorityEr), errors.As(err, &hostnameErr), errors.As(err, &invalidErr):
		out.Err = ErrPeerFailedVerification
	case errors.As(err, &recordErr), errors.As(err, &alertErr),
		errors.As(err, &opErr) && opErr.Op == "remote error", errors.Is(err, http.ErrSchemeMismatch):
		out.Err = ErrSSLConnectError
	case errors.As(err, &dnsErr):
		out.Err = ErrCouldntResolveHost
	case errors.As(err, &opErr) && opErr.Op == "dial":
		out.Err = ErrCouldntConnect
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		out.Detail = "empty reply from server"
	}

	return out
}
