package handle

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/adamwoolhether/easyhttp/handle"

// Defaults mirror the values a fresh libcurl easy handle starts with.
const (
	defaultBufferSize      = 16 << 10 // 16KB
	minBufferSize          = 1 << 10
	maxBufferSize          = 512 << 10
	defaultDNSCacheTimeout = 60 * time.Second
	defaultMaxConnects     = 5
	defaultProxyPort       = 1080
)

type method int

const (
	methodGet method = iota
	methodPost
	methodPut
	methodHead
)

// method resolves the request kind from the nobody, upload and post
// options. A custom request only replaces the verb on the wire.
func (s *settings) method() method {
	switch {
	case s.nobody:
		return methodHead
	case s.upload:
		return methodPut
	case s.post:
		return methodPost
	}
	return methodGet
}

// settings holds every option value of a handle.
type settings struct {
	verbose     bool
	showHeader  bool
	progress    bool
	signal      bool
	failOnError bool

	url            *url.URL
	port           int
	proxy          string
	proxySet       bool
	proxyPort      int
	proxyType      ProxyType
	noProxy        string
	noProxySet     bool
	proxyTunnel    bool
	iface          string
	localPort      int
	localPortRange int
	dnsCacheTTL    time.Duration
	bufferSize     int
	tcpNoDelay     bool
	addressScope   uint32

	username      string
	password      string
	proxyUsername string
	proxyPassword string

	autoReferer      bool
	acceptEncoding   *string
	followLocation   bool
	unrestrictedAuth bool
	maxRedirs        int
	nobody           bool
	upload           bool
	post             bool
	postFields       []byte
	postFieldSize    int64
	referer          string
	userAgent        string
	headers          []string
	cookie           string
	cookieFiles      []string
	cookieJar        string
	cookieSession    bool
	ignoreCL         bool
	contentDecoding  bool

	rangeSpec     string
	resumeFrom    int64
	customRequest string
	fetchFiletime bool
	inFilesize    int64
	maxFilesize   int64
	timeCondition TimeCondition
	timeValue     int64

	timeout        time.Duration
	lowSpeedLimit  int64
	lowSpeedTime   time.Duration
	maxSendSpeed   int64
	maxRecvSpeed   int64
	maxConnects    int
	freshConnect   bool
	forbidReuse    bool
	connectTimeout time.Duration
	ipResolve      IPResolve
	connectOnly    bool

	tls tlsSettings
}

type tlsSettings struct {
	certFile     string
	certType     string
	keyFile      string
	keyType      string
	keyPassword  string
	version      SSLVersion
	verifyHost   bool
	verifyPeer   bool
	caInfo       string
	caPath       string
	crlFile      string
	issuerCert   string
	certInfo     bool
	cipherList   []uint16
	sessionCache bool
}

func defaultSettings() settings {
	return settings{
		dnsCacheTTL:     defaultDNSCacheTimeout,
		bufferSize:      defaultBufferSize,
		tcpNoDelay:      true,
		maxRedirs:       -1,
		postFieldSize:   -1,
		inFilesize:      -1,
		contentDecoding: true,
		maxConnects:     defaultMaxConnects,
		tls: tlsSettings{
			certType:     "PEM",
			keyType:      "PEM",
			verifyHost:   true,
			verifyPeer:   true,
			sessionCache: true,
		},
	}
}

// Easy is a single configurable transfer session. Options are applied
// through the Set* methods, each of which validates its argument and
// reports failures as an [*Error]. An Easy must not be used from more
// than one goroutine at a time.
type Easy struct {
	opts settings
	cbs  callbacks

	logger *slog.Logger
	tracer trace.Tracer
	stdout io.Writer
	stdin  io.Reader

	busy atomic.Bool

	transport *http.Transport
	dialer    *dialer
	sessions  tls.ClientSessionCache
	dns       *dnsCache
	jar       *cookieJar
	loaded    map[string]bool
	conn      net.Conn

	info Info
}

// New returns a handle with default options. If not specified, data is
// written to os.Stdout and upload data is read from os.Stdin.
func New(optFns ...Option) (*Easy, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying handle option: %w", err)
		}
	}

	e := &Easy{
		opts:     defaultSettings(),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		stdout:   os.Stdout,
		stdin:    os.Stdin,
		dns:      newDNSCache(),
		sessions: tls.NewLRUClientSessionCache(0),
		loaded:   make(map[string]bool),
	}

	if opts.logger != nil {
		e.logger = opts.logger
	}
	if opts.tracer != nil {
		e.tracer = opts.tracer
	}
	if opts.stdout != nil {
		e.stdout = opts.stdout
	}
	if opts.stdin != nil {
		e.stdin = opts.stdin
	}

	return e, nil
}

// Transfer creates a transfer bound to this handle. Callbacks set on the
// transfer are only used by [Transfer.Perform].
func (e *Easy) Transfer() (*Transfer, error) {
	if e.busy.Load() {
		return nil, &Error{Op: "transfer", Err: ErrRecursiveAPICall}
	}

	return &Transfer{easy: e}, nil
}

// Reset restores every option and callback to its default. The DNS cache
// and cookies are kept, idle connections are released.
func (e *Easy) Reset() error {
	if e.busy.Load() {
		return &Error{Op: "reset", Err: ErrRecursiveAPICall}
	}

	e.opts = defaultSettings()
	e.cbs = callbacks{}
	e.info = Info{}
	e.invalidate()

	return nil
}

// Close writes the cookie jar file if one is configured and releases the
// handle's connections. The handle must not be used afterwards.
func (e *Easy) Close() error {
	if e.busy.Load() {
		return &Error{Op: "close", Err: ErrRecursiveAPICall}
	}

	var errs []error
	if e.jar != nil && e.opts.cookieJar != "" {
		if err := e.jar.save(e.opts.cookieJar); err != nil {
			errs = append(errs, fmt.Errorf("saving cookie jar: %w", err))
		}
	}

	if e.conn != nil {
		if err := e.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing connection: %w", err))
		}
		e.conn = nil
	}

	e.invalidate()

	return errors.Join(errs...)
}

// invalidate drops the compiled transport so the next perform rebuilds
// it from the current options.
func (e *Easy) invalidate() {
	if e.transport != nil {
		e.transport.CloseIdleConnections()
		e.transport = nil
	}
	e.dialer = nil
}

// Info holds what was learned about the last transfer.
type Info struct {
	ResponseCode   int
	EffectiveURL   string
	ContentType    string
	TotalTime      time.Duration
	RedirectCount  int
	PrimaryIP      string
	PrimaryPort    int
	Filetime       time.Time
	DownloadSize   int64
	UploadSize     int64
	HeaderSize     int64
	CertInfo       []*x509.Certificate
	ConditionUnmet bool
}

// Info returns a copy of the information gathered by the last perform.
func (e *Easy) Info() Info { return e.info }

// ResponseCode returns the last received HTTP status code, 0 if none.
func (e *Easy) ResponseCode() int { return e.info.ResponseCode }

// EffectiveURL returns the last URL used, after following redirects.
func (e *Easy) EffectiveURL() string { return e.info.EffectiveURL }

// ContentType returns the Content-Type of the last response.
func (e *Easy) ContentType() string { return e.info.ContentType }

// TotalTime returns the duration of the last transfer.
func (e *Easy) TotalTime() time.Duration { return e.info.TotalTime }

// RedirectCount returns the number of redirects followed.
func (e *Easy) RedirectCount() int { return e.info.RedirectCount }

// PrimaryIP returns the IP address of the most recent connection.
func (e *Easy) PrimaryIP() string { return e.info.PrimaryIP }

// Filetime returns the remote document time, when fetch_filetime was
// enabled and the server reported one.
func (e *Easy) Filetime() (time.Time, bool) {
	return e.info.Filetime, !e.info.Filetime.IsZero()
}

// DownloadSize returns the number of body bytes delivered.
func (e *Easy) DownloadSize() int64 { return e.info.DownloadSize }

// UploadSize returns the number of body bytes sent.
func (e *Easy) UploadSize() int64 { return e.info.UploadSize }

// HeaderSize returns the total size of all received headers.
func (e *Easy) HeaderSize() int64 { return e.info.HeaderSize }

// CertInfo returns the peer certificate chain, when certinfo was enabled.
func (e *Easy) CertInfo() []*x509.Certificate { return e.info.CertInfo }

// ConditionUnmet reports whether the time condition prevented the
// transfer.
func (e *Easy) ConditionUnmet() bool { return e.info.ConditionUnmet }
