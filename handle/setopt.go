package handle

import (
	"errors"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// set applies fn unless the handle is performing. Errors returned by fn
// are stamped with the option name.
func (e *Easy) set(op string, fn func() error) error {
	op = "set " + op
	if e.busy.Load() {
		return &Error{Op: op, Err: ErrRecursiveAPICall}
	}

	if err := fn(); err != nil {
		var herr *Error
		if errors.As(err, &herr) {
			if herr.Op == "" {
				herr.Op = op
			}
			return herr
		}
		return &Error{Op: op, Err: ErrBadFunctionArgument, Cause: err}
	}

	return nil
}

// setTransport is set for options compiled into the transport, which is
// rebuilt on the next perform.
func (e *Easy) setTransport(op string, fn func() error) error {
	return e.set(op, func() error {
		if err := fn(); err != nil {
			return err
		}
		e.invalidate()
		return nil
	})
}

func setBool(dst *bool, v bool) func() error {
	return func() error {
		*dst = v
		return nil
	}
}

func setString(dst *string, v string) func() error {
	return func() error {
		*dst = v
		return nil
	}
}

func setPort(dst *int, port int) func() error {
	return func() error {
		if port < 0 || port > 65535 {
			return fail(ErrBadFunctionArgument, "port %d out of range", port)
		}
		*dst = port
		return nil
	}
}

func setDuration(dst *time.Duration, d time.Duration) func() error {
	return func() error {
		if d < 0 {
			return fail(ErrBadFunctionArgument, "duration %s must not be negative", d)
		}
		*dst = d
		return nil
	}
}

func setSize(dst *int64, n int64) func() error {
	return func() error {
		if n < 0 {
			return fail(ErrBadFunctionArgument, "size %d must not be negative", n)
		}
		*dst = n
		return nil
	}
}

// /////////////////////////////////////////////////////////////////
// Behavior

// SetVerbose enables the debug callback, or debug logging when none is set.
func (e *Easy) SetVerbose(verbose bool) error {
	return e.set("verbose", setBool(&e.opts.verbose, verbose))
}

// SetShowHeader passes response headers to the write callback as well.
func (e *Easy) SetShowHeader(show bool) error {
	return e.set("show_header", setBool(&e.opts.showHeader, show))
}

// SetProgress enables the progress callback, or progress logging when
// none is set.
func (e *Easy) SetProgress(progress bool) error {
	return e.set("progress", setBool(&e.opts.progress, progress))
}

// SetSignal is accepted for compatibility; Go transfers never install
// signal handlers.
func (e *Easy) SetSignal(signal bool) error {
	return e.set("signal", setBool(&e.opts.signal, signal))
}

// SetWildcardMatch only applies to FTP transfers, which are not supported.
func (e *Easy) SetWildcardMatch(m bool) error {
	return e.set("wildcard_match", func() error {
		if m {
			return fail(ErrNotBuiltIn, "wildcard matching requires FTP")
		}
		return nil
	})
}

// SetFailOnError turns response codes of 400 and above into a
// [*StatusError] instead of delivering the body.
func (e *Easy) SetFailOnError(fail bool) error {
	return e.set("fail_on_error", setBool(&e.opts.failOnError, fail))
}

// /////////////////////////////////////////////////////////////////
// Network

// SetURL sets the URL to transfer. A URL without a scheme is assumed to
// be http.
func (e *Easy) SetURL(rawURL string) error {
	return e.set("url", func() error {
		u, err := parseURL(rawURL)
		if err != nil {
			return err
		}
		switch u.Scheme {
		case "http", "https":
		default:
			return fail(ErrUnsupportedProtocol, "%q", u.Scheme)
		}
		e.opts.url = u
		return nil
	})
}

func parseURL(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fail(ErrURLMalformat, "empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Cause: err}
	}
	if u.Host == "" {
		return nil, fail(ErrURLMalformat, "no host in %q", rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)

	return u, nil
}

// SetPort overrides the port of the URL. 0 uses the URL's port.
func (e *Easy) SetPort(port int) error {
	return e.set("port", setPort(&e.opts.port, port))
}

// SetProxy sets the proxy to use. An empty string disables proxies,
// including those from the environment. A proxy without a scheme uses
// the configured proxy type.
func (e *Easy) SetProxy(proxy string) error {
	return e.setTransport("proxy", func() error {
		if proxy != "" {
			u, err := parseURL(proxy)
			if err != nil {
				return err
			}
			switch u.Scheme {
			case "http", "https", "socks5", "socks5h":
			case "socks4", "socks4a":
				return fail(ErrNotBuiltIn, "%s proxies", u.Scheme)
			default:
				return fail(ErrUnsupportedProtocol, "proxy scheme %q", u.Scheme)
			}
		}
		e.opts.proxy = proxy
		e.opts.proxySet = true
		return nil
	})
}

// SetProxyPort overrides the proxy port. 0 uses the proxy's port or 1080.
func (e *Easy) SetProxyPort(port int) error {
	return e.setTransport("proxy_port", setPort(&e.opts.proxyPort, port))
}

// SetProxyType sets the protocol used for proxies given without a scheme.
func (e *Easy) SetProxyType(kind ProxyType) error {
	return e.setTransport("proxy_type", func() error {
		switch kind {
		case ProxyHTTP, ProxyHTTP10, ProxySOCKS5, ProxySOCKS5Hostname:
		case ProxySOCKS4, ProxySOCKS4A:
			return fail(ErrNotBuiltIn, "%s proxies", kind)
		default:
			return fail(ErrBadFunctionArgument, "unknown proxy type %d", int(kind))
		}
		e.opts.proxyType = kind
		return nil
	})
}

// SetNoProxy sets a comma separated list of hosts, domains or CIDR
// ranges that bypass the proxy. "*" bypasses it for every host.
func (e *Easy) SetNoProxy(skip string) error {
	return e.setTransport("noproxy", func() error {
		e.opts.noProxy = skip
		e.opts.noProxySet = true
		return nil
	})
}

// SetHTTPProxyTunnel tunnels every request through an HTTP proxy with
// CONNECT, not only https ones.
func (e *Easy) SetHTTPProxyTunnel(tunnel bool) error {
	return e.setTransport("http_proxy_tunnel", setBool(&e.opts.proxyTunnel, tunnel))
}

// SetInterface binds outgoing connections to a local interface, IP
// address or host name. The "if!" and "host!" prefixes force the kind.
func (e *Easy) SetInterface(iface string) error {
	return e.setTransport("interface", func() error {
		if iface == "if!" || iface == "host!" {
			return fail(ErrBadFunctionArgument, "empty interface name")
		}
		e.opts.iface = iface
		return nil
	})
}

// SetLocalPort sets the first local port to bind outgoing connections to.
func (e *Easy) SetLocalPort(port int) error {
	return e.setTransport("local_port", setPort(&e.opts.localPort, port))
}

// SetLocalPortRange sets how many local ports, starting at the local
// port, are tried when binding.
func (e *Easy) SetLocalPortRange(n int) error {
	return e.setTransport("local_port_range", setPort(&e.opts.localPortRange, n))
}

// SetDNSCacheTimeout sets how long resolved names are cached. 0 disables
// the cache, a negative duration caches forever.
func (e *Easy) SetDNSCacheTimeout(d time.Duration) error {
	return e.setTransport("dns_cache_timeout", func() error {
		e.opts.dnsCacheTTL = d
		return nil
	})
}

// SetBufferSize sets the size of the chunks handed to the write callback.
func (e *Easy) SetBufferSize(size int) error {
	return e.setTransport("buffer_size", func() error {
		if size < minBufferSize || size > maxBufferSize {
			return fail(ErrBadFunctionArgument, "buffer size %d outside [%d, %d]", size, minBufferSize, maxBufferSize)
		}
		e.opts.bufferSize = size
		return nil
	})
}

// SetTCPNoDelay toggles Nagle's algorithm on outgoing connections.
func (e *Easy) SetTCPNoDelay(enable bool) error {
	return e.setTransport("tcp_nodelay", setBool(&e.opts.tcpNoDelay, enable))
}

// SetAddressScope sets the IPv6 scope id used for link-local addresses.
func (e *Easy) SetAddressScope(scope uint32) error {
	return e.setTransport("address_scope", func() error {
		e.opts.addressScope = scope
		return nil
	})
}

// /////////////////////////////////////////////////////////////////
// Auth

// SetUsername sets the user name for basic authentication.
func (e *Easy) SetUsername(user string) error {
	return e.set("username", setString(&e.opts.username, user))
}

// SetPassword sets the password for basic authentication.
func (e *Easy) SetPassword(pass string) error {
	return e.set("password", setString(&e.opts.password, pass))
}

// SetProxyUsername sets the user name sent to the proxy.
func (e *Easy) SetProxyUsername(user string) error {
	return e.setTransport("proxy_username", setString(&e.opts.proxyUsername, user))
}

// SetProxyPassword sets the password sent to the proxy.
func (e *Easy) SetProxyPassword(pass string) error {
	return e.setTransport("proxy_password", setString(&e.opts.proxyPassword, pass))
}

// /////////////////////////////////////////////////////////////////
// HTTP

// SetAutoReferer sets the Referer header to the previous URL when
// following a redirect.
func (e *Easy) SetAutoReferer(enable bool) error {
	return e.set("autoreferer", setBool(&e.opts.autoReferer, enable))
}

// SetAcceptEncoding sets the Accept-Encoding header and enables decoding
// of matching responses. An empty string asks for every supported
// encoding.
func (e *Easy) SetAcceptEncoding(encoding string) error {
	return e.set("accept_encoding", func() error {
		for _, enc := range strings.Split(encoding, ",") {
			enc = strings.TrimSpace(enc)
			if enc != "" && !httpguts.ValidHeaderFieldValue(enc) {
				return fail(ErrBadFunctionArgument, "encoding %q", enc)
			}
		}
		e.opts.acceptEncoding = &encoding
		return nil
	})
}

// SetTransferEncoding would request compressed Transfer-Encoding, which
// the transport cannot decode.
func (e *Easy) SetTransferEncoding(enable bool) error {
	return e.set("transfer_encoding", func() error {
		if enable {
			return fail(ErrNotBuiltIn, "compressed transfer encoding")
		}
		return nil
	})
}

// SetFollowLocation follows Location headers of redirect responses.
func (e *Easy) SetFollowLocation(enable bool) error {
	return e.set("follow_location", setBool(&e.opts.followLocation, enable))
}

// SetUnrestrictedAuth keeps sending credentials after a redirect to a
// different host.
func (e *Easy) SetUnrestrictedAuth(enable bool) error {
	return e.set("unrestricted_auth", setBool(&e.opts.unrestrictedAuth, enable))
}

// SetMaxRedirections limits the number of redirects followed. -1 means
// unlimited.
func (e *Easy) SetMaxRedirections(max int) error {
	return e.set("max_redirections", func() error {
		if max < -1 {
			return fail(ErrBadFunctionArgument, "max redirections %d", max)
		}
		e.opts.maxRedirs = max
		return nil
	})
}

// SetPut makes the request an upload with PUT.
func (e *Easy) SetPut(enable bool) error {
	return e.SetUpload(enable)
}

// SetPost makes the request a POST unless nobody or upload is also on.
func (e *Easy) SetPost(enable bool) error {
	return e.set("post", func() error {
		e.opts.post = enable
		return nil
	})
}

// SetPostFieldsCopy copies data to use as the POST body, making the
// request a POST.
func (e *Easy) SetPostFieldsCopy(data []byte) error {
	return e.set("post_fields_copy", func() error {
		e.opts.postFields = append([]byte{}, data...)
		e.opts.post = true
		return nil
	})
}

// SetPostFieldSize sets the POST body size. With post fields it truncates
// them, without it is the length of the data the read callback supplies.
// -1 means unknown.
func (e *Easy) SetPostFieldSize(size int64) error {
	return e.set("post_field_size", func() error {
		if size < -1 {
			return fail(ErrBadFunctionArgument, "post field size %d", size)
		}
		e.opts.postFieldSize = size
		return nil
	})
}

// SetReferer sets the Referer header.
func (e *Easy) SetReferer(referer string) error {
	return e.set("referer", func() error {
		if !httpguts.ValidHeaderFieldValue(referer) {
			return fail(ErrBadFunctionArgument, "referer %q", referer)
		}
		e.opts.referer = referer
		return nil
	})
}

// SetUserAgent sets the User-Agent header. When empty no User-Agent is
// sent.
func (e *Easy) SetUserAgent(useragent string) error {
	return e.set("useragent", func() error {
		if !httpguts.ValidHeaderFieldValue(useragent) {
			return fail(ErrBadFunctionArgument, "user agent %q", useragent)
		}
		e.opts.userAgent = useragent
		return nil
	})
}

// SetHTTPHeaders replaces the list of custom headers. "Name: value" adds
// or replaces a header, "Name:" removes it and "Name;" sends it empty.
func (e *Easy) SetHTTPHeaders(list []string) error {
	return e.set("http_headers", func() error {
		for _, line := range list {
			if _, _, err := parseHeaderLine(line); err != nil {
				return err
			}
		}
		e.opts.headers = slices.Clone(list)
		return nil
	})
}

// parseHeaderLine splits a custom header line. A nil value removes the
// header.
func parseHeaderLine(line string) (string, *string, error) {
	if name, value, ok := strings.Cut(line, ":"); ok {
		name = strings.TrimSpace(name)
		if !httpguts.ValidHeaderFieldName(name) {
			return "", nil, fail(ErrBadFunctionArgument, "header name %q", name)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return name, nil, nil
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return "", nil, fail(ErrBadFunctionArgument, "header value %q", value)
		}
		return name, &value, nil
	}

	if name, ok := strings.CutSuffix(strings.TrimSpace(line), ";"); ok && httpguts.ValidHeaderFieldName(name) {
		empty := ""
		return name, &empty, nil
	}

	return "", nil, fail(ErrBadFunctionArgument, "header line %q", line)
}

// SetCookie sets the Cookie header sent with the request, in addition to
// cookies from the cookie engine.
func (e *Easy) SetCookie(cookie string) error {
	return e.set("cookie", func() error {
		if !httpguts.ValidHeaderFieldValue(cookie) {
			return fail(ErrBadFunctionArgument, "cookie %q", cookie)
		}
		e.opts.cookie = cookie
		return nil
	})
}

// SetCookieFile enables the cookie engine and adds a file to read cookies
// from before the next transfer. An empty path only enables the engine.
func (e *Easy) SetCookieFile(path string) error {
	return e.set("cookie_file", func() error {
		e.cookies()
		if path != "" && !slices.Contains(e.opts.cookieFiles, path) {
			e.opts.cookieFiles = append(e.opts.cookieFiles, path)
		}
		return nil
	})
}

// SetCookieJar enables the cookie engine and sets the file every known
// cookie is written to on [Easy.Close] or a "FLUSH" cookie list command.
func (e *Easy) SetCookieJar(path string) error {
	return e.set("cookie_jar", func() error {
		if path == "" {
			return fail(ErrBadFunctionArgument, "empty cookie jar path")
		}
		e.cookies()
		e.opts.cookieJar = path
		return nil
	})
}

// SetCookieSession skips session cookies when loading cookie files.
func (e *Easy) SetCookieSession(session bool) error {
	return e.set("cookie_session", setBool(&e.opts.cookieSession, session))
}

// SetCookieList feeds a command or a cookie to the cookie engine. The
// commands are "ALL" (erase all), "SESS" (erase session cookies), "FLUSH"
// (write the jar) and "RELOAD" (read the cookie files). Anything else is
// a Set-Cookie header line or a Netscape cookie file line.
func (e *Easy) SetCookieList(cookie string) error {
	return e.set("cookie_list", func() error {
		return e.cookieCommand(cookie)
	})
}

// SetGet makes the request a GET, undoing post, upload and nobody.
func (e *Easy) SetGet(enable bool) error {
	return e.set("get", func() error {
		if enable {
			e.opts.nobody = false
			e.opts.upload = false
			e.opts.post = false
		}
		return nil
	})
}

// SetIgnoreContentLength stops using the Content-Length header for
// progress totals and size limits.
func (e *Easy) SetIgnoreContentLength(ignore bool) error {
	return e.set("ignore_content_length", setBool(&e.opts.ignoreCL, ignore))
}

// SetHTTPContentDecoding toggles decoding of compressed response bodies.
func (e *Easy) SetHTTPContentDecoding(enable bool) error {
	return e.set("http_content_decoding", setBool(&e.opts.contentDecoding, enable))
}

// SetHTTPTransferDecoding cannot disable chunked decoding, which the
// transport always performs.
func (e *Easy) SetHTTPTransferDecoding(enable bool) error {
	return e.set("http_transfer_decoding", func() error {
		if !enable {
			return fail(ErrNotBuiltIn, "raw transfer encoding")
		}
		return nil
	})
}

// /////////////////////////////////////////////////////////////////
// Protocol

var rangeRE = regexp.MustCompile(`^(\d+-\d*|-\d+)(,(\d+-\d*|-\d+))*$`)

// SetRange requests byte ranges such as "0-99", "500-" or "-200,300-400".
func (e *Easy) SetRange(r string) error {
	return e.set("range", func() error {
		if r != "" && !rangeRE.MatchString(r) {
			return fail(ErrBadFunctionArgument, "range %q", r)
		}
		e.opts.rangeSpec = r
		return nil
	})
}

// SetResumeFrom resumes the download at the given offset.
func (e *Easy) SetResumeFrom(from int64) error {
	return e.set("resume_from", setSize(&e.opts.resumeFrom, from))
}

// SetCustomRequest replaces the request method. Empty restores the
// method implied by the other options.
func (e *Easy) SetCustomRequest(request string) error {
	return e.set("custom_request", func() error {
		if request != "" && !httpguts.ValidHeaderFieldName(request) {
			return fail(ErrBadFunctionArgument, "request method %q", request)
		}
		e.opts.customRequest = request
		return nil
	})
}

// SetFetchFiletime records the Last-Modified time of the document.
func (e *Easy) SetFetchFiletime(fetch bool) error {
	return e.set("fetch_filetime", setBool(&e.opts.fetchFiletime, fetch))
}

// SetNobody makes the request a HEAD and skips the body. It wins over
// upload and post.
func (e *Easy) SetNobody(enable bool) error {
	return e.set("nobody", func() error {
		e.opts.nobody = enable
		return nil
	})
}

// SetInFilesize sets the size of the upload. -1 means unknown.
func (e *Easy) SetInFilesize(size int64) error {
	return e.set("in_filesize", func() error {
		if size < -1 {
			return fail(ErrBadFunctionArgument, "in filesize %d", size)
		}
		e.opts.inFilesize = size
		return nil
	})
}

// SetUpload makes the request an upload with PUT. It wins over post.
func (e *Easy) SetUpload(enable bool) error {
	return e.set("upload", func() error {
		e.opts.upload = enable
		return nil
	})
}

// SetMaxFilesize refuses downloads larger than size bytes. 0 disables
// the limit.
func (e *Easy) SetMaxFilesize(size int64) error {
	return e.set("max_filesize", setSize(&e.opts.maxFilesize, size))
}

// SetTimeCondition selects how the time value conditions the request.
func (e *Easy) SetTimeCondition(cond TimeCondition) error {
	return e.set("time_condition", func() error {
		if _, ok := timeConditionNames[cond]; !ok {
			return fail(ErrBadFunctionArgument, "unknown time condition %d", int(cond))
		}
		e.opts.timeCondition = cond
		return nil
	})
}

// SetTimeValue sets the time, in seconds since the epoch, used by the
// time condition.
func (e *Easy) SetTimeValue(val int64) error {
	return e.set("time_value", func() error {
		e.opts.timeValue = val
		return nil
	})
}

// /////////////////////////////////////////////////////////////////
// Connection

// SetTimeout limits the whole transfer. 0 means no limit.
func (e *Easy) SetTimeout(timeout time.Duration) error {
	return e.set("timeout", setDuration(&e.opts.timeout, timeout))
}

// SetLowSpeedLimit aborts transfers slower than limit bytes per second
// for the low speed time.
func (e *Easy) SetLowSpeedLimit(limit int64) error {
	return e.set("low_speed_limit", setSize(&e.opts.lowSpeedLimit, limit))
}

// SetLowSpeedTime sets the window the low speed limit is measured over.
func (e *Easy) SetLowSpeedTime(dur time.Duration) error {
	return e.set("low_speed_time", setDuration(&e.opts.lowSpeedTime, dur))
}

// SetMaxSendSpeed limits uploads to speed bytes per second. 0 means
// unlimited.
func (e *Easy) SetMaxSendSpeed(speed int64) error {
	return e.set("max_send_speed", setSize(&e.opts.maxSendSpeed, speed))
}

// SetMaxRecvSpeed limits downloads to speed bytes per second. 0 means
// unlimited.
func (e *Easy) SetMaxRecvSpeed(speed int64) error {
	return e.set("max_recv_speed", setSize(&e.opts.maxRecvSpeed, speed))
}

// SetMaxConnects sets the size of the idle connection cache.
func (e *Easy) SetMaxConnects(max int) error {
	return e.setTransport("max_connects", func() error {
		if max < 0 {
			return fail(ErrBadFunctionArgument, "max connects %d", max)
		}
		e.opts.maxConnects = max
		return nil
	})
}

// SetFreshConnect drops idle connections before the next transfer.
func (e *Easy) SetFreshConnect(enable bool) error {
	return e.set("fresh_connect", setBool(&e.opts.freshConnect, enable))
}

// SetForbidReuse closes the connection after the transfer.
func (e *Easy) SetForbidReuse(enable bool) error {
	return e.set("forbid_reuse", setBool(&e.opts.forbidReuse, enable))
}

// SetConnectTimeout limits the connect and TLS handshake phase.
func (e *Easy) SetConnectTimeout(timeout time.Duration) error {
	return e.setTransport("connect_timeout", setDuration(&e.opts.connectTimeout, timeout))
}

// SetIPResolve restricts name resolution to one address family.
func (e *Easy) SetIPResolve(resolve IPResolve) error {
	return e.setTransport("ip_resolve", func() error {
		switch resolve {
		case IPResolveAny, IPResolveV4, IPResolveV6:
		default:
			return fail(ErrBadFunctionArgument, "unknown ip resolve %d", int(resolve))
		}
		e.opts.ipResolve = resolve
		return nil
	})
}

// SetConnectOnly makes perform stop after connecting. The connection is
// then used with [Easy.Send] and [Easy.Recv].
func (e *Easy) SetConnectOnly(enable bool) error {
	return e.set("connect_only", setBool(&e.opts.connectOnly, enable))
}
