package builder

import (
	"time"

	"github.com/adamwoolhether/easyhttp/handle"
)

// Behavior options.

// Verbose turns on debug output, delivered to the debug callback.
func (b *EasyBuilder) Verbose(verbose bool) *EasyBuilder {
	return set(b, "verbose", (*handle.Easy).SetVerbose, verbose)
}

// ShowHeader passes response headers to the write callback ahead of the body.
func (b *EasyBuilder) ShowHeader(show bool) *EasyBuilder {
	return set(b, "show_header", (*handle.Easy).SetShowHeader, show)
}

// Progress enables the progress callback.
func (b *EasyBuilder) Progress(progress bool) *EasyBuilder {
	return set(b, "progress", (*handle.Easy).SetProgress, progress)
}

func (b *EasyBuilder) Signal(signal bool) *EasyBuilder {
	return set(b, "signal", (*handle.Easy).SetSignal, signal)
}

func (b *EasyBuilder) WildcardMatch(m bool) *EasyBuilder {
	return set(b, "wildcard_match", (*handle.Easy).SetWildcardMatch, m)
}

// FailOnError makes response codes of 400 and above fail the transfer.
func (b *EasyBuilder) FailOnError(fail bool) *EasyBuilder {
	return set(b, "fail_on_error", (*handle.Easy).SetFailOnError, fail)
}

// Network options.

func (b *EasyBuilder) URL(url string) *EasyBuilder {
	return set(b, "url", (*handle.Easy).SetURL, url)
}

// Port overrides the port of the URL.
func (b *EasyBuilder) Port(port int) *EasyBuilder {
	return set(b, "port", (*handle.Easy).SetPort, port)
}

// Proxy sets the proxy to use. An empty string disables proxies, including
// those named by the environment.
func (b *EasyBuilder) Proxy(proxy string) *EasyBuilder {
	return set(b, "proxy", (*handle.Easy).SetProxy, proxy)
}

func (b *EasyBuilder) ProxyPort(port int) *EasyBuilder {
	return set(b, "proxy_port", (*handle.Easy).SetProxyPort, port)
}

func (b *EasyBuilder) ProxyType(kind handle.ProxyType) *EasyBuilder {
	return set(b, "proxy_type", (*handle.Easy).SetProxyType, kind)
}

// NoProxy lists the hosts reached without the proxy, comma separated.
// "*" matches every host.
func (b *EasyBuilder) NoProxy(skip string) *EasyBuilder {
	return set(b, "noproxy", (*handle.Easy).SetNoProxy, skip)
}

// HTTPProxyTunnel tunnels every request through the HTTP proxy with CONNECT.
func (b *EasyBuilder) HTTPProxyTunnel(tunnel bool) *EasyBuilder {
	return set(b, "http_proxy_tunnel", (*handle.Easy).SetHTTPProxyTunnel, tunnel)
}

// Interface binds outgoing connections to a network interface, an IP
// address or a host name.
func (b *EasyBuilder) Interface(iface string) *EasyBuilder {
	return set(b, "interface", (*handle.Easy).SetInterface, iface)
}

func (b *EasyBuilder) LocalPort(port int) *EasyBuilder {
	return set(b, "local_port", (*handle.Easy).SetLocalPort, port)
}

func (b *EasyBuilder) LocalPortRange(n int) *EasyBuilder {
	return set(b, "local_port_range", (*handle.Easy).SetLocalPortRange, n)
}

// DNSCacheTimeout sets how long resolved names are kept. Zero disables the
// cache, a negative value keeps entries forever.
func (b *EasyBuilder) DNSCacheTimeout(d time.Duration) *EasyBuilder {
	return set(b, "dns_cache_timeout", (*handle.Easy).SetDNSCacheTimeout, d)
}

func (b *EasyBuilder) BufferSize(size int) *EasyBuilder {
	return set(b, "buffer_size", (*handle.Easy).SetBufferSize, size)
}

func (b *EasyBuilder) TCPNoDelay(enable bool) *EasyBuilder {
	return set(b, "tcp_nodelay", (*handle.Easy).SetTCPNoDelay, enable)
}

func (b *EasyBuilder) AddressScope(scope uint32) *EasyBuilder {
	return set(b, "address_scope", (*handle.Easy).SetAddressScope, scope)
}

// Names and passwords.

func (b *EasyBuilder) Username(user string) *EasyBuilder {
	return set(b, "username", (*handle.Easy).SetUsername, user)
}

func (b *EasyBuilder) Password(pass string) *EasyBuilder {
	return set(b, "password", (*handle.Easy).SetPassword, pass)
}

func (b *EasyBuilder) ProxyUsername(user string) *EasyBuilder {
	return set(b, "proxy_username", (*handle.Easy).SetProxyUsername, user)
}

func (b *EasyBuilder) ProxyPassword(pass string) *EasyBuilder {
	return set(b, "proxy_password", (*handle.Easy).SetProxyPassword, pass)
}

// HTTP options.

// AutoReferer sends the previous URL as Referer when following redirects.
func (b *EasyBuilder) AutoReferer(enable bool) *EasyBuilder {
	return set(b, "autoreferer", (*handle.Easy).SetAutoReferer, enable)
}

// AcceptEncoding sets the Accept-Encoding header and decodes responses
// accordingly. An empty string asks for every supported encoding.
func (b *EasyBuilder) AcceptEncoding(encoding string) *EasyBuilder {
	return set(b, "accept_encoding", (*handle.Easy).SetAcceptEncoding, encoding)
}

func (b *EasyBuilder) TransferEncoding(enable bool) *EasyBuilder {
	return set(b, "transfer_encoding", (*handle.Easy).SetTransferEncoding, enable)
}

// FollowLocation follows Location headers of redirect responses.
func (b *EasyBuilder) FollowLocation(enable bool) *EasyBuilder {
	return set(b, "follow_location", (*handle.Easy).SetFollowLocation, enable)
}

// UnrestrictedAuth keeps sending credentials when a redirect changes host.
func (b *EasyBuilder) UnrestrictedAuth(enable bool) *EasyBuilder {
	return set(b, "unrestricted_auth", (*handle.Easy).SetUnrestrictedAuth, enable)
}

// MaxRedirections limits how many redirects are followed, -1 meaning no limit.
func (b *EasyBuilder) MaxRedirections(max int) *EasyBuilder {
	return set(b, "max_redirections", (*handle.Easy).SetMaxRedirections, max)
}

func (b *EasyBuilder) Put(enable bool) *EasyBuilder {
	return set(b, "put", (*handle.Easy).SetPut, enable)
}

func (b *EasyBuilder) Post(enable bool) *EasyBuilder {
	return set(b, "post", (*handle.Easy).SetPost, enable)
}

// PostFieldsCopy sets the request body of a POST, copying data.
func (b *EasyBuilder) PostFieldsCopy(data []byte) *EasyBuilder {
	return set(b, "post_fields_copy", (*handle.Easy).SetPostFieldsCopy, data)
}

func (b *EasyBuilder) PostFieldSize(size int64) *EasyBuilder {
	return set(b, "post_field_size", (*handle.Easy).SetPostFieldSize, size)
}

func (b *EasyBuilder) Referer(referer string) *EasyBuilder {
	return set(b, "referer", (*handle.Easy).SetReferer, referer)
}

func (b *EasyBuilder) UserAgent(useragent string) *EasyBuilder {
	return set(b, "useragent", (*handle.Easy).SetUserAgent, useragent)
}

// HTTPHeaders replaces the custom request headers. Each entry is a
// "Name: value" line, "Name:" removes a default header.
func (b *EasyBuilder) HTTPHeaders(list []string) *EasyBuilder {
	return set(b, "http_headers", (*handle.Easy).SetHTTPHeaders, list)
}

func (b *EasyBuilder) Cookie(cookie string) *EasyBuilder {
	return set(b, "cookie", (*handle.Easy).SetCookie, cookie)
}

// CookieFile reads cookies from a Netscape cookie file and enables the
// cookie engine. It may be called more than once.
func (b *EasyBuilder) CookieFile(path string) *EasyBuilder {
	return set(b, "cookie_file", (*handle.Easy).SetCookieFile, path)
}

// CookieJar names the file every known cookie is written to when the
// handle is closed.
func (b *EasyBuilder) CookieJar(path string) *EasyBuilder {
	return set(b, "cookie_jar", (*handle.Easy).SetCookieJar, path)
}

func (b *EasyBuilder) CookieSession(session bool) *EasyBuilder {
	return set(b, "cookie_session", (*handle.Easy).SetCookieSession, session)
}

// CookieList adds a cookie line to the engine, or runs one of the
// ALL, SESS, FLUSH and RELOAD commands.
func (b *EasyBuilder) CookieList(cookie string) *EasyBuilder {
	return set(b, "cookie_list", (*handle.Easy).SetCookieList, cookie)
}

func (b *EasyBuilder) Get(enable bool) *EasyBuilder {
	return set(b, "get", (*handle.Easy).SetGet, enable)
}

func (b *EasyBuilder) IgnoreContentLength(ignore bool) *EasyBuilder {
	return set(b, "ignore_content_length", (*handle.Easy).SetIgnoreContentLength, ignore)
}

func (b *EasyBuilder) HTTPContentDecoding(enable bool) *EasyBuilder {
	return set(b, "http_content_decoding", (*handle.Easy).SetHTTPContentDecoding, enable)
}

func (b *EasyBuilder) HTTPTransferDecoding(enable bool) *EasyBuilder {
	return set(b, "http_transfer_decoding", (*handle.Easy).SetHTTPTransferDecoding, enable)
}

// Protocol options.

// Range requests part of the resource, as in "0-499" or "500-".
func (b *EasyBuilder) Range(r string) *EasyBuilder {
	return set(b, "range", (*handle.Easy).SetRange, r)
}

func (b *EasyBuilder) ResumeFrom(from int64) *EasyBuilder {
	return set(b, "resume_from", (*handle.Easy).SetResumeFrom, from)
}

// CustomRequest replaces the request method.
func (b *EasyBuilder) CustomRequest(request string) *EasyBuilder {
	return set(b, "custom_request", (*handle.Easy).SetCustomRequest, request)
}

func (b *EasyBuilder) FetchFiletime(fetch bool) *EasyBuilder {
	return set(b, "fetch_filetime", (*handle.Easy).SetFetchFiletime, fetch)
}

// Nobody sends a HEAD request.
func (b *EasyBuilder) Nobody(enable bool) *EasyBuilder {
	return set(b, "nobody", (*handle.Easy).SetNobody, enable)
}

func (b *EasyBuilder) InFilesize(size int64) *EasyBuilder {
	return set(b, "in_filesize", (*handle.Easy).SetInFilesize, size)
}

// Upload sends the data supplied by the read callback with PUT.
func (b *EasyBuilder) Upload(enable bool) *EasyBuilder {
	return set(b, "upload", (*handle.Easy).SetUpload, enable)
}

func (b *EasyBuilder) MaxFilesize(size int64) *EasyBuilder {
	return set(b, "max_filesize", (*handle.Easy).SetMaxFilesize, size)
}

func (b *EasyBuilder) TimeCondition(cond handle.TimeCondition) *EasyBuilder {
	return set(b, "time_condition", (*handle.Easy).SetTimeCondition, cond)
}

// TimeValue is the Unix time compared against by TimeCondition.
func (b *EasyBuilder) TimeValue(val int64) *EasyBuilder {
	return set(b, "time_value", (*handle.Easy).SetTimeValue, val)
}

// Connection options.

// Timeout limits the whole transfer.
func (b *EasyBuilder) Timeout(timeout time.Duration) *EasyBuilder {
	return set(b, "timeout", (*handle.Easy).SetTimeout, timeout)
}

// LowSpeedLimit and LowSpeedTime abort a transfer slower than limit bytes
// per second for the given duration.
func (b *EasyBuilder) LowSpeedLimit(limit int64) *EasyBuilder {
	return set(b, "low_speed_limit", (*handle.Easy).SetLowSpeedLimit, limit)
}

func (b *EasyBuilder) LowSpeedTime(dur time.Duration) *EasyBuilder {
	return set(b, "low_speed_time", (*handle.Easy).SetLowSpeedTime, dur)
}

// MaxSendSpeed caps the upload rate in bytes per second.
func (b *EasyBuilder) MaxSendSpeed(speed int64) *EasyBuilder {
	return set(b, "max_send_speed", (*handle.Easy).SetMaxSendSpeed, speed)
}

// MaxRecvSpeed caps the download rate in bytes per second.
func (b *EasyBuilder) MaxRecvSpeed(speed int64) *EasyBuilder {
	return set(b, "max_recv_speed", (*handle.Easy).SetMaxRecvSpeed, speed)
}

func (b *EasyBuilder) MaxConnects(max int) *EasyBuilder {
	return set(b, "max_connects", (*handle.Easy).SetMaxConnects, max)
}

func (b *EasyBuilder) FreshConnect(enable bool) *EasyBuilder {
	return set(b, "fresh_connect", (*handle.Easy).SetFreshConnect, enable)
}

func (b *EasyBuilder) ForbidReuse(enable bool) *EasyBuilder {
	return set(b, "forbid_reuse", (*handle.Easy).SetForbidReuse, enable)
}

func (b *EasyBuilder) ConnectTimeout(timeout time.Duration) *EasyBuilder {
	return set(b, "connect_timeout", (*handle.Easy).SetConnectTimeout, timeout)
}

func (b *EasyBuilder) IPResolve(resolve handle.IPResolve) *EasyBuilder {
	return set(b, "ip_resolve", (*handle.Easy).SetIPResolve, resolve)
}

// ConnectOnly makes Perform stop once the connection is established. The
// connection is then used with [handle.Easy.Send] and [handle.Easy.Recv].
func (b *EasyBuilder) ConnectOnly(enable bool) *EasyBuilder {
	return set(b, "connect_only", (*handle.Easy).SetConnectOnly, enable)
}
