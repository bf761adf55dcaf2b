package handle

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/proxy"
)

type dnsEntry struct {
	addrs   []net.IP
	expires time.Time
}

// dnsCache keeps resolved addresses for the lifetime of a handle.
type dnsCache struct {
	mu       sync.Mutex
	entries  map[string]dnsEntry
	resolver *net.Resolver
}

func newDNSCache() *dnsCache {
	return &dnsCache{
		entries:  make(map[string]dnsEntry),
		resolver: net.DefaultResolver,
	}
}

// lookup resolves host to addresses of the requested family. ttl 0
// bypasses the cache, a negative ttl never expires entries.
func (c *dnsCache) lookup(ctx context.Context, host string, ttl time.Duration, family IPResolve) ([]net.IP, bool, error) {
	key := host + "/" + family.String()

	if ttl != 0 {
		c.mu.Lock()
		entry, ok := c.entries[key]
		c.mu.Unlock()
		if ok && (ttl < 0 || time.Now().Before(entry.expires)) {
			return entry.addrs, true, nil
		}
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, false, err
	}

	var ips []net.IP
	for _, a := range addrs {
		if matchFamily(a.IP, family) {
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return nil, false, &net.DNSError{Err: "no addresses of the requested family", Name: host, IsNotFound: true}
	}

	if ttl != 0 {
		c.mu.Lock()
		c.entries[key] = dnsEntry{addrs: ips, expires: time.Now().Add(ttl)}
		c.mu.Unlock()
	}

	return ips, false, nil
}

func matchFamily(ip net.IP, family IPResolve) bool {
	switch family {
	case IPResolveV4:
		return ip.To4() != nil
	case IPResolveV6:
		return ip.To4() == nil
	}
	return true
}

// dialer opens connections according to a snapshot of the handle's
// network options. It is shared by every transfer using one transport.
type dialer struct {
	opts settings
	dns  *dnsCache

	// schemes maps each origin address the transport asked to route to
	// the scheme of that request, since DialContext only gets the address.
	schemes sync.Map
}

func newDialer(opts settings, dns *dnsCache) *dialer {
	return &dialer{opts: opts, dns: dns}
}

// DialContext connects to addr, through a SOCKS proxy or an HTTP CONNECT
// tunnel when one applies. Plain HTTP proxies are left to the transport.
func (d *dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Cause: err}
	}

	proxyURL, err := d.proxyFor(d.schemeFor(addr), host)
	if err != nil {
		return nil, err
	}

	switch {
	case proxyURL == nil:
		return d.direct(ctx, addr)
	case proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h":
		return d.socks(ctx, proxyURL, addr)
	case d.opts.proxyTunnel:
		return d.tunnel(ctx, proxyURL, addr)
	}

	// The transport already routed this connection through the proxy.
	return d.direct(ctx, addr)
}

// dialURL connects to the origin of u, tunneling through any HTTP proxy.
// It backs connect-only transfers.
func (d *dialer) dialURL(ctx context.Context, u *url.URL) (net.Conn, error) {
	addr := originAddr(u, d.opts.port)

	proxyURL, err := d.proxyFor(u.Scheme, u.Hostname())
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	switch {
	case proxyURL == nil:
		conn, err = d.direct(ctx, addr)
	case proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h":
		conn, err = d.socks(ctx, proxyURL, addr)
	default:
		conn, err = d.tunnel(ctx, proxyURL, addr)
	}
	if err != nil {
		return nil, err
	}

	if u.Scheme != "https" {
		return conn, nil
	}

	cfg, err := tlsConfig(d.opts.tls, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	cfg.ServerName = u.Hostname()

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, classify(err, "")
	}

	return tlsConn, nil
}

func originAddr(u *url.URL, port int) string {
	p := u.Port()
	switch {
	case port > 0:
		p = strconv.Itoa(port)
	case p == "" && u.Scheme == "https":
		p = "443"
	case p == "":
		p = "80"
	}

	return net.JoinHostPort(u.Hostname(), p)
}

// direct resolves and connects to addr without any proxy, trying every
// address and local port until one succeeds.
func (d *dialer) direct(ctx context.Context, addr string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Cause: err}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Cause: err}
	}

	if d.opts.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.connectTimeout)
		defer cancel()
	}

	r := runFrom(ctx)

	ips, err := d.resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	locals, err := d.localAddrs(ctx)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, ip := range ips {
		target := &net.TCPAddr{IP: ip, Port: port}
		if ip.To4() == nil && ip.IsLinkLocalUnicast() && d.opts.addressScope != 0 {
			target.Zone = strconv.FormatUint(uint64(d.opts.addressScope), 10)
		}

		r.infof("Trying %s...", target)

		conn, err := d.connect(ctx, target, locals)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		r.infof("Connected to %s (%s) port %d", host, ip, port)

		return conn, nil
	}

	err = errors.Join(errs...)
	if ctx.Err() != nil {
		return nil, &Error{Err: ErrOperationTimedout, Detail: "connection timed out", Cause: err}
	}

	return nil, &Error{Err: ErrCouldntConnect, Detail: addr, Cause: err}
}

func (d *dialer) connect(ctx context.Context, target *net.TCPAddr, locals []net.IP) (net.Conn, error) {
	nd := net.Dialer{}

	var local net.IP
	for _, ip := range locals {
		if matchFamily(ip, familyOf(target.IP)) {
			local = ip
			break
		}
	}
	if len(locals) > 0 && local == nil {
		return nil, &Error{Err: ErrInterfaceFailed, Detail: "no local address of the target's family"}
	}

	ports := []int{d.opts.localPort}
	if d.opts.localPort > 0 {
		for i := 1; i < d.opts.localPortRange && d.opts.localPort+i <= 65535; i++ {
			ports = append(ports, d.opts.localPort+i)
		}
	}

	var lastErr error
	for _, lp := range ports {
		if local != nil || lp > 0 {
			nd.LocalAddr = &net.TCPAddr{IP: local, Port: lp}
		}

		conn, err := nd.DialContext(ctx, d.opts.ipResolve.network(), target.String())
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			if err := tc.SetNoDelay(d.opts.tcpNoDelay); err != nil {
				conn.Close()
				return nil, err
			}
		}

		return conn, nil
	}

	return nil, lastErr
}

func familyOf(ip net.IP) IPResolve {
	if ip.To4() != nil {
		return IPResolveV4
	}
	return IPResolveV6
}

func (d *dialer) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if !matchFamily(ip, d.opts.ipResolve) {
			return nil, &Error{Err: ErrCouldntResolveHost, Detail: fmt.Sprintf("%s is not an %s address", host, d.opts.ipResolve)}
		}
		return []net.IP{ip}, nil
	}

	ips, cached, err := d.dns.lookup(ctx, host, d.opts.dnsCacheTTL, d.opts.ipResolve)
	if err != nil {
		sentinel := ErrCouldntResolveHost
		if d.isProxyHost(host) {
			sentinel = ErrCouldntResolveProxy
		}
		return nil, &Error{Err: sentinel, Detail: host, Cause: err}
	}
	if cached {
		runFrom(ctx).infof("Hostname %s was found in DNS cache", host)
	}

	return ips, nil
}

// localAddrs resolves the interface option to the addresses outgoing
// connections are bound to.
func (d *dialer) localAddrs(ctx context.Context) ([]net.IP, error) {
	iface := d.opts.iface
	if iface == "" {
		return nil, nil
	}

	if name, ok := strings.CutPrefix(iface, "if!"); ok {
		return interfaceAddrs(name)
	}
	if name, ok := strings.CutPrefix(iface, "host!"); ok {
		return d.hostAddrs(ctx, name)
	}
	if ip := net.ParseIP(iface); ip != nil {
		return []net.IP{ip}, nil
	}
	if ips, err := interfaceAddrs(iface); err == nil {
		return ips, nil
	}

	return d.hostAddrs(ctx, iface)
}

func interfaceAddrs(name string) ([]net.IP, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, &Error{Err: ErrInterfaceFailed, Detail: name, Cause: err}
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, &Error{Err: ErrInterfaceFailed, Detail: name, Cause: err}
	}

	var ips []net.IP
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipn.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fail(ErrInterfaceFailed, "interface %s has no addresses", name)
	}

	return ips, nil
}

func (d *dialer) hostAddrs(ctx context.Context, host string) ([]net.IP, error) {
	ips, _, err := d.dns.lookup(ctx, host, d.opts.dnsCacheTTL, d.opts.ipResolve)
	if err != nil {
		return nil, &Error{Err: ErrInterfaceFailed, Detail: host, Cause: err}
	}
	return ips, nil
}

// /////////////////////////////////////////////////////////////////
// Proxies

// proxyFor returns the proxy used to reach host, nil for a direct
// connection.
func (d *dialer) proxyFor(scheme, host string) (*url.URL, error) {
	if !d.opts.proxySet {
		return d.envProxy(scheme, host)
	}
	if d.opts.proxy == "" {
		return nil, nil
	}

	noProxy := d.opts.noProxy
	if !d.opts.noProxySet {
		noProxy = envNoProxy()
	}
	if bypassProxy(noProxy, host) {
		return nil, nil
	}

	return d.configuredProxy()
}

// configuredProxy builds the proxy URL from the proxy options.
func (d *dialer) configuredProxy() (*url.URL, error) {
	raw := d.opts.proxy
	if !strings.Contains(raw, "://") {
		raw = d.opts.proxyType.scheme() + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Detail: "proxy", Cause: err}
	}

	port := u.Port()
	switch {
	case d.opts.proxyPort > 0:
		port = strconv.Itoa(d.opts.proxyPort)
	case port == "":
		port = strconv.Itoa(defaultProxyPort)
	}
	u.Host = net.JoinHostPort(u.Hostname(), port)

	if d.opts.proxyUsername != "" || d.opts.proxyPassword != "" {
		u.User = url.UserPassword(d.opts.proxyUsername, d.opts.proxyPassword)
	}

	return u, nil
}

func (d *dialer) envProxy(scheme, host string) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if d.opts.noProxySet {
		if bypassProxy(d.opts.noProxy, host) {
			return nil, nil
		}
		cfg.NoProxy = d.opts.noProxy
	}

	u, err := cfg.ProxyFunc()(&url.URL{Scheme: scheme, Host: host})
	if err != nil {
		return nil, &Error{Err: ErrURLMalformat, Detail: "proxy from environment", Cause: err}
	}

	return u, nil
}

// transportProxy is the Proxy hook of the transport. It only returns the
// HTTP proxies the transport speaks itself; SOCKS proxies and tunnels
// are handled by DialContext.
func (d *dialer) transportProxy(req *http.Request) (*url.URL, error) {
	d.schemes.Store(originAddr(req.URL, 0), req.URL.Scheme)

	if d.opts.proxyTunnel {
		return nil, nil
	}

	u, err := d.proxyFor(req.URL.Scheme, req.URL.Hostname())
	if err != nil || u == nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, nil
	}

	return u, nil
}

// schemeFor returns the scheme of the last request routed to addr.
func (d *dialer) schemeFor(addr string) string {
	if v, ok := d.schemes.Load(addr); ok {
		return v.(string)
	}
	return "http"
}

func (d *dialer) isProxyHost(host string) bool {
	if !d.opts.proxySet || d.opts.proxy == "" {
		return false
	}
	u, err := d.configuredProxy()
	return err == nil && strings.EqualFold(u.Hostname(), host)
}

func envNoProxy() string {
	if v := os.Getenv("NO_PROXY"); v != "" {
		return v
	}
	return os.Getenv("no_proxy")
}

// bypassProxy reports whether host matches the comma separated no-proxy
// list. Entries are "*", host names matching themselves and their
// subdomains, IP addresses or CIDR ranges.
func bypassProxy(list, host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	ip := net.ParseIP(host)

	for _, entry := range strings.Split(list, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == "*" {
			return true
		}

		if _, cidr, err := net.ParseCIDR(entry); err == nil {
			if ip != nil && cidr.Contains(ip) {
				return true
			}
			continue
		}
		if eip := net.ParseIP(entry); eip != nil {
			if ip != nil && eip.Equal(ip) {
				return true
			}
			continue
		}

		entry = strings.TrimPrefix(entry, ".")
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}

	return false
}

// socks connects to addr through a SOCKS5 proxy. With the socks5 scheme
// the name is resolved locally, socks5h leaves it to the proxy.
func (d *dialer) socks(ctx context.Context, proxyURL *url.URL, addr string) (net.Conn, error) {
	if proxyURL.Scheme == "socks5" {
		host, port, _ := net.SplitHostPort(addr)
		ips, err := d.resolve(ctx, host)
		if err != nil {
			return nil, err
		}
		addr = net.JoinHostPort(ips[0].String(), port)
	}

	var auth *proxy.Auth
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		auth = &proxy.Auth{User: u.Username(), Password: pass}
	}

	sd, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxyForward{d})
	if err != nil {
		return nil, &Error{Err: ErrCouldntConnect, Detail: "socks proxy", Cause: err}
	}

	runFrom(ctx).infof("SOCKS5 connect to %s via %s", addr, proxyURL.Host)

	conn, err := sd.(proxy.ContextDialer).DialContext(ctx, "tcp", addr)
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) {
			return nil, herr
		}
		return nil, &Error{Err: ErrCouldntConnect, Detail: "socks proxy " + proxyURL.Host, Cause: err}
	}

	return conn, nil
}

// proxyForward hands the SOCKS client direct connections to the proxy.
type proxyForward struct{ d *dialer }

func (f proxyForward) Dial(network, addr string) (net.Conn, error) {
	return f.d.direct(context.Background(), addr)
}

func (f proxyForward) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f.d.direct(ctx, addr)
}

// tunnel opens a CONNECT tunnel to addr through an HTTP proxy.
func (d *dialer) tunnel(ctx context.Context, proxyURL *url.URL, addr string) (net.Conn, error) {
	conn, err := d.direct(ctx, proxyURL.Host)
	if err != nil {
		return nil, err
	}

	if proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: proxyURL.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, classify(err, "")
		}
		conn = tlsConn
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		req.Header.Set("Proxy-Authorization", "Basic "+cred)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	r := runFrom(ctx)
	r.infof("Establish HTTP proxy tunnel to %s", addr)

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, &Error{Err: ErrSendError, Detail: "proxy CONNECT", Cause: err}
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, &Error{Err: ErrRecvError, Detail: "proxy CONNECT", Cause: err}
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fail(ErrCouldntConnect, "proxy CONNECT aborted: %s", resp.Status)
	}

	r.infof("CONNECT tunnel established, response %d", resp.StatusCode)

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}

	return conn, nil
}

// bufferedConn returns bytes the proxy sent after its CONNECT response
// before reading from the connection again.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
