package handle

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"maps"
	"net"
	"net/http"
	"net/http/httptrace"
	"slices"
	"strconv"
	"strings"
)

type runKey struct{}

func withRun(ctx context.Context, r *run) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

// runFrom returns the transfer dialing on ctx, nil outside a perform.
func runFrom(ctx context.Context) *run {
	r, _ := ctx.Value(runKey{}).(*run)
	return r
}

// debug hands data to the debug callback, or logs it when there is none.
// Nothing is emitted unless verbose is on.
func (r *run) debug(kind InfoType, data []byte) {
	if r == nil || !r.opts.verbose {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cbs.debug != nil {
		r.cbs.debug(kind, data)
		return
	}

	switch kind {
	case InfoText, InfoHeaderIn, InfoHeaderOut:
		for _, line := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\n") {
			r.log.Debug("transfer "+kind.String(), "line", strings.TrimRight(line, "\r"))
		}
	default:
		r.log.Debug("transfer "+kind.String(), "bytes", len(data))
	}
}

func (r *run) infof(format string, args ...any) {
	if r == nil || !r.opts.verbose {
		return
	}
	r.debug(InfoText, []byte(fmt.Sprintf(format, args...)+"\n"))
}

// requestHeader renders the request head the way it goes on the wire.
func requestHeader(req *http.Request) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestURI())

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	fmt.Fprintf(&b, "Host: %s\r\n", host)

	for _, k := range slices.Sorted(maps.Keys(req.Header)) {
		for _, v := range req.Header[k] {
			if k == "User-Agent" && v == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")

	return b.Bytes()
}

// responseHeader splits the response head into lines, status line first
// and the blank line last.
func responseHeader(resp *http.Response) [][]byte {
	lines := [][]byte{[]byte(fmt.Sprintf("%s %s\r\n", resp.Proto, resp.Status))}

	for _, k := range slices.Sorted(maps.Keys(resp.Header)) {
		for _, v := range resp.Header[k] {
			lines = append(lines, []byte(k+": "+v+"\r\n"))
		}
	}

	return append(lines, []byte("\r\n"))
}

// clientTrace reports connection events of the transfer.
func (r *run) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if addr, ok := info.Conn.RemoteAddr().(*net.TCPAddr); ok {
				r.info.PrimaryIP = addr.IP.String()
				r.info.PrimaryPort = addr.Port
			} else if host, port, err := net.SplitHostPort(info.Conn.RemoteAddr().String()); err == nil {
				r.info.PrimaryIP = host
				r.info.PrimaryPort, _ = strconv.Atoi(port)
			}
			if info.Reused {
				r.infof("Re-using existing connection with host %s", info.Conn.RemoteAddr())
			}
		},
		TLSHandshakeStart: func() {
			r.infof("TLS handshake started")
		},
		TLSHandshakeDone: func(cs tls.ConnectionState, err error) {
			if err != nil {
				r.infof("TLS handshake failed: %v", err)
				return
			}
			r.infof("SSL connection using %s / %s", tls.VersionName(cs.Version), tls.CipherSuiteName(cs.CipherSuite))
			if len(cs.PeerCertificates) > 0 {
				r.infof("Server certificate: subject %s, issuer %s", cs.PeerCertificates[0].Subject, cs.PeerCertificates[0].Issuer)
			}
		},
	}
}

// observeTransport feeds request and response heads to the debug and
// header callbacks, for every hop of a redirect chain.
type observeTransport struct {
	r    *run
	base http.RoundTripper
}

func (o observeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	o.r.hops.Add(1)
	o.r.debug(InfoHeaderOut, requestHeader(req))

	resp, err := o.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := o.r.headers(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

func (r *run) headers(resp *http.Response) error {
	for _, line := range responseHeader(resp) {
		r.info.HeaderSize += int64(len(line))
		r.debug(InfoHeaderIn, line)

		if fn := r.cbs.header; fn != nil {
			r.mu.Lock()
			ok := fn(line)
			r.mu.Unlock()
			if !ok {
				return fail(ErrWriteError, "header callback aborted")
			}
		}

		if r.opts.showHeader {
			if err := r.write(line); err != nil {
				return err
			}
		}
	}

	return nil
}
