package handle_test

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/adamwoolhether/easyhttp/handle"
)

func TestEasy_HTTPProxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "origin")
	}))
	defer origin.Close()

	var (
		mu        sync.Mutex
		proxied   []string
		proxyAuth string
	)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		proxied = append(proxied, r.URL.String())
		proxyAuth = r.Header.Get("Proxy-Authorization")
		mu.Unlock()
		_, _ = io.WriteString(w, "proxy")
	}))
	defer proxy.Close()

	testCases := map[string]struct {
		url     string
		setup   func(t *testing.T, h *handle.Easy)
		expBody string
		expSeen string
		expAuth string
	}{
		"proxied": {
			url:     "http://origin.test/path?q=1",
			setup:   func(t *testing.T, h *handle.Easy) {},
			expBody: "proxy",
			expSeen: "http://origin.test/path?q=1",
		},
		"proxyCredentials": {
			url: "http://origin.test/",
			setup: func(t *testing.T, h *handle.Easy) {
				must(t, h.SetProxyUsername("proxyuser"))
				must(t, h.SetProxyPassword("proxypass"))
			},
			expBody: "proxy",
			expSeen: "http://origin.test/",
			expAuth: "Basic cHJveHl1c2VyOnByb3h5cGFzcw==",
		},
		"noProxyMatch": {
			url: origin.URL + "/direct",
			setup: func(t *testing.T, h *handle.Easy) {
				must(t, h.SetNoProxy("localhost, 127.0.0.0/8"))
			},
			expBody: "origin",
		},
		"noProxyWildcard": {
			url: origin.URL,
			setup: func(t *testing.T, h *handle.Easy) {
				must(t, h.SetNoProxy("*"))
			},
			expBody: "origin",
		},
		"noProxyOtherHost": {
			url: origin.URL + "/via",
			setup: func(t *testing.T, h *handle.Easy) {
				must(t, h.SetNoProxy("example.com"))
			},
			expBody: "proxy",
			expSeen: origin.URL + "/via",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			mu.Lock()
			proxied, proxyAuth = nil, ""
			mu.Unlock()

			h := newHandle(t)
			buf := capture(t, h)
			must(t, h.SetURL(tc.url))
			must(t, h.SetProxy(proxy.URL))
			tc.setup(t, h)

			must(t, h.Perform(t.Context()))

			if buf.String() != tc.expBody {
				t.Errorf("expected body %q, got %q", tc.expBody, buf.String())
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case tc.expSeen == "" && len(proxied) != 0:
				t.Errorf("expected a direct connection, proxy saw %v", proxied)
			case tc.expSeen != "" && (len(proxied) != 1 || proxied[0] != tc.expSeen):
				t.Errorf("expected proxy to see %q, got %v", tc.expSeen, proxied)
			}
			if proxyAuth != tc.expAuth {
				t.Errorf("expected Proxy-Authorization %q, got %q", tc.expAuth, proxyAuth)
			}
		})
	}
}

func TestEasy_ProxyUnresolvable(t *testing.T) {
	h := newHandle(t)
	capture(t, h)
	must(t, h.SetURL("http://origin.test/"))
	must(t, h.SetProxy("http://proxy.invalid:3128"))

	err := h.Perform(t.Context())
	if !errors.Is(err, handle.ErrCouldntResolveProxy) {
		t.Fatalf("expected ErrCouldntResolveProxy, got: %v", err)
	}
}

// connectProxy answers CONNECT requests by piping the hijacked client
// connection to the requested address.
func connectProxy(t *testing.T, wantAuth string) (*httptest.Server, *[]string) {
	t.Helper()

	var (
		mu      sync.Mutex
		targets []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodConnect {
			http.Error(w, "CONNECT only", http.StatusMethodNotAllowed)
			return
		}
		if wantAuth != "" && r.Header.Get("Proxy-Authorization") != wantAuth {
			w.WriteHeader(http.StatusProxyAuthRequired)
			return
		}

		mu.Lock()
		targets = append(targets, r.Host)
		mu.Unlock()

		upstream, err := net.Dial("tcp", r.Host)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		conn, rw, err := w.(http.Hijacker).Hijack()
		if err != nil {
			upstream.Close()
			return
		}
		_, _ = rw.WriteString("HTTP/1.1 200 Connection established\r\n\r\n")
		_ = rw.Flush()

		pipe(conn, upstream)
	}))

	return ts, &targets
}

func TestEasy_ProxyTunnel(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "tunneled %s", r.URL.Path)
	}))
	defer origin.Close()

	t.Run("established", func(t *testing.T) {
		proxy, targets := connectProxy(t, "Basic dTpw")
		defer proxy.Close()

		h := newHandle(t)
		buf := capture(t, h)
		must(t, h.SetURL(origin.URL+"/secret"))
		must(t, h.SetProxy(proxy.URL))
		must(t, h.SetProxyUsername("u"))
		must(t, h.SetProxyPassword("p"))
		must(t, h.SetHTTPProxyTunnel(true))

		must(t, h.Perform(t.Context()))

		if buf.String() != "tunneled /secret" {
			t.Errorf("expected tunneled body, got %q", buf.String())
		}
		if exp := strings.TrimPrefix(origin.URL, "http://"); len(*targets) != 1 || (*targets)[0] != exp {
			t.Errorf("expected CONNECT to %s, got %v", exp, *targets)
		}
	})

	t.Run("refused", func(t *testing.T) {
		proxy, _ := connectProxy(t, "Basic other")
		defer proxy.Close()

		h := newHandle(t)
		capture(t, h)
		must(t, h.SetURL(origin.URL))
		must(t, h.SetProxy(proxy.URL))
		must(t, h.SetHTTPProxyTunnel(true))

		err := h.Perform(t.Context())
		if !errors.Is(err, handle.ErrCouldntConnect) {
			t.Fatalf("expected ErrCouldntConnect, got: %v", err)
		}
		if !strings.Contains(err.Error(), "407") {
			t.Errorf("expected proxy status in error, got: %v", err)
		}
	})
}

// socksServer is a minimal SOCKS5 server without authentication that
// records the destination hosts it was asked for.
type socksServer struct {
	ln net.Listener
	wg sync.WaitGroup

	mu    sync.Mutex
	hosts []string
}

func newSOCKSServer(t *testing.T) *socksServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	s := &socksServer{ln: ln}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serve(conn)
			}()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})

	return s
}

func (s *socksServer) serve(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)

	// Greeting: version, method count, methods.
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return
	}
	if _, err := io.ReadFull(br, make([]byte, hdr[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	// Request: version, command, reserved, address type.
	req := make([]byte, 4)
	if _, err := io.ReadFull(br, req); err != nil {
		return
	}

	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, net.IPv4len)
		if _, err := io.ReadFull(br, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x04:
		ip := make([]byte, net.IPv6len)
		if _, err := io.ReadFull(br, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		n, err := br.ReadByte()
		if err != nil {
			return
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(br, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}

	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(br, portBuf); err != nil {
		return
	}
	port := binary.BigEndian.Uint16(portBuf)

	s.mu.Lock()
	s.hosts = append(s.hosts, host)
	s.mu.Unlock()

	upstream, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}

	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		upstream.Close()
		return
	}

	pipe(&readerConn{Conn: conn, r: br}, upstream)
}

func (s *socksServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hosts...)
}

type readerConn struct {
	net.Conn
	r io.Reader
}

func (c *readerConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func TestEasy_SOCKS5Proxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "via socks")
	}))
	defer origin.Close()

	_, port, err := net.SplitHostPort(origin.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	target := "http://localhost:" + port + "/"

	testCases := map[string]struct {
		proxyType handle.ProxyType
		expHost   string
	}{
		"localResolve":  {proxyType: handle.ProxySOCKS5, expHost: "127.0.0.1"},
		"remoteResolve": {proxyType: handle.ProxySOCKS5Hostname, expHost: "localhost"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			socks := newSOCKSServer(t)

			h := newHandle(t)
			buf := capture(t, h)
			must(t, h.SetURL(target))
			must(t, h.SetProxy(socks.ln.Addr().String()))
			must(t, h.SetProxyType(tc.proxyType))
			must(t, h.SetIPResolve(handle.IPResolveV4))

			must(t, h.Perform(t.Context()))

			if buf.String() != "via socks" {
				t.Errorf("expected body through proxy, got %q", buf.String())
			}
			if hosts := socks.seen(); len(hosts) != 1 || hosts[0] != tc.expHost {
				t.Errorf("expected proxy asked for %q, got %v", tc.expHost, hosts)
			}

			// Release the proxied connection before the server shuts down.
			must(t, h.Close())
		})
	}
}

func TestEasy_ConnectOnly(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(conn, conn)
	}()

	h := newHandle(t)
	must(t, h.SetURL("http://"+ln.Addr().String()))
	must(t, h.SetConnectOnly(true))

	if _, err := h.Send([]byte("early")); !errors.Is(err, handle.ErrBadFunctionArgument) {
		t.Fatalf("expected ErrBadFunctionArgument before connecting, got: %v", err)
	}

	must(t, h.Perform(t.Context()))

	if h.PrimaryIP() != "127.0.0.1" {
		t.Errorf("expected primary IP 127.0.0.1, got %q", h.PrimaryIP())
	}

	n, err := h.Send([]byte("ping"))
	must(t, err)
	if n != 4 {
		t.Fatalf("expected 4 bytes sent, got %d", n)
	}

	buf := make([]byte, 4)
	var got []byte
	for len(got) < 4 {
		n, err := h.Recv(buf)
		must(t, err)
		got = append(got, buf[:n]...)
	}
	if string(got) != "ping" {
		t.Errorf("expected echo %q, got %q", "ping", got)
	}

	must(t, h.Close())
	<-done
}

func TestEasy_ConnectOnlyPeerClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	h := newHandle(t)
	must(t, h.SetURL("http://"+ln.Addr().String()))
	must(t, h.SetConnectOnly(true))
	must(t, h.Perform(t.Context()))

	_, err = h.Recv(make([]byte, 16))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got: %v", err)
	}
}

func TestEasy_InterfaceNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	h := newHandle(t)
	capture(t, h)
	must(t, h.SetURL(ts.URL))
	must(t, h.SetInterface("if!does-not-exist0"))

	err := h.Perform(t.Context())
	if !errors.Is(err, handle.ErrInterfaceFailed) {
		t.Fatalf("expected ErrInterfaceFailed, got: %v", err)
	}
}

func TestEasy_LocalPortRange(t *testing.T) {
	var remote string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remote = r.RemoteAddr
	}))
	defer ts.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	h := newHandle(t)
	capture(t, h)
	must(t, h.SetURL(ts.URL))
	must(t, h.SetLocalPort(base))
	must(t, h.SetLocalPortRange(20))
	must(t, h.SetForbidReuse(true))
	must(t, h.Perform(t.Context()))

	_, p, err := net.SplitHostPort(remote)
	must(t, err)
	port, _ := strconv.Atoi(p)
	if port < base || port >= base+20 {
		t.Errorf("expected local port in [%d, %d), got %d", base, base+20, port)
	}
}
