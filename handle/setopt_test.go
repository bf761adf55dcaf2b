package handle_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/easyhttp/handle"
)

func TestEasy_SetterValidation(t *testing.T) {
	testCases := map[string]struct {
		set func(h *handle.Easy) error
		op  string
		err error
	}{
		"url":                   {set: func(h *handle.Easy) error { return h.SetURL("https://example.com/a?b=c") }},
		"urlWithoutScheme":      {set: func(h *handle.Easy) error { return h.SetURL("example.com:8080/path") }},
		"urlEmpty":              {set: func(h *handle.Easy) error { return h.SetURL("") }, op: "set url", err: handle.ErrURLMalformat},
		"urlBad":                {set: func(h *handle.Easy) error { return h.SetURL("http://[::1") }, op: "set url", err: handle.ErrURLMalformat},
		"urlNoHost":             {set: func(h *handle.Easy) error { return h.SetURL("http:///path") }, op: "set url", err: handle.ErrURLMalformat},
		"urlFTP":                {set: func(h *handle.Easy) error { return h.SetURL("ftp://example.com/file") }, op: "set url", err: handle.ErrUnsupportedProtocol},
		"port":                  {set: func(h *handle.Easy) error { return h.SetPort(8080) }},
		"portTooLarge":          {set: func(h *handle.Easy) error { return h.SetPort(70000) }, op: "set port", err: handle.ErrBadFunctionArgument},
		"proxy":                 {set: func(h *handle.Easy) error { return h.SetProxy("proxy.local:3128") }},
		"proxyDisable":          {set: func(h *handle.Easy) error { return h.SetProxy("") }},
		"proxySOCKS5h":          {set: func(h *handle.Easy) error { return h.SetProxy("socks5h://127.0.0.1:1080") }},
		"proxySOCKS4":           {set: func(h *handle.Easy) error { return h.SetProxy("socks4://127.0.0.1:1080") }, op: "set proxy", err: handle.ErrNotBuiltIn},
		"proxyScheme":           {set: func(h *handle.Easy) error { return h.SetProxy("gopher://127.0.0.1") }, op: "set proxy", err: handle.ErrUnsupportedProtocol},
		"proxyTypeSOCKS4A":      {set: func(h *handle.Easy) error { return h.SetProxyType(handle.ProxySOCKS4A) }, op: "set proxy_type", err: handle.ErrNotBuiltIn},
		"proxyTypeUnknown":      {set: func(h *handle.Easy) error { return h.SetProxyType(42) }, op: "set proxy_type", err: handle.ErrBadFunctionArgument},
		"interfaceEmptyName":    {set: func(h *handle.Easy) error { return h.SetInterface("if!") }, op: "set interface", err: handle.ErrBadFunctionArgument},
		"bufferSize":            {set: func(h *handle.Easy) error { return h.SetBufferSize(64 << 10) }},
		"bufferSizeTooSmall":    {set: func(h *handle.Easy) error { return h.SetBufferSize(512) }, op: "set buffer_size", err: handle.ErrBadFunctionArgument},
		"bufferSizeTooLarge":    {set: func(h *handle.Easy) error { return h.SetBufferSize(1 << 20) }, op: "set buffer_size", err: handle.ErrBadFunctionArgument},
		"wildcardMatch":         {set: func(h *handle.Easy) error { return h.SetWildcardMatch(true) }, op: "set wildcard_match", err: handle.ErrNotBuiltIn},
		"transferEncoding":      {set: func(h *handle.Easy) error { return h.SetTransferEncoding(true) }, op: "set transfer_encoding", err: handle.ErrNotBuiltIn},
		"rawTransferDecoding":   {set: func(h *handle.Easy) error { return h.SetHTTPTransferDecoding(false) }, op: "set http_transfer_decoding", err: handle.ErrNotBuiltIn},
		"maxRedirections":       {set: func(h *handle.Easy) error { return h.SetMaxRedirections(-1) }},
		"maxRedirectionsBad":    {set: func(h *handle.Easy) error { return h.SetMaxRedirections(-2) }, op: "set max_redirections", err: handle.ErrBadFunctionArgument},
		"headers":               {set: func(h *handle.Easy) error { return h.SetHTTPHeaders([]string{"X-A: 1", "Accept:", "X-Empty;"}) }},
		"headerNoSeparator":     {set: func(h *handle.Easy) error { return h.SetHTTPHeaders([]string{"X-A 1"}) }, op: "set http_headers", err: handle.ErrBadFunctionArgument},
		"headerBadName":         {set: func(h *handle.Easy) error { return h.SetHTTPHeaders([]string{"X A: 1"}) }, op: "set http_headers", err: handle.ErrBadFunctionArgument},
		"range":                 {set: func(h *handle.Easy) error { return h.SetRange("0-99,200-,-50") }},
		"rangeBad":              {set: func(h *handle.Easy) error { return h.SetRange("a-b") }, op: "set range", err: handle.ErrBadFunctionArgument},
		"resumeNegative":        {set: func(h *handle.Easy) error { return h.SetResumeFrom(-1) }, op: "set resume_from", err: handle.ErrBadFunctionArgument},
		"customRequest":         {set: func(h *handle.Easy) error { return h.SetCustomRequest("PROPFIND") }},
		"customRequestBad":      {set: func(h *handle.Easy) error { return h.SetCustomRequest("GET /") }, op: "set custom_request", err: handle.ErrBadFunctionArgument},
		"timeConditionUnknown":  {set: func(h *handle.Easy) error { return h.SetTimeCondition(9) }, op: "set time_condition", err: handle.ErrBadFunctionArgument},
		"timeoutNegative":       {set: func(h *handle.Easy) error { return h.SetTimeout(-time.Second) }, op: "set timeout", err: handle.ErrBadFunctionArgument},
		"sendSpeedNegative":     {set: func(h *handle.Easy) error { return h.SetMaxSendSpeed(-1) }, op: "set max_send_speed", err: handle.ErrBadFunctionArgument},
		"ipResolve":             {set: func(h *handle.Easy) error { return h.SetIPResolve(handle.IPResolveV4) }},
		"ipResolveUnknown":      {set: func(h *handle.Easy) error { return h.SetIPResolve(7) }, op: "set ip_resolve", err: handle.ErrBadFunctionArgument},
		"cookieJarEmpty":        {set: func(h *handle.Easy) error { return h.SetCookieJar("") }, op: "set cookie_jar", err: handle.ErrBadFunctionArgument},
		"cookieListNoDomain":    {set: func(h *handle.Easy) error { return h.SetCookieList("Set-Cookie: a=b") }, op: "set cookie_list", err: handle.ErrBadFunctionArgument},
		"cookieListMalformed":   {set: func(h *handle.Easy) error { return h.SetCookieList("not a cookie") }, op: "set cookie_list", err: handle.ErrBadFunctionArgument},
		"certTypeP12":           {set: func(h *handle.Easy) error { return h.SetSSLCertType("P12") }, op: "set ssl_cert_type", err: handle.ErrNotBuiltIn},
		"certTypeDER":           {set: func(h *handle.Easy) error { return h.SetSSLCertType("der") }},
		"keyTypeENG":            {set: func(h *handle.Easy) error { return h.SetSSLKeyType("ENG") }, op: "set ssl_key_type", err: handle.ErrNotBuiltIn},
		"sslEngine":             {set: func(h *handle.Easy) error { return h.SetSSLEngine("pkcs11") }, op: "set ssl_engine", err: handle.ErrSSLEngineNotFound},
		"sslEngineDefault":      {set: func(h *handle.Easy) error { return h.SetSSLEngineDefault(true) }, op: "set ssl_engine_default", err: handle.ErrSSLEngineSetFailed},
		"sslVersionSSLv3":       {set: func(h *handle.Easy) error { return h.SetSSLVersion(handle.SSLVersionSSLv3) }, op: "set ssl_version", err: handle.ErrNotBuiltIn},
		"sslVersionTLS12":       {set: func(h *handle.Easy) error { return h.SetSSLVersion(handle.SSLVersionTLSv12) }},
		"cipherListOpenSSL":     {set: func(h *handle.Easy) error { return h.SetSSLCipherList("ECDHE-RSA-AES128-GCM-SHA256:!aNULL") }},
		"cipherListIANA":        {set: func(h *handle.Easy) error { return h.SetSSLCipherList("TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384") }},
		"cipherListUnknown":     {set: func(h *handle.Easy) error { return h.SetSSLCipherList("NOT-A-CIPHER") }, op: "set ssl_cipher_list", err: handle.ErrSSLCipher},
		"randomFileAccepted":    {set: func(h *handle.Easy) error { return h.SetRandomFile("/dev/urandom") }},
		"egdSocketAccepted":     {set: func(h *handle.Easy) error { return h.SetEGDSocket("/var/run/egd") }},
		"acceptEncodingDefault": {set: func(h *handle.Easy) error { return h.SetAcceptEncoding("") }},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			h := newHandle(t)

			err := tc.set(h)
			if tc.err == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				return
			}

			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got: %v", tc.err, err)
			}

			var herr *handle.Error
			if !errors.As(err, &herr) {
				t.Fatalf("expected *handle.Error, got %T", err)
			}
			if herr.Op != tc.op {
				t.Errorf("expected op %q, got %q", tc.op, herr.Op)
			}
			if !strings.HasPrefix(err.Error(), tc.op+": ") {
				t.Errorf("expected message to start with %q, got %q", tc.op, err.Error())
			}
		})
	}
}

func TestEasy_RejectedSetterKeepsPreviousValue(t *testing.T) {
	h := newHandle(t)
	capture(t, h)

	must(t, h.SetURL("http://127.0.0.1:1/first"))
	if err := h.SetURL("ftp://example.com"); err == nil {
		t.Fatal("expected error for ftp URL")
	}

	must(t, h.SetConnectTimeout(50*time.Millisecond))

	// The handle still points at the first URL, which refuses connections.
	err := h.Perform(t.Context())
	if !errors.Is(err, handle.ErrCouldntConnect) && !errors.Is(err, handle.ErrOperationTimedout) {
		t.Fatalf("expected connect failure for the first URL, got: %v", err)
	}
}

func TestParseEnums(t *testing.T) {
	if got, err := handle.ParseProxyType("SOCKS5H"); err != nil || got != handle.ProxySOCKS5Hostname {
		t.Errorf("ParseProxyType(SOCKS5H) = %v, %v", got, err)
	}
	if got, err := handle.ParseIPResolve("v6"); err != nil || got != handle.IPResolveV6 {
		t.Errorf("ParseIPResolve(v6) = %v, %v", got, err)
	}
	if got, err := handle.ParseSSLVersion("tlsv1.3"); err != nil || got != handle.SSLVersionTLSv13 {
		t.Errorf("ParseSSLVersion(tlsv1.3) = %v, %v", got, err)
	}
	if got, err := handle.ParseTimeCondition("ifmodsince"); err != nil || got != handle.TimeConditionIfModifiedSince {
		t.Errorf("ParseTimeCondition(ifmodsince) = %v, %v", got, err)
	}

	if _, err := handle.ParseProxyType("carrier-pigeon"); !errors.Is(err, handle.ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got: %v", err)
	}
}
