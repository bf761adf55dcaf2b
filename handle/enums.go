package handle

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// ProxyType selects the protocol spoken to the proxy.
type ProxyType int

const (
	ProxyHTTP ProxyType = iota
	ProxyHTTP10
	ProxySOCKS4
	ProxySOCKS5
	ProxySOCKS4A
	ProxySOCKS5Hostname
)

var proxyTypeNames = map[ProxyType]string{
	ProxyHTTP:           "http",
	ProxyHTTP10:         "http1.0",
	ProxySOCKS4:         "socks4",
	ProxySOCKS5:         "socks5",
	ProxySOCKS4A:        "socks4a",
	ProxySOCKS5Hostname: "socks5h",
}

func (p ProxyType) String() string {
	if s, ok := proxyTypeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ProxyType(%d)", int(p))
}

// scheme is the URL scheme used when a proxy string carries none.
func (p ProxyType) scheme() string {
	if p == ProxyHTTP10 {
		return "http"
	}
	return p.String()
}

// ParseProxyType maps a proxy scheme name to its ProxyType.
func ParseProxyType(s string) (ProxyType, error) {
	for k, v := range proxyTypeNames {
		if strings.EqualFold(v, s) {
			return k, nil
		}
	}
	return 0, fail(ErrUnknownOption, "proxy type %q", s)
}

// IPResolve restricts which address family is used to connect.
type IPResolve int

const (
	IPResolveAny IPResolve = iota
	IPResolveV4
	IPResolveV6
)

func (r IPResolve) String() string {
	switch r {
	case IPResolveAny:
		return "any"
	case IPResolveV4:
		return "v4"
	case IPResolveV6:
		return "v6"
	}
	return fmt.Sprintf("IPResolve(%d)", int(r))
}

func (r IPResolve) network() string {
	switch r {
	case IPResolveV4:
		return "tcp4"
	case IPResolveV6:
		return "tcp6"
	}
	return "tcp"
}

// ParseIPResolve maps "any", "v4" or "v6" to its IPResolve.
func ParseIPResolve(s string) (IPResolve, error) {
	for _, r := range []IPResolve{IPResolveAny, IPResolveV4, IPResolveV6} {
		if strings.EqualFold(r.String(), s) {
			return r, nil
		}
	}
	return 0, fail(ErrUnknownOption, "ip resolve %q", s)
}

// SSLVersion is the minimum protocol version negotiated with the peer.
type SSLVersion int

const (
	SSLVersionDefault SSLVersion = iota
	SSLVersionTLSv1
	SSLVersionSSLv2
	SSLVersionSSLv3
	SSLVersionTLSv10
	SSLVersionTLSv11
	SSLVersionTLSv12
	SSLVersionTLSv13
)

var sslVersionNames = map[SSLVersion]string{
	SSLVersionDefault: "default",
	SSLVersionTLSv1:   "tlsv1",
	SSLVersionSSLv2:   "sslv2",
	SSLVersionSSLv3:   "sslv3",
	SSLVersionTLSv10:  "tlsv1.0",
	SSLVersionTLSv11:  "tlsv1.1",
	SSLVersionTLSv12:  "tlsv1.2",
	SSLVersionTLSv13:  "tlsv1.3",
}

func (v SSLVersion) String() string {
	if s, ok := sslVersionNames[v]; ok {
		return s
	}
	return fmt.Sprintf("SSLVersion(%d)", int(v))
}

// tlsVersion returns the crypto/tls minimum version, 0 meaning the
// library default.
func (v SSLVersion) tlsVersion() uint16 {
	switch v {
	case SSLVersionTLSv1, SSLVersionTLSv10:
		return tls.VersionTLS10
	case SSLVersionTLSv11:
		return tls.VersionTLS11
	case SSLVersionTLSv12:
		return tls.VersionTLS12
	case SSLVersionTLSv13:
		return tls.VersionTLS13
	}
	return 0
}

// ParseSSLVersion maps names such as "tlsv1.2" to their SSLVersion.
func ParseSSLVersion(s string) (SSLVersion, error) {
	for k, v := range sslVersionNames {
		if strings.EqualFold(v, s) {
			return k, nil
		}
	}
	return 0, fail(ErrUnknownOption, "ssl version %q", s)
}

// TimeCondition selects the conditional request header sent with the
// time value.
type TimeCondition int

const (
	TimeConditionNone TimeCondition = iota
	TimeConditionIfModifiedSince
	TimeConditionIfUnmodifiedSince
	TimeConditionLastModified
)

var timeConditionNames = map[TimeCondition]string{
	TimeConditionNone:              "none",
	TimeConditionIfModifiedSince:   "ifmodsince",
	TimeConditionIfUnmodifiedSince: "ifunmodsince",
	TimeConditionLastModified:      "lastmod",
}

func (c TimeCondition) String() string {
	if s, ok := timeConditionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("TimeCondition(%d)", int(c))
}

func (c TimeCondition) header() string {
	switch c {
	case TimeConditionIfModifiedSince:
		return "If-Modified-Since"
	case TimeConditionIfUnmodifiedSince:
		return "If-Unmodified-Since"
	case TimeConditionLastModified:
		return "Last-Modified"
	}
	return ""
}

// ParseTimeCondition maps "none", "ifmodsince", "ifunmodsince" or
// "lastmod" to its TimeCondition.
func ParseTimeCondition(s string) (TimeCondition, error) {
	for k, v := range timeConditionNames {
		if strings.EqualFold(v, s) {
			return k, nil
		}
	}
	return 0, fail(ErrUnknownOption, "time condition %q", s)
}

// InfoType tags the data handed to a [DebugFunc].
type InfoType int

const (
	InfoText InfoType = iota
	InfoHeaderIn
	InfoHeaderOut
	InfoDataIn
	InfoDataOut
	InfoSSLDataIn
	InfoSSLDataOut
)

func (t InfoType) String() string {
	switch t {
	case InfoText:
		return "text"
	case InfoHeaderIn:
		return "header_in"
	case InfoHeaderOut:
		return "header_out"
	case InfoDataIn:
		return "data_in"
	case InfoDataOut:
		return "data_out"
	case InfoSSLDataIn:
		return "ssl_data_in"
	case InfoSSLDataOut:
		return "ssl_data_out"
	}
	return fmt.Sprintf("InfoType(%d)", int(t))
}

// SeekResult is returned by a [SeekFunc].
type SeekResult int

const (
	SeekOK SeekResult = iota
	SeekFail
	SeekCantSeek
)

// Text encodings let the enums appear by name in configuration files.

func (p ProxyType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *ProxyType) UnmarshalText(text []byte) error {
	v, err := ParseProxyType(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (r IPResolve) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *IPResolve) UnmarshalText(text []byte) error {
	v, err := ParseIPResolve(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (v SSLVersion) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *SSLVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseSSLVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (c TimeCondition) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *TimeCondition) UnmarshalText(text []byte) error {
	v, err := ParseTimeCondition(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
