package config

import (
	"net/http"

	"github.com/adamwoolhether/easyhttp/builder"
)

// Apply chains the profile's settings onto b and returns it. Unset
// fields are skipped so that options chained before Apply survive.
func (p *Profile) Apply(b *builder.EasyBuilder) *builder.EasyBuilder {
	b.URL(p.URL)

	switch {
	case p.Data != "":
		b.PostFieldsCopy([]byte(p.Data))
		if p.Method != "" && p.Method != http.MethodPost {
			b.CustomRequest(p.Method)
		}
	case p.Method == http.MethodHead:
		b.Nobody(true)
	case p.Method != "" && p.Method != http.MethodGet:
		b.CustomRequest(p.Method)
	}

	if len(p.Headers) > 0 {
		b.HTTPHeaders(p.Headers)
	}
	if p.UserAgent != "" {
		b.UserAgent(p.UserAgent)
	}
	if p.Referer != "" {
		b.Referer(p.Referer)
	}
	if p.Range != "" {
		b.Range(p.Range)
	}
	if p.Compressed {
		b.AcceptEncoding("")
	}
	if p.FailOnError {
		b.FailOnError(true)
	}
	if p.Verbose {
		b.Verbose(true)
	}
	if p.ShowHeader {
		b.ShowHeader(true)
	}
	if p.IPResolve != 0 {
		b.IPResolve(p.IPResolve)
	}

	if a := p.Auth; a != nil {
		b.Username(a.Username).Password(a.Password)
	}

	if px := p.Proxy; px != nil {
		b.ProxyType(px.Type).Proxy(px.URL)
		if px.Port != 0 {
			b.ProxyPort(px.Port)
		}
		if px.Username != "" {
			b.ProxyUsername(px.Username).ProxyPassword(px.Password)
		}
		if px.NoProxy != "" {
			b.NoProxy(px.NoProxy)
		}
		if px.Tunnel {
			b.HTTPProxyTunnel(true)
		}
	}

	if t := p.TLS; t != nil {
		applyTLS(b, t)
	}

	applyTimeouts(b, p.Timeouts)
	applyLimits(b, p.Limits)

	if c := p.Cookies; c != nil {
		if c.Cookie != "" {
			b.Cookie(c.Cookie)
		}
		for _, f := range c.Files {
			b.CookieFile(f)
		}
		if c.Jar != "" {
			b.CookieJar(c.Jar)
		}
		if c.Session {
			b.CookieSession(true)
		}
	}

	if r := p.Redirects; r != nil {
		b.FollowLocation(r.Follow)
		if r.Max != nil {
			b.MaxRedirections(*r.Max)
		}
		if r.AutoReferer {
			b.AutoReferer(true)
		}
		if r.UnrestrictedAuth {
			b.UnrestrictedAuth(true)
		}
	}

	return b
}

func applyTLS(b *builder.EasyBuilder, t *TLS) {
	if t.Insecure {
		b.SSLVerifyPeer(false).SSLVerifyHost(false)
	}
	if t.CAInfo != "" {
		b.CAInfo(t.CAInfo)
	}
	if t.CAPath != "" {
		b.CAPath(t.CAPath)
	}
	if t.CRLFile != "" {
		b.CRLFile(t.CRLFile)
	}
	if t.Cert != "" {
		b.SSLCert(t.Cert)
	}
	if t.Key != "" {
		b.SSLKey(t.Key)
	}
	if t.KeyPassword != "" {
		b.KeyPassword(t.KeyPassword)
	}
	if t.MinVersion != 0 {
		b.SSLVersion(t.MinVersion)
	}
	if t.Ciphers != "" {
		b.SSLCipherList(t.Ciphers)
	}
}

func applyTimeouts(b *builder.EasyBuilder, t Timeouts) {
	if t.Total > 0 {
		b.Timeout(t.Total)
	}
	if t.Connect > 0 {
		b.ConnectTimeout(t.Connect)
	}
	if t.DNSCache != 0 {
		b.DNSCacheTimeout(t.DNSCache)
	}
}

func applyLimits(b *builder.EasyBuilder, l Limits) {
	if l.MaxRecvSpeed > 0 {
		b.MaxRecvSpeed(l.MaxRecvSpeed)
	}
	if l.MaxSendSpeed > 0 {
		b.MaxSendSpeed(l.MaxSendSpeed)
	}
	if l.MaxFilesize > 0 {
		b.MaxFilesize(l.MaxFilesize)
	}
	if l.LowSpeedLimit > 0 {
		b.LowSpeedLimit(l.LowSpeedLimit)
	}
	if l.LowSpeedTime > 0 {
		b.LowSpeedTime(l.LowSpeedTime)
	}
	if l.BufferSize > 0 {
		b.BufferSize(l.BufferSize)
	}
}
