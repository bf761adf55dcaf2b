package handle

import (
	"crypto/tls"
	"strings"
)

// SetSSLCert sets the client certificate file.
func (e *Easy) SetSSLCert(path string) error {
	return e.setTransport("ssl_cert", setString(&e.opts.tls.certFile, path))
}

// SetSSLCertType sets the format of the client certificate, "PEM" or "DER".
func (e *Easy) SetSSLCertType(kind string) error {
	return e.setTransport("ssl_cert_type", func() error {
		kind, err := fileType(kind, "P12")
		if err != nil {
			return err
		}
		e.opts.tls.certType = kind
		return nil
	})
}

// SetSSLKey sets the private key file of the client certificate.
func (e *Easy) SetSSLKey(path string) error {
	return e.setTransport("ssl_key", setString(&e.opts.tls.keyFile, path))
}

// SetSSLKeyType sets the format of the private key, "PEM" or "DER".
func (e *Easy) SetSSLKeyType(kind string) error {
	return e.setTransport("ssl_key_type", func() error {
		kind, err := fileType(kind, "ENG")
		if err != nil {
			return err
		}
		e.opts.tls.keyType = kind
		return nil
	})
}

func fileType(kind, unsupported string) (string, error) {
	switch k := strings.ToUpper(kind); k {
	case "PEM", "DER":
		return k, nil
	case "":
		return "PEM", nil
	case unsupported:
		return "", fail(ErrNotBuiltIn, "%s files", k)
	default:
		return "", fail(ErrBadFunctionArgument, "file type %q", kind)
	}
}

// SetKeyPassword sets the passphrase of an encrypted PEM private key.
func (e *Easy) SetKeyPassword(password string) error {
	return e.setTransport("key_password", setString(&e.opts.tls.keyPassword, password))
}

// SetSSLEngine selects a crypto engine. None are available.
func (e *Easy) SetSSLEngine(engine string) error {
	return e.set("ssl_engine", func() error {
		if engine != "" {
			return fail(ErrSSLEngineNotFound, "%q", engine)
		}
		return nil
	})
}

// SetSSLEngineDefault would make the selected engine the default.
func (e *Easy) SetSSLEngineDefault(enable bool) error {
	return e.set("ssl_engine_default", func() error {
		if enable {
			return fail(ErrSSLEngineSetFailed, "no engine selected")
		}
		return nil
	})
}

// SetSSLVersion sets the minimum TLS version.
func (e *Easy) SetSSLVersion(version SSLVersion) error {
	return e.setTransport("ssl_version", func() error {
		switch version {
		case SSLVersionDefault, SSLVersionTLSv1, SSLVersionTLSv10, SSLVersionTLSv11, SSLVersionTLSv12, SSLVersionTLSv13:
		case SSLVersionSSLv2, SSLVersionSSLv3:
			return fail(ErrNotBuiltIn, "%s", version)
		default:
			return fail(ErrBadFunctionArgument, "unknown ssl version %d", int(version))
		}
		e.opts.tls.version = version
		return nil
	})
}

// SetSSLVerifyHost toggles checking the server name against its
// certificate.
func (e *Easy) SetSSLVerifyHost(verify bool) error {
	return e.setTransport("ssl_verify_host", setBool(&e.opts.tls.verifyHost, verify))
}

// SetSSLVerifyPeer toggles verification of the server certificate chain.
func (e *Easy) SetSSLVerifyPeer(verify bool) error {
	return e.setTransport("ssl_verify_peer", setBool(&e.opts.tls.verifyPeer, verify))
}

// SetCAInfo sets a PEM bundle of certificates to verify the peer with,
// replacing the system roots.
func (e *Easy) SetCAInfo(path string) error {
	return e.setTransport("cainfo", setString(&e.opts.tls.caInfo, path))
}

// SetIssuerCert requires the peer certificate to be signed by the
// certificate in path.
func (e *Easy) SetIssuerCert(path string) error {
	return e.setTransport("issuer_cert", setString(&e.opts.tls.issuerCert, path))
}

// SetCAPath sets a directory of PEM certificates to verify the peer with,
// replacing the system roots.
func (e *Easy) SetCAPath(path string) error {
	return e.setTransport("capath", setString(&e.opts.tls.caPath, path))
}

// SetCRLFile sets a certificate revocation list checked against the peer
// chain.
func (e *Easy) SetCRLFile(path string) error {
	return e.setTransport("crlfile", setString(&e.opts.tls.crlFile, path))
}

// SetCertInfo records the peer certificate chain in [Info.CertInfo].
func (e *Easy) SetCertInfo(enable bool) error {
	return e.set("certinfo", setBool(&e.opts.tls.certInfo, enable))
}

// SetRandomFile is accepted for compatibility. Randomness always comes
// from crypto/rand.
func (e *Easy) SetRandomFile(string) error {
	return e.set("random_file", func() error { return nil })
}

// SetEGDSocket is accepted for compatibility. Randomness always comes
// from crypto/rand.
func (e *Easy) SetEGDSocket(string) error {
	return e.set("egd_socket", func() error { return nil })
}

// SetSSLCipherList restricts the cipher suites offered for TLS 1.2 and
// below. Names are OpenSSL or IANA names separated by colons, commas or
// spaces; names prefixed with "!" are ignored.
func (e *Easy) SetSSLCipherList(list string) error {
	return e.setTransport("ssl_cipher_list", func() error {
		ids, err := parseCipherList(list)
		if err != nil {
			return err
		}
		e.opts.tls.cipherList = ids
		return nil
	})
}

// SetSSLSessionIDCache toggles TLS session resumption.
func (e *Easy) SetSSLSessionIDCache(enable bool) error {
	return e.setTransport("ssl_sessionid_cache", setBool(&e.opts.tls.sessionCache, enable))
}

var opensslCiphers = map[string]string{
	"ECDHE-ECDSA-AES128-GCM-SHA256": "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-RSA-AES128-GCM-SHA256":   "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-ECDSA-AES256-GCM-SHA384": "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-RSA-AES256-GCM-SHA384":   "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-ECDSA-CHACHA20-POLY1305": "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
	"ECDHE-RSA-CHACHA20-POLY1305":   "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	"ECDHE-ECDSA-AES128-SHA":        "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA",
	"ECDHE-ECDSA-AES256-SHA":        "TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA",
	"ECDHE-RSA-AES128-SHA":          "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA",
	"ECDHE-RSA-AES256-SHA":          "TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA",
	"AES128-GCM-SHA256":             "TLS_RSA_WITH_AES_128_GCM_SHA256",
	"AES256-GCM-SHA384":             "TLS_RSA_WITH_AES_256_GCM_SHA384",
	"AES128-SHA":                    "TLS_RSA_WITH_AES_128_CBC_SHA",
	"AES256-SHA":                    "TLS_RSA_WITH_AES_256_CBC_SHA",
	"DES-CBC3-SHA":                  "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
}

func parseCipherList(list string) ([]uint16, error) {
	suites := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		suites[cs.Name] = cs.ID
	}
	for _, cs := range tls.InsecureCipherSuites() {
		suites[cs.Name] = cs.ID
	}

	var ids []uint16
	for _, name := range strings.FieldsFunc(list, func(r rune) bool {
		return r == ':' || r == ',' || r == ' '
	}) {
		if strings.HasPrefix(name, "!") {
			continue
		}
		if iana, ok := opensslCiphers[strings.ToUpper(name)]; ok {
			name = iana
		}
		id, ok := suites[strings.ToUpper(name)]
		if !ok {
			return nil, fail(ErrSSLCipher, "unknown cipher %q", name)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
