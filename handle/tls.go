package handle

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// tlsConfig compiles the TLS options. cache is used for session
// resumption when enabled; nil creates a fresh one.
func tlsConfig(ts tlsSettings, cache tls.ClientSessionCache) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:   ts.version.tlsVersion(),
		CipherSuites: ts.cipherList,
	}

	if ts.sessionCache {
		if cache == nil {
			cache = tls.NewLRUClientSessionCache(0)
		}
		cfg.ClientSessionCache = cache
	}

	roots, err := loadRoots(ts.caInfo, ts.caPath)
	if err != nil {
		return nil, err
	}
	cfg.RootCAs = roots

	if ts.certFile != "" {
		cert, err := loadClientCert(ts)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	var issuer *x509.Certificate
	if ts.issuerCert != "" {
		certs, err := readCerts(ts.issuerCert, "PEM")
		if err != nil {
			return nil, &Error{Err: ErrSSLIssuerError, Detail: ts.issuerCert, Cause: err}
		}
		issuer = certs[0]
	}

	var crl *x509.RevocationList
	if ts.crlFile != "" {
		if crl, err = loadCRL(ts.crlFile); err != nil {
			return nil, err
		}
	}

	if !ts.verifyPeer {
		cfg.InsecureSkipVerify = true
	}

	if ts.verifyPeer && (!ts.verifyHost || issuer != nil || crl != nil) {
		// crypto/tls always checks the host name, so the chain is
		// verified here instead.
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return verifyPeer(cs, roots, ts.verifyHost, issuer, crl)
		}
	} else if issuer != nil || crl != nil {
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return checkChain(cs.PeerCertificates, issuer, crl)
		}
	}

	return cfg, nil
}

func verifyPeer(cs tls.ConnectionState, roots *x509.CertPool, verifyHost bool, issuer *x509.Certificate, crl *x509.RevocationList) error {
	certs := cs.PeerCertificates
	if len(certs) == 0 {
		return fail(ErrPeerFailedVerification, "no peer certificate")
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range certs[1:] {
		opts.Intermediates.AddCert(c)
	}
	if verifyHost {
		opts.DNSName = cs.ServerName
	}

	if _, err := certs[0].Verify(opts); err != nil {
		return &Error{Err: ErrPeerFailedVerification, Cause: err}
	}

	return checkChain(certs, issuer, crl)
}

// checkChain applies the issuer and revocation checks to a peer chain.
func checkChain(certs []*x509.Certificate, issuer *x509.Certificate, crl *x509.RevocationList) error {
	if len(certs) == 0 {
		return fail(ErrPeerFailedVerification, "no peer certificate")
	}

	if issuer != nil {
		if err := certs[0].CheckSignatureFrom(issuer); err != nil {
			return &Error{Err: ErrSSLIssuerError, Cause: err}
		}
	}

	if crl != nil {
		for _, c := range certs {
			for _, revoked := range crl.RevokedCertificateEntries {
				if revoked.SerialNumber.Cmp(c.SerialNumber) == 0 {
					return fail(ErrPeerFailedVerification, "certificate %s is revoked", c.Subject)
				}
			}
		}
	}

	return nil
}

// loadRoots builds the pool of trusted certificates. Nil means the system
// roots.
func loadRoots(caInfo, caPath string) (*x509.CertPool, error) {
	if caInfo == "" && caPath == "" {
		return nil, nil
	}

	pool := x509.NewCertPool()

	if caInfo != "" {
		data, err := os.ReadFile(caInfo)
		if err != nil {
			return nil, &Error{Err: ErrSSLCACertBadFile, Detail: caInfo, Cause: err}
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fail(ErrSSLCACertBadFile, "no certificates in %s", caInfo)
		}
	}

	if caPath != "" {
		entries, err := os.ReadDir(caPath)
		if err != nil {
			return nil, &Error{Err: ErrSSLCACertBadFile, Detail: caPath, Cause: err}
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(caPath, entry.Name()))
			if err != nil {
				return nil, &Error{Err: ErrSSLCACertBadFile, Detail: entry.Name(), Cause: err}
			}
			pool.AppendCertsFromPEM(data)
		}
	}

	return pool, nil
}

func loadCRL(path string) (*x509.RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Err: ErrSSLCRLBadFile, Detail: path, Cause: err}
	}

	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}

	crl, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, &Error{Err: ErrSSLCRLBadFile, Detail: path, Cause: err}
	}

	return crl, nil
}

// readCerts reads the certificates in a PEM or DER file.
func readCerts(path, kind string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if kind == "DER" {
		cert, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, err
		}
		return []*x509.Certificate{cert}, nil
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found")
	}

	return certs, nil
}

// loadClientCert reads the client certificate and its key. Without a key
// file the key is expected next to the certificate in the same file.
func loadClientCert(ts tlsSettings) (tls.Certificate, error) {
	certs, err := readCerts(ts.certFile, ts.certType)
	if err != nil {
		return tls.Certificate{}, &Error{Err: ErrSSLCertProblem, Detail: ts.certFile, Cause: err}
	}

	keyFile := ts.keyFile
	if keyFile == "" {
		keyFile = ts.certFile
	}
	key, err := readKey(keyFile, ts.keyType, ts.keyPassword)
	if err != nil {
		return tls.Certificate{}, &Error{Err: ErrSSLCertProblem, Detail: keyFile, Cause: err}
	}

	cert := tls.Certificate{PrivateKey: key, Leaf: certs[0]}
	for _, c := range certs {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}

	return cert, nil
}

func readKey(path, kind, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if kind == "DER" {
		return parseKey(data)
	}

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no private key found")
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}

		der := block.Bytes
		//lint:ignore SA1019 legacy encrypted PEM keys are still handed to us
		if x509.IsEncryptedPEMBlock(block) {
			if password == "" {
				return nil, errors.New("private key is encrypted and no password is set")
			}
			//lint:ignore SA1019 legacy encrypted PEM keys are still handed to us
			if der, err = x509.DecryptPEMBlock(block, []byte(password)); err != nil {
				return nil, err
			}
		}

		return parseKey(der)
	}
}

func parseKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}

	return nil, errors.New("unsupported private key format")
}
