package builder

import (
	"github.com/adamwoolhether/easyhttp/handle"
)

// SSLCert sets the client certificate file. The key may follow the
// certificate in the same file.
func (b *EasyBuilder) SSLCert(path string) *EasyBuilder {
	return set(b, "ssl_cert", (*handle.Easy).SetSSLCert, path)
}

func (b *EasyBuilder) SSLCertType(kind string) *EasyBuilder {
	return set(b, "ssl_cert_type", (*handle.Easy).SetSSLCertType, kind)
}

func (b *EasyBuilder) SSLKey(path string) *EasyBuilder {
	return set(b, "ssl_key", (*handle.Easy).SetSSLKey, path)
}

func (b *EasyBuilder) SSLKeyType(kind string) *EasyBuilder {
	return set(b, "ssl_key_type", (*handle.Easy).SetSSLKeyType, kind)
}

func (b *EasyBuilder) KeyPassword(password string) *EasyBuilder {
	return set(b, "key_password", (*handle.Easy).SetKeyPassword, password)
}

func (b *EasyBuilder) SSLEngine(engine string) *EasyBuilder {
	return set(b, "ssl_engine", (*handle.Easy).SetSSLEngine, engine)
}

func (b *EasyBuilder) SSLEngineDefault(enable bool) *EasyBuilder {
	return set(b, "ssl_engine_default", (*handle.Easy).SetSSLEngineDefault, enable)
}

// SSLVersion sets the lowest protocol version accepted from the peer.
func (b *EasyBuilder) SSLVersion(version handle.SSLVersion) *EasyBuilder {
	return set(b, "ssl_version", (*handle.Easy).SetSSLVersion, version)
}

// SSLVerifyHost checks that the certificate names the host connected to.
func (b *EasyBuilder) SSLVerifyHost(verify bool) *EasyBuilder {
	return set(b, "ssl_verify_host", (*handle.Easy).SetSSLVerifyHost, verify)
}

// SSLVerifyPeer checks the peer's certificate chain.
func (b *EasyBuilder) SSLVerifyPeer(verify bool) *EasyBuilder {
	return set(b, "ssl_verify_peer", (*handle.Easy).SetSSLVerifyPeer, verify)
}

// CAInfo replaces the system roots with the certificates in path.
func (b *EasyBuilder) CAInfo(path string) *EasyBuilder {
	return set(b, "cainfo", (*handle.Easy).SetCAInfo, path)
}

func (b *EasyBuilder) IssuerCert(path string) *EasyBuilder {
	return set(b, "issuer_cert", (*handle.Easy).SetIssuerCert, path)
}

// CAPath adds every certificate file found in the directory to the roots.
func (b *EasyBuilder) CAPath(path string) *EasyBuilder {
	return set(b, "capath", (*handle.Easy).SetCAPath, path)
}

func (b *EasyBuilder) CRLFile(path string) *EasyBuilder {
	return set(b, "crlfile", (*handle.Easy).SetCRLFile, path)
}

// CertInfo keeps the peer chain, read back with [handle.Easy.CertInfo].
func (b *EasyBuilder) CertInfo(enable bool) *EasyBuilder {
	return set(b, "certinfo", (*handle.Easy).SetCertInfo, enable)
}

func (b *EasyBuilder) RandomFile(path string) *EasyBuilder {
	return set(b, "random_file", (*handle.Easy).SetRandomFile, path)
}

func (b *EasyBuilder) EGDSocket(path string) *EasyBuilder {
	return set(b, "egd_socket", (*handle.Easy).SetEGDSocket, path)
}

// SSLCipherList restricts the cipher suites, colon or comma separated.
func (b *EasyBuilder) SSLCipherList(list string) *EasyBuilder {
	return set(b, "ssl_cipher_list", (*handle.Easy).SetSSLCipherList, list)
}

func (b *EasyBuilder) SSLSessionIDCache(enable bool) *EasyBuilder {
	return set(b, "ssl_sessionid_cache", (*handle.Easy).SetSSLSessionIDCache, enable)
}
