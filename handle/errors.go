package handle

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by option setters and transfers. They are
// wrapped by [Error] and can be matched with [errors.Is].
var (
	ErrUnsupportedProtocol    = errors.New("unsupported protocol")
	ErrURLMalformat           = errors.New("URL using bad/illegal format or missing URL")
	ErrNotBuiltIn             = errors.New("feature not built in")
	ErrCouldntResolveProxy    = errors.New("couldn't resolve proxy name")
	ErrCouldntResolveHost     = errors.New("couldn't resolve host name")
	ErrCouldntConnect         = errors.New("couldn't connect to server")
	ErrInterfaceFailed        = errors.New("failed binding local connection end")
	ErrHTTPReturnedError      = errors.New("HTTP response code said error")
	ErrWriteError             = errors.New("failed writing received data")
	ErrReadError              = errors.New("failed to open/read local data")
	ErrOperationTimedout      = errors.New("timeout was reached")
	ErrRangeError             = errors.New("requested range was not delivered by the server")
	ErrAbortedByCallback      = errors.New("operation was aborted by an application callback")
	ErrBadFunctionArgument    = errors.New("a function was given a bad argument")
	ErrTooManyRedirects       = errors.New("number of redirects hit maximum amount")
	ErrUnknownOption          = errors.New("an unknown option was passed in")
	ErrSSLConnectError        = errors.New("SSL connect error")
	ErrSSLEngineNotFound      = errors.New("SSL crypto engine not found")
	ErrSSLEngineSetFailed     = errors.New("can not set SSL crypto engine as default")
	ErrSSLCertProblem         = errors.New("problem with the local SSL certificate")
	ErrSSLCipher              = errors.New("couldn't use specified SSL cipher")
	ErrPeerFailedVerification = errors.New("SSL peer certificate or SSH remote key was not OK")
	ErrBadContentEncoding     = errors.New("unrecognized or bad HTTP Content or Transfer-Encoding")
	ErrFileSizeExceeded       = errors.New("maximum file size exceeded")
	ErrSendError              = errors.New("failed sending data to the peer")
	ErrRecvError              = errors.New("failure when receiving data from the peer")
	ErrSSLCACertBadFile       = errors.New("problem with the SSL CA cert (path? access rights?)")
	ErrSSLCRLBadFile          = errors.New("failed to load CRL file (path? access rights?, format?)")
	ErrSSLIssuerError         = errors.New("issuer check against peer certificate failed")
	ErrSendFailRewind         = errors.New("send failed since rewinding of the data stream failed")
	ErrRecursiveAPICall       = errors.New("API function called from within callback")
	ErrTransferCancelled      = errors.New("transfer cancelled")
)

// Error describes a failed option setter or transfer. Err is one of the
// package sentinels, Cause is the underlying error when there is one.
type Error struct {
	Op     string
	Err    error
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	s := e.Err.Error()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}

	return s
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Cause}
}

// fail builds an *Error without an Op; the setter wrapper fills it in.
func fail(err error, format string, args ...any) *Error {
	return &Error{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// StatusError is returned by a transfer with fail-on-error enabled when
// the server responds with a status code of 400 or above.
type StatusError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d", e.Err, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
