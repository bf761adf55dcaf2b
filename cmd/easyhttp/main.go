// Command easyhttp transfers a URL with curl-style flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamwoolhether/easyhttp/builder"
	"github.com/adamwoolhether/easyhttp/handle"
)

// Version information, set with -ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "easyhttp: (%d) %v\n", exitCode(err), err)
		os.Exit(exitCode(err))
	}
}

// exitCodes follows the numbering curl uses for its own exit status.
var exitCodes = []struct {
	err  error
	code int
}{
	{handle.ErrUnsupportedProtocol, 1},
	{handle.ErrURLMalformat, 3},
	{handle.ErrNotBuiltIn, 4},
	{handle.ErrCouldntResolveProxy, 5},
	{handle.ErrCouldntResolveHost, 6},
	{handle.ErrCouldntConnect, 7},
	{handle.ErrHTTPReturnedError, 22},
	{handle.ErrWriteError, 23},
	{handle.ErrReadError, 26},
	{handle.ErrOperationTimedout, 28},
	{handle.ErrRangeError, 33},
	{handle.ErrSSLConnectError, 35},
	{handle.ErrInterfaceFailed, 45},
	{handle.ErrTooManyRedirects, 47},
	{handle.ErrUnknownOption, 48},
	{handle.ErrPeerFailedVerification, 60},
	{handle.ErrBadContentEncoding, 61},
	{handle.ErrFileSizeExceeded, 63},
	{handle.ErrSendFailRewind, 65},
	{handle.ErrSSLCertProblem, 58},
	{handle.ErrSSLCipher, 59},
	{handle.ErrSSLCACertBadFile, 77},
	{handle.ErrSSLCRLBadFile, 82},
	{handle.ErrSSLIssuerError, 83},
	{handle.ErrSendError, 55},
	{handle.ErrRecvError, 56},
	{handle.ErrAbortedByCallback, 42},
	{handle.ErrBadFunctionArgument, 43},
}

// exitCode maps err to a process exit status. A failed build reports
// its first error.
func exitCode(err error) int {
	var be *builder.BuildError
	if errors.As(err, &be) && len(be.Errs) > 0 {
		err = be.Errs[0]
	}

	for _, ec := range exitCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}

	return 2
}
