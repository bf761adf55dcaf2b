// Package throttle provides an [io.Reader] that rate-limits the bytes
// flowing through it using a token-bucket algorithm from
// [golang.org/x/time/rate].
//
// # Usage
//
// Wrap a request or response body with [NewReader]:
//
//	r, err := throttle.NewReader(ctx, resp.Body,
//		64<<10, // bytes per second
//		func() *slog.Logger { return slog.Default() },
//	)
//
// When the byte budget is spent, reads block until enough tokens are
// available or the context is cancelled.
package throttle
