// Package handle provides [Easy], a reusable transfer session configured
// option by option in the style of a curl easy handle, built on
// [net/http].
//
// # Configuring a Handle
//
// Every option has a setter that validates its argument and returns an
// [*Error] wrapping one of the package sentinels when it is rejected:
//
//	h, err := handle.New(handle.WithLogger(logger))
//	if err := h.SetURL("https://example.com/data"); err != nil { ... }
//	if err := h.SetFollowLocation(true); err != nil { ... }
//	if err := h.SetMaxRecvSpeed(64 << 10); err != nil { ... }
//
// # Performing Transfers
//
// [Easy.Perform] runs the transfer. Received data goes to the write
// callback, or os.Stdout when none is installed:
//
//	h.SetWriteFunction(func(data []byte) (int, error) {
//		return buf.Write(data)
//	})
//	err = h.Perform(ctx)
//	code := h.ResponseCode()
//
// A handle keeps its connections, DNS cache and cookies between
// performs. Errors can be matched with [errors.Is]:
//
//	if errors.Is(err, handle.ErrOperationTimedout) { ... }
//
// # Transfers
//
// [Easy.Transfer] binds the handle to callbacks that only apply to one
// kind of perform, leaving the handle's own callbacks untouched.
//
// # Cookies
//
// The cookie engine is enabled by [Easy.SetCookieFile] or
// [Easy.SetCookieJar] and reads and writes Netscape cookie files.
package handle
