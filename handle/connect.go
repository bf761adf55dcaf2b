package handle

import (
	"context"
	"errors"
	"io"
	"net"
)

// connectOnly opens the connection to the URL's origin and keeps it on
// the handle for [Easy.Send] and [Easy.Recv].
func (e *Easy) connectOnly(ctx context.Context, r *run) error {
	_, d, err := e.compile()
	if err != nil {
		return err
	}

	if e.conn != nil {
		if err := e.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			r.log.Error("failed to close previous connection", "error", err)
		}
		e.conn = nil
	}

	conn, err := d.dialURL(ctx, e.opts.url)
	if err != nil {
		return err
	}
	e.conn = conn

	e.info.EffectiveURL = e.opts.url.String()
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		e.info.PrimaryIP = addr.IP.String()
		e.info.PrimaryPort = addr.Port
	}
	r.infof("Connection to %s established, connect only", conn.RemoteAddr())

	return nil
}

// Send writes data on the connection opened by a connect-only perform.
func (e *Easy) Send(data []byte) (int, error) {
	if e.busy.Load() {
		return 0, &Error{Op: "send", Err: ErrRecursiveAPICall}
	}
	if e.conn == nil {
		return 0, &Error{Op: "send", Err: ErrBadFunctionArgument, Detail: "no connect-only connection"}
	}

	n, err := e.conn.Write(data)
	if err != nil {
		return n, &Error{Op: "send", Err: ErrSendError, Cause: err}
	}

	return n, nil
}

// Recv reads from the connection opened by a connect-only perform. It
// returns io.EOF once the peer closed the connection.
func (e *Easy) Recv(buf []byte) (int, error) {
	if e.busy.Load() {
		return 0, &Error{Op: "recv", Err: ErrRecursiveAPICall}
	}
	if e.conn == nil {
		return 0, &Error{Op: "recv", Err: ErrBadFunctionArgument, Detail: "no connect-only connection"}
	}

	n, err := e.conn.Read(buf)
	switch {
	case errors.Is(err, io.EOF):
		return n, io.EOF
	case err != nil:
		return n, &Error{Op: "recv", Err: ErrRecvError, Cause: err}
	}

	return n, nil
}
