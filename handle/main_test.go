package handle_test

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/adamwoolhether/easyhttp/handle"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// newHandle returns a handle that logs nowhere and is closed when the
// test ends.
func newHandle(t *testing.T, opts ...handle.Option) *handle.Easy {
	t.Helper()

	opts = append([]handle.Option{handle.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	h, err := handle.New(opts...)
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	t.Cleanup(func() {
		if err := h.Close(); err != nil {
			t.Errorf("closing handle: %v", err)
		}
	})

	return h
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// capture installs a write callback collecting the received data.
func capture(t *testing.T, h *handle.Easy) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	must(t, h.SetWriteFunction(func(data []byte) (int, error) {
		return buf.Write(data)
	}))

	return &buf
}

// pipe copies between a and b until either side closes.
func pipe(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(a, b)
		a.Close()
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(b, a)
		b.Close()
	}()
	wg.Wait()
}
