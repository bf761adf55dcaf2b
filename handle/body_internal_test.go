package handle

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func newRun(s settings) *run {
	return &run{opts: s, log: slog.New(slog.DiscardHandler)}
}

func TestRun_SendBodyThrottled(t *testing.T) {
	s := defaultSettings()
	s.maxSendSpeed = 1 << 20
	r := newRun(s)

	body, err := r.sendBody(t.Context(), bytes.NewReader(make([]byte, 4096)))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	n, err := io.Copy(io.Discard, body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if n != 4096 || r.ulNow.Load() != 4096 {
		t.Errorf("expected 4096 bytes counted, got %d read and %d counted", n, r.ulNow.Load())
	}
}

func TestRun_SendBodyProgressAbort(t *testing.T) {
	s := defaultSettings()
	s.progress = true
	r := newRun(s)
	r.cbs.progress = func(dltotal, dlnow, ultotal, ulnow float64) bool { return false }

	body, err := r.sendBody(t.Context(), bytes.NewReader([]byte("data")))
	if err != nil {
		t.Fatal(err)
	}

	_, err = io.ReadAll(body)
	if !errors.Is(err, ErrAbortedByCallback) {
		t.Fatalf("expected ErrAbortedByCallback, got: %v", err)
	}
	if aborted := r.aborted.Load(); aborted == nil || !errors.Is(aborted, ErrAbortedByCallback) {
		t.Errorf("expected the abort to be recorded, got %v", aborted)
	}
}

func TestRun_FollowsRedirect(t *testing.T) {
	testCases := map[string]struct {
		follow bool
		max    int
		hops   int64
		exp    bool
	}{
		"followOff":       {max: -1, hops: 1},
		"unlimited":       {follow: true, max: -1, hops: 10, exp: true},
		"withinLimit":     {follow: true, max: 2, hops: 2, exp: true},
		"limitReached":    {follow: true, max: 2, hops: 3},
		"zeroRedirects":   {follow: true, max: 0, hops: 1},
		"firstOfOneAllow": {follow: true, max: 1, hops: 1, exp: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			s := defaultSettings()
			s.followLocation = tc.follow
			s.maxRedirs = tc.max
			r := newRun(s)
			r.hops.Store(tc.hops)

			if got := r.followsRedirect(); got != tc.exp {
				t.Errorf("followsRedirect() = %t, expected %t", got, tc.exp)
			}
		})
	}
}
