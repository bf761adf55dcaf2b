package easyhttp_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/adamwoolhether/easyhttp"
	"github.com/adamwoolhether/easyhttp/builder"
	"github.com/adamwoolhether/easyhttp/handle"
)

type payload struct {
	Body string `json:"body"`
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var discard = slog.New(slog.DiscardHandler)

func newBuilder(url string) *builder.EasyBuilder {
	return easyhttp.NewEasyBuilder(builder.WithLogger(discard)).URL(url)
}

func TestDo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(payload{Body: "hello"})
		case "/created":
			w.WriteHeader(http.StatusCreated)
		case "/unauthorized":
			http.Error(w, "who are you", http.StatusUnauthorized)
		case "/broken":
			_, _ = w.Write([]byte("{not json"))
		default:
			http.Error(w, "nope", http.StatusTeapot)
		}
	}))
	defer ts.Close()

	testCases := map[string]struct {
		path    string
		expCode int
		decode  bool
		exp     payload
		expErr  error
		expBody string
	}{
		"decoded":      {path: "/ok", expCode: http.StatusOK, decode: true, exp: payload{Body: "hello"}},
		"noDest":       {path: "/ok", expCode: http.StatusOK},
		"otherSuccess": {path: "/created", expCode: http.StatusCreated},
		"unexpected": {
			path: "/teapot", expCode: http.StatusOK,
			expErr: easyhttp.ErrUnexpectedStatusCode, expBody: "nope\n",
		},
		"unauthorized": {
			path: "/unauthorized", expCode: http.StatusOK,
			expErr: easyhttp.ErrAuthenticationFailed, expBody: "who are you\n",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var got payload
			var opts []easyhttp.DoOption
			if tc.decode {
				opts = append(opts, easyhttp.WithDestination(&got))
			}
			opts = append(opts, easyhttp.WithLogger(discard))

			err := easyhttp.Do(t.Context(), newBuilder(ts.URL+tc.path), tc.expCode, opts...)
			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Fatalf("expected %v, got: %v", tc.expErr, err)
				}

				var statusErr *easyhttp.UnexpectedStatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("expected *UnexpectedStatusError, got %T", err)
				}
				if statusErr.Body != tc.expBody {
					t.Errorf("expected body %q, got %q", tc.expBody, statusErr.Body)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("badJSON", func(t *testing.T) {
		var got payload
		err := easyhttp.Do(t.Context(), newBuilder(ts.URL+"/broken"), http.StatusOK, easyhttp.WithDestination(&got))
		if err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestDo_JSONNumb(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 12345678901234567890}`))
	}))
	defer ts.Close()

	var got map[string]any
	err := easyhttp.Do(t.Context(), newBuilder(ts.URL), http.StatusOK,
		easyhttp.WithDestination(&got), easyhttp.WithJSONNumb())
	if err != nil {
		t.Fatal(err)
	}

	n, ok := got["count"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", got["count"])
	}
	if n.String() != "12345678901234567890" {
		t.Errorf("expected exact number, got %s", n)
	}
}

func TestDo_Errors(t *testing.T) {
	testCases := map[string]struct {
		b      *builder.EasyBuilder
		opts   []easyhttp.DoOption
		expErr error
	}{
		"buildError": {
			b:      newBuilder("ftp://example.com"),
			expErr: handle.ErrUnsupportedProtocol,
		},
		"performError": {
			b:      newBuilder("http://127.0.0.1:1").ConnectTimeout(0),
			expErr: handle.ErrCouldntConnect,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := easyhttp.Do(t.Context(), tc.b, http.StatusOK, tc.opts...)
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("expected %v, got: %v", tc.expErr, err)
			}
		})
	}

	t.Run("nilDestination", func(t *testing.T) {
		err := easyhttp.Do(t.Context(), newBuilder("http://127.0.0.1:1"), http.StatusOK,
			easyhttp.WithDestination[payload](nil))
		if err == nil {
			t.Fatal("expected an option error")
		}
	})
}

func TestNewTransferBuilder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("scoped"))
	}))
	defer ts.Close()

	h, err := newBuilder(ts.URL).Result()
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	var got []byte
	tx, err := easyhttp.NewTransferBuilder(h, builder.WithLogger(discard)).
		WriteFunction(func(data []byte) (int, error) {
			got = append(got, data...)
			return len(data), nil
		}).
		Result()
	if err != nil {
		t.Fatal(err)
	}

	if err := tx.Perform(t.Context()); err != nil {
		t.Fatal(err)
	}
	if string(got) != "scoped" {
		t.Errorf("expected %q, got %q", "scoped", got)
	}
}
