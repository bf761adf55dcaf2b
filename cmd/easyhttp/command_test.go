package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/adamwoolhether/easyhttp/builder"
	"github.com/adamwoolhether/easyhttp/handle"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// execute runs the command with args and returns what it printed.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(t.Context())

	return stdout.String(), stderr.String(), err
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		w.Header().Set("X-Method", r.Method)
		fmt.Fprintf(w, "%s %s|ua=%s|h=%s|auth=%s:%s", r.Method, data,
			r.Header.Get("User-Agent"), r.Header.Get("X-Test"), user, pass)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.txt", time.Time{}, strings.NewReader("hello world"))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func TestRootCommand(t *testing.T) {
	ts := echoServer(t)

	dataFile := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(dataFile, []byte("from\nfile\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	testCases := map[string]struct {
		args  []string
		stdin string
		exp   string
	}{
		"get": {
			args: []string{ts.URL + "/echo"},
			exp:  "GET |ua=|h=|auth=:",
		},
		"postData": {
			args: []string{"-d", "a=1", "-d", "b=2", ts.URL + "/echo"},
			exp:  "POST a=1&b=2|ua=|h=|auth=:",
		},
		"postDataFile": {
			args: []string{"-d", "@" + dataFile, ts.URL + "/echo"},
			exp:  "POST fromfile|ua=|h=|auth=:",
		},
		"customMethod": {
			args: []string{"-X", "PUT", "-d", "x", ts.URL + "/echo"},
			exp:  "PUT x|ua=|h=|auth=:",
		},
		"headersAgentUser": {
			args: []string{"-H", "X-Test: yes", "-A", "cli/1", "-u", "me:pw", ts.URL + "/echo"},
			exp:  "GET |ua=cli/1|h=yes|auth=me:pw",
		},
		"noRedirect": {
			args: []string{ts.URL + "/redirect"},
			exp:  "<a href=\"/echo\">Found</a>.\n\n",
		},
		"followRedirect": {
			args: []string{"-L", ts.URL + "/redirect"},
			exp:  "GET |ua=|h=|auth=:",
		},
		"range": {
			args: []string{"-r", "0-4", ts.URL + "/file"},
			exp:  "hello",
		},
		"resumeOffset": {
			args: []string{"-C", "6", ts.URL + "/file"},
			exp:  "world",
		},
		"notFound": {
			args: []string{ts.URL + "/missing"},
			exp:  "not here\n",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tc.stdin, tc.args...)
			if err != nil {
				t.Fatalf("expected no error, got: %v\nstderr: %s", err, stderr)
			}
			if stdout != tc.exp {
				t.Errorf("expected output %q, got %q", tc.exp, stdout)
			}
		})
	}
}

func TestRootCommand_Headers(t *testing.T) {
	ts := echoServer(t)

	testCases := map[string]struct {
		args    []string
		method  string
		hasBody bool
	}{
		"include": {args: []string{"-i"}, method: "GET", hasBody: true},
		"head":    {args: []string{"-I"}, method: "HEAD"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			stdout, _, err := execute(t, "", append(tc.args, ts.URL+"/echo")...)
			if err != nil {
				t.Fatal(err)
			}

			if !strings.HasPrefix(stdout, "HTTP/1.1 200 OK\r\n") {
				t.Errorf("expected status line first, got %q", stdout)
			}
			if !strings.Contains(stdout, "X-Method: "+tc.method+"\r\n") {
				t.Errorf("expected method %s in headers, got %q", tc.method, stdout)
			}
			if got := strings.Contains(stdout, "|ua="); got != tc.hasBody {
				t.Errorf("expected body present %t, got %q", tc.hasBody, stdout)
			}
		})
	}
}

func TestRootCommand_Fail(t *testing.T) {
	ts := echoServer(t)

	stdout, _, err := execute(t, "", "-f", ts.URL+"/missing")
	if !errors.Is(err, handle.ErrHTTPReturnedError) {
		t.Fatalf("expected ErrHTTPReturnedError, got: %v", err)
	}
	if stdout != "" {
		t.Errorf("expected no output, got %q", stdout)
	}
	if code := exitCode(err); code != 22 {
		t.Errorf("expected exit code 22, got %d", code)
	}
}

func TestRootCommand_Output(t *testing.T) {
	ts := echoServer(t)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	stdout, _, err := execute(t, "", "-o", dest, ts.URL+"/file")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected downloaded file, got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file, got %d entries", len(entries))
	}
}

func TestRootCommand_OutputRemovedOnFailure(t *testing.T) {
	ts := echoServer(t)
	dir := t.TempDir()

	_, _, err := execute(t, "", "-f", "-o", filepath.Join(dir, "out.txt"), ts.URL+"/missing")
	if err == nil {
		t.Fatal("expected an error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files left behind, got %d", len(entries))
	}
}

func TestRootCommand_Resume(t *testing.T) {
	ts := echoServer(t)
	dest := filepath.Join(t.TempDir(), "partial.txt")
	if err := os.WriteFile(dest, []byte("hello "), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute(t, "", "-C", "-", "-o", dest, ts.URL+"/file"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected resumed file, got %q", data)
	}
}

func TestRootCommand_Verbose(t *testing.T) {
	ts := echoServer(t)

	_, stderr, err := execute(t, "", "-v", ts.URL+"/echo")
	if err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		"* Connected to 127.0.0.1",
		"> GET /echo HTTP/1.1\n",
		"< HTTP/1.1 200 OK\n",
		"< X-Method: GET\n",
	} {
		if !strings.Contains(stderr, exp) {
			t.Errorf("expected %q in verbose output, got:\n%s", exp, stderr)
		}
	}
}

func TestRootCommand_Profile(t *testing.T) {
	ts := echoServer(t)

	profile := filepath.Join(t.TempDir(), "profile.yaml")
	content := "url: " + ts.URL + "/echo\nuser_agent: from-profile\nheaders:\n  - \"X-Test: profile\"\n"
	if err := os.WriteFile(profile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	testCases := map[string]struct {
		args []string
		exp  string
	}{
		"profileOnly": {
			args: []string{"--config", profile},
			exp:  "GET |ua=from-profile|h=profile|auth=:",
		},
		"flagsOverride": {
			args: []string{"--config", profile, "-A", "from-flag", ts.URL + "/echo"},
			exp:  "GET |ua=from-flag|h=profile|auth=:",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			stdout, _, err := execute(t, "", tc.args...)
			if err != nil {
				t.Fatal(err)
			}
			if stdout != tc.exp {
				t.Errorf("expected %q, got %q", tc.exp, stdout)
			}
		})
	}
}

func TestRootCommand_Errors(t *testing.T) {
	testCases := map[string]struct {
		args    []string
		expErr  error
		expCode int
	}{
		"badMethod": {
			args:    []string{"-X", "BAD METHOD", "http://127.0.0.1/"},
			expErr:  handle.ErrBadFunctionArgument,
			expCode: 43,
		},
		"unsupportedScheme": {
			args:    []string{"ftp://127.0.0.1/file"},
			expErr:  handle.ErrUnsupportedProtocol,
			expCode: 1,
		},
		"socks4Proxy": {
			args:    []string{"-x", "socks4://127.0.0.1:1080", "http://127.0.0.1/"},
			expErr:  handle.ErrNotBuiltIn,
			expCode: 4,
		},
		"missingProfile": {
			args:    []string{"--config", "testdata/missing.yaml"},
			expErr:  os.ErrNotExist,
			expCode: 2,
		},
		"noURL": {
			args:    []string{},
			expCode: 2,
		},
		"badRate": {
			args:    []string{"--limit-rate", "fast", "http://127.0.0.1/"},
			expCode: 2,
		},
		"resumeWithoutOutput": {
			args:    []string{"-C", "-", "http://127.0.0.1/"},
			expCode: 2,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, "", tc.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.expErr != nil && !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got: %v", tc.expErr, err)
			}
			if code := exitCode(err); code != tc.expCode {
				t.Errorf("expected exit code %d, got %d", tc.expCode, code)
			}
		})
	}
}

func TestRootCommand_BuildErrorsListed(t *testing.T) {
	_, _, err := execute(t, "", "-X", "BAD METHOD", "--max-redirs", "-5", "http://127.0.0.1/")

	var be *builder.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *builder.BuildError, got: %v", err)
	}
	if len(be.Errs) != 2 {
		t.Fatalf("expected both rejected options, got: %v", be.Errs)
	}
}

func TestRootCommand_ClosesHandleOnEarlyError(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "cookies.txt")

	_, _, err := execute(t, "", "-c", jar, "-C", "-", "http://127.0.0.1/")
	if err == nil {
		t.Fatal("expected resuming without an output file to fail")
	}

	if _, err := os.Stat(jar); err != nil {
		t.Errorf("expected the cookie jar written when the handle closed: %v", err)
	}
}

func TestParseRate(t *testing.T) {
	testCases := map[string]struct {
		in  string
		exp int64
		err bool
	}{
		"bytes":     {in: "512", exp: 512},
		"kilobytes": {in: "100K", exp: 100 << 10},
		"megabytes": {in: "2m", exp: 2 << 20},
		"gigabytes": {in: "1G", exp: 1 << 30},
		"empty":     {in: "", err: true},
		"negative":  {in: "-1K", err: true},
		"garbage":   {in: "fast", err: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := parseRate(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.exp {
				t.Errorf("expected %d, got %d", tc.exp, got)
			}
		})
	}
}
